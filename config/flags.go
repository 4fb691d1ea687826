package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"pleia/logger"
)

// FeatureFlags is a point-in-time snapshot of the generation feature
// toggles. Callers take a snapshot per request so a flag flip cannot
// change behavior mid-generation.
type FeatureFlags struct {
	MultiArtistFanout      bool
	EnforceCapsDuringBuild bool
	SmartCompensation      bool
	ArtistResolverStrict   bool
	SpotifyMarketFallback  bool
}

var (
	flagsMu      sync.RWMutex
	currentFlags = FeatureFlags{
		MultiArtistFanout:      true,
		EnforceCapsDuringBuild: true,
		SmartCompensation:      true,
		ArtistResolverStrict:   true,
		SpotifyMarketFallback:  true,
	}
)

// Flags returns the current feature flag snapshot.
func Flags() FeatureFlags {
	flagsMu.RLock()
	defer flagsMu.RUnlock()
	return currentFlags
}

// reloadFlags re-reads the flag environment variables. A flag is on
// unless its variable is the literal string "false".
func reloadFlags() {
	flagsMu.Lock()
	defer flagsMu.Unlock()
	currentFlags = FeatureFlags{
		MultiArtistFanout:      getEnvBool("FEATURE_MULTI_ARTIST_FANOUT", true),
		EnforceCapsDuringBuild: getEnvBool("FEATURE_ENFORCE_CAPS_DURING_BUILD", true),
		SmartCompensation:      getEnvBool("FEATURE_SMART_COMPENSATION", true),
		ArtistResolverStrict:   getEnvBool("FEATURE_ARTIST_RESOLVER_STRICT", true),
		SpotifyMarketFallback:  getEnvBool("FEATURE_SPOTIFY_MARKET_FALLBACK", true),
	}
}

// InitFlags loads the initial flag values from the environment.
func InitFlags() {
	reloadFlags()
}

// WatchFlags watches the .env file and reloads the feature flags when it
// changes, so toggles can be flipped without a restart. Returns a stop
// function. Watching is best-effort: if the file or watcher is
// unavailable the startup snapshot stays in effect.
func WatchFlags(envPath string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(envPath); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Overload so edited values win over stale process env.
				if err := godotenv.Overload(envPath); err != nil {
					logger.Warn("[Config] Failed to reload env file",
						logger.String("path", envPath),
						logger.ErrorField(err))
					continue
				}
				reloadFlags()
				logger.Info("[Config] Feature flags reloaded",
					logger.String("path", envPath))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("[Config] Env watcher error", logger.ErrorField(err))
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
