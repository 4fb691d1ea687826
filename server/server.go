package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"pleia/config"
	"pleia/core/auth"
	"pleia/core/intent"
	"pleia/core/mail"
	"pleia/core/newsletter"
	"pleia/core/playlist"
	"pleia/core/spotify"
	"pleia/db"
	"pleia/logger"
	"pleia/model"
	"pleia/repository"
	"pleia/storage"
)

// Start wires the application together and runs the HTTP server until
// an interrupt arrives.
func Start() {
	cfg := config.Load()
	config.InitFlags()
	if stopWatch, err := config.WatchFlags(".env"); err != nil {
		logger.Warn("[Server] flag watcher unavailable", logger.ErrorField(err))
	} else {
		defer stopWatch()
	}
	auth.SetSecret(cfg.JWTSecret)

	server := &http.Server{
		Addr:        cfg.ListenAddr,
		ReadTimeout: 30 * time.Second,
		// Generation streams stay open for minutes; the write timeout
		// must outlast the slowest full build.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("[Server] database connection failed", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.AutoMigrateModels(
		&model.User{},
		&model.UsageEvent{},
		&model.NewsletterSubscriber{},
		&model.NewsletterWorkflow{},
	); err != nil {
		logger.Fatal("[Server] migration failed", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("[Server] redis connection failed", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	snapshots, err := storage.NewSnapshotStore(cfg)
	if err != nil {
		// Archival is not on the serving path.
		logger.Warn("[Server] snapshot store unavailable", logger.ErrorField(err))
		snapshots = nil
	}

	spotifyClient, err := spotify.NewClient(context.Background(), cfg)
	if err != nil {
		logger.Fatal("[Server] spotify client failed", logger.ErrorField(err))
	}

	userRepo := repository.NewUserRepository(db.GormDB)
	usageRepo := repository.NewUsageRepository(db.GormDB)
	newsRepo := repository.NewNewsletterRepository(db.GormDB)

	engine := playlist.NewEngine(spotifyClient, cfg.PriorityPerArtistCap, cfg.NonPriorityPerArtistCap)
	intents := intent.NewClient(cfg)
	news := newsletter.NewService(newsRepo, userRepo, mail.NewClient(cfg))

	apiHandler := NewAPIHandler(cfg, userRepo, usageRepo, engine, intents, news, spotifyClient, snapshots)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/me", apiHandler.AuthMiddleware(apiHandler.ProfileHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/me/terms", apiHandler.AuthMiddleware(apiHandler.AcceptTermsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/usage", apiHandler.AuthMiddleware(apiHandler.UsageHandler)).Methods(http.MethodGet)

	router.HandleFunc("/api/playlist/llm", apiHandler.AuthMiddleware(apiHandler.GeneratePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/ws/playlist", apiHandler.WebSocketPlaylistHandler)

	router.HandleFunc("/api/newsletter/subscribe", apiHandler.SubscribeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/referral/{code}", apiHandler.ReferralStatsHandler).Methods(http.MethodGet)

	server.Handler = router

	// Drip emails go out on a background ticker, not per-request.
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	go runDripDispatcher(dispatcherCtx, news)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("[Server] listening", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] listen failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("[Server] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("[Server] forced shutdown", logger.ErrorField(err))
	}
	logger.Info("[Server] stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func runDripDispatcher(ctx context.Context, news *newsletter.Service) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := news.DispatchDue(ctx, 50); err != nil {
				logger.Warn("[Newsletter] dispatch pass failed", logger.ErrorField(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
