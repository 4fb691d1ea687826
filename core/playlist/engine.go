package playlist

import (
	"context"
	"sort"
	"sync"

	"pleia/logger"
	"pleia/model"
)

// Chunk is one streamed slice of the playlist under construction.
type Chunk struct {
	Index    int
	Tracks   []model.Track
	Count    int
	Progress float64
}

// Engine orchestrates mode selection, chunked generation and
// post-processing over a track Source.
type Engine struct {
	source         Source
	priorityCap    int
	nonPriorityCap int
}

// NewEngine builds an engine with the per-artist cap defaults.
func NewEngine(source Source, priorityCap, nonPriorityCap int) *Engine {
	return &Engine{source: source, priorityCap: priorityCap, nonPriorityCap: nonPriorityCap}
}

// Generate runs the full pipeline for one request. onChunk, when
// non-nil, receives each slice as it lands so the transport can stream
// partial results. The first chunk is always produced and delivered
// first; later chunks run concurrently and land in completion order, so
// the tail ordering varies between runs with identical inputs.
func (e *Engine) Generate(ctx context.Context, intent *model.Intent, prompt string, target int, onChunk func(Chunk)) ([]model.Track, Mode, error) {
	if target <= 0 {
		target = 50
	}
	mode := DetermineMode(intent, prompt)
	logger.Info("[Playlist] generation start",
		logger.String("mode", string(mode)),
		logger.Int("target", target),
	)

	firstSize := (target + 2) / 3
	if firstSize > 20 {
		firstSize = 20
	}

	first, err := e.generateForMode(ctx, mode, intent, prompt, firstSize)
	if err != nil {
		return nil, mode, err
	}
	collected := DedupeByID(first)
	if onChunk != nil {
		onChunk(Chunk{Index: 0, Tracks: first, Count: len(collected), Progress: progress(len(collected), target)})
	}

	remaining := target - len(collected)
	if remaining > 0 {
		chunkSize := firstSize
		chunks := (remaining + chunkSize - 1) / chunkSize

		results := make(chan []model.Track, chunks)
		var wg sync.WaitGroup
		for i := 0; i < chunks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Over-fetch a little so cross-chunk dedup still
				// leaves enough material.
				tracks, err := e.generateForMode(ctx, mode, intent, prompt, chunkSize+5)
				if err != nil {
					logger.Warn("[Playlist] chunk failed", logger.ErrorField(err))
					results <- nil
					return
				}
				results <- tracks
			}()
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		// Completion order, not request order.
		idx := 1
		for tracks := range results {
			if len(tracks) == 0 {
				continue
			}
			before := len(collected)
			collected = DedupeByID(append(collected, tracks...))
			if len(collected) > target {
				collected = collected[:target]
			}
			if onChunk != nil && len(collected) > before {
				onChunk(Chunk{Index: idx, Tracks: collected[before:], Count: len(collected), Progress: progress(len(collected), target)})
			}
			idx++
			if len(collected) >= target {
				break
			}
		}
	}

	if len(collected) < target {
		logger.Warn("[Playlist] target not reached",
			logger.Int("collected", len(collected)),
			logger.Int("target", target),
		)
	}
	return Truncate(collected, target), mode, nil
}

func (e *Engine) generateForMode(ctx context.Context, mode Mode, intent *model.Intent, prompt string, target int) ([]model.Track, error) {
	switch mode {
	case ModeViral:
		return e.generateViral(ctx, intent, target), nil
	case ModeFestival:
		return e.generateFestival(ctx, intent, prompt, target)
	case ModeArtistStyle:
		return e.generateArtistStyle(ctx, intent, prompt, target)
	default:
		return e.generateNormal(ctx, intent, prompt, target)
	}
}

// Enrich attaches audio features, smooths the running order by tempo and
// backfills metadata for tracks that arrived without a name or URI.
// Every enrichment step is best-effort; a track that still has no usable
// metadata afterwards is dropped.
func (e *Engine) Enrich(ctx context.Context, tracks []model.Track) []model.Track {
	ids := make([]string, 0, len(tracks))
	for i := range tracks {
		if tracks[i].ID != "" {
			ids = append(ids, tracks[i].ID)
		}
	}

	features, err := e.source.AudioFeatures(ctx, ids)
	if err != nil {
		logger.Warn("[Playlist] audio features failed", logger.ErrorField(err))
	} else {
		for i := range tracks {
			if f, ok := features[tracks[i].ID]; ok {
				af := f
				tracks[i].AudioFeatures = &af
			}
		}
		smoothByTempo(tracks)
	}

	out := make([]model.Track, 0, len(tracks))
	for i := range tracks {
		t := tracks[i]
		if !t.Valid() && t.ID != "" {
			full, err := e.source.GetTrack(ctx, t.ID)
			if err == nil && full != nil {
				t = *full
			}
		}
		if t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// smoothByTempo sorts only the tracks carrying features into a gentle
// tempo ramp, leaving featureless tracks in place.
func smoothByTempo(tracks []model.Track) {
	idx := make([]int, 0, len(tracks))
	for i := range tracks {
		if tracks[i].AudioFeatures != nil {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return
	}
	sub := make([]model.Track, len(idx))
	for j, i := range idx {
		sub[j] = tracks[i]
	}
	sort.SliceStable(sub, func(a, b int) bool {
		return sub[a].AudioFeatures.Tempo < sub[b].AudioFeatures.Tempo
	})
	for j, i := range idx {
		tracks[i] = sub[j]
	}
}

// progress is a 0..100 percentage for client progress bars.
func progress(have, target int) float64 {
	if target <= 0 {
		return 100
	}
	p := float64(have) / float64(target) * 100
	if p > 100 {
		return 100
	}
	return p
}
