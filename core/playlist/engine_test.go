package playlist

import (
	"context"
	"fmt"
	"testing"

	"pleia/model"
)

func TestGenerateStreamsFirstChunkFirst(t *testing.T) {
	f := newFakeSource()
	f.artists["seed"] = &model.ResolvedArtist{ID: "sd", Name: "Seed"}
	for i := 0; i < 30; i++ {
		f.recs = append(f.recs, mkTrack(fmt.Sprintf("rec-%02d", i), fmt.Sprintf("rec %02d", i), "aa", "Someone"))
	}

	e := NewEngine(f, 10, 5)
	intent := &model.Intent{ArtistsLLM: []string{"Seed"}}

	var chunks []Chunk
	tracks, mode, err := e.Generate(context.Background(), intent, "algo para entrenar", 20, func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatal(err)
	}
	if mode != ModeNormal {
		t.Fatalf("mode: got %s, want NORMAL", mode)
	}
	if len(tracks) == 0 || len(tracks) > 20 {
		t.Fatalf("got %d tracks, want 1..20", len(tracks))
	}

	if len(chunks) == 0 {
		t.Fatal("expected at least one streamed chunk")
	}
	if chunks[0].Index != 0 {
		t.Fatalf("first chunk index: got %d, want 0", chunks[0].Index)
	}
	// First chunk size is ceil(target/3) capped at 20.
	if len(chunks[0].Tracks) > 7 {
		t.Errorf("first chunk size: got %d, want <=7", len(chunks[0].Tracks))
	}

	// No duplicate IDs across the final playlist.
	seen := make(map[string]bool)
	for i := range tracks {
		if seen[tracks[i].ID] {
			t.Fatalf("duplicate track %s in output", tracks[i].ID)
		}
		seen[tracks[i].ID] = true
	}

	// The streamed track total matches the final count.
	streamed := 0
	for _, c := range chunks {
		streamed += len(c.Tracks)
	}
	if streamed != len(tracks) {
		t.Errorf("streamed %d tracks, final playlist has %d", streamed, len(tracks))
	}
}

func TestGenerateDefaultsTarget(t *testing.T) {
	f := newFakeSource()
	e := NewEngine(f, 10, 5)

	tracks, _, err := e.Generate(context.Background(), &model.Intent{}, "lo que sea", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) > 50 {
		t.Fatalf("default target must bound the output at 50, got %d", len(tracks))
	}
}

func TestEnrich(t *testing.T) {
	f := newFakeSource()
	f.features = map[string]model.AudioFeatures{
		"fast": {Tempo: 170},
		"slow": {Tempo: 80},
		"mid":  {Tempo: 120},
	}
	f.tracksByID["bare"] = mkTrack("bare", "Backfilled", "aa", "Someone")

	e := NewEngine(f, 10, 5)

	in := []model.Track{
		mkTrack("fast", "fast song", "aa", "Someone"),
		mkTrack("slow", "slow song", "aa", "Someone"),
		mkTrack("mid", "mid song", "aa", "Someone"),
		{ID: "bare"},    // metadata missing, recoverable
		{ID: "corrupt"}, // metadata missing, unrecoverable
	}

	out := e.Enrich(context.Background(), in)

	if len(out) != 4 {
		t.Fatalf("got %d tracks, want 4", len(out))
	}
	for i := range out {
		if out[i].ID == "corrupt" {
			t.Fatal("unrecoverable track survived enrichment")
		}
		if out[i].ID == "bare" && out[i].Name != "Backfilled" {
			t.Errorf("metadata backfill missed: %+v", out[i])
		}
	}

	// Featured tracks come out in a rising tempo ramp.
	var tempos []float64
	for i := range out {
		if out[i].AudioFeatures != nil {
			tempos = append(tempos, out[i].AudioFeatures.Tempo)
		}
	}
	if len(tempos) != 3 {
		t.Fatalf("expected 3 featured tracks, got %d", len(tempos))
	}
	for i := 1; i < len(tempos); i++ {
		if tempos[i] < tempos[i-1] {
			t.Fatalf("tempo ramp not monotonic: %v", tempos)
		}
	}
}
