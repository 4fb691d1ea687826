package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pleia/config"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("auth header: got %q", got)
		}

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Prompt != "estilo Quevedo" || req.TargetTracks != 20 {
			t.Errorf("request body: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"mode": "ARTIST_STYLE",
			"priority_artists": ["Quevedo"],
			"exclusions": {"banned_artists": ["Bad Bunny"], "banned_terms": []}
		}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{IntentAPIURL: srv.URL, IntentAPIKey: "key-123"})

	intent, err := c.Resolve(context.Background(), "estilo Quevedo", 20)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Mode != "ARTIST_STYLE" {
		t.Errorf("mode: got %q", intent.Mode)
	}
	if len(intent.PriorityArtists) != 1 || intent.PriorityArtists[0] != "Quevedo" {
		t.Errorf("priority artists: %+v", intent.PriorityArtists)
	}
	if len(intent.Exclusions.BannedArtists) != 1 {
		t.Errorf("exclusions: %+v", intent.Exclusions)
	}
	// Empty prompt in the response is backfilled from the request.
	if intent.Prompt != "estilo Quevedo" {
		t.Errorf("prompt backfill: got %q", intent.Prompt)
	}
}

func TestResolveNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(&config.Config{IntentAPIURL: srv.URL})
	if _, err := c.Resolve(context.Background(), "x", 10); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
