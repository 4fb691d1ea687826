package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pleia/model"
)

// wsFrame covers the fields shared by progress, final and error frames so
// a single read loop can classify whatever the server sends.
type wsFrame struct {
	OK        bool               `json:"ok"`
	Mode      string             `json:"mode"`
	Streaming bool               `json:"streaming"`
	Count     int                `json:"count"`
	Status    string             `json:"status"`
	Error     string             `json:"error"`
	Chunk     int                `json:"chunk"`
	Usage     model.UsageSummary `json:"usage"`
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	h := newTestHandler(newFakeUserRepo(), &fakeUsageRepo{})
	srv := httptest.NewServer(http.HandlerFunc(h.WebSocketPlaylistHandler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response: %+v", resp)
	}
	resp.Body.Close()
}

func TestWebSocketGenerateStreamsFrames(t *testing.T) {
	users := newFakeUserRepo()
	ledger := &fakeUsageRepo{}
	h := newTestHandler(users, ledger)
	_, token := seedUser(t, users, true)

	srv := httptest.NewServer(http.HandlerFunc(h.WebSocketPlaylistHandler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(GenerateRequest{Prompt: "reggaeton para el coche", TargetTracks: 10}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawProgress := false
	var final wsFrame
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed before final frame: %v", err)
		}
		if frame.Status == "generating" {
			sawProgress = true
			continue
		}
		final = frame
		break
	}

	if !sawProgress {
		t.Fatal("no generating frame streamed")
	}
	if !final.OK || final.Status != "completed" {
		t.Fatalf("final frame: %+v", final)
	}
	if final.Count == 0 || final.Count > 10 {
		t.Fatalf("final count: got %d, want 1..10", final.Count)
	}
	if final.Usage.Used != 1 {
		t.Fatalf("usage used: got %d, want 1", final.Usage.Used)
	}
	if len(ledger.events) != 1 {
		t.Fatalf("ledger events: got %d, want 1", len(ledger.events))
	}
}

// A keepalive ping landing mid-generation must not interleave with frame
// writes; gorilla/websocket permits only one writer at a time.
func TestConcurrentPingAndFrameWrites(t *testing.T) {
	const frames = 50

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()

		wc := &wsConn{conn: conn}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < frames; i++ {
				if err := wc.ping(); err != nil {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < frames; i++ {
				wsSend(wc, progressFrame{OK: true, Status: "generating", Chunk: i})
			}
		}()
		wg.Wait()
		wsSend(wc, finalFrame{OK: true, Status: "completed"})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	got := 0
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed after %d progress frames: %v", got, err)
		}
		if frame.Status == "completed" {
			break
		}
		got++
	}
	if got != frames {
		t.Fatalf("progress frames: got %d, want %d", got, frames)
	}
}
