package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/backend"
	"github.com/b0bbywan/go-odio-nowplaying/backend/mpris"
	"github.com/b0bbywan/go-odio-nowplaying/events"
)

// runSSE serves one /events request until after has run, then cancels it
// and returns the response.
func runSSE(t *testing.T, b *backend.Broadcaster, players playerSource, target string, after func()) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sseHandler(b, players, 0)(w, req)
	}()

	// Give the handler a moment to subscribe and write the initial event.
	time.Sleep(20 * time.Millisecond)
	if after != nil {
		after()
		time.Sleep(30 * time.Millisecond)
	}
	cancel()
	<-done
	return w
}

func TestSSEHandler_ContentType(t *testing.T) {
	b := backend.NewBroadcaster(context.Background(), make(chan events.Event))
	w := runSSE(t, b, nil, "/events", nil)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %q", ct)
	}
}

func TestSSEHandler_ConnectedAndBye(t *testing.T) {
	b := backend.NewBroadcaster(context.Background(), make(chan events.Event))
	body := runSSE(t, b, nil, "/events", nil).Body.String()

	if !strings.Contains(body, "event: server.info\ndata: \"connected\"") {
		t.Errorf("missing connected event, got: %q", body)
	}
	if !strings.Contains(body, "data: \"bye\"") {
		t.Errorf("missing bye event, got: %q", body)
	}
}

func TestSSEHandler_InitialPlayers(t *testing.T) {
	b := backend.NewBroadcaster(context.Background(), make(chan events.Event))
	players := &fakePlayers{states: []mpris.PlayerState{
		{BusName: "org.mpris.MediaPlayer2.vlc", Snapshot: mpris.Snapshot{PlaybackStatus: mpris.StatusPlaying}},
	}}

	body := runSSE(t, b, players, "/events", nil).Body.String()
	if !strings.Contains(body, "event: player.added") || !strings.Contains(body, "org.mpris.MediaPlayer2.vlc") {
		t.Errorf("expected initial player.added for vlc, got: %q", body)
	}

	body = runSSE(t, b, players, "/events?exclude=player.added", nil).Body.String()
	if strings.Contains(body, "player.added") {
		t.Errorf("excluded player.added was sent: %q", body)
	}
}

func TestSSEHandler_EventDelivery(t *testing.T) {
	upstream := make(chan events.Event, 1)
	b := backend.NewBroadcaster(context.Background(), upstream)

	body := runSSE(t, b, nil, "/events", func() {
		upstream <- events.Event{
			Type: events.TypePlayerPosition,
			Data: mpris.PositionData{BusName: "org.mpris.MediaPlayer2.test", Position: 42},
		}
	}).Body.String()

	if !strings.Contains(body, "event: player.position") {
		t.Errorf("expected player.position event, got: %q", body)
	}
	if !strings.Contains(body, `"position":42`) {
		t.Errorf("expected position payload, got: %q", body)
	}
}

func TestSSEHandler_FilteredDelivery(t *testing.T) {
	upstream := make(chan events.Event, 4)
	b := backend.NewBroadcaster(context.Background(), upstream)

	body := runSSE(t, b, nil, "/events?types=player.removed", func() {
		upstream <- events.Event{Type: events.TypePlayerUpdated, Data: "updated"}
		upstream <- events.Event{Type: events.TypePlayerRemoved, Data: "removed"}
	}).Body.String()

	if strings.Contains(body, "player.updated") {
		t.Error("player.updated should not appear when filter is player.removed only")
	}
	if !strings.Contains(body, "player.removed") {
		t.Errorf("player.removed should appear in filtered SSE body, got: %q", body)
	}
}

func TestSSEHandler_BroadcasterStopped(t *testing.T) {
	upstream := make(chan events.Event)
	b := backend.NewBroadcaster(context.Background(), upstream)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		sseHandler(b, nil, 0)(w, req)
	}()

	time.Sleep(20 * time.Millisecond)
	close(upstream)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after broadcaster stopped")
	}
	if !strings.Contains(w.Body.String(), "\"bye\"") {
		t.Errorf("expected bye event, got: %q", w.Body.String())
	}
}

func TestSSEHandler_BadParams(t *testing.T) {
	b := backend.NewBroadcaster(context.Background(), make(chan events.Event))
	for _, target := range []string{"/events?keepalive=abc", "/events?keepalive=5", "/events?exclude=server.info"} {
		w := httptest.NewRecorder()
		sseHandler(b, nil, 0)(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestParseKeepAlive(t *testing.T) {
	tests := []struct {
		query   string
		want    time.Duration
		wantErr bool
	}{
		{"", 45 * time.Second, false},
		{"keepalive=10", 10 * time.Second, false},
		{"keepalive=120", 120 * time.Second, false},
		{"keepalive=9", 0, true},
		{"keepalive=121", 0, true},
		{"keepalive=x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/events?"+tt.query, nil)
			got, err := parseKeepAlive(req, 45*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		pass    []string
		block   []string
		nilWant bool
	}{
		{name: "no params", query: "", nilWant: true},
		{
			name:  "types",
			query: "types=player.updated,player.added",
			pass:  []string{events.TypePlayerUpdated, events.TypePlayerAdded, events.TypeServerInfo},
			block: []string{events.TypePlayerPosition},
		},
		{
			name:  "backend",
			query: "backend=mpris",
			pass:  []string{events.TypePlayerUpdated, events.TypePlayerRemoved, events.TypeServerInfo},
		},
		{
			name:  "exclude",
			query: "exclude=player.position",
			pass:  []string{events.TypePlayerUpdated},
			block: []string{events.TypePlayerPosition},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFilter(httptest.NewRequest(http.MethodGet, "/events?"+tt.query, nil))
			if err != nil {
				t.Fatalf("parseFilter() error = %v", err)
			}
			if tt.nilWant {
				if f != nil {
					t.Error("expected nil (pass-all) filter")
				}
				return
			}
			for _, typ := range tt.pass {
				if !f(events.Event{Type: typ}) {
					t.Errorf("filter should pass %s", typ)
				}
			}
			for _, typ := range tt.block {
				if f(events.Event{Type: typ}) {
					t.Errorf("filter should block %s", typ)
				}
			}
		})
	}
}
