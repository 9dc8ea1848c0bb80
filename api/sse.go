package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/backend"
	"github.com/b0bbywan/go-odio-nowplaying/events"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const (
	minKeepAlive     = 10 * time.Second
	maxKeepAlive     = 120 * time.Second
	defaultKeepAlive = 30 * time.Second
)

// sseHandler returns an http.HandlerFunc that streams SSE events to clients.
// Every connection starts with a player.added event per tracked player, so a
// display needs no separate GET /players. keepAlive is used when the client
// does not ask for one.
func sseHandler(b *backend.Broadcaster, players playerSource, keepAlive time.Duration) http.HandlerFunc {
	if keepAlive < minKeepAlive || keepAlive > maxKeepAlive {
		keepAlive = defaultKeepAlive
	}
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		keepAliveDuration, err := parseKeepAlive(r, keepAlive)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		if err := sendServerInfoToFlusher(flusher, w, "connected"); err != nil {
			return
		}

		// subscribe before reading the current state so nothing falls in between
		ch := b.SubscribeFunc(filter)
		defer b.Unsubscribe(ch)

		if players != nil {
			for _, p := range players.ListPlayers() {
				e := events.Event{Type: events.TypePlayerAdded, Data: p}
				if filter != nil && !filter(e) {
					continue
				}
				if err := sendToFlusher(flusher, w, e); err != nil {
					return
				}
			}
		}
		timer := time.NewTimer(keepAliveDuration)
		defer timer.Stop()

		for {
			select {
			case <-r.Context().Done():
				if err := sendServerInfoToFlusher(flusher, w, "bye"); err != nil {
					logger.Warn("[sse] failed to close events connection: %v", err)
				}
				return
			case <-timer.C:
				if err := sendServerInfoToFlusher(flusher, w, "love"); err != nil {
					logger.Warn("[sse] failed to send keepalive, closing: %v", err)
					return
				}
				timer.Reset(keepAliveDuration)
			case e, ok := <-ch:
				if !ok {
					// broadcaster stopped: the service is going down
					if err := sendServerInfoToFlusher(flusher, w, "bye"); err != nil {
						logger.Debug("[sse] failed to say bye: %v", err)
					}
					return
				}
				if err := sendToFlusher(flusher, w, e); err != nil {
					return
				}
				timer.Reset(keepAliveDuration)
			}
		}
	}
}

func sendServerInfoToFlusher(flusher http.Flusher, w http.ResponseWriter, message string) error {
	return sendToFlusher(
		flusher,
		w,
		events.Event{Type: events.TypeServerInfo, Data: message},
	)
}

func sendToFlusher(flusher http.Flusher, w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		logger.Warn("[sse] failed to marshal event data: %v", err)
		return err
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		logger.Error("[sse] failed to write to flusher: %v", err)
		http.Error(w, "failed to send data to flusher", http.StatusInternalServerError)
		return err
	}
	flusher.Flush()
	return nil
}

// parseKeepAlive reads the optional ?keepalive=<seconds> query parameter,
// between 10 and 120 seconds.
func parseKeepAlive(r *http.Request, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get("keepalive")
	if raw == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("keepalive must be an integer (seconds)")
	}
	if d := time.Duration(secs) * time.Second; d < minKeepAlive || d > maxKeepAlive {
		return 0, errors.New("keepalive must be between 10 and 120 seconds")
	}
	return time.Duration(secs) * time.Second, nil
}

// parseFilter builds an event filter from the request's query parameters:
//   - ?types=player.updated,player.added  comma-separated event type names to include
//   - ?backend=mpris                     comma-separated backend names to include (resolved via events.BackendTypes)
//   - ?exclude=player.position           comma-separated event type names to exclude
//
// server.info is always included when include filters are specified.
// Returns an error if server.info is in the exclude list.
func parseFilter(r *http.Request) (func(events.Event) bool, error) {
	q := r.URL.Query()

	var include []string
	for _, t := range strings.Split(q.Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			include = append(include, t)
		}
	}
	for _, name := range strings.Split(q.Get("backend"), ",") {
		include = append(include, events.BackendTypes[strings.TrimSpace(name)]...)
	}
	if len(include) > 0 && !slices.Contains(include, events.TypeServerInfo) {
		include = append(include, events.TypeServerInfo)
	}

	var exclude []string
	for _, t := range strings.Split(q.Get("exclude"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			if t == events.TypeServerInfo {
				return nil, errors.New("server.info cannot be excluded")
			}
			exclude = append(exclude, t)
		}
	}

	return events.NewFilter(include, exclude), nil
}
