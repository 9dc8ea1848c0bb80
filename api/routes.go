package api

import (
	"net/http"

	"github.com/b0bbywan/go-odio-nowplaying/backend"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

func (s *Server) registerServerRoutes(b *backend.Backend) {
	s.mux.HandleFunc(
		"GET /server",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.ServerInfo(), nil
		}),
	)

	// SSE event stream
	if b.Broadcaster != nil {
		var players playerSource
		if b.MPRIS != nil {
			players = b.MPRIS
		}
		s.mux.HandleFunc("GET /events", sseHandler(b.Broadcaster, players, s.config.SSEKeepAlive))
		logger.Info("[api] SSE route registered at /events")
	}
}

func (s *Server) registerMPRISRoutes(m playerSource) {
	s.mux.HandleFunc("GET /players", ListPlayersHandler(m))
	s.mux.HandleFunc("GET /players/{player}", GetPlayerHandler(m))
}
