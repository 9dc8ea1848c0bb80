package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/backend"
	"github.com/b0bbywan/go-odio-nowplaying/config"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	mux    *http.ServeMux
	config *config.ApiConfig
}

func NewServer(cfg *config.ApiConfig, b *backend.Backend) *Server {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	server := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
	}
	server.register(b)
	return server
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Run(ctx context.Context) error {
	servers := make([]*http.Server, len(s.config.Listens))
	for i, addr := range s.config.Listens {
		servers[i] = &http.Server{
			Addr:              addr,
			Handler:           s.mux,
			ReadHeaderTimeout: 10 * time.Second,
			// Request contexts derive from ctx so SSE streams end on shutdown
			BaseContext: func(_ net.Listener) context.Context { return ctx },
		}
	}

	// Shutdown all servers on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Info("[api] server %s shutdown error: %v", srv.Addr, err)
			}
		}
	}()

	// Start one goroutine per listen address
	errCh := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			logger.Info("[api] http server running on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}

func (s *Server) register(b *backend.Backend) {
	// 404 on root and every unmatched path
	s.mux.HandleFunc("/", http.NotFound)

	if b == nil {
		return
	}

	s.registerServerRoutes(b)

	if b.MPRIS != nil {
		s.registerMPRISRoutes(b.MPRIS)
	}
}
