package backend

import (
	"context"

	"github.com/b0bbywan/go-odio-nowplaying/backend/mpris"
	"github.com/b0bbywan/go-odio-nowplaying/config"
)

type Backend struct {
	MPRIS       *mpris.MPRISBackend
	Broadcaster *Broadcaster
}

// New connects to the session bus and builds the backend on it.
func New(ctx context.Context, cfg *config.MPRISConfig) (*Backend, error) {
	transport, err := mpris.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return NewWithTransport(ctx, transport, cfg), nil
}

// NewWithTransport builds the backend on an existing transport.
func NewWithTransport(ctx context.Context, transport mpris.Transport, cfg *config.MPRISConfig) *Backend {
	m := mpris.New(ctx, transport, cfg)
	return &Backend{
		MPRIS:       m,
		Broadcaster: NewBroadcaster(ctx, m.Events()),
	}
}

func (b *Backend) Start() error {
	if b.MPRIS != nil {
		if err := b.MPRIS.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Apply applies the settings that can change at runtime.
func (b *Backend) Apply(cfg *config.Config) {
	if b.MPRIS != nil && cfg.MPRIS != nil {
		b.MPRIS.SetPollInterval(cfg.MPRIS.PollInterval)
	}
}

func (b *Backend) Close() {
	if b.MPRIS != nil {
		b.MPRIS.Close()
	}
}
