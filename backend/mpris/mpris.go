package mpris

import (
	"context"
	"sync"
	"time"

	idbus "github.com/b0bbywan/go-odio-nowplaying/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-nowplaying/config"
	"github.com/b0bbywan/go-odio-nowplaying/events"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const eventBuffer = 256

// MPRISBackend tracks every MPRIS player on the session bus and keeps a
// decoded snapshot of each one current.
type MPRISBackend struct {
	transport Transport
	registry  *Registry
	owners    *OwnerWatcher
	poller    *PositionPoller
	warn      *warnLimiter
	events    chan events.Event

	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	closeOnce sync.Once
}

// New creates the backend on top of transport. Nothing is read from the bus
// until Start.
func New(ctx context.Context, transport Transport, cfg *config.MPRISConfig) *MPRISBackend {
	if cfg == nil {
		cfg = &config.MPRISConfig{}
	}
	if cfg.Timeout > 0 {
		idbus.DefaultTimeout = cfg.Timeout
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &MPRISBackend{
		transport: transport,
		warn:      newWarnLimiter(warnTTL),
		events:    make(chan events.Event, eventBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.registry = NewRegistry(m.notify)
	m.owners = newOwnerWatcher(ctx, ctx, transport, m.registry, m.warn)

	concurrency := cfg.PollConcurrency
	if concurrency == 0 {
		concurrency = defaultPollConcurrency
	}
	m.poller = newPositionPoller(transport, m.registry, m.warn, cfg.PollInterval, concurrency)
	return m
}

// Start subscribes to ownership changes, seeds the registry from the names
// already on the bus and starts the position poller. It returns once every
// discovered player has been fetched or rejected.
func (m *MPRISBackend) Start() error {
	logger.Debug("[mpris] starting backend")

	// subscribe before listing so a player appearing in between is not missed
	changes, err := m.transport.SubscribeOwnerChanges(m.owners.ctx)
	if err != nil {
		return err
	}

	names, err := listCandidates(m.ctx, m.transport)
	if err != nil {
		return err
	}

	m.owners.start(changes)
	m.owners.seed(names)
	m.poller.Start(m.ctx)
	m.started = true

	logger.Info("[mpris] backend started, %d/%d players tracked", m.registry.Len(), len(names))
	return nil
}

// notify runs under the registry lock: it must not block.
func (m *MPRISBackend) notify(e events.Event) {
	if e.Type == events.TypePlayerRemoved {
		if data, ok := e.Data.(RemovedData); ok {
			m.warn.forget(data.BusName)
		}
	}
	select {
	case m.events <- e:
	default:
		logger.Warn("[mpris] event channel full, dropping %s", e.Type)
	}
}

// Events returns the change feed. It is closed by Close.
func (m *MPRISBackend) Events() <-chan events.Event {
	return m.events
}

// ListActiveSources returns the bus names of the tracked players, sorted.
func (m *MPRISBackend) ListActiveSources() []string {
	return m.registry.Identities()
}

// GetSnapshot returns the current snapshot of busName.
func (m *MPRISBackend) GetSnapshot(busName string) (Snapshot, error) {
	if err := validateBusName(busName); err != nil {
		return Snapshot{}, err
	}
	snap, ok := m.registry.Get(busName)
	if !ok {
		return Snapshot{}, &PlayerNotFoundError{BusName: busName}
	}
	return snap, nil
}

// ListPlayers returns every tracked player, sorted by bus name.
func (m *MPRISBackend) ListPlayers() []PlayerState {
	return m.registry.States()
}

// GetPlayer returns the state of busName.
func (m *MPRISBackend) GetPlayer(busName string) (PlayerState, error) {
	if err := validateBusName(busName); err != nil {
		return PlayerState{}, err
	}
	state, ok := m.registry.State(busName)
	if !ok {
		return PlayerState{}, &PlayerNotFoundError{BusName: busName}
	}
	return state, nil
}

func (m *MPRISBackend) SetPollInterval(d time.Duration) {
	m.poller.SetInterval(d)
}

// Close shuts down the ownership watcher, then the player subscriptions,
// then the poller, and finally the transport.
func (m *MPRISBackend) Close() {
	m.closeOnce.Do(func() {
		m.owners.stop()
		m.registry.Close()
		m.owners.waitWatchers()
		if m.started {
			m.poller.Stop()
		}
		m.cancel()
		if err := m.transport.Close(); err != nil {
			logger.Debug("[mpris] closing transport: %v", err)
		}
		close(m.events)
		logger.Info("[mpris] backend closed")
	})
}
