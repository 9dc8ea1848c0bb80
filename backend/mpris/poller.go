package mpris

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const (
	defaultPollInterval    = time.Second
	defaultPollConcurrency = 4
)

// PositionPoller refreshes the position of Playing players on a fixed tick.
// Players rarely push position changes, so they have to be asked.
type PositionPoller struct {
	transport   Transport
	registry    *Registry
	warn        *warnLimiter
	concurrency int

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
	// players with a position fetch outstanding
	inflight map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPositionPoller(t Transport, reg *Registry, warn *warnLimiter, interval time.Duration, concurrency int) *PositionPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &PositionPoller{
		transport:   t,
		registry:    reg,
		warn:        warn,
		concurrency: concurrency,
		interval:    interval,
		reset:       make(chan struct{}, 1),
		inflight:    make(map[string]bool),
	}
}

func (p *PositionPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
	logger.Debug("[poller] started (every %v, %d concurrent)", p.getInterval(), p.concurrency)
}

// Stop ends the loop and waits for outstanding fetches.
func (p *PositionPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	logger.Debug("[poller] stopped")
}

// SetInterval changes the tick interval of a running poller.
func (p *PositionPoller) SetInterval(d time.Duration) {
	if d <= 0 {
		d = defaultPollInterval
	}
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	p.mu.Unlock()

	if changed {
		select {
		case p.reset <- struct{}{}:
		default:
		}
	}
}

func (p *PositionPoller) getInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *PositionPoller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.getInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.reset:
			interval := p.getInterval()
			ticker.Reset(interval)
			logger.Info("[poller] interval set to %v", interval)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts a fetch for every Playing player and returns how many were
// started. It does not wait for them. A player whose previous fetch is
// still outstanding is skipped for this tick, so a hung player never holds
// up the others.
func (p *PositionPoller) tick(ctx context.Context) int {
	targets := p.claim()
	if len(targets) == 0 {
		return 0
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.fetch(ctx, targets)
	}()
	return len(targets)
}

// poll runs one round synchronously.
func (p *PositionPoller) poll(ctx context.Context) {
	p.fetch(ctx, p.claim())
}

// claim marks the Playing entries without an outstanding fetch as in flight
// and returns them.
func (p *PositionPoller) claim() []EntryInfo {
	list := p.registry.List()

	p.mu.Lock()
	defer p.mu.Unlock()

	var targets []EntryInfo
	for _, e := range list {
		if e.Status != StatusPlaying {
			continue
		}
		if p.inflight[e.BusName] {
			logger.Debug("[poller] %s: previous fetch still running, skipping", e.BusName)
			continue
		}
		p.inflight[e.BusName] = true
		targets = append(targets, e)
	}
	return targets
}

func (p *PositionPoller) release(busName string) {
	p.mu.Lock()
	delete(p.inflight, busName)
	p.mu.Unlock()
}

// fetch polls targets with bounded concurrency. Failures are per player.
func (p *PositionPoller) fetch(ctx context.Context, targets []EntryInfo) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, e := range targets {
		g.Go(func() error {
			defer p.release(e.BusName)
			if err := p.pollOne(ctx, e); errors.Is(err, ErrStalePollTarget) {
				logger.Debug("[poller] %s: position discarded: %v", e.BusName, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pollOne fetches and applies the position of e. A result for an entry that
// is gone, re-created or no longer Playing fails with ErrStalePollTarget.
func (p *PositionPoller) pollOne(ctx context.Context, e EntryInfo) error {
	v, err := p.transport.GetProperty(ctx, e.BusName, MPRIS_PLAYER_IFACE, PROP_POSITION)
	if err != nil {
		if ctx.Err() == nil {
			p.warn.warn(e.BusName+"/poll", "[poller] failed to fetch position of %s: %v", e.BusName, err)
		}
		return err
	}
	pos, err := DecodePosition(v)
	if err != nil {
		p.warn.warn(e.BusName+"/"+PROP_POSITION, "[poller] %s: %v", e.BusName, err)
		return err
	}

	err = p.registry.ApplyDelta(e.BusName, Delta{Position: &pos}, withGeneration(e.Generation), whilePlaying())
	if errors.Is(err, ErrNoEntry) || errors.Is(err, ErrNotPlaying) {
		return fmt.Errorf("%w: %w", ErrStalePollTarget, err)
	}
	return err
}
