package mpris

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

type ownerEvent struct {
	change OwnerChange
	// seed marks a name found by discovery rather than by a signal
	seed bool
	done func()
}

// OwnerWatcher keeps registry membership in line with bus name ownership.
// Events for one name are handled one at a time in arrival order; distinct
// names are handled concurrently.
type OwnerWatcher struct {
	transport Transport
	registry  *Registry
	warn      *warnLimiter

	// ctx bounds the watcher itself, subCtx the property subscriptions it opens
	ctx    context.Context
	cancel context.CancelFunc
	subCtx context.Context

	mu       sync.Mutex
	queues   map[string][]ownerEvent
	wg       sync.WaitGroup
	watchers sync.WaitGroup
}

func newOwnerWatcher(ctx, subCtx context.Context, t Transport, reg *Registry, warn *warnLimiter) *OwnerWatcher {
	ctx, cancel := context.WithCancel(ctx)
	return &OwnerWatcher{
		transport: t,
		registry:  reg,
		warn:      warn,
		ctx:       ctx,
		cancel:    cancel,
		subCtx:    subCtx,
		queues:    make(map[string][]ownerEvent),
	}
}

// start consumes owner changes in the background.
func (w *OwnerWatcher) start(changes <-chan OwnerChange) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					if w.ctx.Err() == nil {
						logger.Error("[mpris] name owner stream closed, players are no longer tracked")
					}
					return
				}
				w.enqueue(ownerEvent{change: change})
			}
		}
	}()
}

// seed tracks the names found at startup and waits until each one is either
// in the registry or rejected.
func (w *OwnerWatcher) seed(names []string) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		w.enqueue(ownerEvent{
			change: OwnerChange{Name: name},
			seed:   true,
			done:   wg.Done,
		})
	}
	wg.Wait()
}

func (w *OwnerWatcher) enqueue(ev ownerEvent) {
	name := ev.change.Name

	w.mu.Lock()
	defer w.mu.Unlock()

	q, running := w.queues[name]
	w.queues[name] = append(q, ev)
	if running {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.drain(name)
	}()
}

// drain handles the queued events of one name and exits once it is empty.
func (w *OwnerWatcher) drain(name string) {
	for {
		w.mu.Lock()
		q := w.queues[name]
		if len(q) == 0 {
			delete(w.queues, name)
			w.mu.Unlock()
			return
		}
		ev := q[0]
		w.queues[name] = q[1:]
		w.mu.Unlock()

		if w.ctx.Err() == nil {
			w.handle(ev)
		}
		if ev.done != nil {
			ev.done()
		}
	}
}

func (w *OwnerWatcher) handle(ev ownerEvent) {
	change := ev.change
	if !strings.HasPrefix(change.Name, MPRIS_PREFIX+".") {
		return
	}

	switch {
	case !ev.seed && change.NewOwner == "":
		if w.registry.Remove(change.Name) {
			logger.Info("[mpris] player %s disappeared", change.Name)
		}
		w.warn.forget(change.Name)
	case !ev.seed && change.OldOwner != "":
		logger.Debug("[mpris] %s changed owner %s -> %s", change.Name, change.OldOwner, change.NewOwner)
		w.registry.Remove(change.Name)
		w.owned(change.Name)
	default:
		if _, ok := w.registry.Get(change.Name); ok {
			logger.Debug("[mpris] %s already tracked", change.Name)
			return
		}
		w.owned(change.Name)
	}
}

// owned subscribes to busName, fetches its state and adds it to the
// registry. Subscribing first means no change is lost between the fetch
// and the subscription. On failure the name stays absent until its next
// ownership change.
func (w *OwnerWatcher) owned(busName string) {
	subCtx, cancel := context.WithCancel(w.subCtx)
	changes, err := w.transport.SubscribePropertyChanges(subCtx, busName)
	if err != nil {
		cancel()
		logger.Warn("[mpris] failed to subscribe to %s: %v", busName, err)
		return
	}

	props, err := w.transport.GetAllProperties(w.ctx, busName, MPRIS_PLAYER_IFACE)
	if err != nil {
		cancel()
		logger.Warn("[mpris] failed to fetch %s: %v", busName, err)
		return
	}

	snap, warnings, err := DecodeSnapshot(props)
	if err != nil {
		cancel()
		var malformed *MalformedSourceError
		if errors.As(err, &malformed) {
			malformed.BusName = busName
		}
		logger.Warn("[mpris] ignoring player: %v", err)
		return
	}
	w.warn.report(busName, warnings)

	if root, err := w.transport.GetAllProperties(w.ctx, busName, MPRIS_INTERFACE); err != nil {
		logger.Debug("[mpris] %s: no root properties: %v", busName, err)
	} else {
		w.warn.report(busName, decodeRoot(root, &snap))
	}

	pw := newPropertyWatcher(subCtx, cancel, busName, changes)
	gen := w.registry.UpsertFull(busName, snap, pw)
	if gen == 0 {
		return
	}
	logger.Info("[mpris] tracking %s (%s)", busName, snap.PlaybackStatus)

	w.watchers.Add(1)
	go func() {
		defer w.watchers.Done()
		pw.run(w.registry, gen, w.warn)
	}()
}

// stop ends event handling and waits for in-flight handlers.
func (w *OwnerWatcher) stop() {
	w.cancel()
	w.wg.Wait()
}

// waitWatchers waits for every property watcher to return. Their handles
// must have been cancelled first.
func (w *OwnerWatcher) waitWatchers() {
	w.watchers.Wait()
}
