package mpris

import (
	"context"

	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

// propertyWatcher applies the property changes of one player to its
// registry entry. It is the Subscription handle held by that entry.
type propertyWatcher struct {
	busName string
	ctx     context.Context
	cancel  context.CancelFunc
	changes <-chan PropertyChange
}

func newPropertyWatcher(ctx context.Context, cancel context.CancelFunc, busName string, changes <-chan PropertyChange) *propertyWatcher {
	return &propertyWatcher{busName: busName, ctx: ctx, cancel: cancel, changes: changes}
}

// Cancel ends the subscription. It does not wait for run to return.
func (w *propertyWatcher) Cancel() {
	w.cancel()
}

// run consumes changes for the entry created with gen until the stream
// closes. A stream closed while not cancelled removes the entry.
func (w *propertyWatcher) run(reg *Registry, gen uint64, warn *warnLimiter) {
	for change := range w.changes {
		if w.ctx.Err() != nil {
			break
		}
		d, warnings, err := DecodeDelta(change)
		if err != nil {
			warn.warn(w.busName+"/notification", "[mpris] %s: dropping property change: %v", w.busName, err)
			continue
		}
		warn.report(w.busName, warnings)
		if err := reg.ApplyDelta(w.busName, d, withGeneration(gen)); err != nil {
			logger.Debug("[mpris] %s: property change discarded: %v", w.busName, err)
		}
	}

	if w.ctx.Err() != nil {
		return
	}
	// usually the player exited and its owner change is on the way; real
	// transport failures are reported by the transport
	err := &SubscriptionTerminatedError{BusName: w.busName}
	if reg.removeGeneration(w.busName, gen) {
		logger.Info("[mpris] %v, player removed", err)
	}
}
