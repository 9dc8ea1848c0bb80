package mpris

import (
	"sort"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/events"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

type entry struct {
	snap      Snapshot
	handle    Subscription
	gen       uint64
	updatedAt time.Time
}

// EntryInfo is the part of an entry the poller needs to pick its targets.
type EntryInfo struct {
	BusName    string
	Status     PlaybackStatus
	Generation uint64
	UpdatedAt  time.Time
}

// Registry holds one entry per tracked player. It is the only shared
// mutable state of the backend; every mutation goes through its methods.
// notify is called with the lock held and must not block.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextGen uint64
	closed  bool

	notify func(events.Event)
	now    func() time.Time
}

func NewRegistry(notify func(events.Event)) *Registry {
	if notify == nil {
		notify = func(events.Event) {}
	}
	return &Registry{
		entries: make(map[string]*entry),
		notify:  notify,
		now:     time.Now,
	}
}

// UpsertFull replaces any entry for busName, cancelling the handle it held.
// It returns the generation of the new entry, or 0 once the registry is closed.
func (r *Registry) UpsertFull(busName string, snap Snapshot, handle Subscription) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		if handle != nil {
			handle.Cancel()
		}
		return 0
	}

	eventType := events.TypePlayerAdded
	if old, ok := r.entries[busName]; ok {
		if old.handle != nil && old.handle != handle {
			old.handle.Cancel()
		}
		eventType = events.TypePlayerUpdated
	}

	r.nextGen++
	e := &entry{snap: snap, handle: handle, gen: r.nextGen, updatedAt: r.now()}
	r.entries[busName] = e
	logger.Debug("[registry] %s %s (gen %d, %s)", eventType, busName, e.gen, snap.PlaybackStatus)

	r.notify(events.Event{Type: eventType, Data: e.state(busName)})
	return e.gen
}

type applyOptions struct {
	gen          uint64
	whilePlaying bool
}

// ApplyOption guards an ApplyDelta call.
type ApplyOption func(*applyOptions)

// withGeneration applies the delta only to the entry created with gen.
func withGeneration(gen uint64) ApplyOption {
	return func(o *applyOptions) { o.gen = gen }
}

// whilePlaying applies the delta only if the entry is still Playing.
func whilePlaying() ApplyOption {
	return func(o *applyOptions) { o.whilePlaying = true }
}

// ApplyDelta merges d into the entry for busName. It is a no-op returning
// ErrNoEntry when there is no entry of the expected generation, and
// ErrNotPlaying when a whilePlaying guard does not hold.
func (r *Registry) ApplyDelta(busName string, d Delta, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[busName]
	if !ok || (o.gen != 0 && e.gen != o.gen) {
		return ErrNoEntry
	}
	if o.whilePlaying && e.snap.PlaybackStatus != StatusPlaying {
		return ErrNotPlaying
	}

	for _, key := range d.applyTo(&e.snap) {
		logger.Warn("[registry] %s invalidated required property %s, keeping last value", busName, key)
	}
	e.updatedAt = r.now()

	if d.positionOnly() {
		r.notify(events.Event{
			Type: events.TypePlayerPosition,
			Data: PositionData{BusName: busName, Position: *d.Position},
		})
		return nil
	}
	r.notify(events.Event{Type: events.TypePlayerUpdated, Data: e.state(busName)})
	return nil
}

// Remove cancels the entry's handle and deletes it. Removing an absent
// entry is a no-op; it reports whether an entry was removed.
func (r *Registry) Remove(busName string) bool {
	return r.remove(busName, 0)
}

// removeGeneration removes the entry only if it is still the one created with gen.
func (r *Registry) removeGeneration(busName string, gen uint64) bool {
	return r.remove(busName, gen)
}

func (r *Registry) remove(busName string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[busName]
	if !ok || (gen != 0 && e.gen != gen) {
		return false
	}
	if e.handle != nil {
		e.handle.Cancel()
	}
	delete(r.entries, busName)
	logger.Debug("[registry] removed %s (gen %d)", busName, e.gen)

	r.notify(events.Event{Type: events.TypePlayerRemoved, Data: RemovedData{BusName: busName}})
	return true
}

// Get returns a copy of the snapshot held for busName.
func (r *Registry) Get(busName string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[busName]
	if !ok {
		return Snapshot{}, false
	}
	return e.snap, true
}

// State returns the snapshot of busName along with its last update time.
func (r *Registry) State(busName string) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[busName]
	if !ok {
		return PlayerState{}, false
	}
	return e.state(busName), true
}

// List returns the current entries sorted by bus name.
func (r *Registry) List() []EntryInfo {
	r.mu.Lock()
	list := make([]EntryInfo, 0, len(r.entries))
	for name, e := range r.entries {
		list = append(list, EntryInfo{
			BusName:    name,
			Status:     e.snap.PlaybackStatus,
			Generation: e.gen,
			UpdatedAt:  e.updatedAt,
		})
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].BusName < list[j].BusName })
	return list
}

// States returns every player state sorted by bus name.
func (r *Registry) States() []PlayerState {
	r.mu.Lock()
	states := make([]PlayerState, 0, len(r.entries))
	for name, e := range r.entries {
		states = append(states, e.state(name))
	}
	r.mu.Unlock()

	sort.Slice(states, func(i, j int) bool { return states[i].BusName < states[j].BusName })
	return states
}

// Identities returns the tracked bus names, sorted.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close cancels every handle and empties the registry without emitting
// events. Later upserts are refused.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for name, e := range r.entries {
		if e.handle != nil {
			e.handle.Cancel()
		}
		delete(r.entries, name)
	}
}

func (e *entry) state(busName string) PlayerState {
	return PlayerState{BusName: busName, UpdatedAt: e.updatedAt, Snapshot: e.snap}
}

// positionOnly reports whether d carries nothing but a new position.
func (d Delta) empty() bool {
	return d.Position == nil && len(d.Invalidated) == 0 &&
		d.PlaybackStatus == nil && d.LoopStatus == nil && d.Metadata == nil &&
		d.Rate == nil && d.MinimumRate == nil && d.MaximumRate == nil &&
		d.Shuffle == nil && d.Volume == nil &&
		d.CanPlay == nil && d.CanPause == nil && d.CanGoNext == nil &&
		d.CanGoPrevious == nil && d.CanSeek == nil && d.CanControl == nil
}

func (d Delta) positionOnly() bool {
	rest := d
	rest.Position = nil
	return d.Position != nil && rest.empty()
}

// applyTo merges d into s. Invalidated keys are handled first so a key both
// changed and invalidated ends up with its new value. It returns the required
// keys that were invalidated and kept.
func (d Delta) applyTo(s *Snapshot) []string {
	var kept []string
	for _, key := range d.Invalidated {
		switch key {
		case PROP_PLAYBACK_STATUS, PROP_METADATA:
			kept = append(kept, key)
		case PROP_LOOP_STATUS:
			s.LoopStatus = nil
		case PROP_RATE:
			s.Rate = nil
		case PROP_MINIMUM_RATE:
			s.MinimumRate = nil
		case PROP_MAXIMUM_RATE:
			s.MaximumRate = nil
		case PROP_SHUFFLE:
			s.Shuffle = nil
		case PROP_VOLUME:
			s.Volume = nil
		case PROP_POSITION:
			s.Position = nil
		case PROP_CAN_PLAY:
			s.Capabilities.CanPlay = false
		case PROP_CAN_PAUSE:
			s.Capabilities.CanPause = false
		case PROP_CAN_GO_NEXT:
			s.Capabilities.CanGoNext = false
		case PROP_CAN_GO_PREVIOUS:
			s.Capabilities.CanGoPrevious = false
		case PROP_CAN_SEEK:
			s.Capabilities.CanSeek = false
		case PROP_CAN_CONTROL:
			s.Capabilities.CanControl = false
		}
	}

	if d.PlaybackStatus != nil {
		s.PlaybackStatus = *d.PlaybackStatus
	}
	if d.Metadata != nil {
		s.Metadata = *d.Metadata
	}
	if d.LoopStatus != nil {
		s.LoopStatus = d.LoopStatus
	}
	if d.Rate != nil {
		s.Rate = d.Rate
	}
	if d.MinimumRate != nil {
		s.MinimumRate = d.MinimumRate
	}
	if d.MaximumRate != nil {
		s.MaximumRate = d.MaximumRate
	}
	if d.Shuffle != nil {
		s.Shuffle = d.Shuffle
	}
	if d.Volume != nil {
		s.Volume = d.Volume
	}
	if d.Position != nil {
		s.Position = d.Position
	}
	setBool(&s.Capabilities.CanPlay, d.CanPlay)
	setBool(&s.Capabilities.CanPause, d.CanPause)
	setBool(&s.Capabilities.CanGoNext, d.CanGoNext)
	setBool(&s.Capabilities.CanGoPrevious, d.CanGoPrevious)
	setBool(&s.Capabilities.CanSeek, d.CanSeek)
	setBool(&s.Capabilities.CanControl, d.CanControl)
	return kept
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
