package mpris

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
)

// fakeTransport is an in-memory bus.
type fakeTransport struct {
	mu       sync.Mutex
	names    []string
	props    map[string]map[string]dbus.Variant
	root     map[string]map[string]dbus.Variant
	position map[string]int64
	getErr   map[string]error
	getCalls map[string]int
	listErr  error
	streams  map[string]chan PropertyChange
	shut     map[chan PropertyChange]bool
	owners   chan OwnerChange
	closed   bool

	// hooks run outside the lock
	fetchHook func(busName string)
	getHook   func(busName string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		props:    make(map[string]map[string]dbus.Variant),
		root:     make(map[string]map[string]dbus.Variant),
		position: make(map[string]int64),
		getErr:   make(map[string]error),
		getCalls: make(map[string]int),
		streams:  make(map[string]chan PropertyChange),
		shut:     make(map[chan PropertyChange]bool),
		owners:   make(chan OwnerChange, 16),
	}
}

func playerProps(status PlaybackStatus, trackID string) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{
		META_TITLE: dbus.MakeVariant("Title of " + trackID),
	}
	if trackID != "" {
		meta[META_TRACK_ID] = dbus.MakeVariant(dbus.ObjectPath(trackID))
	}
	return map[string]dbus.Variant{
		PROP_PLAYBACK_STATUS: dbus.MakeVariant(string(status)),
		PROP_METADATA:        dbus.MakeVariant(meta),
		PROP_POSITION:        dbus.MakeVariant(int64(0)),
		PROP_CAN_PLAY:        dbus.MakeVariant(true),
	}
}

// addPlayer registers a player; listed players are returned by ListNames.
func (f *fakeTransport) addPlayer(name string, props map[string]dbus.Variant, listed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[name] = props
	f.root[name] = map[string]dbus.Variant{PROP_IDENTITY: dbus.MakeVariant("Fake " + name)}
	if listed {
		f.names = append(f.names, name)
	}
}

func (f *fakeTransport) setPosition(name string, pos int64) {
	f.mu.Lock()
	f.position[name] = pos
	f.mu.Unlock()
}

func (f *fakeTransport) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[name]
}

func (f *fakeTransport) subscribed(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.streams[name]
	return ok
}

// push delivers a property change to name's stream.
func (f *fakeTransport) push(name string, change PropertyChange) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.streams[name]
	if !ok {
		return false
	}
	ch <- change
	return true
}

// terminate closes name's stream as if the transport failed.
func (f *fakeTransport) terminate(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.streams[name]; ok {
		delete(f.streams, name)
		f.closeStream(ch)
	}
}

func (f *fakeTransport) closeStream(ch chan PropertyChange) {
	if !f.shut[ch] {
		f.shut[ch] = true
		close(ch)
	}
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) ListNames(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.names...), nil
}

func (f *fakeTransport) GetAllProperties(ctx context.Context, busName, iface string) (map[string]dbus.Variant, error) {
	if f.fetchHook != nil && iface == MPRIS_PLAYER_IFACE {
		f.fetchHook(busName)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	src := f.props
	if iface == MPRIS_INTERFACE {
		src = f.root
	}
	props, ok := src[busName]
	if !ok {
		return nil, errors.New("name has no owner")
	}
	return props, nil
}

func (f *fakeTransport) GetProperty(ctx context.Context, busName, iface, prop string) (dbus.Variant, error) {
	if f.getHook != nil {
		f.getHook(busName)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls[busName]++
	if err := f.getErr[busName]; err != nil {
		return dbus.Variant{}, err
	}
	return dbus.MakeVariant(f.position[busName]), nil
}

func (f *fakeTransport) SubscribeOwnerChanges(ctx context.Context) (<-chan OwnerChange, error) {
	return f.owners, nil
}

func (f *fakeTransport) SubscribePropertyChanges(ctx context.Context, busName string) (<-chan PropertyChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.props[busName]; !ok {
		return nil, errors.New("name has no owner")
	}
	ch := make(chan PropertyChange, 16)
	f.streams[busName] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.streams[busName] == ch {
			delete(f.streams, busName)
		}
		f.closeStream(ch)
	}()
	return ch, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
