package mpris

import (
	"testing"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-nowplaying/backend/internal/dbus"
)

// newRoutingTransport returns a transport with no connection, enough to
// exercise signal routing.
func newRoutingTransport() *DBusTransport {
	return &DBusTransport{
		done:   make(chan struct{}),
		owners: make(map[*queue[OwnerChange]]struct{}),
		props:  make(map[string]*propertySink),
	}
}

func newSink(owner string) *propertySink {
	return &propertySink{owner: owner, q: newQueue[PropertyChange]()}
}

// queued returns the pending items of q and whether it is closed.
func queued[T any](q *queue[T]) ([]T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.items...), q.closed
}

func ownerSignal(name, oldOwner, newOwner string) *dbus.Signal {
	return &dbus.Signal{
		Sender: idbus.DBUS_INTERFACE,
		Path:   idbus.DBUS_PATH,
		Name:   idbus.SIGNAL_NAME_OWNER_CHANGED,
		Body:   []interface{}{name, oldOwner, newOwner},
	}
}

func propertiesSignal(sender string, path dbus.ObjectPath, iface string) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Path:   path,
		Name:   idbus.SIGNAL_PROPERTIES_CHANGED,
		Body: []interface{}{
			iface,
			map[string]dbus.Variant{PROP_VOLUME: dbus.MakeVariant(0.5)},
			[]string{PROP_CAN_SEEK},
		},
	}
}

func TestDBusTransportRoutesPropertyChanges(t *testing.T) {
	tests := []struct {
		name      string
		sig       *dbus.Signal
		delivered bool
	}{
		{"from unique owner", propertiesSignal(":1.5", MPRIS_PATH, MPRIS_PLAYER_IFACE), true},
		{"from well-known name", propertiesSignal(vlc, MPRIS_PATH, MPRIS_PLAYER_IFACE), true},
		{"other sender", propertiesSignal(":1.6", MPRIS_PATH, MPRIS_PLAYER_IFACE), false},
		{"other path", propertiesSignal(":1.5", "/org/mpris/Other", MPRIS_PLAYER_IFACE), false},
		{"root interface", propertiesSignal(":1.5", MPRIS_PATH, MPRIS_INTERFACE), false},
		{"malformed body", &dbus.Signal{Sender: ":1.5", Path: MPRIS_PATH, Body: []interface{}{MPRIS_PLAYER_IFACE}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newRoutingTransport()
			sink := newSink(":1.5")
			tr.addSink(vlc, sink)

			tr.handlePropertiesChanged(tt.sig)

			items, _ := queued(sink.q)
			if got := len(items) == 1; got != tt.delivered {
				t.Fatalf("delivered = %v, want %v", got, tt.delivered)
			}
			if !tt.delivered {
				return
			}
			if v := items[0].Changed[PROP_VOLUME].Value(); v != 0.5 {
				t.Errorf("Volume = %v, want 0.5", v)
			}
			if len(items[0].Invalidated) != 1 || items[0].Invalidated[0] != PROP_CAN_SEEK {
				t.Errorf("Invalidated = %v", items[0].Invalidated)
			}
		})
	}
}

func TestDBusTransportOwnerChange(t *testing.T) {
	tests := []struct {
		name       string
		sig        *dbus.Signal
		forwarded  bool
		sinkClosed bool
	}{
		{"owner lost", ownerSignal(vlc, ":1.5", ""), true, true},
		{"owner replaced", ownerSignal(vlc, ":1.5", ":1.8"), true, true},
		{"same owner announced", ownerSignal(vlc, "", ":1.5"), true, false},
		{"other player", ownerSignal(spotify, ":1.6", ""), true, false},
		{"not a player", ownerSignal("org.freedesktop.Notifications", ":1.5", ""), false, false},
		{"malformed body", &dbus.Signal{Body: []interface{}{vlc}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newRoutingTransport()
			sink := newSink(":1.5")
			tr.addSink(vlc, sink)
			q := newQueue[OwnerChange]()
			tr.owners[q] = struct{}{}

			tr.handleOwnerChanged(tt.sig)

			changes, _ := queued(q)
			if got := len(changes) == 1; got != tt.forwarded {
				t.Errorf("forwarded = %v, want %v", got, tt.forwarded)
			}
			_, closed := queued(sink.q)
			if closed != tt.sinkClosed {
				t.Errorf("sink closed = %v, want %v", closed, tt.sinkClosed)
			}
			if _, routed := tr.props[vlc]; routed == tt.sinkClosed {
				t.Errorf("sink still routed = %v, want %v", routed, !tt.sinkClosed)
			}
		})
	}
}

func TestDBusTransportSinkReplacement(t *testing.T) {
	tr := newRoutingTransport()
	first := newSink(":1.5")
	second := newSink(":1.7")

	tr.addSink(vlc, first)
	tr.addSink(vlc, second)
	if _, closed := queued(first.q); !closed {
		t.Error("replaced sink not closed")
	}
	if tr.props[vlc] != second {
		t.Error("new sink not routed")
	}

	// the first subscription's cleanup must not drop its successor
	tr.dropSink(vlc, first)
	if tr.props[vlc] != second {
		t.Error("stale cleanup removed the new sink")
	}

	tr.handlePropertiesChanged(propertiesSignal(":1.7", MPRIS_PATH, MPRIS_PLAYER_IFACE))
	if items, _ := queued(second.q); len(items) != 1 {
		t.Errorf("new sink got %d changes, want 1", len(items))
	}

	tr.dropSink(vlc, second)
	if _, ok := tr.props[vlc]; ok {
		t.Error("sink still routed after drop")
	}
}

func TestDBusTransportCloseStreams(t *testing.T) {
	tr := newRoutingTransport()
	sink := newSink(":1.5")
	tr.addSink(vlc, sink)
	q := newQueue[OwnerChange]()
	tr.owners[q] = struct{}{}

	tr.closeStreams()

	if _, closed := queued(sink.q); !closed {
		t.Error("property stream left open")
	}
	if _, closed := queued(q); !closed {
		t.Error("owner stream left open")
	}
	if len(tr.props) != 0 || len(tr.owners) != 0 {
		t.Errorf("props = %d owners = %d, want none", len(tr.props), len(tr.owners))
	}
	// pushes after close are refused
	if q.push(OwnerChange{Name: vlc}) {
		t.Error("push accepted on closed stream")
	}
}
