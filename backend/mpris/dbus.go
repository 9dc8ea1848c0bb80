package mpris

import (
	"context"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-nowplaying/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

// validateBusName validates that a busName is MPRIS-compliant
func validateBusName(busName string) error {
	if busName == "" {
		return &InvalidBusNameError{BusName: busName, Reason: "empty bus name"}
	}
	if !strings.HasPrefix(busName, MPRIS_PREFIX+".") {
		return &InvalidBusNameError{BusName: busName, Reason: "must start with org.mpris.MediaPlayer2."}
	}
	// Check that it doesn't contain dangerous characters
	if strings.Contains(busName, "..") || strings.Contains(busName, "/") || strings.ContainsAny(busName, "\x00\r\n") {
		return &InvalidBusNameError{BusName: busName, Reason: "contains illegal characters"}
	}
	return nil
}

func ownerMatchRule() string {
	return "type='signal',sender='" + idbus.DBUS_INTERFACE + "',interface='" + idbus.DBUS_INTERFACE +
		"',member='NameOwnerChanged',arg0namespace='" + MPRIS_PREFIX + "'"
}

func propertiesMatchRule(busName string) string {
	return "type='signal',sender='" + busName + "',path='" + MPRIS_PATH +
		"',interface='" + idbus.DBUS_PROP_IFACE + "',member='PropertiesChanged',arg0='" + MPRIS_PLAYER_IFACE + "'"
}

type propertySink struct {
	owner string
	q     *queue[PropertyChange]
}

// DBusTransport is the Transport over a godbus connection. A single
// dispatcher reads every signal and routes it to the matching stream.
type DBusTransport struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	owners map[*queue[OwnerChange]]struct{}
	props  map[string]*propertySink
}

// ConnectSessionBus opens a private session bus connection.
func ConnectSessionBus() (*DBusTransport, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, &TransportUnavailableError{Op: "connect", Err: err}
	}
	return NewDBusTransport(conn), nil
}

// NewDBusTransport takes ownership of conn; Close closes it.
func NewDBusTransport(conn *dbus.Conn) *DBusTransport {
	t := &DBusTransport{
		conn:    conn,
		signals: make(chan *dbus.Signal, 64),
		done:    make(chan struct{}),
		owners:  make(map[*queue[OwnerChange]]struct{}),
		props:   make(map[string]*propertySink),
	}
	conn.Signal(t.signals)
	go t.dispatch()
	return t
}

func (t *DBusTransport) ListNames(ctx context.Context, prefix string) ([]string, error) {
	names, err := idbus.ListNames(ctx, t.conn, prefix)
	if err != nil {
		return nil, &TransportUnavailableError{Op: "ListNames", Err: err}
	}
	return names, nil
}

func (t *DBusTransport) GetAllProperties(ctx context.Context, busName, iface string) (map[string]dbus.Variant, error) {
	obj := idbus.GetObject(t.conn, busName, MPRIS_PATH)
	props, err := idbus.GetAllProperties(ctx, obj, iface)
	if err != nil {
		return nil, &TransportUnavailableError{Op: "GetAll " + busName, Err: err}
	}
	return props, nil
}

func (t *DBusTransport) GetProperty(ctx context.Context, busName, iface, prop string) (dbus.Variant, error) {
	obj := idbus.GetObject(t.conn, busName, MPRIS_PATH)
	v, err := idbus.GetProperty(ctx, obj, iface, prop)
	if err != nil {
		return dbus.Variant{}, &TransportUnavailableError{Op: "Get " + busName + " " + prop, Err: err}
	}
	return v, nil
}

// SubscribeOwnerChanges streams the ownership changes of player names.
func (t *DBusTransport) SubscribeOwnerChanges(ctx context.Context) (<-chan OwnerChange, error) {
	rule := ownerMatchRule()
	if err := idbus.AddMatchRule(ctx, t.conn, rule); err != nil {
		return nil, &TransportUnavailableError{Op: "AddMatch", Err: err}
	}

	q := newQueue[OwnerChange]()
	t.mu.Lock()
	t.owners[q] = struct{}{}
	t.mu.Unlock()
	go q.run(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-t.done:
		}
		t.mu.Lock()
		delete(t.owners, q)
		t.mu.Unlock()
		q.close()
		t.removeMatch(rule)
	}()
	return q.out, nil
}

// SubscribePropertyChanges streams the player interface changes of busName.
// The stream closes without ctx being done when busName loses its owner.
func (t *DBusTransport) SubscribePropertyChanges(ctx context.Context, busName string) (<-chan PropertyChange, error) {
	owner, err := idbus.GetNameOwner(ctx, t.conn, busName)
	if err != nil {
		return nil, &TransportUnavailableError{Op: "GetNameOwner " + busName, Err: err}
	}
	rule := propertiesMatchRule(busName)
	if err := idbus.AddMatchRule(ctx, t.conn, rule); err != nil {
		return nil, &TransportUnavailableError{Op: "AddMatch", Err: err}
	}

	sink := &propertySink{owner: owner, q: newQueue[PropertyChange]()}
	t.addSink(busName, sink)
	go sink.q.run(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-t.done:
		}
		t.dropSink(busName, sink)
		t.removeMatch(rule)
	}()
	logger.Debug("[dbus] subscribed to %s (owner %s)", busName, owner)
	return sink.q.out, nil
}

// addSink routes busName's changes to sink, ending the stream it replaces.
func (t *DBusTransport) addSink(busName string, sink *propertySink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.props[busName]; ok {
		old.q.close()
	}
	t.props[busName] = sink
}

func (t *DBusTransport) dropSink(busName string, sink *propertySink) {
	t.mu.Lock()
	if t.props[busName] == sink {
		delete(t.props, busName)
	}
	t.mu.Unlock()
	sink.q.close()
}

func (t *DBusTransport) removeMatch(rule string) {
	select {
	case <-t.done:
		return
	default:
	}
	if err := idbus.RemoveMatchRule(context.Background(), t.conn, rule); err != nil {
		logger.Debug("[dbus] failed to remove match rule: %v", err)
	}
}

func (t *DBusTransport) dispatch() {
	for {
		select {
		case <-t.done:
			return
		case sig, ok := <-t.signals:
			if !ok {
				logger.Warn("[dbus] signal channel closed")
				t.closeStreams()
				return
			}
			switch sig.Name {
			case idbus.SIGNAL_NAME_OWNER_CHANGED:
				t.handleOwnerChanged(sig)
			case idbus.SIGNAL_PROPERTIES_CHANGED:
				t.handlePropertiesChanged(sig)
			}
		}
	}
}

func (t *DBusTransport) handleOwnerChanged(sig *dbus.Signal) {
	noc, err := idbus.ParseNameOwnerChanged(sig)
	if err != nil {
		logger.Debug("[dbus] %v", err)
		return
	}
	if !strings.HasPrefix(noc.Name, MPRIS_PREFIX+".") {
		return
	}

	change := OwnerChange{Name: noc.Name, OldOwner: noc.OldOwner, NewOwner: noc.NewOwner}

	t.mu.Lock()
	defer t.mu.Unlock()
	// the stream of the previous owner is over
	if sink, ok := t.props[noc.Name]; ok && sink.owner != noc.NewOwner {
		delete(t.props, noc.Name)
		sink.q.close()
	}
	for q := range t.owners {
		q.push(change)
	}
}

func (t *DBusTransport) handlePropertiesChanged(sig *dbus.Signal) {
	if string(sig.Path) != MPRIS_PATH {
		return
	}
	pc, err := idbus.ParsePropertiesChanged(sig)
	if err != nil {
		logger.Debug("[dbus] %v", err)
		return
	}
	if pc.Interface != MPRIS_PLAYER_IFACE {
		return
	}

	change := PropertyChange{Changed: pc.Changed, Invalidated: pc.Invalidated}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name, sink := range t.props {
		if sink.owner == sig.Sender || name == sig.Sender {
			sink.q.push(change)
		}
	}
}

func (t *DBusTransport) closeStreams() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for q := range t.owners {
		q.close()
		delete(t.owners, q)
	}
	for name, sink := range t.props {
		sink.q.close()
		delete(t.props, name)
	}
}

// Close ends every stream and closes the connection.
func (t *DBusTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		t.conn.RemoveSignal(t.signals)
		t.closeStreams()
		err = t.conn.Close()
	})
	return err
}
