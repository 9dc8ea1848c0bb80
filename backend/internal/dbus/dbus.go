package dbus

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

// DefaultTimeout is the timeout used for all D-Bus calls.
var DefaultTimeout = 5 * time.Second

// Call executes a method call bounded by ctx and DefaultTimeout, whichever ends first.
func Call(ctx context.Context, obj dbus.BusObject, method string, args ...interface{}) (*dbus.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		if errors.Is(call.Err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Method: method}
		}
		return nil, call.Err
	}
	return call, nil
}

// GetProperty retrieves a single property from a D-Bus object.
func GetProperty(ctx context.Context, obj dbus.BusObject, iface, prop string) (dbus.Variant, error) {
	call, err := Call(ctx, obj, PROP_GET, iface, prop)
	if err != nil {
		return dbus.Variant{}, err
	}
	var v dbus.Variant
	if err := call.Store(&v); err != nil {
		return dbus.Variant{}, err
	}
	return v, nil
}

// GetAllProperties retrieves all properties of a D-Bus interface in a single call.
func GetAllProperties(ctx context.Context, obj dbus.BusObject, iface string) (map[string]dbus.Variant, error) {
	call, err := Call(ctx, obj, PROP_GET_ALL, iface)
	if err != nil {
		return nil, err
	}
	var props map[string]dbus.Variant
	return props, call.Store(&props)
}

// GetObject returns a D-Bus object for the given service and object path.
func GetObject(conn *dbus.Conn, service, path string) dbus.BusObject {
	return conn.Object(service, dbus.ObjectPath(path))
}

// ListNames returns the bus names currently registered that start with prefix.
// An empty prefix returns every name.
func ListNames(ctx context.Context, conn *dbus.Conn, prefix string) ([]string, error) {
	call, err := Call(ctx, conn.BusObject(), BUS_LIST_NAMES)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := call.Store(&names); err != nil {
		return nil, err
	}
	if prefix == "" {
		return names, nil
	}
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// GetNameOwner returns the unique connection name (e.g. :1.107) owning name.
func GetNameOwner(ctx context.Context, conn *dbus.Conn, name string) (string, error) {
	call, err := Call(ctx, conn.BusObject(), BUS_GET_NAME_OWNER, name)
	if err != nil {
		return "", err
	}
	var owner string
	if err := call.Store(&owner); err != nil {
		return "", err
	}
	return owner, nil
}

// AddMatchRule subscribes to a D-Bus signal via a match rule.
func AddMatchRule(ctx context.Context, conn *dbus.Conn, rule string) error {
	_, err := Call(ctx, conn.BusObject(), BUS_ADD_MATCH, rule)
	return err
}

// RemoveMatchRule unsubscribes from a D-Bus signal match rule.
func RemoveMatchRule(ctx context.Context, conn *dbus.Conn, rule string) error {
	_, err := Call(ctx, conn.BusObject(), BUS_REMOVE_MATCH, rule)
	return err
}

// PropertiesChanged is the decoded body of an org.freedesktop.DBus.Properties.PropertiesChanged signal.
type PropertiesChanged struct {
	Interface   string
	Changed     map[string]dbus.Variant
	Invalidated []string
}

// ParsePropertiesChanged parses a PropertiesChanged signal body.
// The invalidated list is optional: some implementations omit it.
func ParsePropertiesChanged(sig *dbus.Signal) (PropertiesChanged, error) {
	if sig == nil {
		return PropertiesChanged{}, &SignalError{Reason: "channel closed"}
	}
	if len(sig.Body) < 2 {
		return PropertiesChanged{}, &SignalError{Reason: "body too short"}
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return PropertiesChanged{}, &SignalError{Reason: "failed to parse interface name"}
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return PropertiesChanged{}, &SignalError{Reason: "body[1] is not map[string]Variant"}
	}
	pc := PropertiesChanged{Interface: iface, Changed: changed}
	if len(sig.Body) > 2 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			pc.Invalidated = invalidated
		}
	}
	return pc, nil
}

// NameOwnerChanged is the decoded body of an org.freedesktop.DBus.NameOwnerChanged signal.
type NameOwnerChanged struct {
	Name     string
	OldOwner string
	NewOwner string
}

// ParseNameOwnerChanged parses a NameOwnerChanged signal body.
func ParseNameOwnerChanged(sig *dbus.Signal) (NameOwnerChanged, error) {
	if sig == nil {
		return NameOwnerChanged{}, &SignalError{Reason: "channel closed"}
	}
	if len(sig.Body) < 3 {
		return NameOwnerChanged{}, &SignalError{Reason: "body too short"}
	}
	var noc NameOwnerChanged
	var ok bool
	if noc.Name, ok = sig.Body[0].(string); !ok {
		return NameOwnerChanged{}, &SignalError{Reason: "failed to parse name"}
	}
	if noc.OldOwner, ok = sig.Body[1].(string); !ok {
		return NameOwnerChanged{}, &SignalError{Reason: "failed to parse old owner"}
	}
	if noc.NewOwner, ok = sig.Body[2].(string); !ok {
		return NameOwnerChanged{}, &SignalError{Reason: "failed to parse new owner"}
	}
	return noc, nil
}
