package events

import "slices"

const (
	TypeServerInfo     = "server.info"
	TypePlayerAdded    = "player.added"
	TypePlayerUpdated  = "player.updated"
	TypePlayerPosition = "player.position"
	TypePlayerRemoved  = "player.removed"
)

// BackendTypes maps a backend name to the event types it emits.
var BackendTypes = map[string][]string{
	"mpris": {TypePlayerAdded, TypePlayerUpdated, TypePlayerPosition, TypePlayerRemoved},
}

type Event struct {
	Type string
	Data any
}

// FilterTypes returns a filter passing only the given types, or nil (pass-all) when types is empty.
func FilterTypes(types []string) func(Event) bool {
	return NewFilter(types, nil)
}

// FilterBackend returns a filter passing the types of the named backends.
// Unknown names are ignored; nil is returned when nothing is left to match.
func FilterBackend(names []string) func(Event) bool {
	var types []string
	for _, name := range names {
		types = append(types, BackendTypes[name]...)
	}
	return FilterTypes(types)
}

// NewFilter combines an include list and an exclude list. An empty include list
// passes every type not excluded. Returns nil when both lists are empty.
func NewFilter(include, exclude []string) func(Event) bool {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	include = slices.Clone(include)
	exclude = slices.Clone(exclude)
	return func(e Event) bool {
		if slices.Contains(exclude, e.Type) {
			return false
		}
		return len(include) == 0 || slices.Contains(include, e.Type)
	}
}
