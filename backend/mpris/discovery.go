package mpris

import (
	"context"
	"errors"
	"sort"
)

// listCandidates enumerates the player names currently on the bus. It is
// used once, to seed the registry; a failure is fatal for the backend.
func listCandidates(ctx context.Context, t Transport) ([]string, error) {
	names, err := t.ListNames(ctx, MPRIS_PREFIX+".")
	if err != nil {
		var unavailable *TransportUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &TransportUnavailableError{Op: "ListNames", Err: err}
	}

	seen := make(map[string]struct{}, len(names))
	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if validateBusName(name) != nil {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)
	return candidates, nil
}
