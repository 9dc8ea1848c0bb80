package api

import (
	"net/http"

	"github.com/b0bbywan/go-odio-nowplaying/backend/mpris"
)

// playerSource is what the player handlers read from.
type playerSource interface {
	ListPlayers() []mpris.PlayerState
	GetPlayer(busName string) (mpris.PlayerState, error)
}

// ListPlayersHandler returns every tracked player, sorted by bus name
func ListPlayersHandler(m playerSource) http.HandlerFunc {
	return JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return m.ListPlayers(), nil
	})
}

// GetPlayerHandler returns the player named by the {player} path segment
func GetPlayerHandler(m playerSource) http.HandlerFunc {
	return withPlayer(func(w http.ResponseWriter, r *http.Request, busName string) (any, error) {
		return m.GetPlayer(busName)
	})
}

// withPlayer extracts the busName and calls next
func withPlayer(
	next func(w http.ResponseWriter, r *http.Request, busName string) (any, error),
) http.HandlerFunc {
	return JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return next(w, r, r.PathValue("player"))
	})
}
