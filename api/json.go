package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/b0bbywan/go-odio-nowplaying/backend/mpris"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

func JSONHandler(h func(http.ResponseWriter, *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h(w, r)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Warn("[api] failed to encode %s response: %v", r.URL.Path, err)
		}
	}
}

// statusFor maps backend errors to HTTP status codes
func statusFor(err error) int {
	var invalidBusNameErr *mpris.InvalidBusNameError
	if errors.As(err, &invalidBusNameErr) {
		return http.StatusBadRequest
	}

	var notFoundErr *mpris.PlayerNotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}
