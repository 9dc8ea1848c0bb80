package mpris

import (
	"errors"
	"fmt"
)

// PlayerNotFoundError indicates that a player doesn't exist
type PlayerNotFoundError struct {
	BusName string
}

func (e *PlayerNotFoundError) Error() string {
	return "player not found: " + e.BusName
}

// InvalidBusNameError indicates that a busName is invalid
type InvalidBusNameError struct {
	BusName string
	Reason  string
}

func (e *InvalidBusNameError) Error() string {
	return "invalid player name: " + e.Reason
}

// TransportUnavailableError wraps a failure to reach the session bus.
type TransportUnavailableError struct {
	Op  string
	Err error
}

func (e *TransportUnavailableError) Error() string {
	return fmt.Sprintf("transport unavailable (%s): %v", e.Op, e.Err)
}

func (e *TransportUnavailableError) Unwrap() error { return e.Err }

// MalformedSourceError indicates that a required property could not be decoded.
type MalformedSourceError struct {
	BusName string
	Field   string
	Reason  string
}

func (e *MalformedSourceError) Error() string {
	if e.BusName == "" {
		return fmt.Sprintf("malformed source: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed source %s: %s: %s", e.BusName, e.Field, e.Reason)
}

// PartialDecodeWarning reports an optional property that was dropped.
type PartialDecodeWarning struct {
	Field  string
	Reason string
}

func (w PartialDecodeWarning) Error() string {
	return w.Field + ": " + w.Reason
}

// SubscriptionTerminatedError reports a property stream that ended while the
// source was still tracked.
type SubscriptionTerminatedError struct {
	BusName string
	Err     error
}

func (e *SubscriptionTerminatedError) Error() string {
	if e.Err == nil {
		return "subscription terminated: " + e.BusName
	}
	return fmt.Sprintf("subscription terminated: %s: %v", e.BusName, e.Err)
}

func (e *SubscriptionTerminatedError) Unwrap() error { return e.Err }

var (
	// ErrNoEntry is returned by ApplyDelta when there is no entry for the
	// name, or not the one the caller expected.
	ErrNoEntry = errors.New("no matching entry")
	// ErrNotPlaying is returned by ApplyDelta when a whilePlaying guard fails.
	ErrNotPlaying = errors.New("entry not playing")
	// ErrStalePollTarget is returned when a position poll result no longer
	// has a Playing entry to land on.
	ErrStalePollTarget = errors.New("stale poll target")
)
