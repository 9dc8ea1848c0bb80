package mpris

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
)

// PlaybackStatus represents the current playback state
type PlaybackStatus string

// LoopStatus represents the current loop/repeat state
type LoopStatus string

func (s PlaybackStatus) valid() bool {
	switch s {
	case StatusPlaying, StatusPaused, StatusStopped:
		return true
	}
	return false
}

func (s LoopStatus) valid() bool {
	switch s {
	case LoopNone, LoopTrack, LoopPlaylist:
		return true
	}
	return false
}

// Snapshot is the decoded property state of one player.
// Pointer and slice fields are nil when the player did not report them.
// Values are replaced, never written through, so copies may share them.
type Snapshot struct {
	Identity     string `json:"identity,omitempty"`
	DesktopEntry string `json:"desktop_entry,omitempty"`

	PlaybackStatus PlaybackStatus `json:"playback_status"`
	LoopStatus     *LoopStatus    `json:"loop_status,omitempty"`
	Rate           *float64       `json:"rate,omitempty"`
	MinimumRate    *float64       `json:"minimum_rate,omitempty"`
	MaximumRate    *float64       `json:"maximum_rate,omitempty"`
	Shuffle        *bool          `json:"shuffle,omitempty"`
	Metadata       Metadata       `json:"metadata"`
	Volume         *float64       `json:"volume,omitempty"`
	Position       *int64         `json:"position,omitempty"`
	Capabilities   Capabilities   `json:"capabilities"`
}

// Metadata is the track descriptor. Only TrackID is mandatory.
type Metadata struct {
	TrackID        string   `json:"track_id"`
	Length         *int64   `json:"length,omitempty"`
	ArtURL         *string  `json:"art_url,omitempty"`
	Album          *string  `json:"album,omitempty"`
	AlbumArtist    []string `json:"album_artist,omitempty"`
	Artist         []string `json:"artist,omitempty"`
	AsText         *string  `json:"lyrics,omitempty"`
	AudioBPM       *int32   `json:"audio_bpm,omitempty"`
	AutoRating     *float64 `json:"auto_rating,omitempty"`
	Comment        []string `json:"comment,omitempty"`
	Composer       []string `json:"composer,omitempty"`
	ContentCreated *string  `json:"content_created,omitempty"`
	DiscNumber     *int32   `json:"disc_number,omitempty"`
	FirstUsed      *string  `json:"first_used,omitempty"`
	Genre          []string `json:"genre,omitempty"`
	LastUsed       *string  `json:"last_used,omitempty"`
	Lyricist       []string `json:"lyricist,omitempty"`
	Title          *string  `json:"title,omitempty"`
	TrackNumber    *int32   `json:"track_number,omitempty"`
	URL            *string  `json:"url,omitempty"`
	UseCount       *int32   `json:"use_count,omitempty"`
	UserRating     *float64 `json:"user_rating,omitempty"`
}

// Capabilities represents the actions supported by a player
type Capabilities struct {
	CanPlay       bool `json:"can_play"`
	CanPause      bool `json:"can_pause"`
	CanGoNext     bool `json:"can_go_next"`
	CanGoPrevious bool `json:"can_go_previous"`
	CanSeek       bool `json:"can_seek"`
	CanControl    bool `json:"can_control"`
}

// Delta is a partial update. Nil fields are left untouched; Invalidated names
// properties that revert to absent.
type Delta struct {
	PlaybackStatus *PlaybackStatus
	LoopStatus     *LoopStatus
	Rate           *float64
	MinimumRate    *float64
	MaximumRate    *float64
	Shuffle        *bool
	Metadata       *Metadata
	Volume         *float64
	Position       *int64

	CanPlay       *bool
	CanPause      *bool
	CanGoNext     *bool
	CanGoPrevious *bool
	CanSeek       *bool
	CanControl    *bool

	Invalidated []string
}

// OwnerChange is one NameOwnerChanged notification.
type OwnerChange struct {
	Name     string
	OldOwner string
	NewOwner string
}

// PropertyChange is one PropertiesChanged notification for the player interface.
type PropertyChange struct {
	Changed     map[string]dbus.Variant
	Invalidated []string
}

// Transport is the bus the engine runs on. Streams are closed when ctx is
// cancelled; a property stream closed before that has terminated.
type Transport interface {
	ListNames(ctx context.Context, prefix string) ([]string, error)
	GetAllProperties(ctx context.Context, busName, iface string) (map[string]dbus.Variant, error)
	GetProperty(ctx context.Context, busName, iface, prop string) (dbus.Variant, error)
	SubscribeOwnerChanges(ctx context.Context) (<-chan OwnerChange, error)
	SubscribePropertyChanges(ctx context.Context, busName string) (<-chan PropertyChange, error)
	Close() error
}

// Subscription is the handle a registry entry owns. Cancel must not block.
type Subscription interface {
	Cancel()
}

// PlayerState is the payload of player.added and player.updated events.
type PlayerState struct {
	BusName   string    `json:"bus_name"`
	UpdatedAt time.Time `json:"updated_at"`
	Snapshot
}

// PositionData is the payload of player.position events.
type PositionData struct {
	BusName  string `json:"bus_name"`
	Position int64  `json:"position"`
}

// RemovedData is the payload of player.removed events.
type RemovedData struct {
	BusName string `json:"bus_name"`
}
