package mpris

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-nowplaying/backend/internal/dbus"
)

// decoder accumulates warnings for optional fields while decoding one bag.
type decoder struct {
	warnings []PartialDecodeWarning
}

func (d *decoder) warn(field string, v dbus.Variant, want string) {
	d.warnings = append(d.warnings, PartialDecodeWarning{
		Field:  field,
		Reason: fmt.Sprintf("expected %s, got %s", want, v.Signature()),
	})
}

// drop records a required property that failed to decode in a notification.
func (d *decoder) drop(err error) {
	w := PartialDecodeWarning{Reason: err.Error()}
	var malformed *MalformedSourceError
	if errors.As(err, &malformed) {
		w.Field, w.Reason = malformed.Field, malformed.Reason
	}
	d.warnings = append(d.warnings, w)
}

func (d *decoder) toString(field string, v dbus.Variant) *string {
	s, ok := idbus.ExtractString(v)
	if !ok {
		d.warn(field, v, "string")
		return nil
	}
	return &s
}

func (d *decoder) toStrings(field string, v dbus.Variant) []string {
	l, ok := idbus.ExtractStringList(v)
	if !ok {
		d.warn(field, v, "string list")
		return nil
	}
	return l
}

func (d *decoder) toBool(field string, v dbus.Variant) *bool {
	b, ok := idbus.ExtractBool(v)
	if !ok {
		d.warn(field, v, "boolean")
		return nil
	}
	return &b
}

func (d *decoder) toInt64(field string, v dbus.Variant) *int64 {
	n, ok := idbus.ExtractInt64(v)
	if !ok {
		d.warn(field, v, "int64")
		return nil
	}
	return &n
}

func (d *decoder) toInt32(field string, v dbus.Variant) *int32 {
	n, ok := idbus.ExtractInt32(v)
	if !ok {
		d.warn(field, v, "int32")
		return nil
	}
	return &n
}

// float returns the value when it lies within [min, max].
func (d *decoder) toFloat(field string, v dbus.Variant, min, max float64) *float64 {
	f, ok := idbus.ExtractFloat64(v)
	if !ok {
		d.warn(field, v, "double")
		return nil
	}
	if f < min || f > max {
		d.warnings = append(d.warnings, PartialDecodeWarning{
			Field:  field,
			Reason: fmt.Sprintf("%v out of range [%v, %v]", f, min, max),
		})
		return nil
	}
	return &f
}

func (d *decoder) loopStatus(v dbus.Variant) *LoopStatus {
	s, ok := idbus.ExtractString(v)
	if !ok {
		d.warn(PROP_LOOP_STATUS, v, "string")
		return nil
	}
	ls := LoopStatus(s)
	if !ls.valid() {
		d.warnings = append(d.warnings, PartialDecodeWarning{Field: PROP_LOOP_STATUS, Reason: "unknown value " + s})
		return nil
	}
	return &ls
}

const maxRate = 1e6

// decodeDelta decodes the player interface properties present in props.
// With strict set, a present but undecodable required property fails the
// whole bag; otherwise it is dropped like any other field.
func decodeDelta(props map[string]dbus.Variant, invalidated []string, strict bool) (Delta, []PartialDecodeWarning, error) {
	var d decoder
	delta := Delta{Invalidated: invalidated}

	for key, v := range props {
		switch key {
		case PROP_PLAYBACK_STATUS:
			status, err := decodePlaybackStatus(v)
			if err != nil {
				if strict {
					return Delta{}, nil, err
				}
				d.drop(err)
				continue
			}
			delta.PlaybackStatus = &status
		case PROP_METADATA:
			meta, warnings, err := decodeMetadata(v)
			if err != nil {
				if strict {
					return Delta{}, nil, err
				}
				d.drop(err)
				continue
			}
			d.warnings = append(d.warnings, warnings...)
			delta.Metadata = &meta
		case PROP_LOOP_STATUS:
			delta.LoopStatus = d.loopStatus(v)
		case PROP_RATE:
			delta.Rate = d.toFloat(key, v, 0, maxRate)
		case PROP_MINIMUM_RATE:
			delta.MinimumRate = d.toFloat(key, v, 0, maxRate)
		case PROP_MAXIMUM_RATE:
			delta.MaximumRate = d.toFloat(key, v, 0, maxRate)
		case PROP_SHUFFLE:
			delta.Shuffle = d.toBool(key, v)
		case PROP_VOLUME:
			delta.Volume = d.toFloat(key, v, 0, 1)
		case PROP_POSITION:
			delta.Position = d.toInt64(key, v)
		case PROP_CAN_PLAY:
			delta.CanPlay = d.toBool(key, v)
		case PROP_CAN_PAUSE:
			delta.CanPause = d.toBool(key, v)
		case PROP_CAN_GO_NEXT:
			delta.CanGoNext = d.toBool(key, v)
		case PROP_CAN_GO_PREVIOUS:
			delta.CanGoPrevious = d.toBool(key, v)
		case PROP_CAN_SEEK:
			delta.CanSeek = d.toBool(key, v)
		case PROP_CAN_CONTROL:
			delta.CanControl = d.toBool(key, v)
		}
	}

	return delta, d.warnings, nil
}

// DecodeSnapshot decodes a full GetAll reply of the player interface.
// It fails with a *MalformedSourceError when PlaybackStatus or the track id
// is missing or undecodable; any other bad field is dropped and reported.
func DecodeSnapshot(props map[string]dbus.Variant) (Snapshot, []PartialDecodeWarning, error) {
	if _, ok := props[PROP_PLAYBACK_STATUS]; !ok {
		return Snapshot{}, nil, &MalformedSourceError{Field: PROP_PLAYBACK_STATUS, Reason: "missing"}
	}
	if _, ok := props[PROP_METADATA]; !ok {
		return Snapshot{}, nil, &MalformedSourceError{Field: META_TRACK_ID, Reason: "missing"}
	}

	delta, warnings, err := decodeDelta(props, nil, true)
	if err != nil {
		return Snapshot{}, nil, err
	}

	var snap Snapshot
	delta.applyTo(&snap)
	return snap, warnings, nil
}

// DecodeDelta decodes one PropertiesChanged notification. A bad field, even
// PlaybackStatus or Metadata, only drops that field. The notification fails
// as a whole when it carried properties and none of them decoded.
func DecodeDelta(change PropertyChange) (Delta, []PartialDecodeWarning, error) {
	d, warnings, err := decodeDelta(change.Changed, change.Invalidated, false)
	if err != nil {
		return Delta{}, nil, err
	}
	if len(warnings) > 0 && d.empty() {
		return Delta{}, nil, &MalformedSourceError{Field: "PropertiesChanged", Reason: "no decodable property"}
	}
	return d, warnings, nil
}

// DecodePosition decodes the reply of a Position Get call.
func DecodePosition(v dbus.Variant) (int64, error) {
	n, ok := idbus.ExtractInt64(v)
	if !ok {
		return 0, PartialDecodeWarning{Field: PROP_POSITION, Reason: "expected int64, got " + v.Signature().String()}
	}
	return n, nil
}

// decodeRoot fills the root interface fields. Nothing there is required.
func decodeRoot(props map[string]dbus.Variant, snap *Snapshot) []PartialDecodeWarning {
	var d decoder
	if v, ok := props[PROP_IDENTITY]; ok {
		if s := d.toString(PROP_IDENTITY, v); s != nil {
			snap.Identity = *s
		}
	}
	if v, ok := props[PROP_DESKTOP_ENTRY]; ok {
		if s := d.toString(PROP_DESKTOP_ENTRY, v); s != nil {
			snap.DesktopEntry = *s
		}
	}
	return d.warnings
}

func decodePlaybackStatus(v dbus.Variant) (PlaybackStatus, error) {
	s, ok := idbus.ExtractString(v)
	if !ok {
		return "", &MalformedSourceError{Field: PROP_PLAYBACK_STATUS, Reason: "expected string, got " + v.Signature().String()}
	}
	status := PlaybackStatus(s)
	if !status.valid() {
		return "", &MalformedSourceError{Field: PROP_PLAYBACK_STATUS, Reason: "unknown value " + s}
	}
	return status, nil
}

// decodeMetadata decodes the a{sv} metadata map. The track id is required.
func decodeMetadata(v dbus.Variant) (Metadata, []PartialDecodeWarning, error) {
	m, ok := idbus.ExtractVariantMap(v)
	if !ok {
		return Metadata{}, nil, &MalformedSourceError{Field: PROP_METADATA, Reason: "expected a{sv}, got " + v.Signature().String()}
	}

	rawID, ok := m[META_TRACK_ID]
	if !ok {
		return Metadata{}, nil, &MalformedSourceError{Field: META_TRACK_ID, Reason: "missing"}
	}
	trackID, ok := idbus.ExtractString(rawID)
	if !ok || trackID == "" {
		return Metadata{}, nil, &MalformedSourceError{Field: META_TRACK_ID, Reason: "expected object path, got " + rawID.Signature().String()}
	}

	var d decoder
	meta := Metadata{TrackID: trackID}
	for key, val := range m {
		switch key {
		case META_LENGTH:
			// some players (Spotify) send uint64
			meta.Length = d.toInt64(key, val)
		case META_ART_URL:
			meta.ArtURL = d.toString(key, val)
		case META_ALBUM:
			meta.Album = d.toString(key, val)
		case META_ALBUM_ARTIST:
			meta.AlbumArtist = d.toStrings(key, val)
		case META_ARTIST:
			meta.Artist = d.toStrings(key, val)
		case META_AS_TEXT:
			meta.AsText = d.toString(key, val)
		case META_AUDIO_BPM:
			meta.AudioBPM = d.toInt32(key, val)
		case META_AUTO_RATING:
			meta.AutoRating = d.toFloat(key, val, 0, 1)
		case META_COMMENT:
			meta.Comment = d.toStrings(key, val)
		case META_COMPOSER:
			meta.Composer = d.toStrings(key, val)
		case META_CONTENT_CREATED:
			meta.ContentCreated = d.toString(key, val)
		case META_DISC_NUMBER:
			meta.DiscNumber = d.toInt32(key, val)
		case META_FIRST_USED:
			meta.FirstUsed = d.toString(key, val)
		case META_GENRE:
			meta.Genre = d.toStrings(key, val)
		case META_LAST_USED:
			meta.LastUsed = d.toString(key, val)
		case META_LYRICIST:
			meta.Lyricist = d.toStrings(key, val)
		case META_TITLE:
			meta.Title = d.toString(key, val)
		case META_TRACK_NUMBER:
			meta.TrackNumber = d.toInt32(key, val)
		case META_URL:
			meta.URL = d.toString(key, val)
		case META_USE_COUNT:
			meta.UseCount = d.toInt32(key, val)
		case META_USER_RATING:
			meta.UserRating = d.toFloat(key, val, 0, 1)
		}
	}
	return meta, d.warnings, nil
}
