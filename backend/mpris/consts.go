package mpris

const (
	// MPRIS D-Bus constants
	MPRIS_PREFIX       = "org.mpris.MediaPlayer2"
	MPRIS_PATH         = "/org/mpris/MediaPlayer2"
	MPRIS_INTERFACE    = "org.mpris.MediaPlayer2"
	MPRIS_PLAYER_IFACE = "org.mpris.MediaPlayer2.Player"
)

// Player interface property names
const (
	PROP_PLAYBACK_STATUS = "PlaybackStatus"
	PROP_LOOP_STATUS     = "LoopStatus"
	PROP_RATE            = "Rate"
	PROP_SHUFFLE         = "Shuffle"
	PROP_METADATA        = "Metadata"
	PROP_VOLUME          = "Volume"
	PROP_POSITION        = "Position"
	PROP_MINIMUM_RATE    = "MinimumRate"
	PROP_MAXIMUM_RATE    = "MaximumRate"
	PROP_CAN_GO_NEXT     = "CanGoNext"
	PROP_CAN_GO_PREVIOUS = "CanGoPrevious"
	PROP_CAN_PLAY        = "CanPlay"
	PROP_CAN_PAUSE       = "CanPause"
	PROP_CAN_SEEK        = "CanSeek"
	PROP_CAN_CONTROL     = "CanControl"

	// root interface
	PROP_IDENTITY      = "Identity"
	PROP_DESKTOP_ENTRY = "DesktopEntry"
)

// Metadata map keys, see https://www.freedesktop.org/wiki/Specifications/mpris-spec/metadata/
const (
	META_TRACK_ID        = "mpris:trackid"
	META_LENGTH          = "mpris:length"
	META_ART_URL         = "mpris:artUrl"
	META_ALBUM           = "xesam:album"
	META_ALBUM_ARTIST    = "xesam:albumArtist"
	META_ARTIST          = "xesam:artist"
	META_AS_TEXT         = "xesam:asText"
	META_AUDIO_BPM       = "xesam:audioBPM"
	META_AUTO_RATING     = "xesam:autoRating"
	META_COMMENT         = "xesam:comment"
	META_COMPOSER        = "xesam:composer"
	META_CONTENT_CREATED = "xesam:contentCreated"
	META_DISC_NUMBER     = "xesam:discNumber"
	META_FIRST_USED      = "xesam:firstUsed"
	META_GENRE           = "xesam:genre"
	META_LAST_USED       = "xesam:lastUsed"
	META_LYRICIST        = "xesam:lyricist"
	META_TITLE           = "xesam:title"
	META_TRACK_NUMBER    = "xesam:trackNumber"
	META_URL             = "xesam:url"
	META_USE_COUNT       = "xesam:useCount"
	META_USER_RATING     = "xesam:userRating"
)

// MPRIS_NO_TRACK is the well-known track ID meaning "no current track".
const MPRIS_NO_TRACK = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)
