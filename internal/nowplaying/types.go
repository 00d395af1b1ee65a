package nowplaying

import "time"

// PlaybackStatus is the transport status of the monitored room.
type PlaybackStatus string

const (
	StatusPlaying  PlaybackStatus = "PLAYING"
	StatusPaused   PlaybackStatus = "PAUSED_PLAYBACK"
	StatusStopped  PlaybackStatus = "STOPPED"
	StatusAPIError PlaybackStatus = "API_ERROR"
	StatusUnknown  PlaybackStatus = "UNKNOWN"
)

// SourceType classifies what the room is playing from.
type SourceType string

const (
	SourceTrack     SourceType = "track"
	SourceRadio     SourceType = "radio"
	SourceLineIn    SourceType = "line_in"
	SourceTV        SourceType = "tv"
	SourceBluetooth SourceType = "bluetooth"
)

// UpdateSource identifies the channel an update arrived on.
type UpdateSource string

const (
	UpdateSourcePoll UpdateSource = "poll"
	UpdateSourcePush UpdateSource = "push"
)

// Display names used for sources without track metadata.
const (
	DisplayNameBluetooth = "Bluetooth"
	DisplayNameTV        = "TV"
	DisplayNameLineIn    = "Line-In"
	DisplayNameRadio     = "Radio"
)

// NormalizedFields is the classifier output for a single payload.
type NormalizedFields struct {
	Status          PlaybackStatus
	SourceType      SourceType
	TrackName       string
	Artist          string
	Album           string
	StationName     string
	DurationSeconds int
	ArtworkURI      string
	RawURI          string
}

// PlaybackSnapshot is a consistent copy of the current playback record.
type PlaybackSnapshot struct {
	Room            string         `json:"room"`
	Status          PlaybackStatus `json:"status"`
	SourceType      SourceType     `json:"source_type"`
	TrackName       string         `json:"track_name"`
	Artist          string         `json:"artist"`
	Album           string         `json:"album"`
	StationName     string         `json:"station_name"`
	DurationSeconds int            `json:"duration_seconds"`
	ArtworkURI      string         `json:"artwork_uri"`
	RawURI          string         `json:"raw_uri"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsPlaying reports whether the snapshot status is PLAYING.
func (s PlaybackSnapshot) IsPlaying() bool {
	return s.Status == StatusPlaying
}

// ChangeResult describes what an applied update changed.
type ChangeResult struct {
	Status         PlaybackStatus `json:"status"`
	IsNewTrack     bool           `json:"is_new_track"`
	ArtworkChanged bool           `json:"artwork_changed"`
	BecameInactive bool           `json:"became_inactive"`
	StatusChanged  bool           `json:"status_changed"`
	// Resumed is set when playback returns to PLAYING with an unchanged identity.
	Resumed bool `json:"resumed"`
	// Ignored is set when the update was discarded without touching the store.
	Ignored bool `json:"ignored"`
}

// Event is published to subscribers after an update that warrants a redraw.
type Event struct {
	Snapshot PlaybackSnapshot `json:"snapshot"`
	Change   ChangeResult     `json:"change"`
	Source   UpdateSource     `json:"source"`
}
