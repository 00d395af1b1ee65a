package sonosapi

import "encoding/json"

// WebhookTypeTransportState is the push event type carrying playback state.
const WebhookTypeTransportState = "transport-state"

// StatePayload is the room state returned by GET /{room}/state and carried
// inside transport-state webhooks. Every field is optional; missing keys
// decode to their zero value.
type StatePayload struct {
	// PlaybackState is nil when the key is absent.
	PlaybackState *string   `json:"playbackState,omitempty"`
	CurrentTrack  TrackInfo `json:"currentTrack"`
	NextTrack     TrackInfo `json:"nextTrack"`
	PlayMode      PlayMode  `json:"playMode"`
	Volume        int       `json:"volume"`
	Mute          bool      `json:"mute"`
	ElapsedTime   int       `json:"elapsedTime"`
}

// TrackInfo describes the current or next track.
type TrackInfo struct {
	Type                string `json:"type"`
	URI                 string `json:"uri"`
	Title               string `json:"title"`
	Artist              string `json:"artist"`
	Album               string `json:"album"`
	Duration            int    `json:"duration"`
	AlbumArtURI         string `json:"albumArtUri"`
	AbsoluteAlbumArtURI string `json:"absoluteAlbumArtUri"`
	StationName         string `json:"stationName"`
}

// PlayMode holds the room's repeat/shuffle/crossfade flags.
type PlayMode struct {
	Repeat    string `json:"repeat"`
	Shuffle   bool   `json:"shuffle"`
	Crossfade bool   `json:"crossfade"`
}

// Track types reported in currentTrack.type.
const (
	TrackTypeTrack  = "track"
	TrackTypeRadio  = "radio"
	TrackTypeLineIn = "line_in"
)

// WebhookEvent is the envelope posted by the control API to its webhook target.
type WebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TransportStateData is the data of a transport-state webhook.
type TransportStateData struct {
	RoomName string        `json:"roomName"`
	State    *StatePayload `json:"state"`
}
