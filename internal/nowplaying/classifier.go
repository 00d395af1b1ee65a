package nowplaying

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

// URI markers used to detect the playback source.
const (
	bluetoothMarker  = "bluetooth"
	htaStreamMarker  = "x-sonos-htastream"
	sonosRadioPrefix = "x-sonosapi-radio:sonos"
)

// ErrIncompleteUpdate is returned for PLAYING payloads without any content fields.
var ErrIncompleteUpdate = errors.New("incomplete update: no track content in payload")

var speakerURIPattern = regexp.MustCompile(`^(https?://.*:1400)/getaa\?.*`)

// Classifier normalizes raw state payloads. It caches the speaker base URI
// used to resolve relative artwork paths until ResetSpeakerURI is called.
type Classifier struct {
	stations StationTable

	mu         sync.Mutex
	speakerURI string
}

// NewClassifier creates a classifier using the given station table.
func NewClassifier(stations StationTable) *Classifier {
	if stations == nil {
		stations = DefaultStations()
	}
	return &Classifier{stations: stations}
}

// ResetSpeakerURI forgets the discovered speaker base URI.
func (c *Classifier) ResetSpeakerURI() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakerURI = ""
}

// SpeakerURI returns the discovered speaker base URI, if any.
func (c *Classifier) SpeakerURI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakerURI
}

// Classify maps a payload to normalized fields. A missing playbackState
// yields StatusAPIError; any status other than PLAYING yields only the
// status. PLAYING payloads without content return ErrIncompleteUpdate.
func (c *Classifier) Classify(payload *sonosapi.StatePayload) (NormalizedFields, error) {
	if payload == nil || payload.PlaybackState == nil {
		return NormalizedFields{Status: StatusAPIError}, nil
	}

	status := parseStatus(*payload.PlaybackState)
	if status != StatusPlaying {
		return NormalizedFields{Status: status}, nil
	}

	track := payload.CurrentTrack
	fields := NormalizedFields{
		Status: StatusPlaying,
		RawURI: track.URI,
	}

	switch {
	case strings.Contains(strings.ToLower(track.URI), bluetoothMarker):
		fields.SourceType = SourceBluetooth
		fields.TrackName = DisplayNameBluetooth
		return fields, nil

	case track.Type == sonosapi.TrackTypeLineIn && strings.Contains(track.URI, htaStreamMarker):
		fields.SourceType = SourceTV
		fields.TrackName = DisplayNameTV
		return fields, nil

	case track.Type == sonosapi.TrackTypeLineIn:
		fields.SourceType = SourceLineIn
		fields.TrackName = DisplayNameLineIn
		return fields, nil

	case strings.HasPrefix(track.URI, sonosRadioPrefix) || track.Type == sonosapi.TrackTypeRadio:
		fields.SourceType = SourceRadio
		fields.StationName = track.StationName
		if track.StationName != "" {
			fields.TrackName = track.StationName
		} else {
			fields.TrackName = c.stations.Lookup(track.Title)
		}
		fields.DurationSeconds = track.Duration

	default:
		fields.SourceType = SourceTrack
		fields.TrackName = track.Title
		fields.Artist = track.Artist
		fields.Album = track.Album
		fields.DurationSeconds = track.Duration
	}

	if fields.Album == "" && fields.Artist == "" && fields.DurationSeconds == 0 && fields.TrackName == "" {
		return NormalizedFields{}, ErrIncompleteUpdate
	}

	fields.ArtworkURI = c.resolveArtwork(payload)
	return fields, nil
}

// resolveArtwork prefers an absolute albumArtUri, then the relative one
// joined to the speaker base URI, then absoluteAlbumArtUri.
func (c *Classifier) resolveArtwork(payload *sonosapi.StatePayload) string {
	art := payload.CurrentTrack.AlbumArtURI
	if strings.HasPrefix(art, "http") {
		return art
	}
	if speaker := c.discoverSpeakerURI(payload); speaker != "" && art != "" {
		return speaker + art
	}
	return payload.CurrentTrack.AbsoluteAlbumArtURI
}

func (c *Classifier) discoverSpeakerURI(payload *sonosapi.StatePayload) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.speakerURI != "" {
		return c.speakerURI
	}
	match := speakerURIPattern.FindStringSubmatch(payload.NextTrack.AbsoluteAlbumArtURI)
	if match == nil {
		return ""
	}
	c.speakerURI = match[1]
	return c.speakerURI
}

func parseStatus(state string) PlaybackStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "PLAYING":
		return StatusPlaying
	case "PAUSED_PLAYBACK", "PAUSED":
		return StatusPaused
	case "STOPPED":
		return StatusStopped
	case "":
		return StatusAPIError
	default:
		return StatusUnknown
	}
}
