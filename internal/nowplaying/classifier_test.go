package nowplaying

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

func statePayload(state string, track sonosapi.TrackInfo) *sonosapi.StatePayload {
	return &sonosapi.StatePayload{
		PlaybackState: &state,
		CurrentTrack:  track,
	}
}

func queenTrack() sonosapi.TrackInfo {
	return sonosapi.TrackInfo{
		Type:        sonosapi.TrackTypeTrack,
		URI:         "x-sonos-spotify:spotify%3atrack%3a7tFiyTwD0nx5a1eklYtX2J",
		Title:       "Bohemian Rhapsody",
		Artist:      "Queen",
		Album:       "A Night at the Opera",
		Duration:    354,
		AlbumArtURI: "https://i.scdn.co/image/queen-1",
	}
}

func TestClassify_MissingPlaybackState(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(&sonosapi.StatePayload{CurrentTrack: queenTrack()})
	require.NoError(t, err)
	assert.Equal(t, NormalizedFields{Status: StatusAPIError}, fields)

	fields, err = c.Classify(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAPIError, fields.Status)
}

func TestClassify_NotPlayingReturnsStatusOnly(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		state string
		want  PlaybackStatus
	}{
		{"PAUSED_PLAYBACK", StatusPaused},
		{"STOPPED", StatusStopped},
		{"TRANSITIONING", StatusUnknown},
		{"", StatusAPIError},
	}
	for _, tc := range tests {
		t.Run(tc.state, func(t *testing.T) {
			fields, err := c.Classify(statePayload(tc.state, queenTrack()))
			require.NoError(t, err)
			assert.Equal(t, NormalizedFields{Status: tc.want}, fields)
		})
	}
}

func TestClassify_Track(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", queenTrack()))
	require.NoError(t, err)

	assert.Equal(t, StatusPlaying, fields.Status)
	assert.Equal(t, SourceTrack, fields.SourceType)
	assert.Equal(t, "Bohemian Rhapsody", fields.TrackName)
	assert.Equal(t, "Queen", fields.Artist)
	assert.Equal(t, "A Night at the Opera", fields.Album)
	assert.Equal(t, 354, fields.DurationSeconds)
	assert.Equal(t, "https://i.scdn.co/image/queen-1", fields.ArtworkURI)
	assert.Equal(t, queenTrack().URI, fields.RawURI)
}

func TestClassify_RadioFromStationTable(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type:   sonosapi.TrackTypeRadio,
		URI:    "x-sonosapi-radio:sonos%3abbc?sid=303",
		Title:  "bbc_radio_two.m3u8",
		Artist: "Some DJ",
		Album:  "Some Show",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceRadio, fields.SourceType)
	assert.Equal(t, "BBC Radio 2", fields.TrackName)
	assert.Empty(t, fields.Artist)
	assert.Empty(t, fields.Album)
	assert.Empty(t, fields.StationName)
}

func TestClassify_RadioPrefersStationName(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type:        sonosapi.TrackTypeRadio,
		URI:         "x-rincon-mp3radio://stream.example/jazz",
		Title:       "bbc_radio_two.m3u8",
		StationName: "Jazz FM",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Jazz FM", fields.TrackName)
	assert.Equal(t, "Jazz FM", fields.StationName)
}

func TestClassify_SonosRadioPrefixIsRadio(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type:  sonosapi.TrackTypeTrack,
		URI:   "x-sonosapi-radio:sonos%3a123",
		Title: "unknown_stream.m3u8",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceRadio, fields.SourceType)
	assert.Equal(t, DisplayNameRadio, fields.TrackName)
}

func TestClassify_TV(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type:                sonosapi.TrackTypeLineIn,
		URI:                 "x-sonos-htastream:RINCON_B8E93781234501400:spdif",
		Title:               "TV Audio",
		AlbumArtURI:         "/getaa?s=1",
		AbsoluteAlbumArtURI: "http://192.168.1.20:1400/getaa?s=1",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceTV, fields.SourceType)
	assert.Equal(t, DisplayNameTV, fields.TrackName)
	assert.Empty(t, fields.ArtworkURI)
	assert.Empty(t, fields.Artist)
	assert.Empty(t, fields.Album)
	assert.Empty(t, fields.StationName)
}

func TestClassify_LineIn(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type: sonosapi.TrackTypeLineIn,
		URI:  "x-rincon-stream:RINCON_000E58123456701400",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceLineIn, fields.SourceType)
	assert.Equal(t, DisplayNameLineIn, fields.TrackName)
	assert.Empty(t, fields.ArtworkURI)
}

func TestClassify_Bluetooth(t *testing.T) {
	c := NewClassifier(nil)

	fields, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type:   sonosapi.TrackTypeLineIn,
		URI:    "x-sonos-vli:RINCON_F0F6C1234567:2,Bluetooth",
		Artist: "Phone",
	}))
	require.NoError(t, err)

	assert.Equal(t, SourceBluetooth, fields.SourceType)
	assert.Equal(t, DisplayNameBluetooth, fields.TrackName)
	assert.Empty(t, fields.Artist)
	assert.Empty(t, fields.ArtworkURI)
}

func TestClassify_IncompletePayload(t *testing.T) {
	c := NewClassifier(nil)

	_, err := c.Classify(statePayload("PLAYING", sonosapi.TrackInfo{
		Type: sonosapi.TrackTypeTrack,
		URI:  "x-sonos-spotify:abc",
	}))
	require.ErrorIs(t, err, ErrIncompleteUpdate)
}

func TestClassify_ArtworkResolution(t *testing.T) {
	t.Run("relative joined to speaker", func(t *testing.T) {
		c := NewClassifier(nil)
		track := queenTrack()
		track.AlbumArtURI = "/getaa?s=1&u=abc"
		track.AbsoluteAlbumArtURI = "http://fallback/art.jpg"
		payload := statePayload("PLAYING", track)
		payload.NextTrack.AbsoluteAlbumArtURI = "http://192.168.1.20:1400/getaa?s=1&u=next"

		fields, err := c.Classify(payload)
		require.NoError(t, err)
		assert.Equal(t, "http://192.168.1.20:1400/getaa?s=1&u=abc", fields.ArtworkURI)
		assert.Equal(t, "http://192.168.1.20:1400", c.SpeakerURI())
	})

	t.Run("absolute fallback without speaker", func(t *testing.T) {
		c := NewClassifier(nil)
		track := queenTrack()
		track.AlbumArtURI = "/getaa?s=1&u=abc"
		track.AbsoluteAlbumArtURI = "http://fallback/art.jpg"

		fields, err := c.Classify(statePayload("PLAYING", track))
		require.NoError(t, err)
		assert.Equal(t, "http://fallback/art.jpg", fields.ArtworkURI)
		assert.Empty(t, c.SpeakerURI())
	})

	t.Run("empty when nothing available", func(t *testing.T) {
		c := NewClassifier(nil)
		track := queenTrack()
		track.AlbumArtURI = ""

		fields, err := c.Classify(statePayload("PLAYING", track))
		require.NoError(t, err)
		assert.Empty(t, fields.ArtworkURI)
	})
}

func TestClassify_SpeakerURICachedUntilReset(t *testing.T) {
	c := NewClassifier(nil)

	track := queenTrack()
	track.AlbumArtURI = "/getaa?u=1"
	first := statePayload("PLAYING", track)
	first.NextTrack.AbsoluteAlbumArtURI = "http://10.0.0.5:1400/getaa?u=2"
	_, err := c.Classify(first)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:1400", c.SpeakerURI())

	second := statePayload("PLAYING", track)
	second.NextTrack.AbsoluteAlbumArtURI = "http://10.0.0.9:1400/getaa?u=3"
	fields, err := c.Classify(second)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:1400/getaa?u=1", fields.ArtworkURI)

	c.ResetSpeakerURI()
	fields, err = c.Classify(second)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:1400/getaa?u=1", fields.ArtworkURI)
}

func TestStationTable_Lookup(t *testing.T) {
	table := DefaultStations()

	assert.Equal(t, "BBC Radio 6 Music", table.Lookup("bbc_6music.m3u8"))
	assert.Equal(t, "BBC World Service", table.Lookup("http://a.files.bbci.co.uk/media/live/manifesto/audio/simulcast/hls/nonuk/sbr_low/ak/bbc_world_service.m3u8?x=1"))
	assert.Equal(t, DisplayNameRadio, table.Lookup("unknown.m3u8"))
	assert.GreaterOrEqual(t, len(table), 12)

	merged := table.Merge(map[string]string{"jazz.m3u8": "Jazz FM", " ": "ignored"})
	assert.Equal(t, "Jazz FM", merged.Lookup("jazz.m3u8"))
	assert.Equal(t, DisplayNameRadio, table.Lookup("jazz.m3u8"))
}

func TestFingerprint(t *testing.T) {
	fields := NormalizedFields{
		Artist:          "Queen",
		TrackName:       "Bohemian Rhapsody",
		Album:           "A Night at the Opera",
		DurationSeconds: 354,
		ArtworkURI:      "http://art/1",
	}
	assert.Equal(t, "Queen - Bohemian Rhapsody (A Night at the Opera) - 0:05:54 @ ", Fingerprint(fields))

	fields.ArtworkURI = "http://art/2"
	fields.RawURI = "other"
	assert.Equal(t, "Queen - Bohemian Rhapsody (A Night at the Opera) - 0:05:54 @ ", Fingerprint(fields))

	fields.DurationSeconds = 3725
	assert.Contains(t, Fingerprint(fields), "1:02:05")
}
