package nowplaying

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playingFields() NormalizedFields {
	return NormalizedFields{
		Status:          StatusPlaying,
		SourceType:      SourceTrack,
		TrackName:       "Bohemian Rhapsody",
		Artist:          "Queen",
		Album:           "A Night at the Opera",
		DurationSeconds: 354,
		ArtworkURI:      "http://art/1",
	}
}

func TestStore_InitialSnapshot(t *testing.T) {
	s := NewStore("Kitchen")

	snap := s.Snapshot()
	assert.Equal(t, "Kitchen", snap.Room)
	assert.Equal(t, StatusUnknown, snap.Status)
	assert.Equal(t, SourceTrack, snap.SourceType)
	assert.Empty(t, s.Fingerprint())
}

func TestStore_NewTrack(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()

	result := s.Apply(fields, Fingerprint(fields))

	assert.True(t, result.IsNewTrack)
	assert.True(t, result.ArtworkChanged)
	assert.False(t, result.BecameInactive)

	snap := s.Snapshot()
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, "Queen", snap.Artist)
	assert.Equal(t, "http://art/1", snap.ArtworkURI)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestStore_IdenticalUpdateIsNoOp(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()
	s.Apply(fields, Fingerprint(fields))
	before := s.Snapshot()

	result := s.Apply(fields, Fingerprint(fields))

	assert.Equal(t, ChangeResult{Status: StatusPlaying}, result)
	assert.Equal(t, before, s.Snapshot())
}

func TestStore_ArtworkOnlyChange(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()
	s.Apply(fields, Fingerprint(fields))

	fields.ArtworkURI = "http://art/2"
	result := s.Apply(fields, Fingerprint(fields))

	assert.False(t, result.IsNewTrack)
	assert.True(t, result.ArtworkChanged)
	assert.Equal(t, "http://art/2", s.Snapshot().ArtworkURI)
}

func TestStore_NotPlayingKeepsFields(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()
	s.Apply(fields, Fingerprint(fields))

	result := s.Apply(NormalizedFields{Status: StatusPaused}, "")

	assert.False(t, result.IsNewTrack)
	assert.True(t, result.BecameInactive)
	assert.True(t, result.StatusChanged)

	snap := s.Snapshot()
	assert.Equal(t, StatusPaused, snap.Status)
	assert.Equal(t, "Bohemian Rhapsody", snap.TrackName)
	assert.Equal(t, "http://art/1", snap.ArtworkURI)

	repeat := s.Apply(NormalizedFields{Status: StatusPaused}, "")
	assert.True(t, repeat.BecameInactive)
	assert.False(t, repeat.StatusChanged)
}

func TestStore_PauseResumeIsNotNewTrack(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()
	fp := Fingerprint(fields)

	require.True(t, s.Apply(fields, fp).IsNewTrack)
	s.Apply(NormalizedFields{Status: StatusPaused}, "")

	result := s.Apply(fields, fp)
	assert.False(t, result.IsNewTrack)
	assert.False(t, result.ArtworkChanged)
	assert.True(t, result.Resumed)
	assert.Equal(t, StatusPlaying, s.Snapshot().Status)
}

func TestStore_APIErrorRetainsSnapshot(t *testing.T) {
	s := NewStore("Kitchen")
	fields := playingFields()
	s.Apply(fields, Fingerprint(fields))

	result := s.Apply(NormalizedFields{Status: StatusAPIError}, "")

	assert.True(t, result.BecameInactive)
	snap := s.Snapshot()
	assert.Equal(t, StatusAPIError, snap.Status)
	assert.Equal(t, "Queen", snap.Artist)
}
