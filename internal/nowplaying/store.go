package nowplaying

import (
	"sync"
	"time"
)

// Store is the mutable playback record. Apply is the only mutation path for
// playback fields and runs under the store lock; readers get copies.
type Store struct {
	mu          sync.RWMutex
	snapshot    PlaybackSnapshot
	fingerprint string

	// Time function for testing
	now func() time.Time
}

// NewStore creates a store with default fields for the given room.
func NewStore(room string) *Store {
	return &Store{
		snapshot: PlaybackSnapshot{
			Room:       room,
			Status:     StatusUnknown,
			SourceType: SourceTrack,
		},
		now: time.Now,
	}
}

// Apply records an update. Non-playing statuses only touch the status.
// Playing updates replace every field when the fingerprint or artwork
// differs; otherwise only the status is refreshed.
func (s *Store) Apply(fields NormalizedFields, fingerprint string) ChangeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.snapshot.Status
	result := ChangeResult{
		Status:        fields.Status,
		StatusChanged: previous != fields.Status,
	}

	if fields.Status != StatusPlaying {
		if result.StatusChanged {
			s.snapshot.Status = fields.Status
			s.snapshot.UpdatedAt = s.now()
		}
		result.BecameInactive = true
		return result
	}

	identityChanged := fingerprint != s.fingerprint
	artworkChanged := fields.ArtworkURI != s.snapshot.ArtworkURI

	if !identityChanged && !artworkChanged {
		if result.StatusChanged {
			s.snapshot.Status = StatusPlaying
			s.snapshot.UpdatedAt = s.now()
			result.Resumed = true
		}
		return result
	}

	s.snapshot = PlaybackSnapshot{
		Room:            s.snapshot.Room,
		Status:          StatusPlaying,
		SourceType:      fields.SourceType,
		TrackName:       fields.TrackName,
		Artist:          fields.Artist,
		Album:           fields.Album,
		StationName:     fields.StationName,
		DurationSeconds: fields.DurationSeconds,
		ArtworkURI:      fields.ArtworkURI,
		RawURI:          fields.RawURI,
		UpdatedAt:       s.now(),
	}
	s.fingerprint = fingerprint

	result.IsNewTrack = identityChanged
	result.ArtworkChanged = artworkChanged
	result.Resumed = !identityChanged && result.StatusChanged
	return result
}

// SetRoom updates the room recorded on the snapshot.
func (s *Store) SetRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Room = room
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() PlaybackSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Fingerprint returns the identity of the last accepted playing update.
func (s *Store) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}
