package history

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/strefethen/sonos-display-go/internal/nowplaying"
)

// Entry is one recorded track change.
type Entry struct {
	EntryID         string                  `json:"entry_id"`
	Room            string                  `json:"room"`
	SourceType      nowplaying.SourceType   `json:"source_type"`
	TrackName       string                  `json:"track_name"`
	Artist          string                  `json:"artist"`
	Album           string                  `json:"album"`
	StationName     string                  `json:"station_name"`
	DurationSeconds int                     `json:"duration_seconds"`
	ArtworkURI      string                  `json:"artwork_uri"`
	UpdateSource    nowplaying.UpdateSource `json:"update_source"`
	PlayedAt        time.Time               `json:"played_at"`
}

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository handles database operations for play history.
type Repository struct {
	reader *sql.DB // For SELECT queries
	writer *sql.DB // For INSERT/DELETE
}

// NewRepository creates a new history Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// Insert records a snapshot as a new entry and returns it.
func (r *Repository) Insert(snapshot nowplaying.PlaybackSnapshot, source nowplaying.UpdateSource, playedAt time.Time) (*Entry, error) {
	entry := &Entry{
		EntryID:         uuid.New().String(),
		Room:            snapshot.Room,
		SourceType:      snapshot.SourceType,
		TrackName:       snapshot.TrackName,
		Artist:          snapshot.Artist,
		Album:           snapshot.Album,
		StationName:     snapshot.StationName,
		DurationSeconds: snapshot.DurationSeconds,
		ArtworkURI:      snapshot.ArtworkURI,
		UpdateSource:    source,
		PlayedAt:        playedAt.UTC().Truncate(time.Second),
	}

	_, err := r.writer.Exec(`
		INSERT INTO play_history (entry_id, room, source_type, track_name, artist, album, station_name, duration_seconds, artwork_uri, update_source, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.EntryID, entry.Room, string(entry.SourceType), entry.TrackName, entry.Artist, entry.Album,
		entry.StationName, entry.DurationSeconds, entry.ArtworkURI, string(entry.UpdateSource), entry.PlayedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the newest entries first. An empty room matches every room.
// Returns entries, total count, and error.
func (r *Repository) List(room string, limit, offset int) ([]Entry, int, error) {
	whereClause := ""
	args := []any{}
	if room != "" {
		whereClause = "WHERE room = ?"
		args = append(args, room)
	}

	var total int
	if err := r.reader.QueryRow("SELECT COUNT(*) FROM play_history "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.reader.Query(`
		SELECT entry_id, room, source_type, track_name, artist, album, station_name, duration_seconds, artwork_uri, update_source, played_at
		FROM play_history
		`+whereClause+`
		ORDER BY played_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var sourceType, updateSource, playedAt string
		if err := rows.Scan(
			&entry.EntryID,
			&entry.Room,
			&sourceType,
			&entry.TrackName,
			&entry.Artist,
			&entry.Album,
			&entry.StationName,
			&entry.DurationSeconds,
			&entry.ArtworkURI,
			&updateSource,
			&playedAt,
		); err != nil {
			return nil, 0, err
		}
		entry.SourceType = nowplaying.SourceType(sourceType)
		entry.UpdateSource = nowplaying.UpdateSource(updateSource)
		if parsed, err := time.Parse(time.RFC3339, playedAt); err == nil {
			entry.PlayedAt = parsed
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Prune deletes entries played before the cutoff.
// Returns number of rows deleted.
func (r *Repository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.writer.Exec(`
		DELETE FROM play_history
		WHERE played_at < ?
	`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
