package nowplaying

import "fmt"

// Fingerprint builds the identity key for "the same logical track".
// Artwork is deliberately excluded.
func Fingerprint(fields NormalizedFields) string {
	return fmt.Sprintf("%s - %s (%s) - %s @ %s",
		fields.Artist,
		fields.TrackName,
		fields.Album,
		formatDuration(fields.DurationSeconds),
		fields.StationName,
	)
}

// formatDuration renders seconds as H:MM:SS.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
