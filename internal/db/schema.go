package db

const schemaSQL = `
-- ===========================================================================
-- PLAY HISTORY (one row per genuine track change)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS play_history (
  entry_id TEXT PRIMARY KEY,
  room TEXT NOT NULL,
  source_type TEXT NOT NULL,
  track_name TEXT NOT NULL,
  artist TEXT NOT NULL DEFAULT '',
  album TEXT NOT NULL DEFAULT '',
  station_name TEXT NOT NULL DEFAULT '',
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  artwork_uri TEXT NOT NULL DEFAULT '',
  update_source TEXT NOT NULL,
  played_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_play_history_played_at ON play_history(played_at DESC);
`

// migrations run in order after schemaSQL; never edit an applied entry.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_play_history_room ON play_history(room, played_at)`,
}
