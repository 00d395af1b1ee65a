package nowplaying

import "strings"

// StationTable maps stream filenames to station names. Streams started by
// voice assistants report only the playlist filename as their title.
type StationTable map[string]string

// DefaultStations returns the built-in table of known BBC streams.
func DefaultStations() StationTable {
	return StationTable{
		"bbc_radio_one.m3u8":                    "BBC Radio 1",
		"bbc_1xtra.m3u8":                        "BBC Radio 1Xtra",
		"bbc_radio_two.m3u8":                    "BBC Radio 2",
		"bbc_radio_three.m3u8":                  "BBC Radio 3",
		"bbc_radio_fourfm.m3u8":                 "BBC Radio 4",
		"bbc_radio_four_extra.m3u8":             "BBC Radio 4 Extra",
		"bbc_radio_five_live.m3u8":              "BBC Radio 5 Live",
		"bbc_radio_five_live_sports_extra.m3u8": "BBC Radio 5 Live Sports Extra",
		"bbc_6music.m3u8":                       "BBC Radio 6 Music",
		"bbc_asian_network.m3u8":                "BBC Asian Network",
		"bbc_world_service.m3u8":                "BBC World Service",
		"bbc_radio_hereford_worcester.m3u8":     "BBC Hereford & Worcester",
		"bbc_london.m3u8":                       "BBC Radio London",
		"bbc_radio_scotland_fm.m3u8":            "BBC Radio Scotland",
	}
}

// Merge returns a new table with extra entries layered over t.
func (t StationTable) Merge(extra map[string]string) StationTable {
	merged := make(StationTable, len(t)+len(extra))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range extra {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Lookup resolves a stream title to a station name, defaulting to "Radio".
// Titles given as URLs are matched on their final path element.
func (t StationTable) Lookup(title string) string {
	if name, ok := t[title]; ok {
		return name
	}
	base := title
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if name, ok := t[base]; ok {
		return name
	}
	return DisplayNameRadio
}
