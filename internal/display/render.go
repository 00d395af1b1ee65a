package display

import (
	"context"
	"log"
	"strings"

	"github.com/strefethen/sonos-display-go/internal/nowplaying"
)

const detailSeparator = " • "

// Frame is what a renderer draws for one snapshot.
type Frame struct {
	// Visible is false when nothing is playing and the screen should blank.
	Visible     bool   `json:"visible"`
	IsNew       bool   `json:"is_new"`
	Title       string `json:"title"`
	DetailText  string `json:"detail_text,omitempty"`
	ShowDetails bool   `json:"show_details"`
	ArtworkURI  string `json:"artwork_uri,omitempty"`
}

// Compose builds a frame. The detail line joins artist and album, omitting
// the artist when it repeats the title.
func Compose(snapshot nowplaying.PlaybackSnapshot, isNew, showDetails bool) Frame {
	title := snapshot.TrackName
	if title == "" {
		title = snapshot.StationName
	}

	frame := Frame{
		Visible:     snapshot.IsPlaying(),
		IsNew:       isNew,
		Title:       title,
		ShowDetails: showDetails,
		ArtworkURI:  snapshot.ArtworkURI,
	}

	var parts []string
	if snapshot.Artist != "" && snapshot.Artist != title {
		parts = append(parts, snapshot.Artist)
	}
	if snapshot.Album != "" {
		parts = append(parts, snapshot.Album)
	}
	frame.DetailText = strings.Join(parts, detailSeparator)
	return frame
}

// Source is the engine pull interface plus its redraw subscription.
type Source interface {
	Latest() (nowplaying.PlaybackSnapshot, bool)
	Subscribe() chan nowplaying.Event
	Unsubscribe(ch chan nowplaying.Event)
}

// LogRenderer draws frames to a logger. It pulls the latest snapshot on
// every engine event and on every detail-mode change.
type LogRenderer struct {
	logger  *log.Logger
	source  Source
	detail  *DetailControls
	events  chan nowplaying.Event
	changes <-chan struct{}
}

// NewLogRenderer creates a renderer subscribed to source and detail.
func NewLogRenderer(source Source, detail *DetailControls, logger *log.Logger) *LogRenderer {
	if logger == nil {
		logger = log.Default()
	}
	r := &LogRenderer{
		logger: logger,
		source: source,
		detail: detail,
		events: source.Subscribe(),
	}
	if detail != nil {
		r.changes = detail.Watch()
	}
	return r
}

// Run renders until ctx is cancelled.
func (r *LogRenderer) Run(ctx context.Context) error {
	defer r.source.Unsubscribe(r.events)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-r.events:
			if !ok {
				return nil
			}
			r.Render()
		case <-r.changes:
			r.Render()
		}
	}
}

// Render pulls the latest state and draws one frame.
func (r *LogRenderer) Render() Frame {
	snapshot, isNew := r.source.Latest()
	showDetails := r.detail != nil && r.detail.ShowDetails()
	frame := Compose(snapshot, isNew, showDetails)

	switch {
	case !frame.Visible:
		r.logger.Printf("DISPLAY: Blank (%s)", snapshot.Status)
	case frame.IsNew && frame.ShowDetails && frame.DetailText != "":
		r.logger.Printf("DISPLAY: Now playing %s [%s]", frame.Title, frame.DetailText)
	case frame.IsNew:
		r.logger.Printf("DISPLAY: Now playing %s", frame.Title)
	default:
		r.logger.Printf("DISPLAY: Redraw %s (details: %v)", frame.Title, frame.ShowDetails)
	}
	return frame
}
