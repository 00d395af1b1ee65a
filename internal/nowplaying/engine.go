package nowplaying

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

// DefaultQueueSize is the capacity of the update channel.
const DefaultQueueSize = 16

// Cleaner shortens raw track names before fingerprinting.
type Cleaner interface {
	Clean(ctx context.Context, name string) string
}

// Update is a state payload delivered by the poller or the webhook.
type Update struct {
	Source UpdateSource
	// Room is the room the payload describes; empty means the current room.
	Room    string
	Payload *sonosapi.StatePayload
	// Err is set when a poll cycle failed to produce a payload.
	Err error
}

// Options configures an Engine.
type Options struct {
	Room        string
	PushTimeout time.Duration
	Stations    StationTable
	Cleaner     Cleaner
	QueueSize   int
	Logger      *log.Logger
}

// StatusReport is the operator projection of the engine state.
type StatusReport struct {
	Room          string         `json:"room"`
	Status        PlaybackStatus `json:"status"`
	SourceType    SourceType     `json:"source_type"`
	TrackName     string         `json:"trackname"`
	Artist        string         `json:"artist"`
	Album         string         `json:"album"`
	StationName   string         `json:"station_name"`
	Duration      int            `json:"duration"`
	ArtworkURI    string         `json:"artwork_uri"`
	LastPoll      int64          `json:"last_poll"`
	LastWebhook   int64          `json:"last_webhook"`
	WebhookActive bool           `json:"webhook_active"`
	Mode          UpdateSource   `json:"mode"`
}

// Engine owns the playback record, the arbiter and the room target. Both
// producers enqueue updates with Submit; Run applies them one at a time and
// publishes an Event to subscribers whenever a redraw is warranted.
type Engine struct {
	logger     *log.Logger
	classifier *Classifier
	cleaner    Cleaner
	arbiter    *Arbiter
	store      *Store
	notifier   *Notifier
	updates    chan Update

	// applyMu serializes Apply. The cleanup call runs under it, so nothing
	// outside the engine task may wait on it.
	applyMu   sync.Mutex
	lastRaw   string
	lastClean string

	// mu guards the room target. It is never held across a network call.
	mu      sync.RWMutex
	room    string
	roomGen uint64

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

// New creates an engine for the configured room.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Engine{
		logger:      logger,
		classifier:  NewClassifier(opts.Stations),
		cleaner:     opts.Cleaner,
		arbiter:     NewArbiter(opts.PushTimeout, logger),
		store:       NewStore(opts.Room),
		notifier:    NewNotifier(),
		updates:     make(chan Update, queueSize),
		room:        opts.Room,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Run applies queued updates until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("ENGINE: Monitoring room: %s", e.Room())
	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-e.updates:
			e.Apply(ctx, update)
		}
	}
}

// Submit enqueues an update for the engine task.
func (e *Engine) Submit(ctx context.Context, update Update) error {
	select {
	case e.updates <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply processes one update synchronously and returns what changed.
// Updates for a room that was replaced while the track name was being
// cleaned are ignored.
func (e *Engine) Apply(ctx context.Context, update Update) ChangeResult {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	fields, gen, ok := e.classify(update)
	if !ok {
		return ChangeResult{Ignored: true}
	}

	fingerprint := ""
	if fields.Status == StatusPlaying {
		if fields.SourceType == SourceTrack {
			fields.TrackName = e.cleanName(ctx, fields.TrackName)
		}
		fingerprint = Fingerprint(fields)
	}

	e.mu.RLock()
	if e.roomGen != gen {
		e.mu.RUnlock()
		return ChangeResult{Ignored: true}
	}
	result := e.store.Apply(fields, fingerprint)
	e.mu.RUnlock()

	e.notifier.Observe(result)

	if result.IsNewTrack {
		e.logger.Printf("ENGINE: New track via %s: %s", update.Source, fingerprint)
	} else if result.StatusChanged {
		e.logger.Printf("ENGINE: Status changed to %s via %s", result.Status, update.Source)
	}

	if ShouldRedraw(result) {
		e.publish(Event{Snapshot: e.store.Snapshot(), Change: result, Source: update.Source})
	}
	return result
}

// classify records the update with the arbiter and normalizes it against
// the current room. It returns the room generation it ran under.
func (e *Engine) classify(update Update) (NormalizedFields, uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if update.Room != "" && update.Room != e.room {
		return NormalizedFields{}, e.roomGen, false
	}

	switch update.Source {
	case UpdateSourcePush:
		e.arbiter.RecordPush()
	default:
		e.arbiter.RecordPoll()
	}

	if update.Err != nil {
		e.logger.Printf("ENGINE: %s update failed: %v", update.Source, update.Err)
		return NormalizedFields{Status: StatusAPIError}, e.roomGen, true
	}
	fields, err := e.classifier.Classify(update.Payload)
	if errors.Is(err, ErrIncompleteUpdate) {
		return NormalizedFields{}, e.roomGen, false
	}
	return fields, e.roomGen, true
}

// cleanName shortens a raw track name, reusing the previous answer while
// the raw name is unchanged so the fingerprint stays stable. Callers hold
// applyMu.
func (e *Engine) cleanName(ctx context.Context, raw string) string {
	if e.cleaner == nil {
		return raw
	}
	if raw == e.lastRaw && e.lastClean != "" {
		return e.lastClean
	}
	clean := e.cleaner.Clean(ctx, raw)
	e.lastRaw, e.lastClean = raw, clean
	return clean
}

// SetRoom changes the monitored room and forgets the speaker base URI.
// An Apply still cleaning a name for the old room discards its result.
func (e *Engine) SetRoom(room string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if room == e.room {
		return
	}
	e.room = room
	e.roomGen++
	e.classifier.ResetSpeakerURI()
	e.store.SetRoom(room)
	e.logger.Printf("ENGINE: Monitoring room: %s", room)
}

// Room returns the monitored room.
func (e *Engine) Room() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.room
}

// Snapshot returns a copy of the current playback record.
func (e *Engine) Snapshot() PlaybackSnapshot {
	return e.store.Snapshot()
}

// IsTrackNew consumes the one-shot new-track flag.
func (e *Engine) IsTrackNew() bool {
	return e.notifier.IsTrackNew()
}

// Latest is the renderer pull interface: the current snapshot and whether
// the renderer is seeing this track for the first time.
func (e *Engine) Latest() (PlaybackSnapshot, bool) {
	return e.store.Snapshot(), e.notifier.IsTrackNew()
}

// IsPushActive reports whether push updates are authoritative.
func (e *Engine) IsPushActive() bool {
	return e.arbiter.IsPushActive()
}

// LastUpdate returns the time of the most recent poll or push.
func (e *Engine) LastUpdate() time.Time {
	return e.arbiter.LastUpdate()
}

// SpeakerURI returns the discovered speaker base URI for the current room.
func (e *Engine) SpeakerURI() string {
	return e.classifier.SpeakerURI()
}

// Status returns the operator projection.
func (e *Engine) Status() StatusReport {
	snapshot := e.store.Snapshot()
	return StatusReport{
		Room:          e.Room(),
		Status:        snapshot.Status,
		SourceType:    snapshot.SourceType,
		TrackName:     snapshot.TrackName,
		Artist:        snapshot.Artist,
		Album:         snapshot.Album,
		StationName:   snapshot.StationName,
		Duration:      snapshot.DurationSeconds,
		ArtworkURI:    snapshot.ArtworkURI,
		LastPoll:      unixOrZero(e.arbiter.LastPoll()),
		LastWebhook:   unixOrZero(e.arbiter.LastPush()),
		WebhookActive: e.arbiter.IsPushActive(),
		Mode:          e.arbiter.Mode(),
	}
}

// Subscribe returns a channel receiving events. Slow subscribers only see
// the most recent event, carrying the track and artwork flags of any event
// it replaced.
func (e *Engine) Subscribe() chan Event {
	ch := make(chan Event, 1)
	e.subMu.Lock()
	e.subscribers[ch] = struct{}{}
	e.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (e *Engine) Unsubscribe(ch chan Event) {
	e.subMu.Lock()
	_, exists := e.subscribers[ch]
	delete(e.subscribers, ch)
	e.subMu.Unlock()
	if exists {
		close(ch)
	}
}

func (e *Engine) publish(event Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}
		pending := event
		select {
		case stale := <-ch:
			pending.Change = mergeChange(stale.Change, pending.Change)
		default:
		}
		select {
		case ch <- pending:
		default:
		}
	}
}

// mergeChange folds an unread change into the one replacing it so a
// genuine track change is not lost behind a later artwork or status event.
func mergeChange(stale, next ChangeResult) ChangeResult {
	next.IsNewTrack = next.IsNewTrack || stale.IsNewTrack
	next.ArtworkChanged = next.ArtworkChanged || stale.ArtworkChanged
	next.StatusChanged = next.StatusChanged || stale.StatusChanged
	return next
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
