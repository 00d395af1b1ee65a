package history

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strefethen/sonos-display-go/internal/nowplaying"
)

// Default configuration values
const (
	DefaultRetentionDays   = 30
	DefaultPruneSchedule   = "@daily"
	DefaultQueryLimit      = 20
	MaxQueryLimit          = 200
	MaxConsecutiveFailures = 3
)

// Source is the engine subscription the recorder consumes.
type Source interface {
	Subscribe() chan nowplaying.Event
	Unsubscribe(ch chan nowplaying.Event)
}

// Options configures a Service. Zero values take the defaults above.
type Options struct {
	RetentionDays int
	PruneSchedule string
	Logger        *log.Logger
}

// Service records every genuine track change and prunes old entries on a
// cron schedule.
type Service struct {
	logger        *log.Logger
	repo          *Repository
	source        Source
	events        chan nowplaying.Event
	retentionDays int
	schedule      cron.Schedule
	scheduleSpec  string

	healthMu            sync.RWMutex
	healthy             bool
	consecutiveFailures int

	// Time function for testing
	now func() time.Time
}

// NewService creates a history service subscribed to source.
func NewService(dbPair DBPair, source Source, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	retention := opts.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	spec := opts.PruneSchedule
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	return &Service{
		logger:        logger,
		repo:          NewRepository(dbPair),
		source:        source,
		events:        source.Subscribe(),
		retentionDays: retention,
		schedule:      schedule,
		scheduleSpec:  spec,
		healthy:       true,
		now:           time.Now,
	}, nil
}

// Run records events and runs the prune job until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.source.Unsubscribe(s.events)

	s.logger.Printf("HISTORY: Recording track changes (retention: %d days, prune: %s)", s.retentionDays, s.scheduleSpec)

	if count, err := s.Prune(); err != nil {
		s.logger.Printf("HISTORY: Error pruning on start: %v", err)
	} else if count > 0 {
		s.logger.Printf("HISTORY: Pruned %d entries on startup", count)
	}

	scheduler := cron.New()
	scheduler.Schedule(s.schedule, cron.FuncJob(func() {
		if count, err := s.Prune(); err != nil {
			s.logger.Printf("HISTORY: Error pruning: %v", err)
		} else if count > 0 {
			s.logger.Printf("HISTORY: Pruned %d entries", count)
		}
	}))
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.events:
			if !ok {
				return nil
			}
			if _, err := s.Record(event); err != nil {
				s.logger.Printf("HISTORY: %v", err)
			}
		}
	}
}

// Record stores the event when it carries a track change. A change can
// arrive folded into a later pause event; the snapshot still holds the
// track that started. It returns nil for events that are not recorded.
func (s *Service) Record(event nowplaying.Event) (*Entry, error) {
	if !event.Change.IsNewTrack || event.Snapshot.TrackName == "" {
		return nil, nil
	}

	entry, err := s.repo.Insert(event.Snapshot, event.Source, s.now())
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to record track change: %w", err)
	}
	s.recordSuccess()
	return entry, nil
}

// List returns recent entries with the limit clamped to MaxQueryLimit.
// Returns entries, hasMore flag, and error.
func (s *Service) List(room string, limit, offset int) ([]Entry, bool, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.repo.List(room, limit, offset)
	if err != nil {
		s.recordFailure()
		return nil, false, fmt.Errorf("failed to list history: %w", err)
	}
	s.recordSuccess()

	return entries, offset+len(entries) < total, nil
}

// Prune deletes entries older than the retention window.
func (s *Service) Prune() (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	count, err := s.repo.Prune(cutoff)
	if err != nil {
		s.recordFailure()
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	s.recordSuccess()
	return count, nil
}

// NextPrune returns the next scheduled prune after t.
func (s *Service) NextPrune(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// IsHealthy returns current health status.
func (s *Service) IsHealthy() bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.healthy
}

func (s *Service) recordSuccess() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.consecutiveFailures = 0
	s.healthy = true
}

// recordFailure marks the service unhealthy after MaxConsecutiveFailures.
func (s *Service) recordFailure() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.consecutiveFailures++
	if s.consecutiveFailures >= MaxConsecutiveFailures {
		s.healthy = false
	}
}
