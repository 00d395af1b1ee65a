package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/strefethen/sonos-display-go/internal/nowplaying"
	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

// ==========================================================================
// Constants
// ==========================================================================

const (
	// DefaultTick is how often the loop checks whether a poll is due.
	DefaultTick = time.Second

	// DefaultInterval is the poll interval while polling is authoritative.
	DefaultInterval = time.Second

	// DefaultPushInterval is the safety-net interval while push is active.
	DefaultPushInterval = 60 * time.Second

	// DefaultMaxBackoff caps the interval after consecutive failures.
	DefaultMaxBackoff = 30 * time.Second
)

// ==========================================================================
// Interfaces
// ==========================================================================

// StateFetcher retrieves the current state of a room.
type StateFetcher interface {
	GetState(ctx context.Context, room string) (*sonosapi.StatePayload, error)
}

// Target receives poll results. *nowplaying.Engine satisfies it.
type Target interface {
	Room() string
	Submit(ctx context.Context, update nowplaying.Update) error
	LastUpdate() time.Time
	IsPushActive() bool
}

// ==========================================================================
// Poller
// ==========================================================================

// Options configures a Poller. Zero values take the defaults above.
type Options struct {
	Tick         time.Duration
	Interval     time.Duration
	PushInterval time.Duration
	MaxBackoff   time.Duration
	Logger       *log.Logger
}

// Poller periodically fetches the room state and submits it to the target.
// It polls every Interval while push is inactive and every PushInterval
// while push is active, measured from the last update of either kind.
type Poller struct {
	logger       *log.Logger
	fetcher      StateFetcher
	target       Target
	tick         time.Duration
	interval     time.Duration
	pushInterval time.Duration
	maxBackoff   time.Duration

	mu       sync.Mutex
	failures int

	// Time function for testing
	now func() time.Time
}

// New creates a poller.
func New(fetcher StateFetcher, target Target, opts Options) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	p := &Poller{
		logger:       logger,
		fetcher:      fetcher,
		target:       target,
		tick:         opts.Tick,
		interval:     opts.Interval,
		pushInterval: opts.PushInterval,
		maxBackoff:   opts.MaxBackoff,
		now:          time.Now,
	}
	if p.tick <= 0 {
		p.tick = DefaultTick
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.pushInterval <= 0 {
		p.pushInterval = DefaultPushInterval
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = DefaultMaxBackoff
	}
	if p.maxBackoff < p.interval {
		p.maxBackoff = p.interval
	}
	return p
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Printf("POLL: Starting (interval %v, push interval %v)", p.interval, p.pushInterval)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	p.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Println("POLL: Stopped")
			return nil
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step polls once if a poll is due. It reports whether a poll happened.
func (p *Poller) Step(ctx context.Context) bool {
	if !p.due() {
		return false
	}
	p.PollOnce(ctx)
	return true
}

// PollOnce fetches the room state and submits the outcome. A cancelled
// context abandons the request without submitting anything.
func (p *Poller) PollOnce(ctx context.Context) {
	room := p.target.Room()
	payload, err := p.fetcher.GetState(ctx, room)
	if ctx.Err() != nil {
		return
	}

	update := nowplaying.Update{
		Source:  nowplaying.UpdateSourcePoll,
		Room:    room,
		Payload: payload,
	}
	if err != nil {
		failures := p.recordFailure()
		p.logFailure(room, err, failures)
		update.Payload = nil
		update.Err = err
	} else {
		p.recordSuccess()
	}

	if err := p.target.Submit(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Printf("POLL: Failed to submit update: %v", err)
	}
}

// CurrentInterval returns the interval in effect, including backoff.
func (p *Poller) CurrentInterval() time.Duration {
	base := p.interval
	if p.target.IsPushActive() {
		base = p.pushInterval
	}
	return backoff(base, p.Failures(), p.maxBackoff)
}

// Failures returns the number of consecutive failed polls.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *Poller) due() bool {
	last := p.target.LastUpdate()
	if last.IsZero() {
		return true
	}
	return p.now().Sub(last) >= p.CurrentInterval()
}

func (p *Poller) recordFailure() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	return p.failures
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.logger.Printf("POLL: Recovered after %d failed attempt(s)", p.failures)
	}
	p.failures = 0
}

func (p *Poller) logFailure(room string, err error, failures int) {
	var unreachable *sonosapi.UnreachableError
	var timeout *sonosapi.TimeoutError
	switch {
	case errors.As(err, &timeout):
		p.logger.Printf("POLL: Timed out fetching state for %s (attempt %d)", room, failures)
	case errors.As(err, &unreachable):
		p.logger.Printf("POLL: Sonos API unreachable for %s (attempt %d): %v", room, failures, unreachable.Err)
	default:
		p.logger.Printf("POLL: Failed to fetch state for %s (attempt %d): %v", room, failures, err)
	}
}

// backoff returns interval * 2^failures, capped at ceiling. An interval
// already above the ceiling is left unchanged.
func backoff(interval time.Duration, failures int, ceiling time.Duration) time.Duration {
	if failures <= 0 || interval >= ceiling {
		return interval
	}
	d := interval
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}
