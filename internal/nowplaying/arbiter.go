package nowplaying

import (
	"log"
	"sync"
	"time"
)

// DefaultPushTimeout is how long push updates stay authoritative without a new push.
const DefaultPushTimeout = 130 * time.Second

// Arbiter tracks which update channel is authoritative. It starts in poll
// mode, switches to push on the first accepted push, and falls back to poll
// when a poll cycle observes that the last push is older than the timeout.
type Arbiter struct {
	logger  *log.Logger
	timeout time.Duration

	mu         sync.RWMutex
	lastPoll   time.Time
	lastPush   time.Time
	pushActive bool

	// Time function for testing
	now func() time.Time
}

// NewArbiter creates an arbiter in poll mode.
func NewArbiter(timeout time.Duration, logger *log.Logger) *Arbiter {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	return &Arbiter{
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// RecordPoll marks a poll cycle and applies the push timeout fallback.
func (a *Arbiter) RecordPoll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.lastPoll = now
	if a.pushActive && now.Sub(a.lastPush) > a.timeout {
		a.logger.Printf("ARBITER: Push activity timed out after %v, falling back to polling", now.Sub(a.lastPush).Round(time.Second))
		a.pushActive = false
	}
}

// RecordPush marks an accepted push update and makes push authoritative.
func (a *Arbiter) RecordPush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastPush = a.now()
	if !a.pushActive {
		a.logger.Printf("ARBITER: Switching to push updates")
	}
	a.pushActive = true
}

// IsPushActive reports whether push updates are currently authoritative.
func (a *Arbiter) IsPushActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pushActive
}

// Mode returns the authoritative update channel.
func (a *Arbiter) Mode() UpdateSource {
	if a.IsPushActive() {
		return UpdateSourcePush
	}
	return UpdateSourcePoll
}

// LastPoll returns the time of the last poll cycle.
func (a *Arbiter) LastPoll() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPoll
}

// LastPush returns the time of the last accepted push.
func (a *Arbiter) LastPush() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPush
}

// LastUpdate returns the later of the last poll and last push.
func (a *Arbiter) LastUpdate() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastPush.After(a.lastPoll) {
		return a.lastPush
	}
	return a.lastPoll
}
