package display

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DetailState is the current detail-mode setting.
type DetailState struct {
	ShowDetails bool       `json:"show_details"`
	RevertAt    *time.Time `json:"revert_at,omitempty"`
}

// DetailControls holds the operator's detail-mode command. A timed
// command reverts to hidden details when the timeout elapses; a newer
// command cancels any pending revert.
type DetailControls struct {
	mu       sync.Mutex
	show     bool
	timer    *time.Timer
	revertAt time.Time
	watchers []chan struct{}

	// Time functions for testing
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewDetailControls creates controls with the startup setting. A positive
// timeout schedules the initial revert as well.
func NewDetailControls(show bool, timeout time.Duration) *DetailControls {
	d := &DetailControls{
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
	d.SetDetail(show, timeout)
	return d
}

// SetDetail applies a command. timeout is ignored when show is false.
func (d *DetailControls) SetDetail(show bool, timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.revertAt = time.Time{}
	d.show = show

	if show && timeout > 0 {
		var timer *time.Timer
		timer = d.afterFunc(timeout, func() { d.revert(timer) })
		d.timer = timer
		d.revertAt = d.now().Add(timeout)
	}
	d.notify()
}

// State returns the current setting.
func (d *DetailControls) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := DetailState{ShowDetails: d.show}
	if !d.revertAt.IsZero() {
		revertAt := d.revertAt
		state.RevertAt = &revertAt
	}
	return state
}

// ShowDetails reports whether details are currently shown.
func (d *DetailControls) ShowDetails() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.show
}

// Watch returns a channel signalled after every later command or revert.
// Signals coalesce.
func (d *DetailControls) Watch() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{}, 1)
	d.watchers = append(d.watchers, ch)
	return ch
}

// Stop cancels any pending revert.
func (d *DetailControls) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *DetailControls) revert(timer *time.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A newer command replaced this timer.
	if d.timer != timer {
		return
	}
	d.timer = nil
	d.revertAt = time.Time{}
	d.show = false
	d.notify()
}

func (d *DetailControls) notify() {
	for _, ch := range d.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ParseDetail parses the detail form value.
func ParseDetail(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid detail value %q", value)
	}
}
