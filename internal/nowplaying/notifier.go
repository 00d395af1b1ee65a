package nowplaying

import "sync/atomic"

// Notifier holds the one-shot "track is new" flag consumed by the renderer.
type Notifier struct {
	trackNew atomic.Bool
}

// NewNotifier creates a notifier with no pending change.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Observe arms the flag when the result carries a genuine track change.
func (n *Notifier) Observe(result ChangeResult) {
	if result.IsNewTrack {
		n.trackNew.Store(true)
	}
}

// IsTrackNew returns true once per track change and false until the next one.
func (n *Notifier) IsTrackNew() bool {
	return n.trackNew.Swap(false)
}

// ShouldRedraw reports whether consumers need to hear about the result.
func ShouldRedraw(result ChangeResult) bool {
	if result.Ignored {
		return false
	}
	return result.IsNewTrack ||
		result.ArtworkChanged ||
		result.Resumed ||
		(result.BecameInactive && result.StatusChanged)
}
