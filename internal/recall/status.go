package recall

import "sync"

// Status is the advisory state of retrieval for a session.
type Status string

const (
	StatusRetrieving Status = "retrieving"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// StatusTracker keeps the last status reported per session.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: map[string]Status{}}
}

func (t *StatusTracker) SetStatus(sessionID string, s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[sessionID] = s
}

// Status returns the last status for a session, or "" if none was reported.
func (t *StatusTracker) Status(sessionID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statuses[sessionID]
}
