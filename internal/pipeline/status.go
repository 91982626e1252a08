package pipeline

import "sync"

// Run states. A run is attempted exactly once; failed is terminal.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusNotFound  = "not_found"
)

// Status tracks one run's progress for dashboard queries. Timestamps are
// RFC 3339 strings; only the fields relevant to the current state are set.
type Status struct {
	Status      string `json:"status"`
	Topic       string `json:"topic"`
	CampaignID  string `json:"campaign_id,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	FailedAt    string `json:"failed_at,omitempty"`
	Error       string `json:"error,omitempty"`
	Trace       string `json:"trace,omitempty"`
}

// StatusStore is an in-memory table of run statuses keyed by campaign id.
// Each entry is written only by the goroutine owning that run and read by
// request handlers; entries are not persisted beyond the process lifetime.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewStatusStore creates an empty status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{statuses: make(map[string]Status)}
}

// Set stores the status for a campaign id, replacing any previous entry.
func (s *StatusStore) Set(campaignID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[campaignID] = status
}

// Get returns the status for a campaign id.
func (s *StatusStore) Get(campaignID string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[campaignID]
	return status, ok
}

// Len returns the number of tracked runs.
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}
