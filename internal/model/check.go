package model

import "time"

// Check status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Check kind constants.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidKind reports whether kind names a known check kind.
func ValidKind(kind string) bool {
	return kind == KindLocal || kind == KindRemote
}

// HopLine is one persisted dispatch step of a check.
type HopLine struct {
	ID         int64     `json:"id"`
	CheckID    string    `json:"check_id"`
	Seq        int       `json:"seq"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	Handler    string    `json:"handler"`
	StatusCode int       `json:"status_code"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Check is a persisted link check. Target is a local path for local checks
// and an absolute URL for remote ones.
type Check struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Kind         string     `json:"kind"`
	Target       string     `json:"target"`
	Query        string     `json:"query,omitempty"`
	MaxRedirects *int       `json:"max_redirects,omitempty"`
	StatusCode   *int       `json:"status_code,omitempty"`
	Reachable    *bool      `json:"reachable,omitempty"`
	Hops         int        `json:"hops"`
	Error        string     `json:"error,omitempty"`
	DurationMS   *int       `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
