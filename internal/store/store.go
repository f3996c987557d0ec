package store

import (
	"context"
	"errors"

	"github.com/seantiz/urlcheck/internal/model"
)

// ErrInvalidTransition is returned when a check status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// CheckStats holds aggregate check statistics.
type CheckStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByKind   map[string]int `json:"count_by_kind"`
	Reachable     int            `json:"reachable"`
	Unreachable   int            `json:"unreachable"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for checks and their hops.
type Store interface {
	CreateCheck(ctx context.Context, c *model.Check) error
	GetCheck(ctx context.Context, id string) (*model.Check, error)
	ListChecks(ctx context.Context, limit, offset int) ([]*model.Check, int, error)
	UpdateCheckStatus(ctx context.Context, id, status string) error
	UpdateCheck(ctx context.Context, c *model.Check) error
	DeleteCheck(ctx context.Context, id string) error
	GetCheckStats(ctx context.Context) (*CheckStats, error)
	InsertHopLine(ctx context.Context, h *model.HopLine) error
	GetHopLines(ctx context.Context, checkID string) ([]model.HopLine, error)
	Ping(ctx context.Context) error
	Close() error
}
