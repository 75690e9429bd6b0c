package store

import (
	"context"
	"errors"
	"time"

	"github.com/stellarlinkco/ragate/internal/gate"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("store: not found")

// VerdictWriter persists gate verdicts.
type VerdictWriter interface {
	SaveVerdict(ctx context.Context, v *gate.Verdict) error
}

// VerdictReader reads back stored verdicts.
type VerdictReader interface {
	GetVerdict(ctx context.Context, runID string) (*gate.Verdict, error)
	ListVerdicts(ctx context.Context, filter Filter) ([]*gate.Verdict, error)
}

// ComparisonLog records swap decisions for audit.
type ComparisonLog interface {
	SaveComparison(ctx context.Context, id string, c *gate.Comparison) error
	ListComparisons(ctx context.Context, limit int) ([]*ComparisonRecord, error)
}

// Store persists gate history.
type Store interface {
	VerdictWriter
	VerdictReader
	ComparisonLog
	Close() error
}

// Filter narrows verdict listings.
type Filter struct {
	Model string
	Since time.Time
	Until time.Time
	Limit int
}

// ComparisonRecord is a stored swap decision. Full verdicts live in the
// verdicts table; the record keeps only the decision and the deltas.
type ComparisonRecord struct {
	ID            string                      `json:"id"`
	BaselineRun   string                      `json:"baseline_run"`
	CandidateRun  string                      `json:"candidate_run"`
	Tolerance     float64                     `json:"tolerance"`
	RecommendSwap bool                        `json:"recommend_swap"`
	Deltas        map[string]gate.MetricDelta `json:"deltas"`
	CreatedAt     time.Time                   `json:"created_at"`
}
