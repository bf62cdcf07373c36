// Package ledger persists prospects and their append-only attempt history.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// ErrAttemptInFlight is returned by BeginAttempt when another attempt for
// the same prospect currently holds the in-flight claim. Callers surface
// it immediately; attempts are never queued or merged.
var ErrAttemptInFlight = errors.New("ledger: attempt already in flight")

// ErrProspectNotFound is returned by GetProspect for unknown IDs.
var ErrProspectNotFound = errors.New("ledger: prospect not found")

// Ledger is the persistence contract consumed by the orchestrator.
//
// Per-prospect serialization: BeginAttempt claims the prospect's single
// in-flight slot and allocates the next attempt number. Append writes the
// finished attempt and releases the claim atomically. ReleaseAttempt
// releases the claim without writing, for attempts canceled before any
// pass succeeded.
type Ledger interface {
	// Attempt history (append-only per prospect).
	BeginAttempt(ctx context.Context, prospectID string) (int, error)
	Append(ctx context.Context, prospectID string, attempt *model.Attempt) error
	ReleaseAttempt(ctx context.Context, prospectID string) error
	LatestAttempt(ctx context.Context, prospectID string) (*model.Attempt, error)
	ListAttempts(ctx context.Context, prospectID string) ([]model.Attempt, error)
	// AllSucceededOutputs merges the outputs of every historically
	// succeeded pass, later attempts overriding earlier ones.
	AllSucceededOutputs(ctx context.Context, prospectID string) (map[string]any, error)

	// Prospects.
	GetProspect(ctx context.Context, id string) (*model.Prospect, error)
	SaveProspect(ctx context.Context, p *model.Prospect) error

	// DeleteStaleClaims reaps in-flight claims older than maxAge, left
	// behind by crashed processes.
	DeleteStaleClaims(ctx context.Context, maxAge time.Duration) (int, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
