package repo

import (
	"context"
	"time"

	"uptimebot/internal/domain"
)

// Ports for the stores. The file-backed store is the production adapter,
// the memory store backs tests.

// TargetStore owns the durable catalog of monitored URLs, partitioned per
// principal. Every mutation is persisted before the call returns.
type TargetStore interface {
	// Add stores a new target. Returns domain.ErrDuplicateTarget when the
	// principal already tracks the same URL.
	Add(ctx context.Context, t *domain.Target) error
	// Remove deletes a target and returns domain.ErrNotFound when absent.
	Remove(ctx context.Context, p domain.PrincipalID, id domain.TargetID) error
	Get(ctx context.Context, p domain.PrincipalID, id domain.TargetID) (*domain.Target, error)
	// List returns the principal's targets in insertion order.
	List(ctx context.Context, p domain.PrincipalID) ([]domain.Target, error)
	// All returns every target across principals (scheduler startup).
	All(ctx context.Context) ([]domain.Target, error)
	// UpdateStatus applies a tracker decision. Returns domain.ErrNotFound
	// when the target was removed meanwhile; the caller must then discard
	// the outcome entirely.
	UpdateStatus(ctx context.Context, p domain.PrincipalID, id domain.TargetID, upd domain.StatusUpdate) error
}

// HistoryStore is the append-only probe log with bounded retention.
type HistoryStore interface {
	Append(ctx context.Context, rec domain.HistoryRecord) error
	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryRecord, error)
	// UptimeRatio returns the fraction of probes within the window that
	// were up. Returns 0 with ok=false when no probes fall in the window.
	UptimeRatio(ctx context.Context, id domain.TargetID, window time.Duration) (ratio float64, ok bool, err error)
}

// IncidentStore owns DOWN intervals. At most one open incident per target.
type IncidentStore interface {
	// OpenIncident records inc, unless an incident is already open for the
	// target (possible after a restart); then inc is overwritten with the
	// existing one so callers reference it instead.
	OpenIncident(ctx context.Context, inc *domain.Incident) error
	// ResolveIncident closes the open incident for the target, if any.
	// Returns nil, nil when no incident is open.
	ResolveIncident(ctx context.Context, id domain.TargetID, at time.Time, resolution domain.FailureKind) (*domain.Incident, error)
	Incidents(ctx context.Context, id domain.TargetID, limit int) ([]domain.Incident, error)
}
