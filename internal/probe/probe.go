package probe

import (
	"context"

	"uptimebot/internal/domain"
)

// Prober performs a single health check against one URL. Implementations
// never return an error: every failure mode folds into the outcome.
type Prober interface {
	Probe(ctx context.Context, url string) domain.ProbeOutcome
}
