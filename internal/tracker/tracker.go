// Package tracker decides UP/DOWN transitions from probe outcomes, keeps
// incident boundaries and drives notification delivery.
package tracker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uptimebot/internal/domain"
	"uptimebot/internal/repo"
)

// Events receives confirmed-transition notifications. Implemented by
// notify.Dispatcher; a channel fake suffices in tests.
type Events interface {
	Enqueue(ev domain.NotificationEvent)
}

type Tracker struct {
	logger    *zap.Logger
	targets   repo.TargetStore
	history   repo.HistoryStore
	incidents repo.IncidentStore
	events    Events
	policy    Policy
}

func New(
	logger *zap.Logger,
	targets repo.TargetStore,
	history repo.HistoryStore,
	incidents repo.IncidentStore,
	events Events,
	policy Policy,
) *Tracker {
	return &Tracker{
		logger:    logger,
		targets:   targets,
		history:   history,
		incidents: incidents,
		events:    events,
		policy:    policy.normalized(),
	}
}

// Observe folds one probe outcome into the target's state: update status
// and counters, append history, and on a confirmed transition open or
// close the incident and emit exactly one event. Outcomes for targets
// removed since the probe was scheduled are discarded entirely.
func (tr *Tracker) Observe(ctx context.Context, p domain.PrincipalID, id domain.TargetID, out domain.ProbeOutcome) {
	t, err := tr.targets.Get(ctx, p, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			tr.logger.Debug("tracker_discard_removed", zap.String("target_id", string(id)))
			return
		}
		tr.logger.Warn("tracker_get_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}

	d := Advance(tr.policy, t.Status, t.FailStreak, t.OKStreak, out.Success)

	upd := domain.StatusUpdate{
		Status:     d.Status,
		FailStreak: d.FailStreak,
		OKStreak:   d.OKStreak,
		CheckedAt:  out.CheckedAt,
	}
	if d.Transition != "" {
		upd.ChangedAt = out.CheckedAt
	}
	if err := tr.targets.UpdateStatus(ctx, p, id, upd); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Removed between Get and UpdateStatus: no history, no event.
			tr.logger.Debug("tracker_discard_removed", zap.String("target_id", string(id)))
			return
		}
		tr.logger.Warn("tracker_update_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}

	// History reflects the outcome that drove the status decision.
	if err := tr.history.Append(ctx, out.Record(id)); err != nil {
		tr.logger.Warn("tracker_history_error", zap.String("target_id", string(id)), zap.Error(err))
	}

	switch d.Transition {
	case domain.TransitionDown:
		tr.confirmDown(ctx, t, out)
	case domain.TransitionUp:
		tr.confirmUp(ctx, t, out)
	}
}

func (tr *Tracker) confirmDown(ctx context.Context, t *domain.Target, out domain.ProbeOutcome) {
	inc := &domain.Incident{
		ID:        domain.IncidentID(uuid.NewString()),
		TargetID:  t.ID,
		StartedAt: out.CheckedAt,
		Trigger:   out.Kind,
	}
	if err := tr.incidents.OpenIncident(ctx, inc); err != nil {
		tr.logger.Warn("incident_open_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}
	tr.logger.Info("target_down",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.String("kind", string(out.Kind)),
		zap.Int("http_status", out.StatusCode),
	)
	tr.emit(t, domain.TransitionDown, inc.ID, out)
}

func (tr *Tracker) confirmUp(ctx context.Context, t *domain.Target, out domain.ProbeOutcome) {
	inc, err := tr.incidents.ResolveIncident(ctx, t.ID, out.CheckedAt, out.Kind)
	if err != nil {
		tr.logger.Warn("incident_resolve_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		return
	}
	if inc == nil {
		// First confirmation after start or after unknown: nothing was
		// open, so there is nobody to notify.
		return
	}
	tr.logger.Info("target_recovered",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Duration("downtime", out.CheckedAt.Sub(inc.StartedAt)),
	)
	tr.emit(t, domain.TransitionUp, inc.ID, out)
}

func (tr *Tracker) emit(t *domain.Target, kind domain.Transition, incID domain.IncidentID, out domain.ProbeOutcome) {
	if tr.events == nil {
		return
	}
	tr.events.Enqueue(domain.NotificationEvent{
		ID:         uuid.NewString(),
		Principal:  t.Principal,
		TargetID:   t.ID,
		TargetURL:  t.URL,
		Transition: kind,
		At:         out.CheckedAt,
		IncidentID: incID,
		Outcome:    out,
	})
}
