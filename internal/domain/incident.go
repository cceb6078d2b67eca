package domain

import "time"

type IncidentID string

// Incident is one bounded DOWN interval for a target. ResolvedAt is nil
// while the incident is still open; at most one open incident exists per
// target at any time.
type Incident struct {
	ID         IncidentID  `json:"id"`
	TargetID   TargetID    `json:"target_id"`
	StartedAt  time.Time   `json:"started_at"`
	ResolvedAt *time.Time  `json:"resolved_at"`
	Trigger    FailureKind `json:"trigger"`
	Resolution FailureKind `json:"resolution,omitempty"`
}

func (i Incident) Open() bool { return i.ResolvedAt == nil }

type Transition string

const (
	TransitionDown Transition = "down"
	TransitionUp   Transition = "up"
)

// NotificationEvent is generated once per confirmed transition and handed
// to the sink at most once.
type NotificationEvent struct {
	ID         string      `json:"id"`
	Principal  PrincipalID `json:"principal_id"`
	TargetID   TargetID    `json:"target_id"`
	TargetURL  string      `json:"target_url"`
	Transition Transition  `json:"transition"`
	At         time.Time   `json:"at"`
	IncidentID IncidentID  `json:"incident_id"`
	Outcome    ProbeOutcome `json:"-"`
}
