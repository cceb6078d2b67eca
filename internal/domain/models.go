package domain

import "time"

// PrincipalID identifies an authorized owner (an admin chat, an API tenant).
// Targets are partitioned by principal; nothing crosses that boundary.
type PrincipalID string

type TargetID string

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// Target is one monitored URL together with its live state. The streak
// counters feed the debounce policy and reset to zero on process start.
type Target struct {
	ID          TargetID      `json:"id"`
	Principal   PrincipalID   `json:"principal_id"`
	URL         string        `json:"url"`
	Interval    time.Duration `json:"interval"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      Status        `json:"status"`
	FailStreak  int           `json:"fail_streak"`
	OKStreak    int           `json:"ok_streak"`
	LastChecked time.Time     `json:"last_checked"`
	LastChange  time.Time     `json:"last_change"`
}

// StatusUpdate is the mutation the tracker applies to a target after
// consuming one probe outcome.
type StatusUpdate struct {
	Status     Status
	FailStreak int
	OKStreak   int
	CheckedAt  time.Time
	ChangedAt  time.Time // zero when the status did not change
}
