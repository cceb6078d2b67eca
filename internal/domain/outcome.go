package domain

import "time"

// FailureKind classifies how a probe failed. KindOK marks a success.
type FailureKind string

const (
	KindOK                FailureKind = "ok"
	KindTimeout           FailureKind = "timeout"
	KindConnectionRefused FailureKind = "connection-refused"
	KindDNSFailure        FailureKind = "dns-failure"
	KindBadStatus         FailureKind = "bad-status"
	KindRedirectLoop      FailureKind = "redirect-loop"
)

// ProbeOutcome is the transient result of a single health check. It is
// never an error: every failure mode folds into Kind and Reason.
type ProbeOutcome struct {
	Success    bool
	StatusCode int // 0 when no response was received
	Latency    time.Duration
	Kind       FailureKind
	Reason     string
	CheckedAt  time.Time
}

// HistoryRecord is the persisted summary of one outcome. Append-only.
type HistoryRecord struct {
	TargetID   TargetID    `json:"target_id"`
	CheckedAt  time.Time   `json:"checked_at"`
	Up         bool        `json:"up"`
	HTTPStatus int         `json:"http_status,omitempty"`
	LatencyMS  float64     `json:"latency_ms"`
	Kind       FailureKind `json:"kind"`
}

// Record folds an outcome into the history entry for the given target.
func (o ProbeOutcome) Record(id TargetID) HistoryRecord {
	return HistoryRecord{
		TargetID:   id,
		CheckedAt:  o.CheckedAt,
		Up:         o.Success,
		HTTPStatus: o.StatusCode,
		LatencyMS:  float64(o.Latency.Microseconds()) / 1000.0,
		Kind:       o.Kind,
	}
}
