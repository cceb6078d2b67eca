package tracker

import "uptimebot/internal/domain"

// Policy holds the debounce thresholds: DownAfter consecutive failures
// confirm DOWN, UpAfter consecutive successes confirm UP.
type Policy struct {
	DownAfter int
	UpAfter   int
}

func (p Policy) normalized() Policy {
	if p.DownAfter < 1 {
		p.DownAfter = 1
	}
	if p.UpAfter < 1 {
		p.UpAfter = 1
	}
	return p
}

// Decision is the result of folding one outcome into a target's state.
type Decision struct {
	Status     domain.Status
	FailStreak int
	OKStreak   int
	// Transition is empty unless this outcome confirmed a status change.
	Transition domain.Transition
}

// Advance is the pure state machine step. Identical inputs always yield
// identical decisions, so replaying an outcome sequence reproduces the
// exact event sequence.
func Advance(p Policy, status domain.Status, failStreak, okStreak int, success bool) Decision {
	p = p.normalized()
	d := Decision{Status: status}
	if success {
		d.OKStreak = okStreak + 1
		d.FailStreak = 0
		if status != domain.StatusUp && d.OKStreak >= p.UpAfter {
			d.Status = domain.StatusUp
			d.Transition = domain.TransitionUp
		}
		return d
	}
	d.FailStreak = failStreak + 1
	d.OKStreak = 0
	if status != domain.StatusDown && d.FailStreak >= p.DownAfter {
		d.Status = domain.StatusDown
		d.Transition = domain.TransitionDown
	}
	return d
}
