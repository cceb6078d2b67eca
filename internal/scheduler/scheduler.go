// Package scheduler drives periodic probing: one timer goroutine per
// active target, independently cancellable, so a slow target never stalls
// the others.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
	"uptimebot/internal/probe"
	"uptimebot/internal/repo"
	"uptimebot/internal/tracker"
)

type Scheduler struct {
	logger  *zap.Logger
	targets repo.TargetStore
	prober  probe.Prober
	tracker *tracker.Tracker

	timeout      time.Duration // per-probe bound
	initialDelay time.Duration // delay before a new target's first tick

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[domain.TargetID]*entry
	wg      sync.WaitGroup
	started bool
}

type entry struct {
	cancel context.CancelFunc
	kick   chan struct{}
}

func New(
	logger *zap.Logger,
	targets repo.TargetStore,
	prober probe.Prober,
	tr *tracker.Tracker,
	timeout, initialDelay time.Duration,
) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		logger:       logger,
		targets:      targets,
		prober:       prober,
		tracker:      tr,
		timeout:      timeout,
		initialDelay: initialDelay,
		entries:      make(map[domain.TargetID]*entry),
	}
}

// Start schedules every target already in the store and accepts Track /
// Forget calls until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	all, err := s.targets.All(ctx)
	if err != nil {
		return err
	}
	for _, t := range all {
		s.Track(t.Principal, t.ID)
	}
	s.logger.Info("scheduler_started", zap.Int("targets", len(all)))
	return nil
}

// Track starts the timer loop for a target. A no-op when the target is
// already scheduled or the scheduler is not running.
func (s *Scheduler) Track(p domain.PrincipalID, id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if _, dup := s.entries[id]; dup {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	e := &entry{cancel: cancel, kick: make(chan struct{}, 1)}
	s.entries[id] = e

	s.wg.Add(1)
	go s.loop(ctx, p, id, e.kick)
	s.logger.Debug("scheduler_track", zap.String("target_id", string(id)))
}

// Forget cancels a target's future ticks. An in-flight probe is allowed
// to finish; its result is discarded by the tracker because the target no
// longer exists.
func (s *Scheduler) Forget(id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	e.cancel()
	s.logger.Debug("scheduler_forget", zap.String("target_id", string(id)))
}

// TriggerNow fires the target's next tick immediately. Manual pings share
// the per-target loop so probes for one target never overlap.
func (s *Scheduler) TriggerNow(id domain.TargetID) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case e.kick <- struct{}{}:
	default: // a trigger is already pending
	}
	return true
}

// Stop cancels all loops and waits for in-flight probes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.entries = make(map[domain.TargetID]*entry)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler_stopped")
}

// loop runs one target's ticks strictly sequentially: probe, track,
// append happen in order and never overlap for the same target. The
// interval is re-read from the store every tick, so changes take effect
// on the next tick.
func (s *Scheduler) loop(ctx context.Context, p domain.PrincipalID, id domain.TargetID, kick <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		t, err := s.targets.Get(ctx, p, id)
		if err != nil {
			// Removed between schedule and fire: drop the tick silently.
			return
		}

		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		out := s.prober.Probe(pctx, t.URL)
		cancel()

		s.logger.Debug("scheduler_tick",
			zap.String("target_id", string(id)),
			zap.String("url", t.URL),
			zap.Bool("up", out.Success),
			zap.String("kind", string(out.Kind)),
			zap.Duration("latency", out.Latency),
		)

		s.tracker.Observe(ctx, p, id, out)

		timer.Reset(t.Interval)
	}
}
