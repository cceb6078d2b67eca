package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
	"uptimebot/internal/repo/memory"
	"uptimebot/internal/tracker"
)

// ---- fakes ----

type countingProber struct {
	mu sync.Mutex
	n  int
}

func (f *countingProber) Probe(ctx context.Context, url string) domain.ProbeOutcome {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
	return domain.ProbeOutcome{Success: true, StatusCode: 200, Kind: domain.KindOK, CheckedAt: time.Now().UTC()}
}

func (f *countingProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// blockingProber parks every probe until release is closed.
type blockingProber struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingProber) Probe(ctx context.Context, url string) domain.ProbeOutcome {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-f.release
	return domain.ProbeOutcome{Success: false, Kind: domain.KindTimeout, CheckedAt: time.Now().UTC()}
}

type nopEvents struct{}

func (nopEvents) Enqueue(domain.NotificationEvent) {}

func addTarget(t *testing.T, store *memory.Store, id string, interval time.Duration) domain.Target {
	t.Helper()
	tgt := domain.Target{
		ID:        domain.TargetID(id),
		Principal: "admin-1",
		URL:       "https://" + id + ".example",
		Interval:  interval,
		Status:    domain.StatusUnknown,
	}
	if err := store.Add(context.Background(), &tgt); err != nil {
		t.Fatalf("add: %v", err)
	}
	return tgt
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

// ---- tests ----

func TestScheduler_TickRunsPipeline(t *testing.T) {
	store := memory.New(100)
	tr := tracker.New(zap.NewNop(), store, store, store, nopEvents{}, tracker.Policy{DownAfter: 1, UpAfter: 1})
	pb := &countingProber{}
	tgt := addTarget(t, store, "t1", 10*time.Millisecond)

	s := New(zap.NewNop(), store, pb, tr, time.Second, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return pb.count() >= 2 }, "at least two ticks")
	waitFor(t, func() bool {
		got, err := store.Get(context.Background(), tgt.Principal, tgt.ID)
		return err == nil && got.Status == domain.StatusUp
	}, "status up after successful probes")

	recs, _ := store.Recent(context.Background(), tgt.ID, 10)
	if len(recs) == 0 {
		t.Fatalf("history should record ticks")
	}
}

func TestScheduler_ForgetCancelsFutureTicks(t *testing.T) {
	store := memory.New(100)
	tr := tracker.New(zap.NewNop(), store, store, store, nopEvents{}, tracker.Policy{DownAfter: 1, UpAfter: 1})
	pb := &countingProber{}
	tgt := addTarget(t, store, "t1", 10*time.Millisecond)

	s := New(zap.NewNop(), store, pb, tr, time.Second, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return pb.count() >= 1 }, "first tick")

	if err := store.Remove(context.Background(), tgt.Principal, tgt.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	s.Forget(tgt.ID)

	n := pb.count()
	time.Sleep(60 * time.Millisecond)
	// allow at most the single in-flight tick to finish
	if pb.count() > n+1 {
		t.Fatalf("probes continued after Forget: %d -> %d", n, pb.count())
	}
}

func TestScheduler_RemovalDuringInflightProbe_NoMutation(t *testing.T) {
	store := memory.New(100)
	events := &recordingEvents{}
	tr := tracker.New(zap.NewNop(), store, store, store, events, tracker.Policy{DownAfter: 1, UpAfter: 1})
	pb := &blockingProber{started: make(chan struct{}, 1), release: make(chan struct{})}
	tgt := addTarget(t, store, "t1", time.Minute)

	s := New(zap.NewNop(), store, pb, tr, time.Second, 0)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-pb.started // probe is in flight

	if err := store.Remove(context.Background(), tgt.Principal, tgt.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	s.Forget(tgt.ID)
	close(pb.release)
	s.Stop()

	// no resurrection: the discarded outcome left nothing behind
	if _, err := store.Get(context.Background(), tgt.Principal, tgt.ID); err == nil {
		t.Fatalf("target came back after removal")
	}
	recs, _ := store.Recent(context.Background(), tgt.ID, 10)
	if len(recs) != 0 {
		t.Fatalf("history mutated after removal: %d records", len(recs))
	}
	if len(events.all()) != 0 {
		t.Fatalf("events emitted for removed target")
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	store := memory.New(100)
	tr := tracker.New(zap.NewNop(), store, store, store, nopEvents{}, tracker.Policy{DownAfter: 1, UpAfter: 1})
	pb := &countingProber{}
	tgt := addTarget(t, store, "t1", time.Hour)

	// long initial delay: nothing would fire on its own
	s := New(zap.NewNop(), store, pb, tr, time.Second, time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if pb.count() != 0 {
		t.Fatalf("nothing should have fired yet")
	}
	if !s.TriggerNow(tgt.ID) {
		t.Fatalf("TriggerNow should find the scheduled target")
	}
	waitFor(t, func() bool { return pb.count() == 1 }, "triggered tick")

	if s.TriggerNow("missing") {
		t.Fatalf("TriggerNow for unknown target should report false")
	}
}

type recordingEvents struct {
	mu  sync.Mutex
	evs []domain.NotificationEvent
}

func (r *recordingEvents) Enqueue(ev domain.NotificationEvent) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recordingEvents) all() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.NotificationEvent(nil), r.evs...)
}
