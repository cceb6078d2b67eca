package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func addTarget(t *testing.T, s *Store, p, id, url string) {
	t.Helper()
	err := s.Add(context.Background(), &domain.Target{
		ID:        domain.TargetID(id),
		Principal: domain.PrincipalID(p),
		URL:       url,
		Interval:  time.Minute,
		Status:    domain.StatusUnknown,
	})
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
}

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	s, err := Open(statePath(t), 100, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	all, _ := s.All(context.Background())
	if len(all) != 0 {
		t.Fatalf("want empty store, got %d targets", len(all))
	}
}

func TestPersistAndReload_RoundTrip(t *testing.T) {
	path := statePath(t)
	s, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	addTarget(t, s, "alice", "A1", "https://a.example")
	addTarget(t, s, "bob", "B1", "https://a.example") // same URL, other partition
	_ = s.Append(ctx, domain.HistoryRecord{TargetID: "A1", CheckedAt: time.Now().UTC(), Up: true, Kind: domain.KindOK})
	_ = s.UpdateStatus(ctx, "alice", "A1", domain.StatusUpdate{
		Status: domain.StatusUp, OKStreak: 3, CheckedAt: time.Now().UTC(),
	})

	// file must exist after mutations
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file missing after mutation: %v", err)
	}

	// reopen and verify
	s2, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.Get(ctx, "alice", "A1")
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.URL != "https://a.example" {
		t.Fatalf("unexpected target after reload: %+v", got)
	}
	// restart rule: status resets to unknown, streaks to zero
	if got.Status != domain.StatusUnknown || got.OKStreak != 0 || got.FailStreak != 0 {
		t.Fatalf("want unknown with zero streaks after restart, got %+v", got)
	}
	if _, err := s2.Get(ctx, "bob", "B1"); err != nil {
		t.Fatalf("bob's target lost on reload: %v", err)
	}
	recs, _ := s2.Recent(ctx, "A1", 10)
	if len(recs) != 1 {
		t.Fatalf("history lost on reload: got %d records", len(recs))
	}
}

func TestOpen_CorruptFileFallsBackEmpty(t *testing.T) {
	path := statePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("Open must not fail on corrupt state: %v", err)
	}
	all, _ := s.All(context.Background())
	if len(all) != 0 {
		t.Fatalf("want empty store after corrupt state, got %d", len(all))
	}
	// corrupt file moved aside, not destroyed
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("corrupt file should be kept aside: %v", err)
	}
	// store stays usable and persists again
	addTarget(t, s, "p", "T1", "https://t.example")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("persist after corrupt recovery failed: %v", err)
	}
}

func TestSnapshot_IsWellFormedJSON(t *testing.T) {
	path := statePath(t)
	s, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	addTarget(t, s, "p", "T1", "https://t.example")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("snapshot not parseable: %v", err)
	}
	if snap.Version != snapshotVersion {
		t.Fatalf("want version %d, got %d", snapshotVersion, snap.Version)
	}
	if snap.SavedAt.IsZero() {
		t.Fatalf("saved_at should be stamped")
	}
}

func TestPersistFailure_DegradedThenRecovers(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	addTarget(t, s, "p", "T1", "https://t.example")

	// make the directory unwritable so the temp file cannot be created
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	addTarget(t, s, "p", "T2", "https://t2.example")
	if !s.Degraded() {
		t.Fatalf("store should be degraded after a failed persist")
	}
	// the in-memory mutation is retained
	if _, err := s.Get(context.Background(), "p", "T2"); err != nil {
		t.Fatalf("mutation lost on persist failure: %v", err)
	}

	// writable again: next mutation flushes everything and clears the flag
	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatalf("chmod back: %v", err)
	}
	addTarget(t, s, "p", "T3", "https://t3.example")
	if s.Degraded() {
		t.Fatalf("store should recover after a successful persist")
	}

	s2, err := Open(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for _, id := range []domain.TargetID{"T1", "T2", "T3"} {
		if _, err := s2.Get(context.Background(), "p", id); err != nil {
			t.Fatalf("target %s missing after recovery flush: %v", id, err)
		}
	}
}
