// Package filestore persists the monitor catalog as a single JSON
// snapshot, rewritten atomically (write temp file, fsync, rename) after
// every logical mutation.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
	"uptimebot/internal/repo"
	"uptimebot/internal/repo/memory"
)

var (
	_ repo.TargetStore   = (*Store)(nil)
	_ repo.HistoryStore  = (*Store)(nil)
	_ repo.IncidentStore = (*Store)(nil)
)

// Store wraps the in-memory catalog with snapshot persistence. A failed
// write leaves the in-memory mutation in place, marks the store degraded
// and is retried by the next mutation that persists successfully.
type Store struct {
	logger *zap.Logger
	path   string

	mu       sync.Mutex // serializes mutation+persist pairs
	mem      *memory.Store
	degraded bool
}

// Open loads the snapshot at path. A missing file yields an empty store;
// an unreadable or corrupt file is moved aside and the store starts
// empty rather than failing startup.
func Open(path string, historyLimit int, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Store{
		logger: logger,
		path:   path,
		mem:    memory.New(historyLimit),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("store_state_missing", zap.String("path", path))
		return s, nil
	case err != nil:
		logger.Warn("store_state_unreadable", zap.String("path", path), zap.Error(err))
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		aside := path + ".corrupt"
		_ = os.Rename(path, aside)
		logger.Warn("store_state_corrupt",
			zap.String("path", path),
			zap.String("moved_to", aside),
			zap.Error(err),
		)
		return s, nil
	}

	// Debounce counters never survive a restart: every target comes back
	// as unknown and must re-confirm before incidents open or close.
	for _, ps := range snap.State.Principals {
		if ps == nil {
			continue
		}
		for i := range ps.Targets {
			ps.Targets[i].Status = domain.StatusUnknown
			ps.Targets[i].FailStreak = 0
			ps.Targets[i].OKStreak = 0
		}
	}
	s.mem.Import(snap.State)
	logger.Info("store_state_loaded",
		zap.String("path", path),
		zap.Int("principals", len(snap.State.Principals)),
	)
	return s, nil
}

// snapshot is the on-disk envelope. The version field guards future
// format changes.
type snapshot struct {
	Version int          `json:"version"`
	SavedAt time.Time    `json:"saved_at"`
	State   memory.State `json:"state"`
}

const snapshotVersion = 1

// persistLocked writes the current state. Callers hold s.mu. Errors are
// logged, not returned: the in-memory mutation already happened and the
// next successful persist flushes everything anyway.
func (s *Store) persistLocked() {
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		State:   s.mem.Export(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.degrade("marshal", err)
		return
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		s.degrade("tempfile", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.degrade("write", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.degrade("sync", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.degrade("close", err)
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.degrade("rename", err)
		return
	}

	if s.degraded {
		s.degraded = false
		s.logger.Info("store_persist_recovered", zap.String("path", s.path))
	}
}

func (s *Store) degrade(stage string, err error) {
	s.degraded = true
	s.logger.Error("store_persist_error",
		zap.String("path", s.path),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// Degraded reports whether the last persist attempt failed.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Add(ctx, t); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Store) Remove(ctx context.Context, p domain.PrincipalID, id domain.TargetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Remove(ctx, p, id); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Store) Get(ctx context.Context, p domain.PrincipalID, id domain.TargetID) (*domain.Target, error) {
	return s.mem.Get(ctx, p, id)
}

func (s *Store) List(ctx context.Context, p domain.PrincipalID) ([]domain.Target, error) {
	return s.mem.List(ctx, p)
}

func (s *Store) All(ctx context.Context) ([]domain.Target, error) {
	return s.mem.All(ctx)
}

func (s *Store) UpdateStatus(ctx context.Context, p domain.PrincipalID, id domain.TargetID, upd domain.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.UpdateStatus(ctx, p, id, upd); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Store) Append(ctx context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Append(ctx, rec); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Store) Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryRecord, error) {
	return s.mem.Recent(ctx, id, limit)
}

func (s *Store) UptimeRatio(ctx context.Context, id domain.TargetID, window time.Duration) (float64, bool, error) {
	return s.mem.UptimeRatio(ctx, id, window)
}

func (s *Store) OpenIncident(ctx context.Context, inc *domain.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.OpenIncident(ctx, inc); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Store) ResolveIncident(ctx context.Context, id domain.TargetID, at time.Time, resolution domain.FailureKind) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, err := s.mem.ResolveIncident(ctx, id, at, resolution)
	if err != nil {
		return nil, err
	}
	if inc != nil {
		s.persistLocked()
	}
	return inc, nil
}

func (s *Store) Incidents(ctx context.Context, id domain.TargetID, limit int) ([]domain.Incident, error) {
	return s.mem.Incidents(ctx, id, limit)
}
