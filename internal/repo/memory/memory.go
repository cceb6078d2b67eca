package memory

import (
	"context"
	"sync"
	"time"

	"uptimebot/internal/domain"
	"uptimebot/internal/repo"
)

var (
	_ repo.TargetStore   = (*Store)(nil)
	_ repo.HistoryStore  = (*Store)(nil)
	_ repo.IncidentStore = (*Store)(nil)
)

// Store keeps everything in process memory. Used by tests and as a
// fallback when the state file location is unwritable.
type Store struct {
	mu           sync.RWMutex
	historyLimit int
	parts        map[domain.PrincipalID]*partition
	index        map[domain.TargetID]domain.PrincipalID
	history      map[domain.TargetID][]domain.HistoryRecord
	incidents    map[domain.TargetID][]domain.Incident
}

// partition is one principal's slice of the catalog. Lookups never cross
// partitions.
type partition struct {
	targets map[domain.TargetID]*domain.Target
	order   []domain.TargetID
	byURL   map[string]domain.TargetID
}

func New(historyLimit int) *Store {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Store{
		historyLimit: historyLimit,
		parts:        make(map[domain.PrincipalID]*partition),
		index:        make(map[domain.TargetID]domain.PrincipalID),
		history:      make(map[domain.TargetID][]domain.HistoryRecord),
		incidents:    make(map[domain.TargetID][]domain.Incident),
	}
}

func (m *Store) part(p domain.PrincipalID) *partition {
	pt := m.parts[p]
	if pt == nil {
		pt = &partition{
			targets: make(map[domain.TargetID]*domain.Target),
			byURL:   make(map[string]domain.TargetID),
		}
		m.parts[p] = pt
	}
	return pt
}

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := m.part(t.Principal)
	if _, exists := pt.byURL[t.URL]; exists {
		return domain.ErrDuplicateTarget
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	cp := *t
	pt.targets[t.ID] = &cp
	pt.byURL[t.URL] = t.ID
	pt.order = append(pt.order, t.ID)
	m.index[t.ID] = t.Principal
	return nil
}

func (m *Store) Remove(ctx context.Context, p domain.PrincipalID, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := m.parts[p]
	if pt == nil {
		return domain.ErrNotFound
	}
	t, ok := pt.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(pt.targets, id)
	delete(pt.byURL, t.URL)
	for i, oid := range pt.order {
		if oid == id {
			pt.order = append(pt.order[:i], pt.order[i+1:]...)
			break
		}
	}
	delete(m.index, id)
	delete(m.history, id)
	delete(m.incidents, id)
	return nil
}

func (m *Store) Get(ctx context.Context, p domain.PrincipalID, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pt := m.parts[p]
	if pt == nil {
		return nil, domain.ErrNotFound
	}
	t, ok := pt.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) List(ctx context.Context, p domain.PrincipalID) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pt := m.parts[p]
	if pt == nil {
		return nil, nil
	}
	out := make([]domain.Target, 0, len(pt.order))
	for _, id := range pt.order {
		out = append(out, *pt.targets[id])
	}
	return out, nil
}

func (m *Store) All(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Target
	for _, pt := range m.parts {
		for _, id := range pt.order {
			out = append(out, *pt.targets[id])
		}
	}
	return out, nil
}

func (m *Store) UpdateStatus(ctx context.Context, p domain.PrincipalID, id domain.TargetID, upd domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := m.parts[p]
	if pt == nil {
		return domain.ErrNotFound
	}
	t, ok := pt.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = upd.Status
	t.FailStreak = upd.FailStreak
	t.OKStreak = upd.OKStreak
	t.LastChecked = upd.CheckedAt
	if !upd.ChangedAt.IsZero() {
		t.LastChange = upd.ChangedAt
	}
	return nil
}

func (m *Store) Append(ctx context.Context, rec domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Records for targets removed mid-flight are dropped.
	if _, ok := m.index[rec.TargetID]; !ok {
		return nil
	}
	h := append(m.history[rec.TargetID], rec)
	if len(h) > m.historyLimit {
		h = h[len(h)-m.historyLimit:]
	}
	m.history[rec.TargetID] = h
	return nil
}

func (m *Store) Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[id]
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	out := make([]domain.HistoryRecord, 0, limit)
	for i := len(h) - 1; i >= len(h)-limit; i-- {
		out = append(out, h[i])
	}
	return out, nil
}

func (m *Store) UptimeRatio(ctx context.Context, id domain.TargetID, window time.Duration) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	total, up := 0, 0
	for _, rec := range m.history[id] {
		if rec.CheckedAt.Before(cutoff) {
			continue
		}
		total++
		if rec.Up {
			up++
		}
	}
	if total == 0 {
		return 0, false, nil
	}
	return float64(up) / float64(total), true, nil
}

func (m *Store) OpenIncident(ctx context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[inc.TargetID]; !ok {
		return nil
	}
	// An incident may already be open (carried across a restart); adopt
	// it rather than opening a second one.
	incs := m.incidents[inc.TargetID]
	for i := len(incs) - 1; i >= 0; i-- {
		if incs[i].Open() {
			*inc = incs[i]
			return nil
		}
	}
	cp := *inc
	m.incidents[inc.TargetID] = append(m.incidents[inc.TargetID], cp)
	return nil
}

func (m *Store) ResolveIncident(ctx context.Context, id domain.TargetID, at time.Time, resolution domain.FailureKind) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incs := m.incidents[id]
	for i := len(incs) - 1; i >= 0; i-- {
		if incs[i].Open() {
			end := at
			incs[i].ResolvedAt = &end
			incs[i].Resolution = resolution
			cp := incs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) Incidents(ctx context.Context, id domain.TargetID, limit int) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	incs := m.incidents[id]
	if limit <= 0 || limit > len(incs) {
		limit = len(incs)
	}
	out := make([]domain.Incident, 0, limit)
	for i := len(incs) - 1; i >= len(incs)-limit; i-- {
		out = append(out, incs[i])
	}
	return out, nil
}
