package memory

import (
	"uptimebot/internal/domain"
)

// State is the serializable snapshot of the whole store: every principal
// partition with its targets (insertion order), bounded history and
// incidents. The file-backed store persists exactly this shape.
type State struct {
	Principals map[domain.PrincipalID]*PartitionState `json:"principals"`
}

type PartitionState struct {
	Targets   []domain.Target                            `json:"targets"`
	History   map[domain.TargetID][]domain.HistoryRecord `json:"history,omitempty"`
	Incidents map[domain.TargetID][]domain.Incident      `json:"incidents,omitempty"`
}

// Export copies the current contents into a State snapshot.
func (m *Store) Export() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := State{Principals: make(map[domain.PrincipalID]*PartitionState, len(m.parts))}
	for pid, pt := range m.parts {
		ps := &PartitionState{
			History:   make(map[domain.TargetID][]domain.HistoryRecord),
			Incidents: make(map[domain.TargetID][]domain.Incident),
		}
		for _, id := range pt.order {
			ps.Targets = append(ps.Targets, *pt.targets[id])
			if h := m.history[id]; len(h) > 0 {
				ps.History[id] = append([]domain.HistoryRecord(nil), h...)
			}
			if incs := m.incidents[id]; len(incs) > 0 {
				ps.Incidents[id] = append([]domain.Incident(nil), incs...)
			}
		}
		s.Principals[pid] = ps
	}
	return s
}

// Import replaces the store contents with the snapshot. Targets keep the
// order they carry in the snapshot.
func (m *Store) Import(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parts = make(map[domain.PrincipalID]*partition)
	m.index = make(map[domain.TargetID]domain.PrincipalID)
	m.history = make(map[domain.TargetID][]domain.HistoryRecord)
	m.incidents = make(map[domain.TargetID][]domain.Incident)

	for pid, ps := range s.Principals {
		if ps == nil {
			continue
		}
		pt := m.part(pid)
		for i := range ps.Targets {
			t := ps.Targets[i]
			if _, dup := pt.targets[t.ID]; dup {
				continue
			}
			cp := t
			pt.targets[t.ID] = &cp
			pt.byURL[t.URL] = t.ID
			pt.order = append(pt.order, t.ID)
			m.index[t.ID] = pid
			if h := ps.History[t.ID]; len(h) > 0 {
				if len(h) > m.historyLimit {
					h = h[len(h)-m.historyLimit:]
				}
				m.history[t.ID] = append([]domain.HistoryRecord(nil), h...)
			}
			if incs := ps.Incidents[t.ID]; len(incs) > 0 {
				m.incidents[t.ID] = append([]domain.Incident(nil), incs...)
			}
		}
	}
}
