// pkg/tabs/manager.go
package tabs

import "sync"

// tabManager tracks the managed tabs of one session in opening order.
// It is pure bookkeeping; liveness against the browser is the caller's job.
type tabManager struct {
	mu    sync.RWMutex
	order []*Tab
	byID  map[TargetID]*Tab
}

func newTabManager() *tabManager {
	return &tabManager{
		byID: make(map[TargetID]*Tab),
	}
}

// Add registers a tab. Re-adding an already tracked target replaces the
// entry in place so the tab keeps its position.
func (m *tabManager) Add(t *Tab) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[t.id]; ok {
		for i, existing := range m.order {
			if existing.id == t.id {
				m.order[i] = t
				break
			}
		}
		m.byID[t.id] = t
		return
	}

	m.order = append(m.order, t)
	m.byID[t.id] = t
}

// Remove drops a tab from tracking. Unknown targets are a no-op.
func (m *tabManager) Remove(id TargetID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return
	}
	delete(m.byID, id)
	for i, t := range m.order {
		if t.id == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *tabManager) Exists(id TargetID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

func (m *tabManager) Get(id TargetID) *Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// All returns the tracked tabs in opening order.
func (m *tabManager) All() []*Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tab, len(m.order))
	copy(out, m.order)
	return out
}

// First returns the oldest tracked tab, nil when empty.
func (m *tabManager) First() *Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return nil
	}
	return m.order[0]
}

// Last returns the most recently opened tab, nil when empty.
func (m *tabManager) Last() *Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return nil
	}
	return m.order[len(m.order)-1]
}

func (m *tabManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
