// pkg/tabs/sessions.go
package tabs

import (
	"sort"
	"sync"
)

// Process-wide registry of running sessions, used by the status API and by
// tabs that outlive their Browser pointer.
var (
	sessionsMu sync.RWMutex
	sessions   = make(map[string]*Browser)
)

func registerSession(b *Browser) {
	sessionsMu.Lock()
	defer sessionsMu.Unlock()
	sessions[b.id] = b
}

func deregisterSession(id string) {
	sessionsMu.Lock()
	defer sessionsMu.Unlock()
	delete(sessions, id)
}

func lookupSession(id string) *Browser {
	sessionsMu.RLock()
	defer sessionsMu.RUnlock()
	return sessions[id]
}

// Sessions returns the currently running browser sessions, ordered by id.
func Sessions() []*Browser {
	sessionsMu.RLock()
	defer sessionsMu.RUnlock()

	out := make([]*Browser, 0, len(sessions))
	for _, b := range sessions {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
