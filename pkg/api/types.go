// pkg/api/types.go
package api

import (
	"time"

	"github.com/inquilabee/browsertabs/pkg/scheduler"
	"github.com/inquilabee/browsertabs/pkg/tabs"
)

// TabSummary is one managed tab as reported by the status API.
type TabSummary struct {
	ID       string    `json:"id"`
	StartURL string    `json:"start_url"`
	Active   bool      `json:"active"`
	Managed  bool      `json:"managed"`
	Created  time.Time `json:"created"`
}

// SessionSummary is one running browser session and its tabs.
type SessionSummary struct {
	ID   string       `json:"id"`
	Tabs []TabSummary `json:"tabs"`
}

// Sources provides the data the status API reports. The server holds
// funcs rather than the live objects so tests can substitute fixed data.
type Sources struct {
	// Sessions returns the sessions to report. A nil func reports none.
	Sessions func() []SessionSummary

	// Tasks returns the scheduled task snapshots. A nil func reports none.
	Tasks func() []scheduler.TaskSnapshot
}

// LiveSources reports the process's running sessions and the default
// scheduler's tasks.
func LiveSources() Sources {
	return Sources{
		Sessions: func() []SessionSummary {
			sessions := tabs.Sessions()
			out := make([]SessionSummary, 0, len(sessions))
			for _, b := range sessions {
				out = append(out, Summarize(b))
			}
			return out
		},
		Tasks: func() []scheduler.TaskSnapshot {
			return scheduler.Default().Tasks()
		},
	}
}

// Summarize projects one browser session onto the API's session shape.
func Summarize(b *tabs.Browser) SessionSummary {
	summary := SessionSummary{ID: b.ID(), Tabs: []TabSummary{}}

	var active tabs.TargetID
	if current := b.Current(); current != nil {
		active = current.ID()
	}
	for _, t := range b.Tabs() {
		summary.Tabs = append(summary.Tabs, TabSummary{
			ID:       string(t.ID()),
			StartURL: t.StartURL(),
			Active:   t.ID() == active,
			Managed:  t.Managed(),
			Created:  t.Created(),
		})
	}
	return summary
}
