// internal/antidetect/antidetect.go

// Package antidetect keeps driven browsing from being trivially
// distinguishable from a person: user-agent rotation, the concealment
// script injected into new documents, and a probe for whether a page can
// still tell it is automated.
package antidetect

import (
	"math/rand"
	"strings"
	"sync"
)

// UserAgentRotator rotates user agents
type UserAgentRotator struct {
	agents []string
	mu     sync.RWMutex
	index  int
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = getDefaultUserAgents()
	}
	return &UserAgentRotator{
		agents: agents,
	}
}

// GetNext returns the next user agent
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// GetRandom returns a random user agent
func (r *UserAgentRotator) GetRandom() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.agents[rand.Intn(len(r.agents))]
}

// Len returns the number of agents in rotation
func (r *UserAgentRotator) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.agents)
}

// Viewport represents screen dimensions
type Viewport struct {
	Width  int
	Height int
}

// Fingerprint bundles the identity a browser session presents to pages.
type Fingerprint struct {
	UserAgent string
	Viewport  Viewport
	Languages []string
	Platform  string
	Timezone  string
}

// GenerateFingerprint picks a coherent random identity for a session.
// The platform is derived from the user agent so the two never disagree,
// which is one of the first checks detection scripts run.
func GenerateFingerprint(rotator *UserAgentRotator) Fingerprint {
	if rotator == nil {
		rotator = NewUserAgentRotator(nil)
	}

	viewports := []Viewport{
		{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900}, {1280, 720},
	}

	languages := [][]string{
		{"en-US", "en"},
		{"en-GB", "en"},
	}

	timezones := []string{
		"America/New_York", "Europe/London", "Europe/Paris", "Asia/Tokyo",
	}

	ua := rotator.GetRandom()
	return Fingerprint{
		UserAgent: ua,
		Viewport:  viewports[rand.Intn(len(viewports))],
		Languages: languages[rand.Intn(len(languages))],
		Platform:  platformForUserAgent(ua),
		Timezone:  timezones[rand.Intn(len(timezones))],
	}
}

// RandomOffset returns a jitter in [-max, max] for each axis, used to land
// clicks near but not exactly on element centers.
func RandomOffset(max int) (dx, dy int) {
	if max <= 0 {
		return 0, 0
	}
	return rand.Intn(2*max+1) - max, rand.Intn(2*max+1) - max
}

func platformForUserAgent(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "X11"), strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

func getDefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	}
}
