package monitor

import (
	"sync"
	"time"
)

// Transition describes what a single observation changed for a URL.
type Transition int

const (
	Steady Transition = iota
	WentDown
	Recovered
)

func (t Transition) String() string {
	switch t {
	case WentDown:
		return "went-down"
	case Recovered:
		return "recovered"
	default:
		return "steady"
	}
}

// State is the failure streak of one URL after an observation.
type State struct {
	Failures   int
	DownSince  time.Time
	Transition Transition
}

type streak struct {
	failures int
	since    time.Time
}

// FailureTracker keeps consecutive down observations per URL.
// It is safe for concurrent use.
type FailureTracker struct {
	mu      sync.Mutex
	streaks map[string]streak
}

func NewFailureTracker() *FailureTracker {
	return &FailureTracker{streaks: make(map[string]streak)}
}

// Update records one probe of url taken at `at`. A down probe extends the
// streak; an up probe ends it.
func (t *FailureTracker) Update(url string, down bool, at time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.streaks[url]
	if !down {
		delete(t.streaks, url)
		if s.failures > 0 {
			return State{DownSince: s.since, Transition: Recovered}
		}
		return State{}
	}

	s.failures++
	tr := Steady
	if s.failures == 1 {
		s.since = at
		tr = WentDown
	}
	t.streaks[url] = s
	return State{Failures: s.failures, DownSince: s.since, Transition: tr}
}

// Failures returns the current streak length for url.
func (t *FailureTracker) Failures(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaks[url].failures
}

// Reset forgets url, e.g. after it was edited in the registry.
func (t *FailureTracker) Reset(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streaks, url)
}

// Prune drops URLs that are no longer registered.
func (t *FailureTracker) Prune(valid map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for url := range t.streaks {
		if _, ok := valid[url]; !ok {
			delete(t.streaks, url)
		}
	}
}
