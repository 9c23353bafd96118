package availability

import (
	"fmt"
	"strings"
	"time"
)

// NoData is reported for uptime percent and mean status code when there are no pings
const NoData = -1

const (
	// DefaultBucketWidth is the trend bucket width used when none is given
	DefaultBucketWidth = time.Minute

	// DefaultProbeInterval is assumed for persistent downtime when Options.ProbeInterval is unset
	DefaultProbeInterval = 30 * time.Minute
)

// LastDownMode selects which down ping is reported as the last downtime
type LastDownMode int

const (
	// LastDownMostRecent reports the down ping with the latest timestamp
	LastDownMostRecent LastDownMode = iota
	// LastDownFirstInInput reports the first down ping in input order.
	// Only meaningful when the source delivers pings newest first.
	LastDownFirstInInput
)

func (m LastDownMode) String() string {
	switch m {
	case LastDownFirstInInput:
		return "first"
	default:
		return "recent"
	}
}

// ParseLastDownMode accepts "recent" or "first". An empty string means the default.
func ParseLastDownMode(s string) (LastDownMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recent", "most-recent":
		return LastDownMostRecent, nil
	case "first", "first-in-input":
		return LastDownFirstInInput, nil
	}
	return LastDownMostRecent, fmt.Errorf("unknown last downtime mode %q", s)
}

// DowntimeMode selects how downtime duration is accrued
type DowntimeMode int

const (
	// DowntimeObservedGap accrues only the gaps between two consecutive down pings
	DowntimeObservedGap DowntimeMode = iota
	// DowntimeAssumedPersistent assumes every down ping stays down until the next
	// sample, for at most one probe interval
	DowntimeAssumedPersistent
)

func (m DowntimeMode) String() string {
	switch m {
	case DowntimeAssumedPersistent:
		return "persistent"
	default:
		return "gap"
	}
}

// ParseDowntimeMode accepts "gap" or "persistent". An empty string means the default.
func ParseDowntimeMode(s string) (DowntimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gap", "observed-gap":
		return DowntimeObservedGap, nil
	case "persistent", "assumed-persistent":
		return DowntimeAssumedPersistent, nil
	}
	return DowntimeObservedGap, fmt.Errorf("unknown downtime mode %q", s)
}

// Options tunes the edge-case policy of the aggregator. The zero value is the default policy.
type Options struct {
	LastDown      LastDownMode
	Downtime      DowntimeMode
	ProbeInterval time.Duration
}

func (o Options) probeInterval() time.Duration {
	if o.ProbeInterval <= 0 {
		return DefaultProbeInterval
	}
	return o.ProbeInterval
}

// Episode is a maximal run of consecutive down pings
type Episode struct {
	URL      string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Codes    []int // status codes of the run, chronological
	Pings    int
}

// Summary is the scalar availability view of a ping series
type Summary struct {
	TotalChecks     int
	DownChecks      int
	UptimePercent   float64 // NoData when TotalChecks == 0
	TotalDowntime   time.Duration
	LongestDowntime time.Duration

	// Outages counts every episode, isolated down pings included, even though
	// those add nothing to the downtime totals in the observed-gap mode.
	Outages int

	// LastDown is the timestamp of a down ping, not the start of an episode:
	// the latest one in LastDownMostRecent mode, the first in input order in
	// LastDownFirstInInput mode. Nil means the target never went down.
	LastDown *time.Time

	FirstCheck     *time.Time
	MeanStatusCode int // NoData when TotalChecks == 0
}

// HasData reports whether the summary was computed from at least one ping
func (s Summary) HasData() bool {
	return s.TotalChecks > 0
}

// Bucket aggregates the pings of one fixed-width time interval
type Bucket struct {
	Start          time.Time
	Count          int
	DownCount      int
	MeanStatusCode int
}

// Global is the summary over all targets, with downtime accrued per URL
type Global struct {
	Summary
	URLs   int
	PerURL map[string]Summary
}
