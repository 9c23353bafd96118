package models

import "time"

// StatusProbeFailed is the status code recorded when a probe got no HTTP response at all
const StatusProbeFailed = 0

// Ping is one timestamped probe result for a monitored URL
type Ping struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	StatusCode    *int      `json:"status_code"` // nil when the code is absent
	TimeCheckedAt time.Time `json:"time_checked_at"`
}

// Code returns the status code, treating an absent code as 0
func (p Ping) Code() int {
	if p.StatusCode == nil {
		return 0
	}
	return *p.StatusCode
}

// IsDown reports whether the ping counts as an outage observation.
// An absent status code is up; the failure sentinel and any code >= 400 are down.
func (p Ping) IsDown() bool {
	if p.StatusCode == nil {
		return false
	}
	code := *p.StatusCode
	return code == StatusProbeFailed || code >= 400
}

// StatusCode returns a pointer to code, for building pings in place
func StatusCode(code int) *int {
	return &code
}

// URL represents a monitored target in the registry
type URL struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProbeResult is the per-URL entry of an on-demand probe round
type ProbeResult struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	StatusCode *int   `json:"status_code"`
}

// DashboardStats is the global view served to the dashboard.
// Pointer fields are null when there are no pings at all.
type DashboardStats struct {
	TotalURLs       int        `json:"total_urls"`
	TotalPings      int        `json:"total_pings"`
	DownChecks      int        `json:"down_checks"`
	DowntimeMinutes int        `json:"downtime_minutes"`
	UptimePercent   *float64   `json:"uptime_percent"`
	AvgStatus       *int       `json:"avg_status"`
	LastDowntime    *time.Time `json:"last_downtime"`
}

// LogEntry represents a system log entry
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	URL       string `json:"url"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}
