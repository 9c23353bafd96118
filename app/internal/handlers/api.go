package handlers

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"uptimedock/app/internal/availability"
	"uptimedock/app/internal/database"
	"uptimedock/app/internal/models"
)

// maxBucketWidth keeps a typo like width=100000h from collapsing everything into one bucket.
const maxBucketWidth = 7 * 24 * time.Hour

type summaryResponse struct {
	URL                    string     `json:"url"`
	TotalChecks            int        `json:"total_checks"`
	DownChecks             int        `json:"down_checks"`
	UptimePercent          *float64   `json:"uptime_percent"`
	AvgStatus              *int       `json:"avg_status"`
	DowntimeMinutes        int        `json:"downtime_minutes"`
	TotalDowntimeSeconds   float64    `json:"total_downtime_seconds"`
	LongestDowntimeSeconds float64    `json:"longest_downtime_seconds"`
	Outages                int        `json:"outages"`
	LastDowntime           *time.Time `json:"last_downtime"`
	FirstCheck             *time.Time `json:"first_check"`
	LastDownMode           string     `json:"last_down_mode"`
	DowntimeMode           string     `json:"downtime_mode"`
}

type bucketResponse struct {
	Time       time.Time `json:"time"`
	AvgStatus  int       `json:"avg_status"`
	ErrorCount int       `json:"error_count"`
	Count      int       `json:"count"`
}

type episodeResponse struct {
	URL             string    `json:"url"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds float64   `json:"duration_seconds"`
	Pings           int       `json:"pings"`
	Codes           []int     `json:"codes"`
}

// nullable turns the no-data summary fields into JSON nulls.
func nullable(s availability.Summary) (uptime *float64, avg *int) {
	if !s.HasData() {
		return nil, nil
	}
	u, a := s.UptimePercent, s.MeanStatusCode
	return &u, &a
}

func downtimeMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func toSummaryResponse(url string, s availability.Summary, opts availability.Options) summaryResponse {
	uptime, avg := nullable(s)
	return summaryResponse{
		URL:                    url,
		TotalChecks:            s.TotalChecks,
		DownChecks:             s.DownChecks,
		UptimePercent:          uptime,
		AvgStatus:              avg,
		DowntimeMinutes:        downtimeMinutes(s.TotalDowntime),
		TotalDowntimeSeconds:   s.TotalDowntime.Seconds(),
		LongestDowntimeSeconds: s.LongestDowntime.Seconds(),
		Outages:                s.Outages,
		LastDowntime:           s.LastDown,
		FirstCheck:             s.FirstCheck,
		LastDownMode:           opts.LastDown.String(),
		DowntimeMode:           opts.Downtime.String(),
	}
}

// parseOptions applies last_down and mode query overrides to base.
func parseOptions(r *http.Request, base availability.Options) (availability.Options, error) {
	opts := base
	q := r.URL.Query()
	if v := q.Get("last_down"); v != "" {
		m, err := availability.ParseLastDownMode(v)
		if err != nil {
			return opts, err
		}
		opts.LastDown = m
	}
	if v := q.Get("mode"); v != "" {
		m, err := availability.ParseDowntimeMode(v)
		if err != nil {
			return opts, err
		}
		opts.Downtime = m
	}
	return opts, nil
}

// parseWidth reads ?width= as a Go duration or whole minutes.
func parseWidth(r *http.Request) (time.Duration, error) {
	v := r.URL.Query().Get("width")
	if v == "" {
		return availability.DefaultBucketWidth, nil
	}
	var d time.Duration
	if n, err := strconv.Atoi(v); err == nil {
		d = time.Duration(n) * time.Minute
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, fmt.Errorf("invalid width %q", v)
	}
	if d <= 0 || d > maxBucketWidth {
		return 0, fmt.Errorf("width must be positive and at most %v", maxBucketWidth)
	}
	return d, nil
}

// parseSince reads ?since= as a lookback window ("24h") or an RFC 3339 time.
// Zero means no lower bound.
func parseSince(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("since window must be positive, got %v", d)
		}
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q", v)
	}
	return t, nil
}

// pingsFor loads one URL's pings, or all pings when url is empty, newest first.
func pingsFor(url string, since time.Time) ([]models.Ping, error) {
	switch {
	case !since.IsZero():
		return database.GetPingsSince(url, since)
	case url == "":
		return database.GetAllPings()
	default:
		return database.GetPings(url)
	}
}

// pingsForRequest applies the url and since query parameters
func pingsForRequest(w http.ResponseWriter, r *http.Request) ([]models.Ping, bool) {
	since, err := parseSince(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	pings, err := pingsFor(r.URL.Query().Get("url"), since)
	if err != nil {
		log.Printf("load pings: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return nil, false
	}
	return pings, true
}

// HandlePings returns raw pings newest first
func HandlePings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pings, ok := pingsForRequest(w, r)
		if !ok {
			return
		}
		if pings == nil {
			pings = []models.Ping{}
		}
		writeJSON(w, http.StatusOK, pings)
	}
}

// HandleDashboard returns the global view over every URL
func HandleDashboard(opts availability.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseOptions(r, opts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pings, err := database.GetAllPings()
		if err != nil {
			log.Printf("load pings: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		urls, err := database.CountURLs()
		if err != nil {
			log.Printf("count urls: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}

		g := availability.SummarizeGlobal(pings, opts)
		uptime, avg := nullable(g.Summary)
		writeJSON(w, http.StatusOK, models.DashboardStats{
			TotalURLs:       urls,
			TotalPings:      g.TotalChecks,
			DownChecks:      g.DownChecks,
			DowntimeMinutes: downtimeMinutes(g.TotalDowntime),
			UptimePercent:   uptime,
			AvgStatus:       avg,
			LastDowntime:    g.LastDown,
		})
	}
}

// HandleSummary returns the availability summary of one URL
func HandleSummary(opts availability.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		opts, err := parseOptions(r, opts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pings, ok := pingsForRequest(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toSummaryResponse(url, availability.Summarize(pings, opts), opts))
	}
}

// HandleTrend returns the bucketed trend of one URL, or of all pings
func HandleTrend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, err := parseWidth(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pings, ok := pingsForRequest(w, r)
		if !ok {
			return
		}

		out := []bucketResponse{}
		for b := range availability.Bucketize(pings, width) {
			out = append(out, bucketResponse{Time: b.Start, AvgStatus: b.MeanStatusCode, ErrorCount: b.DownCount, Count: b.Count})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleEpisodes returns the outage episodes of one URL
func HandleEpisodes(opts availability.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		opts, err := parseOptions(r, opts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pings, ok := pingsForRequest(w, r)
		if !ok {
			return
		}

		out := []episodeResponse{}
		for _, e := range availability.Episodes(pings, opts) {
			out = append(out, episodeResponse{
				URL:             e.URL,
				Start:           e.Start,
				End:             e.End,
				DurationSeconds: e.Duration.Seconds(),
				Pings:           e.Pings,
				Codes:           e.Codes,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleURLs lists the registry
func HandleURLs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := database.GetURLs()
		if err != nil {
			log.Printf("load urls: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if urls == nil {
			urls = []models.URL{}
		}
		writeJSON(w, http.StatusOK, urls)
	}
}

// HandleLogs returns recent system logs, optionally filtered by level
func HandleLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				limit = min(n, 500)
			}
		}
		logs, err := database.GetLogs(limit, r.URL.Query().Get("level"))
		if err != nil {
			log.Printf("load logs: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if logs == nil {
			logs = []models.LogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
	}
}
