// Package scheduler runs probe rounds over every registered URL on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"uptimedock/app/internal/alerts"
	"uptimedock/app/internal/checker"
	"uptimedock/app/internal/database"
	"uptimedock/app/internal/models"
	"uptimedock/app/internal/monitor"
	"uptimedock/app/internal/stats"
)

// DefaultMaxConcurrent bounds parallel probes when Config leaves it zero.
const DefaultMaxConcurrent = 20

// keepLogs is how many system_logs rows survive each round.
const keepLogs = 10000

// keepHourly is how long hourly rollups are kept.
const keepHourly = 365 * 24 * time.Hour

// Prober probes one URL.
type Prober interface {
	Probe(ctx context.Context, url string) checker.Result
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, url string) checker.Result

func (f ProberFunc) Probe(ctx context.Context, url string) checker.Result { return f(ctx, url) }

// HTTPProber probes with checker.Probe using client and timeout.
func HTTPProber(client *http.Client, timeout time.Duration) Prober {
	return ProberFunc(func(ctx context.Context, url string) checker.Result {
		return checker.Probe(ctx, client, url, timeout)
	})
}

type Config struct {
	Interval      time.Duration
	MaxConcurrent int
	RunOnStart    bool
	// Retention drops pings older than this after each round; zero keeps everything.
	Retention time.Duration
}

// Round is the result of probing every registered URL once.
type Round struct {
	ID      string
	Started time.Time
	Pings   []models.Ping

	// Compacted counts old pings rolled into hourly stats after the round.
	Compacted int64
}

type Scheduler struct {
	cfg     Config
	prober  Prober
	tracker *monitor.FailureTracker
	alerts  *alerts.Manager
	now     func() time.Time

	// OnRound, when set, is called after every completed round.
	OnRound func(Round)

	mu      sync.Mutex
	cron    *cron.Cron
	kickoff sync.WaitGroup
}

func New(cfg Config, prober Prober, am *alerts.Manager) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		cfg:     cfg,
		prober:  prober,
		tracker: monitor.NewFailureTracker(),
		alerts:  am,
		now:     time.Now,
	}
}

// Tracker exposes the failure streaks, e.g. to reset a URL after an edit.
func (s *Scheduler) Tracker() *monitor.FailureTracker {
	return s.tracker
}

// RunRound probes every registered URL once, stores the pings and returns them
// in registry order.
func (s *Scheduler) RunRound(ctx context.Context) (Round, error) {
	round := Round{ID: uuid.NewString(), Started: s.now()}

	urls, err := database.GetURLs()
	if err != nil {
		return round, fmt.Errorf("load urls: %w", err)
	}

	valid := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		valid[u.URL] = struct{}{}
	}
	s.tracker.Prune(valid)

	pings := make([]models.Ping, len(urls))
	stored := make([]bool, len(urls))
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup

launch:
	for i, u := range urls {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break launch
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			pings[i], stored[i] = s.probeOne(ctx, round.ID, u)
		}()
	}
	wg.Wait()

	for i, ok := range stored {
		if ok {
			round.Pings = append(round.Pings, pings[i])
		}
	}
	if err := ctx.Err(); err != nil {
		log.Printf("round %s: cancelled after %d of %d urls", round.ID, len(round.Pings), len(urls))
		return round, err
	}

	if s.cfg.Retention > 0 {
		round.Compacted = s.compact(round.ID)
	}
	_ = database.PruneLogs(keepLogs)

	log.Printf("round %s: probed %d urls in %v", round.ID, len(urls), s.now().Sub(round.Started).Round(time.Millisecond))
	if s.OnRound != nil {
		s.OnRound(round)
	}
	return round, nil
}

// compact rolls pings older than the retention window into hourly stats
func (s *Scheduler) compact(roundID string) int64 {
	now := s.now()
	_, n, err := stats.RollupAndPrune(now.Add(-s.cfg.Retention))
	if err != nil {
		log.Printf("round %s: roll up pings: %v", roundID, err)
		_ = database.InsertLog(database.LogLevelError, database.LogCategorySystem, "", "Ping rollup failed", err.Error())
		return 0
	}
	if n > 0 {
		log.Printf("round %s: rolled up %d pings older than %v", roundID, n, s.cfg.Retention)
	}
	if _, err := stats.PruneHourly(now.Add(-keepHourly)); err != nil {
		log.Printf("round %s: prune hourly stats: %v", roundID, err)
	}
	return n
}

// probeOne probes u and records the result. A probe cut short by ctx is
// discarded, so cancellation never reads as an outage.
func (s *Scheduler) probeOne(ctx context.Context, roundID string, u models.URL) (models.Ping, bool) {
	res := s.prober.Probe(ctx, u.URL)
	if ctx.Err() != nil {
		return models.Ping{}, false
	}
	p := models.Ping{
		Name:          u.Name,
		URL:           u.URL,
		StatusCode:    models.StatusCode(res.StatusCode),
		TimeCheckedAt: s.now(),
	}

	id, err := database.InsertPing(p)
	if err != nil {
		log.Printf("round %s: store ping for %s: %v", roundID, u.URL, err)
	}
	p.ID = id

	state := s.tracker.Update(u.URL, p.IsDown(), p.TimeCheckedAt)

	level, msg := database.LogLevelInfo, "Probe passed"
	details := fmt.Sprintf("round=%s, status=%d, latency=%dms", roundID, res.StatusCode, res.Latency.Milliseconds())
	if p.IsDown() {
		level, msg = database.LogLevelError, "Probe failed"
		if res.Err != nil {
			details += ", error=" + res.Err.Error()
		}
		details += fmt.Sprintf(", failures=%d", state.Failures)
		log.Printf("Probe %s: status=%d failures=%d", u.URL, res.StatusCode, state.Failures)
	}
	_ = database.InsertLog(level, database.LogCategoryProbe, u.URL, msg, details)

	if state.Transition != monitor.Steady && s.alerts.Enabled() {
		e := alerts.Event{
			Name:      u.Name,
			URL:       u.URL,
			Status:    alerts.StatusUp,
			Code:      res.StatusCode,
			DownSince: state.DownSince,
			At:        p.TimeCheckedAt,
			Round:     roundID,
		}
		if state.Transition == monitor.WentDown {
			e.Status = alerts.StatusDown
		}
		_ = s.alerts.Dispatch(ctx, e)
	}
	return p, true
}

// Start schedules rounds every Interval. Overlapping rounds are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc("@every "+s.cfg.Interval.String(), func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("schedule rounds: %w", err)
	}
	s.cron = c
	c.Start()

	if s.cfg.RunOnStart {
		s.kickoff.Add(1)
		go func() {
			defer s.kickoff.Done()
			s.run(ctx)
		}()
	}
	log.Printf("Scheduler started with %v interval", s.cfg.Interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	_, err := s.RunRound(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		log.Printf("probe round failed: %v", err)
		_ = database.InsertLog(database.LogLevelError, database.LogCategorySystem, "", "Probe round failed", err.Error())
	}
}

// Stop stops scheduling and waits for a running round to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.kickoff.Wait()
}
