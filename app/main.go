package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"uptimedock/app/internal/alerts"
	"uptimedock/app/internal/auth"
	"uptimedock/app/internal/availability"
	"uptimedock/app/internal/cache"
	"uptimedock/app/internal/config"
	"uptimedock/app/internal/database"
	"uptimedock/app/internal/handlers"
	"uptimedock/app/internal/ratelimit"
	"uptimedock/app/internal/report"
	"uptimedock/app/internal/scheduler"
	"uptimedock/app/internal/stats"
)

// reportAll selects the global view in --report
const reportAll = "all"

func main() {
	// Load configuration from .env and the environment, flags override it
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fs := pflag.NewFlagSet("uptimedock", pflag.ExitOnError)
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.DurationVarP(&cfg.PollInterval, "interval", "i", cfg.PollInterval, "time between probe rounds")
	fs.BoolVar(&cfg.EnableScheduler, "scheduler", cfg.EnableScheduler, "probe registered URLs periodically")
	reportURL := fs.StringP("report", "r", "", `print the availability summary of a URL ("all" for every URL) and exit`)
	_ = fs.Parse(os.Args[1:])

	cfg.Options.ProbeInterval = cfg.PollInterval
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	if err := database.Init(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := stats.EnsureSchema(); err != nil {
		log.Fatalf("Failed to initialize stats schema: %v", err)
	}

	if *reportURL != "" {
		if err := printReport(*reportURL, cfg.Options); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
		return
	}

	if err := serve(cfg); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func printReport(target string, opts availability.Options) error {
	color := report.ColorEnabled(os.Stdout)
	if target == reportAll {
		pings, err := database.GetAllPings()
		if err != nil {
			return err
		}
		g := availability.SummarizeGlobal(pings, opts)
		return report.WriteSummary(os.Stdout, fmt.Sprintf("%d URLs", g.URLs), "", g.Summary, color)
	}

	name, url, err := resolveTarget(target)
	if err != nil {
		return err
	}
	pings, err := database.GetPings(url)
	if err != nil {
		return err
	}
	return report.WriteSummary(os.Stdout, name, url, availability.Summarize(pings, opts), color)
}

// resolveTarget accepts a registry name or a raw URL
func resolveTarget(target string) (name, url string, err error) {
	u, err := database.GetURLByName(target)
	switch {
	case err == nil:
		return u.Name, u.URL, nil
	case errors.Is(err, database.ErrURLNotFound):
		return target, target, nil
	default:
		return "", "", err
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	charts := cache.New[[]byte](30 * time.Second)
	defer charts.Stop()

	// PING_RATE_PER_MIN=0 leaves /ping unlimited
	var limiter *ratelimit.Limiter
	if cfg.PingRatePerMin > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			TokensPerMinute: cfg.PingRatePerMin,
			ErrorMessage:    "Too many ping requests. Please try again later.",
		})
		defer limiter.Stop()
	}

	alertMgr := alerts.NewManager(cfg.AlertWebhookURL, cfg.AlertWebhookSecret, cfg.AlertDiscordURL)
	if alertMgr.Enabled() {
		log.Println("Status-change notifications enabled")
	}

	sched := scheduler.New(scheduler.Config{
		Interval:      cfg.PollInterval,
		MaxConcurrent: cfg.MaxConcurrentProbes,
		RunOnStart:    cfg.RunOnStart,
		Retention:     cfg.PingRetention,
	}, scheduler.HTTPProber(&http.Client{}, cfg.ProbeTimeout), alertMgr)
	sched.OnRound = func(r scheduler.Round) {
		if r.Compacted > 0 {
			// old pings left every chart
			charts.Clear()
			return
		}
		urls := make([]string, 0, len(r.Pings))
		for _, p := range r.Pings {
			urls = append(urls, p.URL)
		}
		handlers.InvalidateCharts(charts, urls...)
	}

	if cfg.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	authMgr := auth.NewAuth(cfg.AuthUser, cfg.AuthHash)
	if !cfg.AuthEnabled() {
		log.Println("AUTH_USER not set, the URL registry is open to everyone")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.SetupRoutes(handlers.Deps{
			Options:     cfg.Options,
			Auth:        authMgr,
			Rounds:      sched,
			PingLimiter: limiter,
			Charts:      charts,
			Tracker:     sched.Tracker(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	_ = database.InsertLog(database.LogLevelInfo, database.LogCategorySystem, "", "Server shutting down", "")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
