package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"uptimedock/app/internal/auth"
	"uptimedock/app/internal/availability"
	"uptimedock/app/internal/cache"
	"uptimedock/app/internal/database"
	"uptimedock/app/internal/models"
	"uptimedock/app/internal/monitor"
	"uptimedock/app/internal/ratelimit"
	"uptimedock/app/internal/scheduler"
	"uptimedock/app/internal/stats"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := database.Init(":memory:"); err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	if err := stats.EnsureSchema(); err != nil {
		t.Fatalf("failed to init stats schema: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func insert(t *testing.T, target string, offset time.Duration, code int) {
	t.Helper()
	p := models.Ping{Name: "n", URL: target, StatusCode: models.StatusCode(code), TimeCheckedAt: t0.Add(offset)}
	if _, err := database.InsertPing(p); err != nil {
		t.Fatal(err)
	}
}

type stubRounds struct {
	round  scheduler.Round
	calls  int
	ctxErr error
}

func (s *stubRounds) RunRound(ctx context.Context) (scheduler.Round, error) {
	s.calls++
	s.ctxErr = ctx.Err()
	return s.round, nil
}

func newServer(t *testing.T, d Deps) http.Handler {
	t.Helper()
	initTestDB(t)
	return SetupRoutes(d)
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

// --------------- /api/pings ---------------

func TestPings_Empty(t *testing.T) {
	h := newServer(t, Deps{})
	rr := do(t, h, http.MethodGet, "/api/pings")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("got %d %q, want 200 []", rr.Code, rr.Body.String())
	}
}

func TestPings_FilterAndOrder(t *testing.T) {
	h := newServer(t, Deps{})
	insert(t, "https://a.example", 0, 200)
	insert(t, "https://a.example", time.Minute, 500)
	insert(t, "https://b.example", 2*time.Minute, 200)

	var got []models.Ping
	decode(t, do(t, h, http.MethodGet, "/api/pings?url="+url.QueryEscape("https://a.example")), &got)
	if len(got) != 2 || got[0].Code() != 500 {
		t.Errorf("expected a's pings newest first, got %+v", got)
	}

	decode(t, do(t, h, http.MethodGet, "/api/pings"), &got)
	if len(got) != 3 {
		t.Errorf("expected all 3 pings, got %d", len(got))
	}
}

// --------------- /api/dashboard ---------------

func TestDashboard_NoDataIsNull(t *testing.T) {
	h := newServer(t, Deps{})
	rr := do(t, h, http.MethodGet, "/api/dashboard")

	var got map[string]any
	decode(t, rr, &got)
	for _, k := range []string{"uptime_percent", "avg_status", "last_downtime"} {
		v, ok := got[k]
		if !ok || v != nil {
			t.Errorf("%s = %v, want null", k, v)
		}
	}
	if got["total_pings"] != float64(0) || got["downtime_minutes"] != float64(0) {
		t.Errorf("unexpected counts: %v", got)
	}
}

func TestDashboard_GlobalView(t *testing.T) {
	h := newServer(t, Deps{})
	database.AddURL("a", "https://a.example")
	database.AddURL("b", "https://b.example")
	// a is down for two minutes; b's interleaved down ping must not extend it
	insert(t, "https://a.example", 0, 500)
	insert(t, "https://b.example", time.Minute, 503)
	insert(t, "https://a.example", 2*time.Minute, 500)
	insert(t, "https://a.example", 3*time.Minute, 200)
	insert(t, "https://b.example", 4*time.Minute, 200)

	var got models.DashboardStats
	decode(t, do(t, h, http.MethodGet, "/api/dashboard"), &got)

	if got.TotalURLs != 2 || got.TotalPings != 5 || got.DownChecks != 3 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.DowntimeMinutes != 2 {
		t.Errorf("downtime = %d min, want 2", got.DowntimeMinutes)
	}
	if got.UptimePercent == nil || *got.UptimePercent != 40 {
		t.Errorf("uptime = %v, want 40", got.UptimePercent)
	}
	if got.LastDowntime == nil || !got.LastDowntime.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("last downtime = %v", got.LastDowntime)
	}
}

// --------------- /api/summary ---------------

func TestSummary(t *testing.T) {
	h := newServer(t, Deps{})
	insert(t, "https://a.example", 0, 200)
	insert(t, "https://a.example", time.Minute, 500)
	insert(t, "https://a.example", 2*time.Minute, 200)

	var got summaryResponse
	decode(t, do(t, h, http.MethodGet, "/api/summary?url=https://a.example"), &got)

	if got.UptimePercent == nil || *got.UptimePercent != 66.7 {
		t.Errorf("uptime = %v, want 66.7", got.UptimePercent)
	}
	if got.AvgStatus == nil || *got.AvgStatus != 300 {
		t.Errorf("avg status = %v, want 300", got.AvgStatus)
	}
	if got.Outages != 1 || got.TotalDowntimeSeconds != 0 {
		t.Errorf("isolated down ping: outages=%d downtime=%v", got.Outages, got.TotalDowntimeSeconds)
	}
	if got.DowntimeMode != "gap" || got.LastDownMode != "recent" {
		t.Errorf("modes = %s/%s", got.DowntimeMode, got.LastDownMode)
	}
}

func TestSummary_PersistentMode(t *testing.T) {
	h := newServer(t, Deps{Options: availability.Options{ProbeInterval: 30 * time.Minute}})
	insert(t, "https://a.example", 0, 200)
	insert(t, "https://a.example", time.Minute, 500)
	insert(t, "https://a.example", 3*time.Minute, 200)

	var got summaryResponse
	decode(t, do(t, h, http.MethodGet, "/api/summary?url=https://a.example&mode=persistent"), &got)
	if got.TotalDowntimeSeconds != 120 || got.DowntimeMode != "persistent" {
		t.Errorf("persistent downtime = %vs (%s), want 120s", got.TotalDowntimeSeconds, got.DowntimeMode)
	}
}

func TestSummary_NoData(t *testing.T) {
	h := newServer(t, Deps{})
	rr := do(t, h, http.MethodGet, "/api/summary?url=https://nothing.example")
	if !strings.Contains(rr.Body.String(), `"uptime_percent":null`) {
		t.Errorf("expected null uptime, got %s", rr.Body.String())
	}
}

func TestSummary_SinceWindow(t *testing.T) {
	h := newServer(t, Deps{})
	now := time.Now()
	for _, p := range []struct {
		age  time.Duration
		code int
	}{{48 * time.Hour, 500}, {30 * time.Minute, 200}, {10 * time.Minute, 200}} {
		database.InsertPing(models.Ping{Name: "n", URL: "u", StatusCode: models.StatusCode(p.code), TimeCheckedAt: now.Add(-p.age)})
	}

	var got summaryResponse
	decode(t, do(t, h, http.MethodGet, "/api/summary?url=u&since=1h"), &got)
	if got.TotalChecks != 2 || got.DownChecks != 0 {
		t.Errorf("1h window: %d checks, %d down, want 2 and 0", got.TotalChecks, got.DownChecks)
	}

	cutoff := url.QueryEscape(now.Add(-72 * time.Hour).Format(time.RFC3339))
	decode(t, do(t, h, http.MethodGet, "/api/summary?url=u&since="+cutoff), &got)
	if got.TotalChecks != 3 {
		t.Errorf("since a timestamp: %d checks, want 3", got.TotalChecks)
	}

	var buckets []bucketResponse
	decode(t, do(t, h, http.MethodGet, "/api/trend?since=1h&width=1h"), &buckets)
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total != 2 {
		t.Errorf("trend window holds %d pings, want 2", total)
	}
}

func TestSince_Invalid(t *testing.T) {
	h := newServer(t, Deps{})
	for _, target := range []string{"/api/summary?url=u&since=-1h", "/api/trend?since=yesterday", "/api/pings?since=0s"} {
		if rr := do(t, h, http.MethodGet, target); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
		}
	}
}

func TestSummary_BadRequests(t *testing.T) {
	h := newServer(t, Deps{})
	for _, target := range []string{"/api/summary", "/api/summary?url=x&mode=sometimes", "/api/summary?url=x&last_down=oldest"} {
		if rr := do(t, h, http.MethodGet, target); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
		}
	}
}

// --------------- /api/trend and /api/episodes ---------------

func TestTrend(t *testing.T) {
	h := newServer(t, Deps{})
	insert(t, "u", 5*time.Second, 200)
	insert(t, "u", 40*time.Second, 200)
	insert(t, "u", 70*time.Second, 404)
	insert(t, "u", 110*time.Second, 500)

	var got []bucketResponse
	decode(t, do(t, h, http.MethodGet, "/api/trend?url=u"), &got)
	want := []bucketResponse{
		{Time: t0, AvgStatus: 200, ErrorCount: 0, Count: 2},
		{Time: t0.Add(time.Minute), AvgStatus: 452, ErrorCount: 2, Count: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trend mismatch (-want +got):\n%s", diff)
	}

	decode(t, do(t, h, http.MethodGet, "/api/trend?url=u&width=5m"), &got)
	if len(got) != 1 || got[0].Count != 4 {
		t.Errorf("5m buckets = %+v", got)
	}

	if rr := do(t, h, http.MethodGet, "/api/trend?width=-1m"); rr.Code != http.StatusBadRequest {
		t.Errorf("negative width: got %d", rr.Code)
	}
}

func TestEpisodes(t *testing.T) {
	h := newServer(t, Deps{})
	insert(t, "u", 0, 500)
	insert(t, "u", time.Minute, 0)
	insert(t, "u", 2*time.Minute, 200)

	var got []episodeResponse
	decode(t, do(t, h, http.MethodGet, "/api/episodes?url=u"), &got)
	if len(got) != 1 {
		t.Fatalf("got %d episodes, want 1", len(got))
	}
	if got[0].DurationSeconds != 60 || got[0].Pings != 2 || !cmp.Equal(got[0].Codes, []int{500, 0}) {
		t.Errorf("unexpected episode: %+v", got[0])
	}
}

func TestHistory(t *testing.T) {
	h := newServer(t, Deps{})
	old := time.Now().Add(-48 * time.Hour)
	for _, code := range []int{200, 500} {
		database.InsertPing(models.Ping{Name: "n", URL: "u", StatusCode: models.StatusCode(code), TimeCheckedAt: old})
	}
	if _, _, err := stats.RollupAndPrune(time.Now().Add(-24 * time.Hour)); err != nil {
		t.Fatal(err)
	}

	var got []historyResponse
	decode(t, do(t, h, http.MethodGet, "/api/history?url=u&days=7"), &got)
	if len(got) != 1 || got[0].Total != 2 || got[0].UptimePercent != 50 || got[0].AvgStatus != 350 {
		t.Errorf("unexpected history: %+v", got)
	}

	if rr := do(t, h, http.MethodGet, "/api/history?days=0"); rr.Code != http.StatusBadRequest {
		t.Errorf("days=0: got %d, want 400", rr.Code)
	}
}

// --------------- /url registry ---------------

func TestURLActions_Lifecycle(t *testing.T) {
	h := newServer(t, Deps{})

	rr := do(t, h, http.MethodGet, "/url?action=add&name=site&url=https://example.com")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"msg":"URL added."`) {
		t.Fatalf("add: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/url?action=add&name=site&url=https://example.org")
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), msgURLExists) {
		t.Errorf("duplicate add: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/url?action=EDIT&name=site&url=https://example.org")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "https://example.org") {
		t.Errorf("edit: %d %s", rr.Code, rr.Body.String())
	}

	var urls []models.URL
	decode(t, do(t, h, http.MethodGet, "/api/urls"), &urls)
	if len(urls) != 1 || urls[0].URL != "https://example.org" {
		t.Errorf("registry = %+v", urls)
	}

	rr = do(t, h, http.MethodGet, "/url?action=delete&name=site")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "URL deleted.") {
		t.Errorf("delete: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/url?action=delete&name=site")
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), msgURLNotFound) {
		t.Errorf("second delete: %d %s", rr.Code, rr.Body.String())
	}
}

func TestURLActions_Errors(t *testing.T) {
	h := newServer(t, Deps{})
	tests := []struct {
		target string
		status int
		msg    string
	}{
		{"/url?action=rename&name=x", http.StatusBadRequest, msgInvalidAction},
		{"/url?action=add&name=x", http.StatusBadRequest, msgURLRequiredAdd},
		{"/url?action=edit&name=x", http.StatusBadRequest, msgURLRequiredEdit},
		{"/url?action=add&url=https://x.example", http.StatusBadRequest, msgNameRequired},
		{"/url?action=add&name=x&url=ftp://x.example", http.StatusBadRequest, "invalid url"},
		{"/url?action=edit&name=missing&url=https://x.example", http.StatusNotFound, msgURLNotFound},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodGet, tt.target)
		if rr.Code != tt.status || !strings.Contains(rr.Body.String(), tt.msg) {
			t.Errorf("%s: got %d %s, want %d %q", tt.target, rr.Code, rr.Body.String(), tt.status, tt.msg)
		}
	}
}

func TestURLActions_ResetsFailureStreak(t *testing.T) {
	tracker := monitor.NewFailureTracker()
	h := newServer(t, Deps{Tracker: tracker})
	database.AddURL("a", "https://a.example")
	database.AddURL("b", "https://b.example")
	tracker.Update("https://a.example", true, t0)
	tracker.Update("https://b.example", true, t0)

	do(t, h, http.MethodGet, "/url?action=edit&name=a&url=https://a2.example")
	if f := tracker.Failures("https://a.example"); f != 0 {
		t.Errorf("edited URL kept %d failures", f)
	}

	do(t, h, http.MethodGet, "/url?action=delete&name=b")
	if f := tracker.Failures("https://b.example"); f != 0 {
		t.Errorf("deleted URL kept %d failures", f)
	}
}

func TestURLActions_FormPost(t *testing.T) {
	h := newServer(t, Deps{})
	form := url.Values{"action": {"add"}, "name": {"site"}, "url": {"https://example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("form add: %d %s", rr.Code, rr.Body.String())
	}
}

func TestURLActions_RequiresAuth(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	h := newServer(t, Deps{Auth: auth.NewAuth("admin", hash)})

	if rr := do(t, h, http.MethodGet, "/url?action=add&name=x&url=https://x.example"); rr.Code != http.StatusUnauthorized {
		t.Errorf("without credentials: got %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/url?action=add&name=x&url=https://x.example", nil)
	req.SetBasicAuth("admin", "pw")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with credentials: got %d %s", rr.Code, rr.Body.String())
	}

	// reads stay public
	if rr := do(t, h, http.MethodGet, "/api/urls"); rr.Code != http.StatusOK {
		t.Errorf("/api/urls: got %d", rr.Code)
	}
}

// --------------- /ping ---------------

func TestPing(t *testing.T) {
	rounds := &stubRounds{round: scheduler.Round{
		ID: "round-1",
		Pings: []models.Ping{
			{ID: 7, Name: "a", URL: "https://a.example", StatusCode: models.StatusCode(200)},
			{ID: 8, Name: "b", URL: "https://b.example", StatusCode: models.StatusCode(0)},
		},
	}}
	h := newServer(t, Deps{Rounds: rounds})

	var got pingResponse
	decode(t, do(t, h, http.MethodGet, "/ping"), &got)
	if got.Msg != "pong" || got.Round != "round-1" || len(got.Results) != 2 {
		t.Fatalf("unexpected response: %+v", got)
	}
	if got.Results[1].ID != 8 || got.Results[1].StatusCode == nil || *got.Results[1].StatusCode != 0 {
		t.Errorf("unexpected result: %+v", got.Results[1])
	}
}

func TestPing_ClientDisconnectDoesNotCancelRound(t *testing.T) {
	rounds := &stubRounds{round: scheduler.Round{ID: "r"}}
	h := newServer(t, Deps{Rounds: rounds})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil).WithContext(ctx))

	if rounds.calls != 1 || rounds.ctxErr != nil {
		t.Errorf("round ran %d times with ctx err %v, want once with a live context", rounds.calls, rounds.ctxErr)
	}
}

func TestPing_RateLimited(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{TokensPerMinute: 1, MaxTokens: 1})
	t.Cleanup(limiter.Stop)
	rounds := &stubRounds{}
	h := newServer(t, Deps{Rounds: rounds, PingLimiter: limiter})

	do(t, h, http.MethodGet, "/ping")
	if rr := do(t, h, http.MethodGet, "/ping"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second ping: got %d, want 429", rr.Code)
	}
	if rounds.calls != 1 {
		t.Errorf("rounds run = %d, want 1", rounds.calls)
	}
}

func TestPing_NotConfigured(t *testing.T) {
	h := newServer(t, Deps{})
	if rr := do(t, h, http.MethodGet, "/ping"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rr.Code)
	}
}

// --------------- /api/chart.png and /api/export.xlsx ---------------

func TestChart(t *testing.T) {
	charts := cache.New[[]byte](time.Minute)
	t.Cleanup(charts.Stop)
	h := newServer(t, Deps{Charts: charts})

	if rr := do(t, h, http.MethodGet, "/api/chart.png"); rr.Code != http.StatusNotFound {
		t.Errorf("empty chart: got %d, want 404", rr.Code)
	}

	insert(t, "u", 0, 200)
	insert(t, "u", time.Minute, 500)

	rr := do(t, h, http.MethodGet, "/api/chart.png?url=u")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("chart: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
	if charts.Len() != 1 {
		t.Errorf("expected the chart to be cached, cache holds %d", charts.Len())
	}
}

func TestInvalidateCharts(t *testing.T) {
	charts := cache.New[[]byte](time.Minute)
	t.Cleanup(charts.Stop)
	for _, u := range []string{"", "https://a.example", "https://a.example.org"} {
		charts.Set(chartPrefix(u)+"1m0s|", []byte("png"))
	}

	InvalidateCharts(charts, "https://a.example")
	if charts.Len() != 1 {
		t.Errorf("%d charts left, want 1", charts.Len())
	}
	if _, ok := charts.Get(chartPrefix("https://a.example.org") + "1m0s|"); !ok {
		t.Error("chart of an unrelated URL sharing a prefix was dropped")
	}

	InvalidateCharts(nil, "x") // no cache configured
}

func TestExport(t *testing.T) {
	h := newServer(t, Deps{})
	insert(t, "u", 0, 200)

	rr := do(t, h, http.MethodGet, "/api/export.xlsx")
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Error("workbook should be a zip archive")
	}
}

// --------------- misc ---------------

func TestHealthzAndHeaders(t *testing.T) {
	h := newServer(t, Deps{})
	rr := do(t, h, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newServer(t, Deps{})
	if rr := do(t, h, http.MethodDelete, "/api/pings"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rr.Code)
	}
}

func TestGzip(t *testing.T) {
	h := newServer(t, Deps{})
	for i := 0; i < 50; i++ {
		insert(t, "https://a.example", time.Duration(i)*time.Minute, 200)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pings", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("expected gzip response, headers: %v", rr.Header())
	}
}

func TestLogs(t *testing.T) {
	h := newServer(t, Deps{})
	database.InsertLog(database.LogLevelError, database.LogCategoryProbe, "u", "Probe failed", "")

	var got struct {
		Logs []models.LogEntry `json:"logs"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/logs?level=error"), &got)
	if len(got.Logs) != 1 || got.Logs[0].Message != "Probe failed" {
		t.Errorf("logs = %+v", got.Logs)
	}
}
