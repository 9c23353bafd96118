package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"uptimedock/app/internal/models"
)

// DefaultTimeout bounds a single probe when the caller passes zero.
const DefaultTimeout = 5 * time.Second

var ErrInvalidURL = errors.New("invalid url")

// Result is the outcome of one probe.
type Result struct {
	URL        string
	StatusCode int
	Latency    time.Duration
	Err        error
}

// Failed reports whether the probe never got a response.
func (r Result) Failed() bool {
	return r.StatusCode == models.StatusProbeFailed
}

// Probe issues a GET against target and returns the response status code.
// Transport errors yield StatusProbeFailed with Err set. Redirects are followed
// by the client's default policy.
func Probe(ctx context.Context, client *http.Client, target string, timeout time.Duration) Result {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{URL: target, StatusCode: models.StatusProbeFailed}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}
	req.Header.Set("User-Agent", "uptimedock/1.0")

	t0 := time.Now()
	resp, err := client.Do(req)
	res.Latency = time.Since(t0)
	if err != nil {
		log.Printf("probe error url=%s err=%v", target, err)
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.StatusCode = resp.StatusCode
	return res
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
