// Package alerts posts status-change notifications when a URL goes down or recovers.
package alerts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"uptimedock/app/internal/database"
)

const userAgent = "uptimedock/1.0"

// Status values carried by an Event.
const (
	StatusDown = "down"
	StatusUp   = "up"
)

// Event is one status change of a monitored URL.
type Event struct {
	Name      string
	URL       string
	Status    string
	Code      int
	DownSince time.Time
	At        time.Time
	Round     string
}

// Subject is a one-line summary used as title and subject.
func (e Event) Subject() string {
	if e.Status == StatusDown {
		return fmt.Sprintf("%s is down", e.Name)
	}
	return fmt.Sprintf("%s recovered", e.Name)
}

// Message describes the change in plain text.
func (e Event) Message() string {
	if e.Status == StatusDown {
		if e.Code == 0 {
			return fmt.Sprintf("%s did not respond", e.URL)
		}
		return fmt.Sprintf("%s answered with status %d", e.URL, e.Code)
	}
	return fmt.Sprintf("%s is back after %s", e.URL, e.At.Sub(e.DownSince).Round(time.Second))
}

// Notifier delivers an Event somewhere.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Manager fans events out to every configured notifier and logs the outcome.
type Manager struct {
	notifiers []Notifier
}

// NewManager builds a manager from the configured endpoints. Empty URLs are skipped.
func NewManager(webhookURL, webhookSecret, discordURL string) *Manager {
	m := &Manager{}
	client := &http.Client{Timeout: 10 * time.Second}
	if webhookURL != "" {
		m.notifiers = append(m.notifiers, &Webhook{URL: webhookURL, Secret: webhookSecret, Client: client})
	}
	if discordURL != "" {
		m.notifiers = append(m.notifiers, &Discord{URL: discordURL, Client: client})
	}
	return m
}

// Enabled reports whether any notifier is configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.notifiers) > 0
}

// Dispatch sends e to all notifiers and returns their joined errors.
func (m *Manager) Dispatch(ctx context.Context, e Event) error {
	if !m.Enabled() {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, e); err != nil {
			log.Printf("alert %T for %s failed: %v", n, e.URL, err)
			_ = database.InsertLog(database.LogLevelError, database.LogCategoryNotify, e.URL, "Notification failed", err.Error())
			errs = append(errs, err)
			continue
		}
		_ = database.InsertLog(database.LogLevelInfo, database.LogCategoryNotify, e.URL, "Notification sent", fmt.Sprintf("%T status=%s", n, e.Status))
	}
	return errors.Join(errs...)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
