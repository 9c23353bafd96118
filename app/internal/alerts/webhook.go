package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Uptimedock-Signature"

// Webhook posts a generic JSON payload.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
}

type webhookPayload struct {
	Event     string `json:"event"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Code      int    `json:"status_code"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Round     string `json:"round,omitempty"`
	DownSince string `json:"down_since,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (w *Webhook) Notify(ctx context.Context, e Event) error {
	p := webhookPayload{
		Event:     "status_change",
		Name:      e.Name,
		URL:       e.URL,
		Status:    e.Status,
		Code:      e.Code,
		Subject:   e.Subject(),
		Message:   e.Message(),
		Round:     e.Round,
		Timestamp: e.At.UTC().Format(time.RFC3339),
	}
	if !e.DownSince.IsZero() {
		p.DownSince = e.DownSince.UTC().Format(time.RFC3339)
	}

	header := http.Header{}
	if w.Secret != "" {
		// sign exactly the bytes postJSON will send
		body, err := json.Marshal(p)
		if err != nil {
			return err
		}
		header.Set(SignatureHeader, "sha256="+Sign(w.Secret, body))
	}
	return postJSON(ctx, w.Client, w.URL, p, header)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
