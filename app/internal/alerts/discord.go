package alerts

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Discord posts a rich embed to a Discord webhook.
type Discord struct {
	URL    string
	Client *http.Client
}

var discordColors = map[string]int{StatusDown: 0xef4444, StatusUp: 0x22c55e}

func (d *Discord) Notify(ctx context.Context, e Event) error {
	payload := map[string]any{
		"username": "uptimedock",
		"embeds": []map[string]any{{
			"title":       e.Subject(),
			"description": e.Message(),
			"color":       discordColors[e.Status],
			"fields": []map[string]any{
				{"name": "URL", "value": e.URL, "inline": true},
				{"name": "Status", "value": strings.ToUpper(e.Status), "inline": true},
				{"name": "Time", "value": e.At.Format(time.RFC1123), "inline": false},
			},
		}},
	}
	return postJSON(ctx, d.Client, d.URL, payload, nil)
}
