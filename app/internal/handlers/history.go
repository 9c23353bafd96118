package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"uptimedock/app/internal/stats"
)

// maxHistoryDays matches how long hourly rollups are kept
const maxHistoryDays = 365

type historyResponse struct {
	URL           string    `json:"url"`
	Hour          time.Time `json:"hour"`
	Total         int       `json:"total"`
	Down          int       `json:"down"`
	UptimePercent float64   `json:"uptime_percent"`
	AvgStatus     int       `json:"avg_status"`
}

// HandleHistory returns hourly rollups of pings that left the retention window
func HandleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxHistoryDays {
				writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
				return
			}
			days = n
		}

		rows, err := stats.GetHourly(r.URL.Query().Get("url"), time.Now().AddDate(0, 0, -days))
		if err != nil {
			log.Printf("load history: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}

		out := make([]historyResponse, 0, len(rows))
		for _, h := range rows {
			out = append(out, historyResponse{
				URL:           h.URL,
				Hour:          h.Hour,
				Total:         h.Total,
				Down:          h.Down,
				UptimePercent: h.UptimePercent(),
				AvgStatus:     h.AvgStatus(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
