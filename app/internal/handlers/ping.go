package handlers

import (
	"context"
	"log"
	"net/http"

	"uptimedock/app/internal/cache"
	"uptimedock/app/internal/models"
)

type pingResponse struct {
	Msg     string               `json:"msg"`
	Round   string               `json:"round"`
	Results []models.ProbeResult `json:"results"`
}

// HandlePing probes every registered URL now and returns the stored pings
func HandlePing(rounds RoundRunner, charts *cache.Cache[[]byte]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rounds == nil {
			writeError(w, http.StatusServiceUnavailable, "probing is not configured")
			return
		}
		// a client hanging up must not cut the round short
		round, err := rounds.RunRound(context.WithoutCancel(r.Context()))
		if err != nil {
			log.Printf("manual round: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		urls := make([]string, 0, len(round.Pings))
		for _, p := range round.Pings {
			urls = append(urls, p.URL)
		}
		InvalidateCharts(charts, urls...)

		out := pingResponse{Msg: "pong", Round: round.ID, Results: make([]models.ProbeResult, 0, len(round.Pings))}
		for _, p := range round.Pings {
			out.Results = append(out.Results, models.ProbeResult{ID: p.ID, Name: p.Name, URL: p.URL, StatusCode: p.StatusCode})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
