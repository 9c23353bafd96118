// Package stats keeps hourly rollups of pings so availability history
// outlives the raw ping retention window.
package stats

import (
	"math"
	"time"

	"uptimedock/app/internal/database"
)

// HourlyStat is the rollup of one URL's pings within one UTC hour
type HourlyStat struct {
	URL       string    `json:"url"`
	Hour      time.Time `json:"hour"`
	Total     int       `json:"total"`
	Down      int       `json:"down"`
	StatusSum int64     `json:"-"`
}

// UptimePercent is the share of up pings, rounded to one decimal
func (h HourlyStat) UptimePercent() float64 {
	if h.Total == 0 {
		return 0
	}
	return math.Round(float64(h.Total-h.Down)/float64(h.Total)*1000) / 10
}

// AvgStatus is the rounded mean status code, absent codes counting as zero
func (h HourlyStat) AvgStatus() int {
	if h.Total == 0 {
		return 0
	}
	return int(math.Round(float64(h.StatusSum) / float64(h.Total)))
}

// EnsureSchema creates the rollup table
func EnsureSchema() error {
	_, err := database.DB.Exec(`
CREATE TABLE IF NOT EXISTS ping_hourly (
  url TEXT NOT NULL,
  hour INTEGER NOT NULL,
  total INTEGER NOT NULL DEFAULT 0,
  down INTEGER NOT NULL DEFAULT 0,
  status_sum INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (url, hour)
);
CREATE INDEX IF NOT EXISTS idx_ping_hourly_hour ON ping_hourly(hour);
`)
	return err
}
