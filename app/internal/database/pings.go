package database

import (
	"database/sql"
	"fmt"
	"time"

	"uptimedock/app/internal/models"
)

const pingColumns = `id, name, url, status_code, time_checked_at`

// InsertPing stores a probe result and returns its id
func InsertPing(p models.Ping) (int64, error) {
	var code any
	if p.StatusCode != nil {
		code = *p.StatusCode
	}

	res, err := DB.Exec(`INSERT INTO pings (name, url, status_code, time_checked_at) VALUES (?, ?, ?, ?)`,
		p.Name, p.URL, code, formatTime(p.TimeCheckedAt))
	if err != nil {
		return 0, fmt.Errorf("insert ping for %s: %w", p.URL, err)
	}
	return res.LastInsertId()
}

// GetPings returns the pings of one URL, newest first
func GetPings(url string) ([]models.Ping, error) {
	return queryPings(`SELECT `+pingColumns+` FROM pings WHERE url = ?
		ORDER BY time_checked_at DESC, id DESC`, url)
}

// GetPingsSince returns the pings of one URL checked at or after since, newest first.
// An empty url selects every URL.
func GetPingsSince(url string, since time.Time) ([]models.Ping, error) {
	if url == "" {
		return queryPings(`SELECT `+pingColumns+` FROM pings WHERE time_checked_at >= ?
			ORDER BY time_checked_at DESC, id DESC`, formatTime(since))
	}
	return queryPings(`SELECT `+pingColumns+` FROM pings WHERE url = ? AND time_checked_at >= ?
		ORDER BY time_checked_at DESC, id DESC`, url, formatTime(since))
}

// GetAllPings returns every stored ping, newest first
func GetAllPings() ([]models.Ping, error) {
	return queryPings(`SELECT ` + pingColumns + ` FROM pings ORDER BY time_checked_at DESC, id DESC`)
}

// GetPingsBefore returns the pings checked before the cutoff, oldest first
func GetPingsBefore(before time.Time) ([]models.Ping, error) {
	return queryPings(`SELECT `+pingColumns+` FROM pings WHERE time_checked_at < ?
		ORDER BY time_checked_at, id`, formatTime(before))
}

// CountPings returns the number of stored pings
func CountPings() (int, error) {
	var n int
	err := DB.QueryRow(`SELECT COUNT(*) FROM pings`).Scan(&n)
	return n, err
}

func queryPings(query string, args ...any) ([]models.Ping, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pings []models.Ping
	for rows.Next() {
		var (
			p       models.Ping
			code    sql.NullInt64
			checked string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.URL, &code, &checked); err != nil {
			return nil, err
		}
		if code.Valid {
			p.StatusCode = models.StatusCode(int(code.Int64))
		}
		t, err := parseTime(checked)
		if err != nil {
			return nil, fmt.Errorf("ping %d: %w", p.ID, err)
		}
		p.TimeCheckedAt = t
		pings = append(pings, p)
	}
	return pings, rows.Err()
}
