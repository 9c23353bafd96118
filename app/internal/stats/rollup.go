package stats

import (
	"fmt"
	"log"
	"time"

	"uptimedock/app/internal/database"
)

type rollupKey struct {
	url  string
	hour int64
}

// RollupAndPrune folds every ping checked before the cutoff into the hourly
// table and deletes those pings in the same transaction. An hour split by the
// cutoff is completed additively on a later call.
func RollupAndPrune(before time.Time) (rolled int, pruned int64, err error) {
	pings, err := database.GetPingsBefore(before)
	if err != nil {
		return 0, 0, fmt.Errorf("load pings to roll up: %w", err)
	}
	if len(pings) == 0 {
		return 0, 0, nil
	}

	agg := make(map[rollupKey]*HourlyStat)
	var order []rollupKey
	for _, p := range pings {
		hour := p.TimeCheckedAt.UTC().Truncate(time.Hour)
		k := rollupKey{url: p.URL, hour: hour.Unix()}
		h, ok := agg[k]
		if !ok {
			h = &HourlyStat{URL: p.URL, Hour: hour}
			agg[k] = h
			order = append(order, k)
		}
		h.Total++
		h.StatusSum += int64(p.Code())
		if p.IsDown() {
			h.Down++
		}
	}

	tx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, k := range order {
		h := agg[k]
		_, err := tx.Exec(`
			INSERT INTO ping_hourly (url, hour, total, down, status_sum)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(url, hour) DO UPDATE SET
				total = total + excluded.total,
				down = down + excluded.down,
				status_sum = status_sum + excluded.status_sum`,
			h.URL, k.hour, h.Total, h.Down, h.StatusSum)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert hourly stat for %s: %w", h.URL, err)
		}
	}

	// the pings were selected before the transaction, so delete those ids only
	for _, p := range pings {
		res, err := tx.Exec(`DELETE FROM pings WHERE id = ?`, p.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("delete ping %d: %w", p.ID, err)
		}
		n, _ := res.RowsAffected()
		pruned += n
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	log.Printf("Rolled up %d pings into %d hourly stats", pruned, len(order))
	return len(order), pruned, nil
}

// GetHourly returns the rollups of one URL, or of every URL when url is empty,
// for hours starting at or after since, oldest first.
func GetHourly(url string, since time.Time) ([]HourlyStat, error) {
	query := `SELECT url, hour, total, down, status_sum FROM ping_hourly WHERE hour >= ?`
	args := []any{since.UTC().Truncate(time.Hour).Unix()}
	if url != "" {
		query += ` AND url = ?`
		args = append(args, url)
	}
	query += ` ORDER BY hour, url`

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HourlyStat
	for rows.Next() {
		var (
			h    HourlyStat
			hour int64
		)
		if err := rows.Scan(&h.URL, &hour, &h.Total, &h.Down, &h.StatusSum); err != nil {
			return nil, err
		}
		h.Hour = time.Unix(hour, 0).UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// PruneHourly deletes rollups for hours before the cutoff
func PruneHourly(before time.Time) (int64, error) {
	res, err := database.DB.Exec(`DELETE FROM ping_hourly WHERE hour < ?`, before.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
