package database

import (
	"time"

	"uptimedock/app/internal/models"
)

// LogLevel constants
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogCategory constants
const (
	LogCategoryProbe    = "probe"
	LogCategoryRegistry = "registry"
	LogCategorySystem   = "system"
	LogCategoryNotify   = "notification"
)

// InsertLog adds a new log entry
func InsertLog(level, category, url, message, details string) error {
	_, err := DB.Exec(`INSERT INTO system_logs (timestamp, level, category, url, message, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(time.Now()), level, category, url, message, details)
	return err
}

// GetLogs returns the newest log entries, optionally for one level only
func GetLogs(limit int, level string) ([]models.LogEntry, error) {
	query := `SELECT id, timestamp, level, category, COALESCE(url, ''), message, COALESCE(details, '')
		FROM system_logs`
	args := []any{}
	if level != "" {
		query += " WHERE level = ?"
		args = append(args, level)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Category, &e.URL, &e.Message, &e.Details); err != nil {
			return nil, err
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// PruneLogs removes old logs to keep the database size manageable (keeps last N logs)
func PruneLogs(keepCount int) error {
	_, err := DB.Exec(`DELETE FROM system_logs WHERE id NOT IN (
		SELECT id FROM system_logs ORDER BY timestamp DESC, id DESC LIMIT ?
	)`, keepCount)
	return err
}
