package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the global database instance
var DB *sql.DB

// timeLayout keeps a fixed fraction width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Init opens the database and creates the schema
func Init(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("configure database: %w", err)
	}

	if DB != nil {
		_ = DB.Close()
	}
	DB = db

	return EnsureSchema()
}

// Close closes the global database
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// EnsureSchema creates all necessary database tables
func EnsureSchema() error {
	_, err := DB.Exec(`
CREATE TABLE IF NOT EXISTS urls (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  url TEXT NOT NULL,
  status_code INTEGER,
  time_checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pings_url_time ON pings(url, time_checked_at);
CREATE INDEX IF NOT EXISTS idx_pings_time ON pings(time_checked_at);

CREATE TABLE IF NOT EXISTS system_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  level TEXT NOT NULL,
  category TEXT NOT NULL,
  url TEXT,
  message TEXT NOT NULL,
  details TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp);
`)
	if err != nil {
		return err
	}
	return normalizeLegacyTimes()
}

// canonicalGlob matches time_checked_at values written by formatTime
const canonicalGlob = "????-??-??T??:??:??.?????????Z"

// legacyLocation is the zone of naive legacy timestamps. The old backend wrote
// server local time, so run with TZ set to that server's zone when importing.
var legacyLocation = time.Local

// normalizeLegacyTimes rewrites pings whose timestamp is not in the canonical
// layout, so text comparison against formatTime cutoffs stays chronological.
func normalizeLegacyTimes() error {
	rows, err := DB.Query(`SELECT id, time_checked_at FROM pings WHERE time_checked_at NOT GLOB ?`, canonicalGlob)
	if err != nil {
		return fmt.Errorf("find legacy timestamps: %w", err)
	}
	type legacyRow struct {
		id int64
		at string
	}
	// collect first; the single connection is busy until rows is closed
	var batch []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.at); err != nil {
			rows.Close()
			return err
		}
		batch = append(batch, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range batch {
		t, err := parseTime(r.at)
		if err != nil {
			return fmt.Errorf("ping %d: %w", r.id, err)
		}
		if _, err := tx.Exec(`UPDATE pings SET time_checked_at = ? WHERE id = ?`, formatTime(t), r.id); err != nil {
			return fmt.Errorf("normalize ping %d: %w", r.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("Normalized %d legacy ping timestamps", len(batch))
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts the naive space separated form older rows were
// written with, read in legacyLocation.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, s, legacyLocation); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
