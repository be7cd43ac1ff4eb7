// Package db mirrors sessions and their samples into SQLite for later
// querying. The CSV log stays the primary record; this store is optional.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/humidity.report/internal/acquisition"
	"github.com/banshee-data/humidity.report/internal/monitoring"
)

var logf = monitoring.Prefixed("db")

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the database at path and applies pending
// migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; keeps ":memory:" databases on a single connection.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string { return db.path }

// SessionInfo is one row of the sessions table.
type SessionInfo struct {
	ID        string     `json:"session_id"`
	Port      string     `json:"port"`
	LogPath   string     `json:"log_path"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(f float64) time.Time {
	return time.Unix(0, int64(f*1e9))
}

// StartSession records the start of a session.
func (db *DB) StartSession(id, port, logPath string, startedAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, port, log_path, started_at) VALUES (?, ?, ?, ?)`,
		id, port, logPath, unixSeconds(startedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record session %s: %w", id, err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, unixSeconds(endedAt), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// RecordSample stores one sample for sessionID.
func (db *DB) RecordSample(sessionID string, s acquisition.Sample) error {
	_, err := db.Exec(
		`INSERT INTO samples (session_id, capture_time, elapsed, humidity, temperature) VALUES (?, ?, ?, ?, ?)`,
		sessionID, unixSeconds(s.CaptureTime), s.Elapsed, s.Humidity, s.Temperature,
	)
	return err
}

// Samples returns the samples of sessionID in elapsed order.
func (db *DB) Samples(sessionID string) ([]acquisition.Sample, error) {
	rows, err := db.Query(
		`SELECT capture_time, elapsed, humidity, temperature FROM samples WHERE session_id = ? ORDER BY elapsed, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []acquisition.Sample
	for rows.Next() {
		var captured float64
		var s acquisition.Sample
		if err := rows.Scan(&captured, &s.Elapsed, &s.Humidity, &s.Temperature); err != nil {
			return nil, err
		}
		s.CaptureTime = fromUnixSeconds(captured)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Sessions returns all recorded sessions, newest first.
func (db *DB) Sessions() ([]SessionInfo, error) {
	rows, err := db.Query(`SELECT session_id, port, log_path, started_at, ended_at FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var started float64
		var ended sql.NullFloat64
		if err := rows.Scan(&info.ID, &info.Port, &info.LogPath, &started, &ended); err != nil {
			return nil, err
		}
		info.StartedAt = fromUnixSeconds(started)
		if ended.Valid {
			t := fromUnixSeconds(ended.Float64)
			info.EndedAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Recorder mirrors each recorded sample of one session into the database.
// It implements acquisition.Notifier. Store failures are logged and counted
// but never end the session; the CSV log is authoritative.
type Recorder struct {
	db        *DB
	sessionID string
	failures  int
}

// Recorder returns a notifier that stores samples under sessionID.
func (db *DB) Recorder(sessionID string) *Recorder {
	return &Recorder{db: db, sessionID: sessionID}
}

func (r *Recorder) SampleRecorded(s acquisition.Sample) {
	if err := r.db.RecordSample(r.sessionID, s); err != nil {
		r.failures++
		logf("failed to store sample for session %s: %v", r.sessionID, err)
	}
}

// Failures returns the number of samples that could not be stored.
func (r *Recorder) Failures() int { return r.failures }
