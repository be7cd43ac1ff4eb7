package db

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// DatabaseStats summarises the store for the db-stats route.
type DatabaseStats struct {
	Sessions int `json:"sessions"`
	Samples  int `json:"samples"`
}

// Stats counts sessions and samples.
func (db *DB) Stats() (DatabaseStats, error) {
	var st DatabaseStats
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return st, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&st.Samples); err != nil {
		return st, err
	}
	return st, nil
}

// AttachAdminRoutes mounts the SQL browser, stats and backup routes under
// /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Humidity DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("db-stats", "Session and sample counts", func(w http.ResponseWriter, r *http.Request) {
		st, err := db.Stats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read stats: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	})

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir, err := os.MkdirTemp("", "humidity-backup-")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				logf("Failed to remove backup dir: %v", err)
			}
		}()

		name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		backupPath := filepath.Join(dir, name)
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
		w.Header().Set("Content-Type", "application/gzip")

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			logf("Failed to write backup: %v", err)
		}
	}))
	return nil
}
