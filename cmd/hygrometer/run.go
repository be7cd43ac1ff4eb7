package main

import (
	"context"
	"log"
	"sync"

	"github.com/banshee-data/humidity.report/internal/acquisition"
	"github.com/banshee-data/humidity.report/internal/db"
	"github.com/banshee-data/humidity.report/internal/display"
	"github.com/banshee-data/humidity.report/internal/fsutil"
	"github.com/banshee-data/humidity.report/internal/serialport"
	"github.com/banshee-data/humidity.report/internal/timeutil"
)

type deps struct {
	Factory serialport.Factory
	FS      fsutil.FileSystem
	Clock   timeutil.Clock
}

// run performs one acquisition session and returns when it ends. Startup
// failures are returned before anything is created; a session that started
// always reaches the summary and "Resources closed." lines.
func run(ctx context.Context, st settings, d deps) error {
	if d.FS == nil {
		d.FS = fsutil.OSFileSystem{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.RealClock{}
	}

	var store *db.DB
	if st.DBPath != "" {
		var err error
		if store, err = db.NewDB(st.DBPath); err != nil {
			return err
		}
		defer store.Close()
	}

	session, err := acquisition.Open(acquisition.Options{
		PortPath:    st.Port,
		Port:        st.Serial,
		OutputDir:   st.OutputDir,
		ReadTimeout: st.ReadTimeout,
		SettleDelay: st.SettleDelay,
		Factory:     d.Factory,
		FS:          d.FS,
		Clock:       d.Clock,
	})
	if err != nil {
		return err
	}
	log.Printf("Logging data to %s. Press Ctrl+C to stop.", session.LogPath())

	chart := display.NewChart("")
	notifiers := []acquisition.Notifier{chart}
	if store != nil {
		if err := store.StartSession(session.ID(), st.Port, session.LogPath(), d.Clock.Now()); err != nil {
			log.Printf("failed to record session in %s: %v", st.DBPath, err)
		} else {
			notifiers = append(notifiers, store.Recorder(session.ID()))
		}
	}

	runner := acquisition.NewRunner(session, st.PollInterval, d.Clock, notifiers...)

	// The live view outlives the runner only until this function returns.
	serverCtx, cancelServer := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if st.Listen != "" {
		mux := display.NewServer(chart, runner).ServeMux()
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Printf("admin routes unavailable: %v", err)
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := display.ListenAndServe(serverCtx, st.Listen, display.Wrap(mux), chart); err != nil {
				log.Printf("live view stopped: %v", err)
			}
		}()
	}

	runErr := runner.Run(ctx)
	cancelServer()
	wg.Wait()

	if store != nil {
		if err := store.EndSession(session.ID(), d.Clock.Now()); err != nil {
			log.Printf("failed to end session in %s: %v", st.DBPath, err)
		}
	}

	samples := session.Samples()
	log.Printf("Session summary: %s", acquisition.Summarize(samples))

	if st.SavePNG && len(samples) > 0 {
		path := display.PNGFileName(session.LogPath())
		if err := chart.SavePNG(d.FS, path); err != nil {
			log.Printf("failed to save plot: %v", err)
		} else {
			log.Printf("Saved plot to %s", path)
		}
	}

	log.Printf("Resources closed.")
	return runErr
}
