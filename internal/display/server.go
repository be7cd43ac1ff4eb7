package display

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"tailscale.com/tsweb"

	"github.com/banshee-data/humidity.report/internal/httputil"
	"github.com/banshee-data/humidity.report/internal/monitoring"
	"github.com/banshee-data/humidity.report/internal/version"
)

//go:embed templates/*
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

var logf = monitoring.Prefixed("display")

// Stopper ends the session. acquisition.Runner satisfies it.
type Stopper interface {
	Stop()
	Done() <-chan struct{}
}

// Server is the HTTP live view.
type Server struct {
	chart   *Chart
	stopper Stopper
	refresh time.Duration
}

// NewServer returns a live view of chart. stopper may be nil, in which case
// the stop control reports 503.
func NewServer(chart *Chart, stopper Stopper) *Server {
	return &Server{chart: chart, stopper: stopper, refresh: 2 * time.Second}
}

// ServeMux returns a mux with the live view, API and debug routes mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.showIndex)
	mux.HandleFunc("/chart", s.showChart)
	mux.HandleFunc("/chart.png", s.showChartPNG)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/stop", s.stopSession)
	s.AttachAdminRoutes(mux)
	return mux
}

// AttachAdminRoutes mounts the sample tail and version info under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("build", "Build information", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, version.String())
	})

	// Server-Sent Events, one per recorded sample.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.chart.Subscribe()
		defer s.chart.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case sample, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(sample)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}

func (s *Server) stopped() bool {
	if s.stopper == nil {
		return false
	}
	select {
	case <-s.stopper.Done():
		return true
	default:
		return false
	}
}

type indexData struct {
	Title          string
	Latest         string
	Count          int
	Stopped        bool
	RefreshSeconds int
}

func (s *Server) showIndex(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.chart.Snapshot()
	data := indexData{
		Title:          snap.Title,
		Count:          len(snap.Samples),
		Stopped:        s.stopped(),
		RefreshSeconds: int(s.refresh / time.Second),
	}
	if n := len(snap.Samples); n > 0 {
		data.Latest = snap.Samples[n-1].String()
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := s.chart.RenderHTML(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) showChartPNG(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := s.chart.RenderPNG(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.chart.Snapshot())
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.stopper == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "No session to stop")
		return
	}
	s.stopper.Stop()
	logf("stop requested from %s", r.RemoteAddr)

	// Browser form posts go back to the live view; API clients get 202.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, "Session stopping")
}

// Wrap adds request logging and panic recovery around h.
func Wrap(h http.Handler) http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)
	return LoggingMiddleware(recovery(h))
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logf("%s", strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%d] %s %s %.3fms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Serve runs handler on ln until ctx is cancelled, then shuts down
// gracefully. Streaming clients are released via chart.CloseSubscribers.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, chart *Chart) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logf("shutting down HTTP server...")
	if chart != nil {
		chart.CloseSubscribers()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, chart *Chart) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logf("live view on http://%s/", ln.Addr())
	return Serve(ctx, ln, handler, chart)
}
