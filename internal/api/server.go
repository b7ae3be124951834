// Package api serves the daemon's JSON surface: measurement queries, the
// profile list, forecasts, a live SSE stream, and CSV download.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

// ANSI escape codes for request log coloring.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server owns the HTTP handlers. It reads the same stores the pipeline
// writes; it never writes them itself.
type Server struct {
	store    history.Store
	profiles *profile.Store
	units    string
	clock    timeutil.Clock

	stream *stream
}

// NewServer builds a server over the given stores. units selects the
// display unit applied to weight fields in responses.
func NewServer(store history.Store, profiles *profile.Store, units string, clock timeutil.Clock) *Server {
	return &Server{
		store:    store,
		profiles: profiles,
		units:    units,
		clock:    clock,
		stream:   newStream(),
	}
}

// Broadcast pushes a freshly persisted record to every stream subscriber.
// Wire it to the pipeline via Pipeline.Observe.
func (s *Server) Broadcast(r history.Record) {
	s.stream.broadcast(r)
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/measurements", s.listMeasurements)
	mux.HandleFunc("/api/measurements/latest", s.showLatest)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/", s.handleUser)
	mux.HandleFunc("/api/predict", s.showForecast)
	mux.HandleFunc("/api/live", s.streamMeasurements)
	mux.HandleFunc("/api/history/download", s.downloadCSV)
	return mux
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

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
