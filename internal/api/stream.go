package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/httputil"
	"github.com/banshee-data/scale.report/internal/monitoring"
)

// subscriberBuffer absorbs a short burst without blocking the pipeline. A
// subscriber that falls further behind loses records.
const subscriberBuffer = 8

// stream fans persisted records out to SSE subscribers.
type stream struct {
	mu   sync.Mutex
	subs map[string]chan history.Record
}

func newStream() *stream {
	return &stream{subs: make(map[string]chan history.Record)}
}

func (s *stream) subscribe() (string, chan history.Record) {
	id := uuid.NewString()
	ch := make(chan history.Record, subscriberBuffer)
	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	return id, ch
}

func (s *stream) unsubscribe(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *stream) broadcast(r history.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- r:
		default:
			monitoring.Debugf("api: stream subscriber %s is behind, dropping record", id)
		}
	}
}

// streamMeasurements serves new records as server-sent events, one
// "measurement" event per persisted record.
func (s *Server) streamMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.stream.subscribe()
	defer s.stream.unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case rec := <-ch:
			data, err := json.Marshal(view(rec, s.units))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: measurement\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
