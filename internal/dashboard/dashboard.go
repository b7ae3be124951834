// Package dashboard serves the browser UI: a status page over the
// measurement history plus rendered weight and body-composition charts.
package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/timeutil"
	"github.com/banshee-data/scale.report/internal/units"
)

//go:embed index.html
var indexHTML embed.FS

const dateLayout = "2006-01-02"

// Handler renders the dashboard pages. Like the API it is a pure reader
// over the stores the pipeline writes.
type Handler struct {
	store    history.Store
	profiles *profile.Store
	units    string
	clock    timeutil.Clock
}

func NewHandler(store history.Store, profiles *profile.Store, unit string, clock timeutil.Clock) *Handler {
	return &Handler{store: store, profiles: profiles, units: unit, clock: clock}
}

// ServeMux returns the dashboard routes.
func (h *Handler) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.showIndex)
	mux.HandleFunc("/charts/weight", h.weightChart)
	mux.HandleFunc("/charts/composition", h.compositionChart)
	mux.HandleFunc("/charts/trend.png", h.trendPNG)
	return mux
}

type userSummary struct {
	Username     string
	DisplayName  string
	Measurements int
	LatestWeight string
	LatestAt     string
}

type indexData struct {
	Units        string
	Total        int
	Latest       *latestView
	Users        []userSummary
	SelectedUser string
}

type latestView struct {
	Username   string
	Weight     string
	BMI        string
	FatPercent string
	Timestamp  string
}

func (h *Handler) formatWeight(kg float64) string {
	return fmt.Sprintf("%.2f %s", units.ConvertWeight(kg, h.units), h.units)
}

func (h *Handler) showIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	records, err := h.store.Records()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read history: %v", err), http.StatusInternalServerError)
		return
	}

	data := indexData{
		Units:        h.units,
		Total:        len(records),
		SelectedUser: r.URL.Query().Get("user"),
	}

	if len(records) > 0 {
		last := records[len(records)-1]
		data.Latest = &latestView{
			Username:   last.Username,
			Weight:     h.formatWeight(last.WeightKg),
			BMI:        fmt.Sprintf("%.2f", last.BMI),
			FatPercent: fmt.Sprintf("%.1f%%", last.FatPercent),
			Timestamp:  last.Timestamp.Format(history.TimestampLayout),
		}
	}

	// Summarize per user, profiles first in store order, then any names
	// that only exist in the history (attributed defaults).
	latestByUser := map[string]history.Record{}
	countByUser := map[string]int{}
	var historyOrder []string
	for _, rec := range records {
		if countByUser[rec.Username] == 0 {
			historyOrder = append(historyOrder, rec.Username)
		}
		countByUser[rec.Username]++
		latestByUser[rec.Username] = rec
	}

	seen := map[string]bool{}
	appendSummary := func(username, display string) {
		if seen[username] {
			return
		}
		seen[username] = true
		s := userSummary{Username: username, DisplayName: display, Measurements: countByUser[username]}
		if rec, ok := latestByUser[username]; ok {
			s.LatestWeight = h.formatWeight(rec.WeightKg)
			s.LatestAt = rec.Timestamp.Format(history.TimestampLayout)
		}
		data.Users = append(data.Users, s)
	}
	for _, p := range h.profiles.All() {
		appendSummary(p.Username, p.DisplayName)
	}
	for _, name := range historyOrder {
		appendSummary(name, name)
	}

	tmpl, err := template.ParseFS(indexHTML, "index.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
	}
}

// queryFromRequest builds a history filter from user/start/end parameters.
func queryFromRequest(r *http.Request) (history.Query, error) {
	q := history.Query{User: r.URL.Query().Get("user")}
	if v := r.URL.Query().Get("start"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fmt.Errorf("invalid 'start' date %q, want YYYY-MM-DD", v)
		}
		q.Start = start
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, fmt.Errorf("invalid 'end' date %q, want YYYY-MM-DD", v)
		}
		q.End = end.AddDate(0, 0, 1).Add(-time.Second)
	}
	return q, nil
}
