package dashboard

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/units"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const chartTimeLayout = "2006-01-02 15:04"

// weightChart renders a line chart of weight over time. With no user filter
// every user gets a series over the shared timeline; nulls fill the slots
// where other users measured, and ConnectNulls bridges each user's own
// points across them.
func (h *Handler) weightChart(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.store.Records()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read history: %v", err), http.StatusInternalServerError)
		return
	}
	records = history.Filter(records, q)
	if len(records) == 0 {
		http.Error(w, "no measurements to chart", http.StatusNotFound)
		return
	}

	xAxis := make([]string, len(records))
	byUser := map[string][]opts.LineData{}
	var userOrder []string
	for i, rec := range records {
		xAxis[i] = rec.Timestamp.Format(chartTimeLayout)
		if _, ok := byUser[rec.Username]; !ok {
			userOrder = append(userOrder, rec.Username)
		}
	}
	for _, user := range userOrder {
		series := make([]opts.LineData, len(records))
		for i, rec := range records {
			if rec.Username == user {
				series[i] = opts.LineData{Value: units.ConvertWeight(rec.WeightKg, h.units)}
			} else {
				series[i] = opts.LineData{Value: nil}
			}
		}
		byUser[user] = series
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Weight History", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Weight History", Subtitle: fmt.Sprintf("measurements=%d units=%s", len(records), h.units)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Weight (%s)", h.units), Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	for _, user := range userOrder {
		line.AddSeries(user, byUser[user],
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ConnectNulls: opts.Bool(true)}),
		)
	}

	renderChart(w, line)
}

// compositionChart overlays fat, water, and muscle for one user.
func (h *Handler) compositionChart(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.User == "" {
		http.Error(w, "'user' parameter is required", http.StatusBadRequest)
		return
	}

	records, err := h.store.Records()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read history: %v", err), http.StatusInternalServerError)
		return
	}
	records = history.Filter(records, q)
	if len(records) == 0 {
		http.Error(w, "no measurements to chart", http.StatusNotFound)
		return
	}

	xAxis := make([]string, len(records))
	fat := make([]opts.LineData, len(records))
	water := make([]opts.LineData, len(records))
	muscle := make([]opts.LineData, len(records))
	for i, rec := range records {
		xAxis[i] = rec.Timestamp.Format(chartTimeLayout)
		fat[i] = opts.LineData{Value: rec.FatPercent}
		water[i] = opts.LineData{Value: rec.WaterPercent}
		muscle[i] = opts.LineData{Value: rec.MuscleMass}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Body Composition", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Body Composition", Subtitle: fmt.Sprintf("user=%s measurements=%d", q.User, len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("fat %", fat, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	line.AddSeries("water %", water, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	line.AddSeries("muscle (kg)", muscle, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	renderChart(w, line)
}

func renderChart(w http.ResponseWriter, line *charts.Line) {
	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
