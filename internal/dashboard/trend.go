package dashboard

import (
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scale.report/internal/forecast"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/units"
)

// trendPNG renders one user's weight history with the fitted forecast and
// its 95% band as a static PNG, for embedding outside the browser UI.
func (h *Handler) trendPNG(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.User == "" {
		http.Error(w, "'user' parameter is required", http.StatusBadRequest)
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 365 {
			http.Error(w, "invalid 'days' parameter, want 1-365", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	records, err := h.store.Records()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read history: %v", err), http.StatusInternalServerError)
		return
	}
	records = history.Filter(records, q)

	f, err := forecast.Linear(records, days)
	if err == forecast.ErrInsufficientData {
		http.Error(w, fmt.Sprintf("need at least %d measurements for %q", forecast.MinPoints, q.User), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("forecast failed: %v", err), http.StatusInternalServerError)
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Weight Trend: %s", q.User)
	p.X.Label.Text = "Measurement"
	p.Y.Label.Text = fmt.Sprintf("Weight (%s)", h.units)

	// History series, indexed the same way the regression indexes it.
	histPts := make(plotter.XYs, len(records))
	for i, rec := range records {
		histPts[i] = plotter.XY{X: float64(i), Y: units.ConvertWeight(rec.WeightKg, h.units)}
	}
	histLine, err := plotter.NewLine(histPts)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build plot: %v", err), http.StatusInternalServerError)
		return
	}
	histLine.Color = color.RGBA{R: 66, G: 165, B: 245, A: 255}
	histLine.Width = vg.Points(1.5)
	p.Add(histLine)
	p.Legend.Add("history", histLine)

	histDots, err := plotter.NewScatter(histPts)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build plot: %v", err), http.StatusInternalServerError)
		return
	}
	histDots.GlyphStyle.Color = histLine.Color
	histDots.GlyphStyle.Radius = vg.Points(2)
	p.Add(histDots)

	// Forecast line with its confidence band.
	n := len(records)
	fcPts := make(plotter.XYs, len(f.Points))
	loPts := make(plotter.XYs, len(f.Points))
	hiPts := make(plotter.XYs, len(f.Points))
	for i, pt := range f.Points {
		x := float64(n + i)
		fcPts[i] = plotter.XY{X: x, Y: units.ConvertWeight(pt.Value, h.units)}
		loPts[i] = plotter.XY{X: x, Y: units.ConvertWeight(pt.Lower, h.units)}
		hiPts[i] = plotter.XY{X: x, Y: units.ConvertWeight(pt.Upper, h.units)}
	}

	fcLine, err := plotter.NewLine(fcPts)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build plot: %v", err), http.StatusInternalServerError)
		return
	}
	fcLine.Color = color.RGBA{R: 102, G: 187, B: 106, A: 255}
	fcLine.Width = vg.Points(1.5)
	fcLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(fcLine)
	p.Legend.Add("forecast", fcLine)

	bandColor := color.RGBA{R: 102, G: 187, B: 106, A: 120}
	for _, band := range []plotter.XYs{loPts, hiPts} {
		line, err := plotter.NewLine(band)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to build plot: %v", err), http.StatusInternalServerError)
			return
		}
		line.Color = bandColor
		line.Width = vg.Points(0.75)
		p.Add(line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render plot: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		http.Error(w, fmt.Sprintf("failed to write plot: %v", err), http.StatusInternalServerError)
	}
}
