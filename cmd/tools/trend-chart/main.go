// Command trend-chart renders one user's weight history and forecast to a
// PNG file, for sharing outside the dashboard.
//
// Usage: trend-chart -file scale_data.csv -user alice [-days 30] [-out alice_trend.png]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scale.report/internal/forecast"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/security"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

var (
	file = flag.String("file", "scale_data.csv", "Measurement CSV to read")
	user = flag.String("user", "", "Username to chart (required)")
	days = flag.Int("days", 30, "Days to forecast past the last measurement")
	out  = flag.String("out", "", "Output PNG path (default <user>_trend.png)")
)

func main() {
	flag.Parse()

	if *user == "" {
		log.Fatal("-user is required")
	}
	if *days < 1 || *days > 365 {
		log.Fatal("-days must be between 1 and 365")
	}

	output := *out
	if output == "" {
		output = security.SanitizeFilename(*user) + "_trend.png"
	}
	if err := security.ValidateExportPath(output); err != nil {
		log.Fatalf("Refusing to write %s: %v", output, err)
	}

	store := history.NewCSVStore(*file, timeutil.RealClock{})
	records, err := store.Records()
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}
	records = history.Filter(records, history.Query{User: *user})

	f, err := forecast.Linear(records, *days)
	if err == forecast.ErrInsufficientData {
		log.Fatalf("Need at least %d measurements for %q, have %d", forecast.MinPoints, *user, len(records))
	}
	if err != nil {
		log.Fatalf("Forecast failed: %v", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Weight Trend: %s", *user)
	p.X.Label.Text = "Measurement"
	p.Y.Label.Text = "Weight (kg)"

	histPts := make(plotter.XYs, len(records))
	for i, rec := range records {
		histPts[i] = plotter.XY{X: float64(i), Y: rec.WeightKg}
	}
	histLine, err := plotter.NewLine(histPts)
	if err != nil {
		log.Fatalf("Failed to build plot: %v", err)
	}
	histLine.Color = color.RGBA{R: 66, G: 165, B: 245, A: 255}
	histLine.Width = vg.Points(1.5)
	p.Add(histLine)
	p.Legend.Add("history", histLine)

	histDots, err := plotter.NewScatter(histPts)
	if err != nil {
		log.Fatalf("Failed to build plot: %v", err)
	}
	histDots.GlyphStyle.Color = histLine.Color
	histDots.GlyphStyle.Radius = vg.Points(2)
	p.Add(histDots)

	n := len(records)
	fcPts := make(plotter.XYs, len(f.Points))
	loPts := make(plotter.XYs, len(f.Points))
	hiPts := make(plotter.XYs, len(f.Points))
	for i, pt := range f.Points {
		x := float64(n + i)
		fcPts[i] = plotter.XY{X: x, Y: pt.Value}
		loPts[i] = plotter.XY{X: x, Y: pt.Lower}
		hiPts[i] = plotter.XY{X: x, Y: pt.Upper}
	}
	fcLine, err := plotter.NewLine(fcPts)
	if err != nil {
		log.Fatalf("Failed to build plot: %v", err)
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
			log.Fatalf("Failed to build plot: %v", err)
		}
		line.Color = bandColor
		line.Width = vg.Points(0.75)
		p.Add(line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(10*vg.Inch, 5*vg.Inch, output); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	fmt.Printf("Wrote %s (%d measurements, %d forecast days, slope %+.3f kg/measurement)\n",
		output, len(records), *days, f.Slope)
}
