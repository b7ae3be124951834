// Package forecast projects a user's weight trend forward.
//
// The model is a weighted linear regression over the measurement index:
// observations after a long gap carry more weight than rapid-fire repeats,
// so stepping on the scale five times in a row does not drown out the
// long-term trend. The confidence band is a flat 95% interval from the
// weighted residual spread, which is deliberately simple; this is a trend
// hint on a dashboard, not a medical projection.
package forecast

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scale.report/internal/history"
)

// MinPoints is the smallest history a forecast can be fitted to.
const MinPoints = 5

// minSampleWeight floors the normalized day-gap weights.
const minSampleWeight = 0.1

// ErrInsufficientData reports a history too short to fit.
var ErrInsufficientData = errors.New("not enough measurements to forecast")

// Point is one forecast day.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// Forecast is a fitted projection.
type Forecast struct {
	Method string  `json:"method"`
	Slope  float64 `json:"slope_kg_per_measurement"`
	Points []Point `json:"points"`
}

// Linear fits a weighted linear regression to the records' weight series
// and projects it the given number of days past the last measurement.
// Records are sorted by timestamp before fitting; the caller filters to a
// single user.
func Linear(records []history.Record, days int) (Forecast, error) {
	if len(records) < MinPoints {
		return Forecast{}, ErrInsufficientData
	}
	if days < 1 {
		return Forecast{}, errors.New("days must be at least 1")
	}

	sorted := make([]history.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	n := len(sorted)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, r := range sorted {
		xs[i] = float64(i)
		ys[i] = r.WeightKg
	}
	weights := sampleWeights(sorted)

	alpha, beta := stat.LinearRegression(xs, ys, weights, false)

	// Weighted residual spread; n-2 degrees of freedom for the two
	// fitted parameters.
	var sse float64
	for i := range xs {
		r := ys[i] - (alpha + beta*xs[i])
		sse += weights[i] * r * r
	}
	se := math.Sqrt(sse / float64(n-2))
	const tValue = 1.96 // 95% interval

	last := sorted[n-1].Timestamp
	points := make([]Point, days)
	for d := 0; d < days; d++ {
		x := float64(n + d)
		value := alpha + beta*x
		points[d] = Point{
			Date:  last.AddDate(0, 0, d+1),
			Value: value,
			Lower: value - tValue*se,
			Upper: value + tValue*se,
		}
	}

	return Forecast{Method: "linear_regression", Slope: beta, Points: points}, nil
}

// sampleWeights derives per-observation weights from the day gaps between
// successive measurements, normalized by the largest gap and floored. The
// first observation inherits the second's gap.
func sampleWeights(sorted []history.Record) []float64 {
	n := len(sorted)
	gaps := make([]float64, n)
	maxGap := 0.0
	for i := 1; i < n; i++ {
		gaps[i] = sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Hours() / 24
		if gaps[i] > maxGap {
			maxGap = gaps[i]
		}
	}
	gaps[0] = gaps[1]

	weights := make([]float64, n)
	for i := range gaps {
		w := 1.0
		if maxGap > 0 {
			w = gaps[i] / maxGap
		}
		if w < minSampleWeight {
			w = minSampleWeight
		}
		weights[i] = w
	}
	return weights
}
