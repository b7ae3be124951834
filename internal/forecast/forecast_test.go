package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/metrics"
)

func series(weights []float64) []history.Record {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	records := make([]history.Record, len(weights))
	for i, w := range weights {
		records[i] = history.Record{
			BodyComposition: metrics.BodyComposition{WeightKg: w},
			Username:        "alice",
			Timestamp:       start.AddDate(0, 0, i),
		}
	}
	return records
}

func TestLinearIncreasingSeries(t *testing.T) {
	f, err := Linear(series([]float64{70, 70.5, 71, 71.5, 72, 72.5}), 7)
	if err != nil {
		t.Fatalf("Linear() error = %v", err)
	}

	if f.Method != "linear_regression" {
		t.Errorf("method = %q", f.Method)
	}
	if f.Slope <= 0 {
		t.Errorf("slope = %v, want positive for an increasing series", f.Slope)
	}
	if len(f.Points) != 7 {
		t.Fatalf("got %d points, want 7", len(f.Points))
	}

	for i, p := range f.Points {
		if p.Lower > p.Value || p.Value > p.Upper {
			t.Errorf("point %d: band (%v, %v, %v) not ordered", i, p.Lower, p.Value, p.Upper)
		}
	}

	// An exactly linear series fits perfectly: the band collapses and
	// the projection continues the line.
	last := f.Points[6]
	if math.Abs(last.Value-76.0) > 1e-6 {
		t.Errorf("day 7 value = %v, want 76.0", last.Value)
	}
	if math.Abs(last.Upper-last.Lower) > 1e-6 {
		t.Errorf("band width = %v, want ~0 for a perfect fit", last.Upper-last.Lower)
	}
}

func TestLinearForecastDates(t *testing.T) {
	records := series([]float64{70, 71, 70.5, 71.5, 71})
	f, err := Linear(records, 3)
	if err != nil {
		t.Fatalf("Linear() error = %v", err)
	}

	last := records[len(records)-1].Timestamp
	for i, p := range f.Points {
		want := last.AddDate(0, 0, i+1)
		if !p.Date.Equal(want) {
			t.Errorf("point %d date = %v, want %v", i, p.Date, want)
		}
	}
}

func TestLinearUnsortedInput(t *testing.T) {
	records := series([]float64{70, 70.5, 71, 71.5, 72})
	shuffled := []history.Record{records[3], records[0], records[4], records[2], records[1]}

	f, err := Linear(shuffled, 1)
	if err != nil {
		t.Fatalf("Linear() error = %v", err)
	}
	if f.Slope <= 0 {
		t.Errorf("slope = %v, want positive after internal sort", f.Slope)
	}
}

func TestLinearInsufficientData(t *testing.T) {
	_, err := Linear(series([]float64{70, 71, 72, 73}), 7)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestLinearBadDays(t *testing.T) {
	if _, err := Linear(series([]float64{70, 71, 72, 73, 74}), 0); err == nil {
		t.Error("Linear(days=0) should fail")
	}
}

func TestSampleWeightsFlooredAndNormalized(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	records := []history.Record{
		{Timestamp: start},
		{Timestamp: start.Add(time.Minute)},           // tiny gap, floored
		{Timestamp: start.AddDate(0, 0, 10)},          // the dominant gap
		{Timestamp: start.AddDate(0, 0, 10).Add(time.Hour)},
		{Timestamp: start.AddDate(0, 0, 15)},
	}

	w := sampleWeights(records)
	if len(w) != 5 {
		t.Fatalf("got %d weights", len(w))
	}
	for i, v := range w {
		if v < minSampleWeight-1e-12 || v > 1+1e-12 {
			t.Errorf("weight %d = %v, want within [0.1, 1]", i, v)
		}
	}
	if math.Abs(w[2]-1.0) > 1e-9 {
		t.Errorf("largest-gap weight = %v, want 1.0", w[2])
	}
	if w[0] != w[1] {
		t.Errorf("first weight %v should inherit second %v", w[0], w[1])
	}
}
