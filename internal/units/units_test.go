package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit string
		want bool
	}{
		{"kg", true},
		{"lb", true},
		{"st", true},
		{"", false},
		{"KG", false},
		{"pounds", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestConvertWeight(t *testing.T) {
	tests := []struct {
		name   string
		kg     float64
		target string
		want   float64
	}{
		{"kg passthrough", 80.0, KG, 80.0},
		{"kg to lb", 80.0, LB, 176.369809748},
		{"kg to stone", 80.0, ST, 12.59784355344},
		{"unknown unit falls back to kg", 80.0, "bananas", 80.0},
		{"zero weight", 0, LB, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertWeight(tt.kg, tt.target)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ConvertWeight(%v, %q) = %v, want %v", tt.kg, tt.target, got, tt.want)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "kg, lb, st" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
