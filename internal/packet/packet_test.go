package packet

import (
	"errors"
	"math"
	"testing"
)

// payload builds a minimal 13-byte advertisement payload with the given
// control byte, impedance, and raw weight value.
func payload(ctrl byte, impedance, rawWeight uint16) []byte {
	p := make([]byte, MinPayloadLen)
	p[ctrlOffset] = ctrl
	p[impedanceOffset] = byte(impedance)
	p[impedanceOffset+1] = byte(impedance >> 8)
	p[weightOffset] = byte(rawWeight)
	p[weightOffset+1] = byte(rawWeight >> 8)
	return p
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		raw           []byte
		wantWeight    float64
		wantImpedance int
	}{
		{
			name:          "80kg with 500 ohm impedance",
			raw:           []byte{0x02, 0x26, 0xE9, 0x07, 0x08, 0x15, 0x0B, 0x1E, 0x00, 0xF4, 0x01, 0x80, 0x3E},
			wantWeight:    80.0,
			wantImpedance: 500,
		},
		{
			name:          "fractional weight",
			raw:           payload(0x26, 523, 14507),
			wantWeight:    72.535,
			wantImpedance: 523,
		},
		{
			name:          "zero reading",
			raw:           payload(0x26, 0, 0),
			wantWeight:    0,
			wantImpedance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if math.Abs(m.WeightKg-tt.wantWeight) > 1e-9 {
				t.Errorf("Decode() weight = %v, want %v", m.WeightKg, tt.wantWeight)
			}
			if m.ImpedanceOhm != tt.wantImpedance {
				t.Errorf("Decode() impedance = %v, want %v", m.ImpedanceOhm, tt.wantImpedance)
			}
		})
	}
}

func TestDecodeShortPayload(t *testing.T) {
	for _, n := range []int{0, 1, 12} {
		raw := make([]byte, n)
		if _, err := Decode(raw); !errors.Is(err, ErrInvalidPacket) {
			t.Errorf("Decode(%d bytes) error = %v, want ErrInvalidPacket", n, err)
		}
	}
}

func TestControlFlags(t *testing.T) {
	tests := []struct {
		name           string
		raw            []byte
		wantStabilized bool
		wantImpedance  bool
	}{
		{"both flags set", payload(0x22, 0, 0), true, true},
		{"stabilized only", payload(0x20, 0, 0), true, false},
		{"impedance only", payload(0x02, 0, 0), false, true},
		{"transient frame", payload(0x00, 0, 0), false, false},
		{"all bits set", payload(0xFF, 0, 0), true, true},
		{"empty buffer", nil, false, false},
		{"single byte", []byte{0x22}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stabilized(tt.raw); got != tt.wantStabilized {
				t.Errorf("Stabilized() = %v, want %v", got, tt.wantStabilized)
			}
			if got := HasImpedance(tt.raw); got != tt.wantImpedance {
				t.Errorf("HasImpedance() = %v, want %v", got, tt.wantImpedance)
			}
		})
	}
}
