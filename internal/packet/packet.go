// Package packet decodes the service-data payload advertised by the scale.
//
// The scale broadcasts its reading as BLE Service Data for the 16-bit Body
// Composition service (UUID 0x181B). After stripping the two UUID bytes the
// payload is at least 13 bytes:
//
//	├── byte 0      measurement unit bits [NOT PARSED]
//	├── byte 1      control byte: bit 5 = stabilized, bit 1 = impedance present
//	├── bytes 2..8  measurement datetime (year LE, month, day, h, m, s) [NOT PARSED]
//	├── bytes 9..10 impedance in ohms, little-endian
//	└── bytes 11..12 raw weight, little-endian, in 1/200 kg units
//
// The scale re-broadcasts transient frames while a person is still settling;
// only frames with both the stabilized and impedance bits set carry a usable
// reading. Flag filtering happens in the scanner, but Decode re-validates the
// length so a short buffer can never reach the formula engine.
package packet

import (
	"errors"
	"fmt"
)

// Scale advertisement payload constants.
const (
	ServiceUUID16 = 0x181B // Body Composition service, identifies scale frames

	MinPayloadLen = 13 // Shortest payload carrying impedance and weight

	ctrlOffset      = 1      // Control byte position
	stabilizedBit   = 1 << 5 // Reading has settled
	impedanceBit    = 1 << 1 // Impedance measurement present
	impedanceOffset = 9      // Little-endian uint16
	weightOffset    = 11     // Little-endian uint16
	weightDivisor   = 200.0  // Raw weight units per kilogram
)

// ErrInvalidPacket reports a payload too short to decode.
var ErrInvalidPacket = errors.New("invalid packet")

// Measurement is one decoded scale reading.
type Measurement struct {
	WeightKg     float64
	ImpedanceOhm int
}

// Decode extracts the weight and impedance from a raw advertisement payload.
// It assumes the caller has already filtered on the control-byte flags and
// only re-validates the length.
func Decode(raw []byte) (Measurement, error) {
	if len(raw) < MinPayloadLen {
		return Measurement{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidPacket, len(raw), MinPayloadLen)
	}

	impedance := int(raw[impedanceOffset]) | int(raw[impedanceOffset+1])<<8
	rawWeight := int(raw[weightOffset]) | int(raw[weightOffset+1])<<8

	return Measurement{
		WeightKg:     float64(rawWeight) / weightDivisor,
		ImpedanceOhm: impedance,
	}, nil
}

// Stabilized reports whether the control byte marks the reading as settled.
// False for buffers too short to carry a control byte.
func Stabilized(raw []byte) bool {
	return len(raw) > ctrlOffset && raw[ctrlOffset]&stabilizedBit != 0
}

// HasImpedance reports whether the control byte marks an impedance value as
// present.
func HasImpedance(raw []byte) bool {
	return len(raw) > ctrlOffset && raw[ctrlOffset]&impedanceBit != 0
}
