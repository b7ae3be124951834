// Package blescan produces raw scale advertisement payloads.
//
// The scale never accepts connections; it broadcasts each reading as BLE
// Service Data in its advertising frames. Scanning passively over an
// HCI-UART adapter is enough to capture every measurement. Three sources
// implement the same Scanner contract: the UART adapter for production, a
// canned queue for development, and a pcap replay for debugging captures.
package blescan

import (
	"context"
	"errors"
)

// ErrNoMeasurement reports a scan window that ended without a stabilized
// impedance-carrying frame from the target device. The pipeline treats it
// as a quiet cycle, not a failure.
var ErrNoMeasurement = errors.New("no stabilized measurement observed")

// ErrScannerClosed reports a source that will never produce another
// payload, such as a replay that reached the end of its capture. The
// pipeline stops its loop cleanly on it.
var ErrScannerClosed = errors.New("scanner exhausted")

// Scanner produces one raw service-data payload per call. Scan blocks for
// at most the source's scan window and honors context cancellation.
type Scanner interface {
	Scan(ctx context.Context) ([]byte, error)
}
