// Package history persists accepted measurements as an append-only log.
//
// The canonical interchange format is a CSV file whose column order never
// changes; external tooling (spreadsheets, pandas notebooks) depends on it.
// A SQLite-backed store in internal/db implements the same Store contract
// for hosts that want indexed queries.
package history

import (
	"time"

	"github.com/banshee-data/scale.report/internal/metrics"
)

// Columns is the canonical column order of the history CSV. Appends always
// write these columns in this order; readers map by header name so a
// repaired file with reordered columns still loads.
var Columns = []string{
	"weight", "impedance", "lbm", "fat_percentage", "water_percentage",
	"muscle_mass", "bone_mass", "visceral_fat", "bmi", "bmr",
	"ideal_weight", "metabolic_age", "timestamp", "USER_NAME",
}

// TimestampLayout is the format new rows are written with. Reads accept a
// few legacy variants as well (see parseTimestamp).
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one accepted measurement attributed to a user.
type Record struct {
	metrics.BodyComposition
	Username  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the append-only record log the pipeline writes to.
type Store interface {
	// Append writes one record. A zero Timestamp is stamped with the
	// store clock's current time.
	Append(r Record) error

	// Records returns every parseable record in append order. Rows whose
	// weight or timestamp cannot be parsed are dropped, not fatal.
	Records() ([]Record, error)
}

// Query filters a record set. Zero values leave the corresponding
// dimension unfiltered; End is inclusive.
type Query struct {
	User  string
	Start time.Time
	End   time.Time
}

// Filter returns the records matching q, preserving order.
func Filter(records []Record, q Query) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.User != "" && r.Username != q.User {
			continue
		}
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && r.Timestamp.After(q.End) {
			continue
		}
		out = append(out, r)
	}
	return out
}
