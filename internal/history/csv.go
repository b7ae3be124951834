package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/scale.report/internal/timeutil"
)

// timestampLayouts are the formats Records accepts. New rows always use
// TimestampLayout; the others appear in files written by earlier versions
// or repaired by external tooling.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// CSVStore appends records to a CSV file, writing the header once when the
// file is created. The file is the interchange format for the rest of the
// tooling, so the column order is fixed (see Columns).
type CSVStore struct {
	path  string
	clock timeutil.Clock

	mu sync.Mutex
}

// NewCSVStore returns a store writing to path. The clock stamps records
// appended without a timestamp.
func NewCSVStore(path string, clock timeutil.Clock) *CSVStore {
	return &CSVStore{path: path, clock: clock}
}

// Append writes one record. The header is written first if the file is new
// or empty; a zero timestamp is replaced with the clock's current time.
func (s *CSVStore) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("write history header: %w", err)
		}
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock.Now()
	}

	if err := w.Write(row(r)); err != nil {
		return fmt.Errorf("write history row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush history row: %w", err)
	}
	return nil
}

// Records reads every parseable record in append order. Rows whose weight
// or timestamp cannot be parsed are dropped; a missing file reads as zero
// records. Columns are matched by header name so repaired files with
// reordered columns still load.
func (s *CSVStore) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate short rows, they are dropped below

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var records []Record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken row (stray quote etc) is droppable,
			// same as a non-numeric one.
			continue
		}

		r, ok := parseRow(fields, index)
		if !ok {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func row(r Record) []string {
	return []string{
		formatFloat(r.WeightKg),
		strconv.Itoa(r.ImpedanceOhm),
		formatFloat(r.LeanBodyMass),
		formatFloat(r.FatPercent),
		formatFloat(r.WaterPercent),
		formatFloat(r.MuscleMass),
		formatFloat(r.BoneMass),
		formatFloat(r.VisceralFat),
		formatFloat(r.BMI),
		formatFloat(r.BMR),
		formatFloat(r.IdealWeight),
		formatFloat(r.MetabolicAge),
		r.Timestamp.Format(TimestampLayout),
		r.Username,
	}
}

func parseRow(fields []string, index map[string]int) (Record, bool) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return fields[i]
	}

	weight, err := strconv.ParseFloat(get("weight"), 64)
	if err != nil {
		return Record{}, false
	}
	ts, ok := parseTimestamp(get("timestamp"))
	if !ok {
		return Record{}, false
	}

	var r Record
	r.WeightKg = weight
	r.Timestamp = ts
	r.Username = get("USER_NAME")

	// Secondary metrics: a malformed value zeroes the field rather than
	// dropping the whole row.
	if v, err := strconv.Atoi(get("impedance")); err == nil {
		r.ImpedanceOhm = v
	} else if v, err := strconv.ParseFloat(get("impedance"), 64); err == nil {
		r.ImpedanceOhm = int(v)
	}
	r.LeanBodyMass, _ = strconv.ParseFloat(get("lbm"), 64)
	r.FatPercent, _ = strconv.ParseFloat(get("fat_percentage"), 64)
	r.WaterPercent, _ = strconv.ParseFloat(get("water_percentage"), 64)
	r.MuscleMass, _ = strconv.ParseFloat(get("muscle_mass"), 64)
	r.BoneMass, _ = strconv.ParseFloat(get("bone_mass"), 64)
	r.VisceralFat, _ = strconv.ParseFloat(get("visceral_fat"), 64)
	r.BMI, _ = strconv.ParseFloat(get("bmi"), 64)
	r.BMR, _ = strconv.ParseFloat(get("bmr"), 64)
	r.IdealWeight, _ = strconv.ParseFloat(get("ideal_weight"), 64)
	r.MetabolicAge, _ = strconv.ParseFloat(get("metabolic_age"), 64)
	return r, true
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
