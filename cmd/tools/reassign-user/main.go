// Command reassign-user renames the owner of existing measurements, most
// commonly moving "Default User" rows to a real profile after it is
// created. An optional date range limits which rows move.
//
// Usage: reassign-user -file scale_data.csv -to alice [-from "Default User"] [-start 2025-05-01] [-end 2025-05-31]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/scale.report/internal/attribution"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/security"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

const dateLayout = "2006-01-02"

var (
	file   = flag.String("file", "scale_data.csv", "Measurement CSV to rewrite")
	from   = flag.String("from", attribution.DefaultUser, "Username to reassign rows from")
	to     = flag.String("to", "", "Username to reassign rows to (required)")
	start  = flag.String("start", "", "Only rows on or after this date (YYYY-MM-DD)")
	end    = flag.String("end", "", "Only rows on or before this date (YYYY-MM-DD)")
	dryRun = flag.Bool("dry-run", false, "Report what would change without writing")
)

func main() {
	flag.Parse()

	if *to == "" {
		fmt.Fprintln(os.Stderr, "Error: -to is required")
		flag.Usage()
		os.Exit(1)
	}
	if err := security.ValidateExportPath(*file); err != nil {
		log.Fatalf("Refusing to touch %s: %v", *file, err)
	}

	startTime, endTime, err := parseRange(*start, *end)
	if err != nil {
		log.Fatal(err)
	}

	clock := timeutil.RealClock{}
	store := history.NewCSVStore(*file, clock)
	records, err := store.Records()
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	moved := 0
	for i, rec := range records {
		if rec.Username != *from {
			continue
		}
		if !startTime.IsZero() && rec.Timestamp.Before(startTime) {
			continue
		}
		if !endTime.IsZero() && rec.Timestamp.After(endTime) {
			continue
		}
		records[i].Username = *to
		moved++
	}

	fmt.Printf("%s: %d of %d records move from %q to %q\n", *file, moved, len(records), *from, *to)
	if moved == 0 {
		return
	}
	if *dryRun {
		fmt.Println("Dry run, no changes written")
		return
	}

	backup := *file + ".bak"
	if err := os.Rename(*file, backup); err != nil {
		log.Fatalf("Failed to back up %s: %v", *file, err)
	}
	fmt.Printf("Original saved as %s\n", backup)

	fresh := history.NewCSVStore(*file, clock)
	for _, rec := range records {
		if err := fresh.Append(rec); err != nil {
			log.Fatalf("Failed to write updated file (original intact at %s): %v", backup, err)
		}
	}
	fmt.Printf("Rewrote %s\n", *file)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var startTime, endTime time.Time
	var err error
	if startStr != "" {
		startTime, err = time.Parse(dateLayout, startStr)
		if err != nil {
			return startTime, endTime, fmt.Errorf("invalid -start date %q, want YYYY-MM-DD", startStr)
		}
	}
	if endStr != "" {
		endTime, err = time.Parse(dateLayout, endStr)
		if err != nil {
			return startTime, endTime, fmt.Errorf("invalid -end date %q, want YYYY-MM-DD", endStr)
		}
		// Inclusive through the whole day.
		endTime = endTime.AddDate(0, 0, 1).Add(-time.Second)
	}
	return startTime, endTime, nil
}
