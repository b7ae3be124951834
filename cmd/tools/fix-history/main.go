// Command fix-history repairs a measurement CSV in place: malformed rows
// are dropped, legacy timestamp formats are normalized, and the column
// order is rewritten to the canonical layout. The original file is kept
// as a .bak backup.
//
// Usage: fix-history -file scale_data.csv [-dry-run]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/security"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

var (
	file   = flag.String("file", "scale_data.csv", "Measurement CSV to repair")
	dryRun = flag.Bool("dry-run", false, "Report what would change without writing")
)

func main() {
	flag.Parse()

	if err := security.ValidateExportPath(*file); err != nil {
		log.Fatalf("Refusing to touch %s: %v", *file, err)
	}

	rawRows, err := countDataRows(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	clock := timeutil.RealClock{}
	store := history.NewCSVStore(*file, clock)
	records, err := store.Records()
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	dropped := rawRows - len(records)
	fmt.Printf("%s: %d rows, %d parseable, %d dropped\n", *file, rawRows, len(records), dropped)

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
			log.Fatalf("Failed to write repaired file (original intact at %s): %v", backup, err)
		}
	}
	fmt.Printf("Rewrote %s with %d records\n", *file, len(records))
}

// countDataRows counts the non-header lines in the CSV.
func countDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if line != "" {
			count++
		}
	}
	return count, scanner.Err()
}
