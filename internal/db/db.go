// Package db implements the history store on SQLite.
//
// The CSV file stays the canonical interchange format; the database is a
// mirror that gives the API indexed per-user queries. Schema changes go
// through versioned migrations (see migrations/), never ad-hoc DDL.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// OpenDB opens the database without touching the schema. Use this for
// migration commands; NewDB for normal operation.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the API read while the pipeline writes.
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database and applies any pending migrations.
func NewDB(path string, clock timeutil.Clock) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	db.clock = clock

	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}

// Append writes one record. A zero timestamp is stamped with the clock's
// current time. Implements history.Store.
func (db *DB) Append(r history.Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = db.clock.Now()
	}

	_, err := db.Exec(
		`INSERT INTO measurements (
			id, weight, impedance, lbm, fat_percentage, water_percentage,
			muscle_mass, bone_mass, visceral_fat, bmi, bmr,
			ideal_weight, metabolic_age, timestamp, user_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.WeightKg, r.ImpedanceOhm, r.LeanBodyMass,
		r.FatPercent, r.WaterPercent, r.MuscleMass, r.BoneMass,
		r.VisceralFat, r.BMI, r.BMR, r.IdealWeight, r.MetabolicAge,
		r.Timestamp.UTC().Format(history.TimestampLayout), r.Username,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// Records returns every record in append order. Implements history.Store.
func (db *DB) Records() ([]history.Record, error) {
	return db.queryRecords(
		`SELECT weight, impedance, lbm, fat_percentage, water_percentage,
			muscle_mass, bone_mass, visceral_fat, bmi, bmr,
			ideal_weight, metabolic_age, timestamp, user_name
		FROM measurements ORDER BY rowid`)
}

// UserRecords returns one user's records in append order, served by the
// user_name index.
func (db *DB) UserRecords(username string) ([]history.Record, error) {
	return db.queryRecords(
		`SELECT weight, impedance, lbm, fat_percentage, water_percentage,
			muscle_mass, bone_mass, visceral_fat, bmi, bmr,
			ideal_weight, metabolic_age, timestamp, user_name
		FROM measurements WHERE user_name = ? ORDER BY rowid`, username)
}

func (db *DB) queryRecords(query string, args ...any) ([]history.Record, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		var r history.Record
		var ts string
		if err := rows.Scan(
			&r.WeightKg, &r.ImpedanceOhm, &r.LeanBodyMass, &r.FatPercent,
			&r.WaterPercent, &r.MuscleMass, &r.BoneMass, &r.VisceralFat,
			&r.BMI, &r.BMR, &r.IdealWeight, &r.MetabolicAge, &ts, &r.Username,
		); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		parsed, err := time.Parse(history.TimestampLayout, ts)
		if err != nil {
			// Rows with unparseable timestamps are droppable, matching
			// the CSV store's tolerance for damaged data.
			continue
		}
		r.Timestamp = parsed.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return records, nil
}
