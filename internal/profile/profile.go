// Package profile stores household member records.
//
// Profiles live in a single JSON document ({"users": [...]}) that other
// tooling edits out-of-band, so the pipeline reloads the file at the top
// of every cycle rather than trusting its in-memory snapshot.
package profile

import (
	"fmt"
	"time"

	"github.com/banshee-data/scale.report/internal/metrics"
)

// Validation limits for profile creation. Analysis applies its own,
// tighter limits (see internal/metrics); these only gate what can be
// written to the profiles file.
const (
	MaxHeightCm = 250
	MaxAge      = 120
)

// BirthdateLayout is the on-disk birthdate format.
const BirthdateLayout = "2006-01-02"

// Profile is one household member.
//
// Exactly one of Birthdate and StoredAge is meaningful: new profiles carry
// a birthdate and derive the age at analysis time; profiles migrated from
// the old schema carry a fixed stored age and a zero Birthdate.
type Profile struct {
	Username    string
	DisplayName string
	HeightCm    int
	Sex         metrics.Sex
	Birthdate   time.Time
	StoredAge   int
}

// AgeAt resolves the profile's age at the given instant. Birthdate
// profiles count completed years; legacy profiles return the stored age
// unchanged.
func (p Profile) AgeAt(now time.Time) int {
	if p.Birthdate.IsZero() {
		return p.StoredAge
	}
	age := now.Year() - p.Birthdate.Year()
	if now.Month() < p.Birthdate.Month() ||
		(now.Month() == p.Birthdate.Month() && now.Day() < p.Birthdate.Day()) {
		age--
	}
	return age
}

// Validate checks the profile against the creation limits. The age cap is
// evaluated at the given instant so a far-past birthdate is rejected.
func (p Profile) Validate(now time.Time) error {
	if p.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("display name must not be empty")
	}
	if p.HeightCm <= 0 || p.HeightCm > MaxHeightCm {
		return fmt.Errorf("height must be between 1 and %d cm, got %d", MaxHeightCm, p.HeightCm)
	}
	if age := p.AgeAt(now); age < 0 || age > MaxAge {
		return fmt.Errorf("age %d out of range (0-%d)", age, MaxAge)
	}
	return nil
}
