// Package attribution assigns an anonymous weight reading to the household
// member it most likely belongs to.
//
// Each user's historical weights form a rough normal distribution; the
// reading is scored against every user by z-score and the lowest absolute
// score wins. Users with too little history fall back to a population-level
// prior so a brand-new profile can still be matched.
package attribution

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scale.report/internal/history"
)

// DefaultUser is the synthetic username used when no profiles exist.
const DefaultUser = "Default User"

// Fallback distribution for users with fewer than two recorded weights.
const (
	fallbackMean   = 70.0
	fallbackStddev = 5.0
	minStddev      = 0.1
)

// WeightStats describes one user's historical weight distribution.
type WeightStats struct {
	Mean   float64
	Stddev float64
}

// UserStats is an ordered set of per-user weight distributions. Order is
// the order usernames were supplied in, which makes the equal-score
// tie-break in Identify deterministic.
type UserStats struct {
	usernames []string
	byUser    map[string]WeightStats
}

// Stats computes per-user weight distributions from historical records.
// Users with fewer than two recorded weights get the fallback prior; the
// stddev is floored so a user with identical repeated weights cannot
// produce a division by zero. An empty username list yields a single
// DefaultUser entry.
func Stats(records []history.Record, usernames []string) UserStats {
	if len(usernames) == 0 {
		usernames = []string{DefaultUser}
	}

	weights := make(map[string][]float64, len(usernames))
	for _, r := range records {
		weights[r.Username] = append(weights[r.Username], r.WeightKg)
	}

	s := UserStats{
		usernames: make([]string, 0, len(usernames)),
		byUser:    make(map[string]WeightStats, len(usernames)),
	}
	for _, u := range usernames {
		if _, seen := s.byUser[u]; seen {
			continue
		}
		s.usernames = append(s.usernames, u)
		s.byUser[u] = statsFor(weights[u])
	}
	return s
}

func statsFor(weights []float64) WeightStats {
	if len(weights) < 2 {
		return WeightStats{Mean: fallbackMean, Stddev: fallbackStddev}
	}
	mean, stddev := stat.MeanStdDev(weights, nil)
	if stddev < minStddev {
		stddev = minStddev
	}
	return WeightStats{Mean: mean, Stddev: stddev}
}

// Len reports how many users the set covers.
func (s UserStats) Len() int { return len(s.usernames) }

// Lookup returns the stats for one username.
func (s UserStats) Lookup(username string) (WeightStats, bool) {
	ws, ok := s.byUser[username]
	return ws, ok
}

// Identify returns the username whose weight distribution the reading fits
// best: minimum |weight - mean| / stddev. Equal scores resolve to the
// earlier username in the set's order. An empty set returns DefaultUser.
func Identify(weightKg float64, s UserStats) string {
	best := DefaultUser
	bestScore := 0.0
	found := false

	for _, u := range s.usernames {
		ws := s.byUser[u]
		score := (weightKg - ws.Mean) / ws.Stddev
		if score < 0 {
			score = -score
		}
		if !found || score < bestScore {
			best = u
			bestScore = score
			found = true
		}
	}
	return best
}
