package attribution

import (
	"math"
	"testing"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/metrics"
)

func record(user string, weight float64) history.Record {
	return history.Record{
		BodyComposition: metrics.BodyComposition{WeightKg: weight},
		Username:        user,
	}
}

func TestStats(t *testing.T) {
	records := []history.Record{
		record("alice", 68),
		record("alice", 70),
		record("alice", 72),
		record("bob", 90),
	}

	s := Stats(records, []string{"alice", "bob"})

	alice, ok := s.Lookup("alice")
	if !ok {
		t.Fatal("alice missing from stats")
	}
	if math.Abs(alice.Mean-70) > 1e-9 {
		t.Errorf("alice mean = %v, want 70", alice.Mean)
	}
	if math.Abs(alice.Stddev-2) > 1e-9 {
		t.Errorf("alice stddev = %v, want 2", alice.Stddev)
	}

	// bob has only one record, so he gets the fallback prior.
	bob, _ := s.Lookup("bob")
	if bob.Mean != 70.0 || bob.Stddev != 5.0 {
		t.Errorf("bob stats = %+v, want fallback (70, 5)", bob)
	}
}

func TestStatsFloorsStddev(t *testing.T) {
	records := []history.Record{
		record("alice", 70),
		record("alice", 70),
		record("alice", 70),
	}

	s := Stats(records, []string{"alice"})
	alice, _ := s.Lookup("alice")
	if alice.Stddev != 0.1 {
		t.Errorf("stddev = %v, want floor 0.1", alice.Stddev)
	}
}

func TestStatsNoUsernames(t *testing.T) {
	s := Stats(nil, nil)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	ws, ok := s.Lookup(DefaultUser)
	if !ok {
		t.Fatal("DefaultUser missing from stats")
	}
	if ws.Mean != 70.0 || ws.Stddev != 5.0 {
		t.Errorf("DefaultUser stats = %+v, want (70, 5)", ws)
	}
}

func TestIdentify(t *testing.T) {
	s := UserStats{
		usernames: []string{"alice", "bob"},
		byUser: map[string]WeightStats{
			"alice": {Mean: 70, Stddev: 5},
			"bob":   {Mean: 90, Stddev: 5},
		},
	}

	// |69-70|/5 = 0.2 vs |69-90|/5 = 4.2
	if got := Identify(69, s); got != "alice" {
		t.Errorf("Identify(69) = %q, want alice", got)
	}
	if got := Identify(91, s); got != "bob" {
		t.Errorf("Identify(91) = %q, want bob", got)
	}
}

func TestIdentifyTieBreak(t *testing.T) {
	// Equidistant between the two means: the earlier username wins.
	s := UserStats{
		usernames: []string{"alice", "bob"},
		byUser: map[string]WeightStats{
			"alice": {Mean: 70, Stddev: 5},
			"bob":   {Mean: 90, Stddev: 5},
		},
	}
	if got := Identify(80, s); got != "alice" {
		t.Errorf("Identify(80) = %q, want alice (first on tie)", got)
	}

	s.usernames = []string{"bob", "alice"}
	if got := Identify(80, s); got != "bob" {
		t.Errorf("Identify(80) = %q, want bob (first on tie)", got)
	}
}

func TestIdentifyEmptyStats(t *testing.T) {
	if got := Identify(75, UserStats{}); got != DefaultUser {
		t.Errorf("Identify on empty stats = %q, want %q", got, DefaultUser)
	}
}
