// Package pipeline orchestrates one measurement cycle and the retry loop
// around it.
//
// A cycle is: scan, duplicate check, decode, provisional analysis with the
// default profile, attribution, profile reload, personalized re-analysis,
// persistence. Every failure is handled at the cycle boundary; the loop
// never exits on a processing error, only on context cancellation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/scale.report/internal/attribution"
	"github.com/banshee-data/scale.report/internal/blescan"
	"github.com/banshee-data/scale.report/internal/config"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/metrics"
	"github.com/banshee-data/scale.report/internal/monitoring"
	"github.com/banshee-data/scale.report/internal/packet"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

// Defaults are the analysis parameters for the provisional first pass and
// for attributed users without a stored profile.
type Defaults struct {
	HeightCm int
	Age      int
	Sex      metrics.Sex
}

// DefaultsFromConfig resolves the configured default parameters.
func DefaultsFromConfig(cfg config.Config) (Defaults, error) {
	sex, err := metrics.ParseSex(cfg.DefaultSex)
	if err != nil {
		return Defaults{}, fmt.Errorf("default_sex: %w", err)
	}
	return Defaults{HeightCm: cfg.DefaultHeightCm, Age: cfg.DefaultAge, Sex: sex}, nil
}

// Pipeline runs measurement cycles. It owns the last-accepted-packet cache
// and is the only writer to the history stores; construct one per process.
type Pipeline struct {
	scanner  blescan.Scanner
	profiles *profile.Store
	store    history.Store
	mirrors  []history.Store
	defaults Defaults
	clock    timeutil.Clock

	interval time.Duration
	backoff  time.Duration

	observers []func(history.Record)
	metrics   *Metrics

	lastPacket []byte
}

// Options configures optional pipeline collaborators.
type Options struct {
	// Mirrors receive every persisted record after the primary store.
	// A mirror failure is logged but does not fail the cycle.
	Mirrors []history.Store

	// Metrics, when set, counts cycle outcomes.
	Metrics *Metrics
}

// New constructs a pipeline. The primary store is both where records are
// appended and where attribution reads its history.
func New(scanner blescan.Scanner, profiles *profile.Store, store history.Store,
	defaults Defaults, interval, backoff time.Duration, clock timeutil.Clock, opts Options) *Pipeline {
	return &Pipeline{
		scanner:  scanner,
		profiles: profiles,
		store:    store,
		mirrors:  opts.Mirrors,
		defaults: defaults,
		clock:    clock,
		interval: interval,
		backoff:  backoff,
		metrics:  opts.Metrics,
	}
}

// Observe registers a callback invoked after every persisted record. Not
// safe to call once Run has started.
func (p *Pipeline) Observe(fn func(history.Record)) {
	p.observers = append(p.observers, fn)
}

// Run executes cycles until the context is cancelled or the scanner is
// permanently exhausted. An unexpected cycle error is logged and followed
// by the backoff pause instead of the normal interval; the loop itself
// only ever returns the context's error or, on exhaustion, nil.
func (p *Pipeline) Run(ctx context.Context) error {
	monitoring.Logf("pipeline: started, scanning every %s", p.interval)
	for {
		wait := p.interval
		if err := p.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, blescan.ErrScannerClosed) {
				monitoring.Logf("pipeline: scanner exhausted, stopping")
				return nil
			}
			monitoring.Logf("pipeline: cycle failed: %v (retrying in %s)", err, p.backoff)
			p.count("error")
			wait = p.backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(wait):
		}
	}
}

// Cycle runs one full measurement cycle. Expected conditions (quiet scan,
// duplicate packet, out-of-range reading) are handled internally and
// return nil; only unexpected failures propagate, and Run turns those
// into a backoff.
func (p *Pipeline) Cycle(ctx context.Context) error {
	// Reload first so out-of-band profile edits shape this cycle's
	// attribution. A read failure keeps the previous snapshot.
	if err := p.profiles.Reload(); err != nil {
		monitoring.Logf("pipeline: profile reload failed, keeping previous snapshot: %v", err)
	}

	raw, err := p.scanner.Scan(ctx)
	if errors.Is(err, blescan.ErrNoMeasurement) {
		monitoring.Debugf("pipeline: quiet scan window")
		p.count("quiet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if bytes.Equal(raw, p.lastPacket) {
		monitoring.Logf("pipeline: duplicate measurement, skipping")
		p.count("duplicate")
		return nil
	}

	m, err := packet.Decode(raw)
	if err != nil {
		monitoring.Logf("pipeline: dropping packet: %v", err)
		p.count("invalid_packet")
		return nil
	}

	// Provisional pass with the default profile; its weight drives
	// attribution.
	provisional, err := p.analyze(m, p.defaults.HeightCm, p.defaults.Age, p.defaults.Sex)
	if err != nil {
		monitoring.Logf("pipeline: dropping measurement: %v", err)
		p.count("out_of_range")
		return nil
	}

	username := p.attribute(provisional.WeightKg)

	final := provisional
	if prof, ok := p.profiles.Get(username); ok {
		age := prof.AgeAt(p.clock.Now())
		monitoring.Logf("pipeline: using profile %s (height=%dcm age=%d sex=%s)",
			prof.Username, prof.HeightCm, age, prof.Sex)
		final, err = p.analyze(m, prof.HeightCm, age, prof.Sex)
		if err != nil {
			monitoring.Logf("pipeline: dropping measurement: %v", err)
			p.count("out_of_range")
			return nil
		}
	} else {
		monitoring.Logf("pipeline: no profile for %q, keeping default-parameter analysis", username)
	}

	record := history.Record{
		BodyComposition: final,
		Username:        username,
		Timestamp:       p.clock.Now(),
	}
	if err := p.store.Append(record); err != nil {
		// Skip caching so the same packet is retried next cycle.
		return fmt.Errorf("persist measurement: %w", err)
	}
	for _, mirror := range p.mirrors {
		if err := mirror.Append(record); err != nil {
			monitoring.Logf("pipeline: mirror append failed: %v", err)
		}
	}

	p.lastPacket = append([]byte(nil), raw...)
	p.count("persisted")
	if p.metrics != nil {
		p.metrics.observeRecord(record)
	}
	monitoring.Logf("pipeline: persisted %.2fkg for %s", record.WeightKg, username)

	for _, fn := range p.observers {
		fn(record)
	}
	return nil
}

func (p *Pipeline) analyze(m packet.Measurement, heightCm, age int, sex metrics.Sex) (metrics.BodyComposition, error) {
	// A fresh engine per pass: the default and personalized analyses
	// share nothing.
	return metrics.NewEngine(heightCm, age, sex).Analyze(m)
}

func (p *Pipeline) attribute(weightKg float64) string {
	records, err := p.store.Records()
	if err != nil {
		monitoring.Logf("pipeline: history read failed, attributing without history: %v", err)
		records = nil
	}
	stats := attribution.Stats(records, p.profiles.Usernames())
	username := attribution.Identify(weightKg, stats)
	monitoring.Logf("pipeline: %.2fkg attributed to %q", weightKg, username)
	return username
}

func (p *Pipeline) count(outcome string) {
	if p.metrics != nil {
		p.metrics.countCycle(outcome)
	}
}
