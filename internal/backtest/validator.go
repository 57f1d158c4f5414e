package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/patterns"
)

// Whole-batch preconditions. Everything below these is recovered locally
// by skipping the offending snapshot or definition.
var (
	ErrNoSnapshots = errors.New("no historical samples available")
	ErrNoPatterns  = errors.New("no pattern definitions loaded")
)

// State is the validator run lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is a coarse status update emitted during a run.
type Progress struct {
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// ProgressFunc receives progress updates. May be nil.
type ProgressFunc func(Progress)

// Metadata describes how a report was produced.
type Metadata struct {
	TotalSnapshots int       `json:"total_snapshots"`
	MatchedSamples int       `json:"matched_samples"`
	SkippedSamples int       `json:"skipped_samples"`
	ValidationDate time.Time `json:"validation_date"`
	Method         string    `json:"method"`
	Thresholds     []float64 `json:"thresholds"`
	HorizonDays    int       `json:"horizon_days"`
}

// Report is the full output of one validation run. Regenerable from raw
// history plus definitions; carries no hidden state.
type Report struct {
	Summaries []PatternSummary `json:"validation_summary"`
	Metadata  Metadata         `json:"metadata"`
}

// Validator replays sampled snapshots through the dispatcher and reduces
// the matched forward returns into per-pattern summaries. The accumulator
// is owned by a single run and never exposed until the run completes.
type Validator struct {
	sampler *Sampler
	cfg     config.ValidatorConfig
	logger  zerolog.Logger

	mu     sync.RWMutex
	state  State
	reason string
}

func NewValidator(sampler *Sampler, cfg config.ValidatorConfig, logger zerolog.Logger) *Validator {
	return &Validator{
		sampler: sampler,
		cfg:     cfg,
		logger:  logger,
		state:   StateIdle,
	}
}

// State reports the current lifecycle state and, for Failed, the reason.
func (v *Validator) State() (State, string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state, v.reason
}

func (v *Validator) setState(state State, reason string) {
	v.mu.Lock()
	v.state = state
	v.reason = reason
	v.mu.Unlock()
}

// Run draws the sample set and validates every definition against it.
// Unusable snapshots are skipped and counted; only missing-everything
// preconditions fail the run.
func (v *Validator) Run(ctx context.Context, defs []patterns.PatternDefinition, onProgress ProgressFunc) (*Report, error) {
	if len(defs) == 0 {
		v.setState(StateFailed, ErrNoPatterns.Error())
		return nil, ErrNoPatterns
	}

	v.setState(StateRunning, "")

	points, err := v.sampler.Draw(ctx)
	if err != nil {
		v.setState(StateFailed, err.Error())
		return nil, err
	}
	if len(points) == 0 {
		v.setState(StateFailed, ErrNoSnapshots.Error())
		return nil, ErrNoSnapshots
	}

	report, err := v.validate(ctx, points, defs, onProgress)
	if err != nil {
		v.setState(StateFailed, err.Error())
		return nil, err
	}

	v.setState(StateCompleted, "")
	return report, nil
}

// accumulator collects match-ordered returns for one pattern.
type accumulator struct {
	total   int
	returns []float64
}

func (v *Validator) validate(ctx context.Context, points []SamplePoint, defs []patterns.PatternDefinition, onProgress ProgressFunc) (*Report, error) {
	stats := make(map[string]*accumulator)
	matched := 0
	skipped := 0

	for i, point := range points {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validation interrupted: %w", err)
		}

		snap, err := v.sampler.Build(ctx, point)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			skipped++
			continue
		}

		results := patterns.MatchBars(snap.Bars, defs)
		if len(results) == 0 {
			continue
		}

		for _, res := range results {
			acc := stats[res.PatternName]
			if acc == nil {
				acc = &accumulator{}
				stats[res.PatternName] = acc
			}
			acc.total++
			acc.returns = append(acc.returns, snap.ForwardReturn)
		}
		matched++

		if v.cfg.ProgressEverySamples > 0 && (i+1)%v.cfg.ProgressEverySamples == 0 {
			v.report(onProgress, Progress{
				Processed: i + 1,
				Skipped:   skipped,
				Total:     len(points),
				Message:   fmt.Sprintf("processed %d/%d samples", i+1, len(points)),
			})
		}
	}

	summaries := make([]PatternSummary, 0, len(defs))
	seen := make(map[string]bool)
	for _, def := range defs {
		if def.PatternName == "" || seen[def.PatternName] {
			continue
		}
		seen[def.PatternName] = true

		if acc, ok := stats[def.PatternName]; ok {
			summaries = append(summaries, summarize(
				def.PatternName, acc.returns,
				v.cfg.SuccessThresholds, v.cfg.PrimaryThreshold, v.cfg.MinSuccessRate,
			))
		} else {
			// Zero-match patterns still appear so the roster stays visible
			summaries = append(summaries, PatternSummary{PatternName: def.PatternName})
		}
	}

	v.report(onProgress, Progress{
		Processed: len(points),
		Skipped:   skipped,
		Total:     len(points),
		Message:   fmt.Sprintf("validated %d patterns", len(summaries)),
	})

	v.logger.Info().
		Int("samples", len(points)).
		Int("matched", matched).
		Int("skipped", skipped).
		Int("patterns", len(summaries)).
		Msg("validation run completed")

	return &Report{
		Summaries: summaries,
		Metadata: Metadata{
			TotalSnapshots: len(points),
			MatchedSamples: matched,
			SkippedSamples: skipped,
			ValidationDate: time.Now().UTC(),
			Method:         "programmatic_matching",
			Thresholds:     v.cfg.SuccessThresholds,
			HorizonDays:    v.sampler.cfg.HorizonDays,
		},
	}, nil
}

func (v *Validator) report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
