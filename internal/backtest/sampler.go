// Package backtest replays historical snapshots through the pattern
// dispatcher and computes per-pattern forward-return statistics.
package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/series"
)

// SamplePoint is a candidate (instrument, as-of-date) pair drawn from
// stored history. It becomes a Snapshot only once its trailing window and
// forward return are both available.
type SamplePoint struct {
	Code string
	Date time.Time
}

// Snapshot pairs a trailing bar window with the realized forward return.
// Consumed once by the validator, then discarded.
type Snapshot struct {
	Code          string
	AsOfDate      time.Time
	Bars          []series.Bar
	ForwardReturn float64
}

// BarSource is the historical store contract the sampler draws from.
// FutureReturn's boolean distinguishes a genuinely absent return (not
// enough later trading days) from a legitimate 0.0.
type BarSource interface {
	TrailingBars(ctx context.Context, code string, asOf time.Time, limit int) ([]series.Bar, error)
	FutureReturn(ctx context.Context, code string, asOf time.Time, horizonDays int) (float64, bool, error)
	RisingSamples(ctx context.Context, count int, riseThreshold float64) ([]SamplePoint, error)
	WindowSamples(ctx context.Context, daysBack, spanDays, count int) ([]SamplePoint, error)
}

// Sampler draws time-stratified sample points and materializes them into
// snapshots. The shuffle is seedable so a backtest can be replayed exactly.
type Sampler struct {
	src    BarSource
	cfg    config.SamplerConfig
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewSampler(src BarSource, cfg config.SamplerConfig, logger zerolog.Logger) *Sampler {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{
		src:    src,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Seed makes subsequent draws reproducible.
func (sa *Sampler) Seed(seed int64) {
	sa.rng = rand.New(rand.NewSource(seed))
}

// Draw assembles the run's sample set: known rising samples plus uniform
// draws from each configured look-back window, shuffled together.
func (sa *Sampler) Draw(ctx context.Context) ([]SamplePoint, error) {
	rising, err := sa.src.RisingSamples(ctx, sa.cfg.RisingSampleCount, sa.cfg.RisingThreshold)
	if err != nil {
		return nil, fmt.Errorf("drawing rising samples: %w", err)
	}
	// Shuffled in place below, so never alias the source's slice
	points := append([]SamplePoint(nil), rising...)

	for _, daysBack := range sa.cfg.WindowDaysBack {
		window, err := sa.src.WindowSamples(ctx, daysBack, sa.cfg.WindowSpanDays, sa.cfg.WindowSampleCount)
		if err != nil {
			return nil, fmt.Errorf("drawing window samples at -%dd: %w", daysBack, err)
		}
		points = append(points, window...)
	}

	sa.rng.Shuffle(len(points), func(i, j int) {
		points[i], points[j] = points[j], points[i]
	})

	sa.logger.Debug().Int("points", len(points)).Msg("sample set drawn")
	return points, nil
}

// Build materializes one sample point into a snapshot. A nil snapshot with
// a nil error means the point was unusable (sparse history or absent
// forward return) and should be skipped, never failing the batch.
func (sa *Sampler) Build(ctx context.Context, point SamplePoint) (*Snapshot, error) {
	bars, err := sa.src.TrailingBars(ctx, point.Code, point.Date, sa.cfg.TrailingBars)
	if err != nil {
		return nil, fmt.Errorf("loading trailing bars for %s: %w", point.Code, err)
	}
	if len(bars) < sa.cfg.MinTrailingBars {
		return nil, nil
	}

	ret, ok, err := sa.src.FutureReturn(ctx, point.Code, point.Date, sa.cfg.HorizonDays)
	if err != nil {
		return nil, fmt.Errorf("looking up forward return for %s: %w", point.Code, err)
	}
	if !ok {
		// Not enough later trading days; the snapshot is never constructed
		return nil, nil
	}

	return &Snapshot{
		Code:          point.Code,
		AsOfDate:      point.Date,
		Bars:          bars,
		ForwardReturn: ret,
	}, nil
}
