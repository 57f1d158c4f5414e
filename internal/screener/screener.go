// Package screener shortlists instruments whose recent bars match at least
// one active pattern, bounding how much work downstream analysis takes on.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/patterns"
	"stock-pattern-engine/internal/series"
)

// Candidate is one shortlisted instrument with the matches that earned it
// the spot.
type Candidate struct {
	Code    string                 `json:"code"`
	Matches []patterns.MatchResult `json:"matches"`
}

// Result is one completed screening pass.
type Result struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Screened   int           `json:"screened"`
	Candidates []Candidate   `json:"candidates"`
}

// Screener fans pattern evaluation out across a worker pool. It only ever
// narrows: the shortlist contains actual matches and nothing else, and any
// fallback to a broader instrument set belongs to the caller.
type Screener struct {
	cfg    config.ScreenerConfig
	logger zerolog.Logger
}

func New(cfg config.ScreenerConfig, logger zerolog.Logger) *Screener {
	return &Screener{cfg: cfg, logger: logger}
}

// Shortlist evaluates every instrument's bars against the definitions and
// returns the codes with at least one match, capped at MaxCandidates.
// Output order is deterministic: codes sorted ascending before the cap.
func (sc *Screener) Shortlist(ctx context.Context, barsByCode map[string][]series.Bar, defs []patterns.PatternDefinition) []string {
	result := sc.Screen(ctx, barsByCode, defs)

	codes := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		codes = append(codes, c.Code)
	}
	return codes
}

// Screen is Shortlist with match evidence retained per candidate.
func (sc *Screener) Screen(ctx context.Context, barsByCode map[string][]series.Bar, defs []patterns.PatternDefinition) *Result {
	start := time.Now()

	codes := make([]string, 0, len(barsByCode))
	for code := range barsByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	codeChan := make(chan string, len(codes))
	candChan := make(chan Candidate, len(codes))

	workers := sc.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range codeChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				// Too-short histories are a silent no-match
				matches := patterns.MatchBars(barsByCode[code], defs)
				if len(matches) > 0 {
					candChan <- Candidate{Code: code, Matches: matches}
				}
			}
		}()
	}

	go func() {
		for _, code := range codes {
			select {
			case codeChan <- code:
			case <-ctx.Done():
			}
		}
		close(codeChan)
	}()

	go func() {
		wg.Wait()
		close(candChan)
	}()

	candidates := make([]Candidate, 0, len(codes))
	for cand := range candChan {
		candidates = append(candidates, cand)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Code < candidates[j].Code
	})

	if sc.cfg.MaxCandidates > 0 && len(candidates) > sc.cfg.MaxCandidates {
		candidates = candidates[:sc.cfg.MaxCandidates]
	}

	result := &Result{
		StartedAt:  start,
		Duration:   time.Since(start),
		Screened:   len(codes),
		Candidates: candidates,
	}

	sc.logger.Info().
		Int("screened", result.Screened).
		Int("candidates", len(candidates)).
		Dur("duration", result.Duration).
		Msg("screening pass completed")

	return result
}
