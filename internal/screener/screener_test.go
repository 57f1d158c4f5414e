package screener

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-pattern-engine/config"
	"stock-pattern-engine/internal/patterns"
	"stock-pattern-engine/internal/series"
)

func newTestScreener(maxCandidates int) *Screener {
	return New(config.ScreenerConfig{
		WorkerCount:   4,
		MaxCandidates: maxCandidates,
	}, zerolog.Nop())
}

func riseDef() patterns.PatternDefinition {
	bound := func(v float64) patterns.Param { return patterns.Param{Min: &v} }
	off := false
	return patterns.PatternDefinition{
		PatternID:   "P003",
		PatternName: "Continuous Rise",
		PatternType: patterns.FamilyContinuousRise,
		IsActive:    true,
		Parameters: patterns.Parameters{
			"daily_rise":         bound(0.015),
			"continuous_days":    bound(3),
			"total_rise":         bound(0.05),
			"daily_volume_ratio": bound(1.0),
			"no_pullback":        patterns.Param{Flag: &off},
		},
	}
}

func testBar(n int, close, volume float64) series.Bar {
	return series.Bar{
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n),
		Open:   close,
		High:   close * 1.01,
		Low:    close * 0.99,
		Close:  close,
		Volume: volume,
	}
}

// risingBars matches the continuous-rise definition; flatBars does not.
func risingBars() []series.Bar {
	bars := make([]series.Bar, 0, 10)
	for i := 0; i < 6; i++ {
		bars = append(bars, testBar(i, 10, 100))
	}
	close := 10.0
	for i := 6; i < 10; i++ {
		close *= 1.02
		bars = append(bars, testBar(i, close, 200))
	}
	return bars
}

func flatBars() []series.Bar {
	bars := make([]series.Bar, 10)
	for i := range bars {
		bars[i] = testBar(i, 10, 100)
	}
	return bars
}

func TestShortlistReturnsOnlyMatches(t *testing.T) {
	barsByCode := map[string][]series.Bar{
		"600001": risingBars(),
		"600002": flatBars(),
		"600003": risingBars(),
	}

	codes := newTestScreener(50).Shortlist(context.Background(), barsByCode, []patterns.PatternDefinition{riseDef()})
	if len(codes) != 2 {
		t.Fatalf("shortlisted %v, want 2 codes", codes)
	}
	if codes[0] != "600001" || codes[1] != "600003" {
		t.Errorf("shortlist = %v, want sorted [600001 600003]", codes)
	}
}

func TestShortlistNeverExpands(t *testing.T) {
	// Nothing matches: the shortlist must stay empty, with no fallback
	barsByCode := map[string][]series.Bar{
		"600001": flatBars(),
		"600002": flatBars(),
	}

	codes := newTestScreener(50).Shortlist(context.Background(), barsByCode, []patterns.PatternDefinition{riseDef()})
	if len(codes) != 0 {
		t.Errorf("shortlist = %v, want empty", codes)
	}
}

func TestShortlistCapsCandidates(t *testing.T) {
	barsByCode := map[string][]series.Bar{
		"600001": risingBars(),
		"600002": risingBars(),
		"600003": risingBars(),
	}

	codes := newTestScreener(2).Shortlist(context.Background(), barsByCode, []patterns.PatternDefinition{riseDef()})
	if len(codes) != 2 {
		t.Fatalf("shortlisted %v, want cap of 2", codes)
	}
	if codes[0] != "600001" || codes[1] != "600002" {
		t.Errorf("shortlist = %v, want first two sorted codes", codes)
	}
}

func TestShortlistSkipsShortHistories(t *testing.T) {
	barsByCode := map[string][]series.Bar{
		"600001": risingBars()[:3],
		"600002": risingBars(),
	}

	codes := newTestScreener(50).Shortlist(context.Background(), barsByCode, []patterns.PatternDefinition{riseDef()})
	if len(codes) != 1 || codes[0] != "600002" {
		t.Errorf("shortlist = %v, want only 600002", codes)
	}
}

func TestScreenKeepsMatchEvidence(t *testing.T) {
	barsByCode := map[string][]series.Bar{"600001": risingBars()}

	result := newTestScreener(50).Screen(context.Background(), barsByCode, []patterns.PatternDefinition{riseDef()})
	if result.Screened != 1 || len(result.Candidates) != 1 {
		t.Fatalf("result = %+v", result)
	}
	cand := result.Candidates[0]
	if len(cand.Matches) != 1 || cand.Matches[0].PatternID != "P003" {
		t.Errorf("candidate matches = %+v", cand.Matches)
	}
}
