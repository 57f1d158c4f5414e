package patterns

import (
	"strings"
	"testing"
)

func TestContinuousRiseMatches(t *testing.T) {
	s := prepare(t, continuousRiseBars())

	details, ok := matchContinuousRise(s, continuousRiseDef().Parameters)
	if !ok {
		t.Fatal("expected continuous rise to match")
	}

	// The streak stops at the -2% bar, so exactly the last 4 bars count
	if !strings.Contains(details, "4 consecutive rising days") {
		t.Errorf("details = %q, want 4-day streak reported", details)
	}
}

func TestContinuousRiseStreakTooShort(t *testing.T) {
	def := continuousRiseDef()
	def.Parameters["continuous_days"] = minOf(5)
	s := prepare(t, continuousRiseBars())

	if _, ok := matchContinuousRise(s, def.Parameters); ok {
		t.Error("expected no match with a 5-day streak floor")
	}
}

func TestContinuousRiseTotalTooSmall(t *testing.T) {
	def := continuousRiseDef()
	def.Parameters["total_rise"] = minOf(0.10)
	s := prepare(t, continuousRiseBars())

	if _, ok := matchContinuousRise(s, def.Parameters); ok {
		t.Error("expected no match when cumulative rise misses the floor")
	}
}

func TestContinuousRiseNoPullbackDisqualifies(t *testing.T) {
	// The breaking bar fell 2%, so requiring no_pullback rejects the match
	def := continuousRiseDef()
	def.Parameters["no_pullback"] = flagOf(true)
	s := prepare(t, continuousRiseBars())

	if _, ok := matchContinuousRise(s, def.Parameters); ok {
		t.Error("expected no match when no_pullback is required")
	}
}

func TestContinuousRiseVolumeFloor(t *testing.T) {
	// Streak bars on shrinking volume fail the 60% corroboration rule
	bars := continuousRiseBars()
	for i := 6; i < 10; i++ {
		bars[i].Volume = 20
	}
	s := prepare(t, bars)

	if _, ok := matchContinuousRise(s, continuousRiseDef().Parameters); ok {
		t.Error("expected no match with streak volume below the floor")
	}
}

func TestContinuousRiseMaxVolumeRatio(t *testing.T) {
	def := continuousRiseDef()
	def.Parameters["max_volume_ratio"] = minOf(3.0)
	s := prepare(t, continuousRiseBars())

	if _, ok := matchContinuousRise(s, def.Parameters); ok {
		t.Error("expected no match when no streak bar reaches the peak ratio floor")
	}
}

func TestContinuousRiseShortSeries(t *testing.T) {
	s := prepare(t, continuousRiseBars()[:5])

	if _, ok := matchContinuousRise(s, continuousRiseDef().Parameters); ok {
		t.Error("expected no match for a 5-bar series")
	}
}
