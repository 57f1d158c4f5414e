package patterns

import (
	"testing"
	"time"

	"stock-pattern-engine/internal/series"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// bar builds a test bar with a symmetric high/low band around the close.
func bar(n int, close, volume float64) series.Bar {
	return series.Bar{
		Date:   day(n),
		Open:   close,
		High:   close * 1.01,
		Low:    close * 0.99,
		Close:  close,
		Volume: volume,
	}
}

func prepare(t *testing.T, bars []series.Bar) *series.Series {
	t.Helper()
	s, err := series.Prepare(bars)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	return s
}

func minOf(v float64) Param {
	return Param{Min: &v}
}

func maxOf(v float64) Param {
	return Param{Max: &v}
}

func boundsOf(min, max float64) Param {
	return Param{Min: &min, Max: &max}
}

func flagOf(v bool) Param {
	return Param{Flag: &v}
}

// consolidationBreakoutDef is the reference relaxed parameter set.
func consolidationBreakoutDef() PatternDefinition {
	return PatternDefinition{
		PatternID:   "P001",
		PatternName: "Consolidation Breakout",
		PatternType: FamilyConsolidationBreakout,
		IsActive:    true,
		Parameters: Parameters{
			"consolidation_days":               boundsOf(2, 6),
			"volume_shrink_ratio":              maxOf(1.5),
			"breakout_volume_ratio":            minOf(1.2),
			"price_range_during_consolidation": maxOf(0.12),
			"breakout_rise":                    minOf(0.015),
		},
	}
}

func vReversalDef() PatternDefinition {
	return PatternDefinition{
		PatternID:   "P002",
		PatternName: "V Reversal",
		PatternType: FamilyVReversal,
		IsActive:    true,
		Parameters: Parameters{
			"decline_amplitude": minOf(0.02),
			"rebound_rise":      minOf(0.03),
			"rebound_days":      minOf(2),
		},
	}
}

func continuousRiseDef() PatternDefinition {
	return PatternDefinition{
		PatternID:   "P003",
		PatternName: "Continuous Rise",
		PatternType: FamilyContinuousRise,
		IsActive:    true,
		Parameters: Parameters{
			"daily_rise":         minOf(0.015),
			"continuous_days":    minOf(3),
			"total_rise":         minOf(0.05),
			"daily_volume_ratio": minOf(1.0),
			"no_pullback":        flagOf(false),
		},
	}
}

// consolidationBreakoutBars is nine flat low-volume bars then a +3%
// high-volume breakout bar.
func consolidationBreakoutBars() []series.Bar {
	bars := make([]series.Bar, 10)
	for i := 0; i < 9; i++ {
		bars[i] = bar(i, 10.0, 100)
	}
	breakout := bar(9, 10.3, 250)
	breakout.Low = 10.0
	bars[9] = breakout
	return bars
}

// continuousRiseBars is a flat head, one -2% pullback bar, then four +2%
// bars on doubled volume.
func continuousRiseBars() []series.Bar {
	closes := []float64{10, 10, 10, 10, 10, 9.8}
	bars := make([]series.Bar, 0, 10)
	for i, c := range closes {
		bars = append(bars, bar(i, c, 100))
	}
	close := 9.8
	for i := 6; i < 10; i++ {
		close *= 1.02
		bars = append(bars, bar(i, close, 200))
	}
	return bars
}

// vReversalBars follows the close path 10,9,8,7,8.5,9.5,10.5: a 30% decline
// into the bottom and a 50% three-day rebound.
func vReversalBars() []series.Bar {
	closes := []float64{10, 9, 8, 7, 8.5, 9.5, 10.5}
	bars := make([]series.Bar, len(closes))
	for i, c := range closes {
		bars[i] = bar(i, c, 100)
	}
	return bars
}
