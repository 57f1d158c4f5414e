package patterns

import (
	"fmt"
	"math"

	"stock-pattern-engine/internal/series"
)

// matchConsolidationBreakout detects a tight low-volume trading range
// immediately followed by a high-volume breakout bar.
//
// The breakout bar may be any of the most recent 3 bars, scanned newest to
// oldest; the first bar clearing both the volume-ratio and rise thresholds
// wins. Consolidation windows are then tried from the minimum length upward
// directly before that bar, shortest first.
func matchConsolidationBreakout(s *series.Series, params Parameters) (string, bool) {
	lastIdx := s.LastIndex()
	if lastIdx < 5 {
		return "", false
	}

	breakoutVolMin, _ := params.min("breakout_volume_ratio")
	breakoutRiseMin, _ := params.min("breakout_rise")
	daysMin, _ := params.min("consolidation_days")
	daysMax, _ := params.max("consolidation_days")
	priceRangeMax, _ := params.max("price_range_during_consolidation")
	volShrinkMax, _ := params.max("volume_shrink_ratio")

	breakoutIdx := -1
	lower := lastIdx - 3
	if lower < 0 {
		lower = 0
	}
	for i := lastIdx; i > lower; i-- {
		if s.VolumeRatio[i] >= breakoutVolMin && s.PctChange[i] >= breakoutRiseMin {
			breakoutIdx = i
			break
		}
	}
	if breakoutIdx == -1 {
		return "", false
	}

	maxDays := int(daysMax)
	if breakoutIdx-1 < maxDays {
		maxDays = breakoutIdx - 1
	}
	for days := int(daysMin); days <= maxDays; days++ {
		start := breakoutIdx - days
		if start < 0 {
			break
		}

		if !windowIsConsolidation(s, start, breakoutIdx, priceRangeMax, volShrinkMax) {
			continue
		}

		return fmt.Sprintf("%d-day consolidation before volume breakout", days), true
	}

	return "", false
}

// windowIsConsolidation checks the price-range and volume-shrink thresholds
// over bars [start, end).
func windowIsConsolidation(s *series.Series, start, end int, priceRangeMax, volShrinkMax float64) bool {
	maxHigh := math.Inf(-1)
	minLow := math.Inf(1)
	var closeSum float64
	for i := start; i < end; i++ {
		if s.Bars[i].High > maxHigh {
			maxHigh = s.Bars[i].High
		}
		if s.Bars[i].Low < minLow {
			minLow = s.Bars[i].Low
		}
		closeSum += s.Bars[i].Close
	}

	meanClose := closeSum / float64(end-start)
	if meanClose <= 0 {
		return false
	}
	if (maxHigh-minLow)/meanClose > priceRangeMax {
		return false
	}

	// Mean volume ratio over the window, skipping rows where the trailing
	// average is still undefined. An all-undefined window disqualifies.
	var ratioSum float64
	ratioCount := 0
	for i := start; i < end; i++ {
		if !math.IsNaN(s.VolumeRatio[i]) {
			ratioSum += s.VolumeRatio[i]
			ratioCount++
		}
	}
	if ratioCount == 0 {
		return false
	}

	return ratioSum/float64(ratioCount) <= volShrinkMax
}
