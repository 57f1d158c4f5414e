package patterns

import (
	"fmt"
	"math"

	"stock-pattern-engine/internal/series"
)

// matchVReversal detects a decline into a global-minimum close followed by
// a rebound into the most recent bar.
//
// The bottom must leave room on both sides: at least one bar of pre-decline
// and more than one bar of rebound. The pre-bottom peak is the highest close
// up to and including the bottom. rebound_days has no required upper bound;
// a rebound_days max and a rebound_volume_ratio min are enforced only when
// the definition carries them, which is how the stricter legacy variant is
// expressed as configuration.
func matchVReversal(s *series.Series, params Parameters) (string, bool) {
	lastIdx := s.LastIndex()
	if lastIdx < 4 {
		return "", false
	}

	declineMin, _ := params.min("decline_amplitude")
	reboundMin, _ := params.min("rebound_rise")
	reboundDaysMin, _ := params.min("rebound_days")

	bottomIdx := 0
	for i := 1; i <= lastIdx; i++ {
		if s.Bars[i].Close < s.Bars[bottomIdx].Close {
			bottomIdx = i
		}
	}

	if bottomIdx >= lastIdx-1 || bottomIdx < 1 {
		return "", false
	}

	peakIdx := 0
	for i := 1; i <= bottomIdx; i++ {
		if s.Bars[i].Close > s.Bars[peakIdx].Close {
			peakIdx = i
		}
	}

	peakClose := s.Bars[peakIdx].Close
	bottomClose := s.Bars[bottomIdx].Close
	if peakClose <= 0 || bottomClose <= 0 {
		return "", false
	}

	decline := (peakClose - bottomClose) / peakClose
	if decline < declineMin {
		return "", false
	}

	rebound := (s.LastClose() - bottomClose) / bottomClose
	if rebound < reboundMin {
		return "", false
	}

	reboundDays := lastIdx - bottomIdx
	if float64(reboundDays) < reboundDaysMin {
		return "", false
	}
	if maxDays, ok := params.max("rebound_days"); ok && float64(reboundDays) > maxDays {
		return "", false
	}

	if volMin, ok := params.min("rebound_volume_ratio"); ok {
		if !reboundVolumeConfirms(s, bottomIdx, volMin) {
			return "", false
		}
	}

	return fmt.Sprintf("V-reversal: %.1f%% decline then %.1f%% rebound over %d days",
		decline*100, rebound*100, reboundDays), true
}

// reboundVolumeConfirms checks the mean volume ratio over the rebound
// segment against a floor. Undefined ratios are excluded; an all-undefined
// segment fails the check.
func reboundVolumeConfirms(s *series.Series, bottomIdx int, floor float64) bool {
	var sum float64
	count := 0
	for i := bottomIdx + 1; i <= s.LastIndex(); i++ {
		if !math.IsNaN(s.VolumeRatio[i]) {
			sum += s.VolumeRatio[i]
			count++
		}
	}
	if count == 0 {
		return false
	}
	return sum/float64(count) >= floor
}
