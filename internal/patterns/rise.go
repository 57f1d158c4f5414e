package patterns

import (
	"fmt"
	"math"

	"stock-pattern-engine/internal/series"
)

// matchContinuousRise detects an unbroken streak of rising bars ending at
// the most recent bar.
//
// The walk runs backward from the last bar over at most 10 bars and stops at
// the first bar whose daily change misses the threshold. If that breaking
// bar fell more than 1%, the streak is flagged as ended by a pullback, which
// disqualifies the match when the definition requires no_pullback (the
// default). Volume corroboration: at least 60% of streak bars must clear the
// daily volume-ratio floor, and when a max_volume_ratio parameter is present
// the streak's single largest ratio must reach it.
func matchContinuousRise(s *series.Series, params Parameters) (string, bool) {
	lastIdx := s.LastIndex()
	if lastIdx < 5 {
		return "", false
	}

	dailyRiseMin, _ := params.min("daily_rise")
	continuousDaysMin, _ := params.min("continuous_days")
	totalRiseMin, _ := params.min("total_rise")
	dailyVolumeMin, _ := params.min("daily_volume_ratio")

	streakDays := 0
	totalRise := 0.0
	hasPullback := false
	var volumeRatios []float64

	lower := lastIdx - 10
	if lower < 0 {
		lower = 0
	}
	for i := lastIdx; i > lower; i-- {
		pct := s.PctChange[i]
		// An undefined change breaks the streak without flagging a pullback
		if math.IsNaN(pct) || pct < dailyRiseMin {
			if pct < -0.01 {
				hasPullback = true
			}
			break
		}

		streakDays++
		totalRise += pct
		volumeRatios = append(volumeRatios, s.VolumeRatio[i])
	}

	if float64(streakDays) < continuousDaysMin {
		return "", false
	}
	if totalRise < totalRiseMin {
		return "", false
	}
	if params.flag("no_pullback", true) && hasPullback {
		return "", false
	}

	if len(volumeRatios) > 0 {
		daysAbove := 0
		maxRatio := math.Inf(-1)
		for _, v := range volumeRatios {
			if v >= dailyVolumeMin {
				daysAbove++
			}
			if !math.IsNaN(v) && v > maxRatio {
				maxRatio = v
			}
		}

		if float64(daysAbove) < float64(len(volumeRatios))*0.6 {
			return "", false
		}

		if maxRatioMin, ok := params.min("max_volume_ratio"); ok {
			if math.IsInf(maxRatio, -1) || maxRatio < maxRatioMin {
				return "", false
			}
		}
	}

	return fmt.Sprintf("%d consecutive rising days on elevated volume", streakDays), true
}
