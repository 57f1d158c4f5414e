package patterns

import (
	"fmt"
	"math"
	"strings"

	"stock-pattern-engine/internal/series"
)

// matchAITemplate evaluates an ai_discovered pattern. These definitions are
// produced from clusters of unexplained rise samples, so every check is an
// optional parameter; an absent parameter is no constraint. Supported
// parameters:
//
//	volume_trend.min          second-half/first-half mean volume ratio floor
//	breakout_volume_ratio.min breakout bar volume-ratio floor (last 3 bars)
//	breakout_rise.min         breakout bar daily-rise floor (last 3 bars)
//	post_breakout_range.max   price-range cap over bars after the breakout
//	momentum.min / .max       (last close - first close) / first close bounds
//	volatility.max            std(close)/mean(close) cap
func matchAITemplate(s *series.Series, params Parameters) (string, bool) {
	var passed []string

	if floor, ok := params.min("volume_trend"); ok {
		trend, defined := volumeTrend(s)
		if !defined || trend < floor {
			return "", false
		}
		passed = append(passed, fmt.Sprintf("volume trend %.2f", trend))
	}

	breakoutIdx := -1
	volFloor, hasVol := params.min("breakout_volume_ratio")
	riseFloor, hasRise := params.min("breakout_rise")
	if hasVol || hasRise {
		lastIdx := s.LastIndex()
		lower := lastIdx - 3
		if lower < 0 {
			lower = 0
		}
		for i := lastIdx; i > lower; i-- {
			if hasVol && !(s.VolumeRatio[i] >= volFloor) {
				continue
			}
			if hasRise && !(s.PctChange[i] >= riseFloor) {
				continue
			}
			breakoutIdx = i
			break
		}
		if breakoutIdx == -1 {
			return "", false
		}
		passed = append(passed, fmt.Sprintf("breakout at bar %d", breakoutIdx))
	}

	if cap, ok := params.max("post_breakout_range"); ok && breakoutIdx >= 0 && breakoutIdx < s.LastIndex() {
		if !rangeWithin(s, breakoutIdx+1, s.Len(), cap) {
			return "", false
		}
		passed = append(passed, "post-breakout range held")
	}

	first := s.Bars[0].Close
	if first > 0 {
		momentum := (s.LastClose() - first) / first
		if floor, ok := params.min("momentum"); ok && momentum < floor {
			return "", false
		}
		if cap, ok := params.max("momentum"); ok && momentum > cap {
			return "", false
		}
		if _, hasMin := params.min("momentum"); hasMin {
			passed = append(passed, fmt.Sprintf("momentum %.3f", momentum))
		}
	} else if _, ok := params.min("momentum"); ok {
		return "", false
	}

	if cap, ok := params.max("volatility"); ok {
		vol, defined := closeVolatility(s)
		if !defined || vol > cap {
			return "", false
		}
		passed = append(passed, fmt.Sprintf("volatility %.3f", vol))
	}

	if len(passed) == 0 {
		passed = append(passed, "unconstrained template")
	}
	return strings.Join(passed, ", "), true
}

// volumeTrend is the ratio of mean volume in the second half of the series
// to the first half. Undefined when the first-half mean is zero.
func volumeTrend(s *series.Series) (float64, bool) {
	mid := s.Len() / 2
	if mid == 0 {
		return 0, false
	}

	var firstSum, secondSum float64
	for i := 0; i < mid; i++ {
		firstSum += s.Bars[i].Volume
	}
	for i := mid; i < s.Len(); i++ {
		secondSum += s.Bars[i].Volume
	}

	firstMean := firstSum / float64(mid)
	if firstMean <= 0 {
		return 0, false
	}
	secondMean := secondSum / float64(s.Len()-mid)
	return secondMean / firstMean, true
}

// rangeWithin checks (max high - min low) / mean close <= cap over [start, end).
func rangeWithin(s *series.Series, start, end int, cap float64) bool {
	if start >= end {
		return true
	}
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
	return (maxHigh-minLow)/meanClose <= cap
}

// closeVolatility is std(close)/mean(close). Undefined for a zero mean.
func closeVolatility(s *series.Series) (float64, bool) {
	n := float64(s.Len())
	var sum float64
	for _, b := range s.Bars {
		sum += b.Close
	}
	mean := sum / n
	if mean <= 0 {
		return 0, false
	}

	var sq float64
	for _, b := range s.Bars {
		d := b.Close - mean
		sq += d * d
	}
	return math.Sqrt(sq/n) / mean, true
}
