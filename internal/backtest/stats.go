package backtest

import (
	"math"
	"sort"
)

// PatternSummary is the per-pattern aggregate computed at the end of a
// validation run. Recomputed fresh every run; prior summaries are replaced
// wholesale.
type PatternSummary struct {
	PatternName       string  `json:"pattern_name"`
	TotalMatches      int     `json:"total_matches"`
	SuccessfulMatches int     `json:"successful_matches"`

	SuccessRate     float64 `json:"success_rate"`
	SuccessRate1Pct float64 `json:"success_rate_1pct"`
	SuccessRate3Pct float64 `json:"success_rate_3pct"`
	SuccessRate5Pct float64 `json:"success_rate_5pct"`
	PositiveRate    float64 `json:"positive_rate"`

	AvgRise    float64 `json:"avg_rise"`
	MedianRise float64 `json:"median_rise"`
	StdRise    float64 `json:"std_rise"`
	MaxRise    float64 `json:"max_rise"`
	MinRise    float64 `json:"min_rise"`

	WinRate         float64 `json:"win_rate"`
	WinCount        int     `json:"win_count"`
	LossCount       int     `json:"loss_count"`
	AvgProfit       float64 `json:"avg_profit"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitLossRatio float64 `json:"profit_loss_ratio"`
	ExpectedReturn  float64 `json:"expected_return"`

	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`

	Percentile25 float64 `json:"percentile_25"`
	Percentile75 float64 `json:"percentile_75"`

	IsValid bool `json:"is_valid"`
}

// summarize computes the full statistic set over the match-ordered return
// sequence of one pattern. Returns arrive in discovery order, which is the
// order the drawdown walk uses.
func summarize(name string, returns []float64, thresholds []float64, primary, minSuccessRate float64) PatternSummary {
	total := len(returns)
	sum := PatternSummary{PatternName: name, TotalMatches: total}
	if total == 0 {
		return sum
	}

	countAt := func(threshold float64) int {
		count := 0
		for _, r := range returns {
			if r >= threshold {
				count++
			}
		}
		return count
	}
	rateAt := func(threshold float64) float64 {
		return float64(countAt(threshold)) / float64(total)
	}

	rates := make([]float64, len(thresholds))
	for i, th := range thresholds {
		rates[i] = rateAt(th)
	}
	if len(rates) > 0 {
		sum.SuccessRate1Pct = rates[0]
	}
	if len(rates) > 1 {
		sum.SuccessRate3Pct = rates[1]
	}
	if len(rates) > 2 {
		sum.SuccessRate5Pct = rates[2]
	}
	sum.SuccessfulMatches = countAt(primary)
	primaryRate := rateAt(primary)
	sum.SuccessRate = primaryRate

	var winSum, lossSum float64
	for _, r := range returns {
		switch {
		case r > 0:
			sum.WinCount++
			winSum += r
		case r < 0:
			sum.LossCount++
			lossSum += r
		}
	}
	sum.PositiveRate = float64(sum.WinCount) / float64(total)
	sum.WinRate = sum.PositiveRate
	if sum.WinCount > 0 {
		sum.AvgProfit = winSum / float64(sum.WinCount)
	}
	if sum.LossCount > 0 {
		sum.AvgLoss = lossSum / float64(sum.LossCount)
	}
	if sum.AvgLoss != 0 {
		sum.ProfitLossRatio = math.Abs(sum.AvgProfit / sum.AvgLoss)
	}
	sum.ExpectedReturn = sum.WinRate*sum.AvgProfit + (1-sum.WinRate)*sum.AvgLoss

	sum.AvgRise = mean(returns)
	sum.MedianRise = median(returns)
	sum.StdRise = stdDev(returns)
	sum.MaxRise = returns[0]
	sum.MinRise = returns[0]
	for _, r := range returns[1:] {
		if r > sum.MaxRise {
			sum.MaxRise = r
		}
		if r < sum.MinRise {
			sum.MinRise = r
		}
	}

	sum.MaxDrawdown = maxDrawdown(returns)
	if sum.StdRise != 0 {
		sum.SharpeRatio = sum.AvgRise / sum.StdRise
	}
	sum.Percentile25 = percentile(returns, 25)
	sum.Percentile75 = percentile(returns, 75)

	sum.IsValid = primaryRate >= minSuccessRate
	return sum
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	return percentile(xs, 50)
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// percentile uses linear interpolation between closest ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// maxDrawdown is the deepest drop of the cumulative return sum below its
// running peak. The sequence is event-ordered, not time-ordered.
func maxDrawdown(returns []float64) float64 {
	var cumulative, runningMax, worst float64
	for i, r := range returns {
		cumulative += r
		if i == 0 || cumulative > runningMax {
			runningMax = cumulative
		}
		if dd := cumulative - runningMax; dd < worst {
			worst = dd
		}
	}
	return worst
}
