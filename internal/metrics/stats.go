package metrics

import (
	"math"
	"sort"
)

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return sum(xs) / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// std is the population standard deviation.
func std(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	min := xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
	}
	return min
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	return max
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Percentile returns the linearly interpolated p-quantile of xs, with p in
// [0, 1].
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// MaxDrawdownPct returns the maximum peak-to-trough drawdown of the series
// as a positive percentage.
func MaxDrawdownPct(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	maxDrawdown := 0.0
	peak := series[0] - 1
	for i, v := range series {
		if v > peak {
			peak = v
			trough := minOf(series[i:])
			drawdown := (trough - peak) / peak
			if drawdown < maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return math.Abs(maxDrawdown * 100)
}

// AnnualisedSharpe computes the annualised sharpe ratio of a series of
// per-period fractional returns against the assumed risk free rate.
func AnnualisedSharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreeRate/yearlyPeriods
	}
	sd := std(excess)
	if sd == 0 {
		return math.NaN()
	}
	return math.Sqrt(yearlyPeriods) * mean(excess) / sd
}

// CAGRPct computes the compound annual growth rate in percent between two
// values over the given number of periods of daily data.
func CAGRPct(initial, final float64, periods int) float64 {
	years := float64(periods) / yearlyPeriods
	if years == 0 || initial == 0 {
		return 0
	}
	cagr := math.Pow(final/initial, 1/years) - 1
	if math.IsNaN(cagr) {
		return 0
	}
	return cagr * 100
}
