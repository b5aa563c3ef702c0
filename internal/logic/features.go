package logic

import (
	"fmt"
	"math"

	"tradesys/internal/domain"
)

// Feature column names the builtin logic implementations read.
const (
	FeatureRSI = "rsi"
	FeatureATR = "atr"
	FeatureCRS = "crs"
)

// SMA returns the simple moving average of values over the given period,
// NaN-padded for the warm-up bars.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || period > len(values) {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RSI returns the Wilder-smoothed relative strength index of the close
// series, NaN-padded for the warm-up bars.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR returns the Wilder-smoothed average true range, NaN-padded for the
// warm-up bars.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	tr := make([]float64, len(closes))
	tr[0] = highs[0] - lows[0]
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)
	out[period] = atr

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		atr = (atr*(p-1) + tr[i]) / p
		out[i] = atr
	}
	return out
}

// ComparativeRelativeStrength returns the ratio of the close series to the
// benchmark close series, the strength of the instrument relative to its
// market.
func ComparativeRelativeStrength(closes, benchmark []float64) []float64 {
	out := nanSlice(len(closes))
	for i := range closes {
		if i < len(benchmark) && benchmark[i] != 0 {
			out[i] = closes[i] / benchmark[i]
		}
	}
	return out
}

// RollingMax returns the maximum of the trailing period values at each
// index, NaN-padded for the warm-up bars.
func RollingMax(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		m := values[i]
		for j := i - period + 1; j < i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin returns the minimum of the trailing period values at each
// index, NaN-padded for the warm-up bars.
func RollingMin(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		m := values[i]
		for j := i - period + 1; j < i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// ApplyRSI computes the RSI feature column on the frame.
func ApplyRSI(frame *domain.Frame, period int) error {
	return frame.SetFeature(FeatureRSI, RSI(frame.Closes(), period))
}

// ApplyATR computes the ATR feature column on the frame.
func ApplyATR(frame *domain.Frame, period int) error {
	n := frame.Len()
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range n {
		b := frame.Bar(i)
		highs[i] = b.High
		lows[i] = b.Low
	}
	return frame.SetFeature(FeatureATR, ATR(highs, lows, frame.Closes(), period))
}

// ApplyCRS computes the comparative-relative-strength column against the
// frame's merged benchmark closes.
func ApplyCRS(frame *domain.Frame) error {
	benchmark, ok := frame.Feature(domain.BenchmarkColumn)
	if !ok {
		return fmt.Errorf("%w: frame has no benchmark column", domain.ErrInvariant)
	}
	return frame.SetFeature(FeatureCRS, ComparativeRelativeStrength(frame.Closes(), benchmark))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
