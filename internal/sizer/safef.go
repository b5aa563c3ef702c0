// Package sizer chooses the capital fraction a strategy may deploy per
// instrument by Monte-Carlo resampling its closed position history against
// a drawdown tolerance.
package sizer

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/metrics"
	"tradesys/internal/position"
)

// Outputs holds one instrument's sizing results keyed by sizer field.
type Outputs map[domain.Field]float64

// Opts carries the tunable parameters of a sizing run.
type Opts struct {
	// AvgYearlyPeriods is the number of trading periods per year.
	AvgYearlyPeriods float64
	// YearsToForecast is the horizon the resampling projects over.
	YearsToForecast float64
	// Capital is the starting capital each simulation replays with.
	Capital float64
	// NumOfSims is the number of Monte-Carlo reorderings.
	NumOfSims int
	// PersistentSafeF carries previously established fractions keyed by
	// instrument; an existing entry is reused instead of recomputed.
	PersistentSafeF map[string]float64
}

// DefaultOpts returns the standard sizing parameters.
func DefaultOpts() Opts {
	return Opts{
		AvgYearlyPeriods: 251,
		YearsToForecast:  2,
		Capital:          10000,
		NumOfSims:        2500,
	}
}

// SafeF sizes positions by limiting the simulated max drawdown at a chosen
// percentile to the tolerated percentage.
type SafeF struct {
	toleratedPctMaxDrawdown  float64
	maxDDPercentileThreshold float64
	rng                      *rand.Rand

	data map[string]Outputs
}

// New creates a SafeF sizer. A nil rng seeds a fresh one; reproducibility
// across runs is not promised.
func New(toleratedPctMaxDrawdown, maxDDPercentileThreshold float64, rng *rand.Rand) *SafeF {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SafeF{
		toleratedPctMaxDrawdown:  toleratedPctMaxDrawdown,
		maxDDPercentileThreshold: maxDDPercentileThreshold,
		rng:                      rng,
		data:                     map[string]Outputs{},
	}
}

// MetricKey names the output field downstream code feeds back as the
// capital fraction.
func (s *SafeF) MetricKey() domain.Field { return domain.SizerSafeF }

// Data returns the accumulated per-instrument outputs.
func (s *SafeF) Data() map[string]Outputs { return s.data }

// Run resamples the closed positions and publishes the instrument's safe
// capital fraction together with the pessimistic and optimistic compound
// annual returns. A history too short to forecast from yields no outputs.
func (s *SafeF) Run(
	positions []*position.Position, numOfPeriods int, instrumentID string, opts Opts,
) (Outputs, error) {
	if len(positions) > 0 && positions[len(positions)-1].EntryDT().IsZero() {
		positions = positions[:len(positions)-1]
	}
	if len(positions) == 0 || numOfPeriods == 0 {
		return nil, fmt.Errorf("%w: no closed positions to size %s with", domain.ErrEmptyData, instrumentID)
	}

	years := float64(numOfPeriods) / opts.AvgYearlyPeriods
	avgYearlyPositions := float64(len(positions)) / years
	forecastPositions := avgYearlyPositions * opts.YearsToForecast * 1.5
	if forecastPositions == 0 {
		return nil, fmt.Errorf("%w: no positions to forecast for %s", domain.ErrEmptyData, instrumentID)
	}
	dataFraction := (avgYearlyPositions * opts.YearsToForecast) / forecastPositions

	sorted := make([]*position.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EntryDT().Before(sorted[j].EntryDT())
	})

	capitalFraction := 1.0
	persistent, reuse := opts.PersistentSafeF[instrumentID]
	if reuse {
		capitalFraction = persistent
	}

	sim := s.simulate(sorted, numOfPeriods, instrumentID, capitalFraction, dataFraction, opts)

	sort.Float64s(sim.maxDrawdowns)
	idx := int(float64(len(sim.maxDrawdowns)) * s.maxDDPercentileThreshold)
	if idx >= len(sim.maxDrawdowns) {
		idx = len(sim.maxDrawdowns) - 1
	}
	ddAtThreshold := sim.maxDrawdowns[idx]
	if ddAtThreshold < 1 {
		ddAtThreshold = 1
	}

	safeF := s.toleratedPctMaxDrawdown / ddAtThreshold
	if reuse {
		safeF = persistent
	}

	out := Outputs{
		domain.SizerSafeF:           safeF,
		domain.SizerCapitalFraction: safeF,
		domain.SizerPersistentSafeF: safeF,
		domain.SizerCAR25:           sim.car25,
		domain.SizerCAR75:           sim.car75,
	}
	s.data[instrumentID] = out
	return out, nil
}

type simResult struct {
	maxDrawdowns []float64
	car25        float64
	car75        float64
}

// simulate reorders the position history numOfSims times, replays each
// sample through a position manager and collects the distribution of final
// equities and max drawdowns.
func (s *SafeF) simulate(
	positions []*position.Position, numOfPeriods int, instrumentID string,
	capitalFraction, dataFraction float64, opts Opts,
) simResult {
	simPeriods := int(float64(numOfPeriods)*dataFraction + 0.5)
	sampleSize := int(float64(len(positions))*dataFraction + 0.5)
	if sampleSize > len(positions) {
		sampleSize = len(positions)
	}

	finalEquities := make([]float64, 0, opts.NumOfSims)
	maxDrawdowns := make([]float64, 0, opts.NumOfSims)

	for range opts.NumOfSims {
		pm := metrics.NewPositionManager(instrumentID, simPeriods, opts.Capital, capitalFraction)

		shuffled := make([]*position.Position, len(positions))
		copy(shuffled, positions)
		s.rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		sample := shuffled[:sampleSize]

		// The generator ignores the allocated capital: the sampled
		// positions were generated with their own capital already.
		_ = pm.GeneratePositions(func(_ decimal.Decimal) ([]*position.Position, error) {
			return sample, nil
		}, nil)

		eq := pm.Metrics().EquityCurve()
		finalEquities = append(finalEquities, eq[len(eq)-1])
		maxDrawdowns = append(maxDrawdowns, pm.Metrics().MaxDrawdown())
	}

	sort.Float64s(finalEquities)
	car25 := metrics.CAGRPct(opts.Capital, finalEquities[int(float64(len(finalEquities))*0.25)], simPeriods)
	car75 := metrics.CAGRPct(opts.Capital, finalEquities[int(float64(len(finalEquities))*0.75)], simPeriods)

	return simResult{maxDrawdowns: maxDrawdowns, car25: car25, car75: car75}
}
