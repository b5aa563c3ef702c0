package metrics

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
)

// maxStoredCurves caps how many simulated equity curves the result retains.
const maxStoredCurves = 50

// MonteCarloResult is the summary of a resampling run: distributions of
// terminal equity and drawdown plus the pessimistic and optimistic compound
// annual returns. EquityCurves holds a capped sample of the simulated paths.
type MonteCarloResult struct {
	FinalEquities []float64
	MaxDrawdowns  []float64
	CAR25         float64
	CAR75         float64
	EquityCurves  [][]float64
}

// RunMonteCarlo reorders the closed-position history numOfSims times and
// replays each sample through a position manager, scaling the forecast
// horizon by dataFraction. A nil rng seeds a fresh one.
func RunMonteCarlo(
	positions []*position.Position, numOfPeriods int,
	startCapital, capitalFraction, dataFraction float64,
	numOfSims int, rng *rand.Rand,
) (MonteCarloResult, error) {
	if len(positions) == 0 || numOfPeriods == 0 {
		return MonteCarloResult{}, fmt.Errorf("%w: no closed positions to resample", domain.ErrEmptyData)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	simPeriods := int(float64(numOfPeriods)*dataFraction + 0.5)
	sampleSize := int(float64(len(positions))*dataFraction + 0.5)
	if sampleSize > len(positions) {
		sampleSize = len(positions)
	}

	res := MonteCarloResult{
		FinalEquities: make([]float64, 0, numOfSims),
		MaxDrawdowns:  make([]float64, 0, numOfSims),
	}
	for range numOfSims {
		pm := NewPositionManager("montecarlo", simPeriods, startCapital, capitalFraction)

		shuffled := make([]*position.Position, len(positions))
		copy(shuffled, positions)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		sample := shuffled[:sampleSize]

		if err := pm.GeneratePositions(func(_ decimal.Decimal) ([]*position.Position, error) {
			return sample, nil
		}, nil); err != nil {
			return MonteCarloResult{}, err
		}

		eq := pm.Metrics().EquityCurve()
		res.FinalEquities = append(res.FinalEquities, eq[len(eq)-1])
		res.MaxDrawdowns = append(res.MaxDrawdowns, pm.Metrics().MaxDrawdown())
		if len(res.EquityCurves) < maxStoredCurves {
			curve := make([]float64, len(eq))
			copy(curve, eq)
			res.EquityCurves = append(res.EquityCurves, curve)
		}
	}

	sorted := make([]float64, len(res.FinalEquities))
	copy(sorted, res.FinalEquities)
	sort.Float64s(sorted)
	res.CAR25 = CAGRPct(startCapital, sorted[int(float64(len(sorted))*0.25)], simPeriods)
	res.CAR75 = CAGRPct(startCapital, sorted[int(float64(len(sorted))*0.75)], simPeriods)
	return res, nil
}
