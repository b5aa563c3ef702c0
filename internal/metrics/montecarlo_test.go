package metrics

import (
	"errors"
	"math/rand"
	"testing"

	"tradesys/internal/domain"
	"tradesys/internal/position"
)

func TestRunMonteCarloEmptyData(t *testing.T) {
	if _, err := RunMonteCarlo(nil, 100, 10000, 1, 1, 10, nil); !errors.Is(err, domain.ErrEmptyData) {
		t.Errorf("no positions: err = %v, want ErrEmptyData", err)
	}
	positions := []*position.Position{
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 101, 102}),
	}
	if _, err := RunMonteCarlo(positions, 0, 10000, 1, 1, 10, nil); !errors.Is(err, domain.ErrEmptyData) {
		t.Errorf("zero periods: err = %v, want ErrEmptyData", err)
	}
}

func TestRunMonteCarloDistributions(t *testing.T) {
	positions := []*position.Position{
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 102, 104}),
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 99, 98}),
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 101, 103}),
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 98, 97}),
	}
	rng := rand.New(rand.NewSource(7))

	const sims = 40
	res, err := RunMonteCarlo(positions, 200, 10000, 1, 0.5, sims, rng)
	if err != nil {
		t.Fatalf("RunMonteCarlo: %v", err)
	}
	if len(res.FinalEquities) != sims || len(res.MaxDrawdowns) != sims {
		t.Fatalf("got %d equities and %d drawdowns, want %d each",
			len(res.FinalEquities), len(res.MaxDrawdowns), sims)
	}
	if len(res.EquityCurves) != sims {
		t.Errorf("stored %d curves, want all %d below the cap", len(res.EquityCurves), sims)
	}
	for _, e := range res.FinalEquities {
		if e <= 0 {
			t.Fatalf("non-positive final equity %v", e)
		}
	}
	for _, dd := range res.MaxDrawdowns {
		if dd < 0 || dd > 100 {
			t.Fatalf("max drawdown %v outside [0, 100]", dd)
		}
	}
	// The pessimistic annual return never beats the optimistic one.
	if res.CAR25 > res.CAR75 {
		t.Errorf("CAR25 %v > CAR75 %v", res.CAR25, res.CAR75)
	}
}

func TestRunMonteCarloCurveCap(t *testing.T) {
	positions := []*position.Position{
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 101, 102}),
		closedPosition(t, 10000, domain.DirectionLong, []float64{100, 99, 98}),
	}
	rng := rand.New(rand.NewSource(1))
	res, err := RunMonteCarlo(positions, 100, 10000, 1, 1, maxStoredCurves+20, rng)
	if err != nil {
		t.Fatalf("RunMonteCarlo: %v", err)
	}
	if len(res.EquityCurves) != maxStoredCurves {
		t.Errorf("stored %d curves, want the cap %d", len(res.EquityCurves), maxStoredCurves)
	}
}
