package sizer

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
)

func day(d int) time.Time {
	return time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// closedPosition builds a position entered at 100 on the given day and
// exited at the given price a few days later.
func closedPosition(t *testing.T, entryDay int, exitPrice float64) *position.Position {
	t.Helper()
	p := position.NewPosition(position.Spec{
		Capital:           decimal.NewFromInt(10000),
		Direction:         domain.DirectionLong,
		FixedPositionSize: true,
	}, day(entryDay))

	if _, err := p.EnterMarket(decimal.NewFromInt(100), day(entryDay+1)); err != nil {
		t.Fatal(err)
	}
	mid := 100 + (exitPrice-100)/2
	if _, err := p.Update(decimal.NewFromFloat(mid), day(entryDay+2)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.ExitMarket(decimal.NewFromFloat(exitPrice), day(entryDay+3)); err != nil {
		t.Fatal(err)
	}
	return p
}

// history builds a mixed win/loss position history spread over a year.
func history(t *testing.T) []*position.Position {
	t.Helper()
	exitPrices := []float64{104, 97, 106, 95, 103, 98, 108, 96, 102, 99, 105, 94}
	positions := make([]*position.Position, len(exitPrices))
	for i, exit := range exitPrices {
		positions[i] = closedPosition(t, i*20, exit)
	}
	return positions
}

func testOpts() Opts {
	o := DefaultOpts()
	o.NumOfSims = 200
	return o
}

func TestRunPublishesOutputs(t *testing.T) {
	s := New(15, 0.7, rand.New(rand.NewSource(1)))
	out, err := s.Run(history(t), 251, "inst-1", testOpts())
	if err != nil {
		t.Fatal(err)
	}

	safeF, ok := out[domain.SizerSafeF]
	if !ok || safeF <= 0 {
		t.Fatalf("safe-f = %v, want positive", safeF)
	}
	if out[domain.SizerCapitalFraction] != safeF || out[domain.SizerPersistentSafeF] != safeF {
		t.Fatal("capital fraction and persistent safe-f must mirror safe-f")
	}
	if _, ok := out[domain.SizerCAR25]; !ok {
		t.Fatal("car25 missing")
	}
	if _, ok := out[domain.SizerCAR75]; !ok {
		t.Fatal("car75 missing")
	}
	if out[domain.SizerCAR25] > out[domain.SizerCAR75] {
		t.Fatalf("car25 %v exceeds car75 %v", out[domain.SizerCAR25], out[domain.SizerCAR75])
	}
	if got := s.Data()["inst-1"][domain.SizerSafeF]; got != safeF {
		t.Fatal("published data does not match returned outputs")
	}
}

func TestRunReusesPersistentSafeF(t *testing.T) {
	opts := testOpts()
	opts.PersistentSafeF = map[string]float64{"inst-1": 0.42}

	s := New(15, 0.7, rand.New(rand.NewSource(1)))
	out, err := s.Run(history(t), 251, "inst-1", opts)
	if err != nil {
		t.Fatal(err)
	}
	if out[domain.SizerSafeF] != 0.42 {
		t.Fatalf("safe-f = %v, want persistent 0.42", out[domain.SizerSafeF])
	}
}

func TestRunPercentileThresholdMonotonic(t *testing.T) {
	// The same history and seed at two drawdown percentile thresholds:
	// raising the threshold must not lower the allowed fraction when the
	// tolerated max drawdown is fixed.
	positions := history(t)

	low := New(15, 0.5, rand.New(rand.NewSource(7)))
	outLow, err := low.Run(positions, 251, "inst-1", testOpts())
	if err != nil {
		t.Fatal(err)
	}

	high := New(15, 0.9, rand.New(rand.NewSource(7)))
	outHigh, err := high.Run(positions, 251, "inst-1", testOpts())
	if err != nil {
		t.Fatal(err)
	}

	if outHigh[domain.SizerSafeF] > outLow[domain.SizerSafeF] {
		t.Fatalf(
			"safe-f at 0.9 threshold = %v, at 0.5 = %v: deeper guarded drawdown must not raise the fraction",
			outHigh[domain.SizerSafeF], outLow[domain.SizerSafeF],
		)
	}
}

func TestRunRejectsEmptyHistory(t *testing.T) {
	s := New(15, 0.7, rand.New(rand.NewSource(1)))
	if _, err := s.Run(nil, 251, "inst-1", testOpts()); !errors.Is(err, domain.ErrEmptyData) {
		t.Fatalf("error = %v, want empty data", err)
	}
}

func TestRunDropsUnenteredTrailingPosition(t *testing.T) {
	positions := history(t)
	pending := position.NewPosition(position.Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionLong,
	}, day(300))
	positions = append(positions, pending)

	s := New(15, 0.7, rand.New(rand.NewSource(1)))
	if _, err := s.Run(positions, 251, "inst-1", testOpts()); err != nil {
		t.Fatal(err)
	}
}
