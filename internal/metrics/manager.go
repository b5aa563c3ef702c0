package metrics

import (
	"github.com/shopspring/decimal"

	"tradesys/internal/position"
)

// GenerateFunc produces positions from the capital the manager allocates.
type GenerateFunc func(capital decimal.Decimal) ([]*position.Position, error)

// PositionManager allocates a fraction of the starting capital to a
// position-generating function and aggregates the outcome into Metrics.
type PositionManager struct {
	identifier        string
	numTestingPeriods int
	startCapital      float64
	capitalFraction   float64
	safeFCapital      float64
	uninvestedCapital float64

	metrics *Metrics
}

// NewPositionManager creates a manager for the identified instrument. The
// capital fraction scales the starting capital available for entries; the
// remainder stays uninvested.
func NewPositionManager(
	identifier string, numTestingPeriods int,
	startCapital, capitalFraction float64,
) *PositionManager {
	safeF := startCapital * capitalFraction
	return &PositionManager{
		identifier:        identifier,
		numTestingPeriods: numTestingPeriods,
		startCapital:      startCapital,
		capitalFraction:   capitalFraction,
		safeFCapital:      safeF,
		uninvestedCapital: startCapital - safeF,
	}
}

func (pm *PositionManager) Identifier() string         { return pm.identifier }
func (pm *PositionManager) StartCapital() float64      { return pm.startCapital }
func (pm *PositionManager) SafeFCapital() float64      { return pm.safeFCapital }
func (pm *PositionManager) UninvestedCapital() float64 { return pm.uninvestedCapital }

// Metrics returns the aggregated metrics, or nil before any positions were
// generated.
func (pm *PositionManager) Metrics() *Metrics { return pm.metrics }

// Positions returns the generated positions, or nil before generation.
func (pm *PositionManager) Positions() []*position.Position {
	if pm.metrics == nil {
		return nil
	}
	return pm.metrics.Positions()
}

// GeneratePositions invokes the generating function with the allocated
// capital and calculates metrics over the result. The optional underlying
// price series feeds the benchmark figures.
func (pm *PositionManager) GeneratePositions(generate GenerateFunc, underlying []float64) error {
	positions, err := generate(decimal.NewFromFloat(pm.safeFCapital))
	if err != nil {
		return err
	}
	pm.metrics = New(pm.identifier, pm.startCapital, pm.numTestingPeriods)
	pm.metrics.Calculate(positions, underlying)
	return nil
}
