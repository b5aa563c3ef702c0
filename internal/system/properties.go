// Package system orchestrates trading strategies: per-instrument backtests
// and live steps, position sizing passes, and the processor/handler layer
// that drives many strategies against a shared persistence sink.
package system

import (
	"fmt"

	"tradesys/internal/domain"
	"tradesys/internal/session"
	"tradesys/internal/sizer"
)

// PreprocessFunc derives the feature columns a strategy's logic reads. It is
// applied to every instrument frame before any stepping begins.
type PreprocessFunc func(frame *domain.Frame) error

// Properties is the immutable definition of one trading strategy: its name,
// instruments, logic, sizing, and run parameters. Build it once and hand it
// to a Processor.
type Properties struct {
	SystemName   string
	RequiredRuns int
	Instruments  []domain.Instrument

	Preprocess PreprocessFunc
	Entry      session.EntryFunc
	Exit       session.ExitFunc
	EntryArgs  session.Args
	ExitArgs   session.Args

	StartCapital      float64
	CommissionPct     float64
	FixedPositionSize bool

	Sizer     *sizer.SafeF
	SizerOpts sizer.Opts

	// PosListSliceYearsEst scales the rolling window the pooled position
	// list is sliced to before persisting.
	PosListSliceYearsEst float64
}

// Validate reports whether the properties describe a runnable strategy.
// Failure here is fatal for the processor that owns them.
func (p *Properties) Validate() error {
	switch {
	case p.SystemName == "":
		return fmt.Errorf("%w: properties need a system name", domain.ErrInvariant)
	case p.RequiredRuns < 1:
		return fmt.Errorf("%w: %s needs at least one run", domain.ErrInvariant, p.SystemName)
	case len(p.Instruments) == 0:
		return fmt.Errorf("%w: %s has no instruments", domain.ErrInvariant, p.SystemName)
	case p.Entry == nil || p.Exit == nil:
		return fmt.Errorf("%w: %s is missing entry or exit logic", domain.ErrInvariant, p.SystemName)
	case p.StartCapital <= 0:
		return fmt.Errorf("%w: %s needs positive start capital", domain.ErrInvariant, p.SystemName)
	}
	return nil
}
