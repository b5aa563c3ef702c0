package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradesys/internal/domain"
	"tradesys/internal/signal"
	"tradesys/internal/store"
)

// Processor owns one strategy's properties and its latest preprocessed
// frames, and drives the required passes of trading system plus position
// sizer against the persistence store.
type Processor struct {
	props     *Properties
	frames    []*domain.Frame
	benchmark *domain.Frame
	store     store.TradingSystemStore
	log       *slog.Logger
}

// NewProcessor validates the properties, preprocesses every instrument
// frame, and returns a processor ready to run. A properties failure here is
// fatal for the strategy.
func NewProcessor(
	props *Properties, frames []*domain.Frame, benchmark *domain.Frame,
	st store.TradingSystemStore, log *slog.Logger,
) (*Processor, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if benchmark == nil || benchmark.Len() < 2 {
		return nil, fmt.Errorf("%w: %s needs a benchmark frame with at least two bars",
			domain.ErrEmptyData, props.SystemName)
	}
	if props.Preprocess != nil {
		kept := frames[:0]
		for _, frame := range frames {
			if err := props.Preprocess(frame); err != nil {
				log.Warn("instrument dropped in preprocessing",
					"system", props.SystemName, "symbol", frame.Symbol, "error", err)
				continue
			}
			kept = append(kept, frame)
		}
		frames = kept
	}
	return &Processor{
		props:     props,
		frames:    frames,
		benchmark: benchmark,
		store:     st,
		log:       log.With("system", props.SystemName),
	}, nil
}

// SystemName returns the name of the strategy this processor runs.
func (p *Processor) SystemName() string { return p.props.SystemName }

// CurrentDT is the benchmark's latest bar timestamp.
func (p *Processor) CurrentDT() time.Time { return p.benchmark.LastDT() }

// PenultDT is the benchmark's second-to-latest bar timestamp.
func (p *Processor) PenultDT() time.Time { return p.benchmark.PenultDT() }

// checkEndDatetime enforces the invariants a live run depends on: the
// benchmark must be current through endDT, the persisted marker must sit
// exactly one bar behind, and every instrument frame must agree with the
// benchmark's clock.
func (p *Processor) checkEndDatetime(endDT, lastProcessedDT time.Time) error {
	if !p.CurrentDT().Equal(endDT) {
		return fmt.Errorf("%w: benchmark current %s != end %s",
			domain.ErrDatetimeMismatch,
			p.CurrentDT().Format(time.RFC3339), endDT.Format(time.RFC3339))
	}
	if !lastProcessedDT.IsZero() && !lastProcessedDT.Equal(p.PenultDT()) {
		return fmt.Errorf("%w: last processed %s != penultimate %s",
			domain.ErrDatetimeMismatch,
			lastProcessedDT.Format(time.RFC3339), p.PenultDT().Format(time.RFC3339))
	}
	for _, frame := range p.frames {
		if !frame.LastDT().Equal(p.CurrentDT()) || !frame.PenultDT().Equal(p.PenultDT()) {
			return fmt.Errorf("%w: frame %s at %s/%s disagrees with benchmark",
				domain.ErrDatetimeMismatch, frame.Symbol,
				frame.PenultDT().Format(time.RFC3339), frame.LastDT().Format(time.RFC3339))
		}
	}
	return nil
}

// RunOptions controls one processor invocation.
type RunOptions struct {
	// FullRun replays the whole history as a backtest instead of stepping
	// one live bar.
	FullRun bool

	// RetainHistory keeps persisted orders and positions across a full run
	// and advances market states with null defaults.
	RetainHistory bool

	// PrintData renders the run's signal tables to the log.
	PrintData bool

	// MonteCarloSims, when positive, resamples each instrument after a
	// full run.
	MonteCarloSims int
}

// Run executes the strategy's required passes. Live runs enforce the
// datetime invariants first and skip the strategy on a mismatch; the
// position sizer's outputs from each pass feed the next one's capital
// fractions.
func (p *Processor) Run(ctx context.Context, endDT time.Time, opts RunOptions) error {
	rec, err := p.store.GetOrInsertTradingSystem(ctx, p.props.SystemName, endDT)
	if err != nil {
		return fmt.Errorf("loading system record for %s: %w", p.props.SystemName, err)
	}
	if !opts.FullRun {
		if err := p.checkEndDatetime(endDT, rec.CurrentDateTime); err != nil {
			return err
		}
	}
	if opts.FullRun && !opts.RetainHistory {
		if err := p.store.ResetSystemState(ctx, rec.ID); err != nil {
			return fmt.Errorf("resetting %s: %w", p.props.SystemName, err)
		}
	}

	ts := New(rec.ID, p.props.SystemName, p.props.Entry, p.props.Exit, p.store, p.log)
	fractions := make(map[string]float64)
	persistent := make(map[string]float64)

	for run := 1; run <= p.props.RequiredRuns; run++ {
		final := run == p.props.RequiredRuns
		cfg := RunConfig{
			StartCapital:      p.props.StartCapital,
			CommissionPct:     p.props.CommissionPct,
			FixedPositionSize: p.props.FixedPositionSize,
			EntryArgs:         p.props.EntryArgs,
			ExitArgs:          p.props.ExitArgs,
			CapitalFractions:  fractions,
		}

		if opts.FullRun {
			btCfg := BacktestConfig{
				RunConfig:              cfg,
				GenerateSignals:        final,
				MarketStateNullDefault: opts.RetainHistory,
				PersistPositionLists:   true,
				Persist:                final,
				PosListSliceYearsEst:   p.props.PosListSliceYearsEst,
			}
			if final {
				btCfg.MonteCarloSims = opts.MonteCarloSims
			}
			handler, err := ts.RunBacktest(ctx, p.frames, btCfg)
			if err != nil {
				return err
			}
			if final && opts.PrintData {
				p.printHandler(handler)
			}
		} else {
			handler, err := ts.RunLive(ctx, p.frames, cfg)
			if err != nil {
				return err
			}
			if final && opts.PrintData {
				p.printHandler(handler)
			}
		}

		if p.props.Sizer != nil {
			p.runPositionSizer(ctx, rec.ID, fractions, persistent)
		}
	}

	if p.props.Sizer != nil {
		if err := p.persistSizerData(ctx, rec.ID); err != nil {
			return err
		}
	}
	if !opts.FullRun || opts.RetainHistory {
		if err := p.store.UpdateCurrentDateTime(ctx, rec.ID, p.CurrentDT()); err != nil {
			return fmt.Errorf("updating current datetime for %s: %w", p.props.SystemName, err)
		}
	}
	return nil
}

// runPositionSizer sizes every instrument from its persisted history and
// feeds the resulting fractions into the next pass. Instruments without
// history are left at full capital.
func (p *Processor) runPositionSizer(ctx context.Context, systemID string, fractions, persistent map[string]float64) {
	opts := p.props.SizerOpts
	opts.Capital = p.props.StartCapital
	opts.PersistentSafeF = persistent

	for _, inst := range p.props.Instruments {
		positions, numOfPeriods, err := p.store.GetPositions(ctx, systemID, inst.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.log.Warn("position history fetch failed", "symbol", inst.Symbol, "error", err)
			}
			continue
		}
		out, err := p.props.Sizer.Run(positions, numOfPeriods, inst.ID, opts)
		if err != nil {
			p.log.Warn("position sizing skipped", "symbol", inst.Symbol, "error", err)
			continue
		}
		fractions[inst.ID] = out[p.props.Sizer.MetricKey()]
		persistent[inst.ID] = out[domain.SizerPersistentSafeF]
	}
}

func (p *Processor) persistSizerData(ctx context.Context, systemID string) error {
	data := make(map[string]any, len(p.props.Sizer.Data()))
	for instrumentID, out := range p.props.Sizer.Data() {
		fields := make(map[string]float64, len(out))
		for k, v := range out {
			fields[string(k)] = v
		}
		data[instrumentID] = fields
	}
	if err := p.store.UpdateSizerData(ctx, systemID, data); err != nil {
		return fmt.Errorf("persisting sizer data for %s: %w", p.props.SystemName, err)
	}
	return nil
}

func (p *Processor) printHandler(handler *signal.Handler) {
	if t := handler.Table(); t != "" {
		p.log.Info("signal records\n" + t)
	}
	if t := handler.EvaluationTable(); t != "" {
		p.log.Info("evaluation data\n" + t)
	}
}
