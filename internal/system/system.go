package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/metrics"
	"tradesys/internal/position"
	"tradesys/internal/session"
	"tradesys/internal/signal"
	"tradesys/internal/store"
)

// yearlyTradingPeriods converts bar counts into years for the pooled
// position-list window.
const yearlyTradingPeriods = 251.0

// TradingSystem runs one strategy's logic over a set of instrument frames,
// in backtest or live mode, persisting through the trading-system store.
type TradingSystem struct {
	id    string
	name  string
	entry session.EntryFunc
	exit  session.ExitFunc
	store store.TradingSystemStore
	log   *slog.Logger
}

// New creates a trading system. The store may be nil for persistence-free
// backtests.
func New(
	id, name string, entry session.EntryFunc, exit session.ExitFunc,
	st store.TradingSystemStore, log *slog.Logger,
) *TradingSystem {
	return &TradingSystem{
		id:    id,
		name:  name,
		entry: entry,
		exit:  exit,
		store: st,
		log:   log.With("system", name),
	}
}

// RunConfig carries the per-run parameters shared by both modes.
type RunConfig struct {
	StartCapital      float64
	CommissionPct     float64
	FixedPositionSize bool
	EntryArgs         session.Args
	ExitArgs          session.Args

	// CapitalFractions scales each instrument's allocated capital, keyed by
	// instrument id. A missing entry means the full capital.
	CapitalFractions map[string]float64
}

func (c RunConfig) fraction(instrumentID string) float64 {
	if f, ok := c.CapitalFractions[instrumentID]; ok && f > 0 {
		return f
	}
	return 1.0
}

func (c RunConfig) env(capital decimal.Decimal) session.Env {
	return session.Env{
		Capital:           capital,
		FixedPositionSize: c.FixedPositionSize,
		CommissionPct:     decimal.NewFromFloat(c.CommissionPct),
		EntryArgs:         c.EntryArgs,
		ExitArgs:          c.ExitArgs,
	}
}

// BacktestConfig controls a full backtest run.
type BacktestConfig struct {
	RunConfig

	// GenerateSignals emits each instrument's end-of-frame market state.
	GenerateSignals bool

	// MarketStateNullDefault short-circuits signal generation with a null
	// record, advancing time without a signal.
	MarketStateNullDefault bool

	// PersistPositionLists writes the per-instrument and pooled position
	// lists to the store. The sizer reads them back between passes, so
	// every pass needs them.
	PersistPositionLists bool

	// Persist writes market states and system metrics to the store, the
	// final-pass outputs.
	Persist bool

	// PosListSliceYearsEst scales the rolling window the pooled position
	// list is sliced to. Zero keeps everything.
	PosListSliceYearsEst float64

	// MonteCarloSims, when positive, resamples each instrument's closed
	// positions that many times and logs the resulting return band.
	MonteCarloSims int
}

// RunBacktest replays every frame through the backtest session, collects
// metrics and closed positions per instrument, and returns the signal
// handler holding the run's records and evaluation data. Instruments that
// fail are dropped from the run; the strategy itself never aborts on one
// bad instrument.
func (ts *TradingSystem) RunBacktest(
	ctx context.Context, frames []*domain.Frame, cfg BacktestConfig,
) (*signal.Handler, error) {
	handler := signal.NewHandler()
	summaries := make(map[string]any, len(frames))

	var (
		pooled     []*position.Position
		maxPeriods int
	)
	for _, frame := range frames {
		positions, pm, err := ts.backtestInstrument(frame, handler, cfg)
		if err != nil {
			ts.log.Warn("instrument dropped from backtest",
				"symbol", frame.Symbol, "error", err)
			continue
		}

		periods := periodsThrough(frame, positions)
		if handler.EntrySignalGiven() || cfg.MarketStateNullDefault {
			eval := map[domain.Field]any(pm.Metrics().Summary())
			eval[domain.FieldNumOfPeriods] = periods
			handler.AddEvaluationData(eval, domain.EvaluationFields())
		}

		if cfg.MonteCarloSims > 0 {
			ts.runMonteCarlo(frame, positions, cfg)
		}

		pooled = append(pooled, positions...)
		if frame.Len() > maxPeriods {
			maxPeriods = frame.Len()
		}
		summaries[frame.Symbol] = map[domain.Field]any(pm.Metrics().Summary())

		if cfg.PersistPositionLists && ts.store != nil {
			if err := ts.store.InsertPositions(ctx, ts.id, frame.InstrumentID, positions, periods); err != nil {
				return handler, fmt.Errorf("persisting positions for %s: %w", frame.Symbol, err)
			}
		}
	}

	if cfg.PersistPositionLists && ts.store != nil {
		pooled = slicePooled(pooled, maxPeriods, cfg.PosListSliceYearsEst)
		if err := ts.store.InsertPositions(ctx, ts.id, "", pooled, maxPeriods); err != nil {
			return handler, fmt.Errorf("persisting pooled positions: %w", err)
		}
	}
	if cfg.Persist && ts.store != nil {
		if err := ts.store.UpdateMetrics(ctx, ts.id, summaries); err != nil {
			return handler, fmt.Errorf("persisting metrics: %w", err)
		}
		if err := handler.InsertInto(ctx, ts.store, ts.id); err != nil {
			return handler, fmt.Errorf("persisting market states: %w", err)
		}
	}
	return handler, nil
}

func (ts *TradingSystem) backtestInstrument(
	frame *domain.Frame, handler *signal.Handler, cfg BacktestConfig,
) ([]*position.Position, *metrics.PositionManager, error) {
	pm := metrics.NewPositionManager(
		frame.Symbol, frame.Len(), cfg.StartCapital, cfg.fraction(frame.InstrumentID),
	)
	bt := session.NewBacktest(
		ts.entry, ts.exit, frame, handler, frame.InstrumentID, frame.Symbol, ts.log,
	)
	opts := session.RunOpts{
		GenerateSignals:        cfg.GenerateSignals,
		MarketStateNullDefault: cfg.MarketStateNullDefault,
	}
	err := pm.GeneratePositions(func(capital decimal.Decimal) ([]*position.Position, error) {
		positions, _, err := bt.Run(cfg.env(capital), opts)
		return positions, err
	}, frame.Closes())
	if err != nil {
		return nil, nil, err
	}
	return pm.Positions(), pm, nil
}

func (ts *TradingSystem) runMonteCarlo(frame *domain.Frame, positions []*position.Position, cfg BacktestConfig) {
	// Forecasting 1.5x the history keeps two thirds of it per sample.
	const dataFraction = 1.0 / 1.5
	res, err := metrics.RunMonteCarlo(
		positions, frame.Len(), cfg.StartCapital, cfg.fraction(frame.InstrumentID),
		dataFraction, cfg.MonteCarloSims, nil,
	)
	if err != nil {
		ts.log.Warn("monte carlo skipped", "symbol", frame.Symbol, "error", err)
		return
	}
	ts.log.Info("monte carlo return band",
		"symbol", frame.Symbol, "car25", res.CAR25, "car75", res.CAR75)
}

// periodsThrough counts the bars up to and including the last closed
// position's exit. With no closed positions it covers the whole frame.
func periodsThrough(frame *domain.Frame, positions []*position.Position) int {
	var last *position.Position
	for i := len(positions) - 1; i >= 0; i-- {
		if !positions[i].ExitDT().IsZero() {
			last = positions[i]
			break
		}
	}
	if last == nil {
		return frame.Len()
	}
	n := 0
	for i := range frame.Len() {
		if !frame.Bar(i).Timestamp.After(last.ExitDT()) {
			n++
		}
	}
	return n
}

// slicePooled trims the pooled position list to a rolling window of roughly
// yearsEst years of positions.
func slicePooled(pooled []*position.Position, maxPeriods int, yearsEst float64) []*position.Position {
	if yearsEst <= 0 || len(pooled) == 0 || maxPeriods == 0 {
		return pooled
	}
	years := float64(maxPeriods) / yearlyTradingPeriods
	if years == 0 {
		return pooled
	}
	yearlyPositions := float64(len(pooled)) / years
	keep := int(yearsEst * yearlyPositions * 1.5)
	if keep <= 0 || keep >= len(pooled) {
		return pooled
	}
	return pooled[len(pooled)-keep:]
}

// RunLive steps every instrument one bar forward against its stored order
// and position, and returns the signal handler holding the step's records.
// Instruments whose stored state already covers the frame's last bar are
// skipped; store failures drop the instrument for this run.
func (ts *TradingSystem) RunLive(
	ctx context.Context, frames []*domain.Frame, cfg RunConfig,
) (*signal.Handler, error) {
	if ts.store == nil {
		return nil, fmt.Errorf("%w: live mode needs a store", domain.ErrInvariant)
	}
	handler := signal.NewHandler()

	for _, frame := range frames {
		if frame.Len() < 2 {
			ts.log.Warn("instrument dropped from live run",
				"symbol", frame.Symbol, "bars", frame.Len())
			continue
		}
		if err := ts.stepInstrument(ctx, frame, handler, cfg); err != nil {
			ts.log.Warn("live step failed", "symbol", frame.Symbol, "error", err)
		}
	}
	return handler, nil
}

func (ts *TradingSystem) stepInstrument(
	ctx context.Context, frame *domain.Frame, handler *signal.Handler, cfg RunConfig,
) error {
	lastDT := frame.LastDT()

	order, err := ts.store.GetOrder(ctx, ts.id, frame.InstrumentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	pos, err := ts.store.GetPosition(ctx, ts.id, frame.InstrumentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	// A stored order or position stamped at or past the frame's last bar
	// means this bar is already consumed.
	if order != nil && !order.CreatedDT.Before(lastDT) {
		return nil
	}
	if pos != nil && !pos.CurrentDT().IsZero() && !pos.CurrentDT().Before(lastDT) {
		return nil
	}
	// A closed position stays stored only as the consumed-bar marker.
	if pos != nil && !pos.Active() {
		pos = nil
	}
	wasActive := pos != nil

	sess := session.New(ts.entry, ts.exit, handler, frame.InstrumentID, frame.Symbol, ts.log)
	capital := decimal.NewFromFloat(cfg.StartCapital * cfg.fraction(frame.InstrumentID))
	newOrder, newPos, err := sess.Step(frame, order, pos, cfg.env(capital))
	if err != nil {
		return err
	}

	enteredToday := !wasActive && newPos != nil && newPos.Active() && newPos.EntryDT().Equal(lastDT)
	exitedToday := wasActive && newPos != nil && !newPos.Active()

	if enteredToday {
		n, err := ts.periodsSinceLastExit(ctx, frame)
		if err != nil {
			return err
		}
		if err := ts.store.IncrementNumOfPeriods(ctx, ts.id, frame.InstrumentID, n); err != nil {
			return err
		}
	}
	if exitedToday {
		if err := ts.store.InsertPosition(ctx, ts.id, frame.InstrumentID, newPos); err != nil {
			return err
		}
	}

	if err := ts.store.UpsertOrder(ctx, ts.id, frame.InstrumentID, newOrder); err != nil {
		return err
	}
	if err := ts.store.UpsertPosition(ctx, ts.id, frame.InstrumentID, newPos); err != nil {
		return err
	}
	return nil
}

// periodsSinceLastExit counts the frame's bars after the last persisted
// exit, or the whole frame when no history exists.
func (ts *TradingSystem) periodsSinceLastExit(ctx context.Context, frame *domain.Frame) (int, error) {
	history, _, err := ts.store.GetPositions(ctx, ts.id, frame.InstrumentID)
	if errors.Is(err, domain.ErrNotFound) || len(history) == 0 {
		return frame.Len(), nil
	}
	if err != nil {
		return 0, err
	}
	lastExit := history[len(history)-1].ExitDT()
	for _, p := range history {
		if p.ExitDT().After(lastExit) {
			lastExit = p.ExitDT()
		}
	}
	n := 0
	for i := range frame.Len() {
		if frame.Bar(i).Timestamp.After(lastExit) {
			n++
		}
	}
	return n, nil
}
