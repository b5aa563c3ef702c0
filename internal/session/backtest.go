package session

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/signal"
)

// Backtest replays a historical frame through the live state machine's
// transitions, yielding the closed positions in order.
type Backtest struct {
	entry   EntryFunc
	exit    ExitFunc
	frame   *domain.Frame
	handler *signal.Handler

	instrumentID string
	symbol       string
	log          *slog.Logger
}

// NewBacktest creates a backtest session over the given frame.
func NewBacktest(
	entry EntryFunc, exit ExitFunc, frame *domain.Frame, handler *signal.Handler,
	instrumentID, symbol string, log *slog.Logger,
) *Backtest {
	return &Backtest{
		entry:        entry,
		exit:         exit,
		frame:        frame,
		handler:      handler,
		instrumentID: instrumentID,
		symbol:       symbol,
		log:          log,
	}
}

// RunOpts controls a backtest run.
type RunOpts struct {
	// GenerateSignals emits the end-of-frame market state into the signal
	// handler, the point where backtest and live behavior converge.
	GenerateSignals bool

	// MarketStateNullDefault short-circuits signal generation with a null
	// market-state record.
	MarketStateNullDefault bool
}

// Run replays the frame, starting after the bars the feature window needs,
// and returns the closed positions together with the final capital. The
// required warm-up comes from the entry args' required-period-iterations
// value, which must leave at least one bar to replay.
func (b *Backtest) Run(env Env, opts RunOpts) ([]*position.Position, decimal.Decimal, error) {
	reqPeriods := env.EntryArgs.Int(domain.FieldReqPeriodIters, 0)
	if reqPeriods+1 >= b.frame.Len() {
		return nil, decimal.Zero, fmt.Errorf(
			"%w: required feature periods %d leave no bars to replay in a frame of %d",
			domain.ErrInvariant, reqPeriods, b.frame.Len(),
		)
	}

	var (
		closed  []*position.Position
		order   *position.Order
		pos     *position.Position
		capital = env.Capital
	)

	for i := 0; i < b.frame.Len(); i++ {
		if i <= reqPeriods {
			continue
		}
		bar := b.frame.Bar(i)

		if pos != nil && pos.Active() {
			prev := b.frame.Bar(i - 1)
			if _, err := pos.Update(decimal.NewFromFloat(prev.Close), prev.Timestamp); err != nil {
				return nil, decimal.Zero, err
			}
			if !pos.ExitSignalGiven() {
				exitOrder, err := b.exit(b.frame.Prefix(i), pos, env.ExitArgs)
				if err != nil {
					return nil, decimal.Zero, err
				}
				if exitOrder != nil {
					order = exitOrder
				}
			}
			// Exit intent persists past the order's own lifetime: an
			// expired limit exit keeps attempting its fill each bar.
			if order != nil && order.IsExit() && (order.Active || pos.ExitSignalGiven()) {
				released, filled, err := order.ExecuteExit(pos, bar, bar.Timestamp)
				if err != nil {
					return nil, decimal.Zero, err
				}
				if filled {
					capital = released
					closed = append(closed, pos)
					order, pos = nil, nil
				}
			}
			continue
		}

		if order != nil && order.Active && order.IsEntry() {
			entered, err := order.ExecuteEntry(
				capital, bar, bar.Timestamp, env.FixedPositionSize, env.CommissionPct,
			)
			if err != nil {
				return nil, decimal.Zero, err
			}
			pos = entered
			continue
		}

		entryOrder, err := b.entry(b.frame.Prefix(i), env.EntryArgs)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if entryOrder != nil && entryOrder.Active && entryOrder.IsEntry() {
			order = entryOrder
			entered, err := order.ExecuteEntry(
				capital, bar, bar.Timestamp, env.FixedPositionSize, env.CommissionPct,
			)
			if err != nil {
				return nil, decimal.Zero, err
			}
			pos = entered
		}
	}

	if opts.GenerateSignals {
		if err := b.generateSignals(order, pos, env, opts); err != nil {
			return nil, decimal.Zero, err
		}
	}
	return closed, capital, nil
}

// generateSignals emits the current end-of-frame market state so
// downstream code can act on the latest bar's signals.
func (b *Backtest) generateSignals(
	order *position.Order, pos *position.Position, env Env, opts RunOpts,
) error {
	lastDT := b.frame.LastDT()

	if opts.MarketStateNullDefault {
		b.handler.HandleEntrySignal(signal.Record{
			SignalDT:     lastDT,
			InstrumentID: b.instrumentID,
			Symbol:       b.symbol,
			MarketState:  domain.MarketStateNull,
		})
		return nil
	}

	if pos != nil && pos.Active() {
		last := b.frame.Last()
		if pos.PeriodsInPosition() == 0 || !pos.CurrentDT().Equal(lastDT) {
			if _, err := pos.Update(decimal.NewFromFloat(last.Close), lastDT); err != nil {
				return err
			}
		}
		b.handler.HandleActivePosition(signal.Record{
			SignalDT:          lastDT,
			InstrumentID:      b.instrumentID,
			Symbol:            b.symbol,
			Order:             order,
			PeriodsInPosition: pos.PeriodsInPosition(),
			UnrealisedReturn:  pos.UnrealisedReturn(),
		})
		if !pos.ExitSignalGiven() {
			exitOrder, err := b.exit(b.frame, pos, env.ExitArgs)
			if err != nil {
				return err
			}
			if exitOrder != nil {
				order = exitOrder
			}
		}
		if order != nil && order.Active && order.IsExit() {
			b.handler.HandleExitSignal(signal.Record{
				SignalDT:          lastDT,
				InstrumentID:      b.instrumentID,
				Symbol:            b.symbol,
				Order:             order,
				PeriodsInPosition: pos.PeriodsInPosition(),
				UnrealisedReturn:  pos.UnrealisedReturn(),
			})
		}
		return nil
	}

	if order == nil || !order.Active {
		entryOrder, err := b.entry(b.frame, env.EntryArgs)
		if err != nil {
			return err
		}
		if entryOrder != nil {
			order = entryOrder
		}
	}
	if order != nil && order.Active && order.IsEntry() {
		b.handler.HandleEntrySignal(signal.Record{
			SignalDT:     lastDT,
			InstrumentID: b.instrumentID,
			Symbol:       b.symbol,
			Order:        order,
		})
	}
	return nil
}
