// Package session drives the per-instrument state machine that turns bars
// and pluggable entry/exit logic into orders and positions. The live
// session advances one bar per step; the backtest session replays a whole
// frame through the same transitions.
package session

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/signal"
)

// Args carries named parameters for entry and exit logic.
type Args map[domain.Field]any

// Int reads an integer argument, returning the fallback when absent.
func (a Args) Int(key domain.Field, fallback int) int {
	if v, ok := a[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return fallback
}

// Float reads a float argument, returning the fallback when absent.
func (a Args) Float(key domain.Field, fallback float64) float64 {
	if v, ok := a[key]; ok {
		switch f := v.(type) {
		case float64:
			return f
		case int:
			return float64(f)
		}
	}
	return fallback
}

// EntryFunc decides whether to enter the market given the feature window.
// A nil order means no entry.
type EntryFunc func(frame *domain.Frame, args Args) (*position.Order, error)

// ExitFunc decides whether to exit the held position given the feature
// window. A nil order means hold.
type ExitFunc func(frame *domain.Frame, pos *position.Position, args Args) (*position.Order, error)

// Env bundles the execution environment shared by every step: the capital
// to enter with, the sizing policy and the commission rate.
type Env struct {
	Capital           decimal.Decimal
	FixedPositionSize bool
	CommissionPct     decimal.Decimal
	EntryArgs         Args
	ExitArgs          Args
}

// Session steps the live state machine one bar at a time, emitting signal
// records into the handler as transitions occur.
type Session struct {
	entry   EntryFunc
	exit    ExitFunc
	handler *signal.Handler

	instrumentID string
	symbol       string
	log          *slog.Logger
}

// New creates a live session for one instrument.
func New(
	entry EntryFunc, exit ExitFunc, handler *signal.Handler,
	instrumentID, symbol string, log *slog.Logger,
) *Session {
	return &Session{
		entry:        entry,
		exit:         exit,
		handler:      handler,
		instrumentID: instrumentID,
		symbol:       symbol,
		log:          log,
	}
}

// Step advances the state machine by exactly one transition against the
// frame's last bar. Stepping twice on an unchanged frame leaves order and
// position untouched: a position whose current datetime does not match the
// penultimate bar has already consumed this bar.
func (s *Session) Step(
	frame *domain.Frame, order *position.Order, pos *position.Position, env Env,
) (*position.Order, *position.Position, error) {
	if frame.Len() < 2 {
		return order, pos, fmt.Errorf("%w: live step needs at least two bars", domain.ErrEmptyData)
	}
	last := frame.Last()

	if pos != nil && pos.Active() {
		if !pos.CurrentDT().Equal(frame.PenultDT()) {
			return order, pos, nil
		}
		// An exit intent persists past the order's own lifetime: once the
		// exit signal is given, the fill is attempted every bar even after
		// a limit exit order expires.
		if order != nil && order.IsExit() && (order.Active || pos.ExitSignalGiven()) {
			_, filled, err := order.ExecuteExit(pos, last, last.Timestamp)
			if err != nil {
				return order, pos, err
			}
			if filled {
				s.log.Info("position closed",
					"symbol", s.symbol,
					"exit_price", pos.ExitPrice(),
					"position_return", pos.PositionReturn(),
				)
				return order, pos, nil
			}
		}
	} else if pos == nil && order != nil && order.Active && order.IsEntry() {
		entered, err := order.ExecuteEntry(
			env.Capital, last, last.Timestamp, env.FixedPositionSize, env.CommissionPct,
		)
		if err != nil {
			return order, pos, err
		}
		pos = entered
	}

	if pos != nil && pos.Active() {
		if _, err := pos.Update(decimal.NewFromFloat(last.Close), last.Timestamp); err != nil {
			return order, pos, err
		}
		s.handler.HandleActivePosition(signal.Record{
			SignalDT:          last.Timestamp,
			InstrumentID:      s.instrumentID,
			Symbol:            s.symbol,
			Order:             order,
			PeriodsInPosition: pos.PeriodsInPosition(),
			UnrealisedReturn:  pos.UnrealisedReturn(),
		})
		if !pos.ExitSignalGiven() {
			exitOrder, err := s.exit(frame, pos, env.ExitArgs)
			if err != nil {
				return order, pos, err
			}
			if exitOrder != nil {
				order = exitOrder
			}
		}
		if order != nil && order.Active && order.IsExit() {
			s.handler.HandleExitSignal(signal.Record{
				SignalDT:          last.Timestamp,
				InstrumentID:      s.instrumentID,
				Symbol:            s.symbol,
				Order:             order,
				PeriodsInPosition: pos.PeriodsInPosition(),
				UnrealisedReturn:  pos.UnrealisedReturn(),
			})
		}
	} else if order == nil || !order.Active {
		entryOrder, err := s.entry(frame, env.EntryArgs)
		if err != nil {
			return order, pos, err
		}
		if entryOrder != nil {
			order = entryOrder
		}
		if order != nil && order.Active && order.IsEntry() {
			s.handler.HandleEntrySignal(signal.Record{
				SignalDT:     last.Timestamp,
				InstrumentID: s.instrumentID,
				Symbol:       s.symbol,
				Order:        order,
			})
		}
	}
	return order, pos, nil
}
