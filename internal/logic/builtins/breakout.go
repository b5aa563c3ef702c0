// Package builtins provides the built-in logic implementations that ship
// with the engine.
package builtins

import (
	"tradesys/internal/domain"
	"tradesys/internal/logic"
	"tradesys/internal/position"
	"tradesys/internal/session"
)

// Breakout is an N-period close breakout system: it buys when the close
// prints a new high over the lookback window and sells when it prints a new
// low. Entries are limit orders at the signal close.
func Breakout() logic.Logic {
	return logic.Logic{
		Name:  "breakout",
		Entry: breakoutEntry,
		Exit:  breakdownExit,
	}
}

func breakoutEntry(frame *domain.Frame, args session.Args) (*position.Order, error) {
	lookback := args.Int(domain.FieldEntryPeriodLookback, 5)
	n := frame.Len()
	if n < lookback {
		return nil, nil
	}
	last := frame.Last()
	if last.Close < windowMax(frame, n-lookback, n) {
		return nil, nil
	}
	maxDuration := args.Int(domain.FieldMaxOrderDuration, 5)
	return position.NewLimitOrder(
		domain.MarketStateEntry, domain.DirectionLong, last.Timestamp, last.Close, maxDuration,
	)
}

func breakdownExit(frame *domain.Frame, pos *position.Position, args session.Args) (*position.Order, error) {
	lookback := args.Int(domain.FieldExitPeriodLookback, 5)
	n := frame.Len()
	if n < lookback {
		return nil, nil
	}
	last := frame.Last()
	if last.Close > windowMin(frame, n-lookback, n) {
		return nil, nil
	}
	return position.NewMarketOrder(domain.MarketStateExit, pos.Direction(), last.Timestamp)
}

func windowMax(frame *domain.Frame, start, end int) float64 {
	m := frame.Bar(start).Close
	for i := start + 1; i < end; i++ {
		if c := frame.Bar(i).Close; c > m {
			m = c
		}
	}
	return m
}

func windowMin(frame *domain.Frame, start, end int) float64 {
	m := frame.Bar(start).Close
	for i := start + 1; i < end; i++ {
		if c := frame.Bar(i).Close; c < m {
			m = c
		}
	}
	return m
}
