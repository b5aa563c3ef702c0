// Package position implements the trade lifecycle primitives: orders that
// execute against bars, positions that track unrealised and realised
// results, and the manager that pairs generated positions with metrics.
package position

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
)

// OrderType distinguishes the order variants.
type OrderType string

// Order variants.
const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Order is a pending trade instruction with entry or exit intent. A market
// order fills at the next bar's open; a limit order fills only when the bar
// trades through its price, and expires after MaxDuration unfilled bars.
type Order struct {
	Type      OrderType
	Action    domain.MarketState
	Direction domain.Direction
	CreatedDT time.Time
	Active    bool

	// Limit order fields. Duration counts bars the order has gone unfilled.
	Price       float64
	MaxDuration int
	Duration    int
}

// NewMarketOrder creates an active market order. Entry orders must carry a
// direction.
func NewMarketOrder(action domain.MarketState, direction domain.Direction, dt time.Time) (*Order, error) {
	if err := validateOrder(action, direction); err != nil {
		return nil, err
	}
	return &Order{
		Type:      OrderTypeMarket,
		Action:    action,
		Direction: direction,
		CreatedDT: dt,
		Active:    true,
	}, nil
}

// NewLimitOrder creates an active limit order that expires after maxDuration
// unfilled bars.
func NewLimitOrder(
	action domain.MarketState, direction domain.Direction, dt time.Time,
	price float64, maxDuration int,
) (*Order, error) {
	if err := validateOrder(action, direction); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: limit order price must be positive, got %v", domain.ErrInvariant, price)
	}
	return &Order{
		Type:        OrderTypeLimit,
		Action:      action,
		Direction:   direction,
		CreatedDT:   dt,
		Active:      true,
		Price:       price,
		MaxDuration: maxDuration,
	}, nil
}

func validateOrder(action domain.MarketState, direction domain.Direction) error {
	switch action {
	case domain.MarketStateEntry:
		if !direction.Valid() {
			return fmt.Errorf("%w: entry order requires a direction", domain.ErrInvariant)
		}
	case domain.MarketStateExit:
	default:
		return fmt.Errorf("%w: order action must be entry or exit, got %q", domain.ErrInvariant, action)
	}
	return nil
}

// IsEntry reports whether the order carries entry intent.
func (o *Order) IsEntry() bool { return o.Action == domain.MarketStateEntry }

// IsExit reports whether the order carries exit intent.
func (o *Order) IsExit() bool { return o.Action == domain.MarketStateExit }

// entryFill resolves the fill price for an entry against the bar, or false
// when the limit is not reached. A gap through the limit improves the fill
// to the open.
func (o *Order) entryFill(bar domain.Bar) (float64, bool) {
	if o.Type == OrderTypeMarket {
		return bar.Open, true
	}
	switch o.Direction {
	case domain.DirectionLong:
		if o.Price > bar.Low {
			if bar.Open < o.Price {
				return bar.Open, true
			}
			return o.Price, true
		}
	case domain.DirectionShort:
		if o.Price < bar.High {
			if bar.Open > o.Price {
				return bar.Open, true
			}
			return o.Price, true
		}
	}
	return 0, false
}

// exitFill resolves the fill price for exiting a position held in the given
// direction. Exiting long sells (limit or better above), exiting short buys
// back (limit or better below).
func (o *Order) exitFill(bar domain.Bar, held domain.Direction) (float64, bool) {
	if o.Type == OrderTypeMarket {
		return bar.Open, true
	}
	switch held {
	case domain.DirectionLong:
		if o.Price < bar.High {
			if bar.Open > o.Price {
				return bar.Open, true
			}
			return o.Price, true
		}
	case domain.DirectionShort:
		if o.Price > bar.Low {
			if bar.Open < o.Price {
				return bar.Open, true
			}
			return o.Price, true
		}
	}
	return 0, false
}

// age advances the unfilled-duration counter and deactivates an expired
// limit order.
func (o *Order) age() {
	if o.Type != OrderTypeLimit {
		return
	}
	o.Duration++
	if o.Duration >= o.MaxDuration {
		o.Active = false
	}
}

// ExecuteEntry attempts to fill the entry order against the bar. On a fill
// it returns an active Position entered at the fill price and deactivates
// the order. On a non-fill it returns nil and ages the order.
func (o *Order) ExecuteEntry(
	capital decimal.Decimal, bar domain.Bar, dt time.Time,
	fixedPositionSize bool, commissionPct decimal.Decimal,
) (*Position, error) {
	if !o.IsEntry() {
		return nil, fmt.Errorf("%w: execute entry on %s order", domain.ErrInvariant, o.Action)
	}
	fillPrice, filled := o.entryFill(bar)
	if !filled {
		o.age()
		return nil, nil
	}

	pos := NewPosition(Spec{
		Capital:           capital,
		Direction:         o.Direction,
		CommissionPct:     commissionPct,
		FixedPositionSize: fixedPositionSize,
	}, o.CreatedDT)
	if _, err := pos.EnterMarket(decimal.NewFromFloat(fillPrice), dt); err != nil {
		return nil, err
	}
	o.Active = false
	return pos, nil
}

// ExecuteExit attempts to fill the exit order against the bar. It marks the
// position's exit intent up front so the caller knows an exit is pending
// even when the fill is deferred. On a fill it closes the position and
// returns the released capital.
func (o *Order) ExecuteExit(pos *Position, bar domain.Bar, dt time.Time) (decimal.Decimal, bool, error) {
	if !o.IsExit() {
		return decimal.Zero, false, fmt.Errorf("%w: execute exit on %s order", domain.ErrInvariant, o.Action)
	}
	pos.SetExitSignalGiven(o.CreatedDT)

	fillPrice, filled := o.exitFill(bar, pos.Direction())
	if !filled {
		o.age()
		return decimal.Zero, false, nil
	}

	capital, _, err := pos.ExitMarket(decimal.NewFromFloat(fillPrice), dt)
	if err != nil {
		return decimal.Zero, false, err
	}
	o.Active = false
	return capital, true, nil
}
