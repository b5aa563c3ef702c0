package position

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
)

var two = int32(2)

// Spec is the immutable part of a position: the capital committed, the
// trade direction, the per-side commission rate and the capital policy
// applied on exit.
type Spec struct {
	Capital           decimal.Decimal
	Direction         domain.Direction
	CommissionPct     decimal.Decimal
	FixedPositionSize bool
}

// EventKind identifies a position lifecycle transition.
type EventKind string

// Position lifecycle events.
const (
	EventEntered EventKind = "entered"
	EventUpdated EventKind = "updated"
	EventExited  EventKind = "exited"
)

// Event records a single lifecycle transition of a position.
type Event struct {
	Kind             EventKind
	Price            decimal.Decimal
	DT               time.Time
	UnrealisedReturn decimal.Decimal
}

// Position tracks one trade from entry signal to exit fill. Monetary
// quantities are decimal with results quantised to two places.
type Position struct {
	spec Spec

	entrySignalDT time.Time
	exitSignalDT  time.Time

	entryPrice decimal.Decimal
	exitPrice  decimal.Decimal
	entryDT    time.Time
	exitDT     time.Time
	currentDT  time.Time

	positionSize      int64
	uninvestedCapital decimal.Decimal
	commission        decimal.Decimal
	capital           decimal.Decimal
	active            bool

	lastPrice        decimal.Decimal
	unrealisedReturn decimal.Decimal
	unrealisedPL     decimal.Decimal

	returns    []decimal.Decimal
	mtmReturns []decimal.Decimal
	pnl        []decimal.Decimal

	trailingExit      bool
	trailingExitPrice decimal.Decimal
	exitSignalGiven   bool
}

// NewPosition creates an inactive position from its spec and the datetime
// of the entry signal it was initialised upon.
func NewPosition(spec Spec, entrySignalDT time.Time) *Position {
	return &Position{
		spec:          spec,
		capital:       spec.Capital,
		entrySignalDT: entrySignalDT,
	}
}

func (p *Position) Active() bool                       { return p.active }
func (p *Position) Direction() domain.Direction        { return p.spec.Direction }
func (p *Position) Capital() decimal.Decimal           { return p.capital }
func (p *Position) EntryPrice() decimal.Decimal        { return p.entryPrice }
func (p *Position) ExitPrice() decimal.Decimal         { return p.exitPrice }
func (p *Position) EntryDT() time.Time                 { return p.entryDT }
func (p *Position) ExitDT() time.Time                  { return p.exitDT }
func (p *Position) CurrentDT() time.Time               { return p.currentDT }
func (p *Position) EntrySignalDT() time.Time           { return p.entrySignalDT }
func (p *Position) ExitSignalDT() time.Time            { return p.exitSignalDT }
func (p *Position) PositionSize() int64                { return p.positionSize }
func (p *Position) Commission() decimal.Decimal        { return p.commission }
func (p *Position) UninvestedCapital() decimal.Decimal { return p.uninvestedCapital }
func (p *Position) ExitSignalGiven() bool              { return p.exitSignalGiven }
func (p *Position) TrailingExit() bool                 { return p.trailingExit }
func (p *Position) TrailingExitPrice() decimal.Decimal { return p.trailingExitPrice }

// UnrealisedReturn is the percentage return since entry as of the latest
// update, quantised to two places.
func (p *Position) UnrealisedReturn() decimal.Decimal { return p.unrealisedReturn }

// UnrealisedPL is the per-share profit or loss as of the latest update.
func (p *Position) UnrealisedPL() decimal.Decimal { return p.unrealisedPL }

// Returns is the bar-by-bar unrealised return series since entry.
func (p *Position) Returns() []decimal.Decimal { return p.returns }

// MTMReturns is the bar-to-bar mark-to-market return series.
func (p *Position) MTMReturns() []decimal.Decimal { return p.mtmReturns }

// PNL is the bar-by-bar unrealised per-share profit/loss series.
func (p *Position) PNL() []decimal.Decimal { return p.pnl }

// PeriodsInPosition is the number of bars the position has been held.
func (p *Position) PeriodsInPosition() int { return len(p.returns) }

// SetTrailingExit arms or disarms a trailing exit at the given price.
func (p *Position) SetTrailingExit(armed bool, price decimal.Decimal) {
	p.trailingExit = armed
	p.trailingExitPrice = price
}

// SetExitSignalGiven marks that an exit intent exists for this position,
// recording the datetime of the first exit signal.
func (p *Position) SetExitSignalGiven(dt time.Time) {
	if !p.exitSignalGiven {
		p.exitSignalGiven = true
		p.exitSignalDT = dt
	}
}

// DatetimeCheck reports whether the given datetime is strictly newer than
// every datetime the position has recorded so far. It guards against
// processing the same data point twice.
func (p *Position) DatetimeCheck(dt time.Time) bool {
	switch {
	case !p.exitDT.IsZero():
		return p.exitDT.Before(dt)
	case !p.exitSignalDT.IsZero():
		return p.exitSignalDT.Before(dt)
	case !p.currentDT.IsZero():
		return p.currentDT.Before(dt)
	case !p.entrySignalDT.IsZero():
		return p.entrySignalDT.Before(dt)
	}
	return true
}

// EnterMarket enters at the given price: sizes the position to whole
// shares, sets aside the uninvested remainder and accrues the entry-side
// commission. It fails if the position is already active.
func (p *Position) EnterMarket(price decimal.Decimal, dt time.Time) (Event, error) {
	if p.active {
		return Event{}, fmt.Errorf("%w: position is already active", domain.ErrInvariant)
	}
	if price.Sign() <= 0 {
		return Event{}, fmt.Errorf("%w: entry price must be positive, got %s", domain.ErrInvariant, price)
	}

	p.entryPrice = price
	p.positionSize = p.capital.Div(price).IntPart()
	invested := decimal.NewFromInt(p.positionSize).Mul(price)
	p.uninvestedCapital = p.capital.Sub(invested)
	p.commission = invested.Mul(p.spec.CommissionPct)
	p.entryDT = dt
	p.currentDT = dt
	p.active = true

	return Event{Kind: EventEntered, Price: price, DT: dt}, nil
}

// Update marks the position to market at the given price. It appends the
// unrealised return since entry, the bar-to-bar return and the per-share
// profit/loss, and advances current_dt. dt must be strictly after the last
// recorded datetime.
func (p *Position) Update(price decimal.Decimal, dt time.Time) (Event, error) {
	if !p.active {
		return Event{}, fmt.Errorf("%w: update on inactive position", domain.ErrInvariant)
	}
	// The first mark-to-market may share the entry bar's datetime; later
	// ones must advance strictly.
	if len(p.returns) == 0 && dt.Equal(p.currentDT) {
		p.markToMarket(price)
		return Event{Kind: EventUpdated, Price: price, DT: dt, UnrealisedReturn: p.unrealisedReturn}, nil
	}
	if !dt.After(p.currentDT) {
		return Event{}, fmt.Errorf(
			"%w: update datetime %s is not after current %s",
			domain.ErrDatetimeMismatch, dt.Format(time.RFC3339), p.currentDT.Format(time.RFC3339),
		)
	}
	p.markToMarket(price)
	p.currentDT = dt
	return Event{Kind: EventUpdated, Price: price, DT: dt, UnrealisedReturn: p.unrealisedReturn}, nil
}

// ExitMarket exits at the given price: marks to market one final time,
// accrues the exit-side commission and deactivates. It returns the capital
// released, which is the original amount under a fixed position size or the
// proceeds plus the uninvested remainder otherwise.
func (p *Position) ExitMarket(price decimal.Decimal, dt time.Time) (decimal.Decimal, Event, error) {
	if !p.active {
		return decimal.Zero, Event{}, fmt.Errorf("%w: exit on inactive position", domain.ErrInvariant)
	}
	if !dt.After(p.currentDT) {
		return decimal.Zero, Event{}, fmt.Errorf(
			"%w: exit datetime %s is not after current %s",
			domain.ErrDatetimeMismatch, dt.Format(time.RFC3339), p.currentDT.Format(time.RFC3339),
		)
	}

	p.exitPrice = price
	if _, err := p.Update(price, dt); err != nil {
		return decimal.Zero, Event{}, err
	}
	if !p.exitSignalGiven {
		p.exitSignalGiven = true
		p.exitSignalDT = dt
	}
	p.exitDT = dt
	p.active = false
	p.commission = p.commission.Add(
		decimal.NewFromInt(p.positionSize).Mul(price).Mul(p.spec.CommissionPct),
	)

	if !p.spec.FixedPositionSize {
		p.capital = decimal.NewFromInt(p.positionSize).Mul(price).
			Add(p.uninvestedCapital).Round(two)
	}
	return p.capital, Event{Kind: EventExited, Price: price, DT: dt, UnrealisedReturn: p.unrealisedReturn}, nil
}

// markToMarket computes the direction-signed returns against the entry and
// the previous price, quantised to two places, and appends them.
func (p *Position) markToMarket(price decimal.Decimal) {
	if p.lastPrice.IsZero() {
		p.lastPrice = p.entryPrice
	}

	var ret, mtm, pl decimal.Decimal
	switch p.spec.Direction {
	case domain.DirectionLong:
		ret = price.Sub(p.entryPrice).Div(p.entryPrice).Mul(hundred).Round(two)
		mtm = price.Sub(p.lastPrice).Div(p.lastPrice).Mul(hundred).Round(two)
		pl = price.Sub(p.entryPrice).Round(two)
	case domain.DirectionShort:
		ret = p.entryPrice.Sub(price).Div(p.entryPrice).Mul(hundred).Round(two)
		mtm = p.lastPrice.Sub(price).Div(p.lastPrice).Mul(hundred).Round(two)
		pl = p.entryPrice.Sub(price).Round(two)
	}

	p.returns = append(p.returns, ret)
	p.mtmReturns = append(p.mtmReturns, mtm)
	p.pnl = append(p.pnl, pl)
	p.unrealisedReturn = ret
	p.unrealisedPL = pl
	p.lastPrice = price
}

var hundred = decimal.NewFromInt(100)

// PositionReturn is the percentage return between entry and exit price,
// signed by direction.
func (p *Position) PositionReturn() decimal.Decimal {
	diff := p.signedDiff(p.exitPrice)
	return diff.Div(p.entryPrice).Mul(hundred).Round(two)
}

// GrossResult is the monetary result before commission.
func (p *Position) GrossResult() decimal.Decimal {
	return p.signedDiff(p.exitPrice).Mul(decimal.NewFromInt(p.positionSize)).Round(two)
}

// NetResult is the monetary result after the accrued commission.
func (p *Position) NetResult() decimal.Decimal {
	return p.signedDiff(p.exitPrice).Mul(decimal.NewFromInt(p.positionSize)).
		Sub(p.commission).Round(two)
}

// ProfitLoss is the per-share monetary result.
func (p *Position) ProfitLoss() decimal.Decimal {
	return p.signedDiff(p.exitPrice).Round(two)
}

func (p *Position) signedDiff(price decimal.Decimal) decimal.Decimal {
	if p.spec.Direction == domain.DirectionShort {
		return p.entryPrice.Sub(price)
	}
	return price.Sub(p.entryPrice)
}

// MAE is the maximum adverse excursion: the worst unrealised return, or
// zero when no bar closed against the position.
func (p *Position) MAE() decimal.Decimal {
	min := decimal.Zero
	for _, r := range p.returns {
		if r.LessThan(min) {
			min = r
		}
	}
	return min
}

// MFE is the maximum favorable excursion: the best unrealised return, or
// zero when no bar closed in the position's favor.
func (p *Position) MFE() decimal.Decimal {
	max := decimal.Zero
	for _, r := range p.returns {
		if r.GreaterThan(max) {
			max = r
		}
	}
	return max
}
