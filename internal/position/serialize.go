package position

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
)

// record is the self-describing wire form of a Position. Every field the
// lifecycle mutates is carried so Decode restores an equivalent position.
type record struct {
	Version int `json:"version"`

	Capital           decimal.Decimal  `json:"capital"`
	Direction         domain.Direction `json:"direction"`
	CommissionPct     decimal.Decimal  `json:"commission_pct"`
	FixedPositionSize bool             `json:"fixed_position_size"`

	EntrySignalDT time.Time `json:"entry_signal_dt"`
	ExitSignalDT  time.Time `json:"exit_signal_dt,omitzero"`
	EntryDT       time.Time `json:"entry_dt,omitzero"`
	ExitDT        time.Time `json:"exit_dt,omitzero"`
	CurrentDT     time.Time `json:"current_dt,omitzero"`

	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	LastPrice  decimal.Decimal `json:"last_price"`

	PositionSize      int64           `json:"position_size"`
	UninvestedCapital decimal.Decimal `json:"uninvested_capital"`
	Commission        decimal.Decimal `json:"commission"`
	CurrentCapital    decimal.Decimal `json:"current_capital"`
	Active            bool            `json:"active"`

	UnrealisedReturn decimal.Decimal `json:"unrealised_return"`
	UnrealisedPL     decimal.Decimal `json:"unrealised_pl"`

	Returns    []decimal.Decimal `json:"returns_list"`
	MTMReturns []decimal.Decimal `json:"mtm_returns_list"`
	PNL        []decimal.Decimal `json:"pnl_list"`

	TrailingExit      bool            `json:"trailing_exit"`
	TrailingExitPrice decimal.Decimal `json:"trailing_exit_price"`
	ExitSignalGiven   bool            `json:"exit_signal_given"`
}

const recordVersion = 1

// Encode serialises the position to its structured wire form.
func Encode(p *Position) ([]byte, error) {
	return json.Marshal(record{
		Version:           recordVersion,
		Capital:           p.spec.Capital,
		Direction:         p.spec.Direction,
		CommissionPct:     p.spec.CommissionPct,
		FixedPositionSize: p.spec.FixedPositionSize,
		EntrySignalDT:     p.entrySignalDT,
		ExitSignalDT:      p.exitSignalDT,
		EntryDT:           p.entryDT,
		ExitDT:            p.exitDT,
		CurrentDT:         p.currentDT,
		EntryPrice:        p.entryPrice,
		ExitPrice:         p.exitPrice,
		LastPrice:         p.lastPrice,
		PositionSize:      p.positionSize,
		UninvestedCapital: p.uninvestedCapital,
		Commission:        p.commission,
		CurrentCapital:    p.capital,
		Active:            p.active,
		UnrealisedReturn:  p.unrealisedReturn,
		UnrealisedPL:      p.unrealisedPL,
		Returns:           p.returns,
		MTMReturns:        p.mtmReturns,
		PNL:               p.pnl,
		TrailingExit:      p.trailingExit,
		TrailingExitPrice: p.trailingExitPrice,
		ExitSignalGiven:   p.exitSignalGiven,
	})
}

// Decode restores a position from its wire form.
func Decode(data []byte) (*Position, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	if r.Version != recordVersion {
		return nil, fmt.Errorf("decode position: unsupported record version %d", r.Version)
	}
	if !r.Direction.Valid() {
		return nil, fmt.Errorf("decode position: %w: direction %q", domain.ErrInvariant, r.Direction)
	}
	p := &Position{
		spec: Spec{
			Capital:           r.Capital,
			Direction:         r.Direction,
			CommissionPct:     r.CommissionPct,
			FixedPositionSize: r.FixedPositionSize,
		},
		entrySignalDT:     r.EntrySignalDT,
		exitSignalDT:      r.ExitSignalDT,
		entryDT:           r.EntryDT,
		exitDT:            r.ExitDT,
		currentDT:         r.CurrentDT,
		entryPrice:        r.EntryPrice,
		exitPrice:         r.ExitPrice,
		lastPrice:         r.LastPrice,
		positionSize:      r.PositionSize,
		uninvestedCapital: r.UninvestedCapital,
		commission:        r.Commission,
		capital:           r.CurrentCapital,
		active:            r.Active,
		unrealisedReturn:  r.UnrealisedReturn,
		unrealisedPL:      r.UnrealisedPL,
		returns:           r.Returns,
		mtmReturns:        r.MTMReturns,
		pnl:               r.PNL,
		trailingExit:      r.TrailingExit,
		trailingExitPrice: r.TrailingExitPrice,
		exitSignalGiven:   r.ExitSignalGiven,
	}
	return p, nil
}

// EncodeOrder serialises an order to its wire form.
func EncodeOrder(o *Order) ([]byte, error) {
	return json.Marshal(o)
}

// DecodeOrder restores an order from its wire form.
func DecodeOrder(data []byte) (*Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if o.Type != OrderTypeMarket && o.Type != OrderTypeLimit {
		return nil, fmt.Errorf("decode order: %w: order type %q", domain.ErrInvariant, o.Type)
	}
	return &o, nil
}
