// Package domain defines the core market data types shared across the
// trading system: bars, frames, directions, and market states.
package domain

import (
	"fmt"
	"time"
)

// Direction is the side of a position or an entry order.
type Direction string

// Direction values.
const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether the direction is one of the known values.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// MarketState is what a strategy reports for an instrument on a given bar.
type MarketState string

// MarketState values. Null means "no signal; placeholder to advance time".
const (
	MarketStateEntry  MarketState = "entry"
	MarketStateActive MarketState = "active"
	MarketStateExit   MarketState = "exit"
	MarketStateNull   MarketState = "null"
)

// Bar is one OHLCV observation at a timestamp. For daily bars the timestamp
// is midnight UTC.
type Bar struct {
	InstrumentID string
	Symbol       string
	Timestamp    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
}

// Validate checks the bar's price and volume bounds. Prices may be zero only
// as explicit "missing"; negative values are always invalid.
func (b Bar) Validate() error {
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("%w: negative price on bar %s@%s", ErrInvariant, b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume on bar %s@%s", ErrInvariant, b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// Price is the canonical bar record exchanged with the securities and
// data-frame services. Timestamp is Unix seconds UTC.
type Price struct {
	InstrumentID string  `json:"instrument_id"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       int64   `json:"volume"`
	Timestamp    int64   `json:"timestamp"`
}

// ToBar converts a wire-level price record into a Bar.
func (p Price) ToBar(symbol string) Bar {
	return Bar{
		InstrumentID: p.InstrumentID,
		Symbol:       symbol,
		Timestamp:    time.Unix(p.Timestamp, 0).UTC(),
		Open:         p.Open,
		High:         p.High,
		Low:          p.Low,
		Close:        p.Close,
		Volume:       p.Volume,
	}
}

// FromBar converts a Bar into the wire-level price record.
func FromBar(b Bar) Price {
	return Price{
		InstrumentID: b.InstrumentID,
		Open:         b.Open,
		High:         b.High,
		Low:          b.Low,
		Close:        b.Close,
		Volume:       b.Volume,
		Timestamp:    b.Timestamp.UTC().Unix(),
	}
}

// Instrument identifies a tradeable security.
type Instrument struct {
	ID       string
	Symbol   string
	Exchange string
}
