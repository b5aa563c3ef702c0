// Package rpc provides gRPC clients for the external data-frame and
// securities services. Messages travel in the hand-written wire format from
// internal/rpc/wire; transport security is mutual TLS with a configurable
// certificate triple.
package rpc

import (
	"context"
	"time"

	"tradesys/internal/domain"
)

// Exchange is a listing venue known to the securities service.
type Exchange struct {
	ID       string
	Name     string
	Currency string
}

// DataFrameService is the remote frame cache the engine feeds and reads.
type DataFrameService interface {
	// MapTradingSystemInstrument registers an instrument with a system's
	// frame cache.
	MapTradingSystemInstrument(ctx context.Context, systemID, instrumentID string) error

	// PushPriceStream appends a batch of bars and returns how many rows the
	// cache accepted.
	PushPriceStream(ctx context.Context, bars []domain.Bar) (int, error)

	// SetMinimumRows declares the shortest frame the system's logic can run
	// on.
	SetMinimumRows(ctx context.Context, systemID string, rows int) error

	// CheckPresence reports whether the cache holds a frame for the pair.
	// An empty instrumentID asks about the system as a whole.
	CheckPresence(ctx context.Context, systemID, instrumentID string) (bool, error)

	// Evict drops cached frames. Empty identifiers widen the scope.
	Evict(ctx context.Context, systemID, instrumentID string) error

	// GetFrame returns the instrument's bars, optionally limited to the
	// latest nRows with named columns excluded.
	GetFrame(ctx context.Context, systemID, instrumentID string, nRows int, exclude []string) ([]domain.Bar, error)
}

// SecuritiesService is the remote instrument and price-data catalogue.
type SecuritiesService interface {
	GetExchanges(ctx context.Context) ([]Exchange, error)
	GetExchangeInstruments(ctx context.Context, exchangeID string) ([]domain.Instrument, error)
	GetMarketListInstruments(ctx context.Context, name string) ([]domain.Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error)

	// GetDateTime returns the earliest or latest stored bar timestamp of an
	// instrument; a zero time means no data.
	GetDateTime(ctx context.Context, instrumentID string, bound Bound) (time.Time, error)

	// GetLastDate returns the most recent date both symbols share a bar on.
	GetLastDate(ctx context.Context, symbol1, symbol2 string) (time.Time, error)

	GetPriceData(ctx context.Context, instrumentID string, start, end time.Time) ([]domain.Bar, error)

	// InsertPriceData stores a batch of bars and returns how many rows were
	// written.
	InsertPriceData(ctx context.Context, bars []domain.Bar) (int, error)
}

// Bound selects an end of an instrument's stored time range.
type Bound int

// Bound values.
const (
	BoundMin Bound = iota
	BoundMax
)
