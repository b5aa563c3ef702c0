// Package store defines storage interfaces for persisting and retrieving
// trading-system state: system records, market states, orders, positions,
// models, and the local bar cache.
package store

import (
	"context"
	"time"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/signal"
)

// SystemRecord is the persisted identity of one trading system.
type SystemRecord struct {
	ID              string
	Name            string
	CurrentDateTime time.Time
}

// SystemStore persists and retrieves trading-system records.
type SystemStore interface {
	// GetOrInsertTradingSystem returns the record for the named system,
	// inserting it with the given datetime when absent. CurrentDateTime is
	// zero for a freshly inserted system.
	GetOrInsertTradingSystem(ctx context.Context, name string, currentDT time.Time) (SystemRecord, error)

	// UpdateCurrentDateTime advances the system's processed-through marker.
	UpdateCurrentDateTime(ctx context.Context, systemID string, dt time.Time) error

	// UpdateMetrics replaces the system's metrics document.
	UpdateMetrics(ctx context.Context, systemID string, metrics map[string]any) error

	// UpdateSizerData replaces the system's position-sizer summary.
	UpdateSizerData(ctx context.Context, systemID string, data map[string]any) error

	// ResetSystemState drops the system's orders, positions, and market
	// states ahead of a full re-run. The system record itself survives.
	ResetSystemState(ctx context.Context, systemID string) error
}

// MarketStateStore persists the latest market state per (system, instrument).
// It satisfies signal.Persister.
type MarketStateStore interface {
	// UpsertMarketState writes the record iff it advances the stored one:
	// a strictly newer signal datetime always wins, an equal-or-newer one
	// wins over a stored null state, and an equal one wins over a stored
	// active state.
	UpsertMarketState(ctx context.Context, systemID string, rec signal.Record) error

	// GetMarketState returns the stored record, or ErrNotFound.
	GetMarketState(ctx context.Context, systemID, instrumentID string) (signal.Record, error)

	// ListMarketStates returns every stored record for the system.
	ListMarketStates(ctx context.Context, systemID string) ([]signal.Record, error)
}

// OrderStore persists the single current order per (system, instrument).
type OrderStore interface {
	// UpsertOrder replaces the current order. A nil order clears it.
	UpsertOrder(ctx context.Context, systemID, instrumentID string, o *position.Order) error

	// GetOrder returns the current order, or ErrNotFound.
	GetOrder(ctx context.Context, systemID, instrumentID string) (*position.Order, error)
}

// PositionStore persists the current position and the closed-position
// history per (system, instrument).
type PositionStore interface {
	// UpsertPosition replaces the current position. A nil position clears it.
	UpsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error

	// GetPosition returns the current position, or ErrNotFound.
	GetPosition(ctx context.Context, systemID, instrumentID string) (*position.Position, error)

	// InsertPosition appends one closed position to the instrument's history.
	InsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error

	// InsertPositions replaces the instrument's history with the given list
	// and sets its period count. Pass instrumentID "" for the system-wide
	// pooled list.
	InsertPositions(ctx context.Context, systemID, instrumentID string, positions []*position.Position, numOfPeriods int) error

	// GetPositions returns the instrument's history and its period count.
	GetPositions(ctx context.Context, systemID, instrumentID string) ([]*position.Position, int, error)

	// GetTradingSystemPositions returns the latest n positions across every
	// instrument of the system, ordered by entry datetime. n <= 0 returns
	// all of them.
	GetTradingSystemPositions(ctx context.Context, systemID string, n int) ([]*position.Position, error)

	// IncrementNumOfPeriods adds n to the instrument's period count.
	IncrementNumOfPeriods(ctx context.Context, systemID, instrumentID string, n int) error
}

// ModelStore persists opaque model blobs per (system, instrument).
type ModelStore interface {
	// InsertModel stores the blob. instrumentID "" stores a system-wide model.
	InsertModel(ctx context.Context, systemID, instrumentID string, blob []byte) error

	// GetModel returns the stored blob, or ErrNotFound.
	GetModel(ctx context.Context, systemID, instrumentID string) ([]byte, error)
}

// TradingSystemStore is the full persistence surface one trading system uses.
type TradingSystemStore interface {
	SystemStore
	MarketStateStore
	OrderStore
	PositionStore
	ModelStore
}

// BarStore persists and retrieves OHLCV bar data for the local replay cache.
type BarStore interface {
	// WriteBars persists a batch of bars, merged with any already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}
