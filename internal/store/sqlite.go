package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/signal"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ TradingSystemStore = (*SQLiteStore)(nil)
var _ signal.Persister = (*SQLiteStore)(nil)

// SQLiteStore implements TradingSystemStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migrations, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS trading_systems (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	current_date_time INTEGER NOT NULL DEFAULT 0,
	metrics           TEXT,
	sizer_data        TEXT
);
CREATE TABLE IF NOT EXISTS market_states (
	system_id           TEXT NOT NULL,
	instrument_id       TEXT NOT NULL,
	signal_dt           INTEGER NOT NULL,
	symbol              TEXT NOT NULL,
	order_blob          BLOB,
	periods_in_position INTEGER NOT NULL DEFAULT 0,
	unrealised_return   TEXT NOT NULL DEFAULT '0',
	market_state        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (system_id, instrument_id)
);
CREATE TABLE IF NOT EXISTS orders (
	system_id     TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	blob          BLOB NOT NULL,
	PRIMARY KEY (system_id, instrument_id)
);
CREATE TABLE IF NOT EXISTS current_positions (
	system_id     TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	blob          BLOB NOT NULL,
	PRIMARY KEY (system_id, instrument_id)
);
CREATE TABLE IF NOT EXISTS position_lists (
	system_id      TEXT NOT NULL,
	instrument_id  TEXT NOT NULL,
	blob           BLOB NOT NULL DEFAULT '[]',
	num_of_periods INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (system_id, instrument_id)
);
CREATE TABLE IF NOT EXISTS models (
	system_id     TEXT NOT NULL,
	instrument_id TEXT NOT NULL,
	blob          BLOB NOT NULL,
	PRIMARY KEY (system_id, instrument_id)
);`
	_, err := s.db.Exec(schema)
	return err
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return hex.EncodeToString(b[:])
}

// unixOrZero maps the zero time to 0 and anything else to Unix seconds UTC.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

// ---------------------------------------------------------------------------
// SystemStore implementation
// ---------------------------------------------------------------------------

// GetOrInsertTradingSystem returns the record for the named system, creating
// it when absent.
func (s *SQLiteStore) GetOrInsertTradingSystem(ctx context.Context, name string, currentDT time.Time) (SystemRecord, error) {
	var (
		rec  SystemRecord
		unix int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, current_date_time FROM trading_systems WHERE name = ?`, name,
	).Scan(&rec.ID, &rec.Name, &unix)
	if err == nil {
		rec.CurrentDateTime = timeOrZero(unix)
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return SystemRecord{}, err
	}

	rec = SystemRecord{ID: newID(), Name: name}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trading_systems (id, name, current_date_time) VALUES (?, ?, ?)`,
		rec.ID, name, unixOrZero(currentDT),
	)
	if err != nil {
		return SystemRecord{}, err
	}
	return rec, nil
}

// ListTradingSystems returns every stored system record, ordered by name.
func (s *SQLiteStore) ListTradingSystems(ctx context.Context) ([]SystemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, current_date_time FROM trading_systems ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SystemRecord
	for rows.Next() {
		var (
			rec  SystemRecord
			unix int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &unix); err != nil {
			return nil, err
		}
		rec.CurrentDateTime = timeOrZero(unix)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetMetrics returns the system's stored metrics document. A system without
// metrics yields an empty map.
func (s *SQLiteStore) GetMetrics(ctx context.Context, systemID string) (map[string]any, error) {
	var blob sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT metrics FROM trading_systems WHERE id = ?`, systemID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: system %s", domain.ErrNotFound, systemID)
	}
	if err != nil {
		return nil, err
	}
	metrics := map[string]any{}
	if blob.Valid && blob.String != "" {
		if err := json.Unmarshal([]byte(blob.String), &metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics for %s: %w", systemID, err)
		}
	}
	return metrics, nil
}

// UpdateCurrentDateTime advances the system's processed-through marker.
func (s *SQLiteStore) UpdateCurrentDateTime(ctx context.Context, systemID string, dt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trading_systems SET current_date_time = ? WHERE id = ?`,
		unixOrZero(dt), systemID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, systemID)
}

// UpdateMetrics replaces the system's metrics document.
func (s *SQLiteStore) UpdateMetrics(ctx context.Context, systemID string, metrics map[string]any) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics for %s: %w", systemID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE trading_systems SET metrics = ? WHERE id = ?`, string(data), systemID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, systemID)
}

// UpdateSizerData replaces the system's position-sizer summary.
func (s *SQLiteStore) UpdateSizerData(ctx context.Context, systemID string, data map[string]any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding sizer data for %s: %w", systemID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE trading_systems SET sizer_data = ? WHERE id = ?`, string(blob), systemID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, systemID)
}

// ResetSystemState drops orders, positions, and market states for the system.
func (s *SQLiteStore) ResetSystemState(ctx context.Context, systemID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"market_states", "orders", "current_positions", "position_lists"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE system_id = ?`, table), systemID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func requireRow(res sql.Result, systemID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: trading system %s", domain.ErrNotFound, systemID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// MarketStateStore implementation
// ---------------------------------------------------------------------------

// UpsertMarketState writes the record iff it advances the stored one: a
// strictly newer signal datetime always wins, an equal-or-newer one wins
// over a stored null state, and an equal one wins over a stored active state.
func (s *SQLiteStore) UpsertMarketState(ctx context.Context, systemID string, rec signal.Record) error {
	var orderBlob []byte
	if rec.Order != nil {
		var err error
		orderBlob, err = position.EncodeOrder(rec.Order)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO market_states
	(system_id, instrument_id, signal_dt, symbol, order_blob, periods_in_position, unrealised_return, market_state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET
	signal_dt           = excluded.signal_dt,
	symbol              = excluded.symbol,
	order_blob          = excluded.order_blob,
	periods_in_position = excluded.periods_in_position,
	unrealised_return   = excluded.unrealised_return,
	market_state        = excluded.market_state
WHERE market_states.signal_dt < excluded.signal_dt
   OR (market_states.signal_dt <= excluded.signal_dt AND market_states.market_state IN ('', 'null'))
   OR (market_states.signal_dt = excluded.signal_dt AND market_states.market_state = 'active')`,
		systemID, rec.InstrumentID, unixOrZero(rec.SignalDT), rec.Symbol,
		orderBlob, rec.PeriodsInPosition, rec.UnrealisedReturn.String(), string(rec.MarketState),
	)
	return err
}

// GetMarketState returns the stored record, or ErrNotFound.
func (s *SQLiteStore) GetMarketState(ctx context.Context, systemID, instrumentID string) (signal.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT instrument_id, signal_dt, symbol, order_blob, periods_in_position, unrealised_return, market_state
FROM market_states WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	)
	rec, err := scanMarketState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return signal.Record{}, fmt.Errorf("%w: market state for %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	return rec, err
}

// ListMarketStates returns every stored record for the system.
func (s *SQLiteStore) ListMarketStates(ctx context.Context, systemID string) ([]signal.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT instrument_id, signal_dt, symbol, order_blob, periods_in_position, unrealised_return, market_state
FROM market_states WHERE system_id = ? ORDER BY instrument_id`,
		systemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []signal.Record
	for rows.Next() {
		rec, err := scanMarketState(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarketState(row rowScanner) (signal.Record, error) {
	var (
		rec       signal.Record
		unix      int64
		orderBlob []byte
		ret       string
		state     string
	)
	err := row.Scan(&rec.InstrumentID, &unix, &rec.Symbol, &orderBlob, &rec.PeriodsInPosition, &ret, &state)
	if err != nil {
		return signal.Record{}, err
	}
	rec.SignalDT = timeOrZero(unix)
	rec.MarketState = domain.MarketState(state)
	if rec.UnrealisedReturn, err = decimal.NewFromString(ret); err != nil {
		return signal.Record{}, fmt.Errorf("decoding unrealised return %q: %w", ret, err)
	}
	if len(orderBlob) > 0 {
		if rec.Order, err = position.DecodeOrder(orderBlob); err != nil {
			return signal.Record{}, err
		}
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// UpsertOrder replaces the current order for the instrument. A nil order
// clears it.
func (s *SQLiteStore) UpsertOrder(ctx context.Context, systemID, instrumentID string, o *position.Order) error {
	if o == nil {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM orders WHERE system_id = ? AND instrument_id = ?`, systemID, instrumentID)
		return err
	}
	blob, err := position.EncodeOrder(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO orders (system_id, instrument_id, blob) VALUES (?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET blob = excluded.blob`,
		systemID, instrumentID, blob,
	)
	return err
}

// GetOrder returns the current order, or ErrNotFound.
func (s *SQLiteStore) GetOrder(ctx context.Context, systemID, instrumentID string) (*position.Order, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM orders WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order for %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	if err != nil {
		return nil, err
	}
	return position.DecodeOrder(blob)
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// UpsertPosition replaces the current position for the instrument. A nil
// position clears it.
func (s *SQLiteStore) UpsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error {
	if pos == nil {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM current_positions WHERE system_id = ? AND instrument_id = ?`, systemID, instrumentID)
		return err
	}
	blob, err := position.Encode(pos)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO current_positions (system_id, instrument_id, blob) VALUES (?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET blob = excluded.blob`,
		systemID, instrumentID, blob,
	)
	return err
}

// GetPosition returns the current position, or ErrNotFound.
func (s *SQLiteStore) GetPosition(ctx context.Context, systemID, instrumentID string) (*position.Position, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM current_positions WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: position for %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	if err != nil {
		return nil, err
	}
	return position.Decode(blob)
}

// InsertPosition appends one closed position to the instrument's history.
func (s *SQLiteStore) InsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error {
	blob, err := position.Encode(pos)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var listBlob []byte
	err = tx.QueryRowContext(ctx,
		`SELECT blob FROM position_lists WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	).Scan(&listBlob)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var list []json.RawMessage
	if len(listBlob) > 0 {
		if err := json.Unmarshal(listBlob, &list); err != nil {
			return fmt.Errorf("decoding position list for %s/%s: %w", systemID, instrumentID, err)
		}
	}
	list = append(list, json.RawMessage(blob))
	merged, err := json.Marshal(list)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO position_lists (system_id, instrument_id, blob) VALUES (?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET blob = excluded.blob`,
		systemID, instrumentID, merged,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertPositions replaces the instrument's history and sets its period count.
func (s *SQLiteStore) InsertPositions(ctx context.Context, systemID, instrumentID string, positions []*position.Position, numOfPeriods int) error {
	list := make([]json.RawMessage, 0, len(positions))
	for _, pos := range positions {
		blob, err := position.Encode(pos)
		if err != nil {
			return err
		}
		list = append(list, json.RawMessage(blob))
	}
	merged, err := json.Marshal(list)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO position_lists (system_id, instrument_id, blob, num_of_periods) VALUES (?, ?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET
	blob = excluded.blob, num_of_periods = excluded.num_of_periods`,
		systemID, instrumentID, merged, numOfPeriods,
	)
	return err
}

// GetPositions returns the instrument's history and its period count.
func (s *SQLiteStore) GetPositions(ctx context.Context, systemID, instrumentID string) ([]*position.Position, int, error) {
	var (
		blob    []byte
		periods int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT blob, num_of_periods FROM position_lists WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	).Scan(&blob, &periods)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: positions for %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	if err != nil {
		return nil, 0, err
	}
	positions, err := decodePositionList(blob)
	return positions, periods, err
}

// GetTradingSystemPositions returns the latest n positions across every
// instrument, ordered by entry datetime.
func (s *SQLiteStore) GetTradingSystemPositions(ctx context.Context, systemID string, n int) ([]*position.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blob FROM position_lists WHERE system_id = ? AND instrument_id != ''`, systemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pooled []*position.Position
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		positions, err := decodePositionList(blob)
		if err != nil {
			return nil, err
		}
		pooled = append(pooled, positions...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pooled, func(i, j int) bool {
		return pooled[i].EntryDT().Before(pooled[j].EntryDT())
	})
	if n > 0 && len(pooled) > n {
		pooled = pooled[len(pooled)-n:]
	}
	return pooled, nil
}

// IncrementNumOfPeriods adds n to the instrument's period count.
func (s *SQLiteStore) IncrementNumOfPeriods(ctx context.Context, systemID, instrumentID string, n int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO position_lists (system_id, instrument_id, num_of_periods) VALUES (?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET
	num_of_periods = position_lists.num_of_periods + excluded.num_of_periods`,
		systemID, instrumentID, n,
	)
	return err
}

func decodePositionList(blob []byte) ([]*position.Position, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, fmt.Errorf("decoding position list: %w", err)
	}
	positions := make([]*position.Position, 0, len(list))
	for _, raw := range list {
		pos, err := position.Decode(raw)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// ---------------------------------------------------------------------------
// ModelStore implementation
// ---------------------------------------------------------------------------

// InsertModel stores an opaque model blob for the instrument.
func (s *SQLiteStore) InsertModel(ctx context.Context, systemID, instrumentID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO models (system_id, instrument_id, blob) VALUES (?, ?, ?)
ON CONFLICT (system_id, instrument_id) DO UPDATE SET blob = excluded.blob`,
		systemID, instrumentID, blob,
	)
	return err
}

// GetModel returns the stored blob, or ErrNotFound.
func (s *SQLiteStore) GetModel(ctx context.Context, systemID, instrumentID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM models WHERE system_id = ? AND instrument_id = ?`,
		systemID, instrumentID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: model for %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}
