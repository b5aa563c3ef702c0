package system

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/session"
	"tradesys/internal/signal"
	"tradesys/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(n int) time.Time {
	return time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func frameFromCloses(t *testing.T, instrumentID, symbol string, closes []float64) *domain.Frame {
	t.Helper()
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			InstrumentID: instrumentID,
			Symbol:       symbol,
			Timestamp:    day(i),
			Open:         c,
			High:         c + 1,
			Low:          c - 1,
			Close:        c,
			Volume:       1000,
		}
	}
	frame, err := domain.NewFrame(instrumentID, symbol, bars)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return frame
}

// breakoutEntry enters long on a new high over the lookback window with a
// limit order at the signal close.
func breakoutEntry(frame *domain.Frame, args session.Args) (*position.Order, error) {
	lookback := args.Int(domain.FieldEntryPeriodLookback, 5)
	n := frame.Len()
	if n < lookback {
		return nil, nil
	}
	last := frame.Last()
	for i := n - lookback; i < n; i++ {
		if frame.Bar(i).Close > last.Close {
			return nil, nil
		}
	}
	return position.NewLimitOrder(domain.MarketStateEntry, domain.DirectionLong, last.Timestamp, last.Close, 5)
}

// breakdownExit exits on a new low over the lookback window.
func breakdownExit(frame *domain.Frame, pos *position.Position, args session.Args) (*position.Order, error) {
	lookback := args.Int(domain.FieldExitPeriodLookback, 3)
	n := frame.Len()
	if n < lookback {
		return nil, nil
	}
	last := frame.Last()
	for i := n - lookback; i < n; i++ {
		if frame.Bar(i).Close < last.Close {
			return nil, nil
		}
	}
	return position.NewMarketOrder(domain.MarketStateExit, pos.Direction(), last.Timestamp)
}

func testRunConfig() RunConfig {
	return RunConfig{
		StartCapital:      10000,
		FixedPositionSize: true,
		EntryArgs: session.Args{
			domain.FieldReqPeriodIters:      5,
			domain.FieldEntryPeriodLookback: 5,
		},
		ExitArgs: session.Args{domain.FieldExitPeriodLookback: 3},
	}
}

// memStore is an in-memory TradingSystemStore that counts state writes.
type memStore struct {
	rec        store.SystemRecord
	writes     int
	orders     map[string]*position.Order
	positions  map[string]*position.Position
	lists      map[string][]*position.Position
	periods    map[string]int
	states     map[string]signal.Record
	metricsDoc map[string]any
	sizerData  map[string]any
}

var _ store.TradingSystemStore = (*memStore)(nil)

func newMemStore(name string, currentDT time.Time) *memStore {
	return &memStore{
		rec:       store.SystemRecord{ID: "sys-1", Name: name, CurrentDateTime: currentDT},
		orders:    map[string]*position.Order{},
		positions: map[string]*position.Position{},
		lists:     map[string][]*position.Position{},
		periods:   map[string]int{},
		states:    map[string]signal.Record{},
	}
}

func (m *memStore) GetOrInsertTradingSystem(_ context.Context, name string, _ time.Time) (store.SystemRecord, error) {
	return m.rec, nil
}

func (m *memStore) UpdateCurrentDateTime(_ context.Context, _ string, dt time.Time) error {
	m.writes++
	m.rec.CurrentDateTime = dt
	return nil
}

func (m *memStore) UpdateMetrics(_ context.Context, _ string, metrics map[string]any) error {
	m.writes++
	m.metricsDoc = metrics
	return nil
}

func (m *memStore) UpdateSizerData(_ context.Context, _ string, data map[string]any) error {
	m.writes++
	m.sizerData = data
	return nil
}

func (m *memStore) ResetSystemState(_ context.Context, _ string) error {
	m.orders = map[string]*position.Order{}
	m.positions = map[string]*position.Position{}
	m.lists = map[string][]*position.Position{}
	m.periods = map[string]int{}
	m.states = map[string]signal.Record{}
	return nil
}

func (m *memStore) UpsertMarketState(_ context.Context, _ string, rec signal.Record) error {
	m.writes++
	m.states[rec.InstrumentID] = rec
	return nil
}

func (m *memStore) GetMarketState(_ context.Context, _, instrumentID string) (signal.Record, error) {
	rec, ok := m.states[instrumentID]
	if !ok {
		return signal.Record{}, fmt.Errorf("%w: market state %s", domain.ErrNotFound, instrumentID)
	}
	return rec, nil
}

func (m *memStore) ListMarketStates(_ context.Context, _ string) ([]signal.Record, error) {
	recs := make([]signal.Record, 0, len(m.states))
	for _, rec := range m.states {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (m *memStore) UpsertOrder(_ context.Context, _, instrumentID string, o *position.Order) error {
	m.writes++
	if o == nil {
		delete(m.orders, instrumentID)
		return nil
	}
	m.orders[instrumentID] = o
	return nil
}

func (m *memStore) GetOrder(_ context.Context, _, instrumentID string) (*position.Order, error) {
	o, ok := m.orders[instrumentID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, instrumentID)
	}
	return o, nil
}

func (m *memStore) UpsertPosition(_ context.Context, _, instrumentID string, pos *position.Position) error {
	m.writes++
	if pos == nil {
		delete(m.positions, instrumentID)
		return nil
	}
	m.positions[instrumentID] = pos
	return nil
}

func (m *memStore) GetPosition(_ context.Context, _, instrumentID string) (*position.Position, error) {
	pos, ok := m.positions[instrumentID]
	if !ok {
		return nil, fmt.Errorf("%w: position %s", domain.ErrNotFound, instrumentID)
	}
	return pos, nil
}

func (m *memStore) InsertPosition(_ context.Context, _, instrumentID string, pos *position.Position) error {
	m.writes++
	m.lists[instrumentID] = append(m.lists[instrumentID], pos)
	return nil
}

func (m *memStore) InsertPositions(_ context.Context, _, instrumentID string, positions []*position.Position, numOfPeriods int) error {
	m.writes++
	m.lists[instrumentID] = positions
	m.periods[instrumentID] = numOfPeriods
	return nil
}

func (m *memStore) GetPositions(_ context.Context, _, instrumentID string) ([]*position.Position, int, error) {
	list, ok := m.lists[instrumentID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: positions %s", domain.ErrNotFound, instrumentID)
	}
	return list, m.periods[instrumentID], nil
}

func (m *memStore) GetTradingSystemPositions(_ context.Context, _ string, n int) ([]*position.Position, error) {
	var pooled []*position.Position
	for instrumentID, list := range m.lists {
		if instrumentID == "" {
			continue
		}
		pooled = append(pooled, list...)
	}
	if n > 0 && len(pooled) > n {
		pooled = pooled[len(pooled)-n:]
	}
	return pooled, nil
}

func (m *memStore) IncrementNumOfPeriods(_ context.Context, _, instrumentID string, n int) error {
	m.writes++
	m.periods[instrumentID] += n
	return nil
}

func (m *memStore) InsertModel(_ context.Context, _, instrumentID string, blob []byte) error {
	m.writes++
	return nil
}

func (m *memStore) GetModel(_ context.Context, _, _ string) ([]byte, error) {
	return nil, domain.ErrNotFound
}

// trendCloses holds two round trips after the warm-up window and ends on a
// fresh breakout, so a signal-generating backtest emits an entry record for
// the last bar.
var trendCloses = []float64{10, 10, 10, 10, 10, 10, 10, 13, 14, 12, 11, 10, 9, 9, 13}

func TestRunBacktestPersists(t *testing.T) {
	st := newMemStore("bt", time.Time{})
	ts := New("sys-1", "bt", breakoutEntry, breakdownExit, st, testLogger())

	frame := frameFromCloses(t, "inst-1", "AAA", trendCloses)
	cfg := BacktestConfig{
		RunConfig:            testRunConfig(),
		GenerateSignals:      true,
		PersistPositionLists: true,
		Persist:              true,
	}
	handler, err := ts.RunBacktest(context.Background(), []*domain.Frame{frame}, cfg)
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}

	list, periods, err := st.GetPositions(context.Background(), "sys-1", "inst-1")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("no positions persisted")
	}
	if periods == 0 {
		t.Error("num_of_periods not persisted")
	}
	if _, ok := st.lists[""]; !ok {
		t.Error("pooled position list not persisted")
	}
	if st.metricsDoc == nil {
		t.Error("metrics not persisted")
	}
	if len(handler.Records()) == 0 {
		t.Error("no signal records emitted")
	}
	if len(st.states) == 0 {
		t.Error("market states not persisted")
	}
}

func TestRunBacktestDropsShortInstrument(t *testing.T) {
	st := newMemStore("bt", time.Time{})
	ts := New("sys-1", "bt", breakoutEntry, breakdownExit, st, testLogger())

	frames := []*domain.Frame{
		frameFromCloses(t, "inst-short", "SHORT", []float64{10, 10, 10}),
		frameFromCloses(t, "inst-1", "AAA", trendCloses),
	}
	cfg := BacktestConfig{RunConfig: testRunConfig(), PersistPositionLists: true}
	if _, err := ts.RunBacktest(context.Background(), frames, cfg); err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if _, ok := st.lists["inst-short"]; ok {
		t.Error("short instrument should be dropped, not persisted")
	}
	if _, ok := st.lists["inst-1"]; !ok {
		t.Error("healthy instrument missing from persistence")
	}
}

func TestRunLivePlacesAndFillsEntry(t *testing.T) {
	st := newMemStore("live", time.Time{})
	ts := New("sys-1", "live", breakoutEntry, breakdownExit, st, testLogger())
	ctx := context.Background()
	cfg := testRunConfig()

	// Day one: breakout on the last bar places a limit order.
	signalFrame := frameFromCloses(t, "inst-1", "AAA", []float64{10, 10, 10, 10, 10, 12})
	if _, err := ts.RunLive(ctx, []*domain.Frame{signalFrame}, cfg); err != nil {
		t.Fatalf("RunLive (signal day): %v", err)
	}
	order, err := st.GetOrder(ctx, "sys-1", "inst-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !order.Active || !order.IsEntry() || order.Price != 12 {
		t.Fatalf("unexpected order %+v", order)
	}

	// Day two: the limit fills against the new bar.
	fillFrame := frameFromCloses(t, "inst-1", "AAA", []float64{10, 10, 10, 10, 10, 12, 12.5})
	if _, err := ts.RunLive(ctx, []*domain.Frame{fillFrame}, cfg); err != nil {
		t.Fatalf("RunLive (fill day): %v", err)
	}
	pos, err := st.GetPosition(ctx, "sys-1", "inst-1")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !pos.Active() {
		t.Fatal("position should be active after fill")
	}
	if !pos.EntryPrice().Equal(decimal.NewFromFloat(12)) {
		t.Errorf("entry price = %s, want 12", pos.EntryPrice())
	}
	// No prior exits: the whole frame counts toward num_of_periods.
	if st.periods["inst-1"] != fillFrame.Len() {
		t.Errorf("num_of_periods = %d, want %d", st.periods["inst-1"], fillFrame.Len())
	}
}

func TestRunLiveSkipsConsumedBar(t *testing.T) {
	st := newMemStore("live", time.Time{})
	ts := New("sys-1", "live", breakoutEntry, breakdownExit, st, testLogger())
	ctx := context.Background()
	cfg := testRunConfig()

	frame := frameFromCloses(t, "inst-1", "AAA", []float64{10, 10, 10, 10, 10, 12})
	if _, err := ts.RunLive(ctx, []*domain.Frame{frame}, cfg); err != nil {
		t.Fatalf("RunLive: %v", err)
	}
	writes := st.writes

	// Same frame again: the stored order's datetime matches the last bar.
	if _, err := ts.RunLive(ctx, []*domain.Frame{frame}, cfg); err != nil {
		t.Fatalf("RunLive (repeat): %v", err)
	}
	if st.writes != writes {
		t.Errorf("repeat run wrote %d times", st.writes-writes)
	}
}

func TestRunLiveExitPersistsClosedPosition(t *testing.T) {
	st := newMemStore("live", time.Time{})
	ts := New("sys-1", "live", breakoutEntry, breakdownExit, st, testLogger())
	ctx := context.Background()
	cfg := testRunConfig()

	closes := []float64{10, 10, 10, 10, 12, 13, 12, 11, 10}
	frame := frameFromCloses(t, "inst-1", "AAA", closes)

	// Seed the store with an active position current through the
	// penultimate bar and a pending exit order from its signal.
	pos := position.NewPosition(position.Spec{
		Capital:           decimal.NewFromFloat(10000),
		Direction:         domain.DirectionLong,
		FixedPositionSize: true,
	}, day(5))
	if _, err := pos.EnterMarket(decimal.NewFromFloat(12), day(6)); err != nil {
		t.Fatalf("EnterMarket: %v", err)
	}
	if _, err := pos.Update(decimal.NewFromFloat(11), day(7)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := st.UpsertPosition(ctx, "sys-1", "inst-1", pos); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	exitOrder, err := position.NewMarketOrder(domain.MarketStateExit, domain.DirectionLong, day(7))
	if err != nil {
		t.Fatalf("NewMarketOrder: %v", err)
	}
	if err := st.UpsertOrder(ctx, "sys-1", "inst-1", exitOrder); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}

	if _, err := ts.RunLive(ctx, []*domain.Frame{frame}, cfg); err != nil {
		t.Fatalf("RunLive: %v", err)
	}

	history := st.lists["inst-1"]
	if len(history) != 1 {
		t.Fatalf("closed position history has %d entries, want 1", len(history))
	}
	if history[0].Active() {
		t.Error("persisted position still active")
	}
	// Market exit fills at the last bar's open.
	if !history[0].ExitPrice().Equal(decimal.NewFromFloat(10)) {
		t.Errorf("exit price = %s, want 10", history[0].ExitPrice())
	}
	stored, err := st.GetPosition(ctx, "sys-1", "inst-1")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if stored.Active() {
		t.Error("current position should be the closed marker")
	}
	if !stored.CurrentDT().Equal(frame.LastDT()) {
		t.Errorf("closed marker datetime = %v, want %v", stored.CurrentDT(), frame.LastDT())
	}
}
