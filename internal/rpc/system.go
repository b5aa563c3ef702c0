package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/rpc/wire"
	"tradesys/internal/signal"
	"tradesys/internal/store"
)

// TradingSystemClient persists trading-system state through the remote
// persistence service. It satisfies store.TradingSystemStore, so the engine
// runs against it exactly as it runs against SQLite. Orders, positions, and
// models travel as the same opaque blobs the local store writes.
type TradingSystemClient struct {
	conn *grpc.ClientConn
}

var _ store.TradingSystemStore = (*TradingSystemClient)(nil)

// NewTradingSystemClient wraps an open connection.
func NewTradingSystemClient(conn *grpc.ClientConn) *TradingSystemClient {
	return &TradingSystemClient{conn: conn}
}

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

func (c *TradingSystemClient) ack(ctx context.Context, method string, req wire.Message) error {
	var ack wire.Ack
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/"+method, req, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("%s rejected: %s", method, ack.Message)
	}
	return nil
}

func (c *TradingSystemClient) GetOrInsertTradingSystem(ctx context.Context, name string, currentDT time.Time) (store.SystemRecord, error) {
	req := &wire.SystemRequest{Name: name, Unix: unixOrZero(currentDT)}
	var rec wire.SystemRecord
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetOrInsertTradingSystem", req, &rec); err != nil {
		return store.SystemRecord{}, err
	}
	if rec.ID == "" {
		return store.SystemRecord{}, fmt.Errorf("registering system %s: empty record", name)
	}
	return store.SystemRecord{
		ID:              rec.ID,
		Name:            rec.Name,
		CurrentDateTime: timeOrZero(rec.Unix),
	}, nil
}

func (c *TradingSystemClient) UpdateCurrentDateTime(ctx context.Context, systemID string, dt time.Time) error {
	return c.ack(ctx, "UpdateCurrentDateTime", &wire.SystemDateTime{SystemID: systemID, Unix: unixOrZero(dt)})
}

func (c *TradingSystemClient) UpdateMetrics(ctx context.Context, systemID string, metrics map[string]any) error {
	doc, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	return c.ack(ctx, "UpdateMetrics", &wire.SystemDocument{SystemID: systemID, JSON: doc})
}

func (c *TradingSystemClient) UpdateSizerData(ctx context.Context, systemID string, data map[string]any) error {
	doc, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding sizer data: %w", err)
	}
	return c.ack(ctx, "UpdateSizerData", &wire.SystemDocument{SystemID: systemID, JSON: doc})
}

func (c *TradingSystemClient) ResetSystemState(ctx context.Context, systemID string) error {
	return c.ack(ctx, "ResetSystemState", &wire.SystemInstrumentRequest{SystemID: systemID})
}

func toWireMarketState(rec signal.Record) (wire.MarketStateRecord, error) {
	w := wire.MarketStateRecord{
		InstrumentID:     rec.InstrumentID,
		Symbol:           rec.Symbol,
		SignalUnix:       unixOrZero(rec.SignalDT),
		Periods:          int64(rec.PeriodsInPosition),
		UnrealisedReturn: rec.UnrealisedReturn.String(),
		MarketState:      string(rec.MarketState),
	}
	if rec.Order != nil {
		blob, err := position.EncodeOrder(rec.Order)
		if err != nil {
			return wire.MarketStateRecord{}, fmt.Errorf("encoding order for %s: %w", rec.InstrumentID, err)
		}
		w.OrderBlob = blob
	}
	return w, nil
}

func fromWireMarketState(w wire.MarketStateRecord) (signal.Record, error) {
	rec := signal.Record{
		InstrumentID:      w.InstrumentID,
		Symbol:            w.Symbol,
		SignalDT:          timeOrZero(w.SignalUnix),
		PeriodsInPosition: int(w.Periods),
		MarketState:       domain.MarketState(w.MarketState),
	}
	if w.UnrealisedReturn != "" {
		ret, err := decimal.NewFromString(w.UnrealisedReturn)
		if err != nil {
			return signal.Record{}, fmt.Errorf("parsing unrealised return for %s: %w", w.InstrumentID, err)
		}
		rec.UnrealisedReturn = ret
	}
	if len(w.OrderBlob) > 0 {
		o, err := position.DecodeOrder(w.OrderBlob)
		if err != nil {
			return signal.Record{}, fmt.Errorf("decoding order for %s: %w", w.InstrumentID, err)
		}
		rec.Order = o
	}
	return rec, nil
}

func (c *TradingSystemClient) UpsertMarketState(ctx context.Context, systemID string, rec signal.Record) error {
	w, err := toWireMarketState(rec)
	if err != nil {
		return err
	}
	return c.ack(ctx, "UpsertMarketState", &wire.MarketStateUpsert{SystemID: systemID, Record: w})
}

func (c *TradingSystemClient) GetMarketState(ctx context.Context, systemID, instrumentID string) (signal.Record, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var w wire.MarketStateRecord
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetMarketState", req, &w); err != nil {
		return signal.Record{}, err
	}
	if w.InstrumentID == "" {
		return signal.Record{}, fmt.Errorf("%w: market state %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	return fromWireMarketState(w)
}

func (c *TradingSystemClient) ListMarketStates(ctx context.Context, systemID string) ([]signal.Record, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID}
	var list wire.MarketStateList
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/ListMarketStates", req, &list); err != nil {
		return nil, err
	}
	recs := make([]signal.Record, len(list.Records))
	for i, w := range list.Records {
		rec, err := fromWireMarketState(w)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	return recs, nil
}

func (c *TradingSystemClient) UpsertOrder(ctx context.Context, systemID, instrumentID string, o *position.Order) error {
	req := &wire.BlobUpsert{SystemID: systemID, InstrumentID: instrumentID}
	if o != nil {
		blob, err := position.EncodeOrder(o)
		if err != nil {
			return fmt.Errorf("encoding order for %s: %w", instrumentID, err)
		}
		req.Data = blob
	}
	return c.ack(ctx, "UpsertOrder", req)
}

func (c *TradingSystemClient) GetOrder(ctx context.Context, systemID, instrumentID string) (*position.Order, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var blob wire.Blob
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetOrder", req, &blob); err != nil {
		return nil, err
	}
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: order %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	return position.DecodeOrder(blob.Data)
}

func (c *TradingSystemClient) UpsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error {
	req := &wire.BlobUpsert{SystemID: systemID, InstrumentID: instrumentID}
	if pos != nil {
		blob, err := position.Encode(pos)
		if err != nil {
			return fmt.Errorf("encoding position for %s: %w", instrumentID, err)
		}
		req.Data = blob
	}
	return c.ack(ctx, "UpsertPosition", req)
}

func (c *TradingSystemClient) GetPosition(ctx context.Context, systemID, instrumentID string) (*position.Position, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var blob wire.Blob
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetPosition", req, &blob); err != nil {
		return nil, err
	}
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: position %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	return position.Decode(blob.Data)
}

func (c *TradingSystemClient) InsertPosition(ctx context.Context, systemID, instrumentID string, pos *position.Position) error {
	blob, err := position.Encode(pos)
	if err != nil {
		return fmt.Errorf("encoding position for %s: %w", instrumentID, err)
	}
	return c.ack(ctx, "InsertPosition", &wire.BlobUpsert{SystemID: systemID, InstrumentID: instrumentID, Data: blob})
}

func (c *TradingSystemClient) InsertPositions(ctx context.Context, systemID, instrumentID string, positions []*position.Position, numOfPeriods int) error {
	req := &wire.PositionListUpsert{
		SystemID:     systemID,
		InstrumentID: instrumentID,
		Blobs:        make([][]byte, len(positions)),
		NumOfPeriods: int64(numOfPeriods),
	}
	for i, pos := range positions {
		blob, err := position.Encode(pos)
		if err != nil {
			return fmt.Errorf("encoding position %d for %s: %w", i, instrumentID, err)
		}
		req.Blobs[i] = blob
	}
	return c.ack(ctx, "InsertPositions", req)
}

func (c *TradingSystemClient) GetPositions(ctx context.Context, systemID, instrumentID string) ([]*position.Position, int, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var resp wire.PositionListResponse
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetPositions", req, &resp); err != nil {
		return nil, 0, err
	}
	positions, err := decodePositions(resp.Blobs)
	if err != nil {
		return nil, 0, err
	}
	return positions, int(resp.NumOfPeriods), nil
}

func (c *TradingSystemClient) GetTradingSystemPositions(ctx context.Context, systemID string, n int) ([]*position.Position, error) {
	req := &wire.PositionsQuery{SystemID: systemID, N: int64(n)}
	var resp wire.PositionListResponse
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetTradingSystemPositions", req, &resp); err != nil {
		return nil, err
	}
	return decodePositions(resp.Blobs)
}

func decodePositions(blobs [][]byte) ([]*position.Position, error) {
	positions := make([]*position.Position, len(blobs))
	for i, blob := range blobs {
		pos, err := position.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding position %d: %w", i, err)
		}
		positions[i] = pos
	}
	return positions, nil
}

func (c *TradingSystemClient) IncrementNumOfPeriods(ctx context.Context, systemID, instrumentID string, n int) error {
	return c.ack(ctx, "IncrementNumOfPeriods", &wire.IncrementRequest{SystemID: systemID, InstrumentID: instrumentID, N: int64(n)})
}

func (c *TradingSystemClient) InsertModel(ctx context.Context, systemID, instrumentID string, blob []byte) error {
	return c.ack(ctx, "InsertModel", &wire.BlobUpsert{SystemID: systemID, InstrumentID: instrumentID, Data: blob})
}

func (c *TradingSystemClient) GetModel(ctx context.Context, systemID, instrumentID string) ([]byte, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var blob wire.Blob
	if err := invoke(ctx, c.conn, "/tradesys.TradingSystemService/GetModel", req, &blob); err != nil {
		return nil, err
	}
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: model %s/%s", domain.ErrNotFound, systemID, instrumentID)
	}
	return blob.Data, nil
}
