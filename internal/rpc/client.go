package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"tradesys/internal/domain"
	"tradesys/internal/rpc/wire"
)

// DialConfig describes one service connection.
type DialConfig struct {
	Addr string

	// TLS secures the channel; nil dials in plaintext, for tests and local
	// development only.
	TLS credentials.TransportCredentials

	// RetryAttempts caps how often a failed call is retried. Zero disables
	// retrying.
	RetryAttempts int
	RetryBaseWait time.Duration
}

// Dial opens a client connection with the service's keepalive and retry
// policy applied.
func Dial(cfg DialConfig, log *slog.Logger) (*grpc.ClientConn, error) {
	creds := cfg.TLS
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if cfg.RetryAttempts > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(
			RetryInterceptor(cfg.RetryAttempts, cfg.RetryBaseWait, log),
		))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Addr, err)
	}
	return conn, nil
}

// invoke performs one unary call in the hand-written wire codec.
func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req, resp wire.Message) error {
	return conn.Invoke(ctx, method, req, resp, grpc.ForceCodec(wire.Codec{}))
}

func toWirePrices(bars []domain.Bar) []wire.Price {
	prices := make([]wire.Price, len(bars))
	for i, b := range bars {
		prices[i] = wire.Price{
			InstrumentID: b.InstrumentID,
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			Timestamp:    b.Timestamp.UTC().Unix(),
		}
	}
	return prices
}

func fromWirePrices(prices []wire.Price) []domain.Bar {
	bars := make([]domain.Bar, len(prices))
	for i, p := range prices {
		bars[i] = domain.Bar{
			InstrumentID: p.InstrumentID,
			Timestamp:    time.Unix(p.Timestamp, 0).UTC(),
			Open:         p.Open,
			High:         p.High,
			Low:          p.Low,
			Close:        p.Close,
			Volume:       p.Volume,
		}
	}
	return bars
}

// DataFrameClient talks to the remote frame cache.
type DataFrameClient struct {
	conn *grpc.ClientConn
}

var _ DataFrameService = (*DataFrameClient)(nil)

// NewDataFrameClient wraps an open connection.
func NewDataFrameClient(conn *grpc.ClientConn) *DataFrameClient {
	return &DataFrameClient{conn: conn}
}

func (c *DataFrameClient) MapTradingSystemInstrument(ctx context.Context, systemID, instrumentID string) error {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var ack wire.Ack
	if err := invoke(ctx, c.conn, "/tradesys.DataFrameService/MapTradingSystemInstrument", req, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("mapping %s/%s rejected: %s", systemID, instrumentID, ack.Message)
	}
	return nil
}

func (c *DataFrameClient) PushPriceStream(ctx context.Context, bars []domain.Bar) (int, error) {
	req := &wire.PriceList{Prices: toWirePrices(bars)}
	var count wire.Count
	if err := invoke(ctx, c.conn, "/tradesys.DataFrameService/PushPriceStream", req, &count); err != nil {
		return 0, err
	}
	return int(count.N), nil
}

func (c *DataFrameClient) SetMinimumRows(ctx context.Context, systemID string, rows int) error {
	req := &wire.MinimumRowsRequest{SystemID: systemID, Rows: int64(rows)}
	var ack wire.Ack
	if err := invoke(ctx, c.conn, "/tradesys.DataFrameService/SetMinimumRows", req, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("minimum rows for %s rejected: %s", systemID, ack.Message)
	}
	return nil
}

func (c *DataFrameClient) CheckPresence(ctx context.Context, systemID, instrumentID string) (bool, error) {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var presence wire.Presence
	if err := invoke(ctx, c.conn, "/tradesys.DataFrameService/CheckPresence", req, &presence); err != nil {
		return false, err
	}
	return presence.Present, nil
}

func (c *DataFrameClient) Evict(ctx context.Context, systemID, instrumentID string) error {
	req := &wire.SystemInstrumentRequest{SystemID: systemID, InstrumentID: instrumentID}
	var ack wire.Ack
	return invoke(ctx, c.conn, "/tradesys.DataFrameService/Evict", req, &ack)
}

func (c *DataFrameClient) GetFrame(ctx context.Context, systemID, instrumentID string, nRows int, exclude []string) ([]domain.Bar, error) {
	req := &wire.FrameRequest{
		SystemID:     systemID,
		InstrumentID: instrumentID,
		NRows:        int64(nRows),
		Exclude:      exclude,
	}
	var list wire.PriceList
	if err := invoke(ctx, c.conn, "/tradesys.DataFrameService/GetFrame", req, &list); err != nil {
		return nil, err
	}
	return fromWirePrices(list.Prices), nil
}

// SecuritiesClient talks to the remote instrument and price catalogue.
type SecuritiesClient struct {
	conn *grpc.ClientConn
}

var _ SecuritiesService = (*SecuritiesClient)(nil)

// NewSecuritiesClient wraps an open connection.
func NewSecuritiesClient(conn *grpc.ClientConn) *SecuritiesClient {
	return &SecuritiesClient{conn: conn}
}

func (c *SecuritiesClient) GetExchanges(ctx context.Context) ([]Exchange, error) {
	var list wire.ExchangeList
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/GetExchanges", &wire.NameRequest{}, &list); err != nil {
		return nil, err
	}
	exchanges := make([]Exchange, len(list.Exchanges))
	for i, e := range list.Exchanges {
		exchanges[i] = Exchange{ID: e.ID, Name: e.Name, Currency: e.Currency}
	}
	return exchanges, nil
}

func (c *SecuritiesClient) GetExchangeInstruments(ctx context.Context, exchangeID string) ([]domain.Instrument, error) {
	return c.instrumentList(ctx, "/tradesys.SecuritiesService/GetExchangeInstruments", exchangeID)
}

func (c *SecuritiesClient) GetMarketListInstruments(ctx context.Context, name string) ([]domain.Instrument, error) {
	return c.instrumentList(ctx, "/tradesys.SecuritiesService/GetMarketListInstruments", name)
}

func (c *SecuritiesClient) instrumentList(ctx context.Context, method, name string) ([]domain.Instrument, error) {
	var list wire.InstrumentList
	if err := invoke(ctx, c.conn, method, &wire.NameRequest{Name: name}, &list); err != nil {
		return nil, err
	}
	instruments := make([]domain.Instrument, len(list.Instruments))
	for i, inst := range list.Instruments {
		instruments[i] = domain.Instrument{ID: inst.ID, Symbol: inst.Symbol, Exchange: inst.Exchange}
	}
	return instruments, nil
}

func (c *SecuritiesClient) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	var inst wire.Instrument
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/GetInstrument", &wire.NameRequest{Name: symbol}, &inst); err != nil {
		return domain.Instrument{}, err
	}
	if inst.ID == "" {
		return domain.Instrument{}, fmt.Errorf("%w: instrument %s", domain.ErrNotFound, symbol)
	}
	return domain.Instrument{ID: inst.ID, Symbol: inst.Symbol, Exchange: inst.Exchange}, nil
}

func (c *SecuritiesClient) GetDateTime(ctx context.Context, instrumentID string, bound Bound) (time.Time, error) {
	req := &wire.DateTimeRequest{InstrumentID: instrumentID, Bound: wire.DateTimeBound(bound)}
	var resp wire.DateTimeResponse
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/GetDateTime", req, &resp); err != nil {
		return time.Time{}, err
	}
	if resp.Unix == 0 {
		return time.Time{}, nil
	}
	return time.Unix(resp.Unix, 0).UTC(), nil
}

func (c *SecuritiesClient) GetLastDate(ctx context.Context, symbol1, symbol2 string) (time.Time, error) {
	req := &wire.LastDateRequest{Symbol1: symbol1, Symbol2: symbol2}
	var resp wire.DateTimeResponse
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/GetLastDate", req, &resp); err != nil {
		return time.Time{}, err
	}
	if resp.Unix == 0 {
		return time.Time{}, nil
	}
	return time.Unix(resp.Unix, 0).UTC(), nil
}

func (c *SecuritiesClient) GetPriceData(ctx context.Context, instrumentID string, start, end time.Time) ([]domain.Bar, error) {
	req := &wire.PriceDataRequest{
		InstrumentID: instrumentID,
		Start:        start.UTC().Unix(),
		End:          end.UTC().Unix(),
	}
	var list wire.PriceList
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/GetPriceData", req, &list); err != nil {
		return nil, err
	}
	return fromWirePrices(list.Prices), nil
}

func (c *SecuritiesClient) InsertPriceData(ctx context.Context, bars []domain.Bar) (int, error) {
	req := &wire.PriceList{Prices: toWirePrices(bars)}
	var count wire.Count
	if err := invoke(ctx, c.conn, "/tradesys.SecuritiesService/InsertPriceData", req, &count); err != nil {
		return 0, err
	}
	return int(count.N), nil
}
