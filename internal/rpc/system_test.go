package rpc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
	"tradesys/internal/signal"
)

func TestMarketStateRecordConversionRoundTrip(t *testing.T) {
	order, err := position.NewLimitOrder(
		domain.MarketStateExit, domain.DirectionLong,
		time.Date(2023, 3, 6, 0, 0, 0, 0, time.UTC), 50, 2,
	)
	if err != nil {
		t.Fatalf("NewLimitOrder: %v", err)
	}
	in := signal.Record{
		SignalDT:          time.Date(2023, 3, 7, 0, 0, 0, 0, time.UTC),
		InstrumentID:      "inst-1",
		Symbol:            "AAPL",
		Order:             order,
		PeriodsInPosition: 14,
		UnrealisedReturn:  decimal.RequireFromString("3.75"),
		MarketState:       domain.MarketStateActive,
	}

	w, err := toWireMarketState(in)
	if err != nil {
		t.Fatalf("toWireMarketState: %v", err)
	}
	var parsed = w
	if err := parsed.ParseWire(w.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	out, err := fromWireMarketState(parsed)
	if err != nil {
		t.Fatalf("fromWireMarketState: %v", err)
	}

	if !out.SignalDT.Equal(in.SignalDT) || out.InstrumentID != in.InstrumentID ||
		out.Symbol != in.Symbol || out.PeriodsInPosition != in.PeriodsInPosition ||
		out.MarketState != in.MarketState {
		t.Errorf("round trip changed the record: got %+v, want %+v", out, in)
	}
	if !out.UnrealisedReturn.Equal(in.UnrealisedReturn) {
		t.Errorf("UnrealisedReturn = %s, want %s", out.UnrealisedReturn, in.UnrealisedReturn)
	}
	if out.Order == nil {
		t.Fatal("order lost in round trip")
	}
	if out.Order.Type != order.Type || out.Order.Price != order.Price ||
		out.Order.MaxDuration != order.MaxDuration || !out.Order.Active {
		t.Errorf("order changed in round trip: got %+v, want %+v", out.Order, order)
	}
}

func TestMarketStateRecordConversionNullState(t *testing.T) {
	in := signal.Record{
		SignalDT:     time.Date(2023, 3, 7, 0, 0, 0, 0, time.UTC),
		InstrumentID: "inst-2",
		Symbol:       "MSFT",
		MarketState:  domain.MarketStateNull,
	}
	w, err := toWireMarketState(in)
	if err != nil {
		t.Fatalf("toWireMarketState: %v", err)
	}
	if len(w.OrderBlob) != 0 {
		t.Errorf("null state should carry no order blob, got %d bytes", len(w.OrderBlob))
	}
	out, err := fromWireMarketState(w)
	if err != nil {
		t.Fatalf("fromWireMarketState: %v", err)
	}
	if out.Order != nil {
		t.Errorf("order should stay nil, got %+v", out.Order)
	}
	if !out.UnrealisedReturn.IsZero() {
		t.Errorf("UnrealisedReturn = %s, want 0", out.UnrealisedReturn)
	}
}

func TestUnixConversionKeepsZeroTime(t *testing.T) {
	if got := unixOrZero(time.Time{}); got != 0 {
		t.Errorf("unixOrZero(zero) = %d, want 0", got)
	}
	if got := timeOrZero(0); !got.IsZero() {
		t.Errorf("timeOrZero(0) = %v, want zero time", got)
	}
	dt := time.Date(2023, 3, 6, 0, 0, 0, 0, time.UTC)
	if got := timeOrZero(unixOrZero(dt)); !got.Equal(dt) {
		t.Errorf("round trip = %v, want %v", got, dt)
	}
}
