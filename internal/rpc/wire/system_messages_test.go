package wire

import (
	"bytes"
	"testing"
)

func TestSystemRecordRoundTrip(t *testing.T) {
	in := SystemRecord{ID: "sys-1", Name: "breakout-daily", Unix: 1678060800}
	var out SystemRecord
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed the record: got %+v, want %+v", out, in)
	}
}

func TestMarketStateRecordRoundTrip(t *testing.T) {
	in := MarketStateRecord{
		InstrumentID:     "inst-1",
		Symbol:           "AAPL",
		SignalUnix:       1678060800,
		OrderBlob:        []byte{0x01, 0x02, 0x03},
		Periods:          14,
		UnrealisedReturn: "3.75",
		MarketState:      "active",
	}
	var out MarketStateRecord
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out.InstrumentID != in.InstrumentID || out.Symbol != in.Symbol ||
		out.SignalUnix != in.SignalUnix || !bytes.Equal(out.OrderBlob, in.OrderBlob) ||
		out.Periods != in.Periods || out.UnrealisedReturn != in.UnrealisedReturn ||
		out.MarketState != in.MarketState {
		t.Errorf("round trip changed the record: got %+v, want %+v", out, in)
	}
}

func TestMarketStateListRoundTrip(t *testing.T) {
	in := MarketStateList{Records: []MarketStateRecord{
		{InstrumentID: "a", MarketState: "entry", SignalUnix: 100},
		{InstrumentID: "b", MarketState: "null", SignalUnix: 200},
	}}
	var out MarketStateList
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if len(out.Records) != 2 || out.Records[0].InstrumentID != "a" || out.Records[1].MarketState != "null" {
		t.Errorf("round trip changed the list: got %+v", out.Records)
	}
}

func TestBlobUpsertEmptyDataClears(t *testing.T) {
	// A clear request carries identifiers but no payload; the empty Data
	// must survive the trip as empty, not grow a zero-length field.
	in := BlobUpsert{SystemID: "sys-1", InstrumentID: "inst-1"}
	b := in.AppendWire(nil)
	var out BlobUpsert
	if err := out.ParseWire(b); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out.SystemID != "sys-1" || out.InstrumentID != "inst-1" || len(out.Data) != 0 {
		t.Errorf("round trip changed the upsert: got %+v", out)
	}
}

func TestPositionListUpsertRoundTrip(t *testing.T) {
	in := PositionListUpsert{
		SystemID:     "sys-1",
		InstrumentID: "inst-1",
		Blobs:        [][]byte{{0xAA}, {0xBB, 0xCC}},
		NumOfPeriods: 252,
	}
	var out PositionListUpsert
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out.SystemID != in.SystemID || out.InstrumentID != in.InstrumentID ||
		out.NumOfPeriods != in.NumOfPeriods || len(out.Blobs) != 2 ||
		!bytes.Equal(out.Blobs[0], in.Blobs[0]) || !bytes.Equal(out.Blobs[1], in.Blobs[1]) {
		t.Errorf("round trip changed the upsert: got %+v, want %+v", out, in)
	}
}

func TestPositionListResponsePreservesBlobOrder(t *testing.T) {
	in := PositionListResponse{Blobs: [][]byte{{1}, {2}, {3}}, NumOfPeriods: 10}
	var out PositionListResponse
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if len(out.Blobs) != 3 {
		t.Fatalf("got %d blobs, want 3", len(out.Blobs))
	}
	for i, want := range [][]byte{{1}, {2}, {3}} {
		if !bytes.Equal(out.Blobs[i], want) {
			t.Errorf("blob %d = %v, want %v", i, out.Blobs[i], want)
		}
	}
	if out.NumOfPeriods != 10 {
		t.Errorf("NumOfPeriods = %d, want 10", out.NumOfPeriods)
	}
}

func TestIncrementRequestRoundTrip(t *testing.T) {
	in := IncrementRequest{SystemID: "sys-1", InstrumentID: "inst-1", N: 5}
	var out IncrementRequest
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed the request: got %+v, want %+v", out, in)
	}
}
