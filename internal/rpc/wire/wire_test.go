package wire

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestPriceRoundTrip(t *testing.T) {
	in := Price{
		InstrumentID: "inst-1",
		Open:         10.5, High: 11.25, Low: 9.75, Close: 11,
		Volume:    123456,
		Timestamp: 1678060800,
	}
	var out Price
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed the price: got %+v, want %+v", out, in)
	}
}

func TestPriceListRoundTrip(t *testing.T) {
	in := PriceList{Prices: []Price{
		{InstrumentID: "a", Close: 1, Timestamp: 100},
		{InstrumentID: "b", Close: 2, Timestamp: 200},
	}}
	var out PriceList
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if len(out.Prices) != 2 || out.Prices[0] != in.Prices[0] || out.Prices[1] != in.Prices[1] {
		t.Errorf("round trip changed the list: got %+v", out.Prices)
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	b := (&Price{InstrumentID: "inst-1", Close: 10}).AppendWire(nil)
	// A field number this decoder has never heard of.
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from the future")

	var out Price
	if err := out.ParseWire(b); err != nil {
		t.Fatalf("ParseWire with unknown field: %v", err)
	}
	if out.InstrumentID != "inst-1" || out.Close != 10 {
		t.Errorf("known fields lost: %+v", out)
	}
}

func TestFrameRequestRepeatedExclude(t *testing.T) {
	in := FrameRequest{SystemID: "sys", InstrumentID: "inst", NRows: 500, Exclude: []string{"volume", "pred"}}
	var out FrameRequest
	if err := out.ParseWire(in.AppendWire(nil)); err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if len(out.Exclude) != 2 || out.Exclude[0] != "volume" || out.Exclude[1] != "pred" {
		t.Errorf("exclude = %v, want [volume pred]", out.Exclude)
	}
}

func TestParseTruncatedPayload(t *testing.T) {
	b := (&Price{InstrumentID: "inst-1", Close: 10}).AppendWire(nil)
	var out Price
	if err := out.ParseWire(b[:len(b)-3]); err == nil {
		t.Error("truncated payload should fail to parse")
	}
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	c := Codec{}
	if _, err := c.Marshal(42); err == nil {
		t.Error("Marshal should reject a non-Message")
	}
	if err := c.Unmarshal(nil, "nope"); err == nil {
		t.Error("Unmarshal should reject a non-Message")
	}
	if c.Name() != CodecName {
		t.Errorf("Name() = %q", c.Name())
	}
}
