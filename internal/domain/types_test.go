package domain

import (
	"testing"
	"time"
)

func TestBarValidate(t *testing.T) {
	ok := Bar{Symbol: "AAA", Timestamp: time.Now(), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v on a well-formed bar", err)
	}

	negative := ok
	negative.Low = -1
	if err := negative.Validate(); err == nil {
		t.Error("negative price should fail validation")
	}

	badVolume := ok
	badVolume.Volume = -5
	if err := badVolume.Validate(); err == nil {
		t.Error("negative volume should fail validation")
	}
}

func TestPriceBarRoundTrip(t *testing.T) {
	bar := Bar{
		InstrumentID: "inst-1",
		Symbol:       "AAA",
		Timestamp:    time.Date(2023, 3, 6, 0, 0, 0, 0, time.UTC),
		Open:         10, High: 11, Low: 9, Close: 10.5,
		Volume: 12345,
	}
	got := FromBar(bar).ToBar("AAA")
	if !got.Timestamp.Equal(bar.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, bar.Timestamp)
	}
	got.Timestamp = bar.Timestamp
	if got != bar {
		t.Errorf("round trip changed the bar: got %+v, want %+v", got, bar)
	}
}

func TestDirectionValid(t *testing.T) {
	if !DirectionLong.Valid() || !DirectionShort.Valid() {
		t.Error("long and short should be valid directions")
	}
	if Direction("sideways").Valid() {
		t.Error("unknown direction should be invalid")
	}
}
