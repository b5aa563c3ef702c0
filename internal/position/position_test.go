package position

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPositionLifecycleLong(t *testing.T) {
	p := NewPosition(Spec{
		Capital:           decimal.NewFromInt(10000),
		Direction:         domain.DirectionLong,
		CommissionPct:     dec("0.001"),
		FixedPositionSize: true,
	}, day(1))

	if p.Active() {
		t.Fatal("new position must be inactive")
	}
	if _, err := p.EnterMarket(dec("33"), day(2)); err != nil {
		t.Fatal(err)
	}
	if p.PositionSize() != 303 {
		t.Fatalf("position size = %d, want floor(10000/33) = 303", p.PositionSize())
	}
	if want := dec("1"); !p.UninvestedCapital().Equal(want) {
		t.Fatalf("uninvested capital = %s, want %s", p.UninvestedCapital(), want)
	}
	if _, err := p.EnterMarket(dec("34"), day(3)); err == nil {
		t.Fatal("double entry must fail")
	}

	if _, err := p.Update(dec("34"), day(3)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Update(dec("32"), day(3)); !errors.Is(err, domain.ErrDatetimeMismatch) {
		t.Fatalf("stale update error = %v, want datetime mismatch", err)
	}
	if _, err := p.Update(dec("31"), day(4)); err != nil {
		t.Fatal(err)
	}

	capital, _, err := p.ExitMarket(dec("36"), day(5))
	if err != nil {
		t.Fatal(err)
	}
	if !capital.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("fixed size must return original capital, got %s", capital)
	}
	if p.Active() {
		t.Fatal("position still active after exit")
	}

	if got, want := len(p.Returns()), 3; got != want {
		t.Fatalf("returns length = %d, want %d", got, want)
	}
	if len(p.Returns()) != len(p.MTMReturns()) || len(p.Returns()) != len(p.PNL()) {
		t.Fatal("return series lengths diverge")
	}

	// Net result equals gross minus the commission accrued on both sides.
	if diff := p.GrossResult().Sub(p.Commission()).Sub(p.NetResult()).Abs(); diff.GreaterThan(dec("0.01")) {
		t.Fatalf("net != gross - commission, diff %s", diff)
	}
	if want := dec("909"); !p.GrossResult().Equal(want) {
		t.Fatalf("gross result = %s, want %s", p.GrossResult(), want)
	}
	if want := dec("9.09"); !p.PositionReturn().Equal(want) {
		t.Fatalf("position return = %s, want %s", p.PositionReturn(), want)
	}
}

func TestPositionShortReturnsSigned(t *testing.T) {
	p := NewPosition(Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionShort,
	}, day(1))

	if _, err := p.EnterMarket(dec("100"), day(2)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Update(dec("95"), day(3)); err != nil {
		t.Fatal(err)
	}
	if want := dec("5"); !p.UnrealisedReturn().Equal(want) {
		t.Fatalf("short unrealised return = %s, want %s", p.UnrealisedReturn(), want)
	}
	if _, _, err := p.ExitMarket(dec("105"), day(4)); err != nil {
		t.Fatal(err)
	}
	if want := dec("-5"); !p.PositionReturn().Equal(want) {
		t.Fatalf("short position return = %s, want %s", p.PositionReturn(), want)
	}
	if p.NetResult().Sign() >= 0 {
		t.Fatalf("short losing trade must have negative result, got %s", p.NetResult())
	}
}

func TestPositionMAEAndMFE(t *testing.T) {
	p := NewPosition(Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionLong,
	}, day(1))

	if _, err := p.EnterMarket(dec("100"), day(2)); err != nil {
		t.Fatal(err)
	}
	for i, price := range []string{"98", "104", "101"} {
		if _, err := p.Update(dec(price), day(3+i)); err != nil {
			t.Fatal(err)
		}
	}
	if want := dec("-2"); !p.MAE().Equal(want) {
		t.Fatalf("mae = %s, want %s", p.MAE(), want)
	}
	if want := dec("4"); !p.MFE().Equal(want) {
		t.Fatalf("mfe = %s, want %s", p.MFE(), want)
	}
	if p.MAE().Sign() > 0 || p.MFE().Sign() < 0 {
		t.Fatal("mae must be <= 0 <= mfe")
	}
}

func TestPositionMAEDefaultsToZeroWithoutAdverseBars(t *testing.T) {
	p := NewPosition(Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionLong,
	}, day(1))

	if _, err := p.EnterMarket(dec("100"), day(2)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Update(dec("102"), day(3)); err != nil {
		t.Fatal(err)
	}
	if !p.MAE().IsZero() {
		t.Fatalf("mae = %s, want 0 when no bar closed against the position", p.MAE())
	}
}

func TestPositionCompoundedCapitalOnExit(t *testing.T) {
	p := NewPosition(Spec{
		Capital:           decimal.NewFromInt(10000),
		Direction:         domain.DirectionLong,
		FixedPositionSize: false,
	}, day(1))

	if _, err := p.EnterMarket(dec("33"), day(2)); err != nil {
		t.Fatal(err)
	}
	capital, _, err := p.ExitMarket(dec("36"), day(3))
	if err != nil {
		t.Fatal(err)
	}
	// 303 shares * 36 + 1 uninvested.
	if want := dec("10909"); !capital.Equal(want) {
		t.Fatalf("compounded capital = %s, want %s", capital, want)
	}
}

func TestPositionExitRequiresAdvancingDatetime(t *testing.T) {
	p := NewPosition(Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionLong,
	}, day(1))

	if _, err := p.EnterMarket(dec("100"), day(2)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.ExitMarket(dec("101"), day(2)); !errors.Is(err, domain.ErrDatetimeMismatch) {
		t.Fatalf("same-day exit error = %v, want datetime mismatch", err)
	}
}

func TestPositionDatetimeCheck(t *testing.T) {
	p := NewPosition(Spec{
		Capital:   decimal.NewFromInt(10000),
		Direction: domain.DirectionLong,
	}, day(5))

	if p.DatetimeCheck(day(5)) {
		t.Fatal("entry signal day must not pass the check")
	}
	if !p.DatetimeCheck(day(6)) {
		t.Fatal("later day must pass the check")
	}

	if _, err := p.EnterMarket(dec("100"), day(6)); err != nil {
		t.Fatal(err)
	}
	if p.DatetimeCheck(day(6)) {
		t.Fatal("current day must not pass the check after entry")
	}
}

func TestPositionEncodeDecodeRoundTrip(t *testing.T) {
	p := NewPosition(Spec{
		Capital:           decimal.NewFromInt(10000),
		Direction:         domain.DirectionLong,
		CommissionPct:     dec("0.0005"),
		FixedPositionSize: true,
	}, day(1))

	if _, err := p.EnterMarket(dec("100"), day(2)); err != nil {
		t.Fatal(err)
	}
	for i, price := range []string{"98", "104"} {
		if _, err := p.Update(dec(price), day(3+i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := p.ExitMarket(dec("106"), day(5)); err != nil {
		t.Fatal(err)
	}

	data, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	if !got.EntryPrice().Equal(p.EntryPrice()) || !got.ExitPrice().Equal(p.ExitPrice()) {
		t.Fatal("prices not preserved")
	}
	if len(got.Returns()) != len(p.Returns()) {
		t.Fatalf("returns length = %d, want %d", len(got.Returns()), len(p.Returns()))
	}
	for i := range p.Returns() {
		if !got.Returns()[i].Equal(p.Returns()[i]) {
			t.Fatalf("returns[%d] = %s, want %s", i, got.Returns()[i], p.Returns()[i])
		}
	}
	if !got.MAE().Equal(p.MAE()) || !got.MFE().Equal(p.MFE()) {
		t.Fatal("mae/mfe not preserved")
	}
	if !got.ExitDT().Equal(p.ExitDT()) {
		t.Fatal("exit datetime not preserved")
	}
	if got.Active() != p.Active() {
		t.Fatal("active flag not preserved")
	}
}

func TestDecodeRejectsBadRecord(t *testing.T) {
	if _, err := Decode([]byte(`{"version":99}`)); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := Decode([]byte(`{"version":1,"direction":"sideways"}`)); err == nil {
		t.Fatal("expected direction error")
	}
}
