package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradesys/internal/store"
	"tradesys/internal/system"
	"tradesys/internal/util"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	calls   [][]string
	bars    map[string][]marketdata.Bar
	failErr error
}

func (f *fakeFetcher) GetMultiBars(symbols []string, _ marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.calls = append(f.calls, symbols)
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make(map[string][]marketdata.Bar)
	for _, sym := range symbols {
		if bars, ok := f.bars[sym]; ok {
			out[sym] = bars
		}
	}
	return out, nil
}

func alpacaBar(day int, close float64) marketdata.Bar {
	return marketdata.Bar{
		Timestamp: time.Date(2023, 3, day, 0, 0, 0, 0, time.UTC),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
	}
}

func newTestIngester(t *testing.T, fetcher barFetcher, bars store.BarStore) *Ingester {
	t.Helper()
	return &Ingester{
		client:    fetcher,
		bars:      bars,
		limiter:   util.NewRateLimiter(6000),
		batchSize: 2,
		startDate: "2023-01-01",
		log:       testLogger(),
	}
}

func TestRunWritesBars(t *testing.T) {
	fetcher := &fakeFetcher{bars: map[string][]marketdata.Bar{
		"AAA": {alpacaBar(1, 10), alpacaBar(2, 11)},
		"BBB": {alpacaBar(1, 20)},
	}}
	pstore := store.NewParquetStore(t.TempDir())
	ing := newTestIngester(t, fetcher, pstore)

	end := time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)
	if err := ing.Run(context.Background(), []string{"AAA", "BBB", "CCC"}, end); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// batchSize 2 splits {AAA,BBB} and {CCC}.
	if len(fetcher.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(fetcher.calls))
	}

	bars, err := pstore.ReadBars(context.Background(), "AAA", time.Time{}, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("AAA bars = %d, want 2", len(bars))
	}
	if bars[0].Close != 10 {
		t.Errorf("first close = %v, want 10", bars[0].Close)
	}
}

func TestRunEmptySymbolList(t *testing.T) {
	fetcher := &fakeFetcher{}
	ing := newTestIngester(t, fetcher, store.NewParquetStore(t.TempDir()))

	if err := ing.Run(context.Background(), nil, time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(fetcher.calls))
	}
}

func TestRunBadStartDate(t *testing.T) {
	ing := newTestIngester(t, &fakeFetcher{}, store.NewParquetStore(t.TempDir()))
	ing.startDate = "not-a-date"

	if err := ing.Run(context.Background(), []string{"AAA"}, time.Now()); err == nil {
		t.Fatal("expected error for bad start date")
	}
}

func TestSymbolsFromDefinitions(t *testing.T) {
	defs := []system.Definition{
		{
			Benchmark: system.InstrumentDef{Symbol: "SPY"},
			Instruments: []system.InstrumentDef{
				{Symbol: "aapl"}, {Symbol: "MSFT"},
			},
		},
		{
			Benchmark: system.InstrumentDef{Symbol: "SPY"},
			Instruments: []system.InstrumentDef{
				{Symbol: "MSFT"}, {Symbol: ""},
			},
		},
	}

	got := SymbolsFromDefinitions(defs)
	want := []string{"AAPL", "MSFT", "SPY"}
	if len(got) != len(want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbols[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
