// Package ingest backfills daily OHLCV bars from the Alpaca market-data API
// into the local Parquet cache and, when configured, the securities service.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradesys/internal/domain"
	"tradesys/internal/rpc"
	"tradesys/internal/store"
	"tradesys/internal/system"
	"tradesys/internal/util"
)

// barFetcher abstracts the Alpaca multi-bar call so runs can be tested
// without network access.
type barFetcher interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Ingester fetches daily bars for a set of instruments and fans them out to
// the local cache and the securities service.
type Ingester struct {
	client     barFetcher
	bars       store.BarStore
	securities rpc.SecuritiesService // optional
	limiter    *util.RateLimiter
	batchSize  int
	startDate  string
	log        *slog.Logger
}

// Opts configures an Ingester.
type Opts struct {
	APIKey    string
	APISecret string
	DataURL   string

	Bars       store.BarStore
	Securities rpc.SecuritiesService

	BatchSize       int
	RateLimitPerMin int
	StartDate       string
}

// New creates an Ingester backed by the Alpaca market-data client.
func New(opts Opts, log *slog.Logger) *Ingester {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return &Ingester{
		client:     marketdata.NewClient(clientOpts),
		bars:       opts.Bars,
		securities: opts.Securities,
		limiter:    util.NewRateLimiter(max(opts.RateLimitPerMin, 1)),
		batchSize:  max(opts.BatchSize, 1),
		startDate:  opts.StartDate,
		log:        log.With("component", "ingest"),
	}
}

// SymbolsFromDefinitions collects the distinct symbols (instruments plus
// benchmarks) named across system definitions, sorted.
func SymbolsFromDefinitions(defs []system.Definition) []string {
	seen := make(map[string]struct{})
	for _, def := range defs {
		if def.Benchmark.Symbol != "" {
			seen[strings.ToUpper(def.Benchmark.Symbol)] = struct{}{}
		}
		for _, inst := range def.Instruments {
			if inst.Symbol != "" {
				seen[strings.ToUpper(inst.Symbol)] = struct{}{}
			}
		}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Run backfills daily bars for the given symbols up to and including end.
// Symbols with no data are logged and skipped; a failing batch aborts the
// run.
func (g *Ingester) Run(ctx context.Context, symbols []string, end time.Time) error {
	if len(symbols) == 0 {
		return nil
	}

	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}

	var (
		totalBars int
		totalHits int
	)
	for i := 0; i < len(symbols); i += g.batchSize {
		batch := symbols[i:min(i+g.batchSize, len(symbols))]

		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = g.fetchBatch(batch, start, end)
			return ferr
		})
		if err != nil {
			return fmt.Errorf("fetching batch %v: %w", batch, err)
		}
		if len(bars) == 0 {
			g.log.Warn("no data for batch", "symbols", batch)
			continue
		}

		if err := g.bars.WriteBars(ctx, bars); err != nil {
			return fmt.Errorf("writing bars: %w", err)
		}
		if g.securities != nil {
			n, err := g.securities.InsertPriceData(ctx, bars)
			if err != nil {
				return fmt.Errorf("pushing bars to securities service: %w", err)
			}
			g.log.Debug("pushed bars", "rows", n)
		}

		hit := make(map[string]struct{})
		for _, b := range bars {
			hit[b.Symbol] = struct{}{}
		}
		for _, sym := range batch {
			if _, ok := hit[sym]; !ok {
				g.log.Warn("no data for symbol", "symbol", sym)
			}
		}

		totalBars += len(bars)
		totalHits += len(hit)
		g.log.Info("batch done", "symbols", len(batch), "hits", len(hit), "bars", len(bars))
	}

	g.log.Info("ingest complete", "symbols", totalHits, "bars", totalBars)
	return nil
}

func (g *Ingester) fetchBatch(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timestamp: ab.Timestamp,
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    int64(ab.Volume),
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}
