package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradesys/internal/config"
	"tradesys/internal/ingest"
	"tradesys/internal/rpc"
	"tradesys/internal/store"
	"tradesys/internal/system"
	"tradesys/internal/util"
)

func main() {
	var (
		symbolList = flag.String("symbols", "", "comma-separated symbols to ingest (default: symbols from system definitions)")
		systemsDir = flag.String("systems", "", "directory of system definition files (overrides config)")
		endDate    = flag.String("end", "", "ingest up to this date (YYYY-MM-DD, default: yesterday)")
	)
	flag.Parse()

	cfgPath := "config/tradesys.yaml"
	if p := os.Getenv("TRADESYS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)

	var symbols []string
	if *symbolList != "" {
		for _, sym := range strings.Split(*symbolList, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				symbols = append(symbols, strings.ToUpper(sym))
			}
		}
	} else {
		dir := cfg.Run.SystemsDir
		if *systemsDir != "" {
			dir = *systemsDir
		}
		if dir == "" {
			log.Fatal("no symbols: pass --symbols or set run.systems_dir")
		}
		defs, err := system.LoadDefinitions(dir)
		if err != nil {
			log.Fatalf("failed to load system definitions: %v", err)
		}
		symbols = ingest.SymbolsFromDefinitions(defs)
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols to ingest")
	}

	end := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	if *endDate != "" {
		end, err = time.Parse("2006-01-02", *endDate)
		if err != nil {
			log.Fatalf("invalid --end date: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := ingest.Opts{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Bars:            store.NewParquetStore(cfg.Storage.DataDir),
		BatchSize:       cfg.Ingest.BatchSize,
		RateLimitPerMin: cfg.Ingest.RateLimitPerMin,
		StartDate:       cfg.Ingest.StartDate,
	}

	if cfg.Services.SecuritiesAddr != "" {
		dial := rpc.DialConfig{
			Addr:          cfg.Services.SecuritiesAddr,
			RetryAttempts: cfg.Services.RetryAttempts,
			RetryBaseWait: cfg.Services.RetryBaseWait(),
		}
		if cfg.Services.TLS.Enabled() {
			creds, err := rpc.ClientTLS(cfg.Services.TLS.CertFile, cfg.Services.TLS.KeyFile, cfg.Services.TLS.CAFile)
			if err != nil {
				log.Fatalf("failed to load TLS credentials: %v", err)
			}
			dial.TLS = creds
		}
		conn, err := rpc.Dial(dial, logger)
		if err != nil {
			log.Fatalf("failed to dial securities service: %v", err)
		}
		defer conn.Close()
		opts.Securities = rpc.NewSecuritiesClient(conn)
	}

	logger.Info("starting ingest", "symbols", len(symbols), "end", end.Format("2006-01-02"))
	if err := ingest.New(opts, logger).Run(ctx, symbols, end); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
}
