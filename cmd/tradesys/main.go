package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"tradesys/internal/config"
	"tradesys/internal/domain"
	"tradesys/internal/logic/builtins"
	"tradesys/internal/rpc"
	"tradesys/internal/store"
	"tradesys/internal/system"
	"tradesys/internal/util"
)

func main() {
	var (
		systemsDir    = flag.String("systems", "", "directory of system definition files (overrides config)")
		fullRun       = flag.Bool("full-run", false, "replay the whole history as a backtest")
		retainHistory = flag.Bool("retain-history", false, "keep persisted orders and positions across a full run")
		printData     = flag.Bool("print-data", false, "render signal tables to the log")
		monteCarlo    = flag.Int("monte-carlo", 0, "resample each instrument with this many simulations after a full run")
		endDate       = flag.String("end", "", "process up to this date (YYYY-MM-DD, default: last cached bar)")
		rows          = flag.Int("rows", 0, "limit frames to the most recent N bars")
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

	dir := cfg.Run.SystemsDir
	if *systemsDir != "" {
		dir = *systemsDir
	}
	if dir == "" {
		log.Fatal("no systems directory: set run.systems_dir or pass --systems")
	}

	var endDT time.Time
	if *endDate != "" {
		endDT, err = time.Parse("2006-01-02", *endDate)
		if err != nil {
			log.Fatalf("invalid --end date: %v", err)
		}
	}

	defs, err := system.LoadDefinitions(dir)
	if err != nil {
		log.Fatalf("failed to load system definitions: %v", err)
	}
	if len(defs) == 0 {
		log.Fatalf("no system definitions in %s", dir)
	}

	var st store.TradingSystemStore
	if cfg.Services.SystemsAddr != "" {
		conn, err := dialService(cfg.Services.SystemsAddr, cfg.Services, logger)
		if err != nil {
			log.Fatalf("failed to dial systems service: %v", err)
		}
		defer conn.Close()
		st = rpc.NewTradingSystemClient(conn)
	} else {
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open state store: %v", err)
		}
		defer sq.Close()
		st = sq
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		dfSvc   rpc.DataFrameService
		barsSvc store.BarStore
	)
	if cfg.Services.DataFrameAddr != "" {
		dfConn, err := dialService(cfg.Services.DataFrameAddr, cfg.Services, logger)
		if err != nil {
			log.Fatalf("failed to dial data-frame service: %v", err)
		}
		defer dfConn.Close()
		dfSvc = rpc.NewDataFrameClient(dfConn)
	} else {
		barsSvc = store.NewParquetStore(cfg.Storage.DataDir)
	}

	registry := builtins.DefaultRegistry()
	opts := system.RunOptions{
		FullRun:        *fullRun,
		RetainHistory:  *retainHistory,
		PrintData:      *printData,
		MonteCarloSims: *monteCarlo,
	}

	var processors []*system.Processor
	for _, def := range defs {
		props, err := def.Properties(registry)
		if err != nil {
			logger.Error("skipping system", "system", def.Name, "error", err)
			continue
		}

		var src system.FrameSource
		if dfSvc != nil {
			rec, err := st.GetOrInsertTradingSystem(ctx, def.Name, endDT)
			if err != nil {
				logger.Error("skipping system", "system", def.Name, "error", err)
				continue
			}
			src = system.NewRemoteFrameSource(dfSvc, rec.ID)
		} else {
			src = system.NewLocalFrameSource(barsSvc, endDT)
		}

		benchmark := domain.Instrument{
			ID:       def.Benchmark.ID,
			Symbol:   def.Benchmark.Symbol,
			Exchange: def.Benchmark.Exchange,
		}
		benchFrame, frames, errs := system.BuildFrames(ctx, src, benchmark, props.Instruments, *rows)
		for _, err := range errs {
			logger.Warn("frame dropped", "system", def.Name, "error", err)
		}
		if benchFrame == nil {
			logger.Error("skipping system: no benchmark frame", "system", def.Name)
			continue
		}

		proc, err := system.NewProcessor(props, frames, benchFrame, st, logger)
		if err != nil {
			logger.Error("skipping system", "system", def.Name, "error", err)
			continue
		}
		processors = append(processors, proc)

		if endDT.IsZero() {
			endDT = benchFrame.LastDT()
		}
	}
	if len(processors) == 0 {
		log.Fatal("no runnable systems")
	}

	handler := system.NewHandler(cfg.Run.Workers, logger)
	report := handler.Run(ctx, processors, endDT, opts)

	fmt.Printf("processed=%d mismatches=%d failures=%d\n",
		len(report.Processed), len(report.Mismatches), len(report.Failures))
	for _, name := range report.Mismatches {
		fmt.Printf("datetime mismatch: %s\n", name)
	}
	for _, name := range report.Failures {
		fmt.Printf("failed: %s\n", name)
	}
	os.Exit(report.ExitCode())
}

// dialService opens one client connection with the shared transport
// settings: the mutual-TLS certificate triple when configured, plus the
// retry policy.
func dialService(addr string, svc config.Services, logger *slog.Logger) (*grpc.ClientConn, error) {
	dial := rpc.DialConfig{
		Addr:          addr,
		RetryAttempts: svc.RetryAttempts,
		RetryBaseWait: svc.RetryBaseWait(),
	}
	if svc.TLS.Enabled() {
		creds, err := rpc.ClientTLS(svc.TLS.CertFile, svc.TLS.KeyFile, svc.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS credentials: %w", err)
		}
		dial.TLS = creds
	}
	return rpc.Dial(dial, logger)
}
