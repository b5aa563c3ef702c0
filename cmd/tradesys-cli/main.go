package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"tradesys/internal/config"
	"tradesys/internal/store"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tradesys-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  systems                      List stored trading systems\n")
		fmt.Fprintf(os.Stderr, "  states <system>              Show market states for a system\n")
		fmt.Fprintf(os.Stderr, "  positions <system> <instr>   Show the position history of an instrument\n")
		fmt.Fprintf(os.Stderr, "  metrics <system>             Print a system's metrics document\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	if os.Args[1] == "version" {
		fmt.Printf("tradesys-cli %s\n", version)
		return
	}

	cfgPath := "config/tradesys.yaml"
	if p := os.Getenv("TRADESYS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "systems":
		recs, err := st.ListTradingSystems(ctx)
		if err != nil {
			log.Fatalf("listing systems: %v", err)
		}
		for _, rec := range recs {
			dt := "-"
			if !rec.CurrentDateTime.IsZero() {
				dt = rec.CurrentDateTime.Format("2006-01-02")
			}
			fmt.Printf("%s  %s  processed-through=%s\n", rec.ID, rec.Name, dt)
		}

	case "states":
		rec := mustSystem(ctx, st, 2)
		states, err := st.ListMarketStates(ctx, rec.ID)
		if err != nil {
			log.Fatalf("listing market states: %v", err)
		}
		for _, state := range states {
			fmt.Printf("%-8s %-12s %s  periods=%d  return=%s%%\n",
				state.Symbol, state.MarketState, state.SignalDT.Format("2006-01-02"),
				state.PeriodsInPosition, state.UnrealisedReturn.StringFixed(2))
		}

	case "positions":
		if len(os.Args) < 4 {
			flag.Usage()
			os.Exit(1)
		}
		rec := mustSystem(ctx, st, 2)
		positions, periods, err := st.GetPositions(ctx, rec.ID, os.Args[3])
		if err != nil {
			log.Fatalf("loading positions: %v", err)
		}
		fmt.Printf("periods=%d positions=%d\n", periods, len(positions))
		for _, pos := range positions {
			fmt.Printf("entry=%s %s  exit=%s %s  return=%s%%\n",
				pos.EntryDT().Format("2006-01-02"), pos.EntryPrice().StringFixed(2),
				pos.CurrentDT().Format("2006-01-02"), pos.ExitPrice().StringFixed(2),
				pos.PositionReturn().StringFixed(2))
		}

	case "metrics":
		rec := mustSystem(ctx, st, 2)
		metrics, err := st.GetMetrics(ctx, rec.ID)
		if err != nil {
			log.Fatalf("loading metrics: %v", err)
		}
		out, err := json.MarshalIndent(metrics, "", "  ")
		if err != nil {
			log.Fatalf("encoding metrics: %v", err)
		}
		fmt.Println(string(out))

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

// mustSystem resolves the system name at the given argv index against the
// store, without creating a record for a misspelled name.
func mustSystem(ctx context.Context, st *store.SQLiteStore, arg int) store.SystemRecord {
	if len(os.Args) <= arg {
		flag.Usage()
		os.Exit(1)
	}
	name := os.Args[arg]
	recs, err := st.ListTradingSystems(ctx)
	if err != nil {
		log.Fatalf("listing systems: %v", err)
	}
	for _, rec := range recs {
		if rec.Name == name {
			return rec
		}
	}
	log.Fatalf("unknown system: %s", name)
	return store.SystemRecord{}
}
