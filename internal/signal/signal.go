// Package signal collects the market-state signals a trading session emits
// and flushes them to persistence sinks. Sessions produce records; the
// handler is a one-way sink and never feeds back into the state machine.
package signal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
	"tradesys/internal/position"
)

// Record is one market-state signal for one instrument at one datetime.
type Record struct {
	SignalDT          time.Time
	InstrumentID      string
	Symbol            string
	Order             *position.Order
	PeriodsInPosition int
	UnrealisedReturn  decimal.Decimal
	MarketState       domain.MarketState
}

// Persister stores market-state records keyed by (system, instrument).
type Persister interface {
	UpsertMarketState(ctx context.Context, systemID string, rec Record) error
}

// Handler accumulates signal records in arrival order, grouped by market
// state, together with per-instrument evaluation data from backtests.
type Handler struct {
	entries []Record
	active  []Record
	exits   []Record
	records []Record

	evaluations      []map[domain.Field]any
	entrySignalGiven bool
}

// NewHandler creates an empty signal handler.
func NewHandler() *Handler {
	return &Handler{}
}

// HandleEntrySignal records an entry signal and marks that an entry was
// given, pending evaluation data. A record carrying an explicit market
// state, such as the null default, keeps it.
func (h *Handler) HandleEntrySignal(rec Record) {
	if rec.MarketState == "" {
		rec.MarketState = domain.MarketStateEntry
	}
	h.entrySignalGiven = true
	h.entries = append(h.entries, rec)
	h.records = append(h.records, rec)
}

// HandleActivePosition records the state of a held position.
func (h *Handler) HandleActivePosition(rec Record) {
	if rec.MarketState == "" {
		rec.MarketState = domain.MarketStateActive
	}
	h.active = append(h.active, rec)
	h.records = append(h.records, rec)
}

// HandleExitSignal records an exit signal.
func (h *Handler) HandleExitSignal(rec Record) {
	if rec.MarketState == "" {
		rec.MarketState = domain.MarketStateExit
	}
	h.exits = append(h.exits, rec)
	h.records = append(h.records, rec)
}

// EntrySignalGiven reports whether an entry signal was recorded since the
// last evaluation data was added.
func (h *Handler) EntrySignalGiven() bool { return h.entrySignalGiven }

// AddEvaluationData attaches backtest evaluation data to the last entry
// signal, restricted to the given fields, and resets the entry flag.
func (h *Handler) AddEvaluationData(eval map[domain.Field]any, fields []domain.Field) {
	if len(eval) > 0 {
		selected := make(map[domain.Field]any, len(fields))
		for _, f := range fields {
			if v, ok := eval[f]; ok && v != nil {
				selected[f] = v
			}
		}
		h.evaluations = append(h.evaluations, selected)
	}
	h.entrySignalGiven = false
}

// Records returns every recorded signal in arrival order.
func (h *Handler) Records() []Record { return h.records }

// Entries returns the recorded entry signals.
func (h *Handler) Entries() []Record { return h.entries }

// Exits returns the recorded exit signals.
func (h *Handler) Exits() []Record { return h.exits }

// ActivePositions returns the recorded active-position signals.
func (h *Handler) ActivePositions() []Record { return h.active }

// Evaluations returns the attached evaluation data in arrival order.
func (h *Handler) Evaluations() []map[domain.Field]any { return h.evaluations }

// Table renders the recorded signals as an aligned text table, a view over
// the records rather than separate state.
func (h *Handler) Table() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNAL DT\tSYMBOL\tSTATE\tPERIODS\tUNREALISED %")
	for _, rec := range h.records {
		fmt.Fprintf(
			w, "%s\t%s\t%s\t%d\t%s\n",
			rec.SignalDT.Format("2006-01-02"), rec.Symbol, rec.MarketState,
			rec.PeriodsInPosition, rec.UnrealisedReturn.StringFixed(2),
		)
	}
	w.Flush()
	return sb.String()
}

// EvaluationTable renders the attached evaluation data as an aligned text
// table with a stable column order.
func (h *Handler) EvaluationTable() string {
	if len(h.evaluations) == 0 {
		return ""
	}
	fieldSet := make(map[domain.Field]struct{})
	for _, eval := range h.evaluations {
		for f := range eval {
			fieldSet[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(fields, "\t")))
	for _, eval := range h.evaluations {
		cells := make([]string, len(fields))
		for i, f := range fields {
			cells[i] = formatValue(eval[domain.Field(f)])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', 3, 64)
	case decimal.Decimal:
		return x.StringFixed(2)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

// InsertInto flushes every recorded signal to the persister. The first
// failure aborts the flush.
func (h *Handler) InsertInto(ctx context.Context, p Persister, systemID string) error {
	for _, rec := range h.records {
		if err := p.UpsertMarketState(ctx, systemID, rec); err != nil {
			return fmt.Errorf("insert market state for %s: %w", rec.Symbol, err)
		}
	}
	return nil
}

// WriteCSV appends the recorded signals to a CSV file under a header line
// naming the system.
func (h *Handler) WriteCSV(path, systemName string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n%s\n", systemName); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		string(domain.FieldSignalDT), string(domain.FieldSymbol),
		string(domain.FieldMarketState), string(domain.FieldPeriodsInPosition),
		string(domain.FieldUnrealisedReturn),
	}); err != nil {
		return err
	}
	for _, rec := range h.records {
		if err := w.Write([]string{
			rec.SignalDT.Format("2006-01-02"), rec.Symbol, string(rec.MarketState),
			strconv.Itoa(rec.PeriodsInPosition), rec.UnrealisedReturn.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
