package signal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesys/internal/domain"
)

func rec(symbol string, d int) Record {
	return Record{
		SignalDT:     time.Date(2023, time.March, d, 0, 0, 0, 0, time.UTC),
		InstrumentID: "inst-" + symbol,
		Symbol:       symbol,
	}
}

func TestHandlerGroupsRecordsByState(t *testing.T) {
	h := NewHandler()
	h.HandleEntrySignal(rec("AAA", 1))
	h.HandleActivePosition(rec("BBB", 2))
	h.HandleExitSignal(rec("CCC", 3))

	if len(h.Records()) != 3 {
		t.Fatalf("records = %d, want 3", len(h.Records()))
	}
	if len(h.Entries()) != 1 || len(h.ActivePositions()) != 1 || len(h.Exits()) != 1 {
		t.Fatal("records not grouped by state")
	}
	if h.Entries()[0].MarketState != domain.MarketStateEntry {
		t.Fatalf("entry state = %s", h.Entries()[0].MarketState)
	}
	if h.Records()[2].MarketState != domain.MarketStateExit {
		t.Fatal("arrival order not preserved")
	}
}

func TestEntrySignalFlagResetByEvaluationData(t *testing.T) {
	h := NewHandler()
	h.HandleEntrySignal(rec("AAA", 1))
	if !h.EntrySignalGiven() {
		t.Fatal("entry flag not set")
	}

	h.AddEvaluationData(map[domain.Field]any{
		domain.MetricSymbol:       "AAA",
		domain.MetricSharpeRatio:  1.2,
		domain.MetricMaxDrawdown:  nil,
		domain.MetricProfitFactor: 2.0,
	}, []domain.Field{domain.MetricSymbol, domain.MetricSharpeRatio, domain.MetricMaxDrawdown})

	if h.EntrySignalGiven() {
		t.Fatal("entry flag not reset")
	}
	if len(h.Evaluations()) != 1 {
		t.Fatalf("evaluations = %d, want 1", len(h.Evaluations()))
	}
	eval := h.Evaluations()[0]
	if eval[domain.MetricSymbol] != "AAA" {
		t.Fatal("selected field missing")
	}
	if _, ok := eval[domain.MetricProfitFactor]; ok {
		t.Fatal("unselected field leaked into evaluation data")
	}
	if _, ok := eval[domain.MetricMaxDrawdown]; ok {
		t.Fatal("nil value kept in evaluation data")
	}
}

func TestTableView(t *testing.T) {
	h := NewHandler()
	r := rec("AAA", 1)
	r.PeriodsInPosition = 4
	r.UnrealisedReturn = decimal.NewFromFloat(2.5)
	h.HandleActivePosition(r)

	table := h.Table()
	if !strings.Contains(table, "AAA") || !strings.Contains(table, "active") {
		t.Fatalf("table missing record data:\n%s", table)
	}
	if !strings.Contains(table, "2.50") {
		t.Fatalf("table missing unrealised return:\n%s", table)
	}
}

type capturePersister struct {
	systemIDs []string
	records   []Record
}

func (c *capturePersister) UpsertMarketState(_ context.Context, systemID string, rec Record) error {
	c.systemIDs = append(c.systemIDs, systemID)
	c.records = append(c.records, rec)
	return nil
}

func TestInsertIntoFlushesAllRecords(t *testing.T) {
	h := NewHandler()
	h.HandleEntrySignal(rec("AAA", 1))
	h.HandleExitSignal(rec("BBB", 2))

	sink := &capturePersister{}
	if err := h.InsertInto(context.Background(), sink, "sys-1"); err != nil {
		t.Fatal(err)
	}
	if len(sink.records) != 2 {
		t.Fatalf("persisted records = %d, want 2", len(sink.records))
	}
	for _, id := range sink.systemIDs {
		if id != "sys-1" {
			t.Fatalf("system id = %s, want sys-1", id)
		}
	}
}

func TestWriteCSVAppends(t *testing.T) {
	h := NewHandler()
	h.HandleEntrySignal(rec("AAA", 1))

	path := filepath.Join(t.TempDir(), "signals.csv")
	if err := h.WriteCSV(path, "test-system"); err != nil {
		t.Fatal(err)
	}
	if err := h.WriteCSV(path, "test-system"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "test-system"); got != 2 {
		t.Fatalf("system name appears %d times, want 2 (append mode)", got)
	}
	if !strings.Contains(string(data), "AAA") {
		t.Fatal("signal row missing")
	}
}
