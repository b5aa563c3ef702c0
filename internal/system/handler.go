package system

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tradesys/internal/domain"
)

// Handler drives many processors against a shared persistence sink, one
// processor per worker. Strategies are independent: a failing one is
// reported and the rest continue.
type Handler struct {
	workers int
	log     *slog.Logger
}

// NewHandler creates a handler with a bounded worker pool.
func NewHandler(workers int, log *slog.Logger) *Handler {
	if workers < 1 {
		workers = 1
	}
	return &Handler{workers: workers, log: log}
}

// Report summarises one handler run.
type Report struct {
	// Processed names the strategies that completed.
	Processed []string
	// Mismatches names the strategies skipped on a datetime mismatch.
	Mismatches []string
	// Failures names the strategies that failed for any other reason.
	Failures []string
}

// ExitCode maps the report to a process exit code: non-zero iff any
// strategy raised a datetime mismatch.
func (r Report) ExitCode() int {
	if len(r.Mismatches) > 0 {
		return 1
	}
	return 0
}

// Run executes every processor through the worker pool and collects the
// per-strategy outcomes.
func (h *Handler) Run(ctx context.Context, processors []*Processor, endDT time.Time, opts RunOptions) Report {
	var (
		mu     sync.Mutex
		report Report
		wg     sync.WaitGroup
	)
	jobs := make(chan *Processor)

	for range h.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				err := p.Run(ctx, endDT, opts)
				mu.Lock()
				switch {
				case err == nil:
					report.Processed = append(report.Processed, p.SystemName())
				case errors.Is(err, domain.ErrDatetimeMismatch):
					h.log.Warn("strategy skipped", "system", p.SystemName(), "error", err)
					report.Mismatches = append(report.Mismatches, p.SystemName())
				default:
					h.log.Error("strategy failed", "system", p.SystemName(), "error", err)
					report.Failures = append(report.Failures, p.SystemName())
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range processors {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	sort.Strings(report.Processed)
	sort.Strings(report.Mismatches)
	sort.Strings(report.Failures)
	return report
}
