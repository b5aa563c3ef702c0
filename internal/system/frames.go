package system

import (
	"context"
	"fmt"
	"time"

	"tradesys/internal/domain"
	"tradesys/internal/rpc"
	"tradesys/internal/store"
)

// FrameSource yields the bar frame one instrument brings to a run.
type FrameSource interface {
	Frame(ctx context.Context, inst domain.Instrument, nRows int) (*domain.Frame, error)
}

// LocalFrameSource builds frames from the local bar cache, the path full
// backtests normally take.
type LocalFrameSource struct {
	bars  store.BarStore
	endDT time.Time
}

var _ FrameSource = (*LocalFrameSource)(nil)

// NewLocalFrameSource reads bars up to and including endDT.
func NewLocalFrameSource(bars store.BarStore, endDT time.Time) *LocalFrameSource {
	return &LocalFrameSource{bars: bars, endDT: endDT}
}

func (s *LocalFrameSource) Frame(ctx context.Context, inst domain.Instrument, nRows int) (*domain.Frame, error) {
	bars, err := s.bars.ReadBars(ctx, inst.Symbol, time.Time{}, s.endDT)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", inst.Symbol, err)
	}
	if nRows > 0 && len(bars) > nRows {
		bars = bars[len(bars)-nRows:]
	}
	for i := range bars {
		bars[i].InstrumentID = inst.ID
		bars[i].Symbol = inst.Symbol
	}
	return domain.NewFrame(inst.ID, inst.Symbol, bars)
}

// RemoteFrameSource builds frames from the data-frame service cache, the
// path live runs take.
type RemoteFrameSource struct {
	df       rpc.DataFrameService
	systemID string
}

var _ FrameSource = (*RemoteFrameSource)(nil)

// NewRemoteFrameSource reads frames cached for the given system.
func NewRemoteFrameSource(df rpc.DataFrameService, systemID string) *RemoteFrameSource {
	return &RemoteFrameSource{df: df, systemID: systemID}
}

func (s *RemoteFrameSource) Frame(ctx context.Context, inst domain.Instrument, nRows int) (*domain.Frame, error) {
	bars, err := s.df.GetFrame(ctx, s.systemID, inst.ID, nRows, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching frame for %s: %w", inst.Symbol, err)
	}
	for i := range bars {
		bars[i].Symbol = inst.Symbol
	}
	return domain.NewFrame(inst.ID, inst.Symbol, bars)
}

// BuildFrames assembles the benchmark frame and one frame per instrument,
// merging the benchmark close series into each so relative-strength
// preprocessing can run. Instruments whose frame cannot be built are
// dropped with a warning through the returned error list's caller; a
// missing benchmark is fatal.
func BuildFrames(
	ctx context.Context, src FrameSource, benchmark domain.Instrument,
	instruments []domain.Instrument, nRows int,
) (*domain.Frame, []*domain.Frame, []error) {
	benchFrame, err := src.Frame(ctx, benchmark, nRows)
	if err != nil {
		return nil, nil, []error{fmt.Errorf("benchmark %s: %w", benchmark.Symbol, err)}
	}
	benchBars := make([]domain.Bar, benchFrame.Len())
	for i := range benchBars {
		benchBars[i] = benchFrame.Bar(i)
	}

	var (
		frames []*domain.Frame
		errs   []error
	)
	for _, inst := range instruments {
		frame, err := src.Frame(ctx, inst, nRows)
		if err != nil {
			errs = append(errs, fmt.Errorf("instrument %s: %w", inst.Symbol, err))
			continue
		}
		if err := frame.MergeBenchmark(benchBars); err != nil {
			errs = append(errs, fmt.Errorf("instrument %s: %w", inst.Symbol, err))
			continue
		}
		frames = append(frames, frame)
	}
	return benchFrame, frames, errs
}
