package domain

import (
	"fmt"
	"math"
	"time"
)

// BenchmarkColumn is the feature column name under which merged benchmark
// closes are stored.
const BenchmarkColumn = "close_benchmark"

// Frame is a time-indexed sequence of bars for one instrument, plus derived
// feature columns aligned to the bars. Timestamps are strictly increasing;
// violations surface as ErrInvariant at construction.
type Frame struct {
	InstrumentID string
	Symbol       string

	bars     []Bar
	features map[string][]float64
}

// NewFrame validates the bar sequence and builds a frame.
func NewFrame(instrumentID, symbol string, bars []Bar) (*Frame, error) {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return nil, fmt.Errorf(
				"%w: timestamps not strictly increasing at index %d (%s >= %s)",
				ErrInvariant, i,
				bars[i-1].Timestamp.Format(time.RFC3339), b.Timestamp.Format(time.RFC3339),
			)
		}
	}
	return &Frame{
		InstrumentID: instrumentID,
		Symbol:       symbol,
		bars:         bars,
		features:     make(map[string][]float64),
	}, nil
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int { return len(f.bars) }

// Bar returns the bar at index i.
func (f *Frame) Bar(i int) Bar { return f.bars[i] }

// Last returns the most recent bar. The frame must be non-empty.
func (f *Frame) Last() Bar { return f.bars[len(f.bars)-1] }

// Penult returns the second-to-last bar. The frame must hold at least two bars.
func (f *Frame) Penult() Bar { return f.bars[len(f.bars)-2] }

// LastDT returns the timestamp of the most recent bar, or the zero time for
// an empty frame.
func (f *Frame) LastDT() time.Time {
	if len(f.bars) == 0 {
		return time.Time{}
	}
	return f.Last().Timestamp
}

// PenultDT returns the timestamp of the second-to-last bar, or the zero time
// when the frame holds fewer than two bars.
func (f *Frame) PenultDT() time.Time {
	if len(f.bars) < 2 {
		return time.Time{}
	}
	return f.Penult().Timestamp
}

// Closes returns the close price series.
func (f *Frame) Closes() []float64 {
	closes := make([]float64, len(f.bars))
	for i, b := range f.bars {
		closes[i] = b.Close
	}
	return closes
}

// SetFeature attaches a derived column aligned to the bars.
func (f *Frame) SetFeature(name string, col []float64) error {
	if len(col) != len(f.bars) {
		return fmt.Errorf(
			"%w: feature %q has %d values for %d bars",
			ErrInvariant, name, len(col), len(f.bars),
		)
	}
	f.features[name] = col
	return nil
}

// Feature returns the named derived column.
func (f *Frame) Feature(name string) ([]float64, bool) {
	col, ok := f.features[name]
	return col, ok
}

// FeatureAt returns the value of the named column at index i, or NaN when
// the column is absent.
func (f *Frame) FeatureAt(name string, i int) float64 {
	col, ok := f.features[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Prefix returns a view over the first end bars. The backing arrays are
// shared with the parent frame; the view must be treated as read-only.
func (f *Frame) Prefix(end int) *Frame {
	if end > len(f.bars) {
		end = len(f.bars)
	}
	view := &Frame{
		InstrumentID: f.InstrumentID,
		Symbol:       f.Symbol,
		bars:         f.bars[:end],
		features:     make(map[string][]float64, len(f.features)),
	}
	for name, col := range f.features {
		view.features[name] = col[:end]
	}
	return view
}

// MergeBenchmark inner-joins the benchmark bars on timestamp and stores the
// forward-filled benchmark close series as a feature column. Frame bars
// preceding the first benchmark observation are dropped.
func (f *Frame) MergeBenchmark(benchmark []Bar) error {
	if len(benchmark) == 0 {
		return fmt.Errorf("%w: benchmark series", ErrEmptyData)
	}
	byTS := make(map[int64]float64, len(benchmark))
	first := benchmark[0].Timestamp
	for _, b := range benchmark {
		byTS[b.Timestamp.UTC().Unix()] = b.Close
		if b.Timestamp.Before(first) {
			first = b.Timestamp
		}
	}

	var (
		kept   []Bar
		col    []float64
		last   float64
		seeded bool
	)
	for _, b := range f.bars {
		if b.Timestamp.Before(first) {
			continue
		}
		if v, ok := byTS[b.Timestamp.UTC().Unix()]; ok {
			last = v
			seeded = true
		}
		if !seeded {
			continue
		}
		kept = append(kept, b)
		col = append(col, last)
	}
	if len(kept) == 0 {
		return fmt.Errorf("%w: no overlap with benchmark series", ErrEmptyData)
	}

	// Feature columns computed prior to the merge would be misaligned.
	if len(f.features) > 0 {
		return fmt.Errorf("%w: benchmark must be merged before feature columns", ErrInvariant)
	}
	f.bars = kept
	f.features = map[string][]float64{BenchmarkColumn: col}
	return nil
}

// ValidateFeatures checks that every feature column is free of NaN from
// reqPeriod onward, the first index on which signals may fire, and that
// reqPeriod fits within the frame.
func (f *Frame) ValidateFeatures(reqPeriod int) error {
	if reqPeriod >= len(f.bars) {
		return fmt.Errorf(
			"%w: required period %d exceeds frame length %d",
			ErrInvariant, reqPeriod, len(f.bars),
		)
	}
	for name, col := range f.features {
		for i := reqPeriod; i < len(col); i++ {
			if math.IsNaN(col[i]) {
				return fmt.Errorf(
					"%w: feature %q is NaN at index %d (required from %d)",
					ErrInvariant, name, i, reqPeriod,
				)
			}
		}
	}
	return nil
}
