package domain

import "errors"

// Error kinds the engine distinguishes. Wrap with fmt.Errorf("...: %w", ...)
// and test with errors.Is.
var (
	// ErrInvariant marks violated frame or lifecycle invariants: duplicate
	// or non-increasing timestamps, missing feature columns, a lookback
	// period longer than the frame.
	ErrInvariant = errors.New("invariant violation")

	// ErrDatetimeMismatch marks disagreement between persisted state and
	// input data timestamps. The processor skips the strategy.
	ErrDatetimeMismatch = errors.New("datetime mismatch")

	// ErrEmptyData marks an instrument frame that is empty or below the
	// required length. The instrument is dropped from the run.
	ErrEmptyData = errors.New("empty data")

	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("not found")
)
