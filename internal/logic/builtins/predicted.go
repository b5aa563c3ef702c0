package builtins

import (
	"tradesys/internal/domain"
	"tradesys/internal/logic"
	"tradesys/internal/position"
	"tradesys/internal/session"
)

// PredictedEntry trades a precomputed prediction column: a positive class
// on the latest bar enters long, a zero-or-negative one exits. The column
// is produced upstream by a model and attached as a frame feature.
func PredictedEntry() logic.Logic {
	return logic.Logic{
		Name:  "predicted_entry",
		Entry: predEntry,
		Exit:  predExit,
	}
}

func predEntry(frame *domain.Frame, _ session.Args) (*position.Order, error) {
	if !(frame.FeatureAt(string(domain.FieldPredColumn), frame.Len()-1) > 0) {
		return nil, nil
	}
	return position.NewMarketOrder(
		domain.MarketStateEntry, domain.DirectionLong, frame.LastDT(),
	)
}

func predExit(frame *domain.Frame, pos *position.Position, _ session.Args) (*position.Order, error) {
	if frame.FeatureAt(string(domain.FieldPredColumn), frame.Len()-1) > 0 {
		return nil, nil
	}
	return position.NewMarketOrder(domain.MarketStateExit, pos.Direction(), frame.LastDT())
}
