package builtins

import (
	"tradesys/internal/domain"
	"tradesys/internal/logic"
	"tradesys/internal/position"
	"tradesys/internal/session"
)

// rsiPeriod is the lookback of the mean-reversion RSI column.
const rsiPeriod = 14

// RSIMeanReversion buys oversold closes and sells them back once the RSI
// recovers. The RSI column is derived during preprocessing.
func RSIMeanReversion() logic.Logic {
	return logic.Logic{
		Name:  "rsi_mean_reversion",
		Entry: rsiEntry,
		Exit:  rsiExit,
		Preprocess: func(frame *domain.Frame) error {
			return logic.ApplyRSI(frame, rsiPeriod)
		},
	}
}

func rsiEntry(frame *domain.Frame, args session.Args) (*position.Order, error) {
	threshold := args.Float(domain.FieldRSIEntryThreshold, 30)
	rsi := frame.FeatureAt(logic.FeatureRSI, frame.Len()-1)
	if !(rsi < threshold) {
		return nil, nil
	}
	return position.NewMarketOrder(
		domain.MarketStateEntry, domain.DirectionLong, frame.LastDT(),
	)
}

func rsiExit(frame *domain.Frame, pos *position.Position, args session.Args) (*position.Order, error) {
	threshold := args.Float(domain.FieldRSIExitThreshold, 70)
	rsi := frame.FeatureAt(logic.FeatureRSI, frame.Len()-1)
	if !(rsi > threshold) {
		return nil, nil
	}
	return position.NewMarketOrder(domain.MarketStateExit, pos.Direction(), frame.LastDT())
}
