package domain

// Field is a typed identifier for the persistent record format. Business
// logic passes Field values instead of raw string keys; the string value is
// only visible at the storage boundary.
type Field string

// Signal record fields.
const (
	FieldSignalDT          Field = "signal_dt"
	FieldSymbol            Field = "symbol"
	FieldOrder             Field = "order"
	FieldPeriodsInPosition Field = "periods_in_position"
	FieldUnrealisedReturn  Field = "unrealised_return"
	FieldMarketState       Field = "market_state"
)

// Trading system record fields.
const (
	FieldSystemID       Field = "system_id"
	FieldSystemName     Field = "system_name"
	FieldInstrumentID   Field = "instrument_id"
	FieldNumOfPeriods   Field = "num_of_periods"
	FieldPositionList   Field = "position_list"
	FieldReqPeriodIters Field = "req_period_iters"
	FieldPredColumn     Field = "pred"
)

// Strategy argument fields.
const (
	FieldEntryPeriodLookback Field = "entry_period_lookback"
	FieldExitPeriodLookback  Field = "exit_period_lookback"
	FieldRSIEntryThreshold   Field = "rsi_entry_threshold"
	FieldRSIExitThreshold    Field = "rsi_exit_threshold"
	FieldMaxOrderDuration    Field = "max_order_duration"
)

// Metric summary fields.
const (
	MetricSymbol              Field = "symbol"
	MetricNumOfPositions      Field = "number_of_positions"
	MetricStartCapital        Field = "start_capital"
	MetricFinalCapital        Field = "final_capital"
	MetricTotalGrossProfit    Field = "total_gross_profit"
	MetricAvgPosNetProfit     Field = "avg_pos_net_profit"
	MetricPctWins             Field = "pct_wins"
	MetricProfitFactor        Field = "profit_factor"
	MetricExpectancy          Field = "expectancy"
	MetricSharpeRatio         Field = "sharpe_ratio"
	MetricRateOfReturn        Field = "rate_of_return"
	MetricMeanPL              Field = "mean_pl"
	MetricMedianPL            Field = "median_pl"
	MetricStdPL               Field = "std_pl"
	MetricMeanReturn          Field = "mean_return"
	MetricMedianReturn        Field = "median_return"
	MetricStdReturn           Field = "std_of_returns"
	MetricAvgMAE              Field = "avg_mae"
	MetricMinMAE              Field = "min_mae"
	MetricAvgMFE              Field = "avg_mfe"
	MetricMaxMFE              Field = "max_mfe"
	MetricMaxDrawdown         Field = "max_drawdown_pct"
	MetricROMAD               Field = "romad"
	MetricCAGR                Field = "cagr_pct"
	MetricAvgPeriodsInPos     Field = "avg_periods_in_positions"
	MetricAvgPeriodsInWinners Field = "avg_periods_in_winning_positions"
	MetricAvgPeriodsInLosers  Field = "avg_periods_in_losing_positions"
	MetricUnderlyingSharpe    Field = "underlying_sharpe_ratio"
	MetricUnderlyingMaxDD     Field = "underlying_max_drawdown_pct"
	MetricUnderlyingCAGR      Field = "underlying_cagr_pct"
)

// Position sizer output fields.
const (
	SizerSafeF           Field = "safe-f"
	SizerCapitalFraction Field = "capital_fraction"
	SizerPersistentSafeF Field = "persistant_safe_f"
	SizerCAR25           Field = "car25"
	SizerCAR75           Field = "car75"
)

// EvaluationFields are the metric fields attached to entry signals so the
// caller can rank today's candidates.
func EvaluationFields() []Field {
	return []Field{
		MetricSymbol, MetricSharpeRatio, MetricExpectancy,
		MetricProfitFactor, MetricCAGR, MetricPctWins,
		MetricMeanReturn, MetricMaxDrawdown, MetricROMAD,
	}
}
