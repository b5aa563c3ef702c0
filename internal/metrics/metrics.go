// Package metrics aggregates closed positions into performance statistics
// and manages the capital allocated to generate them.
package metrics

import (
	"math"

	"tradesys/internal/domain"
	"tradesys/internal/position"
)

const (
	// yearlyPeriods is the assumed number of trading periods per year for
	// annualised figures on daily data.
	yearlyPeriods = 251

	// riskFreeRate is the assumed yearly return of a risk free asset.
	riskFreeRate = 0.05
)

// Summary holds calculated statistics keyed by metric field. Fields whose
// value could not be computed are absent rather than carrying NaN.
type Summary map[domain.Field]any

// Metrics iterates over a collection of positions and derives performance
// statistics from them.
type Metrics struct {
	symbol            string
	startCapital      float64
	numTestingPeriods int

	positions []*position.Position

	equity     []float64
	profitLoss []float64
	returns    []float64
	mtmReturns []float64

	posNetResults   []float64
	posGrossResults []float64
	periodLens      []float64
	winPeriodLens   []float64
	losePeriodLens  []float64

	wins        []float64
	netWins     []float64
	grossWins   []float64
	losses      []float64
	netLosses   []float64
	grossLosses []float64

	maeList  []float64
	wMAEList []float64
	mfeList  []float64

	calculated bool

	finalCapital float64
	pctWins      float64
	pctLosses    float64
	maxDrawdown  float64
	rateOfReturn float64
	cagr         float64
	sharpe       float64
	expectancy   float64
	profitFactor float64
	roMad        float64

	underlyingSharpe float64
	underlyingMaxDD  float64
	underlyingCAGR   float64
}

// New creates a Metrics aggregator for the given symbol, starting capital
// and the number of periods in the dataset the positions were generated
// from.
func New(symbol string, startCapital float64, numTestingPeriods int) *Metrics {
	return &Metrics{
		symbol:            symbol,
		startCapital:      startCapital,
		numTestingPeriods: numTestingPeriods,
		equity:            []float64{startCapital},
	}
}

func (m *Metrics) Symbol() string                  { return m.symbol }
func (m *Metrics) StartCapital() float64           { return m.startCapital }
func (m *Metrics) NumTestingPeriods() int          { return m.numTestingPeriods }
func (m *Metrics) Positions() []*position.Position { return m.positions }
func (m *Metrics) EquityCurve() []float64          { return m.equity }
func (m *Metrics) Returns() []float64              { return m.returns }
func (m *Metrics) MTMReturns() []float64           { return m.mtmReturns }
func (m *Metrics) PeriodLens() []float64           { return m.periodLens }
func (m *Metrics) MAEList() []float64              { return m.maeList }
func (m *Metrics) MFEList() []float64              { return m.mfeList }

// MaxDrawdown is the maximum peak-to-trough drawdown of the equity curve
// in percent. Valid after Calculate.
func (m *Metrics) MaxDrawdown() float64 { return m.maxDrawdown }

// FinalCapital is the last value of the equity curve truncated to whole
// currency units. Valid after Calculate.
func (m *Metrics) FinalCapital() float64 { return m.finalCapital }

// Calculate walks the positions in order, extends the equity curve by
// compounding each position's mark-to-market returns against its entry
// value and subtracting commission on exit, and derives the summary
// statistics. The optional underlying price series yields benchmark
// figures for comparison.
func (m *Metrics) Calculate(positions []*position.Position, underlying []float64) {
	for _, pos := range positions {
		m.positions = append(m.positions, pos)

		entryPrice, _ := pos.EntryPrice().Float64()
		posValue := entryPrice * float64(pos.PositionSize())
		for _, mtm := range pos.MTMReturns() {
			r, _ := mtm.Float64()
			m.equity = append(m.equity, round2(m.equity[len(m.equity)-1]+posValue*(r/100)))
			posValue += posValue * (r / 100)
		}
		commission, _ := pos.Commission().Float64()
		m.equity[len(m.equity)-1] -= commission

		pl, _ := pos.ProfitLoss().Float64()
		ret, _ := pos.PositionReturn().Float64()
		net, _ := pos.NetResult().Float64()
		gross, _ := pos.GrossResult().Float64()
		mae, _ := pos.MAE().Float64()
		mfe, _ := pos.MFE().Float64()
		periods := float64(pos.PeriodsInPosition())

		m.profitLoss = append(m.profitLoss, pl)
		m.returns = append(m.returns, ret)
		for _, mtm := range pos.MTMReturns() {
			r, _ := mtm.Float64()
			m.mtmReturns = append(m.mtmReturns, r)
		}
		m.posNetResults = append(m.posNetResults, net)
		m.posGrossResults = append(m.posGrossResults, gross)
		m.periodLens = append(m.periodLens, periods)

		if pl > 0 {
			m.wins = append(m.wins, pl)
			m.netWins = append(m.netWins, net)
			m.grossWins = append(m.grossWins, gross)
			m.wMAEList = append(m.wMAEList, mae)
			m.winPeriodLens = append(m.winPeriodLens, periods)
		} else {
			m.losses = append(m.losses, pl)
			m.netLosses = append(m.netLosses, net)
			m.grossLosses = append(m.grossLosses, gross)
			m.losePeriodLens = append(m.losePeriodLens, periods)
		}

		m.maeList = append(m.maeList, mae)
		m.mfeList = append(m.mfeList, mfe)
	}

	if len(m.positions) == 0 {
		return
	}

	m.finalCapital = math.Trunc(m.equity[len(m.equity)-1])
	if len(m.wins) > 0 {
		m.pctWins = float64(len(m.wins)) / float64(len(m.positions)) * 100
	}
	if len(m.losses) > 0 {
		m.pctLosses = float64(len(m.losses)) / float64(len(m.positions)) * 100
	}

	m.cagr = m.calculateCAGR()
	m.maxDrawdown = MaxDrawdownPct(m.equity)
	m.rateOfReturn = (m.finalCapital - m.startCapital) / m.startCapital * 100
	m.sharpe = m.calculateSharpe()
	m.expectancy = m.calculateExpectancy()
	m.profitFactor = m.calculateProfitFactor()

	if m.maxDrawdown != 0 {
		m.roMad = m.rateOfReturn / m.maxDrawdown
	}

	if len(underlying) > 1 {
		underlyingReturns := make([]float64, 0, len(underlying)-1)
		for n := 1; n < len(underlying); n++ {
			underlyingReturns = append(underlyingReturns, (underlying[n]-underlying[n-1])/underlying[n-1])
		}
		m.underlyingSharpe = AnnualisedSharpe(underlyingReturns)
		m.underlyingMaxDD = MaxDrawdownPct(underlying)
		m.underlyingCAGR = CAGRPct(underlying[0], underlying[len(underlying)-1], len(underlying))
	} else {
		m.underlyingSharpe = math.NaN()
		m.underlyingMaxDD = math.NaN()
		m.underlyingCAGR = math.NaN()
	}

	m.calculated = true
}

// Summary returns the calculated statistics. When no positions were
// calculated only the symbol is present; fields that evaluate to NaN or
// infinity are omitted rather than carried as non-numbers.
func (m *Metrics) Summary() Summary {
	s := Summary{domain.MetricSymbol: m.symbol}
	if !m.calculated {
		return s
	}

	s[domain.MetricNumOfPositions] = len(m.returns)
	s[domain.MetricStartCapital] = m.startCapital
	s[domain.MetricFinalCapital] = m.finalCapital
	s[domain.MetricTotalGrossProfit] = m.finalCapital - m.startCapital
	s.put(domain.MetricAvgPosNetProfit, round3(mean(m.posNetResults)))
	s[domain.MetricPctWins] = m.pctWins
	s.put(domain.MetricProfitFactor, round3(m.profitFactor))
	s.put(domain.MetricExpectancy, round3(m.expectancy))
	s.put(domain.MetricSharpeRatio, round3(m.sharpe))
	s[domain.MetricRateOfReturn] = m.rateOfReturn
	s.put(domain.MetricMeanPL, round3(mean(m.profitLoss)))
	s.put(domain.MetricMedianPL, round3(median(m.profitLoss)))
	s.put(domain.MetricStdPL, round3(std(m.profitLoss)))
	s.put(domain.MetricMeanReturn, round3(mean(m.returns)))
	s.put(domain.MetricMedianReturn, round3(median(m.returns)))
	s.put(domain.MetricStdReturn, round3(std(m.returns)))
	s.put(domain.MetricAvgMAE, round3(mean(m.maeList)))
	s.put(domain.MetricMinMAE, round3(minOf(m.maeList)))
	s.put(domain.MetricAvgMFE, round3(mean(m.mfeList)))
	s.put(domain.MetricMaxMFE, round3(maxOf(m.mfeList)))
	s[domain.MetricMaxDrawdown] = m.maxDrawdown
	s.put(domain.MetricROMAD, round3(m.roMad))
	s.put(domain.MetricCAGR, round3(m.cagr))
	s.put(domain.MetricAvgPeriodsInPos, round3(mean(m.periodLens)))
	s.put(domain.MetricAvgPeriodsInWinners, math.Round(mean(m.winPeriodLens)))
	s.put(domain.MetricAvgPeriodsInLosers, math.Round(mean(m.losePeriodLens)))
	s.put(domain.MetricUnderlyingSharpe, m.underlyingSharpe)
	s.put(domain.MetricUnderlyingMaxDD, m.underlyingMaxDD)
	s.put(domain.MetricUnderlyingCAGR, m.underlyingCAGR)
	return s
}

// put stores the value unless it is NaN or infinite.
func (s Summary) put(key domain.Field, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s[key] = v
}

func (m *Metrics) calculateCAGR() float64 {
	initial := m.equity[0]
	final := m.equity[len(m.equity)-1]
	years := float64(m.numTestingPeriods) / yearlyPeriods
	if years == 0 {
		return 0
	}
	if final < 0 {
		initial += math.Abs(final)
		final = 0
	}
	cagr := math.Pow(final/initial, 1/years) - 1
	if math.IsNaN(cagr) {
		return 0
	}
	return cagr * 100
}

func (m *Metrics) calculateSharpe() float64 {
	if len(m.mtmReturns) == 0 {
		return math.NaN()
	}
	excess := make([]float64, len(m.mtmReturns))
	for i, r := range m.mtmReturns {
		excess[i] = r/100 - riskFreeRate/yearlyPeriods
	}
	sd := std(excess)
	if sd == 0 {
		return math.NaN()
	}
	return math.Sqrt(yearlyPeriods) * mean(excess) / sd
}

func (m *Metrics) calculateExpectancy() float64 {
	if len(m.positions) == 0 {
		return math.NaN()
	}
	avgProfit := sum(m.posNetResults) / float64(len(m.positions))
	avgLoss := 1.0
	if len(m.netLosses) > 0 {
		avgLoss = mean(m.netLosses)
	}
	if avgLoss == 0 {
		return math.NaN()
	}
	return avgProfit / math.Abs(avgLoss)
}

func (m *Metrics) calculateProfitFactor() float64 {
	switch {
	case len(m.grossWins) > 0 && len(m.grossLosses) > 0:
		return sum(m.grossWins) / math.Abs(sum(m.grossLosses))
	case len(m.grossWins) > 0:
		return math.Inf(1)
	case len(m.grossLosses) > 0:
		return math.Inf(-1)
	}
	return math.NaN()
}
