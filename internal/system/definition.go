package system

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tradesys/internal/domain"
	"tradesys/internal/logic"
	"tradesys/internal/session"
	"tradesys/internal/sizer"
)

// InstrumentDef identifies one instrument in a system definition file.
type InstrumentDef struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	Exchange string `yaml:"exchange"`
}

// SizerDef holds the position-sizer parameters of a definition file.
type SizerDef struct {
	ToleratedPctMaxDrawdown  float64 `yaml:"tolerated_pct_max_drawdown"`
	MaxDDPercentileThreshold float64 `yaml:"max_dd_percentile_threshold"`
	AvgYearlyPeriods         float64 `yaml:"avg_yearly_periods"`
	YearsToForecast          float64 `yaml:"years_to_forecast"`
	NumOfSims                int     `yaml:"num_of_sims"`
}

// Definition is one trading system as declared in a YAML definition file.
// Logic is resolved by name against a Registry when building Properties.
type Definition struct {
	Name                 string             `yaml:"name"`
	Logic                string             `yaml:"logic"`
	RequiredRuns         int                `yaml:"required_runs"`
	Capital              float64            `yaml:"capital"`
	CommissionPct        float64            `yaml:"commission_pct"`
	FixedPositionSize    bool               `yaml:"fixed_position_size"`
	PosListSliceYearsEst float64            `yaml:"pos_list_slice_years_est"`
	Benchmark            InstrumentDef      `yaml:"benchmark"`
	Instruments          []InstrumentDef    `yaml:"instruments"`
	EntryArgs            map[string]float64 `yaml:"entry_args"`
	ExitArgs             map[string]float64 `yaml:"exit_args"`
	Sizer                *SizerDef          `yaml:"sizer"`
}

// LoadDefinitions reads every YAML definition file in dir, sorted by file
// name.
func LoadDefinitions(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading definitions dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Properties resolves the definition against the logic registry and builds
// runnable strategy properties.
func (d Definition) Properties(reg *logic.Registry) (*Properties, error) {
	l, ok := reg.Get(d.Logic)
	if !ok {
		return nil, fmt.Errorf("%w: unknown logic %q in system %s", domain.ErrInvariant, d.Logic, d.Name)
	}

	instruments := make([]domain.Instrument, len(d.Instruments))
	for i, inst := range d.Instruments {
		instruments[i] = domain.Instrument{ID: inst.ID, Symbol: inst.Symbol, Exchange: inst.Exchange}
	}

	props := &Properties{
		SystemName:           d.Name,
		RequiredRuns:         max(d.RequiredRuns, 1),
		Instruments:          instruments,
		Entry:                l.Entry,
		Exit:                 l.Exit,
		EntryArgs:            toArgs(d.EntryArgs),
		ExitArgs:             toArgs(d.ExitArgs),
		StartCapital:         d.Capital,
		CommissionPct:        d.CommissionPct,
		FixedPositionSize:    d.FixedPositionSize,
		PosListSliceYearsEst: d.PosListSliceYearsEst,
	}
	if l.Preprocess != nil {
		props.Preprocess = PreprocessFunc(l.Preprocess)
	}
	if d.Sizer != nil {
		props.Sizer = sizer.New(d.Sizer.ToleratedPctMaxDrawdown, d.Sizer.MaxDDPercentileThreshold, nil)
		props.SizerOpts = sizer.DefaultOpts()
		if d.Sizer.AvgYearlyPeriods > 0 {
			props.SizerOpts.AvgYearlyPeriods = d.Sizer.AvgYearlyPeriods
		}
		if d.Sizer.YearsToForecast > 0 {
			props.SizerOpts.YearsToForecast = d.Sizer.YearsToForecast
		}
		if d.Sizer.NumOfSims > 0 {
			props.SizerOpts.NumOfSims = d.Sizer.NumOfSims
		}
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return props, nil
}

func toArgs(m map[string]float64) session.Args {
	args := make(session.Args, len(m))
	for k, v := range m {
		if v == float64(int(v)) {
			args[domain.Field(k)] = int(v)
		} else {
			args[domain.Field(k)] = v
		}
	}
	return args
}
