package metrics

import (
	"math"
	"sort"

	"tradesys/internal/domain"
)

// SelectByMetric returns the instrument IDs whose summary value for the
// given field sits at or above the p-th percentile of the cross-section,
// sorted. Instruments lacking the field, or carrying a non-numeric or NaN
// value, are excluded from both the cut and the result.
func SelectByMetric(summaries map[string]Summary, field domain.Field, p float64) []string {
	type scored struct {
		id    string
		value float64
	}

	var candidates []scored
	for id, summary := range summaries {
		value, ok := numericField(summary, field)
		if !ok || math.IsNaN(value) {
			continue
		}
		candidates = append(candidates, scored{id: id, value: value})
	}
	if len(candidates) == 0 {
		return nil
	}

	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = c.value
	}
	cut := Percentile(values, p)

	var selected []string
	for _, c := range candidates {
		if c.value >= cut {
			selected = append(selected, c.id)
		}
	}
	sort.Strings(selected)
	return selected
}

func numericField(summary Summary, field domain.Field) (float64, bool) {
	raw, ok := summary[field]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
