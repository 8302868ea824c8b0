package metrics

// Threshold is a minimum-value quality gate for one metric.
type Threshold struct {
	Metric string  `yaml:"metric" json:"metric"`
	Min    float64 `yaml:"min" json:"min"`
}

// GateResult records how one metric fared against its threshold.
type GateResult struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Missing   bool    `json:"missing,omitempty"`
}

// Evaluate checks every threshold against the set. A metric the set does
// not contain fails its gate outright, since a silently skipped gate would
// let a renamed metric disable the check.
func Evaluate(set *Set, thresholds []Threshold) []GateResult {
	results := make([]GateResult, 0, len(thresholds))
	for _, t := range thresholds {
		value, ok := set.Get(t.Metric)
		if !ok {
			results = append(results, GateResult{
				Metric:    t.Metric,
				Threshold: t.Min,
				Missing:   true,
			})
			continue
		}
		results = append(results, GateResult{
			Metric:    t.Metric,
			Value:     value,
			Threshold: t.Min,
			Passed:    value >= t.Min,
		})
	}
	return results
}

// AllPassed reports whether every gate passed.
func AllPassed(results []GateResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
