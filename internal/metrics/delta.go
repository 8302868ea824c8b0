package metrics

// Delta describes how one metric moved between two runs.
type Delta struct {
	Name       string  `json:"name"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
	Diff       float64 `json:"diff"`
	OnlyBefore bool    `json:"only_before,omitempty"`
	OnlyAfter  bool    `json:"only_after,omitempty"`
}

// Diff compares two metric sets. Order follows the "after" set, with
// metrics that disappeared appended at the end in "before" order.
func Diff(before, after *Set) []Delta {
	var deltas []Delta

	for _, m := range after.All() {
		prev, ok := before.Get(m.Name)
		if !ok {
			deltas = append(deltas, Delta{Name: m.Name, After: m.Value, OnlyAfter: true})
			continue
		}
		deltas = append(deltas, Delta{
			Name:   m.Name,
			Before: prev,
			After:  m.Value,
			Diff:   m.Value - prev,
		})
	}

	for _, m := range before.All() {
		if _, ok := after.Get(m.Name); !ok {
			deltas = append(deltas, Delta{Name: m.Name, Before: m.Value, OnlyBefore: true})
		}
	}

	return deltas
}
