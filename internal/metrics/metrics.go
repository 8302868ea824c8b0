// Package metrics parses and evaluates the measurements a training run
// leaves behind in its results directory.
package metrics

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Metric is a single named measurement.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Set holds parsed metrics in file order. Lookup is tolerant of case and
// spacing so "F1 Score", "f1_score" and "F1-score" all find the same entry.
type Set struct {
	metrics []Metric
	index   map[string]int
}

// Parse reads metrics from free-form text. The expected shape is
// "Accuracy = 0.85, F1 Score = 0.82.": name/value pairs separated by
// commas or newlines, with optional trailing period and percent signs.
func Parse(text string) (*Set, error) {
	set := &Set{index: map[string]int{}}

	for _, part := range splitPairs(text) {
		name, raw, ok := strings.Cut(part, "=")
		if !ok {
			// Tolerate colon-separated files from older training scripts.
			name, raw, ok = strings.Cut(part, ":")
			if !ok {
				continue
			}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		value, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", name, err)
		}

		set.add(Metric{Name: name, Value: value})
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("no metrics found in %q", strings.TrimSpace(text))
	}
	return set, nil
}

// NewSet builds a set from already parsed metrics, preserving order.
// Duplicate names keep the later value, as in Parse.
func NewSet(list []Metric) *Set {
	set := &Set{index: map[string]int{}}
	for _, m := range list {
		set.add(m)
	}
	return set
}

// ParseFile reads and parses a metrics file.
func ParseFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metrics file: %w", err)
	}

	set, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return set, nil
}

// splitPairs breaks the raw text into candidate "name = value" fragments.
// Commas and newlines both act as separators.
func splitPairs(text string) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				parts = append(parts, part)
			}
		}
	}
	return parts
}

// parseValue parses a metric value, stripping a trailing period (the
// original training script ends the file with a sentence) and converting
// percentages to fractions.
func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ".")
	raw = strings.TrimSpace(raw)

	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	if percent {
		value /= 100
	}
	return value, nil
}

func (s *Set) add(m Metric) {
	key := normalize(m.Name)
	if i, exists := s.index[key]; exists {
		s.metrics[i] = m // later values win
		return
	}
	s.index[key] = len(s.metrics)
	s.metrics = append(s.metrics, m)
}

// Get looks up a metric by name, tolerant of case and separator style.
func (s *Set) Get(name string) (float64, bool) {
	i, ok := s.index[normalize(name)]
	if !ok {
		return 0, false
	}
	return s.metrics[i].Value, true
}

// Names returns metric names in file order.
func (s *Set) Names() []string {
	names := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		names[i] = m.Name
	}
	return names
}

// All returns the metrics in file order.
func (s *Set) All() []Metric {
	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Len returns the number of metrics.
func (s *Set) Len() int {
	return len(s.metrics)
}

// Format renders the set back into the canonical single-line form used by
// the results file and the report body.
func (s *Set) Format() string {
	parts := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		parts[i] = fmt.Sprintf("%s = %s", m.Name, FormatValue(m.Value))
	}
	return strings.Join(parts, ", ") + "."
}

// FormatValue renders a metric value without artificial zero padding.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Find looks up a metric in a plain slice, with the same tolerant matching
// as [Set.Get]. Useful for metrics carried inside a serialized outcome.
func Find(list []Metric, name string) (float64, bool) {
	key := normalize(name)
	for _, m := range list {
		if normalize(m.Name) == key {
			return m.Value, true
		}
	}
	return 0, false
}

// normalize maps a metric name to its lookup key: lowercase with
// separators removed, so spacing and underscore conventions don't matter.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '_', '-', '\t':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
