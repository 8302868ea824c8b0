package orchestration

import (
	"fmt"
	"path/filepath"
)

// SelectStages applies the CLI's stage filters to the configured pipeline.
// from drops every stage before the named one; patterns are glob patterns
// over stage names and keep only matching stages. Empty filters return the
// pipeline unchanged. Order always follows the pipeline, not the filters.
func SelectStages(pipeline, patterns []string, from string) ([]string, error) {
	selected := pipeline
	if from != "" {
		idx := -1
		for i, name := range pipeline {
			if name == from {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("from stage %q is not in the pipeline %v", from, pipeline)
		}
		selected = pipeline[idx:]
	}

	if len(patterns) == 0 {
		return selected, nil
	}

	var matched []string
	for _, name := range selected {
		ok, err := matchesAny(name, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// matchesAny reports whether a stage name matches any pattern.
func matchesAny(name string, patterns []string) (bool, error) {
	for _, p := range patterns {
		ok, err := filepath.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("invalid stage filter pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
