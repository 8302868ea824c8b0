package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlship/mlship/internal/validation"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project configuration file the loader looks for.
const ConfigFileName = "mlship.yaml"

// Load finds mlship.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults rooted at startDir with a
// nil error. Real I/O errors (e.g. permission denied) are returned to the
// caller.
func Load(startDir string) (*Spec, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", startDir, err)
	}

	path, data, err := findConfigFile(absStart)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			spec := New()
			spec.Dir = absStart
			applyNameDefault(spec)
			return spec, nil // no file found → defaults
		}
		return nil, fmt.Errorf("loading %s: %w", ConfigFileName, err)
	}

	return parseSpec(data, filepath.Dir(path))
}

// LoadFile loads a specific configuration file (e.g. `mlship run ci.yaml`).
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	absDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	return parseSpec(data, absDir)
}

func parseSpec(data []byte, dir string) (*Spec, error) {
	// Schema first: structural mistakes (typoed keys, wrong types) produce
	// clearer messages than yaml decode errors do.
	if errs := validation.ValidatePipelineBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid %s:\n  %s", ConfigFileName, strings.Join(errs, "\n  "))
	}

	var fileSpec Spec
	if err := yaml.Unmarshal(data, &fileSpec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	spec := New()
	mergeSpec(spec, &fileSpec)
	spec.Dir = dir
	applyNameDefault(spec)

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return spec, nil
}

// findConfigFile walks up from dir looking for mlship.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) (string, []byte, error) {
	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ConfigFileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeSpec overlays non-zero values from src onto dst.
func mergeSpec(dst, src *Spec) {
	// Identity
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Description != "" {
		dst.Description = src.Description
	}

	// Project
	if src.Project.Python != "" {
		dst.Project.Python = src.Project.Python
	}
	if src.Project.Requirements != "" {
		dst.Project.Requirements = src.Project.Requirements
	}

	// Paths
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}
	if src.Paths.Model != "" {
		dst.Paths.Model = src.Paths.Model
	}
	if src.Paths.App != "" {
		dst.Paths.App = src.Paths.App
	}

	// Config
	if src.Config.Engine != "" {
		dst.Config.Engine = src.Config.Engine
	}
	if src.Config.TimeoutSec != 0 {
		dst.Config.TimeoutSec = src.Config.TimeoutSec
	}
	if src.Config.StreamOutput != nil {
		dst.Config.StreamOutput = src.Config.StreamOutput
	}
	if src.Config.FailFast != nil {
		dst.Config.FailFast = src.Config.FailFast
	}

	// Pipeline order: the file's list replaces the default wholesale.
	if len(src.Pipeline) > 0 {
		dst.Pipeline = src.Pipeline
	}

	// Stage options: each configured stage block replaces the (empty)
	// default for that stage.
	for name, opts := range src.Stages {
		dst.Stages[name] = opts
	}

	// Hooks
	dst.Hooks = src.Hooks
}

// applyNameDefault derives a project name from the directory when the
// config does not set one, so reports and scaffolds always have something
// to print.
func applyNameDefault(spec *Spec) {
	if spec.Name != "" {
		return
	}
	spec.Name = sanitizeName(filepath.Base(spec.Dir))
}

// sanitizeName lowercases and strips a candidate name down to the
// [a-z0-9-] alphabet the schema allows.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "ml-project"
	}
	return out
}
