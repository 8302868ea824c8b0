// Package workspace provides ML project detection for mlship commands.
// It analyzes directory structures to identify single-project or
// multi-project workspaces and locates training scripts using a
// priority-based search.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlship/mlship/internal/pipeline"
)

// ContextType represents the type of workspace detected.
type ContextType int

const (
	ContextNone          ContextType = iota
	ContextSingleProject             // CWD is inside a single ML project
	ContextMultiProject              // workspace contains multiple projects
)

// maxParentWalk is the maximum number of parent directories to walk up when searching.
const maxParentWalk = 10

// DetectOption configures workspace detection behavior.
type DetectOption func(*detectOptions)

type detectOptions struct {
	trainScript string // training entrypoint file name (default "train.py")
}

func defaultDetectOptions() detectOptions {
	return detectOptions{trainScript: pipeline.DefaultTrainScript}
}

// WithTrainScript overrides the training script name used during detection.
func WithTrainScript(name string) DetectOption {
	return func(o *detectOptions) {
		if name != "" {
			o.trainScript = name
		}
	}
}

// ProjectInfo holds information about a discovered ML project.
type ProjectInfo struct {
	Name       string // project name from mlship.yaml (or the directory name)
	Dir        string // absolute path to the project directory
	ConfigPath string // absolute path to mlship.yaml (empty if not found)
}

// WorkspaceContext represents the detected workspace.
type WorkspaceContext struct {
	Type     ContextType
	Root     string        // workspace root directory
	Projects []ProjectInfo // discovered projects
}

// DetectContext analyzes the given directory to determine workspace type.
// It checks:
// 1. CWD for mlship.yaml or a training script → single project
// 2. Walk up parents for the same markers → single project (nested inside)
// 3. Scan CWD for child dirs that are projects → multi-project
func DetectContext(dir string, opts ...DetectOption) (*WorkspaceContext, error) {
	o := defaultDetectOptions()
	for _, fn := range opts {
		fn(&o)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	fi, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("inspecting workspace directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	// 1. Check if the given directory is itself a project
	if info, ok := tryParseProject(absDir, o); ok {
		return &WorkspaceContext{
			Type:     ContextSingleProject,
			Root:     absDir,
			Projects: []ProjectInfo{info},
		}, nil
	}

	// 2. Walk up parent directories looking for project markers
	current := absDir
	for i := 0; i < maxParentWalk; i++ {
		parent := filepath.Dir(current)
		if parent == current {
			break // reached filesystem root
		}
		current = parent

		if info, ok := tryParseProject(current, o); ok {
			return &WorkspaceContext{
				Type:     ContextSingleProject,
				Root:     current,
				Projects: []ProjectInfo{info},
			}, nil
		}
	}

	// 3. Scan immediate children of dir for projects
	projects := scanForProjects(absDir, o)
	if len(projects) > 0 {
		return &WorkspaceContext{
			Type:     ContextMultiProject,
			Root:     absDir,
			Projects: projects,
		}, nil
	}

	// Nothing found
	return &WorkspaceContext{
		Type:     ContextNone,
		Root:     absDir,
		Projects: nil,
	}, nil
}

// FindProject locates a named project in the workspace.
func FindProject(ctx *WorkspaceContext, name string) (*ProjectInfo, error) {
	if ctx == nil {
		return nil, errors.New("no workspace context")
	}
	for i := range ctx.Projects {
		if ctx.Projects[i].Name == name {
			return &ctx.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %q not found in workspace", name)
}

// FindTrainScript locates the training entrypoint for a project directory
// using priority order:
// 1. {dir}/{name}           (repo root convention)
// 2. {dir}/src/{name}       (src layout)
// 3. {dir}/scripts/{name}   (scripts layout)
// Returns empty string if none found (not an error). An empty name means
// the default training script.
func FindTrainScript(dir, name string) string {
	if name == "" {
		name = pipeline.DefaultTrainScript
	}

	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, "src", name),
		filepath.Join(dir, "scripts", name),
	}
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}
	return ""
}

// tryParseProject checks if dir holds an ML project: an mlship.yaml, or a
// training script when no config exists.
func tryParseProject(dir string, o detectOptions) (ProjectInfo, bool) {
	configPath := filepath.Join(dir, pipeline.ConfigFileName)
	if isFile(configPath) {
		name, err := loadProjectName(configPath)
		if err != nil || name == "" {
			// Fall back to directory name when the config does not parse
			name = filepath.Base(dir)
		}
		return ProjectInfo{
			Name:       name,
			Dir:        dir,
			ConfigPath: configPath,
		}, true
	}

	if isFile(filepath.Join(dir, o.trainScript)) {
		return ProjectInfo{
			Name: filepath.Base(dir),
			Dir:  dir,
		}, true
	}

	return ProjectInfo{}, false
}

// scanForProjects scans immediate child directories of parentDir for projects.
func scanForProjects(parentDir string, o detectOptions) []ProjectInfo {
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return nil
	}

	var projects []ProjectInfo
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childDir := filepath.Join(parentDir, entry.Name())
		if info, ok := tryParseProject(childDir, o); ok {
			projects = append(projects, info)
		}
	}
	return projects
}

// loadProjectName reads an mlship.yaml and extracts the project name.
func loadProjectName(path string) (string, error) {
	spec, err := pipeline.LoadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(spec.Name), nil
}

// isFile returns true if path exists and is a regular file.
func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// LooksLikePath returns true if the string appears to be a file path
// rather than a project name. Exported so that CLI commands can share the
// same heuristic without duplication.
func LooksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\`) ||
		filepath.Ext(s) != "" ||
		s == "."
}
