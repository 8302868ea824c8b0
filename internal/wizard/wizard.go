// Package wizard collects project settings interactively for mlship init.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/scaffold"
	"golang.org/x/term"
)

// Answers holds the fields collected by the init wizard.
type Answers struct {
	Name        string
	Description string
	Python      string
	Space       string
	Branch      string
}

// ScaffoldOptions converts the collected answers into scaffold options,
// trimming stray whitespace and filling defaults for skipped fields.
func (a Answers) ScaffoldOptions() scaffold.Options {
	opts := scaffold.Options{
		Name:        strings.TrimSpace(a.Name),
		Description: strings.TrimSpace(a.Description),
		Python:      strings.TrimSpace(a.Python),
		Space:       strings.TrimSpace(a.Space),
		Branch:      strings.TrimSpace(a.Branch),
	}
	if opts.Python == "" {
		opts.Python = pipeline.DefaultPython
	}
	if opts.Branch == "" {
		opts.Branch = pipeline.DefaultBranch
	}
	return opts
}

// Run walks the user through the project settings with a huh form. If
// initialName is non-empty it pre-populates the name field.
func Run(in io.Reader, out io.Writer, initialName string) (*Answers, error) {
	a := &Answers{
		Name:   initialName,
		Python: pipeline.DefaultPython,
		Branch: pipeline.DefaultBranch,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Description("A kebab-case name for your project").
				Placeholder("drug-classification").
				Value(&a.Name).
				Validate(func(s string) error {
					return scaffold.ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Description").
				Description("One line about what this project does (optional)").
				Value(&a.Description),
			huh.NewInput().
				Title("Python interpreter").
				Description("Command used to run pip and the training script").
				Value(&a.Python),
			huh.NewInput().
				Title("Space").
				Description("owner/name of the hub space to deploy to (optional)").
				Placeholder("owner/name").
				Value(&a.Space).
				Validate(func(s string) error {
					return scaffold.ValidateSpace(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Results branch").
				Description("Branch the pipeline force-pushes results to").
				Value(&a.Branch),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return a, nil
}
