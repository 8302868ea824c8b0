package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlship/mlship/internal/scaffold"
	"github.com/mlship/mlship/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var (
		interactive bool
		name        string
		description string
		python      string
		space       string
		branch      string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold the pipeline files for an ML project",
		Long: `Scaffold the pipeline files for an ML project.

Creates mlship.yaml, a .env.example listing the environment variables the
pipeline reads, a GitHub Actions workflow pair (CI runs the pipeline, CD
deploys the results branch), and a starter space card under App/.

Use --interactive for a guided form; otherwise flags and the directory
name fill in the values.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, scaffold.Options{
				Name:        name,
				Description: description,
				Python:      python,
				Space:       space,
				Branch:      branch,
			}, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided setup form")
	cmd.Flags().StringVar(&name, "name", "", "Project name (default: the directory name)")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&python, "python", "", "Python interpreter for the pipeline")
	cmd.Flags().StringVar(&space, "space", "", "Hub space as owner/name, enables the deploy stage")
	cmd.Flags().StringVar(&branch, "branch", "", "Results branch name")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, opts scaffold.Options, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Create the root directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if opts.Name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving directory: %w", err)
		}
		opts.Name = sanitizeProjectName(filepath.Base(abs))
	}

	// Run interactive form if requested
	if interactive {
		answers, err := wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout(), opts.Name)
		if err != nil {
			return err
		}
		opts = answers.ScaffoldOptions()
	}

	files, err := scaffold.Files(opts)
	if err != nil {
		return err
	}

	// Deterministic order for output and tests
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]fileEntry, 0, len(paths))
	for _, p := range paths {
		target := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(target), err)
		}
		entries = append(entries, fileEntry{path: target, content: files[p]})
	}

	if err := writeFiles(cmd, entries); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)                                                            //nolint:errcheck
	fmt.Fprintln(out, "Next steps:")                                             //nolint:errcheck
	fmt.Fprintln(out, "  1. Copy .env.example to .env and fill in the tokens")   //nolint:errcheck
	fmt.Fprintln(out, "  2. Run 'mlship check' to verify tools and credentials") //nolint:errcheck
	fmt.Fprintln(out, "  3. Run 'mlship run' to execute the pipeline")           //nolint:errcheck

	return nil
}

// sanitizeProjectName turns a directory name into a valid project name:
// lowercase, with anything outside [a-z0-9-] collapsed to hyphens.
func sanitizeProjectName(name string) string {
	lower := strings.ToLower(name)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, lower)
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		return "ml-project"
	}
	return mapped
}

// fileEntry pairs a path with its content for batch writing.
type fileEntry struct {
	path    string
	content string
}

// writeFiles writes each file, skipping any that already exist.
func writeFiles(cmd *cobra.Command, files []fileEntry) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Scaffolding project:") //nolint:errcheck

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  skip %s (already exists)\n", f.path) //nolint:errcheck
			continue
		}

		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  create %s\n", f.path) //nolint:errcheck
	}

	return nil
}
