package execution

import (
	"context"
	"strings"
)

// Engine is the interface for running the external commands pipeline stages
// are built from (pip, black, python, git).
type Engine interface {
	// Initialize sets up the engine
	Initialize(ctx context.Context) error

	// Execute runs a single command on behalf of a stage
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Shutdown cleans up resources
	Shutdown(ctx context.Context) error
}

// Request represents one command execution request.
type Request struct {
	// Stage names the pipeline stage this command belongs to, for logging
	// and error context.
	Stage string
	// Argv is the program and its arguments. Never empty.
	Argv []string
	// Dir is the working directory. Empty means the process default.
	Dir string
	// Env holds extra KEY=VALUE entries appended to the parent environment.
	Env []string
	// Stdin is piped to the command when non-empty.
	Stdin string
	// TimeoutSec bounds the command's wall clock. Zero means no extra
	// timeout beyond the caller's context.
	TimeoutSec int
	// Stream echoes output to the terminal while still capturing it.
	Stream bool
}

// Response represents the result of a command execution. A command that
// started but exited non-zero is reported here, not as a Go error; Engine
// errors are reserved for commands that could not run at all.
type Response struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	ErrorMsg   string
	Success    bool
}

// Tail returns the most useful trailing output for an error message:
// stderr when present, stdout otherwise, capped at max bytes.
func (r *Response) Tail(max int) string {
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	if len(out) <= max {
		return out
	}
	return out[len(out)-max:]
}

// ContainsText checks if captured output contains text (case-insensitive).
func (r *Response) ContainsText(text string) bool {
	return contains(r.Stdout, text) || contains(r.Stderr, text)
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
