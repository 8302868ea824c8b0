package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/mlship/mlship/internal/utils"
)

// ShellEngine runs commands as real subprocesses.
type ShellEngine struct {
	// Stdout and Stderr receive streamed output when a request asks for
	// it. They default to the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewShellEngine creates a ShellEngine wired to the process streams.
func NewShellEngine() *ShellEngine {
	return &ShellEngine{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (e *ShellEngine) Initialize(ctx context.Context) error {
	return nil
}

func (e *ShellEngine) Execute(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Argv) == 0 {
		return nil, fmt.Errorf("stage %s: empty command", req.Stage)
	}

	start := time.Now()

	runCtx := ctx
	if req.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		defer cancel()
	}

	//nolint:gosec // stage commands come from mlship.yaml, not untrusted input
	cmd := exec.CommandContext(runCtx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = append(cmd.Environ(), req.Env...)

	if req.Stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(req.Stdin))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if req.Stream {
		cmd.Stdout = io.MultiWriter(e.stdout(), &stdout)
		cmd.Stderr = io.MultiWriter(e.stderr(), &stderr)
	}

	err := cmd.Run()
	durationMs := time.Since(start).Milliseconds()

	resp := &Response{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: durationMs,
		Success:    err == nil,
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			resp.ExitCode = -1
			resp.ErrorMsg = fmt.Sprintf("timed out after %ds", req.TimeoutSec)
		case errors.As(err, &exitErr):
			resp.ExitCode = exitErr.ExitCode()
			resp.ErrorMsg = fmt.Sprintf("exited with code %d", resp.ExitCode)
		default:
			// The command never ran (e.g. binary not found).
			return nil, fmt.Errorf("stage %s: running %q: %w", req.Stage, req.Argv[0], err)
		}
	}

	utils.CommandToSlog(req.Stage, req.Argv, req.Dir, &resp.ExitCode, &resp.DurationMs)
	return resp, nil
}

func (e *ShellEngine) Shutdown(ctx context.Context) error {
	return nil
}

func (e *ShellEngine) stdout() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

func (e *ShellEngine) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}
