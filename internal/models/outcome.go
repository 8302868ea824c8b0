package models

import (
	"time"

	"github.com/mlship/mlship/internal/metrics"
)

// Status represents the outcome status of a stage or run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
	// StatusSkipped marks stages that were not attempted because an earlier
	// stage failed under fail_fast.
	StatusSkipped Status = "skipped"
	// StatusNA is used in comparison reports when a metric is missing on one side.
	StatusNA Status = "n/a"
)

// RunOutcome represents the complete result of a pipeline run.
type RunOutcome struct {
	RunID        string               `json:"run_id"`
	Pipeline     string               `json:"pipeline"`
	Timestamp    time.Time            `json:"timestamp"`
	Setup        RunSetup             `json:"config"`
	Digest       RunDigest            `json:"summary"`
	StageResults []StageResult        `json:"stages"`
	Metrics      []metrics.Metric     `json:"metrics,omitempty"`
	Gates        []metrics.GateResult `json:"gates,omitempty"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
}

type RunSetup struct {
	EngineType string   `json:"engine_type"`
	Python     string   `json:"python"`
	Stages     []string `json:"stages"`
	TimeoutSec int      `json:"timeout_sec"`
}

type RunDigest struct {
	TotalStages int     `json:"total_stages"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Errors      int     `json:"errors"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`
	DurationMs  int64   `json:"duration_ms"`
}

// StageResult is the result of a single pipeline stage.
type StageResult struct {
	Stage string `json:"stage"`
	// Status contains the overall status of the stage.
	// NOTE: if Status == [StatusError], then [ErrorMsg] will be set to the
	// message from the error.
	Status     Status   `json:"status"`
	DurationMs int64    `json:"duration_ms"`
	ExitCode   int      `json:"exit_code"`
	Cached     bool     `json:"cached,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty"`
	Output     string   `json:"output,omitempty"`
	ErrorMsg   string   `json:"error_msg,omitempty"`
}

// Executed reports whether the stage actually ran a process. Cache replays
// pass without executing anything.
func (s *StageResult) Executed() bool {
	return s.Status != StatusSkipped && !s.Cached
}

// Finalize recomputes the digest from the stage results. DurationMs is left
// to the caller, which owns the wall clock for the run.
func (o *RunOutcome) Finalize() {
	d := RunDigest{
		TotalStages: len(o.StageResults),
		DurationMs:  o.Digest.DurationMs,
	}

	for _, sr := range o.StageResults {
		switch sr.Status {
		case StatusPassed:
			d.Succeeded++
		case StatusFailed:
			d.Failed++
		case StatusError:
			d.Errors++
		case StatusSkipped:
			d.Skipped++
		}
	}

	attempted := d.TotalStages - d.Skipped
	if attempted > 0 {
		d.SuccessRate = float64(d.Succeeded) / float64(attempted)
	}

	o.Digest = d
}

// Passed reports whether every attempted stage succeeded and every metric
// gate held.
func (o *RunOutcome) Passed() bool {
	if o.Digest.Failed > 0 || o.Digest.Errors > 0 {
		return false
	}
	for _, g := range o.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first stage that failed or errored, or nil.
func (o *RunOutcome) FirstFailure() *StageResult {
	for i := range o.StageResults {
		if o.StageResults[i].Status == StatusFailed || o.StageResults[i].Status == StatusError {
			return &o.StageResults[i]
		}
	}
	return nil
}

// StageNames returns the stage names in result order.
func (o *RunOutcome) StageNames() []string {
	names := make([]string, 0, len(o.StageResults))
	for _, sr := range o.StageResults {
		names = append(names, sr.Stage)
	}
	return names
}
