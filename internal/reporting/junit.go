package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/mlship/mlship/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one pipeline run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one pipeline stage.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a stage that ran and failed.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents an unexpected error during stage execution.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a stage as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a RunOutcome to JUnit XML format so CI test
// panels can render the pipeline stages as test cases.
func ConvertToJUnit(outcome *models.RunOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      outcome.Pipeline,
		Tests:     outcome.Digest.TotalStages,
		Failures:  outcome.Digest.Failed,
		Errors:    outcome.Digest.Errors,
		Skipped:   outcome.Digest.Skipped,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: outcome.RunID},
			{Name: "engine", Value: outcome.Setup.EngineType},
			{Name: "success_rate", Value: fmt.Sprintf("%.4f", outcome.Digest.SuccessRate)},
		},
	}

	for _, m := range outcome.Metrics {
		suite.Properties = append(suite.Properties, JUnitProperty{
			Name: "metric." + m.Name, Value: fmt.Sprintf("%.4f", m.Value),
		})
	}

	for _, sr := range outcome.StageResults {
		tc := convertStageResult(outcome.Pipeline, &sr)
		suite.TestCases = append(suite.TestCases, tc)
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalStages,
		Failures:   outcome.Digest.Failed,
		Errors:     outcome.Digest.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertStageResult(pipeline string, sr *models.StageResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      sr.Stage,
		Classname: pipeline,
		Time:      float64(sr.DurationMs) / 1000.0,
	}

	switch sr.Status {
	case models.StatusFailed:
		tc.Failure = buildFailure(sr)
	case models.StatusError:
		tc.Error = buildError(sr)
	case models.StatusSkipped:
		tc.Skipped = &JUnitSkipped{Message: "not run: earlier stage failed"}
	}

	return tc
}

func buildFailure(sr *models.StageResult) *JUnitFailure {
	return &JUnitFailure{
		Message: fmt.Sprintf("%s: exit code %d", sr.Stage, sr.ExitCode),
		Type:    "StageFailure",
		Body:    sr.Output,
	}
}

func buildError(sr *models.StageResult) *JUnitError {
	msg := sr.ErrorMsg
	if msg == "" {
		msg = "execution error"
	}

	return &JUnitError{
		Message: msg,
		Type:    "ExecutionError",
		Body:    sr.Output,
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.RunOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
