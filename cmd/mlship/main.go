package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Pipeline passed
	ExitStageFailed = 1 // One or more stages failed or a metric gate was breached
	ExitError       = 2 // Configuration or runtime error
)

// StageFailureError indicates that the pipeline itself ran, but one or
// more stages failed or a metric fell below its threshold.
type StageFailureError struct {
	Message string
}

func (e *StageFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var stageFailureErr *StageFailureError
		if errors.As(err, &stageFailureErr) {
			os.Exit(ExitStageFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
