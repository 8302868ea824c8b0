// Package spinner renders a single-line progress indicator for long CLI
// operations such as artifact uploads. The line is fully cleared on stop so
// following prints start clean.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// elapsedAfter is how long an operation runs before the spinner starts
// appending the elapsed time to the message.
const elapsedAfter = 2 * time.Second

// Start displays an animated spinner with the given message on w. Once an
// operation has run for a while the line gains an elapsed-seconds suffix so
// a slow upload is distinguishable from a hung one. Call the returned
// function to stop the spinner and clear the line.
func Start(w io.Writer, message string) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		started := time.Now()
		width := 0
		i := 0
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(cleared)
				return
			case <-time.After(80 * time.Millisecond):
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], message)
				if elapsed := time.Since(started); elapsed >= elapsedAfter {
					line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
				}
				// Track the widest line drawn so the clear wipes all of it,
				// including any elapsed suffix.
				if n := len(line); n > width {
					width = n
				}
				fmt.Fprintf(w, "\r%s", line) //nolint:errcheck
				i++
			}
		}
	}()

	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
