package utils

import (
	"context"
	"log/slog"
	"strings"
)

// CommandToSlog logs one external command invocation at debug level.
// Optional fields are only attached when set so the debug stream stays
// readable.
func CommandToSlog(stage string, argv []string, dir string, exitCode *int, durationMs *int64) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"stage", stage,
		"command", strings.Join(argv, " "),
	}

	attrs = addIfStr(attrs, "dir", dir)
	attrs = addIf(attrs, "exitCode", exitCode)
	attrs = addIf(attrs, "durationMs", durationMs)

	slog.Debug("Command executed", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}

func addIfStr(attrs []any, name string, v string) []any {
	if v != "" {
		attrs = append(attrs, name)
		attrs = append(attrs, v)
	}

	return attrs
}

// Truncate returns at most max bytes from the end of s. Stage output can be
// arbitrarily large; callers keep the tail since failures print last.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
