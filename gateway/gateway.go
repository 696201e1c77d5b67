// Package gateway implements the five tools exposed by the server: command
// execution, file read/write, directory listing, and connection status. The
// same tool set runs against a remote SSH target or the local machine,
// selected by the Backend implementation.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

// Outcome is the structured result of one command execution. ExitCode -1
// signals a timeout or a spawn-level fault, with the reason in Stderr.
type Outcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Backend executes the tool operations against one target.
type Backend interface {
	// Run executes a shell command. Local faults and timeouts are folded
	// into the Outcome; a non-nil error means the call itself failed
	// (unreachable target, abandoned remote wait).
	Run(ctx context.Context, command, workdir string, timeout time.Duration) (Outcome, error)
	// ReadFile returns at most maxLines lines of the file.
	ReadFile(ctx context.Context, path string, maxLines int) (string, error)
	// WriteFile replaces the file content, creating parent directories.
	WriteFile(ctx context.Context, path, content string) error
	// ListDir returns an ls-style listing of the directory.
	ListDir(ctx context.Context, path string, showHidden bool) (string, error)
	// Status describes the target and the connection to it. Failures are
	// part of the description, not an error.
	Status(ctx context.Context) string
}

// FormatOutcome renders an Outcome as the text block returned to clients:
// STDOUT and STDERR sections only when non-empty, exit code always.
func FormatOutcome(o Outcome) string {
	var parts []string
	if o.Stdout != "" {
		parts = append(parts, "STDOUT:\n"+o.Stdout)
	}
	if o.Stderr != "" {
		parts = append(parts, "STDERR:\n"+o.Stderr)
	}
	parts = append(parts, fmt.Sprintf("Exit code: %d", o.ExitCode))
	return strings.Join(parts, "\n")
}

// quotePath makes a path safe to splice into a shell command line.
func quotePath(path string) string {
	quoted, err := syntax.Quote(path, syntax.LangPOSIX)
	if err != nil {
		// Quote only fails on strings no shell can represent (NUL bytes);
		// fall back to plain single-quoting.
		return "'" + strings.ReplaceAll(path, "'", `'"'"'`) + "'"
	}
	return quoted
}

func lsFlags(showHidden bool) string {
	if showHidden {
		return "-la"
	}
	return "-l"
}
