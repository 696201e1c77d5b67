package gateway

import (
	"strings"
	"testing"
)

func TestFormatOutcome(t *testing.T) {
	tests := []struct {
		name string
		in   Outcome
		want string
	}{
		{
			name: "stdout and stderr",
			in:   Outcome{Stdout: "hello\n", Stderr: "warn\n", ExitCode: 0},
			want: "STDOUT:\nhello\n\nSTDERR:\nwarn\n\nExit code: 0",
		},
		{
			name: "stdout only",
			in:   Outcome{Stdout: "hello\n", ExitCode: 0},
			want: "STDOUT:\nhello\n\nExit code: 0",
		},
		{
			name: "stderr only",
			in:   Outcome{Stderr: "boom\n", ExitCode: 2},
			want: "STDERR:\nboom\n\nExit code: 2",
		},
		{
			name: "empty output",
			in:   Outcome{ExitCode: 0},
			want: "Exit code: 0",
		},
		{
			name: "timeout marker",
			in:   Outcome{Stderr: "Command timed out after 1 seconds", ExitCode: -1},
			want: "STDERR:\nCommand timed out after 1 seconds\nExit code: -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatOutcome(tt.in); got != tt.want {
				t.Errorf("FormatOutcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuotePath(t *testing.T) {
	for _, path := range []string{
		"/plain/path",
		"/with space/file.txt",
		"/quo'te/file",
		"$(touch /tmp/pwned)",
		"`id`",
	} {
		quoted := quotePath(path)
		if strings.ContainsAny(quoted, "\n") {
			t.Errorf("quotePath(%q) contains newline: %q", path, quoted)
		}
		if path == "/plain/path" && quoted != path {
			t.Errorf("safe path was quoted: %q", quoted)
		}
	}

	if got := quotePath("$(touch /tmp/pwned)"); got == "$(touch /tmp/pwned)" {
		t.Error("substitution not neutralized")
	}
}
