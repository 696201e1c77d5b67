package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// LocalBackend runs every tool directly against the local machine through
// the OS: commands via a shell child process, files via the filesystem.
type LocalBackend struct {
	logger *slog.Logger
}

// NewLocalBackend builds a local-execution backend.
func NewLocalBackend(logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LocalBackend{logger: logger}
}

// Run spawns the command through `sh -c`, waits up to timeout, and kills the
// process on expiry. Spawn faults and timeouts never surface as errors; they
// become an Outcome with exit code -1.
func (b *LocalBackend) Run(ctx context.Context, command, workdir string, timeout time.Duration) (Outcome, error) {
	execCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workdir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return Outcome{
			ExitCode: -1,
			Stderr:   fmt.Sprintf("Command timed out after %d seconds", int(timeout.Seconds())),
		}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitErr.ExitCode()}, nil
		}
		return Outcome{ExitCode: -1, Stderr: err.Error()}, nil
	}
	return Outcome{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 0}, nil
}

// ReadFile returns at most maxLines lines, trailing newlines preserved.
func (b *LocalBackend) ReadFile(_ context.Context, path string, maxLines int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	r := bufio.NewReader(f)
	for read := 0; read < maxLines; read++ {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// WriteFile overwrites the file, creating parent directories as needed.
func (b *LocalBackend) WriteFile(_ context.Context, path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// ListDir lists the directory through ls, like the remote variant, so both
// backends return the same listing shape.
func (b *LocalBackend) ListDir(ctx context.Context, path string, showHidden bool) (string, error) {
	out, err := b.Run(ctx, fmt.Sprintf("ls %s %s", lsFlags(showHidden), quotePath(path)), "", 30*time.Second)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", errors.New(strings.TrimSpace(out.Stderr))
	}
	return out.Stdout, nil
}

// Status reports local host identity and resource usage.
func (b *LocalBackend) Status(ctx context.Context) string {
	hostname, _ := os.Hostname()
	out, err := b.Run(ctx, "hostname && uname -a && uptime && df -h / && free -h", "", 30*time.Second)
	if err != nil || out.ExitCode != 0 {
		return fmt.Sprintf("System Status for %s:\n%s", hostname, out.Stderr)
	}
	return fmt.Sprintf("System Status for %s:\n%s", hostname, out.Stdout)
}
