package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/remotegate/remotegate/ssh"
)

// fileOpTimeout bounds the remote commands issued for file reads and
// directory listings.
const fileOpTimeout = 30 * time.Second

// SSHBackend runs every tool on a remote target through the connection
// cache. Commands go over exec channels; file writes go over a dedicated
// SFTP sub-channel so arbitrary content never passes through a shell.
type SSHBackend struct {
	cache        *ssh.Cache
	user         string
	host         string
	fallbackHost string
	logger       *slog.Logger
}

// NewSSHBackend builds a remote backend targeting user@host. fallbackHost is
// only used for status reporting; the cache owns the fallback dialing.
func NewSSHBackend(cache *ssh.Cache, user, host, fallbackHost string, logger *slog.Logger) *SSHBackend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SSHBackend{cache: cache, user: user, host: host, fallbackHost: fallbackHost, logger: logger}
}

// Run executes the command remotely. There is no remote cwd primitive, so a
// working directory becomes a `cd <dir> &&` prefix. A timeout abandons the
// wait and fails the call; the remote process is not guaranteed to die.
func (b *SSHBackend) Run(ctx context.Context, command, workdir string, timeout time.Duration) (Outcome, error) {
	if workdir != "" {
		command = fmt.Sprintf("cd %s && %s", quotePath(workdir), command)
	}
	res, err := b.cache.Execute(ctx, b.user, b.host, command, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, fmt.Errorf("command timed out after %d seconds", int(timeout.Seconds()))
		}
		return Outcome{}, err
	}
	return Outcome{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// ReadFile reads through a bounded `head` invocation on the remote side.
func (b *SSHBackend) ReadFile(ctx context.Context, path string, maxLines int) (string, error) {
	res, err := b.cache.Execute(ctx, b.user, b.host,
		fmt.Sprintf("head -n %d %s", maxLines, quotePath(path)), fileOpTimeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errors.New(strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// WriteFile transfers the content over SFTP, creating parent directories.
func (b *SSHBackend) WriteFile(ctx context.Context, filePath, content string) error {
	client, err := b.cache.SFTP(ctx, b.user, b.host)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote directory %s: %w", dir, err)
		}
	}

	f, err := client.Create(filePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", filePath, err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write remote file %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", filePath, err)
	}
	return nil
}

// ListDir lists the directory through ls on the remote side.
func (b *SSHBackend) ListDir(ctx context.Context, path string, showHidden bool) (string, error) {
	res, err := b.cache.Execute(ctx, b.user, b.host,
		fmt.Sprintf("ls %s %s", lsFlags(showHidden), quotePath(path)), fileOpTimeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errors.New(strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// Status reports the configured target identity and, when reachable, the
// remote system info. Connection failures become part of the report.
func (b *SSHBackend) Status(ctx context.Context) string {
	identity := fmt.Sprintf("Host: %s (fallback: %s)\nUser: %s", b.host, b.fallbackHost, b.user)

	res, err := b.cache.Execute(ctx, b.user, b.host, "hostname && uname -a", fileOpTimeout)
	if err != nil {
		return fmt.Sprintf("Connection failed: %v\n%s", err, identity)
	}
	return fmt.Sprintf("Connected to %s\n%s\nSystem info:\n%s", b.host, identity, res.Stdout)
}
