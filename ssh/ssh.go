// Package ssh manages cached connections, command execution, and SFTP
// transfers against remote hosts.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// ExecResult is the outcome of one remote command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// SFTPClient is the bulk-transfer sub-channel opened on top of an existing
// connection. File content goes through it verbatim, never through a shell.
type SFTPClient interface {
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
	Close() error
}

// Client is a live, reusable connection to one user@host target.
type Client interface {
	Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	SFTP() (SFTPClient, error)
	Alive() bool
	Close() error
}

// Dialer opens new connections. Swapped for a fake in tests.
type Dialer interface {
	Dial(ctx context.Context, params ConnectionParams) (Client, error)
}

// ConnectionParams identify and authenticate one connection attempt.
type ConnectionParams struct {
	Host         string
	User         string
	Port         int
	IdentityFile string
}

func withDefaults(params ConnectionParams) ConnectionParams {
	if params.User == "" {
		params.User = "root"
	}
	if params.Port == 0 {
		params.Port = 22
	}
	return params
}

// XCryptoDialer dials over TCP and authenticates with golang.org/x/crypto/ssh.
// Host keys are not verified; trust is delegated to the overlay network the
// gateway is deployed on.
type XCryptoDialer struct {
	ConnectTimeout time.Duration
}

func (d *XCryptoDialer) connectTimeout() time.Duration {
	if d.ConnectTimeout > 0 {
		return d.ConnectTimeout
	}
	return 10 * time.Second
}

func (d *XCryptoDialer) Dial(ctx context.Context, params ConnectionParams) (Client, error) {
	params = withDefaults(params)

	authMethods, err := buildAuthMethods(params)
	if err != nil {
		return nil, err
	}

	cfg := &gossh.ClientConfig{
		User:            params.User,
		Auth:            authMethods,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         d.connectTimeout(),
	}

	addr := fmt.Sprintf("%s:%d", params.Host, params.Port)
	dialCtx, cancel := context.WithTimeout(ctx, d.connectTimeout())
	defer cancel()

	var netDialer net.Dialer
	conn, err := netDialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c, chans, reqs, err := gossh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return newXCryptoClient(gossh.NewClient(c, chans, reqs)), nil
}

type xcryptoClient struct {
	client *gossh.Client
	closed atomic.Bool
}

func newXCryptoClient(client *gossh.Client) *xcryptoClient {
	c := &xcryptoClient{client: client}
	go func() {
		_ = client.Wait()
		c.closed.Store(true)
	}()
	return c
}

func (c *xcryptoClient) Alive() bool {
	return !c.closed.Load()
}

func (c *xcryptoClient) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return ExecResult{}, err
	}
	defer func() { _ = session.Close() }()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	execCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-execCtx.Done():
		// Closing the session abandons the wait; the remote process is not
		// guaranteed to be terminated.
		_ = session.Close()
		return ExecResult{}, execCtx.Err()
	case err := <-done:
		if err == nil {
			return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 0}, nil
		}
		if exitErr, ok := err.(*gossh.ExitError); ok {
			return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitErr.ExitStatus()}, nil
		}
		return ExecResult{}, err
	}
}

func (c *xcryptoClient) SFTP() (SFTPClient, error) {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, err
	}
	return &sftpClientAdapter{client: client}, nil
}

func (c *xcryptoClient) Close() error {
	return c.client.Close()
}

type sftpClientAdapter struct {
	client *sftp.Client
}

func (a *sftpClientAdapter) Create(path string) (io.WriteCloser, error) {
	return a.client.Create(path)
}

func (a *sftpClientAdapter) MkdirAll(path string) error {
	return a.client.MkdirAll(path)
}

func (a *sftpClientAdapter) Close() error {
	return a.client.Close()
}
