// Package remotegate is a remote-command gateway: a fixed set of tools
// (execute, read_file, write_file, list_directory, connection_status) served
// over JSON-RPC against a cached pool of SSH connections, or against the
// local machine.
package remotegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/remotegate/remotegate/config"
	"github.com/remotegate/remotegate/gateway"
	"github.com/remotegate/remotegate/server"
	"github.com/remotegate/remotegate/ssh"
)

const (
	defaultName    = "remotegate"
	defaultVersion = "0.1.0"
)

// Config assembles a Gateway.
type Config struct {
	// Local selects direct local execution instead of SSH.
	Local bool

	// Backend overrides the execution backend. If nil, one is built from the
	// loaded settings (SSH unless Local is set).
	Backend gateway.Backend

	// Logger is passed to every component. If nil, a discard logger is used.
	Logger *slog.Logger

	// Name overrides the server implementation name (default: "remotegate").
	Name string

	// Version overrides the implementation version (default: "0.1.0").
	Version string
}

// Gateway is a fully wired instance: settings, connection cache, tool
// registry and dispatcher, ready to be bound to a transport.
type Gateway struct {
	Settings   config.Settings
	Dispatcher *server.Dispatcher

	cache  *ssh.Cache
	logger *slog.Logger
}

// New loads settings and wires cache, backend, registry and dispatcher.
func New(cfg Config) (*Gateway, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	userCfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settings := userCfg.Resolve()

	g := &Gateway{Settings: settings, logger: logger}

	backend := cfg.Backend
	target := settings.Host
	switch {
	case backend != nil:
		if target == "" {
			target, _ = os.Hostname()
		}
	case cfg.Local:
		hostname, _ := os.Hostname()
		target = hostname
		backend = gateway.NewLocalBackend(logger)
	default:
		if settings.Host == "" {
			return nil, errors.New("no target host configured: set REMOTEGATE_HOST or host in the config file")
		}
		g.cache = ssh.NewCache(nil, settings.Host, logger,
			ssh.WithFallbackHost(settings.FallbackHost),
			ssh.WithIdentityFile(settings.IdentityFile),
			ssh.WithConnectTimeout(settings.ConnectTimeout),
		)
		backend = gateway.NewSSHBackend(g.cache, settings.User, settings.Host, settings.FallbackHost, logger)
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}
	version := cfg.Version
	if version == "" {
		version = defaultVersion
	}

	registry := gateway.NewRegistry(backend, target, logger,
		gateway.WithMaxOutputBytes(settings.MaxOutputBytes))
	g.Dispatcher = server.NewDispatcher(registry, name, version, logger)
	return g, nil
}

// RunStdio serves the framed stdio transport on stdin/stdout until EOF or
// context cancellation.
func (g *Gateway) RunStdio(ctx context.Context) error {
	defer g.Close()
	srv := server.NewStdioServer(g.Dispatcher, os.Stdin, os.Stdout, g.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run stdio server: %w", err)
	}
	return nil
}

// ListenHTTP serves the HTTP+SSE transport on the configured port until
// context cancellation.
func (g *Gateway) ListenHTTP(ctx context.Context) error {
	defer g.Close()
	handler := server.NewHTTPHandler(g.Dispatcher, defaultName, g.Settings.Host, g.logger)
	addr := fmt.Sprintf(":%d", g.Settings.Port)
	if err := handler.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("run http server: %w", err)
	}
	return nil
}

// Close releases every cached connection.
func (g *Gateway) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}
