// Command remotegate runs the gateway as a stdio subprocess or an HTTP
// service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remotegate/remotegate"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("remotegate failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var local bool

	root := &cobra.Command{
		Use:   "remotegate",
		Short: "Remote-command gateway over JSON-RPC",
		Long: "remotegate exposes shell execution, file access and directory listing\n" +
			"tools through JSON-RPC, backed by cached SSH connections or local execution.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := remotegate.New(remotegate.Config{Local: local, Logger: logger, Version: version})
			if err != nil {
				return err
			}
			err = gw.RunStdio(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	root.PersistentFlags().BoolVar(&local, "local", false, "execute directly on the local machine instead of over SSH")

	httpCmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the gateway over HTTP with an SSE keep-alive stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := remotegate.New(remotegate.Config{Local: local, Logger: logger, Version: version})
			if err != nil {
				return err
			}
			err = gw.ListenHTTP(cmd.Context())
			if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "remotegate %s\n", version)
		},
	}

	root.AddCommand(httpCmd, versionCmd)
	return root
}
