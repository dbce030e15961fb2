package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/api"
	"evalgo.org/tagscope/internal/audit"
)

func newServerCmd(a *app) *cobra.Command {
	var (
		host      string
		port      int
		watchPath string
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the API server",
		Long: `Start the HTTP API server.

With --watch the server also re-analyzes a container export on every
change and pushes the new report to WebSocket clients.

Examples:
  tagscope server
  tagscope server --port 8095 --watch GTM-XXXX_workspace.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runServer(cmd.Context(), watchPath)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind address (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&watchPath, "watch", "", "container export to re-analyze on change")
	return cmd
}

func (a *app) runServer(parent context.Context, watchPath string) error {
	auditLog, err := audit.New(a.cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	server, err := api.New(a.cfg, analysis.New(a.cfg.Analysis, a.logger), auditLog, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent,
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if watchPath != "" {
		go func() {
			err := a.watchFile(ctx, watchPath, auditLog, func(r *analysis.Report, err error) {
				if err == nil {
					server.Publish(api.EventReportUpdated, watchPath, r)
				}
			})
			if err != nil {
				errChan <- fmt.Errorf("watch %s: %w", watchPath, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errChan:
		a.logger.Error("server stopped", "error", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	return nil
}
