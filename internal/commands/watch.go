package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/audit"
	"evalgo.org/tagscope/internal/watch"
	"evalgo.org/tagscope/models"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-analyze a container export whenever it changes",
		Long: `Watch a container export and print a one-line summary after every
change. Bursts of writes are coalesced into a single run.

Examples:
  tagscope watch GTM-XXXX_workspace.json
  tagscope watch export.json --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("debounce") {
				a.cfg.Watch.Debounce = debounce
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var auditLog *audit.Logger
			if a.cfg.Audit.Enabled {
				l, err := audit.New(a.cfg.Audit)
				if err != nil {
					return fmt.Errorf("failed to open audit log: %w", err)
				}
				defer l.Close()
				auditLog = l
			}

			out := cmd.OutOrStdout()
			return a.watchFile(ctx, args[0], auditLog, func(r *analysis.Report, err error) {
				stamp := time.Now().Format("15:04:05")
				if err != nil {
					fmt.Fprintf(out, "[%s] %s: %v\n", stamp, args[0], err)
					return
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", stamp, args[0], summaryLine(r))
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before re-analysis")
	return cmd
}

// watchFile analyzes path once and again after every change until ctx is
// done. Each run starts from scratch; nothing is carried between runs.
// auditLog may be nil.
func (a *app) watchFile(ctx context.Context, path string, auditLog *audit.Logger, onReport func(*analysis.Report, error)) error {
	w, err := watch.New(path, a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	engine := analysis.New(a.cfg.Analysis, a.logger)

	run := func() {
		c, err := models.LoadContainerFile(w.Path())
		if err != nil {
			a.logger.Warn("re-analysis skipped", "path", w.Path(), "error", err)
			onReport(nil, err)
			return
		}
		start := time.Now()
		r := engine.Analyze(c)
		if err := auditLog.LogAnalysis(audit.OpWatch, path, r, time.Since(start)); err != nil {
			a.logger.Warn("failed to write audit entry", "error", err)
		}
		onReport(r, nil)
	}

	a.logger.Info("watching container export", "path", w.Path(), "debounce", a.cfg.Watch.Debounce)
	run()
	return w.Run(ctx, run)
}
