package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/audit"
	"evalgo.org/tagscope/models"
	"evalgo.org/tagscope/pkg/tagscope/client"
)

type analyzeOptions struct {
	format    string
	category  string
	failUnder float64
	server    string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Analyze a container export",
		Long: `Analyze a GTM container export and print the report.

Use "-" to read the export from stdin. With --server the export is sent to
a running tagscope server instead of being analyzed locally.

Examples:
  tagscope analyze GTM-XXXX_workspace.json
  tagscope analyze export.json --format json --category html_security
  cat export.json | tagscope analyze - --fail-under 80
  tagscope analyze export.json --server http://localhost:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().StringVar(&opts.category, "category", "", "only list issues carrying this category")
	cmd.Flags().Float64Var(&opts.failUnder, "fail-under", 0, "exit with code 2 when the quality score is below this value")
	cmd.Flags().StringVar(&opts.server, "server", "", "analyze on a tagscope server at this URL")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, source string, opts *analyzeOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	if opts.failUnder < 0 || opts.failUnder > 100 {
		return fmt.Errorf("--fail-under must be between 0 and 100")
	}

	data, err := readInput(cmd, source)
	if err != nil {
		return err
	}

	var report *analysis.Report
	if opts.server != "" {
		report, err = a.analyzeRemote(cmd, opts.server, data)
	} else {
		report, err = a.analyzeLocal(source, data)
	}
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), report, opts.format, opts.category); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if opts.failUnder > 0 && report.Quality.Total < opts.failUnder {
		return &ExitError{
			Code:   2,
			Reason: fmt.Sprintf("quality score %.2f is below %.2f", report.Quality.Total, opts.failUnder),
		}
	}
	return nil
}

func (a *app) analyzeLocal(source string, data []byte) (*analysis.Report, error) {
	c, err := models.ParseContainer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}

	engine := analysis.New(a.cfg.Analysis, a.logger)
	start := time.Now()
	report := engine.Analyze(c)
	a.recordAudit(audit.OpAnalyze, source, report, time.Since(start))
	return report, nil
}

func (a *app) analyzeRemote(cmd *cobra.Command, server string, data []byte) (*analysis.Report, error) {
	cl, err := client.New(server)
	if err != nil {
		return nil, err
	}
	remote, err := cl.Analyze(cmd.Context(), data)
	if err != nil {
		return nil, err
	}

	var report analysis.Report
	if err := json.Unmarshal(remote.Raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode server report: %w", err)
	}
	a.logger.Debug("analyzed remotely", "server", server, "report", report.ID)
	return &report, nil
}

// recordAudit appends an audit entry when auditing is enabled. Audit
// failures are logged and never fail the command.
func (a *app) recordAudit(op, source string, r *analysis.Report, took time.Duration) {
	if !a.cfg.Audit.Enabled {
		return
	}
	l, err := audit.New(a.cfg.Audit)
	if err != nil {
		a.logger.Warn("audit log unavailable", "error", err)
		return
	}
	if err := l.LogAnalysis(op, source, r, took); err != nil {
		a.logger.Warn("failed to write audit entry", "error", err)
	}
	if err := l.Close(); err != nil {
		a.logger.Warn("failed to close audit log", "error", err)
	}
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
