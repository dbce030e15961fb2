package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/models"
	"evalgo.org/tagscope/pkg/tagscope/client"
)

func newQueryCmd(a *app) *cobra.Command {
	var server, format string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query reports held by a running server",
		Long: `Query the reports cached by a tagscope server.

Examples:
  tagscope query health
  tagscope query report 5c1e0b6a-...
  tagscope query issues 5c1e0b6a-... --severity critical --limit 20`,
	}
	cmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default: from server.host and server.port)")
	cmd.PersistentFlags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")

	newClient := func() (*client.Client, error) {
		if err := checkFormat(format); err != nil {
			return nil, err
		}
		url := server
		if url == "" {
			host := a.cfg.Server.Host
			if host == "" || host == "0.0.0.0" {
				host = "localhost"
			}
			url = fmt.Sprintf("http://%s:%d", host, a.cfg.Server.Port)
		}
		return client.New(url)
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient()
			if err != nil {
				return err
			}
			h, err := cl.Health(cmd.Context())
			if err != nil {
				return err
			}
			switch format {
			case formatJSON:
				return writeJSON(cmd.OutOrStdout(), h)
			case formatYAML:
				return writeYAML(cmd.OutOrStdout(), h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s), up %s, %d cached reports, %d websocket clients\n",
				h.Service, h.Status, h.Version, h.Uptime, h.CachedReports, h.WebSocketClients)
			return nil
		},
	}

	var category string
	reportCmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Show a cached report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient()
			if err != nil {
				return err
			}
			remote, err := cl.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var r analysis.Report
			if err := json.Unmarshal(remote.Raw, &r); err != nil {
				return fmt.Errorf("failed to decode report: %w", err)
			}
			return writeReport(cmd.OutOrStdout(), &r, format, category)
		},
	}
	reportCmd.Flags().StringVar(&category, "category", "", "only list issues carrying this category")

	var q client.IssueQuery
	var severity string
	issuesCmd := &cobra.Command{
		Use:   "issues <id>",
		Short: "List the issues of a cached report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if severity != "" {
				s, err := models.ParseSeverity(severity)
				if err != nil {
					return err
				}
				q.Severity = s
			}
			cl, err := newClient()
			if err != nil {
				return err
			}
			page, err := cl.Issues(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return writeJSON(out, page)
			case formatYAML:
				return writeYAML(out, page)
			}
			writeIssueTable(out, page.Issues)
			fmt.Fprintf(out, "\nShowing %d of %d issues (offset %d)\n", page.Count, page.Total, page.Offset)
			return nil
		},
	}
	issuesCmd.Flags().StringVar(&q.Category, "category", "", "filter by category")
	issuesCmd.Flags().StringVar(&severity, "severity", "", "filter by severity (minor, major, critical)")
	issuesCmd.Flags().IntVar(&q.Limit, "limit", 100, "maximum results")
	issuesCmd.Flags().IntVar(&q.Offset, "offset", 0, "results to skip")

	cmd.AddCommand(healthCmd, reportCmd, issuesCmd)
	return cmd
}
