package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/models"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
}

// writeReport prints r in format. A non-empty category narrows the issue
// list; the rest of the report is unchanged.
func writeReport(w io.Writer, r *analysis.Report, format, category string) error {
	view := *r
	view.Issues = r.Filter(category)

	switch format {
	case formatJSON:
		return writeJSON(w, &view)
	case formatYAML:
		return writeYAML(w, &view)
	}
	renderText(w, &view, category)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v through its JSON form so the field names match the
// JSON output.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert report to yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func renderText(w io.Writer, r *analysis.Report, category string) {
	fmt.Fprintf(w, "Report    %s\n", r.ID)
	fmt.Fprintf(w, "Score     %.2f / 100  [%s]  %s\n", r.Quality.Total, r.Quality.Status, r.Quality.Message.Title)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range r.Quality.Breakdown {
		if !b.Available {
			fmt.Fprintf(tw, "  %s\tunavailable\t\n", b.Label)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.2f\tweight %.2f\n", b.Label, b.Value, b.Weight)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	sections := []struct {
		name string
		msg  models.Message
	}{
		{"Tags", r.Tags.Message},
		{"Consent", r.ConsentMode.Message},
		{"Triggers", r.TriggerQuality.Message},
		{"Variables", r.VariableQuality.Message},
		{"Custom HTML", r.HTMLSecurity.Message},
	}
	for _, s := range sections {
		fmt.Fprintf(tw, "%s\t[%s]\t%s\n", s.name, s.msg.Status, s.msg.Title)
	}
	_ = tw.Flush()

	if h := r.HTMLSecurity.HTMLSecurity; h != nil && len(h.ThirdParties) > 0 {
		fmt.Fprintf(w, "\nThird parties: %s\n", strings.Join(h.ThirdParties, ", "))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	if len(r.Unavailable) > 0 {
		fmt.Fprintf(w, "\nUnavailable analyzers: %s\n", strings.Join(r.Unavailable, ", "))
	}

	fmt.Fprintln(w)
	if len(r.Issues) == 0 {
		if category != "" {
			fmt.Fprintf(w, "No issues in category %s\n", category)
		} else {
			fmt.Fprintln(w, "No issues found")
		}
		return
	}

	writeIssueTable(w, r.Issues)

	counts := models.CountBySeverity(r.Issues)
	fmt.Fprintf(w, "\nTotal: %d issues (critical %d, major %d, minor %d)\n",
		len(r.Issues),
		counts[models.SeverityCritical],
		counts[models.SeverityMajor],
		counts[models.SeverityMinor])
}

func writeIssueTable(w io.Writer, issues []models.Issue) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tENTITY\tNAME\tCATEGORY\tREASON")
	for _, i := range issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", i.Severity, i.Key(), i.EntityName, i.Category(), i.Reason)
	}
	_ = tw.Flush()
}

// summaryLine is the one-line form used by watch.
func summaryLine(r *analysis.Report) string {
	counts := r.Counts()
	return fmt.Sprintf("score %.2f [%s] issues %d (critical %d, major %d, minor %d) id %s",
		r.Quality.Total,
		r.Quality.Status,
		len(r.Issues),
		counts[models.SeverityCritical],
		counts[models.SeverityMajor],
		counts[models.SeverityMinor],
		r.ID)
}
