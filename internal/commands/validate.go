package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/tagscope/internal/validation"
)

func newValidateCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check the structure of a container export",
		Long: `Check a container export for structural problems such as missing
IDs, names or types and duplicate IDs. No analysis is run.

Examples:
  tagscope validate GTM-XXXX_workspace.json
  tagscope validate export.json --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args[0], format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format (text, json, yaml)")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, source, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	data, err := readInput(cmd, source)
	if err != nil {
		return err
	}

	result, err := validation.New().ValidateContainer(data)
	if err != nil {
		a.logger.Debug("container rejected", "source", source, "error", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		if err := writeJSON(out, result); err != nil {
			return err
		}
	case formatYAML:
		if err := writeYAML(out, result); err != nil {
			return err
		}
	default:
		if result.Valid {
			fmt.Fprintln(out, "✓ Container structure is valid")
			return nil
		}
		fmt.Fprintln(out, "✗ Validation failed:")
		for _, e := range result.Errors {
			if e.Value != nil {
				fmt.Fprintf(out, "  - %s: %s (value: %v)\n", e.Field, e.Message, e.Value)
			} else {
				fmt.Fprintf(out, "  - %s: %s\n", e.Field, e.Message)
			}
		}
	}

	if !result.Valid {
		return &ExitError{Code: 1, Reason: fmt.Sprintf("validation failed with %d problem(s)", len(result.Errors))}
	}
	return nil
}
