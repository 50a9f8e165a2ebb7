package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/report"
)

// errConflictingFormats is returned when more than one output format is
// requested.
var errConflictingFormats = errors.New("--json and --markdown are mutually exclusive")

// NewSummaryCmd creates the summary command.
func NewSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize stored crawl records",
		Long: `Summary aggregates every record in the database, per crawl mode:
- visits per status, including every failure kind
- consent results of successful visits
- minimum, median and maximum page load time
- the third-party and tracker domains embedded by the most sites

Examples:
  # Text summary
  cookiecrawl summary

  # Markdown with a status pie chart, top 20 domains
  cookiecrawl summary --markdown --top 20 > summary.md`,
		Args: cobra.NoArgs,
		RunE: runSummaryCmd,
	}

	cmd.Flags().IntP("top", "n", report.DefaultTopN, "Number of domains per ranking")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().Bool("markdown", false, "Output Markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Database directory")

	return cmd
}

func runSummaryCmd(cmd *cobra.Command, _ []string) error {
	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errConflictingFormats
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := report.BuildSummary(context.Background(), db, top, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build summary: %w", err)
	}

	_, err = selectWriter(cmd, jsonOutput, markdownOutput).WriteSummary(summary)
	return err
}

// selectWriter returns the report writer for the requested format.
func selectWriter(cmd *cobra.Command, jsonOutput, markdownOutput bool) report.Writer {
	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(boolFlag(cmd, "verbose")))
	}
}
