package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [domain]",
		Short: "Show stored crawl records",
		Long: `Show prints the latest stored record of a site. Without a domain it lists
every stored record, newest first.

Examples:
  # Latest desktop record of a site
  cookiecrawl show example.com

  # Latest mobile record as JSON
  cookiecrawl show example.com --mobile --json

  # List all mobile records
  cookiecrawl show --mobile`,
		Args: cobra.MaximumNArgs(1),
		RunE: runShowCmd,
	}

	cmd.Flags().BoolP("mobile", "m", false, "Show mobile records")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().Bool("markdown", false, "Output Markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Database directory")

	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	mobile, err := cmd.Flags().GetBool("mobile")
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

	mode := model.ModeDesktop
	if mobile {
		mode = model.ModeMobile
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if len(args) == 0 {
		return listRecords(ctx, cmd, db, mode)
	}

	target, err := model.NewCrawlTarget(args[0], mode)
	if err != nil {
		return err
	}
	rec, err := db.GetLatestRecord(ctx, target.Domain, mode)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no %s record found for %s", mode, target.Domain)
	}

	_, err = selectWriter(cmd, jsonOutput, markdownOutput).Write(*rec)
	return err
}

func listRecords(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, mode model.Mode) error {
	records, err := db.ListRecords(ctx, mode)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No %s records found.\n", mode)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSITE\tRANK\tSTATUS\tCONSENT\tLOAD\tSTARTED")
	for _, r := range records {
		rank := "-"
		if r.Rank != nil {
			rank = fmt.Sprint(*r.Rank)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Domain, rank, r.Status, r.Consent,
			r.LoadDuration.Round(time.Millisecond),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
