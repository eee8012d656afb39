package main

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/tlsrelay/pkg/cli"
	"mercator-hq/tlsrelay/pkg/journal"
	"mercator-hq/tlsrelay/pkg/journal/export"
	"mercator-hq/tlsrelay/pkg/journal/retention"
	"mercator-hq/tlsrelay/pkg/journal/storage"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query and prune the connection journal",
	Long: `Query and prune the per-connection journal written by "tlsrelay run"
when journal.enabled is set. Only the sqlite backend persists across runs.

Examples:
  # Last 20 failed connections as CSV
  tlsrelay journal list --status error --limit 20 --format csv

  # Connections from the last hour
  tlsrelay journal list --since 1h

  # Apply the retention policy now
  tlsrelay journal prune`,
}

var journalListFlags struct {
	since  time.Duration
	class  string
	remote string
	status string
	limit  int
	format string
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal records",
	RunE:  listJournal,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than journal.retention_days",
	RunE:  pruneJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalPruneCmd)

	f := journalListCmd.Flags()
	f.DurationVar(&journalListFlags.since, "since", 0, "only records started within this duration")
	f.StringVar(&journalListFlags.class, "class", "", "filter by outcome class (success, upstream_error, ...)")
	f.StringVar(&journalListFlags.remote, "remote", "", "filter by remote address")
	f.StringVar(&journalListFlags.status, "status", "", "filter by status: success, error")
	f.IntVar(&journalListFlags.limit, "limit", 100, "maximum records to print")
	f.StringVar(&journalListFlags.format, "format", "json", "output format: json, csv")
}

func openJournal(cmd *cobra.Command) (journal.Storage, int, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, 0, err
	}
	store, err := storage.New(&cfg.Journal, nil)
	if err != nil {
		return nil, 0, cli.NewCommandError(cmd.Name(), err)
	}
	return store, cfg.Journal.RetentionDays, nil
}

func listJournal(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(journalListFlags.format)
	if err != nil {
		return cli.NewConfigError("--format", err.Error())
	}

	store, _, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	q := &journal.Query{
		Class:      journalListFlags.class,
		RemoteAddr: journalListFlags.remote,
		Status:     journalListFlags.status,
		Limit:      journalListFlags.limit,
	}
	if journalListFlags.since > 0 {
		start := time.Now().Add(-journalListFlags.since)
		q.StartTime = &start
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("journal list", err)
	}
	return exporter.Export(ctx, records, cmd.OutOrStdout())
}

func pruneJournal(cmd *cobra.Command, args []string) error {
	store, days, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deleted, err := retention.NewPruner(store, days, nil).Prune(ctx)
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records (retention %d days)\n", deleted, days)
	return nil
}
