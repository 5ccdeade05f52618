package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tdilauro/dm-utils/pkg/supertree/config"
	"github.com/tdilauro/dm-utils/pkg/supertree/journal"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past manifest runs",
	Long: `View the history of manifest runs.

Every run is recorded in the run journal with its roots, checksum algorithm,
output, entry counts and outcome. Runs older than journal.retention_days are
removed automatically.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a run",
	Long:  `Display details of a run by its ID or a unique ID prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old runs",
	Long:  `Remove runs older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured run journal.
func openHistory() (*journal.Journal, error) {
	path := appConfig.Journal.Path
	if path == "" {
		path = config.DefaultJournalPath()
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	return j, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, _ []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(runs) == 0 {
		printInfo("No runs recorded.")
		printInfo("Run 'supertree -o FILE ROOT' to write a manifest.")
		return nil
	}

	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

// printHistory writes the run table.
func printHistory(w io.Writer, runs []journal.Run) {
	fmt.Fprintf(w, "\n%-8s  %-19s  %-11s  %-10s  %12s  %10s  %s\n",
		"ID", "STARTED", "STATUS", "DIGEST", "ENTRIES", "HASHED", "OUTPUT")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for i := range runs {
		run := &runs[i]
		fmt.Fprintf(w, "%-8s  %-19s  %-11s  %-10s  %12s  %10s  %s\n",
			run.ShortID(),
			run.Started.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			truncateString(run.Algorithm, 10),
			humanize.Comma(run.Entries),
			types.FormatSize(run.Bytes),
			truncateString(run.Output, 36),
		)
	}

	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "\nShowing %d runs. Use --limit to see more.\n", len(runs))
	fmt.Fprintln(w, "Use 'supertree history show <id>' for details on a run.")
}

// runHistoryShow displays one run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	printRun(cmd.OutOrStdout(), run)
	return nil
}

// printRun writes the details of run.
func printRun(w io.Writer, run *journal.Run) {
	fmt.Fprintln(w, "\nRun Details")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ID:         %s\n", run.ID)
	fmt.Fprintf(w, "Started:    %s\n", run.Started.Local().Format("2006-01-02 15:04:05 MST"))
	if !run.Finished.IsZero() {
		fmt.Fprintf(w, "Duration:   %s (%s)\n", run.Duration().Round(time.Millisecond), humanize.Time(run.Finished))
	}
	fmt.Fprintf(w, "Status:     %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", run.Error)
	}
	if len(run.Roots) > 0 {
		fmt.Fprintf(w, "Roots:      %s\n", strings.Join(run.Roots, ", "))
	}
	fmt.Fprintf(w, "Source:     %s\n", valueOr(run.Source, "auto"))
	fmt.Fprintf(w, "Output:     %s (%s)\n", run.Output, run.Format)
	fmt.Fprintf(w, "Digest:     %s\n", run.Algorithm)
	fmt.Fprintf(w, "Columns:    %s\n", strings.Join(run.Columns, ", "))
	fmt.Fprintf(w, "Entries:    %s\n", humanize.Comma(run.Entries))
	fmt.Fprintf(w, "Hashed:     %s\n", types.FormatSize(run.Bytes))
	if run.Unreadable > 0 {
		fmt.Fprintf(w, "Unreadable: %s\n", humanize.Comma(run.Unreadable))
	}
	if run.Skipped > 0 {
		fmt.Fprintf(w, "Skipped:    %s malformed lines\n", humanize.Comma(run.Skipped))
	}
}

// runHistoryClean removes old runs.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	retentionDays := appConfig.Journal.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Removing runs older than %d days...", retentionDays)

	removed, err := j.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d runs.", removed)
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
