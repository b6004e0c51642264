package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pipetest/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryEntry is one recorded run with its aggregator values.
type HistoryEntry struct {
	store.Run
	Aggregators map[string]int64 `json:"aggregators"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded pipeline runs",
		Long: `List the runs recorded in a metrics database, newest first, with the
aggregator values each run wrote.

Example:
  pipetest history --db ./metrics.db
  pipetest history --db ./metrics.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite metrics database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must be non-negative", opts.Limit))
	}
	// store.Open creates missing databases; history only reads existing ones.
	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	entries := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		aggs, err := st.Aggregators(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read aggregators of run %s", run.ID), err)
		}
		entries = append(entries, HistoryEntry{Run: run, Aggregators: aggs})
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tJOB\tMODE\tSTATUS\tAGGREGATORS")
	for _, e := range entries {
		mode := "batch"
		if e.Streaming {
			mode = "streaming"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.JobName, mode, e.Status, formatAggregators(e.Aggregators))
	}
	return tw.Flush()
}

// formatAggregators renders aggregator values as sorted name=value pairs.
func formatAggregators(aggs map[string]int64) string {
	if len(aggs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, aggs[name])
	}
	return strings.Join(parts, " ")
}
