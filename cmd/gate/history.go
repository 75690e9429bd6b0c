package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/store"
)

type historyOptions struct {
	model       string
	limit       int
	comparisons bool
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List stored gate verdicts and swap decisions",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "filter verdicts by model")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum entries to list")
	cmd.Flags().BoolVar(&opts.comparisons, "comparisons", false, "list swap decisions instead of verdicts")

	return cmd
}

func runHistory(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}
	if opts.limit <= 0 {
		return fmt.Errorf("history: limit must be > 0 (got %d)", opts.limit)
	}

	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if opts.comparisons {
		records, err := db.ListComparisons(ctx, opts.limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			_, _ = fmt.Fprintln(out, "No comparisons recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tBASELINE\tCANDIDATE\tTOLERANCE\tSWAP\tWHEN")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
				rec.ID, rec.BaselineRun, rec.CandidateRun, rec.Tolerance,
				yesNo(rec.RecommendSwap), rec.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	}

	verdicts, err := db.ListVerdicts(ctx, store.Filter{
		Model: opts.model,
		Limit: opts.limit,
	})
	if err != nil {
		return err
	}
	if len(verdicts) == 0 {
		_, _ = fmt.Fprintln(out, "No verdicts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODEL\tWHEN\tPASSED\tFAILING")
	for _, v := range verdicts {
		failing := "-"
		if failed := v.FailedMetrics(); len(failed) > 0 {
			failing = fmt.Sprintf("%v", failed)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.RunID, v.Model, v.Timestamp.Format(time.RFC3339),
			yesNo(v.OverallPassed), failing)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
