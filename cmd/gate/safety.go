package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSafetyCmd(st *cliState) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:     "safety",
		Short:   "Evaluate a content-safety report against the promotion gate",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSafety(cmd, st, &opts)
		},
	}

	addCheckFlags(cmd, &opts)
	return cmd
}

func runSafety(cmd *cobra.Command, st *cliState, opts *checkOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("safety: missing config (internal error)")
	}

	run, err := loadRun(st, opts, st.cfg.Reports.SafetyDir)
	if err != nil {
		return err
	}
	if len(run.Tests) == 0 {
		return fmt.Errorf("safety: report %q carries no test results", run.RunID)
	}

	// The safety gate is the pass-rate check alone; quality thresholds
	// apply to evaluation reports, not probe transcripts.
	return checkRun(cmd, st, opts, run, nil)
}
