package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/ci"
	"github.com/stellarlinkco/ragate/internal/gate"
	"github.com/stellarlinkco/ragate/internal/htmlreport"
	"github.com/stellarlinkco/ragate/internal/report"
)

var errSwapRejected = errors.New("ragate: swap rejected")

type compareOptions struct {
	baseline  string
	candidate string
	tolerance float64
	output    string
	htmlOut   string
	save      bool
	ci        bool
}

func newCompareCmd(st *cliState) *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Compare a candidate run against a baseline and decide on a swap",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseline, "baseline", "", "path to the baseline report")
	cmd.Flags().StringVar(&opts.candidate, "candidate", "", "path to the candidate report")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", -1, "allowed per-metric regression (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|github")
	cmd.Flags().StringVar(&opts.htmlOut, "html", "", "write a side-by-side HTML report to this path")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist both verdicts and the decision to storage")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "force CI mode (github output and summaries)")

	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("candidate")

	return cmd
}

func runCompare(cmd *cobra.Command, st *cliState, opts *compareOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("compare: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("compare: nil options")
	}

	baselinePath := strings.TrimSpace(opts.baseline)
	candidatePath := strings.TrimSpace(opts.candidate)
	if baselinePath == "" || candidatePath == "" {
		return fmt.Errorf("compare: missing --baseline/--candidate")
	}

	ciMode := opts.ci || ci.DetectCI()
	if ciMode && strings.TrimSpace(opts.output) == "" {
		opts.output = string(FormatGitHub)
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	runs, err := report.LoadAll([]string{baselinePath, candidatePath})
	if err != nil {
		return err
	}

	specs := st.cfg.ThresholdSpecs()
	minRate := st.cfg.MinSafetyPassRate()

	baseline, err := gate.Evaluate(runs[0], specs, minRate)
	if err != nil {
		return fmt.Errorf("compare: baseline: %w", err)
	}
	candidate, err := gate.Evaluate(runs[1], specs, minRate)
	if err != nil {
		return fmt.Errorf("compare: candidate: %w", err)
	}

	tolerance := st.cfg.RegressionTolerance()
	if opts.tolerance >= 0 {
		tolerance = opts.tolerance
	}

	cmp, err := gate.Compare(baseline, candidate, tolerance)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprint(out, FormatComparison(cmp, output))

	if ciMode {
		ci.SetOutput("recommend_swap", strconv.FormatBool(cmp.RecommendSwap))
		if err := ci.SetJobSummary(ci.ComparisonSummary(cmp)); err != nil {
			fmt.Fprintf(stderrWriter, "ci: write job summary: %v\n", err)
		}
	}

	if path := strings.TrimSpace(opts.htmlOut); path != "" {
		if err := htmlreport.WriteComparisonFile(path, cmp, time.Now()); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "HTML report: %s\n", path)
	}

	if opts.save {
		if err := saveComparison(cmd, st, cmp); err != nil {
			return err
		}
	}

	if !cmp.RecommendSwap {
		return errSwapRejected
	}
	return nil
}

func saveComparison(cmd *cobra.Command, st *cliState, cmp *gate.Comparison) error {
	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	if err := db.SaveVerdict(ctx, cmp.Baseline); err != nil {
		return err
	}
	if err := db.SaveVerdict(ctx, cmp.Candidate); err != nil {
		return err
	}

	id := "cmp_" + time.Now().UTC().Format("20060102_150405")
	return db.SaveComparison(ctx, id, cmp)
}

func defaultHTMLPath(st *cliState, name string) string {
	dir := st.cfg.Reports.HTMLDir
	if dir == "" {
		dir = "data/reports"
	}
	return filepath.Join(dir, name)
}
