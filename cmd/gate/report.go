package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/gate"
	"github.com/stellarlinkco/ragate/internal/htmlreport"
	"github.com/stellarlinkco/ragate/internal/report"
)

type reportOptions struct {
	reportPath string
	baseline   string
	candidate  string
	outPath    string
}

func newReportCmd(st *cliState) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Render an HTML report for a verdict or a swap comparison",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.reportPath, "report", "", "path to a single report for a verdict page")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "", "baseline report path for a comparison page")
	cmd.Flags().StringVar(&opts.candidate, "candidate", "", "candidate report path for a comparison page")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "output HTML path (default under the configured reports dir)")

	return cmd
}

func runReport(cmd *cobra.Command, st *cliState, opts *reportOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("report: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("report: nil options")
	}

	single := strings.TrimSpace(opts.reportPath)
	baseline := strings.TrimSpace(opts.baseline)
	candidate := strings.TrimSpace(opts.candidate)

	comparisonMode := baseline != "" || candidate != ""
	switch {
	case comparisonMode && single != "":
		return fmt.Errorf("report: --report and --baseline/--candidate are mutually exclusive")
	case comparisonMode && (baseline == "" || candidate == ""):
		return fmt.Errorf("report: comparison pages need both --baseline and --candidate")
	case !comparisonMode && single == "":
		return fmt.Errorf("report: specify --report or --baseline and --candidate")
	}

	specs := st.cfg.ThresholdSpecs()
	minRate := st.cfg.MinSafetyPassRate()
	now := time.Now()
	out := cmd.OutOrStdout()

	if !comparisonMode {
		run, err := report.LoadFile(single)
		if err != nil {
			return err
		}
		verdict, err := gate.Evaluate(run, specs, minRate)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}

		outPath := strings.TrimSpace(opts.outPath)
		if outPath == "" {
			outPath = defaultHTMLPath(st, "verdict_"+verdict.RunID+".html")
		}
		if err := htmlreport.WriteVerdictFile(outPath, verdict, now); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "HTML report: %s\n", outPath)
		return nil
	}

	runs, err := report.LoadAll([]string{baseline, candidate})
	if err != nil {
		return err
	}
	baseVerdict, err := gate.Evaluate(runs[0], specs, minRate)
	if err != nil {
		return fmt.Errorf("report: baseline: %w", err)
	}
	candVerdict, err := gate.Evaluate(runs[1], specs, minRate)
	if err != nil {
		return fmt.Errorf("report: candidate: %w", err)
	}

	cmp, err := gate.Compare(baseVerdict, candVerdict, st.cfg.RegressionTolerance())
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	outPath := strings.TrimSpace(opts.outPath)
	if outPath == "" {
		outPath = defaultHTMLPath(st, "comparison_"+candVerdict.RunID+".html")
	}
	if err := htmlreport.WriteComparisonFile(outPath, cmp, now); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "HTML report: %s\n", outPath)
	return nil
}
