package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/ci"
	"github.com/stellarlinkco/ragate/internal/gate"
	"github.com/stellarlinkco/ragate/internal/metric"
	"github.com/stellarlinkco/ragate/internal/report"
	"github.com/stellarlinkco/ragate/internal/store"
)

var errGateFailed = errors.New("ragate: gate failed")

type checkOptions struct {
	reportPath  string
	dir         string
	runID       string
	model       string
	minPassRate float64
	thresholds  []string
	output      string
	save        bool
	ci          bool
}

func newCheckCmd(st *cliState) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:     "check",
		Short:   "Evaluate an evaluation report against the promotion gate",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, st, &opts, "")
		},
	}

	addCheckFlags(cmd, &opts)
	return cmd
}

func addCheckFlags(cmd *cobra.Command, opts *checkOptions) {
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "path to a report file (overrides --dir)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory of reports (default from config)")
	cmd.Flags().StringVar(&opts.runID, "run", "", "select a specific run id")
	cmd.Flags().StringVar(&opts.model, "model", "", "select the latest run for a model")
	cmd.Flags().Float64Var(&opts.minPassRate, "min-pass-rate", -1, "minimum safety pass rate between 0 and 1 (overrides config)")
	cmd.Flags().StringArrayVar(&opts.thresholds, "threshold", nil, "metric=minimum threshold override, repeatable")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|github")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist the verdict to storage")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "force CI mode (github output and summaries)")
}

func runCheck(cmd *cobra.Command, st *cliState, opts *checkOptions, defaultDir string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("check: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("check: nil options")
	}

	run, err := loadRun(st, opts, defaultDir)
	if err != nil {
		return err
	}
	return checkRun(cmd, st, opts, run, st.cfg.ThresholdSpecs())
}

func checkRun(cmd *cobra.Command, st *cliState, opts *checkOptions, run *metric.Run, specs []metric.Threshold) error {
	ciMode := opts.ci || ci.DetectCI()
	if ciMode && strings.TrimSpace(opts.output) == "" {
		opts.output = string(FormatGitHub)
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	specs, err = applyThresholdOverrides(specs, opts.thresholds)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	minRate := st.cfg.MinSafetyPassRate()
	if opts.minPassRate >= 0 {
		minRate = opts.minPassRate
	}

	verdict, err := gate.Evaluate(run, specs, minRate)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprint(out, FormatVerdict(verdict, output))

	if ciMode {
		ci.AnnotateVerdict(verdict)
		ci.SetOutput("passed", strconv.FormatBool(verdict.OverallPassed))
		if err := ci.SetJobSummary(ci.VerdictSummary(verdict)); err != nil {
			fmt.Fprintf(stderrWriter, "ci: write job summary: %v\n", err)
		}
	}

	if opts.save {
		if err := saveVerdict(cmd, st, verdict); err != nil {
			return err
		}
	}

	if !verdict.OverallPassed {
		return errGateFailed
	}
	return nil
}

// applyThresholdOverrides merges --threshold flags over the configured
// set. Unknown metric names are caught by gate.Evaluate's validation.
func applyThresholdOverrides(specs []metric.Threshold, overrides []string) ([]metric.Threshold, error) {
	if len(overrides) == 0 {
		return specs, nil
	}

	merged := make(map[string]float64, len(specs)+len(overrides))
	for _, s := range specs {
		merged[strings.ToLower(strings.TrimSpace(s.Metric))] = s.Minimum
	}
	for _, raw := range overrides {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --threshold %q (expected metric=minimum)", raw)
		}
		minimum, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --threshold %q: not a number", raw)
		}
		merged[name] = minimum
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]metric.Threshold, 0, len(names))
	for _, name := range names {
		out = append(out, metric.Threshold{Metric: name, Minimum: merged[name]})
	}
	return out, nil
}

func loadRun(st *cliState, opts *checkOptions, defaultDir string) (*metric.Run, error) {
	if path := strings.TrimSpace(opts.reportPath); path != "" {
		return report.LoadFile(path)
	}

	dir := strings.TrimSpace(opts.dir)
	if dir == "" {
		dir = defaultDir
	}
	if dir == "" {
		dir = st.cfg.Reports.EvalDir
	}

	return report.LoadDir(dir, report.Selector{
		RunID: opts.runID,
		Model: opts.model,
	})
}

func saveVerdict(cmd *cobra.Command, st *cliState, verdict *gate.Verdict) error {
	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveVerdict(cmd.Context(), verdict); err != nil {
		return err
	}
	return nil
}

var openStore = store.Open
