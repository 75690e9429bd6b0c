package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/report"
	"github.com/stellarlinkco/ragate/internal/safety"
)

type probeOptions struct {
	suitePath string
	provider  string
	model     string
	outDir    string
}

func newProbeCmd(st *cliState) *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:     "probe",
		Short:   "Run a content-safety probe suite and write a safety report",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.suitePath, "suite", "", "path to a probe suite YAML file")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "target provider name (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model label recorded in the report")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "report output directory (default from config)")

	_ = cmd.MarkFlagRequired("suite")

	return cmd
}

func runProbe(cmd *cobra.Command, st *cliState, opts *probeOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("probe: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("probe: nil options")
	}

	suitePath := strings.TrimSpace(opts.suitePath)
	if suitePath == "" {
		return fmt.Errorf("probe: missing --suite")
	}

	suite, err := safety.LoadSuite(suitePath)
	if err != nil {
		return err
	}

	provider, err := resolveProvider(st, opts.provider)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout := st.cfg.LLM.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	prober := safety.NewProber(provider)
	res, err := prober.Run(ctx, suite)
	if err != nil {
		return err
	}

	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = provider.Name()
	}

	doc, err := safety.BuildReport(res, model, time.Now().UTC())
	if err != nil {
		return err
	}

	outDir := strings.TrimSpace(opts.outDir)
	if outDir == "" {
		outDir = st.cfg.Reports.SafetyDir
	}
	outPath := filepath.Join(outDir, doc.RunID+".json")
	if err := report.Write(outPath, doc); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Suite %s: %d/%d probes passed\n", res.Suite, res.Passed, res.Total)
	for _, r := range res.Results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(out, "  [%s] %s (%s) %s\n", status, r.ID, r.Category, r.Reason)
	}
	_, _ = fmt.Fprintf(out, "Report: %s\n", outPath)

	return nil
}
