package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/judge"
	"github.com/stellarlinkco/ragate/internal/llm"
	"github.com/stellarlinkco/ragate/internal/report"
)

type evalOptions struct {
	dataset     string
	provider    string
	model       string
	maxSamples  int
	concurrency int
	outDir      string
}

func newEvalCmd(st *cliState) *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:     "eval",
		Short:   "Score a dataset with an LLM judge and write an evaluation report",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "path to a JSONL dataset of QA samples")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "judge provider name (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model label recorded in the report")
	cmd.Flags().IntVar(&opts.maxSamples, "max-samples", 0, "cap on samples to score (0 = all)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "concurrent judge calls (overrides config)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "report output directory (default from config)")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runEval(cmd *cobra.Command, st *cliState, opts *evalOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("eval: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("eval: nil options")
	}

	datasetPath := strings.TrimSpace(opts.dataset)
	if datasetPath == "" {
		return fmt.Errorf("eval: missing --dataset")
	}

	samples, err := judge.LoadSamples(datasetPath, opts.maxSamples)
	if err != nil {
		return err
	}

	provider, err := resolveProvider(st, opts.provider)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	concurrency := st.cfg.LLM.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout := st.cfg.LLM.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	scorer := judge.NewScorer(provider, concurrency)
	res, err := scorer.Score(ctx, samples)
	if err != nil {
		return err
	}

	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = provider.Name()
	}

	doc, err := judge.BuildReport(res, model, filepath.Base(datasetPath), time.Now().UTC())
	if err != nil {
		return err
	}

	outDir := strings.TrimSpace(opts.outDir)
	if outDir == "" {
		outDir = st.cfg.Reports.EvalDir
	}
	outPath := filepath.Join(outDir, doc.RunID+".json")
	if err := report.Write(outPath, doc); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Scored %d samples with %s\n", len(samples), provider.Name())

	names := make([]string, 0, len(res.Means))
	for name := range res.Means {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  %-14s %.2f\n", name, res.Means[name])
	}
	_, _ = fmt.Fprintf(out, "Report: %s\n", outPath)

	return nil
}

func resolveProvider(st *cliState, name string) (llm.Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return llm.DefaultProviderFromConfig(st.cfg)
	}

	reg, err := llm.NewRegistryFromConfig(st.cfg)
	if err != nil {
		return nil, err
	}
	p, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}
