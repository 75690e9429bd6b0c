package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

// Exit codes follow CI gate conventions: 0 means promote, 1 means the
// gate rejected the run, 2 means the decision could not be made at all.
func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errGateFailed) || errors.Is(err, errSwapRejected) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(2)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "ragate",
		Short:         "Promotion gate for RAG evaluation pipelines",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newCheckCmd(st))
	root.AddCommand(newSafetyCmd(st))
	root.AddCommand(newCompareCmd(st))
	root.AddCommand(newEvalCmd(st))
	root.AddCommand(newProbeCmd(st))
	root.AddCommand(newHistoryCmd(st))
	root.AddCommand(newReportCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}

func loadConfigPreRun(st *cliState) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(st.configPath)
		if err != nil {
			return err
		}
		st.cfg = cfg
		return nil
	}
}
