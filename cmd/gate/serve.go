package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/ragate/api"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the promotion gate over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(st, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(st *cliState, addr string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("serve: missing config (internal error)")
	}

	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	srv, err := api.NewServer(st.cfg, db)
	if err != nil {
		return err
	}
	return srv.Run(addr)
}
