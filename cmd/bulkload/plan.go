package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload/record"
	"github.com/zero-day-ai/bulkload/stash"
)

func newPlanCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [batch]",
		Short: "Show the creation order and stashed values without calling the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			records, err := record.LoadBatch(args[0])
			if err != nil {
				return &exitError{code: exitRejected, err: err}
			}
			plan, err := stash.NewPlanner(logger(cmd, cfg)).Plan(records)
			if err != nil {
				return &exitError{code: exitRejected, err: err}
			}
			return renderPlan(out(cmd), plan)
		},
	}
}
