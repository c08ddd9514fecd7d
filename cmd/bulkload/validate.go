package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [schema]",
		Short: "Check that every reference cycle of a schema can be broken",
		Long: `Check a schema file for consistency and list the mandatory properties
that sit on a class-level reference cycle. A batch for a schema with such
properties would be rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.load(); err != nil {
				return err
			}
			schema, err := ontology.LoadSchema(args[0])
			if err != nil {
				return &exitError{code: exitRejected, err: err}
			}

			violations, err := ontology.Validate(schema)
			var ce *ontology.ConsistencyError
			if errors.As(err, &ce) {
				if rerr := renderIssues(out(cmd), ce.Issues); rerr != nil {
					return rerr
				}
				return &exitError{code: exitRejected, err: err}
			}
			if err != nil {
				return err
			}

			if len(violations) > 0 {
				if err := renderViolations(out(cmd), violations); err != nil {
					return err
				}
				return &exitError{
					code: exitRejected,
					err:  loaderr.New("validate", loaderr.CodeSchemaCycleViolation, fmt.Sprintf("%d violations", len(violations))),
				}
			}
			fmt.Fprintf(out(cmd), "schema ok: %d classes, %d reference cycles, all breakable\n",
				len(schema.ClassNames()), len(schema.Cycles()))
			return nil
		},
	}
}
