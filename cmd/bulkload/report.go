package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/zero-day-ai/bulkload/batch"
	"github.com/zero-day-ai/bulkload/health"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/stash"
)

func renderViolations(w io.Writer, violations []ontology.Violation) error {
	table := tablewriter.NewWriter(w)
	table.Header("Class", "Property", "Target", "Cardinality")
	for _, v := range violations {
		table.Append(v.Class, v.Property, v.Target, v.Cardinality.String())
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w, "hint:", loaderr.HintFor(loaderr.CodeSchemaCycleViolation))
	return nil
}

func renderIssues(w io.Writer, issues []string) error {
	table := tablewriter.NewWriter(w)
	table.Header("Schema Issue")
	for _, issue := range issues {
		table.Append(issue)
	}
	return table.Render()
}

func renderPlan(w io.Writer, plan *stash.Plan) error {
	fmt.Fprintf(w, "%d records in %d levels, %d values stashed\n", plan.Len(), len(plan.Levels), len(plan.Stashes))

	levels := tablewriter.NewWriter(w)
	levels.Header("Level", "Records")
	for n, level := range plan.Levels {
		ids := make([]string, len(level))
		for i, r := range level {
			ids[i] = r.ID
		}
		levels.Append(strconv.Itoa(n), strings.Join(ids, ", "))
	}
	if err := levels.Render(); err != nil {
		return err
	}
	if len(plan.Stashes) == 0 {
		return nil
	}

	stashes := tablewriter.NewWriter(w)
	stashes.Header("Record", "Property", "Value", "Targets", "Placeholder")
	for _, s := range plan.Stashes {
		placeholder := s.Placeholder
		if placeholder == "" {
			placeholder = "-"
		}
		stashes.Append(s.RecordID, s.Property, strconv.Itoa(s.ValueIndex), strings.Join(s.Targets, ", "), placeholder)
	}
	return stashes.Render()
}

func renderResult(w io.Writer, res *batch.Result) error {
	fmt.Fprintf(w, "run %s: %s, %d created, %d resumed, %d reinserted, %d problems\n",
		res.RunID, res.State, res.Created, res.Resumed, res.Reinserted, len(res.Problems))
	if len(res.Problems) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Record", "Property", "Kind", "Origin", "Cause", "Hint")
	for _, p := range res.Problems {
		cause := ""
		if p.Err != nil {
			cause = p.Err.Error()
		}
		property := p.Property
		if property == "" {
			property = "-"
		}
		table.Append(p.RecordID, property, string(p.Kind), p.Origin(), cause, p.Hint())
	}
	return table.Render()
}

func renderHealth(w io.Writer, checks []health.Status) error {
	table := tablewriter.NewWriter(w)
	table.Header("Check", "Status", "Message")
	for _, c := range checks {
		table.Append(c.Name, c.Status, c.Message)
	}
	return table.Render()
}
