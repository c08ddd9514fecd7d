package stash

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/record"
)

// ErrNoProgress indicates a planner pass that neither placed a record nor
// stashed a value. It signals a bug, never bad input.
var ErrNoProgress = errors.New("stash: planner pass made no progress")

// Planner computes creation plans.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner returns a planner. A nil logger discards output.
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{logger: logger}
}

// Order plans records for creation with a discarding logger. See Planner.Plan.
func Order(records []record.Record) (*Plan, error) {
	return NewPlanner(nil).Plan(records)
}

// state is the planner's working set. Input records are never modified.
type state struct {
	records []record.Record
	pos     map[string]int
	inBatch map[string]struct{}

	// stashed marks removed value indexes per record position.
	stashed []map[int]bool
	// placeholder holds the token for stashed text values.
	placeholder []map[int]string

	placed  []bool
	stashes []StashRecord
}

// Plan orders records so that every record comes after the in-batch records
// it references, stashing flexible values where references form cycles.
//
// It fails with an UNSTASHABLE_CYCLE *loaderr.Error when a cycle consists only
// of pairs holding a mandatory value, and with INVALID_INPUT when the batch
// itself is malformed.
func (p *Planner) Plan(records []record.Record) (*Plan, error) {
	if err := record.ValidateBatch(records); err != nil {
		return nil, loaderr.New("plan", loaderr.CodeInvalidInput, "invalid batch").WithCause(err)
	}

	st := &state{
		records:     records,
		pos:         make(map[string]int, len(records)),
		inBatch:     record.IDs(records),
		stashed:     make([]map[int]bool, len(records)),
		placeholder: make([]map[int]string, len(records)),
		placed:      make([]bool, len(records)),
	}
	for i, r := range records {
		st.pos[r.ID] = i
	}

	var levels [][]int
	remaining := len(records)
	for pass := 1; remaining > 0; pass++ {
		// Readiness is judged against earlier scans only, so one level
		// never holds a record together with one of its targets.
		var level []int
		for i := range records {
			if !st.placed[i] && st.ready(i) {
				level = append(level, i)
			}
		}
		if len(level) > 0 {
			for _, i := range level {
				st.placed[i] = true
			}
			remaining -= len(level)
			levels = append(levels, level)
			continue
		}

		before := len(st.stashes)
		if err := st.breakCycle(p.logger); err != nil {
			return nil, err
		}
		if len(st.stashes) == before {
			return nil, fmt.Errorf("%w (pass %d, %d records pending)", ErrNoProgress, pass, remaining)
		}
	}

	plan := &Plan{Stashes: st.stashes}
	for _, level := range levels {
		out := make([]record.Record, 0, len(level))
		for _, i := range level {
			out = append(out, st.materialize(i))
		}
		plan.Levels = append(plan.Levels, out)
	}
	p.logger.Debug("plan computed",
		"records", len(records),
		"levels", len(plan.Levels),
		"stashed", len(plan.Stashes))
	return plan, nil
}

// liveEdges returns the in-batch edges of record i that were not stashed.
func (st *state) liveEdges(i int) []record.Edge {
	all := record.Edges(st.records[i], st.inBatch)
	if len(st.stashed[i]) == 0 {
		return all
	}
	var live []record.Edge
	for _, e := range all {
		if !st.stashed[i][e.ValueIndex] {
			live = append(live, e)
		}
	}
	return live
}

func (st *state) ready(i int) bool {
	for _, e := range st.liveEdges(i) {
		if !st.placed[st.pos[e.Target]] {
			return false
		}
	}
	return true
}

// findCycle returns the positions of a cycle among pending records, in edge
// order. Every pending record has an edge to another pending record when no
// record is ready, so a cycle always exists.
func (st *state) findCycle() []int {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(st.records))
	var stack []int
	var found []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = grey
		stack = append(stack, u)
		for _, v := range st.pendingTargets(u) {
			switch color[v] {
			case grey:
				for k, n := range stack {
					if n == v {
						found = append([]int{}, stack[k:]...)
						break
					}
				}
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range st.records {
		if !st.placed[i] && color[i] == white {
			if visit(i) {
				return found
			}
		}
	}
	return nil
}

// pendingTargets returns the distinct pending records i references, in the
// order of first reference.
func (st *state) pendingTargets(i int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, e := range st.liveEdges(i) {
		j := st.pos[e.Target]
		if st.placed[j] || seen[j] {
			continue
		}
		seen[j] = true
		out = append(out, j)
	}
	return out
}

// candidate is the set of values of one record pointing at the next record
// on a cycle.
type candidate struct {
	from, to  int
	indexes   []int
	stashable bool
	// permissiveness is the lowest permissiveness among the values.
	permissiveness int
	mandatory      string
}

func (st *state) candidateFor(from, to int) candidate {
	c := candidate{from: from, to: to, stashable: true, permissiveness: 1 << 30}
	seen := make(map[int]bool)
	target := st.records[to].ID
	for _, e := range st.liveEdges(from) {
		if e.Target != target || seen[e.ValueIndex] {
			continue
		}
		seen[e.ValueIndex] = true
		c.indexes = append(c.indexes, e.ValueIndex)
		if !e.Cardinality.IsFlexible() {
			if c.stashable {
				c.mandatory = e.Property
			}
			c.stashable = false
		}
		if p := e.Cardinality.Permissiveness(); p < c.permissiveness {
			c.permissiveness = p
		}
	}
	return c
}

// better reports whether a should be stashed in preference to b: more
// permissive first, then fewer values, then earlier source, then earlier target.
func better(a, b candidate) bool {
	if a.permissiveness != b.permissiveness {
		return a.permissiveness > b.permissiveness
	}
	if len(a.indexes) != len(b.indexes) {
		return len(a.indexes) < len(b.indexes)
	}
	if a.from != b.from {
		return a.from < b.from
	}
	return a.to < b.to
}

// breakCycle finds one cycle among the pending records and stashes the values
// of its cheapest stashable pair.
func (st *state) breakCycle(logger *slog.Logger) error {
	cycle := st.findCycle()
	if len(cycle) == 0 {
		return fmt.Errorf("%w: no cycle among pending records", ErrNoProgress)
	}

	var best *candidate
	var blocker *candidate
	for k, from := range cycle {
		to := cycle[(k+1)%len(cycle)]
		c := st.candidateFor(from, to)
		if !c.stashable {
			if blocker == nil {
				blocker = &c
			}
			continue
		}
		if best == nil || better(c, *best) {
			best = &c
		}
	}

	if best == nil {
		ids := make([]string, 0, len(cycle))
		for _, i := range cycle {
			ids = append(ids, st.records[i].ID)
		}
		return loaderr.New("plan", loaderr.CodeUnstashableCycle,
			"reference cycle holds only mandatory values").
			WithRecord(st.records[blocker.from].ID, blocker.mandatory).
			WithDetails(map[string]any{"cycle": strings.Join(ids, " -> ")})
	}

	for _, idx := range best.indexes {
		st.stash(best.from, idx)
	}
	logger.Debug("stashed values to break cycle",
		"record", st.records[best.from].ID,
		"target", st.records[best.to].ID,
		"values", len(best.indexes),
		"cycle_length", len(cycle))
	return nil
}

// stash removes value idx of record i.
func (st *state) stash(i, idx int) {
	r := st.records[i]
	v := r.Values[idx]
	if st.stashed[i] == nil {
		st.stashed[i] = make(map[int]bool)
	}
	st.stashed[i][idx] = true

	s := StashRecord{
		RecordID:   r.ID,
		Property:   v.Property,
		ValueIndex: idx,
		Original:   v,
	}
	switch p := v.Payload.(type) {
	case record.Reference:
		s.Targets = []string{p.Target}
	case record.FormattedText:
		for _, target := range record.EmbeddedTargets(p.Text) {
			if _, ok := st.inBatch[target]; ok {
				s.Targets = append(s.Targets, target)
			}
		}
		s.Placeholder = Placeholder(r.ID, v.Property, idx, p.Text)
		if st.placeholder[i] == nil {
			st.placeholder[i] = make(map[int]string)
		}
		st.placeholder[i][idx] = s.Placeholder
	}
	st.stashes = append(st.stashes, s)
}

// materialize returns record i with stashed references dropped and stashed
// texts replaced by their placeholders.
func (st *state) materialize(i int) record.Record {
	r := st.records[i].Clone()
	if len(st.stashed[i]) == 0 {
		return r
	}
	values := make([]record.PropertyValue, 0, len(r.Values))
	for idx, v := range r.Values {
		if !st.stashed[i][idx] {
			values = append(values, v)
			continue
		}
		if token, ok := st.placeholder[i][idx]; ok {
			v.Payload = record.FormattedText{Text: token}
			values = append(values, v)
		}
	}
	r.Values = values
	return r
}
