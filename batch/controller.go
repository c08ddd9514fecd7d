// Package batch drives a bulk load from validation to the last write-back.
//
// A Controller moves through Validating, Ordering, Executing, Reinserting and
// Done. Validating checks the schema's reference cycles and Ordering builds a
// stash plan; a failure in either rejects the batch before any backend call.
// Executing creates the plan's levels one after another, the records of a
// level concurrently. Reinserting writes every stashed value back once its
// owner and targets exist. Per-record failures never stop the run: they are
// collected in the Result's problem list.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/checkpoint"
	"github.com/zero-day-ai/bulkload/idmap"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/record"
	"github.com/zero-day-ai/bulkload/retry"
	"github.com/zero-day-ai/bulkload/stash"
)

// DefaultConcurrency is the number of calls in flight when Options.Concurrency is zero.
const DefaultConcurrency = 4

// Operation names used in errors and spans.
const (
	opRun    = "run"
	opCreate = "create record"
	opUpdate = "update record"
)

// ErrNoBackend is returned by New when Options.Backend is nil.
var ErrNoBackend = errors.New("batch: no backend configured")

// Options configures a Controller.
type Options struct {
	// Backend receives the create and update calls. Required.
	Backend backend.Backend

	// Schema enables the cycle check. A nil schema skips it.
	Schema *ontology.Schema

	// Retry is the retry policy for backend calls. Nil uses retry defaults.
	Retry *retry.Executor

	// Concurrency bounds the calls in flight within a level and during
	// reinsertion. Zero means DefaultConcurrency.
	Concurrency int

	// Checkpoint, when set, persists progress under BatchKey so that a rerun
	// resumes where this one stopped.
	Checkpoint checkpoint.Store
	BatchKey   string

	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Controller runs batches. It is safe to run several batches concurrently.
type Controller struct {
	backend     backend.Backend
	schema      *ontology.Schema
	retry       *retry.Executor
	concurrency int
	store       checkpoint.Store
	batchKey    string
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *metrics
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	c := &Controller{
		backend:     opts.Backend,
		schema:      opts.Schema,
		concurrency: opts.Concurrency,
		store:       opts.Checkpoint,
		batchKey:    opts.BatchKey,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.tracer == nil {
		c.tracer = defaultTracer()
	}
	meter := opts.Meter
	if meter == nil {
		meter = defaultMeter()
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	// The executor is copied so the attempt counter does not leak into
	// the caller's policy.
	ex := retry.New(c.logger)
	if opts.Retry != nil {
		cp := *opts.Retry
		ex = &cp
		if ex.Logger == nil {
			ex.Logger = c.logger
		}
	}
	userHook := ex.OnAttempt
	ex.OnAttempt = func(op string, attempt int, err error) {
		c.metrics.retryAttempts.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("op", op), attribute.String("class", string(loaderr.Classify(err)))))
		if userHook != nil {
			userHook(op, attempt, err)
		}
	}
	c.retry = ex
	return c, nil
}

// run is the state of one Run call.
type run struct {
	c      *Controller
	logger *slog.Logger
	result *Result

	plan    *stash.Plan
	inBatch map[string]struct{}
	classes map[string]string
	ids     *idmap.Map

	// reinserted holds stash keys written back by an earlier run.
	reinserted map[string]struct{}

	mu sync.Mutex
	// outcome is the status of every record that was not created.
	outcome map[string]ProblemKind
}

// Run loads records. It returns a non-nil error when the batch was rejected
// or the run was cancelled; per-record failures only show up in the result's
// problem list. The result is never nil.
func (c *Controller) Run(ctx context.Context, records []record.Record) (*Result, error) {
	runID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "bulkload.run", trace.WithAttributes(
		attribute.String("bulkload.run_id", runID),
		attribute.Int("bulkload.records", len(records)),
	))
	defer span.End()

	r := &run{
		c:       c,
		logger:  c.logger.With("run_id", runID),
		result:  &Result{RunID: runID, IDs: map[string]string{}},
		ids:     idmap.New(),
		outcome: make(map[string]ProblemKind),
	}

	err := r.execute(ctx, records)
	r.result.IDs = r.ids.Snapshot()
	span.SetAttributes(
		attribute.String("bulkload.state", string(r.result.State)),
		attribute.Int("bulkload.problems", len(r.result.Problems)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if len(r.result.Problems) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d problems", len(r.result.Problems)))
	}
	return r.result, err
}

func (r *run) transition(s State) {
	r.logger.Info("batch state", "state", string(s))
	r.result.State = s
}

func (r *run) reject(err error) error {
	r.transition(StateRejected)
	r.logger.Error("batch rejected", "error", err)
	return err
}

func (r *run) execute(ctx context.Context, records []record.Record) error {
	r.transition(StateValidating)
	if err := record.ValidateBatch(records); err != nil {
		return r.reject(loaderr.New(opRun, loaderr.CodeInvalidInput, "invalid batch").WithCause(err))
	}
	if r.c.schema != nil {
		violations, err := ontology.Validate(r.c.schema)
		if err != nil {
			return r.reject(loaderr.New(opRun, loaderr.CodeInvalidInput, "inconsistent schema").WithCause(err))
		}
		if len(violations) > 0 {
			r.result.Violations = violations
			names := make([]string, len(violations))
			for i, v := range violations {
				names[i] = v.String()
			}
			return r.reject(loaderr.New(opRun, loaderr.CodeSchemaCycleViolation,
				fmt.Sprintf("%d mandatory properties on reference cycles", len(violations))).
				WithDetails(map[string]any{"violations": names}))
		}
	}

	if err := r.resume(ctx); err != nil {
		return r.reject(err)
	}

	r.transition(StateOrdering)
	plan, err := stash.NewPlanner(r.logger).Plan(records)
	if err != nil {
		return r.reject(err)
	}
	r.plan = plan
	r.inBatch = record.IDs(records)
	r.classes = make(map[string]string, len(records))
	for _, rec := range records {
		r.classes[rec.ID] = rec.Class
	}
	r.result.Stashes = plan.Stashes
	r.result.Levels = len(plan.Levels)

	r.transition(StateExecuting)
	for level, recs := range plan.Levels {
		r.createLevel(ctx, level, recs)
	}

	r.transition(StateReinserting)
	r.reinsertAll(ctx)

	r.transition(StateDone)
	r.logger.Info("batch finished",
		"created", r.result.Created,
		"resumed", r.result.Resumed,
		"reinserted", r.result.Reinserted,
		"problems", len(r.result.Problems))

	if err := ctx.Err(); err != nil {
		return loaderr.New(opRun, loaderr.CodeCancelled, "run cancelled").WithCause(err)
	}
	if len(r.result.Problems) == 0 && r.c.store != nil {
		if err := r.c.store.Clear(ctx, r.c.batchKey); err != nil {
			r.logger.Warn("failed to clear checkpoint", "batch", r.c.batchKey, "error", err)
		}
	}
	return nil
}

// resume loads the checkpoint of an earlier run of the same batch.
func (r *run) resume(ctx context.Context) error {
	r.reinserted = map[string]struct{}{}
	if r.c.store == nil {
		return nil
	}
	state, err := r.c.store.Load(ctx, r.c.batchKey)
	if err != nil {
		return loaderr.New(opRun, loaderr.CodeCheckpointUnavailable, "load checkpoint").
			WithDetails(map[string]any{"batch": r.c.batchKey}).
			WithCause(err)
	}
	for local, global := range state.IDs {
		if err := r.ids.Register(local, global); err != nil {
			return loaderr.New(opRun, loaderr.CodeDuplicateIdentifier, "checkpoint holds a conflicting id").
				WithRecord(local, "").WithCause(err)
		}
	}
	r.reinserted = state.Reinserted
	if !state.Empty() {
		r.logger.Info("resuming batch",
			"batch", r.c.batchKey,
			"ids", len(state.IDs),
			"reinserted", len(state.Reinserted))
	}
	return nil
}

// blocker returns the first dependency of rec that was not created, the
// property referencing it and its outcome.
func (r *run) blocker(rec record.Record) (dep, property string, kind ProblemKind, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range record.Edges(rec, r.inBatch) {
		if k, bad := r.outcome[e.Target]; bad {
			return e.Target, e.Property, k, true
		}
	}
	return "", "", "", false
}

func (r *run) setOutcome(id string, kind ProblemKind) {
	r.mu.Lock()
	r.outcome[id] = kind
	r.mu.Unlock()
}

// createLevel creates the records of one level concurrently. Records of one
// level never reference each other, so only earlier levels are read.
func (r *run) createLevel(ctx context.Context, level int, recs []record.Record) {
	entries := make([]*LogEntry, len(recs))
	problems := make([]*Problem, len(recs))

	sem := semaphore.NewWeighted(int64(r.c.concurrency))
	var g errgroup.Group
	for i, rec := range recs {
		if global, ok := r.ids.Lookup(rec.ID); ok {
			entries[i] = &LogEntry{RecordID: rec.ID, GlobalID: global, Level: level, Status: EntryResumed}
			continue
		}
		if dep, prop, kind, blocked := r.blocker(rec); blocked {
			problems[i] = r.blocked(ctx, rec, dep, prop, kind)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			problems[i] = r.cancelled(rec.ID, "", opCreate, err)
			continue
		}
		i, rec := i, rec
		g.Go(func() error {
			defer sem.Release(1)
			entries[i], problems[i] = r.create(ctx, level, rec)
			return nil
		})
	}
	_ = g.Wait()

	for i := range recs {
		if e := entries[i]; e != nil {
			r.result.CreationLog = append(r.result.CreationLog, *e)
			if e.Status == EntryResumed {
				r.result.Resumed++
			} else {
				r.result.Created++
			}
		}
		if p := problems[i]; p != nil {
			r.result.Problems = append(r.result.Problems, *p)
		}
	}
}

func (r *run) blocked(ctx context.Context, rec record.Record, dep, property string, kind ProblemKind) *Problem {
	if kind == KindCancelled {
		return r.cancelled(rec.ID, "", opCreate, context.Cause(ctx))
	}
	r.setOutcome(rec.ID, KindBlocked)
	r.c.metrics.blocked.Add(ctx, 1)
	err := loaderr.New(opCreate, loaderr.CodeBlockedByDependency,
		fmt.Sprintf("references %s, which was not created", dep)).WithRecord(rec.ID, property)
	r.logger.Warn("record blocked", "record", rec.ID, "property", property, "dependency", dep)
	return &Problem{RecordID: rec.ID, Property: property, Kind: KindBlocked, Inherited: true, BlockedBy: dep, Err: err}
}

func (r *run) cancelled(recordID, property, op string, cause error) *Problem {
	if property == "" {
		r.setOutcome(recordID, KindCancelled)
	}
	err := loaderr.New(op, loaderr.CodeCancelled, "not started").WithRecord(recordID, property).WithCause(cause)
	return &Problem{RecordID: recordID, Property: property, Kind: KindCancelled, Err: err}
}

// isCancellation reports whether err comes from ctx ending rather than from
// the backend.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, ctx.Err()) || loaderr.CodeOf(err) == loaderr.CodeCancelled
}

// callError gives err the operation and record it belongs to.
func callError(op, recordID, property string, err error) *loaderr.Error {
	var le *loaderr.Error
	if errors.As(err, &le) && le.Op == op {
		cp := *le
		if cp.RecordID == "" {
			cp.RecordID, cp.Property = recordID, property
		}
		return &cp
	}
	return loaderr.New(op, loaderr.CodeTerminalAPI, "backend refused the call").
		WithRecord(recordID, property).
		WithCause(err)
}

// create sends one record with its references resolved.
func (r *run) create(ctx context.Context, level int, rec record.Record) (*LogEntry, *Problem) {
	ctx, span := r.c.tracer.Start(ctx, "bulkload.create", trace.WithAttributes(
		attribute.String("bulkload.record_id", rec.ID),
		attribute.String("bulkload.class", rec.Class),
		attribute.Int("bulkload.level", level),
	))
	defer span.End()

	logger := r.logger.With("record", rec.ID, "level", level)
	resolved := record.ResolveReferences(rec, r.ids)

	attempts := 0
	start := time.Now()
	global, err := retry.Execute(ctx, r.c.retry, opCreate, func(actx context.Context) (string, error) {
		if err := actx.Err(); err != nil {
			return "", err
		}
		attempts++
		// A call once started runs to completion even if the run is cancelled.
		return r.c.backend.CreateRecord(context.WithoutCancel(actx), resolved)
	})
	span.SetAttributes(attribute.Int("bulkload.attempts", attempts))

	if err == nil {
		err = r.ids.Register(rec.ID, global)
		if err != nil {
			err = loaderr.New(opCreate, loaderr.CodeDuplicateIdentifier, "id already registered").
				WithRecord(rec.ID, "").WithCause(err)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isCancellation(ctx, err) {
			return nil, r.cancelled(rec.ID, "", opCreate, err)
		}
		r.setOutcome(rec.ID, KindFailed)
		r.c.metrics.failed.Add(ctx, 1)
		le := callError(opCreate, rec.ID, "", err)
		logger.Error("record failed", "code", le.Code, "attempts", attempts, "error", err)
		return nil, &Problem{RecordID: rec.ID, Kind: KindFailed, Err: le}
	}

	r.c.metrics.created.Add(ctx, 1)
	span.SetAttributes(attribute.String("bulkload.global_id", global))
	logger.Debug("record created", "global_id", global, "duration", time.Since(start))

	if r.c.store != nil {
		if err := r.c.store.SaveID(ctx, r.c.batchKey, rec.ID, global); err != nil {
			logger.Warn("failed to checkpoint id", "error", err)
		}
	}
	return &LogEntry{RecordID: rec.ID, GlobalID: global, Level: level, Status: EntryCreated}, nil
}

// reinsertAll writes every stashed value back, concurrently.
func (r *run) reinsertAll(ctx context.Context) {
	stashes := r.plan.Stashes
	problems := make([]*Problem, len(stashes))
	done := make([]bool, len(stashes))

	sem := semaphore.NewWeighted(int64(r.c.concurrency))
	var g errgroup.Group
	for i, s := range stashes {
		if _, ok := r.reinserted[s.Key()]; ok {
			continue
		}
		owner, ok := r.ids.Lookup(s.RecordID)
		if !ok {
			problems[i] = r.skipped(ctx, s, s.RecordID, "owner was not created")
			continue
		}
		if missing := r.unresolved(s); missing != "" {
			problems[i] = r.skipped(ctx, s, missing, fmt.Sprintf("target %s was not created", missing))
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			problems[i] = r.cancelled(s.RecordID, s.Property, opUpdate, err)
			continue
		}
		i, s := i, s
		g.Go(func() error {
			defer sem.Release(1)
			problems[i] = r.reinsert(ctx, owner, s)
			done[i] = problems[i] == nil
			return nil
		})
	}
	_ = g.Wait()

	for i := range stashes {
		if done[i] {
			r.result.Reinserted++
		}
		if p := problems[i]; p != nil {
			r.result.Problems = append(r.result.Problems, *p)
		}
	}
}

// unresolved returns the first target of s without a global id.
func (r *run) unresolved(s stash.StashRecord) string {
	for _, t := range s.Targets {
		if _, ok := r.ids.Lookup(t); !ok {
			return t
		}
	}
	return ""
}

func (r *run) skipped(ctx context.Context, s stash.StashRecord, dep, msg string) *Problem {
	if r.outcomeOf(dep) == KindCancelled {
		return r.cancelled(s.RecordID, s.Property, opUpdate, context.Cause(ctx))
	}
	r.c.metrics.reinsertFails.Add(ctx, 1)
	err := loaderr.New(opUpdate, loaderr.CodeBlockedByDependency, msg).WithRecord(s.RecordID, s.Property)
	r.logger.Warn("stashed value skipped", "record", s.RecordID, "property", s.Property, "dependency", dep)
	return &Problem{RecordID: s.RecordID, Property: s.Property, Kind: KindReinsertSkipped, Inherited: true, BlockedBy: dep, Err: err}
}

func (r *run) outcomeOf(id string) ProblemKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome[id]
}

// reinsert writes one stashed value back to its owner.
func (r *run) reinsert(ctx context.Context, owner string, s stash.StashRecord) *Problem {
	ctx, span := r.c.tracer.Start(ctx, "bulkload.reinsert", trace.WithAttributes(
		attribute.String("bulkload.record_id", s.RecordID),
		attribute.String("bulkload.property", s.Property),
		attribute.Bool("bulkload.text", s.IsText()),
	))
	defer span.End()

	u := backend.Update{
		Class:       r.classes[s.RecordID],
		Property:    s.Property,
		Placeholder: s.Placeholder,
		Value:       s.Resolve(r.ids),
	}
	attempts := 0
	err := r.c.retry.Do(ctx, opUpdate, func(actx context.Context) error {
		if err := actx.Err(); err != nil {
			return err
		}
		attempts++
		return r.c.backend.UpdateRecord(context.WithoutCancel(actx), owner, u)
	})
	span.SetAttributes(attribute.Int("bulkload.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isCancellation(ctx, err) {
			return r.cancelled(s.RecordID, s.Property, opUpdate, err)
		}
		r.c.metrics.reinsertFails.Add(ctx, 1)
		le := callError(opUpdate, s.RecordID, s.Property, err)
		r.logger.Error("reinsertion failed", "record", s.RecordID, "property", s.Property, "code", le.Code, "error", err)
		return &Problem{RecordID: s.RecordID, Property: s.Property, Kind: KindReinsertFailed, Err: le}
	}

	r.c.metrics.reinserted.Add(ctx, 1)
	r.logger.Debug("stashed value reinserted", "record", s.RecordID, "property", s.Property)
	if r.c.store != nil {
		if err := r.c.store.MarkReinserted(ctx, r.c.batchKey, s.Key()); err != nil {
			r.logger.Warn("failed to checkpoint reinsertion", "key", s.Key(), "error", err)
		}
	}
	return nil
}
