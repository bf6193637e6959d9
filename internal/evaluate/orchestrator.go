package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"epieval/internal/browser"
	"epieval/internal/sequence"
	"epieval/internal/tools"
	"epieval/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var ErrSeriesLength = errors.New("score series length does not match the sequence set")

var tracer = otel.Tracer("epieval/evaluate")

const (
	report_evaluate_resolve = "evaluate.resolve"
	report_evaluate_task    = "evaluate.task"
	report_evaluate_submit  = "evaluate.submit"
)

// Result maps every evaluator to its score series. Failures holds the evaluators that
// produced no series and why, a key is never in both maps.
type Result struct {
	Scores   map[Key]Series
	Failures map[Key]error
}

// Keys returns the keys of Scores and Failures ordered by label then tool.
func (r Result) Keys() []Key {
	keys := make([]Key, 0, len(r.Scores)+len(r.Failures))
	for k := range r.Scores {
		keys = append(keys, k)
	}
	for k := range r.Failures {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Preflight is called before a task launches its browser.
type Preflight func(ctx context.Context, desc tools.Descriptor) error

type Orchestrator struct {
	// Jobs is the maximum number of evaluators running at once, values < 1 mean 1.
	Jobs       int
	NewSession browser.Factory
	Registry   tools.Registry
	// ChunkSize overrides the per tool chunk size when > 0.
	ChunkSize int
	Poll      tools.Poll
	// TempDir is where payload files are written, defaults to os.TempDir().
	TempDir   string
	Preflight Preflight
	// Limiter paces form submissions across all workers, nil means unlimited.
	Limiter *rate.Limiter
	Tel     telemetry.API
}

type task struct {
	req     Request
	adapter tools.Adapter
	params  tools.Params
}

type outcome struct {
	key    Key
	series Series
	err    error
}

func (o *Orchestrator) tel() telemetry.API {
	if o.Tel == nil {
		return telemetry.SlogAPI{}
	}
	return o.Tel
}

// resolve validates every request against the registry. Requests that cannot run are
// returned as failures.
func (o *Orchestrator) resolve(requests Requests) ([]task, map[Key]error) {
	var tasks []task
	failures := make(map[Key]error)
	for _, req := range requests {
		adapter, err := o.Registry.Lookup(req.Tool)
		if err != nil {
			o.tel().ReportWarning(report_evaluate_resolve, req.Key().String(), err)
			failures[req.Key()] = err
			continue
		}
		params, err := adapter.Params(req.Params)
		if err != nil {
			o.tel().ReportWarning(report_evaluate_resolve, req.Key().String(), err)
			failures[req.Key()] = err
			continue
		}
		tasks = append(tasks, task{req: req, adapter: adapter, params: params})
	}
	return tasks, failures
}

// Evaluate runs every request against set and blocks until all of them are done. A failed
// evaluator only affects its own entry, the returned error is reserved for invalid input.
func (o *Orchestrator) Evaluate(ctx context.Context, set sequence.Set, requests Requests) (Result, error) {
	if set.Len() == 0 {
		return Result{}, fmt.Errorf("no sequences to evaluate")
	}
	if len(requests) == 0 {
		return Result{}, fmt.Errorf("no evaluators requested")
	}
	canonical := make(Requests, len(requests))
	for i, r := range requests {
		if adapter, err := o.Registry.Lookup(r.Tool); err == nil {
			r.Tool = string(adapter.Descriptor().Name)
		}
		canonical[i] = r
	}
	requests, err := canonical.Normalize()
	if err != nil {
		return Result{}, err
	}
	if o.NewSession == nil {
		return Result{}, fmt.Errorf("orchestrator has no session factory")
	}

	ctx, span := tracer.Start(ctx, "Evaluate", trace.WithAttributes(
		attribute.Int("sequences", set.Len()),
		attribute.Int("evaluators", len(requests)),
	))
	defer span.End()

	tasks, failures := o.resolve(requests)
	result := Result{
		Scores:   make(map[Key]Series, len(tasks)),
		Failures: failures,
	}
	if len(tasks) == 0 {
		return result, nil
	}

	jobs := max(o.Jobs, 1)
	var group errgroup.Group
	group.SetLimit(min(jobs, len(tasks)))

	outcomes := make(chan outcome, len(tasks))
	for _, t := range tasks {
		group.Go(func() error {
			series, err := o.run(ctx, set, t)
			outcomes <- outcome{key: t.req.Key(), series: series, err: err}
			return nil
		})
	}
	go func() {
		group.Wait()
		close(outcomes)
	}()

	finished := 0
	for out := range outcomes {
		finished++
		if out.err != nil {
			o.tel().ReportBroken(report_evaluate_task, out.key.String(), out.err)
			result.Failures[out.key] = out.err
		} else {
			result.Scores[out.key] = out.series
		}
		slog.Info(fmt.Sprintf("%s finished (%d / %d)", out.key, finished, len(tasks)))
	}
	return result, nil
}

// run executes chunking, submission, parsing and aggregation for one evaluator.
func (o *Orchestrator) run(ctx context.Context, set sequence.Set, t task) (series Series, err error) {
	desc := t.adapter.Descriptor()
	tel := telemetry.NewScopedAPI(t.req.Key().String(), o.tel())
	ctx, span := tracer.Start(ctx, "evaluator", trace.WithAttributes(
		attribute.String("label", t.req.Label),
		attribute.String("tool", string(desc.Name)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "evaluator failed")
		}
		span.End()
	}()

	if o.Preflight != nil {
		err = o.Preflight(ctx, desc)
		if err != nil {
			return nil, fmt.Errorf("preflight: %w", err)
		}
	}

	chunkSize := desc.ChunkSize
	if o.ChunkSize > 0 {
		chunkSize = o.ChunkSize
	}

	dir, err := os.MkdirTemp(o.TempDir, "epieval-")
	if err != nil {
		return nil, fmt.Errorf("create payload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	payloads, err := BuildPayloads(sequence.Chunk(set, chunkSize), desc, dir)
	if err != nil {
		return nil, err
	}
	defer payloads.Cleanup()

	session, err := o.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		closeErr := session.Close()
		if closeErr != nil {
			tel.ReportWarning(report_evaluate_task, closeErr)
		}
	}()

	columns := make(Columns)
	for i, payload := range payloads {
		batch, err := o.submit(ctx, tel, session, t, payload)
		if err != nil {
			return nil, fmt.Errorf("submission %d/%d: %w", i+1, len(payloads), err)
		}
		columns.Append(batch)
	}
	tel.ReportCount(report_evaluate_submit, int64(len(payloads)))

	series = Series(columns[tools.ColumnScore])
	if len(series) != set.Len() {
		return nil, fmt.Errorf("%w: got %d scores for %d sequences", ErrSeriesLength, len(series), set.Len())
	}
	return series, nil
}

func (o *Orchestrator) submit(ctx context.Context, tel telemetry.API, session browser.Session, t task, payload Payload) (Columns, error) {
	desc := t.adapter.Descriptor()
	ctx, span := tracer.Start(ctx, "submit", trace.WithAttributes(
		attribute.Int("sequences", payload.Count),
	))
	defer span.End()

	fields := make(map[string]string, len(desc.Fields)+2)
	for k, v := range desc.Fields {
		fields[k] = v
	}
	for k, v := range t.params.Fields() {
		fields[k] = v
	}
	fields[desc.SequenceField] = payload.Value

	err := session.Open(ctx, desc.URL)
	if err != nil {
		return nil, err
	}
	err = session.Fill(ctx, fields)
	if err != nil {
		return nil, err
	}
	if o.Limiter != nil {
		err = o.Limiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}
	err = session.Submit(ctx, desc.SubmitSelector)
	if err != nil {
		return nil, err
	}
	tel.ReportDebug("submitted", "sequences", payload.Count)

	batch, err := tools.WaitForResults(ctx, session, t.adapter, o.Poll)
	if err != nil {
		return nil, err
	}
	if got := len(batch[tools.ColumnScore]); got != payload.Count {
		return nil, fmt.Errorf("%w: tool returned %d scores for %d sequences", ErrSeriesLength, got, payload.Count)
	}
	return batch, nil
}
