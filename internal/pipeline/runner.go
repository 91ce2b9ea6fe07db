// Package pipeline runs an ordered list of steps against shared state.
//
// Each step is either fatal or best-effort. The first fatal failure aborts
// the run and is returned to the caller; best-effort failures are logged and
// recorded, and the run continues. Steps never run concurrently.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/iliamunaev/invoice-emission/internal/apperr"
	"github.com/iliamunaev/invoice-emission/internal/model"
)

// Policy decides what a step failure does to the run.
type Policy int

const (
	// Fatal failures abort the run.
	Fatal Policy = iota
	// BestEffort failures are logged and the run continues.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fatal"
}

// Step is a named unit of work over state S.
type Step[S any] struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context, state S) error
}

// Runner executes steps sequentially.
type Runner[S any] struct {
	logger *slog.Logger
	tracer trace.Tracer
	tr     *Tracker
}

// NewRunner creates a Runner. Nil arguments fall back to slog.Default,
// a no-op tracer and a private Tracker.
func NewRunner[S any](logger *slog.Logger, tracer trace.Tracer, tr *Tracker) *Runner[S] {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}
	if tr == nil {
		tr = &Tracker{}
	}
	return &Runner[S]{logger: logger, tracer: tracer, tr: tr}
}

// Run executes steps in order and returns one result per step, in the same
// order. Steps after a fatal failure are reported as skipped.
func (r *Runner[S]) Run(ctx context.Context, state S, steps []Step[S]) ([]model.StepResult, error) {
	results := make([]model.StepResult, 0, len(steps))

	var fatal error
	for _, st := range steps {
		if fatal != nil {
			results = append(results, model.StepResult{Name: st.Name, Status: model.StepSkipped})
			continue
		}

		res, err := r.runStep(ctx, state, st)
		results = append(results, res)
		if err == nil {
			continue
		}
		if st.Policy == Fatal {
			fatal = err
			continue
		}
		r.logger.WarnContext(ctx, "best-effort step failed",
			"step", st.Name,
			"kind", apperr.Kind(err),
			"err", err,
		)
	}

	return results, fatal
}

func (r *Runner[S]) runStep(ctx context.Context, state S, st Step[S]) (model.StepResult, error) {
	r.tr.Inc()
	defer r.tr.Dec()

	ctx, span := r.tracer.Start(ctx, "step."+st.Name, trace.WithAttributes(
		attribute.String("step.name", st.Name),
		attribute.String("step.policy", st.Policy.String()),
	))
	defer span.End()

	start := time.Now()
	err := st.Run(ctx, state)
	durMS := time.Since(start).Milliseconds()

	res := model.StepResult{Name: st.Name, Status: model.StepOK, DurationMS: durMS}
	if err != nil {
		res.Detail = apperr.Kind(err)
		res.Status = model.StepError
		if st.Policy == BestEffort {
			res.Status = model.StepDegraded
		}
		r.tr.fail()
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Detail)
	}
	return res, err
}
