package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aks8m/piqi-eval/pkg/evalresult"
	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/sam"
)

// Sink receives every finalized, contributing result as the scheduler
// produces it. The aggregator (C7) implements Sink; the scheduler
// calls it from a single goroutine per item so its one-writer
// discipline (spec.md §5) holds even when criteria within an item are
// dispatched concurrently.
type Sink interface {
	Record(r *evalresult.Result)
}

// Scheduler is C6: it walks an evaluation tree post-order and
// finalizes every plan slot against the SAM registry.
type Scheduler struct {
	Registry   *sam.Registry
	SAMTimeout time.Duration
	Sink       Sink
}

// New builds a Scheduler. A zero SAMTimeout disables the per-SAM
// deadline.
func New(registry *sam.Registry, samTimeout time.Duration, sink Sink) *Scheduler {
	return &Scheduler{Registry: registry, SAMTimeout: samTimeout, Sink: sink}
}

// RunTree walks root post-order, finalizing every item's plan slots.
// Criteria within a single item whose order isn't constrained by a
// conditional/dependent edge are dispatched concurrently (spec.md §5);
// their results are serialized into Sink from the calling goroutine
// once every concurrent slot in the batch has finalized.
//
// Partial reports whether cancellation truncated the run: any slot
// still Pending when ctx is cancelled is finalized as Skipped with
// reason "cancelled" rather than evaluated.
func (s *Scheduler) RunTree(ctx context.Context, root *evaltree.Item) (partial bool, err error) {
	evaltree.WalkPostOrder(root, func(item *evaltree.Item) {
		if ctx.Err() != nil {
			s.cancelRemaining(item)
			partial = true
			return
		}
		s.runItem(ctx, item)
	})
	return partial, nil
}

// cancelRemaining finalizes every still-Pending slot on item as
// Skipped with reason "cancelled", per spec.md §5: these slots sit
// outside the scoring universe and are never reported to Sink.
func (s *Scheduler) cancelRemaining(item *evaltree.Item) {
	for _, r := range item.Plan {
		if r.EvalPending() {
			r.EvalResult = evalresult.Skipped
			r.Reason = "cancelled"
			r.EvalPerformed = false
		}
	}
}

// runItem finalizes every plan slot on one item, each in its own
// goroutine. A slot that references another finalizes the referenced
// slot first (inline, or by waiting on the goroutine already running
// it). Once all slots are final, the contributing results are recorded
// into Sink from the calling goroutine, in plan order.
func (s *Scheduler) runItem(ctx context.Context, item *evaltree.Item) {
	var wg sync.WaitGroup

	for _, r := range item.Plan {
		wg.Add(1)
		go func(r *evalresult.Result) {
			defer wg.Done()
			s.finalize(ctx, item, r)
		}(r)
	}
	wg.Wait()

	if s.Sink == nil {
		return
	}
	for _, r := range item.Plan {
		if r.Contributes() {
			s.Sink.Record(r)
		}
	}
}

// finalize implements the per-slot algorithm of spec.md §4.6. A slot
// referenced by more than one conditional/dependent chain within the
// same item is finalized exactly once: r.Finalize (backed by
// sync.Once) lets every goroutine that reaches the same slot recurse
// into it concurrently, runs the gating/invocation logic for exactly
// one of them, and blocks the rest until it finishes, so no slot's SAM
// is ever invoked twice and no caller reads a half-written Result.
func (s *Scheduler) finalize(ctx context.Context, item *evaltree.Item, r *evalresult.Result) {
	r.Finalize(func() {
		s.finalizeLocked(ctx, item, r)
	})
}

// finalizeLocked runs once per Result, under the protection of
// Result.Finalize; it must never be called directly.
func (s *Scheduler) finalizeLocked(ctx context.Context, item *evaltree.Item, r *evalresult.Result) {
	if r.Criterion.ConditionalOn != nil {
		cond, ok := item.PlanSlot(r.Criterion.ConditionalOn.String())
		if ok {
			s.finalize(ctx, item, cond)
			if !cond.EvalPassed() {
				r.EvalResult = evalresult.Skipped
				r.SkipSAM = cond.Criterion.SAMMnemonic
				r.Cause = cond
				r.Reason = "conditional not met"
				r.EvalPerformed = false
				return
			}
		}
	}

	if r.Criterion.DependentOn != nil {
		dep, ok := item.PlanSlot(r.Criterion.DependentOn.String())
		if ok {
			s.finalize(ctx, item, dep)
			switch {
			case dep.EvalSkipped():
				r.EvalResult = evalresult.Skipped
				r.SkipSAM = dep.Criterion.SAMMnemonic
				r.Cause = dep
				r.EvalPerformed = false
				return
			case dep.EvalFailed():
				r.EvalResult = evalresult.Failed
				r.FailSAM = dep.Criterion.SAMMnemonic
				r.Cause = dep
				r.EvalPerformed = false
				return
			}
		}
	}

	s.invoke(ctx, item, r)
}

// invoke dispatches a slot's own SAM and maps its SAMResponse onto the
// result, per spec.md §4.6 step 4.
func (s *Scheduler) invoke(ctx context.Context, item *evaltree.Item, r *evalresult.Result) {
	measure, err := s.Registry.Resolve(r.Criterion.SAMMnemonic)
	if err != nil {
		r.EvalResult = evalresult.Failed
		r.FailSAM = r.Criterion.SAMMnemonic
		r.CustomErrorMessage = err.Error()
		r.EvalPerformed = false
		return
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if s.SAMTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.SAMTimeout)
		defer cancel()
	}

	resp := safeEvaluate(measure, callCtx, item, r.Criterion.Parameters)
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		resp = sam.Error(pierr.CollaboratorError(callCtx.Err(), "sam %q timed out", r.Criterion.SAMMnemonic))
	}

	r.EvalPerformed = true
	switch resp.Outcome {
	case sam.Succeeded:
		r.EvalResult = evalresult.Passed
	case sam.Failed:
		r.EvalResult = evalresult.Failed
		r.FailSAM = r.Criterion.SAMMnemonic
		r.Reason = resp.Reason
	case sam.SkippedByMeasure:
		r.EvalResult = evalresult.Skipped
		r.SkipSAM = r.Criterion.SAMMnemonic
		r.Reason = resp.Reason
	case sam.Errored:
		r.EvalResult = evalresult.Failed
		r.FailSAM = r.Criterion.SAMMnemonic
		r.CustomErrorMessage = resp.ErrorMessage
	}
}

// safeEvaluate recovers a panicking SAM implementation into an
// ERRORED response, per spec.md §4.5: "any unhandled exception inside
// a SAM translates to SAMResponse{ERRORED}; the scheduler catches,
// never crashes."
func safeEvaluate(measure sam.SAM, ctx context.Context, item *evaltree.Item, params map[string]any) (resp sam.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = sam.Error(pierr.SAMError(nil, "sam panicked: %v", rec))
		}
	}()
	return measure.Evaluate(ctx, item, params)
}
