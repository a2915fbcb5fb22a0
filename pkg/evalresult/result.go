// Package evalresult defines EvaluationResult (spec.md §3): one instance
// of (item, criterion, SAM), its variant outcome state, and the derived
// booleans the aggregator and projector rely on. It sits below evaltree,
// sam and scheduler in the import graph so all three can share it without
// a cycle.
package evalresult

import (
	"sync"

	"github.com/google/uuid"

	"github.com/aks8m/piqi-eval/pkg/rubric"
)

// State is the tagged variant spec.md §9 calls for instead of a pile of
// boolean flags.
type State int

const (
	Pending State = iota
	Passed
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Result is one EvaluationResult: the outcome of evaluating one
// criterion against one evaluation item.
type Result struct {
	ID   string
	Key  string // "samMnemonic.criterionSequence" within the owning item

	ItemKey         string
	EntityMnemonic  string
	ClassMnemonic   string
	ElementSequence int

	Criterion rubric.EvaluationCriterion

	IsConditional bool
	IsDependent   bool

	EvalResult    State
	EvalPerformed bool

	// SkipSAM/FailSAM name the SAM mnemonic whose outcome caused this
	// slot's Skip/Fail: the referenced criterion's SAM under conditional
	// or dependent propagation, otherwise this slot's own SAM mnemonic
	// (including when that SAM is not registered).
	SkipSAM string
	FailSAM string
	// Cause optionally points at the Result that propagated into this
	// one, for callers that want to walk the chain rather than just key
	// on the causing mnemonic.
	Cause *Result

	Reason             string
	CustomErrorMessage string

	once sync.Once
}

// Finalize runs fn exactly once for this result. A concurrent caller
// that arrives while fn is already running blocks until that first call
// returns, so a conditional/dependent slot referenced from more than one
// goroutine is finalized exactly once and every reader observes a
// completed result rather than a partially written one.
func (r *Result) Finalize(fn func()) {
	r.once.Do(fn)
}

// NewPending builds an unfinalized Result for the given item/criterion
// pairing with a freshly minted, stable ID.
func NewPending(itemKey, entityMnemonic, classMnemonic string, elementSequence int, criterion rubric.EvaluationCriterion, isConditional, isDependent bool) *Result {
	return &Result{
		ID:              uuid.NewString(),
		Key:             criterion.Key().String(),
		ItemKey:         itemKey,
		EntityMnemonic:  entityMnemonic,
		ClassMnemonic:   classMnemonic,
		ElementSequence: elementSequence,
		Criterion:       criterion,
		IsConditional:   isConditional,
		IsDependent:     isDependent,
		EvalResult:      Pending,
	}
}

// IsScoring reports whether this result's criterion is on the scoring
// track (as opposed to informational).
func (r *Result) IsScoring() bool {
	return r.Criterion.ScoringEffect == rubric.Scoring
}

// IsCritical reports whether this result's criterion is flagged critical.
func (r *Result) IsCritical() bool {
	return r.Criterion.CriticalityIndicator
}

// Contributes reports whether this result should participate in
// aggregation. IsConditional/IsDependent mark a materialized
// reference-duplicate slot (a copy kept only to resolve another
// criterion's gate, never the gated/dependent criterion's own result),
// per spec.md §3 and §8 scenario #1 — a criterion that gates or depends
// on another still contributes its own Passed/Failed/Skipped outcome.
func (r *Result) Contributes() bool {
	return !r.IsConditional && !r.IsDependent
}

func (r *Result) EvalPassed() bool  { return r.EvalResult == Passed }
func (r *Result) EvalFailed() bool  { return r.EvalResult == Failed }
func (r *Result) EvalSkipped() bool { return r.EvalResult == Skipped }
func (r *Result) EvalPending() bool { return r.EvalResult == Pending }

// SAMName resolves the human-facing SAM name: the criterion's override
// if set, else the bare mnemonic (the descriptor-table fallback happens
// one layer up, in the projector, where the reference-data index is
// available).
func (r *Result) SAMName() string {
	if r.Criterion.SAMNameOverride != "" {
		return r.Criterion.SAMNameOverride
	}
	return r.Criterion.SAMMnemonic
}
