// Package sam implements the Scoring-and-Assessment Methods (C5): the
// pluggable per-criterion checks a rubric binds to entities, per
// spec.md §4.5 and §4.9.
package sam

import (
	"context"
	"fmt"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/fhirclient"
	"github.com/aks8m/piqi-eval/pkg/knowledgeclient"
	"github.com/aks8m/piqi-eval/pkg/pierr"
)

// Mnemonics for the catalog this repository ships, per SPEC_FULL §4.9.
const (
	MnemonicElementIsClean            = "element-is-clean"
	MnemonicAttributeIsPopulated      = "attribute-is-populated"
	MnemonicCodeSystemInteroperable   = "code-system-interoperable"
	MnemonicReferenceDisplayPopulated = "reference-display-populated"
	MnemonicValueSetMember            = "value-set-member"
	MnemonicLabResultPlausible        = "lab-result-plausible"
	MnemonicLabDevicePlausible        = "lab-device-plausible"
)

// Outcome is a SAM's raw verdict, before the scheduler folds it into an
// evalresult.State: spec.md §3's SUCCEEDED/FAILED/SKIPPED/ERRORED.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	SkippedByMeasure
	Errored
)

// Response is what a SAM implementation returns: its outcome plus an
// optional human-facing reason. ErrorMessage is only meaningful when
// Outcome is Errored.
type Response struct {
	Outcome      Outcome
	Reason       string
	ErrorMessage string
}

func Pass() Response { return Response{Outcome: Succeeded} }

func Fail(reason string, args ...any) Response {
	return Response{Outcome: Failed, Reason: fmt.Sprintf(reason, args...)}
}

func Skip(reason string, args ...any) Response {
	return Response{Outcome: SkippedByMeasure, Reason: fmt.Sprintf(reason, args...)}
}

func Error(err error) Response {
	return Response{Outcome: Errored, ErrorMessage: err.Error()}
}

// SAM is one Scoring-and-Assessment Method: given the evaluation item it
// is bound to and the criterion's declared parameters, it returns a
// verdict. Implementations must not mutate item or its tree; they may
// call collaborators (FHIR terminology, knowledge plausibility) over
// ctx and must respect cancellation.
type SAM interface {
	Evaluate(ctx context.Context, item *evaltree.Item, params map[string]any) Response
}

// Registry resolves a SAM mnemonic to its implementation. Rubric
// validation does not consult the registry: an unknown mnemonic is
// found when the scheduler resolves it, and that slot is finalized as
// Failed with the resolution error as its message.
type Registry struct {
	measures map[string]SAM
}

// NewRegistry builds an empty registry. Callers register measures with
// Register before handing it to the scheduler.
func NewRegistry() *Registry {
	return &Registry{measures: make(map[string]SAM)}
}

// Register binds a mnemonic to an implementation, overwriting any prior
// binding for the same mnemonic.
func (r *Registry) Register(mnemonic string, measure SAM) {
	r.measures[mnemonic] = measure
}

// Resolve looks up a SAM by mnemonic, returning pierr.InvalidRubric if
// no implementation is registered for it.
func (r *Registry) Resolve(mnemonic string) (SAM, error) {
	m, ok := r.measures[mnemonic]
	if !ok {
		return nil, pierr.InvalidRubric("no SAM implementation registered for mnemonic %q", mnemonic)
	}
	return m, nil
}

// Mnemonics returns every mnemonic currently registered, in no
// particular order.
func (r *Registry) Mnemonics() []string {
	out := make([]string, 0, len(r.measures))
	for m := range r.measures {
		out = append(out, m)
	}
	return out
}

// NewDefaultRegistry builds the registry carrying this repository's
// full SAM catalog (SPEC_FULL §4.9), wiring the terminology and
// knowledge measures to the given collaborator clients.
func NewDefaultRegistry(fhir *fhirclient.Client, knowledge *knowledgeclient.Client) *Registry {
	r := NewRegistry()
	r.Register(MnemonicElementIsClean, ElementIsClean{})
	r.Register(MnemonicAttributeIsPopulated, AttributeIsPopulated{})
	r.Register(MnemonicCodeSystemInteroperable, CodeSystemInteroperable{Client: fhir})
	r.Register(MnemonicReferenceDisplayPopulated, ReferenceDisplayPopulated{Client: fhir})
	r.Register(MnemonicValueSetMember, ValueSetMember{Client: fhir})
	r.Register(MnemonicLabResultPlausible, LabResultPlausible{Client: knowledge})
	r.Register(MnemonicLabDevicePlausible, LabDevicePlausible{Client: knowledge})
	return r
}
