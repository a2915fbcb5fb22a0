package sam

import (
	"context"
	"errors"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/fhirclient"
	"github.com/aks8m/piqi-eval/pkg/pierr"
)

// CodeSystemInteroperable calls FHIRClient.LookupCode for the item's
// coding: a 2xx result passes, a 400 fails ("code not recognized"),
// and any other collaborator outcome is a SAM error.
type CodeSystemInteroperable struct {
	Client *fhirclient.Client
}

func (s CodeSystemInteroperable) Evaluate(ctx context.Context, item *evaltree.Item, _ map[string]any) Response {
	codings := codingsFromItem(item)
	if len(codings) == 0 {
		return Skip("no coding present on item")
	}
	coding := codings[0]

	result, err := s.Client.LookupCode(ctx, coding.Code, coding.System)
	if err != nil {
		return collaboratorError(err)
	}
	if !result.Found {
		return Fail("code %q not recognized in system %q", coding.Code, coding.System)
	}
	return Pass()
}

// ReferenceDisplayPopulated is spec.md §4.5's reference-display
// population SAM: for each coding on a CodeableConcept, $lookup is
// called; 2xx is treated as found, 400 as "no such code" (move on to
// the next coding), anything else is a SAM error. It passes when at
// least one coding is found and fails when none is. The display text a
// lookup returns is not written back to the coding or the item.
type ReferenceDisplayPopulated struct {
	Client *fhirclient.Client
}

func (s ReferenceDisplayPopulated) Evaluate(ctx context.Context, item *evaltree.Item, _ map[string]any) Response {
	codings := codingsFromItem(item)
	if len(codings) == 0 {
		return Skip("no codings present on item")
	}

	populated := 0
	for _, coding := range codings {
		result, err := s.Client.LookupDisplay(ctx, coding.Code, coding.System)
		if err != nil {
			return collaboratorError(err)
		}
		if result.Found {
			populated++
		}
	}
	if populated == 0 {
		return Fail("no coding on item resolved a display value")
	}
	return Pass()
}

// ValueSetMember fetches/expands the value set named by the
// criterion's "valueSet" parameter and checks the item's codings
// against its expansion.
type ValueSetMember struct {
	Client *fhirclient.Client
}

func (s ValueSetMember) Evaluate(ctx context.Context, item *evaltree.Item, params map[string]any) Response {
	valueSet := paramString(params, "valueSet", "")
	if valueSet == "" {
		return Error(errors.New("value-set-member criterion is missing a \"valueSet\" parameter"))
	}
	codings := codingsFromItem(item)
	if len(codings) == 0 {
		return Skip("no coding present on item")
	}

	expansion, err := s.Client.GetValueSet(ctx, valueSet)
	if err != nil {
		return collaboratorError(err)
	}

	for _, coding := range codings {
		for _, member := range expansion {
			if member.System == coding.System && member.Code == coding.Code {
				return Pass()
			}
		}
	}
	return Fail("coding not a member of value set %q", valueSet)
}

// collaboratorError folds a CollaboratorError (or any other
// transport-level failure) into a SAM ERROR, per spec.md §4.6: an I/O
// failure out of the FHIR/Knowledge collaborators that isn't an HTTP
// status surface must be translated to SAM ERROR.
func collaboratorError(err error) Response {
	var pe *pierr.Error
	if errors.As(err, &pe) {
		return Error(pe)
	}
	return Error(err)
}
