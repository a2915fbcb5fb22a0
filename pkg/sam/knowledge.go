package sam

import (
	"context"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/knowledgeclient"
)

// plausibilityResponse folds a Knowledge collaborator verdict into a
// SAM Response per spec.md §4.5: PLAUSIBLE passes, IMPLAUSIBLE fails,
// UNKNOWN is skipped (counted as skipped, not as an informational
// pass).
func plausibilityResponse(p knowledgeclient.Plausibility) Response {
	switch p {
	case knowledgeclient.Plausible:
		return Pass()
	case knowledgeclient.Implausible:
		return Fail("knowledge collaborator returned IMPLAUSIBLE")
	default:
		return Skip("knowledge collaborator returned UNKNOWN")
	}
}

// LabResultPlausible issues the lab-result plausibility GET. Per-
// instance values (dob, testCode, resultValue) come from the item's
// message text; stamp/lang/nav are rubric-declared criterion
// parameters, shared across every instance of the lab result class.
type LabResultPlausible struct {
	Client *knowledgeclient.Client
}

func (s LabResultPlausible) Evaluate(ctx context.Context, item *evaltree.Item, params map[string]any) Response {
	dob, _ := itemField(item, "dob")
	testCode, _ := itemField(item, "testCode")
	resultValue, _ := itemField(item, "resultValue")

	p, err := s.Client.LabResultPlausibility(ctx, knowledgeclientParamsResult(dob, testCode, resultValue, params))
	if err != nil {
		return collaboratorError(err)
	}
	return plausibilityResponse(p)
}

func knowledgeclientParamsResult(dob, testCode, resultValue string, params map[string]any) knowledgeclient.LabResultParams {
	return knowledgeclient.LabResultParams{
		DOB:         dob,
		TestCode:    testCode,
		ResultValue: resultValue,
		Stamp:       paramString(params, "stamp", ""),
		Lang:        paramString(params, "lang", "en"),
		Nav:         paramString(params, "nav", ""),
	}
}

// LabDevicePlausible issues the lab-device plausibility GET, with the
// same per-instance/rubric-static split as LabResultPlausible.
type LabDevicePlausible struct {
	Client *knowledgeclient.Client
}

func (s LabDevicePlausible) Evaluate(ctx context.Context, item *evaltree.Item, params map[string]any) Response {
	testCode, _ := itemField(item, "testCode")
	refRangeLow, _ := itemField(item, "refRangeLow")
	refRangeHigh, _ := itemField(item, "refRangeHigh")
	unit, _ := itemField(item, "unit")

	p, err := s.Client.LabDevicePlausibility(ctx, knowledgeclient.LabDeviceParams{
		TestCode:    testCode,
		RefRangeLow: refRangeLow,
		RefRangeHi:  refRangeHigh,
		Unit:        unit,
		Stamp:       paramString(params, "stamp", ""),
		Lang:        paramString(params, "lang", "en"),
		Nav:         paramString(params, "nav", ""),
	})
	if err != nil {
		return collaboratorError(err)
	}
	return plausibilityResponse(p)
}
