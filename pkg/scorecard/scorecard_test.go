package scorecard

import (
	"testing"

	"github.com/aks8m/piqi-eval/pkg/evalresult"
	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/rubric"
	"github.com/aks8m/piqi-eval/pkg/stats"
)

func sampleScorecardIndex(t *testing.T) *refdata.Index {
	t.Helper()
	root := &refdata.Entity{
		Mnemonic: "Message", Name: "Message", FieldName: "message", EntityType: refdata.EntityRoot,
		Children: []*refdata.Entity{
			{
				Mnemonic: "LabResult", Name: "LabResult", FieldName: "labResults", EntityType: refdata.EntityClass,
				Children: []*refdata.Entity{
					{
						Mnemonic: "LabResultInstance", Name: "LabResultInstance", FieldName: "instances", EntityType: refdata.EntityElement,
						Children: []*refdata.Entity{
							{Mnemonic: "ResultValue", Name: "ResultValue", FieldName: "resultValue", EntityType: refdata.EntityAttribute},
						},
					},
				},
			},
			{Mnemonic: "Allergy", Name: "Allergy", FieldName: "allergies", EntityType: refdata.EntityClass},
		},
	}
	idx, err := refdata.Build(&refdata.Bundle{ModelLibrary: []*refdata.Entity{root}})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func scoringResult(entity, class string, seq int, weight int, state evalresult.State) *evalresult.Result {
	c := rubric.EvaluationCriterion{SAMMnemonic: "a", Sequence: 1, ScoringEffect: rubric.Scoring, ScoringWeight: weight}
	r := evalresult.NewPending("key", entity, class, seq, c, false, false)
	r.EvalResult = state
	return r
}

func TestProjectComputesMessageScore(t *testing.T) {
	idx := sampleScorecardIndex(t)
	agg := stats.New(nil)
	agg.Record(scoringResult("ResultValue", "LabResult", 1, 1, evalresult.Passed))
	agg.Record(scoringResult("ResultValue", "LabResult", 2, 1, evalresult.Failed))
	agg.Record(scoringResult("ResultValue", "LabResult", 3, 1, evalresult.Passed))

	sc := Project(Header{RubricMnemonic: "core-v1", MessageID: "msg-1"}, agg, idx)

	if sc.MessageResults.Denominator != 3 || sc.MessageResults.Numerator != 2 {
		t.Fatalf("unexpected message scoring fields: %+v", sc.MessageResults)
	}
	if sc.MessageResults.Score != 66 {
		t.Fatalf("expected truncated 66%%, got %d", sc.MessageResults.Score)
	}
}

func TestProjectSeedsEmptyClassesAtZeroZero(t *testing.T) {
	idx := sampleScorecardIndex(t)
	agg := stats.New(nil)
	agg.Record(scoringResult("ResultValue", "LabResult", 1, 1, evalresult.Passed))

	sc := Project(Header{}, agg, idx)

	var allergy *DataClassResult
	for i := range sc.DataClassResults {
		if sc.DataClassResults[i].ClassName == "Allergy" {
			allergy = &sc.DataClassResults[i]
		}
	}
	if allergy == nil {
		t.Fatal("expected an Allergy class entry even with zero recorded results")
	}
	if allergy.Denominator != 0 || allergy.Numerator != 0 || allergy.Score != 0 {
		t.Fatalf("expected a 0/0 seeded class, got %+v", allergy)
	}
}

func TestProjectSortsClassesByDisplayName(t *testing.T) {
	idx := sampleScorecardIndex(t)
	agg := stats.New(nil)

	sc := Project(Header{}, agg, idx)

	if len(sc.DataClassResults) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(sc.DataClassResults))
	}
	if sc.DataClassResults[0].ClassName != "Allergy" || sc.DataClassResults[1].ClassName != "Lab Result" {
		t.Fatalf("expected alphabetical order, got %q then %q", sc.DataClassResults[0].ClassName, sc.DataClassResults[1].ClassName)
	}
}

func TestProjectCountsDistinctElementInstances(t *testing.T) {
	idx := sampleScorecardIndex(t)
	agg := stats.New(nil)
	agg.Record(scoringResult("ResultValue", "LabResult", 1, 1, evalresult.Passed))
	agg.Record(scoringResult("ResultValue", "LabResult", 1, 1, evalresult.Passed))
	agg.Record(scoringResult("ResultValue", "LabResult", 2, 1, evalresult.Passed))

	sc := Project(Header{}, agg, idx)

	var labResult *DataClassResult
	for i := range sc.DataClassResults {
		if sc.DataClassResults[i].ClassName == "Lab Result" {
			labResult = &sc.DataClassResults[i]
		}
	}
	if labResult == nil || labResult.InstanceCount != 2 {
		t.Fatalf("expected 2 distinct instances, got %+v", labResult)
	}
}

func TestTruncPercentHandlesZeroDenominator(t *testing.T) {
	if got := truncPercent(0, 0); got != 0 {
		t.Fatalf("expected 0 for a zero denominator, got %d", got)
	}
	if got := truncPercent(1, 3); got != 33 {
		t.Fatalf("expected truncation toward zero, got %d", got)
	}
}

func TestRubricDisplayNameFallsBackToMnemonic(t *testing.T) {
	if got := rubricDisplayName(Header{RubricMnemonic: "core-v1"}); got != "core-v1" {
		t.Fatalf("got %q", got)
	}
	if got := rubricDisplayName(Header{RubricMnemonic: "core-v1", RubricName: "Core Rubric"}); got != "Core Rubric" {
		t.Fatalf("got %q", got)
	}
}

func TestPrettifyInsertsSpacesBeforeUpperCase(t *testing.T) {
	if got := prettify("LabResultInstance"); got != "Lab Result Instance" {
		t.Fatalf("got %q", got)
	}
	if got := prettify("allergy"); got != "Allergy" {
		t.Fatalf("got %q", got)
	}
}

func TestProjectGroupsInformationalResultsByClass(t *testing.T) {
	idx := sampleScorecardIndex(t)
	agg := stats.New(nil)
	c := rubric.EvaluationCriterion{SAMMnemonic: "reference-display-populated", Sequence: 1, ScoringEffect: rubric.Informational}
	r := evalresult.NewPending("key", "ResultValue", "LabResult", 1, c, false, false)
	r.EvalResult = evalresult.Passed
	agg.Record(r)

	sc := Project(Header{}, agg, idx)

	if len(sc.InformationalResults) != 1 {
		t.Fatalf("expected one informational group, got %d", len(sc.InformationalResults))
	}
	group := sc.InformationalResults[0]
	if group.ClassName != "Lab Result" || len(group.Results) != 1 {
		t.Fatalf("unexpected informational group: %+v", group)
	}
	if group.Results[0].EntityName != "Result Value" {
		t.Fatalf("expected prettified entity name, got %q", group.Results[0].EntityName)
	}
}
