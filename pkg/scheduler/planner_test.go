package scheduler

import (
	"testing"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/message"
	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/rubric"
)

func buildLabResultTree(t *testing.T) *evaltree.Item {
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
		},
	}
	idx, err := refdata.Build(&refdata.Bundle{ModelLibrary: []*refdata.Entity{root}})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	msgTree, err := message.Build(idx.Root(), []byte(`{"mnemonic": "Message", "labResults": {"instances": [{"resultValue": "7.2"}]}}`))
	if err != nil {
		t.Fatalf("build message tree: %v", err)
	}
	tree, err := evaltree.Build(idx, msgTree)
	if err != nil {
		t.Fatalf("build eval tree: %v", err)
	}
	return tree
}

func TestPlanAddsOneSlotPerBoundCriterion(t *testing.T) {
	tree := buildLabResultTree(t)
	doc := &rubric.Document{
		Mnemonic: "core-v1",
		EvaluationProfileLibrary: []rubric.EntityCriteria{
			{EntityMnemonic: "ResultValue", EvaluationCriteria: []rubric.EvaluationCriterion{
				{SAMMnemonic: "attribute-is-populated", Sequence: 1},
			}},
			{EntityMnemonic: "LabResultInstance", EvaluationCriteria: []rubric.EvaluationCriterion{
				{SAMMnemonic: "element-is-clean", Sequence: 1},
			}},
		},
	}

	Plan(tree, doc)

	element := tree.Children[0].Children[0]
	attr := element.Children[0]

	if len(element.Plan) != 1 || element.Plan[0].Criterion.SAMMnemonic != "element-is-clean" {
		t.Fatalf("unexpected element plan: %+v", element.Plan)
	}
	if len(attr.Plan) != 1 || attr.Plan[0].Criterion.SAMMnemonic != "attribute-is-populated" {
		t.Fatalf("unexpected attribute plan: %+v", attr.Plan)
	}
}

func TestPlanOrdersSlotsBySAMMnemonicThenSequence(t *testing.T) {
	tree := buildLabResultTree(t)
	doc := &rubric.Document{
		Mnemonic: "core-v1",
		EvaluationProfileLibrary: []rubric.EntityCriteria{
			{EntityMnemonic: "ResultValue", EvaluationCriteria: []rubric.EvaluationCriterion{
				{SAMMnemonic: "zeta-check", Sequence: 1},
				{SAMMnemonic: "alpha-check", Sequence: 2},
				{SAMMnemonic: "alpha-check", Sequence: 1},
			}},
		},
	}

	Plan(tree, doc)

	attr := tree.Children[0].Children[0].Children[0]
	if len(attr.Plan) != 3 {
		t.Fatalf("expected 3 plan slots, got %d", len(attr.Plan))
	}
	want := []string{"alpha-check.1", "alpha-check.2", "zeta-check.1"}
	for i, w := range want {
		if attr.Plan[i].Key != w {
			t.Fatalf("slot %d: got %q want %q", i, attr.Plan[i].Key, w)
		}
	}
}

func TestPlanSkipsEntitiesWithNoRubricBlock(t *testing.T) {
	tree := buildLabResultTree(t)
	doc := &rubric.Document{Mnemonic: "empty"}

	Plan(tree, doc)

	evaltree.Walk(tree, func(item *evaltree.Item) {
		if len(item.Plan) != 0 {
			t.Fatalf("expected no plan slots on %q, got %d", item.Key, len(item.Plan))
		}
	})
}

// TestPlanNeverTagsGatedSlotsAsNonContributing covers spec.md §8
// scenario #1's ground truth: a criterion that gates or depends on
// another criterion is still the primary slot for itself and must
// contribute to aggregation (as Passed, Failed, or Skipped) like any
// other criterion. IsConditional/IsDependent are reserved for a
// materialized reference-duplicate slot, which this planner never
// produces, so every slot it appends must report Contributes() == true
// regardless of whether its criterion carries a ConditionalOn/DependentOn
// reference.
func TestPlanNeverTagsGatedSlotsAsNonContributing(t *testing.T) {
	tree := buildLabResultTree(t)
	doc := &rubric.Document{
		Mnemonic: "core-v1",
		EvaluationProfileLibrary: []rubric.EntityCriteria{
			{EntityMnemonic: "ResultValue", EvaluationCriteria: []rubric.EvaluationCriterion{
				{SAMMnemonic: "base", Sequence: 1},
				{SAMMnemonic: "gated", Sequence: 1, ConditionalOn: &rubric.CriterionRef{SAMMnemonic: "base", Sequence: 1}},
				{SAMMnemonic: "derived", Sequence: 1, DependentOn: &rubric.CriterionRef{SAMMnemonic: "base", Sequence: 1}},
			}},
		},
	}

	Plan(tree, doc)

	attr := tree.Children[0].Children[0].Children[0]
	if len(attr.Plan) != 3 {
		t.Fatalf("expected 3 plan slots, got %d", len(attr.Plan))
	}
	for _, r := range attr.Plan {
		if r.IsConditional || r.IsDependent {
			t.Fatalf("%s slot should neither be IsConditional nor IsDependent, got %+v", r.Criterion.SAMMnemonic, r)
		}
		if !r.Contributes() {
			t.Fatalf("%s slot should contribute to aggregation", r.Criterion.SAMMnemonic)
		}
	}
}
