package kernel

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/rubric"
	"github.com/aks8m/piqi-eval/pkg/sam"
)

func testIndex(t *testing.T) *refdata.Index {
	t.Helper()
	b := &refdata.Bundle{
		ModelLibrary: []*refdata.Entity{
			{
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
			},
		},
		RubricLibrary: []rubric.Document{{
			Name:     "Core Rubric",
			Mnemonic: "core-v1",
			EvaluationProfileLibrary: []rubric.EntityCriteria{
				{EntityMnemonic: "ResultValue", EvaluationCriteria: []rubric.EvaluationCriterion{
					{SAMMnemonic: "attribute-is-populated", Sequence: 1, ScoringEffect: rubric.Scoring, ScoringWeight: 1},
				}},
			},
		}},
	}
	idx, err := refdata.Build(b)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func testRegistry() *sam.Registry {
	r := sam.NewRegistry()
	r.Register("attribute-is-populated", sam.AttributeIsPopulated{})
	return r
}

func TestEvaluateProducesScorecard(t *testing.T) {
	k := New(testIndex(t), testRegistry(), 0, nil, zerolog.Nop())

	sc, err := k.Evaluate(context.Background(), Request{
		RubricMnemonic: "core-v1",
		RawMessage:     []byte(`{"mnemonic": "Message", "labResults": {"instances": [{"resultValue": "7.2"}, {}]}}`),
		MessageID:      "msg-1",
		ProcessDate:    "2026-07-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Partial {
		t.Fatal("expected a non-partial scorecard")
	}
	if sc.MessageResults.Denominator != 2 || sc.MessageResults.Numerator != 1 {
		t.Fatalf("unexpected message results: %+v", sc.MessageResults)
	}
}

func TestEvaluateRejectsUnknownRubric(t *testing.T) {
	k := New(testIndex(t), testRegistry(), 0, nil, zerolog.Nop())

	_, err := k.Evaluate(context.Background(), Request{
		RubricMnemonic: "does-not-exist",
		RawMessage:     []byte(`{"mnemonic": "Message"}`),
	})
	if err == nil {
		t.Fatal("expected an error for an unregistered rubric mnemonic")
	}
}

func TestEvaluateRejectsCyclicRubric(t *testing.T) {
	idx := testIndex(t)
	// refdata.Build already rejects a cyclic rubric, so the cycle is put
	// into an indexed rubric after Build to exercise Evaluate's own check.
	doc, ok := idx.GetRubric("core-v1")
	if !ok {
		t.Fatal("expected the test index to carry the core-v1 rubric")
	}
	doc.EvaluationProfileLibrary = []rubric.EntityCriteria{
		{EntityMnemonic: "ResultValue", EvaluationCriteria: []rubric.EvaluationCriterion{
			{SAMMnemonic: "a", Sequence: 1, DependentOn: &rubric.CriterionRef{SAMMnemonic: "b", Sequence: 1}},
			{SAMMnemonic: "b", Sequence: 1, DependentOn: &rubric.CriterionRef{SAMMnemonic: "a", Sequence: 1}},
		}},
	}

	k := New(idx, testRegistry(), 0, nil, zerolog.Nop())
	_, err := k.Evaluate(context.Background(), Request{RubricMnemonic: "core-v1", RawMessage: []byte(`{"mnemonic": "Message"}`)})
	if err == nil {
		t.Fatal("expected a cyclic rubric to be rejected")
	}
}

// TestEvaluateReusesMetricsAcrossCalls guards against registering a
// fresh Prometheus counter set on every Evaluate call: a Kernel built
// once with a real registerer (the intended "shared across every
// Evaluate call" usage its doc comment describes) must survive
// evaluating more than one message without panicking on duplicate
// registration.
func TestEvaluateReusesMetricsAcrossCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	k := New(testIndex(t), testRegistry(), 0, reg, zerolog.Nop())

	req := Request{
		RubricMnemonic: "core-v1",
		RawMessage:     []byte(`{"mnemonic": "Message", "labResults": {"instances": [{"resultValue": "7.2"}]}}`),
	}

	if _, err := k.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("first evaluate: unexpected error: %v", err)
	}
	if _, err := k.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("second evaluate: unexpected error: %v", err)
	}
}

func TestEvaluateCancellationYieldsPartialScorecard(t *testing.T) {
	k := New(testIndex(t), testRegistry(), 0, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc, err := k.Evaluate(ctx, Request{
		RubricMnemonic: "core-v1",
		RawMessage:     []byte(`{"mnemonic": "Message", "labResults": {"instances": [{"resultValue": "7.2"}]}}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sc.Partial {
		t.Fatal("expected a cancelled evaluation to report a partial scorecard")
	}
}
