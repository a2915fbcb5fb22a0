// Package kernel wires C1-C8 into the engine's single public entry
// point, per SPEC_FULL §1: Kernel.Evaluate takes an already-parsed
// reference-data index, a rubric, and a raw message, and returns a
// scorecard.
package kernel

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/message"
	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/sam"
	"github.com/aks8m/piqi-eval/pkg/scheduler"
	"github.com/aks8m/piqi-eval/pkg/scorecard"
	"github.com/aks8m/piqi-eval/pkg/stats"
)

// Kernel is the top-level orchestrator: reference-data index + SAM
// registry + per-SAM timeout, shared across every Evaluate call.
type Kernel struct {
	Index      *refdata.Index
	Registry   *sam.Registry
	SAMTimeout time.Duration
	Metrics    *stats.Metrics
	Log        zerolog.Logger
}

// New builds a Kernel, registering one Prometheus counter set
// (stats.Metrics) against metrics that every subsequent Evaluate call
// reports into. metrics may be nil to disable Prometheus registration
// entirely. Building the counter set once here, rather than per
// Evaluate call, is what lets a Kernel be reused across many messages
// against the same registerer without a duplicate-registration panic.
func New(idx *refdata.Index, registry *sam.Registry, samTimeout time.Duration, metrics prometheus.Registerer, log zerolog.Logger) *Kernel {
	return &Kernel{Index: idx, Registry: registry, SAMTimeout: samTimeout, Metrics: stats.NewMetrics(metrics), Log: log}
}

// Request bundles one Evaluate call's inputs: which rubric to run and
// the raw message to evaluate, plus the header fields the projector
// cannot derive from the aggregator alone.
type Request struct {
	RubricMnemonic string
	RawMessage     []byte
	DataProviderID string
	DataSourceID   string
	MessageID      string
	ProcessDate    string
}

// Evaluate runs C2-C8 against one message: builds the message and
// evaluation trees, plans and schedules every criterion, and projects
// the aggregator into a Scorecard. ctx governs cancellation and
// per-SAM timeouts (SPEC_FULL §5.1); a cancelled evaluation still
// returns a scorecard, with Partial set.
func (k *Kernel) Evaluate(ctx context.Context, req Request) (*scorecard.Scorecard, error) {
	doc, ok := k.Index.GetRubric(req.RubricMnemonic)
	if !ok {
		return nil, pierr.InvalidReferenceData("no rubric registered for mnemonic %q", req.RubricMnemonic)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	msgTree, err := message.Build(k.Index.Root(), req.RawMessage)
	if err != nil {
		return nil, err
	}

	root, err := evaltree.Build(k.Index, msgTree)
	if err != nil {
		return nil, err
	}

	scheduler.Plan(root, doc)

	agg := stats.New(k.Metrics)
	sched := scheduler.New(k.Registry, k.SAMTimeout, agg)

	partial, err := sched.RunTree(ctx, root)
	if err != nil {
		return nil, err
	}
	if partial {
		k.Log.Warn().Str("messageId", req.MessageID).Msg("evaluation cancelled before completion, returning partial scorecard")
	}

	header := scorecard.Header{
		DataProviderID: req.DataProviderID,
		DataSourceID:   req.DataSourceID,
		MessageID:      req.MessageID,
		RubricName:     doc.Name,
		RubricMnemonic: doc.Mnemonic,
		ProcessDate:    req.ProcessDate,
		Partial:        partial,
	}
	return scorecard.Project(header, agg, k.Index), nil
}
