// Package stats implements the Statistics Aggregator (C7): the single
// writer that folds every finalized, contributing result into the
// scalar counts and keyed dictionaries spec.md §4.7 and §6 describe.
package stats

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aks8m/piqi-eval/pkg/evalresult"
)

// TrackCounts is one track's (scoring or informational) scalar counts,
// per spec.md §3's invariants: processed = passed + failed, total =
// processed + skipped.
type TrackCounts struct {
	Total     int
	Processed int
	Skipped   int
	Passed    int
	Failed    int
	Critical  int

	WeightedTotal     int
	WeightedProcessed int
	WeightedSkipped   int
	WeightedPassed    int
	WeightedFailed    int
}

// ElementEntry is one ElementDict entry: per-(class, elementSequence)
// scoring audit counts.
type ElementEntry struct {
	ClassMnemonic   string
	ElementSequence int
	TrackCounts
}

// SkipEntry is one SkipDict entry: how often one (entity, sam)
// criterion was skipped because a named cause SAM didn't pass.
type SkipEntry struct {
	EntityMnemonic string
	SAMMnemonic    string
	SkipSAM        string
	SkipCount      int
}

// FailEntry is one FailDict/CriticalFailureDict entry: how often one
// (entity, sam) criterion failed, attributed to a causing SAM.
type FailEntry struct {
	EntityMnemonic string
	SAMMnemonic    string
	FailSAM        string
	FailCount      int
	CriticalCount  int
}

// InformationalEntry is one InformationalDict entry: per-(entity, sam)
// tallies for criteria on the informational track. ClassMnemonic is
// carried alongside the dict's wire key so the projector can group
// entries by data class without re-walking the entity model.
type InformationalEntry struct {
	EntityMnemonic string
	SAMMnemonic    string
	ClassMnemonic  string
	TrackCounts
}

// Aggregator is C7. It is safe to share across the concurrently
// dispatched criteria of one item because Record serializes through an
// internal mutex, matching spec.md §5's one-writer discipline.
type Aggregator struct {
	mu sync.Mutex

	Scoring       TrackCounts
	Informational TrackCounts

	elements         map[string]*ElementEntry
	skips            map[string]*SkipEntry
	fails            map[string]*FailEntry
	criticalFails    map[string]*FailEntry
	informationals   map[string]*InformationalEntry

	metrics *Metrics
}

// Metrics holds the process-lifetime Prometheus counters every
// Aggregator reports into. Unlike an Aggregator, which is scoped to one
// evaluation, Metrics is registered once and shared across every
// evaluation a long-lived caller (a server handling many messages)
// runs, so its counters accumulate a running total rather than being
// re-registered per call.
type Metrics struct {
	resultsTotal   *prometheus.CounterVec
	criticalFailed prometheus.Counter
}

// NewMetrics builds the counter set and registers it against reg. A nil
// reg disables metrics (useful in tests) and NewMetrics itself may be
// called with a nil reg and still return a usable, unregistered Metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "piqi",
			Subsystem: "eval",
			Name:      "results_total",
			Help:      "Finalized, contributing evaluation results by track and state.",
		}, []string{"track", "state"}),
		criticalFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "piqi",
			Subsystem: "eval",
			Name:      "critical_failures_total",
			Help:      "Scoring-track results that failed a critical criterion.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.resultsTotal, m.criticalFailed)
	}
	return m
}

// New builds an empty Aggregator reporting into the given Metrics. A
// caller that evaluates more than one message against the same
// prometheus.Registerer must build Metrics once (NewMetrics) and pass
// it to every Aggregator, rather than registering a fresh counter set
// per evaluation, which would panic on the second registration. metrics
// may be nil to disable Prometheus reporting entirely.
func New(metrics *Metrics) *Aggregator {
	return &Aggregator{
		elements:       make(map[string]*ElementEntry),
		skips:          make(map[string]*SkipEntry),
		fails:          make(map[string]*FailEntry),
		criticalFails:  make(map[string]*FailEntry),
		informationals: make(map[string]*InformationalEntry),
		metrics:        metrics,
	}
}

// Record folds one finalized, contributing result into the
// aggregator's counts and dictionaries, per spec.md §4.7's five-step
// algorithm. Callers must never call Record with a conditional or
// dependent result; the scheduler already filters those out.
func (a *Aggregator) Record(r *evalresult.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	track := a.track(r)
	track.Total++
	if r.IsScoring() {
		track.WeightedTotal += r.Criterion.ScoringWeight
	}

	if r.IsScoring() {
		a.recordElement(r)
	} else {
		a.recordInformational(r)
	}

	if r.EvalSkipped() {
		track.Skipped++
		if r.IsScoring() {
			track.WeightedSkipped += r.Criterion.ScoringWeight
		}
		a.recordSkip(r)
		if a.metrics != nil {
			a.metrics.resultsTotal.WithLabelValues(trackLabel(r), "skipped").Inc()
		}
		return
	}

	track.Processed++
	if r.IsScoring() {
		track.WeightedProcessed += r.Criterion.ScoringWeight
	}

	if r.EvalPassed() {
		track.Passed++
		if r.IsScoring() {
			track.WeightedPassed += r.Criterion.ScoringWeight
		}
		if a.metrics != nil {
			a.metrics.resultsTotal.WithLabelValues(trackLabel(r), "passed").Inc()
		}
		return
	}

	track.Failed++
	if r.IsScoring() {
		track.WeightedFailed += r.Criterion.ScoringWeight
	}
	a.recordFail(r)
	if r.IsCritical() {
		track.Critical++
		if a.metrics != nil {
			a.metrics.criticalFailed.Inc()
		}
	}
	if a.metrics != nil {
		a.metrics.resultsTotal.WithLabelValues(trackLabel(r), "failed").Inc()
	}
}

func (a *Aggregator) track(r *evalresult.Result) *TrackCounts {
	if r.IsScoring() {
		return &a.Scoring
	}
	return &a.Informational
}

func trackLabel(r *evalresult.Result) string {
	if r.IsScoring() {
		return "scoring"
	}
	return "informational"
}

func (a *Aggregator) recordElement(r *evalresult.Result) {
	key := fmt.Sprintf("%s.%d", r.ClassMnemonic, r.ElementSequence)
	e, ok := a.elements[key]
	if !ok {
		e = &ElementEntry{ClassMnemonic: r.ClassMnemonic, ElementSequence: r.ElementSequence}
		a.elements[key] = e
	}
	applyTrack(&e.TrackCounts, r)
}

func (a *Aggregator) recordInformational(r *evalresult.Result) {
	key := fmt.Sprintf("%s|%s", r.EntityMnemonic, r.Criterion.SAMMnemonic)
	e, ok := a.informationals[key]
	if !ok {
		e = &InformationalEntry{EntityMnemonic: r.EntityMnemonic, SAMMnemonic: r.Criterion.SAMMnemonic, ClassMnemonic: r.ClassMnemonic}
		a.informationals[key] = e
	}
	applyTrack(&e.TrackCounts, r)
}

// applyTrack mirrors the top-level scalar bookkeeping onto a keyed
// entry's own TrackCounts, so ElementDict/InformationalDict entries
// carry the same per-bucket shape as the overall track totals.
func applyTrack(t *TrackCounts, r *evalresult.Result) {
	t.Total++
	if r.IsScoring() {
		t.WeightedTotal += r.Criterion.ScoringWeight
	}
	if r.EvalSkipped() {
		t.Skipped++
		if r.IsScoring() {
			t.WeightedSkipped += r.Criterion.ScoringWeight
		}
		return
	}
	t.Processed++
	if r.IsScoring() {
		t.WeightedProcessed += r.Criterion.ScoringWeight
	}
	if r.EvalPassed() {
		t.Passed++
		if r.IsScoring() {
			t.WeightedPassed += r.Criterion.ScoringWeight
		}
		return
	}
	t.Failed++
	if r.IsScoring() {
		t.WeightedFailed += r.Criterion.ScoringWeight
	}
	if r.IsCritical() {
		t.Critical++
	}
}

func (a *Aggregator) recordSkip(r *evalresult.Result) {
	key := fmt.Sprintf("%s|%s|%s", r.EntityMnemonic, r.Criterion.SAMMnemonic, r.SkipSAM)
	e, ok := a.skips[key]
	if !ok {
		e = &SkipEntry{EntityMnemonic: r.EntityMnemonic, SAMMnemonic: r.Criterion.SAMMnemonic, SkipSAM: r.SkipSAM}
		a.skips[key] = e
	}
	e.SkipCount++
}

func (a *Aggregator) recordFail(r *evalresult.Result) {
	key := fmt.Sprintf("%s|%s|%s", r.EntityMnemonic, r.Criterion.SAMMnemonic, r.FailSAM)
	e, ok := a.fails[key]
	if !ok {
		e = &FailEntry{EntityMnemonic: r.EntityMnemonic, SAMMnemonic: r.Criterion.SAMMnemonic, FailSAM: r.FailSAM}
		a.fails[key] = e
	}
	e.FailCount++

	if r.IsCritical() {
		ce, ok := a.criticalFails[key]
		if !ok {
			ce = &FailEntry{EntityMnemonic: r.EntityMnemonic, SAMMnemonic: r.Criterion.SAMMnemonic, FailSAM: r.FailSAM}
			a.criticalFails[key] = ce
		}
		ce.CriticalCount++
	}
}

// Elements, Skips, Fails, CriticalFails and Informationals return
// snapshots of the keyed dictionaries for the projector (C8).
func (a *Aggregator) Elements() map[string]*ElementEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneMap(a.elements)
}

func (a *Aggregator) Skips() map[string]*SkipEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneMap(a.skips)
}

func (a *Aggregator) Fails() map[string]*FailEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneMap(a.fails)
}

func (a *Aggregator) CriticalFails() map[string]*FailEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneMap(a.criticalFails)
}

func (a *Aggregator) Informationals() map[string]*InformationalEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneMap(a.informationals)
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
