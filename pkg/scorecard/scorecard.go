// Package scorecard implements the Scorecard Projector (C8): the
// deterministic transform from aggregator state to the external
// PIQIStatResponse shape, per spec.md §4.8 and §6.
package scorecard

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/stats"
)

// ScoringFields is the denominator/numerator/score shape repeated at
// message, class, and (unweighted) informational granularity.
type ScoringFields struct {
	Denominator         int
	Numerator            int
	Score                int
	WeightedDenominator  int
	WeightedNumerator    int
	WeightedScore        int
	CriticalFailureCount int
}

// DataClassResult is one DataClassResults[] entry.
type DataClassResult struct {
	ClassName     string
	InstanceCount int
	ScoringFields
}

// InformationalResult is one InformationalResults[] entry.
type InformationalResult struct {
	EntityName    string
	EvaluationName string
	InstanceCount int
	Denominator   int
	Numerator     int
}

// InformationalGroup buckets InformationalResult entries by the data
// class they logically belong to, per spec.md §6.
type InformationalGroup struct {
	ClassName string
	Results   []InformationalResult
}

// Scorecard is PIQIStatResponse: the engine's external output shape.
type Scorecard struct {
	DataProviderID   string
	DataSourceID     string
	MessageID        string
	EvaluationRubric string
	ProcessDate      string
	Partial          bool

	MessageResults      ScoringFields
	DataClassResults    []DataClassResult
	InformationalResults []InformationalGroup
}

// Header carries the message-level identifiers the projector cannot
// derive from the aggregator alone.
type Header struct {
	DataProviderID string
	DataSourceID   string
	MessageID      string
	RubricName     string
	RubricMnemonic string
	ProcessDate    string
	Partial        bool
}

// Project is C8's deterministic transform: Header + Aggregator + Index
// (for entity display names) → Scorecard.
func Project(h Header, agg *stats.Aggregator, idx *refdata.Index) *Scorecard {
	sc := &Scorecard{
		DataProviderID:   h.DataProviderID,
		DataSourceID:     h.DataSourceID,
		MessageID:        h.MessageID,
		EvaluationRubric: rubricDisplayName(h),
		ProcessDate:      h.ProcessDate,
		Partial:          h.Partial,
		MessageResults:   scoringFieldsFrom(agg.Scoring),
	}

	sc.DataClassResults = projectClasses(agg, idx)
	sc.InformationalResults = projectInformational(agg, idx)
	return sc
}

func rubricDisplayName(h Header) string {
	if h.RubricName != "" {
		return h.RubricName
	}
	return h.RubricMnemonic
}

func scoringFieldsFrom(t stats.TrackCounts) ScoringFields {
	return ScoringFields{
		Denominator:          t.Processed,
		Numerator:            t.Passed,
		Score:                truncPercent(t.Passed, t.Processed),
		WeightedDenominator:  t.WeightedProcessed,
		WeightedNumerator:    t.WeightedPassed,
		WeightedScore:        truncPercent(t.WeightedPassed, t.WeightedProcessed),
		CriticalFailureCount: t.Critical,
	}
}

// truncPercent computes trunc(numerator/denominator*100), per spec.md
// §4.8, treating a zero denominator as a zero score rather than
// dividing by zero.
func truncPercent(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return (numerator * 100) / denominator
}

func projectClasses(agg *stats.Aggregator, idx *refdata.Index) []DataClassResult {
	byClass := make(map[string]*stats.TrackCounts)
	instances := make(map[string]map[int]bool)

	// Seed every data class with a zero state so an empty class (no
	// element instances, or all instances skipped) still reports a
	// class-level 0/0 score rather than being omitted entirely.
	for _, class := range idx.ClassEntities() {
		byClass[class.Mnemonic] = &stats.TrackCounts{}
		instances[class.Mnemonic] = make(map[int]bool)
	}

	for _, e := range agg.Elements() {
		t, ok := byClass[e.ClassMnemonic]
		if !ok {
			t = &stats.TrackCounts{}
			byClass[e.ClassMnemonic] = t
			instances[e.ClassMnemonic] = make(map[int]bool)
		}
		mergeTrack(t, e.TrackCounts)
		instances[e.ClassMnemonic][e.ElementSequence] = true
	}

	results := make([]DataClassResult, 0, len(byClass))
	for classMnemonic, t := range byClass {
		results = append(results, DataClassResult{
			ClassName:     displayName(idx, classMnemonic),
			InstanceCount: len(instances[classMnemonic]),
			ScoringFields: scoringFieldsFrom(*t),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ClassName < results[j].ClassName })
	return results
}

func mergeTrack(dst *stats.TrackCounts, src stats.TrackCounts) {
	dst.Total += src.Total
	dst.Processed += src.Processed
	dst.Skipped += src.Skipped
	dst.Passed += src.Passed
	dst.Failed += src.Failed
	dst.Critical += src.Critical
	dst.WeightedTotal += src.WeightedTotal
	dst.WeightedProcessed += src.WeightedProcessed
	dst.WeightedSkipped += src.WeightedSkipped
	dst.WeightedPassed += src.WeightedPassed
	dst.WeightedFailed += src.WeightedFailed
}

func projectInformational(agg *stats.Aggregator, idx *refdata.Index) []InformationalGroup {
	byClass := make(map[string][]InformationalResult)

	for _, e := range agg.Informationals() {
		result := InformationalResult{
			EntityName:     displayName(idx, e.EntityMnemonic),
			EvaluationName: e.SAMMnemonic,
			InstanceCount:  e.Total,
			Denominator:    e.Processed,
			Numerator:      e.Passed,
		}
		byClass[e.ClassMnemonic] = append(byClass[e.ClassMnemonic], result)
	}

	groups := make([]InformationalGroup, 0, len(byClass))
	for classMnemonic, results := range byClass {
		sort.Slice(results, func(i, j int) bool {
			if results[i].EntityName != results[j].EntityName {
				return results[i].EntityName < results[j].EntityName
			}
			return results[i].EvaluationName < results[j].EvaluationName
		})
		groups = append(groups, InformationalGroup{
			ClassName: displayName(idx, classMnemonic),
			Results:   results,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].ClassName < groups[j].ClassName })
	return groups
}

func displayName(idx *refdata.Index, mnemonic string) string {
	if e, ok := idx.GetEntity(mnemonic); ok {
		return prettify(e.Name)
	}
	return prettify(mnemonic)
}

// prettify inserts a space before each upper-case letter and
// upper-cases the first character, per spec.md §4.8.
func prettify(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := []rune(b.String())
	out[0] = unicode.ToUpper(out[0])
	return string(out)
}
