// Package scheduler implements the criterion planner (C4) and the
// evaluation scheduler (C6): it populates each evaluation item's plan
// from the rubric, then walks the tree post-order finalizing every
// slot, per spec.md §4.4 and §4.6.
package scheduler

import (
	"sort"

	"github.com/aks8m/piqi-eval/pkg/evalresult"
	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/rubric"
)

// Plan walks the evaluation tree and, for every item, appends one
// pending result per criterion bound to the item's entity mnemonic, in
// ascending (samMnemonic, sequence) order. It is C4: criterion
// planning is a pure, side-effect-free pass over the tree before the
// scheduler (C6) finalizes anything.
func Plan(root *evaltree.Item, doc *rubric.Document) {
	evaltree.Walk(root, func(item *evaltree.Item) {
		criteria := doc.CriteriaFor(item.Entity.Mnemonic)
		if len(criteria) == 0 {
			return
		}

		ordered := make([]rubric.EvaluationCriterion, len(criteria))
		copy(ordered, criteria)
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].SAMMnemonic != ordered[j].SAMMnemonic {
				return ordered[i].SAMMnemonic < ordered[j].SAMMnemonic
			}
			return ordered[i].Sequence < ordered[j].Sequence
		})

		for _, criterion := range ordered {
			// A criterion that gates or depends on another criterion is
			// still the primary, contributing slot for itself: per
			// spec.md §8 scenario #1, a conditional criterion advances
			// the counters when its gate passes and is recorded (not
			// silently dropped) as Skipped when its gate fails.
			// IsConditional/IsDependent are reserved for a materialized
			// reference-duplicate slot, never for the gated/dependent
			// criterion's own result; this planner never materializes
			// such duplicates, so every slot it appends contributes.
			result := evalresult.NewPending(
				item.Key,
				item.Entity.Mnemonic,
				item.ClassMnemonic,
				item.ElementSequence,
				criterion,
				false,
				false,
			)
			item.AddPlanSlot(result)
		}
	})
}
