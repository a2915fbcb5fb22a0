package sam

import (
	"context"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
)

// ElementIsClean is spec.md §4.5's worked structural example: it
// passes iff none of item's children have a failed criterion result.
// It must run after every child item's own criteria have finalized,
// which the scheduler's post-order traversal guarantees.
type ElementIsClean struct{}

func (ElementIsClean) Evaluate(_ context.Context, item *evaltree.Item, _ map[string]any) Response {
	failed := 0
	for _, child := range item.Children {
		for _, r := range child.CriteriaResults() {
			if r.EvalFailed() {
				failed++
			}
		}
	}
	if failed > 0 {
		return Fail("%d child criterion result(s) failed", failed)
	}
	return Pass()
}

// AttributeIsPopulated passes iff the attribute's message item exists
// and carries non-empty message text.
type AttributeIsPopulated struct{}

func (AttributeIsPopulated) Evaluate(_ context.Context, item *evaltree.Item, _ map[string]any) Response {
	if item.MessageItem == nil {
		return Fail("attribute has no corresponding message item")
	}
	text := item.MessageItem.MessageText
	if len(text) == 0 || string(text) == "null" || string(text) == `""` {
		return Fail("attribute message text is empty")
	}
	return Pass()
}
