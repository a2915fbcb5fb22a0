// Package evaltree builds the EvaluationItem tree (C3): the zip of the
// entity model with the concrete message tree, root → class →
// element-instances → attributes, per spec.md §4.3.
package evaltree

import (
	"fmt"
	"sort"

	"github.com/aks8m/piqi-eval/pkg/evalresult"
	"github.com/aks8m/piqi-eval/pkg/message"
	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/refdata"
)

// ItemType mirrors refdata.EntityType, clamped per spec.md §3.
type ItemType = refdata.EntityType

// Item is one node of the evaluation tree: an entity zipped with its
// (possibly absent) message item.
//
// Plan holds one *evalresult.Result per criterion bound to the item's
// entity, in ascending (samMnemonic, sequence) order (spec.md §5's
// dispatch ordering), whether or not it has been finalized yet. The
// scheduler mutates each Result's EvalResult/Reason/etc. in place as it
// finalizes slots; CriteriaResults and FullResults are read afterward,
// not stored, so they always reflect each slot's latest state.
type Item struct {
	Key             string
	Entity          *refdata.Entity
	MessageItem     *message.Item
	ItemType        ItemType
	RootMnemonic    string
	ClassMnemonic   string
	ElementMnemonic string
	ElementSequence int // 0 when the item is not under an element instance
	Parent          *Item
	Children        []*Item
	ChildrenByKey   map[string]*Item

	Plan      []*evalresult.Result
	planByKey map[string]*evalresult.Result
}

func newItem(parent *Item, entity *refdata.Entity, msgItem *message.Item, key string) *Item {
	return &Item{
		Key:           key,
		Entity:        entity,
		MessageItem:   msgItem,
		ItemType:      entity.EntityType,
		Parent:        parent,
		ChildrenByKey: make(map[string]*Item),
		planByKey:     make(map[string]*evalresult.Result),
	}
}

// AddPlanSlot appends a pending result to the item's plan, keyed for
// ConditionalOn/DependentOn resolution. Callers (the planner) must add
// slots in ascending (samMnemonic, sequence) order.
func (it *Item) AddPlanSlot(r *evalresult.Result) {
	it.Plan = append(it.Plan, r)
	it.planByKey[r.Key] = r
}

// PlanSlot resolves a criterion's result by its (samMnemonic, sequence)
// key, for conditional/dependent reference resolution within this item.
func (it *Item) PlanSlot(key string) (*evalresult.Result, bool) {
	r, ok := it.planByKey[key]
	return r, ok
}

// CriteriaResults returns the item's primary, scoreable results: every
// plan slot that is not a reference-duplicate (IsConditional/IsDependent),
// per Result.Contributes. A criterion that carries its own ConditionalOn
// or DependentOn reference is still included, whatever its final state.
func (it *Item) CriteriaResults() map[string]*evalresult.Result {
	out := make(map[string]*evalresult.Result, len(it.Plan))
	for _, r := range it.Plan {
		if r.Contributes() {
			out[r.Key] = r
		}
	}
	return out
}

// FullResults returns CriteriaResults plus any reference-duplicate slot
// (IsConditional/IsDependent) that actually ran rather than being gated
// to Skipped, for display purposes. It never feeds aggregation; only
// CriteriaResults does. The current planner (C4) never materializes
// reference-duplicate slots, so today FullResults and CriteriaResults
// coincide; this stays distinct for the day a planner does.
func (it *Item) FullResults() map[string]*evalresult.Result {
	out := make(map[string]*evalresult.Result, len(it.Plan))
	for _, r := range it.Plan {
		if r.Contributes() || !r.EvalSkipped() {
			out[r.Key] = r
		}
	}
	return out
}

func (it *Item) addChild(child *Item) {
	it.Children = append(it.Children, child)
	it.ChildrenByKey[child.Entity.Mnemonic] = child
}

// Build zips the entity model rooted at idx.Root() with msgTree into the
// evaluation tree, per spec.md §4.3's four-step algorithm.
func Build(idx *refdata.Index, msgTree *message.Tree) (*Item, error) {
	rootEntity := idx.Root()
	root := newItem(nil, rootEntity, msgTree.RootItem, rootEntity.Mnemonic)
	root.RootMnemonic = rootEntity.Mnemonic
	seen := map[string]bool{root.Key: true}

	for _, class := range idx.ClassEntities() {
		var classMsgItem *message.Item
		if msgTree.RootItem != nil {
			classMsgItem = msgTree.RootItem.Attributes[class.Mnemonic]
		}

		classKey := fmt.Sprintf("%s.%s", root.Key, class.Mnemonic)
		classItem := newItem(root, class, classMsgItem, classKey)
		classItem.RootMnemonic = root.RootMnemonic
		classItem.ClassMnemonic = class.Mnemonic
		if err := registerKey(seen, classItem.Key); err != nil {
			return nil, err
		}
		root.addChild(classItem)

		if classMsgItem == nil || len(classMsgItem.Elements) == 0 {
			continue
		}

		elementTemplate := class.FirstChild()
		if elementTemplate == nil {
			continue
		}

		instances := make([]*message.Item, len(classMsgItem.Elements))
		copy(instances, classMsgItem.Elements)
		sort.Slice(instances, func(i, j int) bool { return instances[i].Sequence < instances[j].Sequence })

		for _, instance := range instances {
			elemKey := fmt.Sprintf("%s.%d", classItem.Key, instance.Sequence)
			elemItem := newItem(classItem, elementTemplate, instance, elemKey)
			elemItem.RootMnemonic = root.RootMnemonic
			elemItem.ClassMnemonic = class.Mnemonic
			elemItem.ElementMnemonic = elementTemplate.Mnemonic
			elemItem.ElementSequence = instance.Sequence
			if err := registerKey(seen, elemItem.Key); err != nil {
				return nil, err
			}
			classItem.addChild(elemItem)

			attrs := make([]*refdata.Entity, len(elementTemplate.Children))
			copy(attrs, elementTemplate.Children)
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })

			for _, attr := range attrs {
				var attrMsgItem *message.Item
				if instance != nil {
					attrMsgItem = instance.Attributes[attr.Mnemonic]
				}
				attrKey := fmt.Sprintf("%s.%s", elemItem.Key, attr.Mnemonic)
				attrItem := newItem(elemItem, attr, attrMsgItem, attrKey)
				attrItem.RootMnemonic = root.RootMnemonic
				attrItem.ClassMnemonic = class.Mnemonic
				attrItem.ElementMnemonic = elementTemplate.Mnemonic
				attrItem.ElementSequence = instance.Sequence
				if err := registerKey(seen, attrItem.Key); err != nil {
					return nil, err
				}
				elemItem.addChild(attrItem)
			}
		}
	}

	return root, nil
}

func registerKey(seen map[string]bool, key string) error {
	if seen[key] {
		return pierr.InvalidMessage("duplicate evaluation item key %q", key)
	}
	seen[key] = true
	return nil
}

// Walk visits every item in the tree, root first, depth first, in child
// order. It is used by components (e.g. the planner) that don't need
// post-order discipline.
func Walk(root *Item, visit func(*Item)) {
	visit(root)
	for _, child := range root.Children {
		Walk(child, visit)
	}
}

// WalkPostOrder visits every item's children before the item itself, the
// discipline the scheduler requires (spec.md §5): attributes before their
// owning element, elements before their class, classes before the root.
func WalkPostOrder(root *Item, visit func(*Item)) {
	for _, child := range root.Children {
		WalkPostOrder(child, visit)
	}
	visit(root)
}
