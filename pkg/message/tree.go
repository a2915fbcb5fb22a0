// Package message builds the concrete MessageModelItem tree (C2) from a
// raw patient message, keyed by mnemonic/sequence and carrying each
// node's literal JSON sub-document for SAMs that need fields the entity
// model does not surface.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/refdata"
)

// Item is one node of the concrete message tree.
type Item struct {
	Key         string
	Parent      *Item
	Attributes  map[string]*Item
	Elements    []*Item // ordered element instances under a class item
	Sequence    int     // 1-based element sequence, 0 for non-element items
	MessageText json.RawMessage
	raw         map[string]any
}

// Tree is the public contract for C2: RootItem and ByKey.
type Tree struct {
	RootItem *Item
	byKey    map[string]*Item
}

// ByKey resolves any node in the tree by its composite key.
func (t *Tree) ByKey(key string) (*Item, bool) {
	item, ok := t.byKey[key]
	return item, ok
}

// Build parses raw into a Tree rooted at the reference-data root entity.
// It fails with pierr.InvalidMessage if the payload does not parse as a
// JSON object or its root mnemonic does not match the model's root.
func Build(root *refdata.Entity, raw []byte) (*Tree, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, pierr.InvalidMessage("message payload is not a JSON object: %v", err)
	}

	rootMnemonic, _ := doc["mnemonic"].(string)
	if rootMnemonic == "" {
		// Fall back to the entity's own field name, for payloads that nest
		// the root object directly under its field name instead of a
		// "mnemonic" marker key.
		if v, ok := doc[root.FieldName]; ok {
			rootMnemonic = root.Mnemonic
			if nested, isObject := v.(map[string]any); isObject {
				doc = nested
			}
		}
	}
	if rootMnemonic != root.Mnemonic {
		return nil, pierr.InvalidMessage("message root mnemonic %q does not match reference-data root %q", rootMnemonic, root.Mnemonic)
	}

	t := &Tree{byKey: make(map[string]*Item)}
	rootItem, err := t.buildItem(nil, root.Mnemonic, root.Mnemonic, doc)
	if err != nil {
		return nil, err
	}
	t.RootItem = rootItem

	for _, class := range root.Children {
		if err := t.buildClass(rootItem, class, doc); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) buildClass(parent *Item, class *refdata.Entity, parentRaw map[string]any) error {
	classRaw, _ := parentRaw[class.FieldName].(map[string]any)
	if classRaw == nil {
		if generic, ok := parentRaw[class.Mnemonic].(map[string]any); ok {
			classRaw = generic
		}
	}
	classText, _ := json.Marshal(classRaw)
	classItem, err := t.buildItem(parent, class.Mnemonic, classKey(parent, class.Mnemonic), classRaw)
	if err != nil {
		return err
	}
	classItem.MessageText = classText
	parent.Attributes[class.Mnemonic] = classItem

	if classRaw == nil {
		return nil
	}

	elementTemplate := class.FirstChild()
	if elementTemplate == nil {
		return nil
	}

	instances := extractInstances(classRaw, elementTemplate)
	for i, instRaw := range instances {
		seq := i + 1
		key := fmt.Sprintf("%s.%d", classItem.Key, seq)
		elemItem, err := t.buildItem(classItem, elementTemplate.Mnemonic, key, instRaw)
		if err != nil {
			return err
		}
		elemItem.Sequence = seq
		classItem.Elements = append(classItem.Elements, elemItem)

		for _, attr := range elementTemplate.Children {
			if err := t.buildAttribute(elemItem, attr, instRaw); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tree) buildAttribute(parent *Item, attr *refdata.Entity, parentRaw map[string]any) error {
	var attrRaw any
	if parentRaw != nil {
		if v, ok := parentRaw[attr.FieldName]; ok {
			attrRaw = v
		} else if v, ok := parentRaw[attr.Mnemonic]; ok {
			attrRaw = v
		}
	}
	text, _ := json.Marshal(attrRaw)
	key := fmt.Sprintf("%s.%s", parent.Key, attr.Mnemonic)
	item, err := t.buildItem(parent, attr.Mnemonic, key, nil)
	if err != nil {
		return err
	}
	item.MessageText = text
	if attrRaw == nil {
		item.MessageText = nil
	}
	parent.Attributes[attr.Mnemonic] = item
	return nil
}

func (t *Tree) buildItem(parent *Item, mnemonic, key string, raw map[string]any) (*Item, error) {
	if _, exists := t.byKey[key]; exists {
		return nil, pierr.InvalidMessage("duplicate message item key %q", key)
	}
	text, _ := json.Marshal(raw)
	item := &Item{
		Key:         key,
		Parent:      parent,
		Attributes:  make(map[string]*Item),
		MessageText: text,
		raw:         raw,
	}
	t.byKey[key] = item
	return item, nil
}

func classKey(parent *Item, mnemonic string) string {
	if parent == nil {
		return mnemonic
	}
	return fmt.Sprintf("%s.%s", parent.Key, mnemonic)
}

// extractInstances pulls the ordered list of element instances out of a
// class's raw payload. Elements are conventionally stored under the
// element's plural field name or mnemonic as a JSON array; a single
// object (not an array) is treated as exactly one instance.
func extractInstances(classRaw map[string]any, elementTemplate *refdata.Entity) []map[string]any {
	var raw any
	if v, ok := classRaw[elementTemplate.FieldName]; ok {
		raw = v
	} else if v, ok := classRaw[elementTemplate.Mnemonic]; ok {
		raw = v
	}

	switch v := raw.(type) {
	case []any:
		instances := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				instances = append(instances, m)
			}
		}
		return instances
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}
