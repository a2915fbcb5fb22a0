package sam

import (
	"github.com/tidwall/gjson"

	"github.com/aks8m/piqi-eval/pkg/evaltree"
	"github.com/aks8m/piqi-eval/pkg/refdata"
)

// itemField reads one named field out of an item's literal message
// text via gjson, for SAMs that need fields the entity model doesn't
// surface (spec.md §4.2).
func itemField(item *evaltree.Item, path string) (string, bool) {
	if item.MessageItem == nil || len(item.MessageItem.MessageText) == 0 {
		return "", false
	}
	result := gjson.GetBytes(item.MessageItem.MessageText, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

// paramString reads a string parameter out of a criterion's declared
// parameters, falling back to def when absent or of the wrong type.
func paramString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// codingsFromItem extracts the (system, code) pairs out of an item's
// message text, supporting both a bare Coding object and a
// CodeableConcept's "coding" array.
func codingsFromItem(item *evaltree.Item) []refdata.Coding {
	if item.MessageItem == nil || len(item.MessageItem.MessageText) == 0 {
		return nil
	}
	text := item.MessageItem.MessageText

	if arr := gjson.GetBytes(text, "coding"); arr.Exists() && arr.IsArray() {
		var codings []refdata.Coding
		for _, entry := range arr.Array() {
			codings = append(codings, refdata.Coding{
				System: entry.Get("system").String(),
				Code:   entry.Get("code").String(),
			})
		}
		return codings
	}

	system := gjson.GetBytes(text, "system")
	code := gjson.GetBytes(text, "code")
	if system.Exists() && code.Exists() {
		return []refdata.Coding{{System: system.String(), Code: code.String()}}
	}
	return nil
}
