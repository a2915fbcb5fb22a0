// Package refdata implements the frozen, immutable reference-data index
// (C1): lookup from mnemonic to entity, code system, value set, rubric and
// SAM descriptor. Once Build returns an Index, nothing in this package
// mutates it again.
package refdata

// EntityType clamps an Entity (and, downstream, an EvaluationItem) to one
// of the four shapes the model recognizes.
type EntityType int

const (
	EntityRoot EntityType = iota
	EntityClass
	EntityElement
	EntityAttribute
)

func (t EntityType) String() string {
	switch t {
	case EntityRoot:
		return "Root"
	case EntityClass:
		return "Class"
	case EntityElement:
		return "Element"
	case EntityAttribute:
		return "Attribute"
	default:
		return "Unknown"
	}
}

// Entity is one node of the declarative entity model. Element entities are
// templates: in a concrete message an element may appear 0..N times (the
// element sequence), but there is exactly one Entity template per element
// mnemonic.
type Entity struct {
	Mnemonic   string   `yaml:"mnemonic" json:"mnemonic" validate:"required"`
	Name       string   `yaml:"name" json:"name" validate:"required"`
	FieldName  string   `yaml:"fieldName" json:"fieldName"`
	EntityType EntityType
	Children   []*Entity
}

// FirstChild returns the first child entity, or nil for a childless entity.
// Used by the evaluation tree builder to resolve an element template from
// its owning class.
func (e *Entity) FirstChild() *Entity {
	if len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// CodeSystem is a named, versioned coding system (e.g. LOINC, SNOMED CT).
// It is addressable by either its Mnemonic or its canonical URI; both must
// resolve to the same identity.
type CodeSystem struct {
	Mnemonic string `yaml:"mnemonic" json:"mnemonic" validate:"required"`
	URI      string `yaml:"uri" json:"uri" validate:"required"`
	Name     string `yaml:"name" json:"name"`
}

// Coding is one (system, code) pair, optionally carrying a display string
// populated by a terminology SAM.
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
	Valid   bool   `json:"valid,omitempty"`
}

// ValueSet is a named, expandable set of codings.
type ValueSet struct {
	Mnemonic   string   `yaml:"mnemonic" json:"mnemonic" validate:"required"`
	Name       string   `yaml:"name" json:"name"`
	Expansion  []Coding `yaml:"expansion" json:"expansion"`
}

// Contains reports whether the value set's expansion includes the coding,
// comparing on (system, code) only.
func (vs *ValueSet) Contains(c Coding) bool {
	for _, member := range vs.Expansion {
		if member.System == c.System && member.Code == c.Code {
			return true
		}
	}
	return false
}

// SAMDescriptor names a SAM implementation for display purposes (the
// EvaluationCriterion.SAMNameOverride fallback from spec.md §3).
type SAMDescriptor struct {
	Mnemonic string `yaml:"mnemonic" json:"mnemonic" validate:"required"`
	Name     string `yaml:"name" json:"name" validate:"required"`
}
