// Package rubric defines the declarative rubric document shape: named
// bundles of EvaluationCriteria binding SAMs to entities, per spec.md §3
// and §6.
package rubric

import (
	"fmt"

	"github.com/aks8m/piqi-eval/pkg/pierr"
)

// ScoringEffect distinguishes criteria that contribute to the PIQI score
// from criteria that are reported but not scored.
type ScoringEffect int

const (
	Scoring ScoringEffect = iota
	Informational
)

func (e ScoringEffect) String() string {
	if e == Informational {
		return "Informational"
	}
	return "Scoring"
}

// CriterionRef names another criterion by (samMnemonic, sequence), the
// wire shape spec.md §6 uses for conditionalOn/dependentOn.
type CriterionRef struct {
	SAMMnemonic string `yaml:"samMnemonic" json:"samMnemonic"`
	Sequence    int    `yaml:"sequence" json:"sequence"`
}

// EvaluationCriterion is one binding of (entity, SAM, weight,
// scoring-effect, criticality) in a rubric, per spec.md §3.
type EvaluationCriterion struct {
	Sequence             int            `yaml:"sequence" json:"sequence"`
	SAMMnemonic          string         `yaml:"samMnemonic" json:"samMnemonic" validate:"required"`
	ScoringEffect        ScoringEffect  `yaml:"scoringEffect" json:"scoringEffect"`
	ScoringWeight        int            `yaml:"scoringWeight" json:"scoringWeight" validate:"gte=0"`
	CriticalityIndicator bool           `yaml:"criticalityIndicator" json:"criticalityIndicator"`
	SAMNameOverride      string         `yaml:"samNameOverride,omitempty" json:"samNameOverride,omitempty"`
	Parameters           map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	ConditionalOn        *CriterionRef  `yaml:"conditionalOn,omitempty" json:"conditionalOn,omitempty"`
	DependentOn          *CriterionRef  `yaml:"dependentOn,omitempty" json:"dependentOn,omitempty"`
}

// Key is the (samMnemonic, sequence) composite identity used to resolve
// ConditionalOn/DependentOn references within one entity's criteria block.
func (c *EvaluationCriterion) Key() CriterionRef {
	return CriterionRef{SAMMnemonic: c.SAMMnemonic, Sequence: c.Sequence}
}

// EntityCriteria is the rubric's per-entity criteria block: every
// EvaluationCriterion binding a SAM to one entity mnemonic.
type EntityCriteria struct {
	EntityMnemonic string                `yaml:"entityMnemonic" json:"entityMnemonic" validate:"required"`
	EvaluationCriteria []EvaluationCriterion `yaml:"evaluationCriteria" json:"evaluationCriteria"`
}

// Document is one named rubric: spec.md §6's
// EvaluationProfileLibrary[].EvaluationCriteria[] wire shape.
type Document struct {
	Name                     string           `yaml:"name" json:"name"`
	Mnemonic                 string           `yaml:"mnemonic" json:"mnemonic" validate:"required"`
	EvaluationProfileLibrary []EntityCriteria `yaml:"evaluationProfileLibrary" json:"evaluationProfileLibrary"`
}

// CriteriaFor returns the criteria bound to the given entity mnemonic, or
// nil if the rubric has no block for that entity.
func (d *Document) CriteriaFor(entityMnemonic string) []EvaluationCriterion {
	for i := range d.EvaluationProfileLibrary {
		if d.EvaluationProfileLibrary[i].EntityMnemonic == entityMnemonic {
			return d.EvaluationProfileLibrary[i].EvaluationCriteria
		}
	}
	return nil
}

// ValidateAcyclic performs the static DFS spec.md §4.6 requires: the
// conditional/dependent reference graph, taken per-entity, must not
// contain a cycle. Validate runs it when refdata.Build loads a rubric
// and again at the start of every kernel Evaluate call.
func (d *Document) ValidateAcyclic() error {
	for _, block := range d.EvaluationProfileLibrary {
		byKey := make(map[CriterionRef]*EvaluationCriterion, len(block.EvaluationCriteria))
		for i := range block.EvaluationCriteria {
			c := &block.EvaluationCriteria[i]
			byKey[c.Key()] = c
		}

		const (
			white = 0
			grey  = 1
			black = 2
		)
		color := make(map[CriterionRef]int, len(byKey))

		var visit func(ref CriterionRef) error
		visit = func(ref CriterionRef) error {
			switch color[ref] {
			case black:
				return nil
			case grey:
				return pierr.InvalidRubric(
					"cyclic conditional/dependent reference at entity %q, criterion %s.%d",
					block.EntityMnemonic, ref.SAMMnemonic, ref.Sequence)
			}
			color[ref] = grey
			c, ok := byKey[ref]
			if ok {
				if c.ConditionalOn != nil {
					if err := visit(*c.ConditionalOn); err != nil {
						return err
					}
				}
				if c.DependentOn != nil {
					if err := visit(*c.DependentOn); err != nil {
						return err
					}
				}
			}
			color[ref] = black
			return nil
		}

		for i := range block.EvaluationCriteria {
			if err := visit(block.EvaluationCriteria[i].Key()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate runs structural checks beyond what struct tags can express:
// acyclic conditional/dependent graph and that every reference resolves
// to a criterion that actually exists in the same entity's block.
func (d *Document) Validate() error {
	if len(d.EvaluationProfileLibrary) == 0 {
		return pierr.InvalidRubric("rubric %q has no evaluation profiles", d.Mnemonic)
	}
	for _, block := range d.EvaluationProfileLibrary {
		byKey := make(map[CriterionRef]bool, len(block.EvaluationCriteria))
		for _, c := range block.EvaluationCriteria {
			byKey[c.Key()] = true
		}
		for _, c := range block.EvaluationCriteria {
			if c.ConditionalOn != nil && !byKey[*c.ConditionalOn] {
				return pierr.InvalidRubric(
					"entity %q criterion %s.%d has dangling conditionalOn reference %s.%d",
					block.EntityMnemonic, c.SAMMnemonic, c.Sequence,
					c.ConditionalOn.SAMMnemonic, c.ConditionalOn.Sequence)
			}
			if c.DependentOn != nil && !byKey[*c.DependentOn] {
				return pierr.InvalidRubric(
					"entity %q criterion %s.%d has dangling dependentOn reference %s.%d",
					block.EntityMnemonic, c.SAMMnemonic, c.Sequence,
					c.DependentOn.SAMMnemonic, c.DependentOn.Sequence)
			}
		}
	}
	return d.ValidateAcyclic()
}

func (r CriterionRef) String() string {
	return fmt.Sprintf("%s.%d", r.SAMMnemonic, r.Sequence)
}
