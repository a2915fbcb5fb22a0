package refdata

import (
	"github.com/aks8m/piqi-eval/pkg/pierr"
	"github.com/aks8m/piqi-eval/pkg/rubric"
)

// Bundle is the raw, as-loaded reference-data document: spec.md §6's
// "Reference data JSON" shape. Build freezes a Bundle into an Index.
type Bundle struct {
	ModelLibrary      []*Entity               `yaml:"modelLibrary" json:"modelLibrary"`
	CodeSystemLibrary []CodeSystem            `yaml:"codeSystemLibrary" json:"codeSystemLibrary"`
	ValueSetLibrary   []ValueSet              `yaml:"valueSetLibrary" json:"valueSetLibrary"`
	RubricLibrary     []rubric.Document       `yaml:"rubricLibrary" json:"rubricLibrary"`
	SAMDescriptors    []SAMDescriptor         `yaml:"samDescriptors" json:"samDescriptors"`
}

// Index is the frozen, read-only lookup surface C1 exposes. It is safe
// for concurrent reads from multiple goroutines once Build returns it;
// nothing in this package mutates an Index afterward.
type Index struct {
	root           *Entity
	entitiesByMnem map[string]*Entity
	codeSysByMnem  map[string]*CodeSystem
	codeSysByURI   map[string]*CodeSystem
	valueSets      map[string]*ValueSet
	rubrics        map[string]*rubric.Document
	samDescriptors map[string]*SAMDescriptor
}

// Build walks a Bundle once, validates referential integrity, and returns
// a frozen Index. It never mutates the Bundle's slices afterward; callers
// may discard the Bundle once Build returns.
func Build(b *Bundle) (*Index, error) {
	idx := &Index{
		entitiesByMnem: make(map[string]*Entity),
		codeSysByMnem:  make(map[string]*CodeSystem),
		codeSysByURI:   make(map[string]*CodeSystem),
		valueSets:      make(map[string]*ValueSet),
		rubrics:        make(map[string]*rubric.Document),
		samDescriptors: make(map[string]*SAMDescriptor),
	}

	for _, e := range b.ModelLibrary {
		if err := idx.indexEntity(e); err != nil {
			return nil, err
		}
		if e.EntityType == EntityRoot {
			if idx.root != nil {
				return nil, pierr.InvalidReferenceData("model library declares more than one root entity (%q and %q)", idx.root.Mnemonic, e.Mnemonic)
			}
			idx.root = e
		}
	}
	if idx.root == nil {
		return nil, pierr.InvalidReferenceData("model library has no root entity")
	}

	for i := range b.CodeSystemLibrary {
		cs := &b.CodeSystemLibrary[i]
		if cs.Mnemonic == "" || cs.URI == "" {
			return nil, pierr.InvalidReferenceData("code system at index %d is missing mnemonic or uri", i)
		}
		if _, exists := idx.codeSysByMnem[cs.Mnemonic]; exists {
			return nil, pierr.InvalidReferenceData("duplicate code system mnemonic %q", cs.Mnemonic)
		}
		idx.codeSysByMnem[cs.Mnemonic] = cs
		idx.codeSysByURI[cs.URI] = cs
	}

	for i := range b.ValueSetLibrary {
		vs := &b.ValueSetLibrary[i]
		if vs.Mnemonic == "" {
			return nil, pierr.InvalidReferenceData("value set at index %d is missing mnemonic", i)
		}
		if _, exists := idx.valueSets[vs.Mnemonic]; exists {
			return nil, pierr.InvalidReferenceData("duplicate value set mnemonic %q", vs.Mnemonic)
		}
		idx.valueSets[vs.Mnemonic] = vs
	}

	for i := range b.RubricLibrary {
		r := &b.RubricLibrary[i]
		if r.Mnemonic == "" {
			return nil, pierr.InvalidReferenceData("rubric at index %d is missing mnemonic", i)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		idx.rubrics[r.Mnemonic] = r
	}

	for i := range b.SAMDescriptors {
		d := &b.SAMDescriptors[i]
		if d.Mnemonic == "" {
			return nil, pierr.InvalidReferenceData("sam descriptor at index %d is missing mnemonic", i)
		}
		idx.samDescriptors[d.Mnemonic] = d
	}

	return idx, nil
}

func (idx *Index) indexEntity(e *Entity) error {
	if e.Mnemonic == "" {
		return pierr.InvalidReferenceData("entity %q is missing mnemonic", e.Name)
	}
	if _, exists := idx.entitiesByMnem[e.Mnemonic]; exists {
		return pierr.InvalidReferenceData("duplicate entity mnemonic %q", e.Mnemonic)
	}
	idx.entitiesByMnem[e.Mnemonic] = e
	for _, child := range e.Children {
		if err := idx.indexEntity(child); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the single root entity of the model.
func (idx *Index) Root() *Entity {
	return idx.root
}

// GetEntity resolves an entity by mnemonic.
func (idx *Index) GetEntity(mnemonic string) (*Entity, bool) {
	e, ok := idx.entitiesByMnem[mnemonic]
	return e, ok
}

// GetCodeSystem resolves a code system by either mnemonic or canonical
// URI; both forms return the same *CodeSystem identity, per spec.md §4.1.
func (idx *Index) GetCodeSystem(mnemonicOrURI string) (*CodeSystem, bool) {
	if cs, ok := idx.codeSysByMnem[mnemonicOrURI]; ok {
		return cs, true
	}
	cs, ok := idx.codeSysByURI[mnemonicOrURI]
	return cs, ok
}

// GetValueSet resolves a value set by mnemonic.
func (idx *Index) GetValueSet(mnemonic string) (*ValueSet, bool) {
	vs, ok := idx.valueSets[mnemonic]
	return vs, ok
}

// GetRubric resolves a named rubric by mnemonic.
func (idx *Index) GetRubric(mnemonic string) (*rubric.Document, bool) {
	r, ok := idx.rubrics[mnemonic]
	return r, ok
}

// GetSAMDescriptor resolves a SAM's display name by mnemonic.
func (idx *Index) GetSAMDescriptor(mnemonic string) (*SAMDescriptor, bool) {
	d, ok := idx.samDescriptors[mnemonic]
	return d, ok
}

// ClassEntities returns the root's direct children (the data classes),
// ordered by entity name per spec.md §4.3 step 2.
func (idx *Index) ClassEntities() []*Entity {
	classes := make([]*Entity, len(idx.root.Children))
	copy(classes, idx.root.Children)
	sortEntitiesByName(classes)
	return classes
}

func sortEntitiesByName(entities []*Entity) {
	// insertion sort: class/attribute counts per message are small and this
	// keeps the ordering stable without importing sort for a handful of items.
	for i := 1; i < len(entities); i++ {
		j := i
		for j > 0 && entities[j-1].Name > entities[j].Name {
			entities[j-1], entities[j] = entities[j], entities[j-1]
			j--
		}
	}
}
