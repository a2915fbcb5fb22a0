package sam

import (
	"errors"
	"testing"

	"github.com/aks8m/piqi-eval/pkg/fhirclient"
	"github.com/aks8m/piqi-eval/pkg/knowledgeclient"
	"github.com/aks8m/piqi-eval/pkg/pierr"
)

func TestRegistryResolveUnknownMnemonicIsInvalidRubric(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unregistered mnemonic")
	}
	if !errors.Is(err, pierr.ErrInvalidRubric) {
		t.Fatalf("expected an InvalidRubric error, got %v", err)
	}
}

func TestRegistryResolveReturnsRegisteredMeasure(t *testing.T) {
	r := NewRegistry()
	r.Register(MnemonicElementIsClean, ElementIsClean{})

	measure, err := r.Resolve(MnemonicElementIsClean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := measure.(ElementIsClean); !ok {
		t.Fatalf("got %T, want ElementIsClean", measure)
	}
}

func TestNewDefaultRegistryCarriesFullCatalog(t *testing.T) {
	fhir := fhirclient.New(fhirclient.DefaultConfig("http://unused"))
	knowledge := knowledgeclient.New(knowledgeclient.DefaultConfig("http://unused"))
	r := NewDefaultRegistry(fhir, knowledge)

	for _, mnemonic := range []string{
		MnemonicElementIsClean,
		MnemonicAttributeIsPopulated,
		MnemonicCodeSystemInteroperable,
		MnemonicReferenceDisplayPopulated,
		MnemonicValueSetMember,
		MnemonicLabResultPlausible,
		MnemonicLabDevicePlausible,
	} {
		if _, err := r.Resolve(mnemonic); err != nil {
			t.Errorf("expected %q to be registered: %v", mnemonic, err)
		}
	}

	if len(r.Mnemonics()) != 7 {
		t.Fatalf("expected 7 mnemonics, got %d", len(r.Mnemonics()))
	}
}
