package commands

import (
	"fmt"

	"github.com/aks8m/piqi-eval/internal/config"
	"github.com/aks8m/piqi-eval/pkg/refdata"
)

// ValidateCmd checks a reference-data bundle for schema validity and,
// if that passes, runs refdata.Build over it: one root entity, no
// missing or duplicate mnemonics, and rubric conditional/dependent
// references that resolve and form no cycle.
type ValidateCmd struct {
	RefData string `help:"Path to reference-data bundle (YAML or JSON)" required:"" type:"path"`
}

// Run executes the validate command.
func (v *ValidateCmd) Run(globals *Globals) error {
	result, err := config.ValidateBundleFile(v.RefData)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid {
		fmt.Printf("✗ Reference data has %d schema error(s):\n\n", len(result.Errors))
		for i, verr := range result.Errors {
			if verr.Path != "" {
				fmt.Printf("%d. [%s] %s\n", i+1, verr.Path, verr.Message)
			} else {
				fmt.Printf("%d. %s\n", i+1, verr.Message)
			}
		}
		fmt.Println()
		return fmt.Errorf("validation failed")
	}

	bundle, err := config.LoadBundle(v.RefData)
	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}
	if _, err := refdata.Build(bundle); err != nil {
		fmt.Printf("✗ Reference data failed referential-integrity checks:\n\n  %v\n\n", err)
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("✓ Reference data is valid: %s\n", v.RefData)
	return nil
}
