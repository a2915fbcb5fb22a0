package commands

import (
	"fmt"

	"github.com/aks8m/piqi-eval/internal/config"
)

// SchemaCmd emits the JSON Schema for a reference-data bundle.
type SchemaCmd struct{}

// Run executes the schema command.
func (s *SchemaCmd) Run(globals *Globals) error {
	schema, err := config.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	fmt.Println(schema)
	return nil
}
