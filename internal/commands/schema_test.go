package commands

import "testing"

func TestSchemaCmdRunSucceeds(t *testing.T) {
	cmd := &SchemaCmd{}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
