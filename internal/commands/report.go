package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aks8m/piqi-eval/internal/reporting"
	"github.com/aks8m/piqi-eval/pkg/scorecard"
)

// ReportCmd re-renders a previously written scorecard trace file as a
// styled report, without re-running the evaluation.
type ReportCmd struct {
	TraceFile string `help:"Path to a scorecard trace JSON file" required:"" type:"existingfile"`
	Verbose   bool   `help:"Show informational results alongside the class table" short:"v"`
}

// Run executes the report command.
func (r *ReportCmd) Run(globals *Globals) error {
	data, err := os.ReadFile(r.TraceFile)
	if err != nil {
		return fmt.Errorf("failed to read trace file: %w", err)
	}

	var sc scorecard.Scorecard
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("failed to parse trace file: %w", err)
	}

	return reporting.PrintStyledReport(&sc, r.Verbose)
}
