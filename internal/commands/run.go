package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aks8m/piqi-eval/internal/config"
	"github.com/aks8m/piqi-eval/internal/reporting"
	"github.com/aks8m/piqi-eval/pkg/fhirclient"
	"github.com/aks8m/piqi-eval/pkg/kernel"
	"github.com/aks8m/piqi-eval/pkg/knowledgeclient"
	"github.com/aks8m/piqi-eval/pkg/refdata"
	"github.com/aks8m/piqi-eval/pkg/sam"
)

// RunCmd evaluates one message against one rubric from a reference-data
// bundle, printing a styled scorecard report.
type RunCmd struct {
	RefData  string        `help:"Path to reference-data bundle (YAML or JSON)" required:"" type:"path"`
	Rubric   string        `help:"Rubric mnemonic to evaluate against" required:""`
	Message  string        `help:"Path to the patient message to evaluate" required:"" type:"path"`
	Provider string        `help:"Data provider identifier for the scorecard header"`
	Source   string        `help:"Data source identifier for the scorecard header"`
	MsgID    string        `help:"Message identifier for the scorecard header"`
	Timeout  time.Duration `help:"Overall evaluation timeout (0 disables)" default:"30s"`
	SAMTimeout time.Duration `help:"Per-criterion SAM timeout (0 disables)" default:"5s"`
	TraceDir string        `help:"Directory to write a JSON scorecard trace" type:"path"`
	Verbose  bool          `help:"Show informational results alongside the class table" short:"v"`
}

// Run executes the run command.
func (r *RunCmd) Run(globals *Globals) error {
	bundle, err := config.LoadBundle(r.RefData)
	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}
	idx, err := refdata.Build(bundle)
	if err != nil {
		return fmt.Errorf("failed to build reference-data index: %w", err)
	}

	rawMessage, err := config.LoadMessage(r.Message)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}

	fhir := fhirclient.New(fhirclient.DefaultConfig(globals.FHIRBaseURL))
	knowledge := knowledgeclient.New(knowledgeclient.DefaultConfig(globals.KnowledgeBaseURL))
	registry := sam.NewDefaultRegistry(fhir, knowledge)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	k := kernel.New(idx, registry, r.SAMTimeout, nil, logger)

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req := kernel.Request{
		RubricMnemonic: r.Rubric,
		RawMessage:     rawMessage,
		DataProviderID: r.Provider,
		DataSourceID:   r.Source,
		MessageID:      r.MsgID,
		ProcessDate:    time.Now().Format("2006-01-02"),
	}

	sc, err := k.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if r.TraceDir != "" {
		if err := os.MkdirAll(r.TraceDir, 0o755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
		tracePath := r.TraceDir + "/" + r.MsgID + ".json"
		if err := reporting.WriteTrace(tracePath, sc); err != nil {
			log.Error().Err(err).Msg("failed to write scorecard trace")
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}

	if err := reporting.PrintStyledReport(sc, r.Verbose); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	if sc.MessageResults.CriticalFailureCount > 0 {
		return fmt.Errorf("evaluation recorded %d critical failure(s)", sc.MessageResults.CriticalFailureCount)
	}
	return nil
}
