// Command piqi-eval runs the PIQI data-quality evaluation engine
// against a reference-data bundle, a rubric, and a patient message.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/aks8m/piqi-eval/internal/commands"
	"github.com/aks8m/piqi-eval/internal/help"
)

var cli struct {
	commands.Globals

	Run      commands.RunCmd      `cmd:"" help:"Evaluate a message against a rubric and print a scorecard."`
	Validate commands.ValidateCmd `cmd:"" help:"Validate a reference-data bundle's schema and referential integrity."`
	Schema   commands.SchemaCmd   `cmd:"" help:"Print the reference-data bundle JSON Schema."`
	Report   commands.ReportCmd   `cmd:"" help:"Re-render a saved scorecard trace as a styled report."`
}

func main() {
	styles := help.DefaultStyles()

	ctx := kong.Parse(&cli,
		kong.Name("piqi-eval"),
		kong.Description("PIQI data-quality evaluation engine"),
		kong.Help(help.Printer(styles)),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.Error.Render("Error:"), err)
		os.Exit(1)
	}
}
