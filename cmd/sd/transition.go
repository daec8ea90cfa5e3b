package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/phase"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

var (
	transitionDryRun bool
	transitionForce  bool
)

var transitionCmd = &cobra.Command{
	Use:   "transition <id> <phase>",
	Short: "Move a record to a new lifecycle phase",
	Long: `Move a record to a new lifecycle phase.

Gated transitions require sections in the record's Markdown file:
requirements → design needs a Requirements section, and design → tasks
needs a Design section. Use --dry-run to check without applying, or
--force to apply despite missing sections.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := types.ParsePhase(args[1])
		if err != nil {
			return err
		}

		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		controller := phase.NewController(p.store, p.bus(), p.specsDir)
		result, err := controller.Transition(ctx, args[0], target, phase.Options{
			DryRun:   transitionDryRun,
			Override: transitionForce,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(result)
			return nil
		}
		printTransition(result)
		return nil
	},
}

func printTransition(result *phase.Result) {
	arrow := fmt.Sprintf("%s → %s", result.From, result.To)
	switch {
	case result.Applied:
		fmt.Printf("%s %s: %s\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(result.RecordID), arrow)
	case result.Valid():
		fmt.Printf("%s %s: %s would apply\n", ui.RenderMuted(ui.IconSkip), ui.RenderAccent(result.RecordID), arrow)
	default:
		fmt.Printf("%s %s: %s blocked\n", ui.RenderFail(ui.IconFail), ui.RenderAccent(result.RecordID), arrow)
	}
	for _, section := range result.MissingSections {
		fmt.Printf("  %s missing section %q\n", ui.RenderWarn(ui.IconWarn), section)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("  %s %s\n", ui.RenderWarn(ui.IconWarn), warning)
	}
}

func init() {
	transitionCmd.Flags().BoolVar(&transitionDryRun, "dry-run", false, "Validate without applying")
	transitionCmd.Flags().BoolVar(&transitionForce, "force", false, "Apply even when validation fails")
	rootCmd.AddCommand(transitionCmd)
}
