package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/audit"
	"github.com/sddlab/specd/internal/ui"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare spec files against the database and report drift",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		report, err := audit.New(p.store).Audit(ctx, p.specsDir)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(report)
			return nil
		}
		printAuditReport(report)
		return nil
	},
}

func printAuditReport(report *audit.Report) {
	fmt.Println(ui.RenderHeader("Audit Report"))

	fmt.Printf("%s Synced: %d\n", ui.RenderPass(ui.IconPass), len(report.Synced))
	for _, id := range report.Synced {
		fmt.Printf("    %s\n", ui.RenderMuted(id))
	}

	fmt.Printf("%s Mismatched: %d\n", ui.RenderFail(ui.IconFail), len(report.Mismatched))
	for _, m := range report.Mismatched {
		fmt.Printf("    %s\n", ui.RenderAccent(m.ID))
		for _, diff := range m.Differences {
			fmt.Printf("      %s\n", diff)
		}
	}

	fmt.Printf("%s File only: %d\n", ui.RenderWarn(ui.IconWarn), len(report.FileOnly))
	for _, id := range report.FileOnly {
		fmt.Printf("    %s\n", ui.RenderMuted(id))
	}

	fmt.Printf("%s Record only: %d\n", ui.RenderWarn(ui.IconWarn), len(report.RecordOnly))
	for _, id := range report.RecordOnly {
		fmt.Printf("    %s\n", ui.RenderMuted(id))
	}

	fmt.Printf("\nSync rate: %d%%\n", report.SyncRate)
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
