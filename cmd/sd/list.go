package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

var listPhase string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List specification records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		records, err := p.store.ListRecords(ctx)
		if err != nil {
			return err
		}

		if listPhase != "" {
			phase, err := types.ParsePhase(listPhase)
			if err != nil {
				return err
			}
			filtered := records[:0]
			for _, r := range records {
				if r.Phase == phase {
					filtered = append(filtered, r)
				}
			}
			records = filtered
		}

		if jsonOutput {
			outputJSON(records)
			return nil
		}
		if len(records) == 0 {
			fmt.Println(ui.RenderMuted("No records found."))
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-16s %s\n",
				ui.RenderAccent(r.ID),
				ui.PhaseStyle(string(r.Phase)).Render(string(r.Phase)),
				r.Name)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listPhase, "phase", "", "Filter by phase")
	rootCmd.AddCommand(listCmd)
}
