package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

var showBody bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a record's details and sync status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		record, err := p.store.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		mappings, err := p.store.ListMappings(ctx, record.ID)
		if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"record":   record,
				"mappings": mappings,
			})
			return nil
		}

		fmt.Printf("%s %s\n", ui.RenderHeader(record.ID), record.Name)
		fmt.Printf("  Phase:   %s\n", ui.PhaseStyle(string(record.Phase)).Render(string(record.Phase)))
		if record.Description != "" {
			fmt.Printf("  About:   %s\n", record.Description)
		}
		if record.Branch != "" {
			fmt.Printf("  Branch:  %s\n", record.Branch)
		}
		fmt.Printf("  Updated: %s\n", record.UpdatedAt.Format(specfile.TimestampFormat))
		fmt.Printf("  File:    %s\n", ui.RenderMuted(specfile.Path(p.specsDir, record.ID)))

		for _, m := range mappings {
			icon := ui.RenderPass(ui.IconPass)
			if m.Status != types.SyncSuccess {
				icon = ui.RenderFail(ui.IconFail)
			}
			fmt.Printf("  %s %s → #%d (last synced %s)\n",
				icon, m.EntityType, m.RemoteNumber, m.LastSyncedAt.Format(specfile.TimestampFormat))
			if m.ErrorDetail != "" {
				fmt.Printf("    %s\n", ui.RenderFail(m.ErrorDetail))
			}
		}

		if showBody {
			content, err := os.ReadFile(specfile.Path(p.specsDir, record.ID))
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Print(ui.RenderMarkdown(string(content)))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showBody, "body", false, "Render the record's Markdown document")
	rootCmd.AddCommand(showCmd)
}
