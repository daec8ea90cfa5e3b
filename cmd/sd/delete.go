package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/eventbus"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/ui"
)

var deleteKeepFile bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record, its sync mappings, and its spec file",
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
		if err := p.store.DeleteRecord(ctx, record.ID); err != nil {
			return err
		}

		if !deleteKeepFile {
			path := specfile.Path(p.specsDir, record.ID)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "%s could not remove %s: %v\n", ui.RenderWarn(ui.IconWarn), path, err)
			}
		}

		_, _ = p.bus().Dispatch(ctx, &eventbus.Event{
			Type:     eventbus.EventRecordDeleted,
			RecordID: record.ID,
			Name:     record.Name,
			OldPhase: record.Phase,
		})

		if jsonOutput {
			outputJSON(map[string]string{"deleted": record.ID})
			return nil
		}
		fmt.Printf("%s Deleted %s: %s\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(record.ID), record.Name)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteKeepFile, "keep-file", false, "Keep the Markdown file")
	rootCmd.AddCommand(deleteCmd)
}
