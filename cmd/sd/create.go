package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/eventbus"
	"github.com/sddlab/specd/internal/idgen"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

// idPrefix for record identifiers.
const idPrefix = "sp"

var (
	createDescription string
	createBranch      string
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new specification record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		now := time.Now()
		record := &types.Record{
			Name:        args[0],
			Description: createDescription,
			Phase:       types.PhaseRequirements,
			Branch:      createBranch,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		// Hash-based IDs can collide; retry with a new nonce.
		for nonce := 0; ; nonce++ {
			record.ID = idgen.NewRecordID(idPrefix, record.Name, now, nonce)
			err = p.store.CreateRecord(ctx, record)
			if err == nil {
				break
			}
			if errors.Is(err, sqlite.ErrConflict) && nonce < 10 {
				continue
			}
			return err
		}

		if err := specfile.WriteDurable(specfile.Path(p.specsDir, record.ID), specfile.New(record)); err != nil {
			return err
		}

		_, _ = p.bus().Dispatch(ctx, &eventbus.Event{
			Type:     eventbus.EventRecordCreated,
			RecordID: record.ID,
			Name:     record.Name,
			NewPhase: record.Phase,
		})

		if jsonOutput {
			outputJSON(record)
			return nil
		}
		fmt.Printf("%s Created %s: %s\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(record.ID), record.Name)
		fmt.Printf("  %s\n", ui.RenderMuted(specfile.Path(p.specsDir, record.ID)))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Record description")
	createCmd.Flags().StringVarP(&createBranch, "branch", "b", "", "VCS branch reference")
	rootCmd.AddCommand(createCmd)
}
