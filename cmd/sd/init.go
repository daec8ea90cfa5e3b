package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/config"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a specd project in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		specdDir, err := config.Init(cwd)
		if err != nil {
			return err
		}

		// Create the database up front so the first command after init
		// does not pay schema-creation latency.
		store, err := sqlite.New(cmd.Context(), config.DatabasePath(specdDir))
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer func() { _ = store.Close() }()

		if jsonOutput {
			outputJSON(map[string]string{
				"specd_dir": specdDir,
				"specs_dir": config.SpecsDir(specdDir),
			})
			return nil
		}
		fmt.Printf("%s Initialized project in %s\n", ui.RenderPass(ui.IconPass), specdDir)
		fmt.Printf("  Spec files: %s\n", ui.RenderMuted(config.SpecsDir(specdDir)))
		fmt.Printf("  Configure GitHub sync in %s\n", ui.RenderMuted(config.ConfigPath(specdDir)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
