package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/status"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

var syncCreate bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize records with GitHub issues and projects",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync mappings for every record",
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

		type row struct {
			RecordID string               `json:"record_id"`
			Mappings []*types.SyncMapping `json:"mappings"`
		}
		var rows []row
		for _, r := range records {
			mappings, err := p.store.ListMappings(ctx, r.ID)
			if err != nil {
				return err
			}
			rows = append(rows, row{RecordID: r.ID, Mappings: mappings})
		}

		if jsonOutput {
			outputJSON(rows)
			return nil
		}
		for _, r := range rows {
			if len(r.Mappings) == 0 {
				fmt.Printf("%s %s %s\n", ui.RenderMuted(ui.IconSkip), ui.RenderAccent(r.RecordID), ui.RenderMuted("not linked"))
				continue
			}
			for _, m := range r.Mappings {
				icon := ui.RenderPass(ui.IconPass)
				if m.Status != types.SyncSuccess {
					icon = ui.RenderFail(ui.IconFail)
				}
				fmt.Printf("%s %s %s → #%d\n", icon, ui.RenderAccent(r.RecordID), m.EntityType, m.RemoteNumber)
				if m.ErrorDetail != "" {
					fmt.Printf("    %s\n", ui.RenderFail(m.ErrorDetail))
				}
			}
		}
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push <id>",
	Short: "Push a record to its linked GitHub issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		service, err := p.syncService()
		if err != nil {
			return err
		}
		number, err := service.SyncRecordToIssue(ctx, args[0], syncCreate)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"record_id": args[0], "issue": number})
			return nil
		}
		fmt.Printf("%s %s → issue #%d\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(args[0]), number)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull <issue-number>",
	Short: "Pull issue state back into its linked record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		number, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid issue number %q", args[0])
		}

		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		service, err := p.syncService()
		if err != nil {
			return err
		}
		recordID, err := service.SyncIssueToRecord(ctx, number)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"record_id": recordID, "issue": number})
			return nil
		}
		fmt.Printf("%s issue #%d → %s\n", ui.RenderPass(ui.IconPass), number, ui.RenderAccent(recordID))
		return nil
	},
}

var syncProjectCmd = &cobra.Command{
	Use:   "project <id>",
	Short: "Add a record's issue to the configured project and set its status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		if p.cfg.GitHub.Project == 0 {
			return fmt.Errorf("github.project not configured (edit your config)")
		}

		service, err := p.syncService()
		if err != nil {
			return err
		}
		result, err := service.AddRecordToProject(ctx, args[0], p.cfg.GitHub.Project)
		if err != nil {
			return err
		}
		warnings := result.Warnings

		// Best-effort status update on the board. The item is already
		// added, so status failures are reported, not fatal.
		statusName, statusWarnings := updateProjectStatus(cmd, p, args[0], result.ItemID)
		warnings = append(warnings, statusWarnings...)

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"record_id": args[0],
				"item_id":   result.ItemID,
				"status":    statusName,
				"warnings":  warnings,
			})
			return nil
		}
		fmt.Printf("%s %s added to project %d\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(args[0]), p.cfg.GitHub.Project)
		if statusName != "" {
			fmt.Printf("  status: %s\n", statusName)
		}
		for _, warning := range warnings {
			fmt.Printf("  %s %s\n", ui.RenderWarn(ui.IconWarn), warning)
		}
		return nil
	},
}

// updateProjectStatus maps the record's phase onto the project's status
// field and verifies the write took effect.
func updateProjectStatus(cmd *cobra.Command, p *project, recordID, itemID string) (string, []string) {
	ctx := cmd.Context()

	record, err := p.store.GetRecord(ctx, recordID)
	if err != nil {
		return "", []string{fmt.Sprintf("status update skipped: %v", err)}
	}
	statusCfg, err := p.cfg.StatusConfig()
	if err != nil {
		return "", []string{fmt.Sprintf("status update skipped: %v", err)}
	}
	client, err := p.githubClient()
	if err != nil {
		return "", []string{fmt.Sprintf("status update skipped: %v", err)}
	}
	projectID, err := client.ResolveProjectID(ctx, p.cfg.GitHub.Project)
	if err != nil {
		return "", []string{fmt.Sprintf("status update skipped: %v", err)}
	}

	resolver := status.NewResolver(client, projectID, statusCfg)
	resolution, err := resolver.ResolveStatus(ctx, record.Phase)
	if err != nil {
		return "", []string{fmt.Sprintf("status update skipped: %v", err)}
	}
	var warnings []string
	if resolution.Warning != "" {
		warnings = append(warnings, resolution.Warning)
	}

	verify, err := resolver.UpdateAndVerify(ctx, itemID, resolution.Option, status.DefaultVerifyRetries)
	if err != nil {
		return "", append(warnings, fmt.Sprintf("status update failed: %v", err))
	}
	if !verify.Verified {
		warnings = append(warnings, fmt.Sprintf("status update unverified after %d reads (observed %q)",
			verify.Attempts, verify.Observed))
	}
	return resolution.Option.Name, warnings
}

func init() {
	syncPushCmd.Flags().BoolVar(&syncCreate, "create", false, "Create the issue when no link exists")
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncProjectCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
