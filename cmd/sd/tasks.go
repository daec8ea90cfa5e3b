package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/subissue"
	"github.com/sddlab/specd/internal/types"
	"github.com/sddlab/specd/internal/ui"
)

// taskLinePattern matches unchecked checklist lines in a Tasks section.
// Already-checked lines are skipped: their sub-issues exist.
var taskLinePattern = regexp.MustCompile(`^\s*- \[ \]\s+(.+?)\s*$`)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Break a record's task list into GitHub sub-issues",
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a sub-issue for each task in the record's Tasks section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		recordID := args[0]
		if _, err := p.store.GetRecord(ctx, recordID); err != nil {
			return err
		}
		tasks, err := parseTaskSection(p.specsDir, recordID)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("record %s has no unchecked tasks", recordID)
		}

		client, err := p.githubClient()
		if err != nil {
			return err
		}
		manager := subissue.NewManager(p.store, client)
		result, batchErr := manager.CreateSubIssuesFromTasks(ctx, recordID, tasks)

		if jsonOutput {
			outputJSON(result)
			return batchErr
		}
		for _, created := range result.Created {
			fmt.Printf("%s %s → sub-issue #%d\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(created.TaskID), created.Number)
		}
		if batchErr != nil {
			fmt.Printf("%s stopped after %d of %d: %v\n", ui.RenderFail(ui.IconFail), len(result.Created), len(tasks), batchErr)
			return batchErr
		}
		fmt.Printf("Created %d sub-issues\n", len(result.Created))
		return nil
	},
}

var tasksCloseCmd = &cobra.Command{
	Use:   "close <task-id>",
	Short: "Close a task's sub-issue and tick the parent checklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := openProject(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		client, err := p.githubClient()
		if err != nil {
			return err
		}
		manager := subissue.NewManager(p.store, client)
		err = manager.UpdateSubIssueStatus(ctx, args[0], github.StateClosed)
		if errors.Is(err, subissue.ErrTaskNotLinked) {
			// No sub-issue means nothing to close remotely.
			if !jsonOutput {
				fmt.Printf("%s %s has no linked sub-issue\n", ui.RenderMuted(ui.IconSkip), args[0])
			}
			return nil
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]string{"task_id": args[0], "state": github.StateClosed})
			return nil
		}
		fmt.Printf("%s Closed %s\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(args[0]))
		return nil
	},
}

// parseTaskSection reads the record's Markdown file and extracts its
// Tasks-section checklist as task inputs. Task IDs are positional:
// <record>-t1, <record>-t2, in document order.
func parseTaskSection(specsDir, recordID string) ([]types.TaskItem, error) {
	content, err := os.ReadFile(specfile.Path(specsDir, recordID))
	if err != nil {
		return nil, fmt.Errorf("read spec file for %s: %w", recordID, err)
	}

	var body string
	for _, section := range specfile.SplitSections(string(content)) {
		if strings.EqualFold(strings.TrimSpace(section.Title), "Tasks") {
			body = section.Body
			break
		}
	}
	if body == "" {
		return nil, fmt.Errorf("record %s has no Tasks section", recordID)
	}

	var tasks []types.TaskItem
	n := 0
	for _, line := range strings.Split(body, "\n") {
		m := taskLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n++
		tasks = append(tasks, types.TaskItem{
			ID:    fmt.Sprintf("%s-t%d", recordID, n),
			Title: m[1],
		})
	}
	return tasks, nil
}

func init() {
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksCloseCmd)
	rootCmd.AddCommand(tasksCmd)
}
