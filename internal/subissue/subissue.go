// Package subissue decomposes a record's task list into remote
// sub-issues linked under the record's parent issue, and keeps the
// parent's checkbox list in step with sub-issue state.
package subissue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
)

// MaxSubIssuesPerParent is GitHub's cap on sub-issues under one parent.
// Task lists exceeding it are rejected before any remote call.
const MaxSubIssuesPerParent = 100

// TaskLabel marks issues created from task list entries.
const TaskLabel = "task"

// Sentinel errors.
var (
	// ErrBatchTooLarge indicates the task list exceeds the sub-issue cap.
	ErrBatchTooLarge = errors.New("task list exceeds sub-issue limit")

	// ErrParentNotLinked indicates the parent record has no issue to
	// attach sub-issues to.
	ErrParentNotLinked = errors.New("parent record not linked to a remote issue")

	// ErrTaskNotLinked indicates no sub-issue exists for the task.
	// Callers treat this as non-fatal: a task may never have had a
	// sub-issue created.
	ErrTaskNotLinked = errors.New("task not linked to a sub-issue")
)

// Manager creates and updates sub-issues for a parent record.
type Manager struct {
	store  storage.Store
	client *github.Client
}

// NewManager creates a sub-issue manager.
func NewManager(store storage.Store, client *github.Client) *Manager {
	return &Manager{store: store, client: client}
}

// CreatedSubIssue records one successful task-to-sub-issue creation.
type CreatedSubIssue struct {
	TaskID string
	Number int
}

// BatchResult reports a batch creation. On abort, Created holds the
// sub-issues persisted before the failing task; they are kept.
type BatchResult struct {
	Created []CreatedSubIssue
}

// CreateSubIssuesFromTasks creates one sub-issue per task, sequentially:
// create the issue, resolve its node ID, link it under the parent, then
// persist the mapping. A failure aborts the remaining tasks but leaves
// already-created sub-issues persisted; there is no cross-task
// transaction. The partial result is returned alongside the error.
func (m *Manager) CreateSubIssuesFromTasks(ctx context.Context, parentRecordID string, tasks []types.TaskItem) (*BatchResult, error) {
	if len(tasks) > MaxSubIssuesPerParent {
		return nil, fmt.Errorf("%d tasks for record %s (limit %d): %w",
			len(tasks), parentRecordID, MaxSubIssuesPerParent, ErrBatchTooLarge)
	}

	parent, err := m.store.GetMapping(ctx, types.EntityRecord, parentRecordID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, fmt.Errorf("record %s: %w", parentRecordID, ErrParentNotLinked)
		}
		return nil, fmt.Errorf("resolve parent %s: %w", parentRecordID, err)
	}

	parentNodeID := parent.NodeID
	if parentNodeID == "" {
		parentNodeID, err = m.client.FetchIssueNodeID(ctx, parent.RemoteNumber)
		if err != nil {
			return nil, fmt.Errorf("fetch parent node id for #%d: %w", parent.RemoteNumber, err)
		}
		parent.NodeID = parentNodeID
		if err := m.store.UpdateMapping(ctx, parent); err != nil {
			return nil, fmt.Errorf("store parent node id: %w", err)
		}
	}

	result := &BatchResult{}
	for _, task := range tasks {
		number, err := m.createOne(ctx, parent, parentNodeID, task)
		if err != nil {
			return result, fmt.Errorf("task %s: %w", task.ID, err)
		}
		result.Created = append(result.Created, CreatedSubIssue{TaskID: task.ID, Number: number})
	}
	return result, nil
}

func (m *Manager) createOne(ctx context.Context, parent *types.SyncMapping, parentNodeID string, task types.TaskItem) (int, error) {
	issue, err := m.client.CreateIssue(ctx, task.Title, task.Description, []string{TaskLabel})
	if err != nil {
		return 0, fmt.Errorf("create sub-issue: %w", err)
	}

	nodeID := issue.NodeID
	if nodeID == "" {
		nodeID, err = m.client.FetchIssueNodeID(ctx, issue.Number)
		if err != nil {
			return 0, fmt.Errorf("fetch node id for #%d: %w", issue.Number, err)
		}
	}
	if err := m.client.LinkSubIssue(ctx, parentNodeID, nodeID); err != nil {
		return 0, fmt.Errorf("link #%d under #%d: %w", issue.Number, parent.RemoteNumber, err)
	}

	mapping := &types.SyncMapping{
		EntityType:   types.EntitySubIssue,
		LocalID:      task.ID,
		RemoteID:     strconv.Itoa(issue.ID),
		RemoteNumber: issue.Number,
		NodeID:       nodeID,
		ParentNumber: parent.RemoteNumber,
		LastSyncedAt: time.Now(),
		Status:       types.SyncSuccess,
	}
	if err := m.store.CreateMapping(ctx, mapping); err != nil {
		return 0, fmt.Errorf("persist mapping: %w", err)
	}
	return issue.Number, nil
}

// UpdateSubIssueStatus opens or closes the task's sub-issue and
// re-synchronizes the checkbox line in the parent issue's body. A parent
// body without a matching checkbox line is skipped silently: the body
// may predate sub-issue creation.
func (m *Manager) UpdateSubIssueStatus(ctx context.Context, taskID, state string) error {
	if !github.IsValidState(state) {
		return fmt.Errorf("invalid state %q for task %s", state, taskID)
	}

	mapping, err := m.store.GetMapping(ctx, types.EntitySubIssue, taskID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("task %s: %w", taskID, ErrTaskNotLinked)
		}
		return fmt.Errorf("resolve task %s: %w", taskID, err)
	}

	if _, err := m.client.SetIssueState(ctx, mapping.RemoteNumber, state); err != nil {
		return fmt.Errorf("set state of sub-issue #%d: %w", mapping.RemoteNumber, err)
	}

	mapping.Status = types.SyncSuccess
	mapping.ErrorDetail = ""
	if err := m.store.UpdateMapping(ctx, mapping); err != nil {
		return fmt.Errorf("update mapping for task %s: %w", taskID, err)
	}

	if mapping.ParentNumber > 0 {
		if err := m.syncParentChecklist(ctx, mapping.ParentNumber, mapping.RemoteNumber, state == github.StateClosed); err != nil {
			return fmt.Errorf("sync parent #%d checklist: %w", mapping.ParentNumber, err)
		}
	}
	return nil
}

func (m *Manager) syncParentChecklist(ctx context.Context, parentNumber, subNumber int, checked bool) error {
	parent, err := m.client.FetchIssue(ctx, parentNumber)
	if err != nil {
		return fmt.Errorf("fetch parent issue: %w", err)
	}

	body, changed := ToggleChecklistItem(parent.Body, subNumber, checked)
	if !changed {
		return nil
	}
	if _, err := m.client.UpdateIssue(ctx, parentNumber, map[string]interface{}{"body": body}); err != nil {
		return fmt.Errorf("update parent body: %w", err)
	}
	return nil
}
