// Package sync keeps remote tracking issues consistent with local
// records. Creation is idempotent: the sync-mapping unique index is the
// sole arbiter when concurrent callers race to create the same issue.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sddlab/specd/internal/changelog"
	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
)

// Sentinel errors for sync conditions callers branch on.
var (
	// ErrNotLinked indicates the record has no issue mapping and the
	// caller did not ask for one to be created.
	ErrNotLinked = errors.New("record not linked to a remote issue")

	// ErrAlreadySynced indicates another caller created the mapping
	// first. Recoverable: the record is synced, just not by us.
	ErrAlreadySynced = errors.New("record already synced")

	// ErrNoLinkedRecord indicates no local record maps to the given
	// issue number.
	ErrNoLinkedRecord = errors.New("no linked record for issue")
)

// SpecLabel marks every issue managed by this tool.
const SpecLabel = "spec"

// Service syncs records to remote issues and back.
type Service struct {
	store   storage.Store
	client  *github.Client
	fileDir string
}

// NewService creates a sync service. fileDir is the directory holding
// the per-record Markdown files used as issue bodies.
func NewService(store storage.Store, client *github.Client, fileDir string) *Service {
	return &Service{store: store, client: client, fileDir: fileDir}
}

// issueTitlePattern parses titles of the form "Name [phase]".
var issueTitlePattern = regexp.MustCompile(`^(.*\S)\s+\[([a-z]+)\]$`)

// issueTitle renders the remote issue title for a record.
func issueTitle(record *types.Record) string {
	return fmt.Sprintf("%s [%s]", record.Name, record.Phase)
}

// parseIssueTitle recovers the record name and phase from an issue
// title. Returns ok=false when the title does not carry a phase suffix.
func parseIssueTitle(title string) (name string, phase types.Phase, ok bool) {
	m := issueTitlePattern.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}
	phase, err := types.ParsePhase(m[2])
	if err != nil {
		return "", "", false
	}
	return m[1], phase, true
}

// issueLabels returns the labels for a record's issue.
func issueLabels(record *types.Record) []string {
	return []string{SpecLabel, "phase:" + string(record.Phase)}
}

// syncComment renders the comment left after each push sync, listing
// section-level changes when any were detected.
func syncComment(record *types.Record, entries []types.ChangelogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synced from record %s (phase: %s)", record.ID, record.Phase)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- %s %q: %s", e.Type, e.Section, e.Summary)
	}
	return b.String()
}

// issueBody returns the issue body for a record: the Markdown file when
// one exists, a generated stub otherwise.
func (s *Service) issueBody(record *types.Record) string {
	if s.fileDir != "" {
		if content, err := os.ReadFile(specfile.Path(s.fileDir, record.ID)); err == nil {
			return string(content)
		}
	}
	return specfile.New(record)
}

// SyncRecordToIssue pushes a record to its remote issue and returns the
// issue number. With createIfAbsent, an unlinked record gets a new
// issue; the remote create happens before the mapping insert, so a
// concurrent race can create a short-lived duplicate issue. The loser
// detects the conflict, closes its duplicate best-effort, and surfaces
// ErrAlreadySynced.
func (s *Service) SyncRecordToIssue(ctx context.Context, recordID string, createIfAbsent bool) (int, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return 0, fmt.Errorf("sync record %s: %w", recordID, err)
	}

	mapping, err := s.store.GetMapping(ctx, types.EntityRecord, recordID)
	switch {
	case err == nil:
		return s.updateIssue(ctx, record, mapping)
	case errors.Is(err, sqlite.ErrNotFound):
		if !createIfAbsent {
			return 0, fmt.Errorf("record %s: %w", recordID, ErrNotLinked)
		}
		return s.createIssue(ctx, record)
	default:
		return 0, fmt.Errorf("sync record %s: %w", recordID, err)
	}
}

func (s *Service) createIssue(ctx context.Context, record *types.Record) (int, error) {
	issue, err := s.client.CreateIssue(ctx, issueTitle(record), s.issueBody(record), issueLabels(record))
	if err != nil {
		return 0, fmt.Errorf("create issue for %s: %w", record.ID, err)
	}

	mapping := &types.SyncMapping{
		EntityType:   types.EntityRecord,
		LocalID:      record.ID,
		RemoteID:     strconv.Itoa(issue.ID),
		RemoteNumber: issue.Number,
		NodeID:       issue.NodeID,
		LastSyncedAt: time.Now(),
		Status:       types.SyncSuccess,
	}
	if err := s.store.CreateMapping(ctx, mapping); err != nil {
		if errors.Is(err, sqlite.ErrConflict) {
			// Lost the creation race. Close the duplicate issue we just
			// created; the winner's mapping stands.
			slog.Warn("lost issue-creation race, closing duplicate",
				"record", record.ID, "issue", issue.Number)
			_, _ = s.client.SetIssueState(ctx, issue.Number, github.StateClosed)
			return 0, fmt.Errorf("record %s: %w", record.ID, ErrAlreadySynced)
		}
		return 0, fmt.Errorf("persist mapping for %s: %w", record.ID, err)
	}
	slog.Debug("created remote issue", "record", record.ID, "issue", issue.Number)
	return issue.Number, nil
}

func (s *Service) updateIssue(ctx context.Context, record *types.Record, mapping *types.SyncMapping) (int, error) {
	current, err := s.client.FetchIssue(ctx, mapping.RemoteNumber)
	if err != nil {
		return 0, fmt.Errorf("fetch issue #%d for %s: %w", mapping.RemoteNumber, record.ID, err)
	}

	body := s.issueBody(record)
	updates := map[string]interface{}{
		"title":  issueTitle(record),
		"body":   body,
		"labels": issueLabels(record),
	}
	if _, err := s.client.UpdateIssue(ctx, mapping.RemoteNumber, updates); err != nil {
		return 0, fmt.Errorf("update issue #%d for %s: %w", mapping.RemoteNumber, record.ID, err)
	}

	comment := syncComment(record, changelog.DiffSections(current.Body, body))
	if _, err := s.client.AddComment(ctx, mapping.RemoteNumber, comment); err != nil {
		return 0, fmt.Errorf("comment on issue #%d: %w", mapping.RemoteNumber, err)
	}

	mapping.Status = types.SyncSuccess
	mapping.ErrorDetail = ""
	if err := s.store.UpdateMapping(ctx, mapping); err != nil {
		return 0, fmt.Errorf("update mapping for %s: %w", record.ID, err)
	}
	return mapping.RemoteNumber, nil
}

// SyncIssueToRecord pulls a remote issue's title and state into the
// linked local record. A closed issue forces the record to completed.
// Returns the record ID.
func (s *Service) SyncIssueToRecord(ctx context.Context, number int) (string, error) {
	mapping, err := s.store.GetMappingByNumber(ctx, types.EntityRecord, number)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return "", fmt.Errorf("issue #%d: %w", number, ErrNoLinkedRecord)
		}
		return "", fmt.Errorf("resolve issue #%d: %w", number, err)
	}

	issue, err := s.client.FetchIssue(ctx, number)
	if err != nil {
		return "", fmt.Errorf("fetch issue #%d: %w", number, err)
	}

	record, err := s.store.GetRecord(ctx, mapping.LocalID)
	if err != nil {
		return "", fmt.Errorf("load record %s: %w", mapping.LocalID, err)
	}

	if name, phase, ok := parseIssueTitle(issue.Title); ok {
		record.Name = name
		record.Phase = phase
	} else if issue.Title != "" {
		record.Name = issue.Title
	}
	if issue.State == github.StateClosed {
		record.Phase = types.PhaseCompleted
	}
	record.UpdatedAt = time.Now()

	if err := s.store.UpdateRecord(ctx, record); err != nil {
		return "", fmt.Errorf("update record %s: %w", record.ID, err)
	}

	mapping.Status = types.SyncSuccess
	mapping.ErrorDetail = ""
	if err := s.store.UpdateMapping(ctx, mapping); err != nil {
		return "", fmt.Errorf("update mapping for %s: %w", record.ID, err)
	}
	return record.ID, nil
}

// ProjectResult reports an AddRecordToProject outcome. Failures in the
// best-effort membership persistence land in Warnings.
type ProjectResult struct {
	ItemID   string
	Warnings []string
}

// AddRecordToProject adds a record's issue to a Projects board and
// persists the membership as a second mapping. The record must already
// be linked to an issue.
func (s *Service) AddRecordToProject(ctx context.Context, recordID string, projectNumber int) (*ProjectResult, error) {
	mapping, err := s.store.GetMapping(ctx, types.EntityRecord, recordID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, fmt.Errorf("record %s: %w", recordID, ErrNotLinked)
		}
		return nil, fmt.Errorf("resolve record %s: %w", recordID, err)
	}

	nodeID := mapping.NodeID
	if nodeID == "" {
		nodeID, err = s.client.FetchIssueNodeID(ctx, mapping.RemoteNumber)
		if err != nil {
			return nil, fmt.Errorf("fetch node id for issue #%d: %w", mapping.RemoteNumber, err)
		}
		mapping.NodeID = nodeID
		if err := s.store.UpdateMapping(ctx, mapping); err != nil {
			return nil, fmt.Errorf("store node id for %s: %w", recordID, err)
		}
	}

	projectID, err := s.client.ResolveProjectID(ctx, projectNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve project %d: %w", projectNumber, err)
	}
	itemID, err := s.client.AddProjectItem(ctx, projectID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("add issue #%d to project %d: %w", mapping.RemoteNumber, projectNumber, err)
	}

	result := &ProjectResult{ItemID: itemID}

	// Membership persistence is best-effort: the item is already on the
	// board, so conflicts and rate limits become warnings with a manual
	// remedy rather than hard failures.
	membership := &types.SyncMapping{
		EntityType:   types.EntityProjectMembership,
		LocalID:      recordID,
		RemoteID:     itemID,
		RemoteNumber: projectNumber,
		NodeID:       projectID,
		LastSyncedAt: time.Now(),
		Status:       types.SyncSuccess,
	}
	if err := s.store.CreateMapping(ctx, membership); err != nil {
		switch {
		case errors.Is(err, sqlite.ErrConflict):
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("record %s already has a project membership; remove it before re-adding", recordID))
		case github.IsRateLimited(err):
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("rate limited persisting membership for %s; re-run to record it", recordID))
		default:
			return result, fmt.Errorf("persist membership for %s: %w", recordID, err)
		}
	}
	return result, nil
}
