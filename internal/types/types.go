// Package types defines core data structures for the specd lifecycle tracker.
package types

import (
	"fmt"
	"time"
)

// Record represents a local specification record tracked through phases.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Phase       Phase     `json:"phase"`
	Branch      string    `json:"branch,omitempty"` // Optional VCS branch reference
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the record for structural problems before any I/O.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("record name is required")
	}
	if !r.Phase.IsValid() {
		return fmt.Errorf("invalid phase: %q", r.Phase)
	}
	return nil
}

// Phase is one of the five ordered lifecycle states of a Record.
type Phase string

// Lifecycle phases, in order.
const (
	PhaseRequirements   Phase = "requirements"
	PhaseDesign         Phase = "design"
	PhaseTasks          Phase = "tasks"
	PhaseImplementation Phase = "implementation"
	PhaseCompleted      Phase = "completed"
)

// AllPhases lists the phases in lifecycle order.
var AllPhases = []Phase{
	PhaseRequirements,
	PhaseDesign,
	PhaseTasks,
	PhaseImplementation,
	PhaseCompleted,
}

// IsValid checks if the phase value is one of the five lifecycle phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseRequirements, PhaseDesign, PhaseTasks, PhaseImplementation, PhaseCompleted:
		return true
	}
	return false
}

// Ordinal returns the phase's position in the lifecycle (0-based),
// or -1 for an unknown phase.
func (p Phase) Ordinal() int {
	for i, phase := range AllPhases {
		if p == phase {
			return i
		}
	}
	return -1
}

// ParsePhase converts a string to a Phase, validating it.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid phase: %q (valid: requirements, design, tasks, implementation, completed)", s)
	}
	return p, nil
}

// EntityType identifies which kind of local entity a SyncMapping links.
type EntityType string

// Entity types for sync mappings.
const (
	EntityRecord            EntityType = "record"
	EntitySubIssue          EntityType = "sub_issue"
	EntityProjectMembership EntityType = "project_membership"
)

// IsValid checks if the entity type is recognized.
func (e EntityType) IsValid() bool {
	switch e {
	case EntityRecord, EntitySubIssue, EntityProjectMembership:
		return true
	}
	return false
}

// SyncStatus records the outcome of the most recent sync for a mapping.
type SyncStatus string

// Sync statuses.
const (
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncMapping links one local entity to one remote entity. At most one
// mapping exists per (EntityType, LocalID) pair; the storage layer
// enforces this with a unique index, which is what makes remote-entity
// creation idempotent under concurrent callers.
type SyncMapping struct {
	EntityType   EntityType `json:"entity_type"`
	LocalID      string     `json:"local_id"`
	RemoteID     string     `json:"remote_id"`                // Remote global identifier
	RemoteNumber int        `json:"remote_number"`            // Repository-scoped issue number
	NodeID       string     `json:"node_id,omitempty"`        // GraphQL node identifier
	ParentNumber int        `json:"parent_number,omitempty"`  // For sub-issues: parent's issue number
	LastSyncedAt time.Time  `json:"last_synced_at"`
	Status       SyncStatus `json:"status"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
}

// Validate checks the mapping for structural problems.
func (m *SyncMapping) Validate() error {
	if !m.EntityType.IsValid() {
		return fmt.Errorf("invalid entity type: %q", m.EntityType)
	}
	if m.LocalID == "" {
		return fmt.Errorf("local ID is required")
	}
	if m.RemoteID == "" {
		return fmt.Errorf("remote ID is required")
	}
	return nil
}

// TaskItem is an ephemeral input to sub-issue creation. It is not stored
// beyond the SyncMapping that results from creating its sub-issue.
type TaskItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ChangeType classifies a changelog entry.
type ChangeType string

// Changelog entry types.
const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangelogEntry describes one section-level difference between two
// document snapshots. Computed on demand, never persisted.
type ChangelogEntry struct {
	Type    ChangeType `json:"type"`
	Section string     `json:"section"`
	Summary string     `json:"summary"`
}
