// Package phase validates and executes record phase transitions,
// coordinating the local store, the Markdown file, and the event bus.
// The store write and the durable file write together form the commit;
// a failure between them rolls the store back.
package phase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sddlab/specd/internal/eventbus"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/types"
)

// Sentinel errors.
var (
	// ErrValidationFailed indicates the transition's validator found
	// missing sections and no override was set.
	ErrValidationFailed = errors.New("transition validation failed")

	// ErrInconsistentState indicates the store update succeeded, a later
	// step failed, and rolling the store back also failed. The record
	// and its file disagree; manual intervention is required.
	ErrInconsistentState = errors.New("inconsistent state: phase rollback failed")
)

// Validator inspects document content and returns the titles of
// required sections that are missing. An empty result means valid.
type Validator func(content string) []string

// transitionKey identifies one directed phase edge.
type transitionKey struct {
	From, To types.Phase
}

// RequireSections builds a validator that checks each named section is
// present in the document.
func RequireSections(titles ...string) Validator {
	return func(content string) []string {
		var missing []string
		for _, title := range titles {
			if !specfile.HasSection(content, title) {
				missing = append(missing, title)
			}
		}
		return missing
	}
}

// Options control a single transition call.
type Options struct {
	DryRun   bool // Validate only; mutate nothing
	Override bool // Apply even when validation reports missing sections
}

// Result reports a transition outcome. Warnings carry notification
// delivery failures, which never fail the transition itself.
type Result struct {
	RecordID        string
	From, To        types.Phase
	MissingSections []string
	Applied         bool
	Warnings        []string
}

// Valid reports whether validation passed.
func (r *Result) Valid() bool {
	return len(r.MissingSections) == 0
}

// Controller orchestrates phase transitions.
type Controller struct {
	store      storage.Store
	bus        *eventbus.Bus
	fileDir    string
	validators map[transitionKey]Validator
}

// NewController creates a controller with the default validator table:
// requirements→design requires a Requirements section and design→tasks
// requires a Design section. Transitions without a configured validator
// are permitted unconditionally.
func NewController(store storage.Store, bus *eventbus.Bus, fileDir string) *Controller {
	c := &Controller{
		store:      store,
		bus:        bus,
		fileDir:    fileDir,
		validators: make(map[transitionKey]Validator),
	}
	c.SetValidator(types.PhaseRequirements, types.PhaseDesign, RequireSections("Requirements"))
	c.SetValidator(types.PhaseDesign, types.PhaseTasks, RequireSections("Design"))
	return c
}

// SetValidator installs (or replaces) the validator for one edge.
func (c *Controller) SetValidator(from, to types.Phase, v Validator) {
	c.validators[transitionKey{From: from, To: to}] = v
}

// Transition moves a record to the target phase. On success the store
// row, the Markdown file's metadata lines, and a single
// record.phase_changed event have all been produced; the file is
// durably flushed before the call returns.
func (c *Controller) Transition(ctx context.Context, recordID string, target types.Phase, opts Options) (*Result, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("invalid target phase: %q", target)
	}

	record, err := c.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}

	path := specfile.Path(c.fileDir, recordID)
	content, readErr := os.ReadFile(path)
	if readErr != nil && !os.IsNotExist(readErr) {
		return nil, fmt.Errorf("read spec file for %s: %w", recordID, readErr)
	}

	result := &Result{
		RecordID: recordID,
		From:     record.Phase,
		To:       target,
	}
	if v, ok := c.validators[transitionKey{From: record.Phase, To: target}]; ok {
		result.MissingSections = v(string(content))
	}

	if opts.DryRun {
		return result, nil
	}
	if !result.Valid() && !opts.Override {
		return result, fmt.Errorf("%s → %s for %s, missing sections %v: %w",
			record.Phase, target, recordID, result.MissingSections, ErrValidationFailed)
	}

	if err := c.apply(ctx, record, target, string(content), path, result); err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

// apply performs the store write, the file rewrite, and the event
// dispatch. Any failure after the store write rolls the phase back.
func (c *Controller) apply(ctx context.Context, record *types.Record, target types.Phase, content, path string, result *Result) error {
	oldPhase := record.Phase

	if err := c.store.UpdateRecordPhase(ctx, record.ID, target); err != nil {
		return fmt.Errorf("update phase of %s: %w", record.ID, err)
	}

	// Re-read for the stored timestamp so file and row agree.
	updated, err := c.store.GetRecord(ctx, record.ID)
	if err != nil {
		return c.rollback(ctx, record.ID, oldPhase, fmt.Errorf("reload record %s: %w", record.ID, err))
	}

	if content == "" {
		content = specfile.New(updated)
	}
	newContent, err := specfile.RewriteMetadata(content, target, updated.UpdatedAt)
	if err != nil {
		return c.rollback(ctx, record.ID, oldPhase, fmt.Errorf("rewrite metadata for %s: %w", record.ID, err))
	}
	if err := specfile.WriteDurable(path, newContent); err != nil {
		return c.rollback(ctx, record.ID, oldPhase, fmt.Errorf("write spec file for %s: %w", record.ID, err))
	}

	if c.bus == nil {
		return c.rollback(ctx, record.ID, oldPhase, fmt.Errorf("no event dispatcher configured"))
	}
	dispatch, err := c.bus.Dispatch(ctx, &eventbus.Event{
		Type:     eventbus.EventRecordPhaseChanged,
		RecordID: record.ID,
		Name:     record.Name,
		OldPhase: oldPhase,
		NewPhase: target,
	})
	if err != nil {
		// Delivery failure is reported, never thrown: the transition
		// itself is already committed.
		result.Warnings = append(result.Warnings, fmt.Sprintf("event dispatch: %v", err))
	} else {
		result.Warnings = append(result.Warnings, dispatch.Warnings...)
	}
	return nil
}

// rollback restores the prior phase after a mid-transition failure. A
// rollback that itself fails is the one unrecoverable condition: both
// errors are surfaced under ErrInconsistentState.
func (c *Controller) rollback(ctx context.Context, recordID string, oldPhase types.Phase, cause error) error {
	if err := c.store.UpdateRecordPhase(ctx, recordID, oldPhase); err != nil {
		return fmt.Errorf("%w: record %s stuck mid-transition: %v (rollback: %v)",
			ErrInconsistentState, recordID, cause, err)
	}
	return cause
}
