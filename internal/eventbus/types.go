package eventbus

import (
	"time"

	"github.com/sddlab/specd/internal/types"
)

// EventType identifies an event flowing through the bus.
type EventType string

// Record lifecycle events.
const (
	EventRecordCreated      EventType = "record.created"
	EventRecordUpdated      EventType = "record.updated"
	EventRecordPhaseChanged EventType = "record.phase_changed"
	EventRecordDeleted      EventType = "record.deleted"
)

// Event carries a record identifier and a small payload to listeners.
// Listeners perform the heavy lifting (remote sync, branch automation)
// outside the emitting operation's transaction.
type Event struct {
	Type     EventType   `json:"type"`
	RecordID string      `json:"record_id"`
	OldPhase types.Phase `json:"old_phase,omitempty"`
	NewPhase types.Phase `json:"new_phase,omitempty"`
	Name     string      `json:"name,omitempty"`
	EmittedAt time.Time  `json:"emitted_at"`
}

// Result aggregates handler outcomes for a single dispatch. Handler
// failures land in Warnings: they are reported to the caller but never
// fail the operation that emitted the event.
type Result struct {
	Handled  int      `json:"handled"`
	Warnings []string `json:"warnings,omitempty"`
}
