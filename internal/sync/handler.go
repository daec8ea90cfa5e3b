package sync

import (
	"context"
	"errors"

	"github.com/sddlab/specd/internal/eventbus"
)

// NewHandler returns an event bus handler that pushes record changes to
// the linked remote issue. Unlinked records are skipped: listeners must
// never fail the operation that emitted the event, and a record without
// an issue is a normal state, not an error.
func NewHandler(service *Service) eventbus.Handler {
	return &eventbus.HandlerFunc{
		Name:  "github-sync",
		Order: 10,
		Types: []eventbus.EventType{
			eventbus.EventRecordUpdated,
			eventbus.EventRecordPhaseChanged,
		},
		Callback: func(ctx context.Context, event *eventbus.Event) error {
			_, err := service.SyncRecordToIssue(ctx, event.RecordID, false)
			if errors.Is(err, ErrNotLinked) {
				return nil
			}
			return err
		},
	}
}
