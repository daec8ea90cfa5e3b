package phase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sddlab/specd/internal/eventbus"
	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/types"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "specd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRecord(t *testing.T, store storage.Store, phase types.Phase) *types.Record {
	t.Helper()
	now := time.Now()
	record := &types.Record{
		ID: "sp-ab12", Name: "User Auth", Phase: phase,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateRecord(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func writeSpecFile(t *testing.T, dir string, record *types.Record, extraSections string) {
	t.Helper()
	content := specfile.New(record) + extraSections
	if err := os.WriteFile(specfile.Path(dir, record.ID), []byte(content), 0o644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}
}

// eventProbe records dispatched events.
type eventProbe struct {
	events []*eventbus.Event
}

func (p *eventProbe) handler() eventbus.Handler {
	return &eventbus.HandlerFunc{
		Name:  "probe",
		Types: []eventbus.EventType{eventbus.EventRecordPhaseChanged},
		Callback: func(_ context.Context, event *eventbus.Event) error {
			p.events = append(p.events, event)
			return nil
		},
	}
}

func TestTransitionSucceeds(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseRequirements)
	dir := t.TempDir()
	writeSpecFile(t, dir, record, "Login and session handling.\n")

	bus := eventbus.New()
	probe := &eventProbe{}
	bus.Register(probe.handler())

	controller := NewController(store, bus, dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseDesign, Options{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !result.Applied || !result.Valid() {
		t.Errorf("result = %+v", result)
	}

	stored, err := store.GetRecord(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if stored.Phase != types.PhaseDesign {
		t.Errorf("stored phase = %s, want design", stored.Phase)
	}

	doc, err := specfile.ParseFile(specfile.Path(dir, record.ID))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Phase != types.PhaseDesign {
		t.Errorf("file phase = %s, want design", doc.Phase)
	}
	if doc.UpdatedAt.Unix() != stored.UpdatedAt.Unix() {
		t.Errorf("file timestamp %v disagrees with store %v", doc.UpdatedAt, stored.UpdatedAt)
	}

	if len(probe.events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(probe.events))
	}
	event := probe.events[0]
	if event.OldPhase != types.PhaseRequirements || event.NewPhase != types.PhaseDesign {
		t.Errorf("event = %+v", event)
	}
}

func TestTransitionValidationBlocks(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseDesign)
	dir := t.TempDir()
	// Metadata only: no Design section, so design → tasks is blocked.
	content := "# User Auth\n\n## Metadata\n\n- **Phase**: design\n- **Updated**: 2026-08-20 10:00:00\n"
	if err := os.WriteFile(specfile.Path(dir, record.ID), []byte(content), 0o644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}

	controller := NewController(store, eventbus.New(), dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseTasks, Options{})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	if len(result.MissingSections) != 1 || result.MissingSections[0] != "Design" {
		t.Errorf("missing = %v", result.MissingSections)
	}

	stored, _ := store.GetRecord(context.Background(), record.ID)
	if stored.Phase != types.PhaseDesign {
		t.Errorf("phase = %s, want unchanged design", stored.Phase)
	}
}

func TestTransitionDryRunMutatesNothing(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseRequirements)
	dir := t.TempDir()
	writeSpecFile(t, dir, record, "")
	before, _ := os.ReadFile(specfile.Path(dir, record.ID))

	controller := NewController(store, eventbus.New(), dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseDesign, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if result.Applied {
		t.Error("dry run must not apply")
	}
	if !result.Valid() {
		t.Errorf("missing = %v", result.MissingSections)
	}

	stored, _ := store.GetRecord(context.Background(), record.ID)
	if stored.Phase != types.PhaseRequirements {
		t.Errorf("phase = %s, want unchanged", stored.Phase)
	}
	after, _ := os.ReadFile(specfile.Path(dir, record.ID))
	if string(before) != string(after) {
		t.Error("dry run modified the file")
	}
}

func TestTransitionOverride(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseDesign)
	dir := t.TempDir()
	writeSpecFile(t, dir, record, "") // no Design section

	controller := NewController(store, eventbus.New(), dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseTasks, Options{Override: true})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !result.Applied || result.Valid() {
		t.Errorf("result = %+v (override applies despite missing sections)", result)
	}
}

func TestUnconfiguredTransitionPermitted(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseTasks)
	dir := t.TempDir()
	writeSpecFile(t, dir, record, "")

	controller := NewController(store, eventbus.New(), dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseImplementation, Options{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !result.Applied {
		t.Errorf("result = %+v", result)
	}
}

func TestRollbackOnFileWriteFailure(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseTasks)
	// Nonexistent directory: the durable write fails after the store
	// update, which must roll the phase back.
	dir := filepath.Join(t.TempDir(), "missing")

	controller := NewController(store, eventbus.New(), dir)
	_, err := controller.Transition(context.Background(), record.ID, types.PhaseImplementation, Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrInconsistentState) {
		t.Fatalf("rollback succeeded, err should not be inconsistent state: %v", err)
	}

	stored, getErr := store.GetRecord(context.Background(), record.ID)
	if getErr != nil {
		t.Fatalf("GetRecord: %v", getErr)
	}
	if stored.Phase != types.PhaseTasks {
		t.Errorf("phase = %s, want rolled back to tasks", stored.Phase)
	}
}

// flakyStore fails UpdateRecordPhase on a chosen call number.
type flakyStore struct {
	storage.Store
	phaseCalls int
	failOn     int
}

func (f *flakyStore) UpdateRecordPhase(ctx context.Context, id string, phase types.Phase) error {
	f.phaseCalls++
	if f.phaseCalls == f.failOn {
		return fmt.Errorf("disk full")
	}
	return f.Store.UpdateRecordPhase(ctx, id, phase)
}

func TestRollbackFailureIsInconsistentState(t *testing.T) {
	store := newTestStore(t)
	seedRecord(t, store, types.PhaseTasks)
	dir := filepath.Join(t.TempDir(), "missing") // file write will fail
	flaky := &flakyStore{Store: store, failOn: 2} // second call is the rollback

	controller := NewController(flaky, eventbus.New(), dir)
	_, err := controller.Transition(context.Background(), "sp-ab12", types.PhaseImplementation, Options{})
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("err = %v, want ErrInconsistentState", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err should carry the rollback failure: %v", err)
	}
}

func TestHandlerFailureDoesNotFailTransition(t *testing.T) {
	store := newTestStore(t)
	record := seedRecord(t, store, types.PhaseRequirements)
	dir := t.TempDir()
	writeSpecFile(t, dir, record, "")

	bus := eventbus.New()
	bus.Register(&eventbus.HandlerFunc{
		Name:  "broken",
		Types: []eventbus.EventType{eventbus.EventRecordPhaseChanged},
		Callback: func(context.Context, *eventbus.Event) error {
			return fmt.Errorf("remote unavailable")
		},
	})

	controller := NewController(store, bus, dir)
	result, err := controller.Transition(context.Background(), record.ID, types.PhaseDesign, Options{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !result.Applied {
		t.Error("transition must apply despite handler failure")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v, want the handler failure reported", result.Warnings)
	}
}
