package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sddlab/specd/internal/specfile"
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

func seedRecord(t *testing.T, store *sqlite.SQLiteStore, id, name string, phase types.Phase, updatedAt time.Time) *types.Record {
	t.Helper()
	record := &types.Record{
		ID: id, Name: name, Phase: phase,
		CreatedAt: updatedAt, UpdatedAt: updatedAt,
	}
	if err := store.CreateRecord(context.Background(), record); err != nil {
		t.Fatalf("seed record %s: %v", id, err)
	}
	return record
}

func writeFile(t *testing.T, dir, id, content string) {
	t.Helper()
	if err := os.WriteFile(specfile.Path(dir, id), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", id, err)
	}
}

func TestAuditPartitions(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)

	// Synced: file matches on name, phase, timestamp.
	r1 := seedRecord(t, store, "sp-0001", "Auth", types.PhaseDesign, now)
	writeFile(t, dir, "sp-0001", specfile.New(r1))

	// Record-only: no file.
	seedRecord(t, store, "sp-0002", "Billing", types.PhaseRequirements, now)

	// File-only: no record.
	orphan := &types.Record{ID: "sp-0003", Name: "Orphan", Phase: types.PhaseTasks, CreatedAt: now, UpdatedAt: now}
	writeFile(t, dir, "sp-0003", specfile.New(orphan))

	// Mismatched: phase drifted.
	r4 := seedRecord(t, store, "sp-0004", "Search", types.PhaseImplementation, now)
	drifted := *r4
	drifted.Phase = types.PhaseTasks
	writeFile(t, dir, "sp-0004", specfile.New(&drifted))

	// Mismatched: unparseable file.
	writeFile(t, dir, "sp-0005", "no metadata at all\n")
	seedRecord(t, store, "sp-0005", "Broken", types.PhaseDesign, now)

	report, err := New(store).Audit(context.Background(), dir)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}

	if len(report.Synced) != 1 || report.Synced[0] != "sp-0001" {
		t.Errorf("synced = %v", report.Synced)
	}
	if len(report.RecordOnly) != 1 || report.RecordOnly[0] != "sp-0002" {
		t.Errorf("record-only = %v", report.RecordOnly)
	}
	if len(report.FileOnly) != 1 || report.FileOnly[0] != "sp-0003" {
		t.Errorf("file-only = %v", report.FileOnly)
	}
	if len(report.Mismatched) != 2 {
		t.Fatalf("mismatched = %+v", report.Mismatched)
	}
	if report.Mismatched[0].ID != "sp-0004" ||
		!strings.HasPrefix(report.Mismatched[0].Differences[0], "Phase:") {
		t.Errorf("mismatch[0] = %+v", report.Mismatched[0])
	}
	if report.Mismatched[1].ID != "sp-0005" ||
		!strings.HasPrefix(report.Mismatched[1].Differences[0], "Parse error:") {
		t.Errorf("mismatch[1] = %+v", report.Mismatched[1])
	}

	// 4 files observed, 1 synced: 25%.
	if report.SyncRate != 25 {
		t.Errorf("sync rate = %d, want 25", report.SyncRate)
	}
}

func TestAuditEmptyDirectory(t *testing.T) {
	store := newTestStore(t)
	report, err := New(store).Audit(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.SyncRate != 0 {
		t.Errorf("sync rate = %d, want 0 when no files exist", report.SyncRate)
	}
	if len(report.FileOnly)+len(report.RecordOnly)+len(report.Mismatched)+len(report.Synced) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestAuditIgnoresSubSecondDrift(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	// Record carries milliseconds; the file format is second precision.
	now := time.Now().Truncate(time.Second).Add(700 * time.Millisecond)
	record := seedRecord(t, store, "sp-0001", "Auth", types.PhaseDesign, now)
	writeFile(t, dir, "sp-0001", specfile.New(record))

	report, err := New(store).Audit(context.Background(), dir)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(report.Synced) != 1 {
		t.Errorf("synced = %v, mismatched = %+v (sub-second drift must not unsync)",
			report.Synced, report.Mismatched)
	}
	if report.SyncRate != 100 {
		t.Errorf("sync rate = %d, want 100", report.SyncRate)
	}
}

func TestAuditIgnoresNonMarkdownFiles(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := New(store).Audit(context.Background(), dir)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(report.FileOnly) != 0 {
		t.Errorf("file-only = %v, want none", report.FileOnly)
	}
}
