// Package audit compares the Markdown file store against the record
// store and reports drift. It runs off the write path: three-way
// consistency is an auditing concern here, not a live protocol.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/storage"
	"github.com/sddlab/specd/internal/types"
)

// Mismatch describes one identifier present in both stores whose
// attributes disagree, or whose file could not be parsed.
type Mismatch struct {
	ID          string   `json:"id"`
	Differences []string `json:"differences"`
}

// Report partitions all observed identifiers into four disjoint sets.
type Report struct {
	FileOnly   []string   `json:"file_only"`
	RecordOnly []string   `json:"record_only"`
	Mismatched []Mismatch `json:"mismatched"`
	Synced     []string   `json:"synced"`

	// SyncRate is synced files as a percentage of all observed files,
	// truncated to an integer. Zero when no files exist.
	SyncRate int `json:"sync_rate"`
}

// Auditor checks file/record consistency.
type Auditor struct {
	store storage.Store
}

// New creates an auditor over the given store.
func New(store storage.Store) *Auditor {
	return &Auditor{store: store}
}

// Audit scans fileDir for per-record Markdown files and compares each
// against its record. A file and record are synced when name, phase,
// and updated timestamp (truncated to whole seconds) agree. A file that
// fails to parse becomes a mismatch entry, never an abort.
func (a *Auditor) Audit(ctx context.Context, fileDir string) (*Report, error) {
	entries, err := os.ReadDir(fileDir)
	if err != nil {
		return nil, fmt.Errorf("read spec dir: %w", err)
	}

	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	byID := make(map[string]*types.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	report := &Report{}
	totalFiles := 0
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		totalFiles++
		id := strings.TrimSuffix(entry.Name(), ".md")
		seen[id] = true

		record, ok := byID[id]
		if !ok {
			report.FileOnly = append(report.FileOnly, id)
			continue
		}

		doc, err := specfile.ParseFile(filepath.Join(fileDir, entry.Name()))
		if err != nil {
			report.Mismatched = append(report.Mismatched, Mismatch{
				ID:          id,
				Differences: []string{fmt.Sprintf("Parse error: %v", err)},
			})
			continue
		}

		if diffs := compare(doc, record); len(diffs) > 0 {
			report.Mismatched = append(report.Mismatched, Mismatch{ID: id, Differences: diffs})
		} else {
			report.Synced = append(report.Synced, id)
		}
	}

	for _, r := range records {
		if !seen[r.ID] {
			report.RecordOnly = append(report.RecordOnly, r.ID)
		}
	}

	sort.Strings(report.FileOnly)
	sort.Strings(report.RecordOnly)
	sort.Strings(report.Synced)
	sort.Slice(report.Mismatched, func(i, j int) bool {
		return report.Mismatched[i].ID < report.Mismatched[j].ID
	})

	if totalFiles > 0 {
		report.SyncRate = len(report.Synced) * 100 / totalFiles
	}
	return report, nil
}

// compare returns per-field difference strings between a parsed file
// and its record. Timestamps compare at second precision: sub-second
// and format differences are not drift.
func compare(doc *specfile.Document, record *types.Record) []string {
	var diffs []string
	if doc.Name != record.Name {
		diffs = append(diffs, fmt.Sprintf("Name: file %q vs record %q", doc.Name, record.Name))
	}
	if doc.Phase != record.Phase {
		diffs = append(diffs, fmt.Sprintf("Phase: file %q vs record %q", doc.Phase, record.Phase))
	}
	fileTS := doc.UpdatedAt.Unix()
	recordTS := record.UpdatedAt.Unix()
	if fileTS != recordTS {
		diffs = append(diffs, fmt.Sprintf("Updated: file %s vs record %s",
			doc.UpdatedAt.Format(specfile.TimestampFormat),
			record.UpdatedAt.Format(specfile.TimestampFormat)))
	}
	return diffs
}
