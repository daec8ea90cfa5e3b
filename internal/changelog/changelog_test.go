package changelog

import (
	"testing"

	"github.com/sddlab/specd/internal/types"
)

const baseDoc = `# Auth Flow

## Requirements

- login
- logout

## Tasks

- [ ] T1
- [ ] T2
`

func entryFor(entries []types.ChangelogEntry, section string) *types.ChangelogEntry {
	for i := range entries {
		if entries[i].Section == section {
			return &entries[i]
		}
	}
	return nil
}

func TestDiffSectionsIdentical(t *testing.T) {
	if entries := DiffSections(baseDoc, baseDoc); len(entries) != 0 {
		t.Errorf("identical documents: got %d entries, want 0", len(entries))
	}
	if entries := DiffSections("", ""); len(entries) != 0 {
		t.Errorf("empty documents: got %d entries, want 0", len(entries))
	}
}

func TestDiffSectionsAddedRemoved(t *testing.T) {
	newDoc := `# Auth Flow

## Requirements

- login
- logout

## Design

Token-based.
`
	entries := DiffSections(baseDoc, newDoc)

	added := entryFor(entries, "Design")
	if added == nil || added.Type != types.ChangeAdded {
		t.Errorf("Design should be added, got %+v", added)
	}
	removed := entryFor(entries, "Tasks")
	if removed == nil || removed.Type != types.ChangeRemoved {
		t.Errorf("Tasks should be removed, got %+v", removed)
	}
	if e := entryFor(entries, "Requirements"); e != nil {
		t.Errorf("unchanged Requirements reported: %+v", e)
	}
}

func TestDiffSectionsWhitespaceOnly(t *testing.T) {
	withTrailing := baseDoc + "   \n\n"
	if entries := DiffSections(baseDoc, withTrailing); len(entries) != 0 {
		t.Errorf("whitespace-only change reported: %+v", entries)
	}
}

func TestSummarizeChecklistCountDelta(t *testing.T) {
	oldBody := "- [ ] T1\n- [ ] T2\n"
	newBody := "- [ ] T1\n- [ ] T2\n- [ ] T3\n- [x] T4\n"
	if got := summarizeDiff(oldBody, newBody); got != "2 task(s) added" {
		t.Errorf("summary = %q, want %q", got, "2 task(s) added")
	}
	if got := summarizeDiff(newBody, oldBody); got != "2 task(s) removed" {
		t.Errorf("summary = %q, want %q", got, "2 task(s) removed")
	}
}

func TestSummarizeCompletionDelta(t *testing.T) {
	oldBody := "- [ ] T1\n- [ ] T2\n"
	newBody := "- [x] T1\n- [ ] T2\n"
	if got := summarizeDiff(oldBody, newBody); got != "1 task(s) completed" {
		t.Errorf("summary = %q, want %q", got, "1 task(s) completed")
	}
	if got := summarizeDiff(newBody, oldBody); got != "1 task(s) reopened" {
		t.Errorf("summary = %q, want %q", got, "1 task(s) reopened")
	}
}

func TestSummarizeLineCountDelta(t *testing.T) {
	oldBody := "a\nb\n"
	newBody := "a\nb\nc\nd\ne\nf\n"
	if got := summarizeDiff(oldBody, newBody); got != "4 lines added" {
		t.Errorf("summary = %q, want %q", got, "4 lines added")
	}
	if got := summarizeDiff(newBody, oldBody); got != "4 lines removed" {
		t.Errorf("summary = %q, want %q", got, "4 lines removed")
	}

	// Blank lines are excluded from the count.
	padded := "a\nb\n\n\n\n\n"
	if got := summarizeDiff(oldBody, padded); got != "Content updated" {
		t.Errorf("blank-line padding summary = %q, want generic", got)
	}
}

func TestSummarizeGeneric(t *testing.T) {
	if got := summarizeDiff("alpha\nbeta\n", "alpha\ngamma\n"); got != "Content updated" {
		t.Errorf("summary = %q, want %q", got, "Content updated")
	}
}

func TestDiffSectionsNestedSubheading(t *testing.T) {
	oldDoc := "# T\n\n## Design\n\n### API\n\nv1\n"
	newDoc := "# T\n\n## Design\n\n### API\n\nv2\n"
	entries := DiffSections(oldDoc, newDoc)

	// Both the parent (embeds the child body) and the child report the change.
	if e := entryFor(entries, "Design"); e == nil || e.Type != types.ChangeModified {
		t.Errorf("parent section not reported modified: %+v", e)
	}
	if e := entryFor(entries, "API"); e == nil || e.Type != types.ChangeModified {
		t.Errorf("child section not reported modified: %+v", e)
	}
}
