// Package changelog computes section-level diffs between two snapshots
// of a record's Markdown document. Results are ephemeral: they feed
// human-readable change summaries and are never persisted.
package changelog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sddlab/specd/internal/specfile"
	"github.com/sddlab/specd/internal/types"
)

// lineCountThreshold is the minimum non-blank line delta reported as
// "N lines added/removed" rather than a generic content update.
const lineCountThreshold = 4

var checklistPattern = regexp.MustCompile(`^\s*- \[([ xX])\] `)

// DiffSections compares two document snapshots and returns one entry per
// added, removed, or modified section. Sections are keyed by heading
// text at any level; a heading's body embeds its nested subheadings, and
// those subheadings are also compared as entries of their own.
func DiffSections(oldText, newText string) []types.ChangelogEntry {
	oldSections := specfile.SplitSections(oldText)
	newSections := specfile.SplitSections(newText)

	oldByTitle := make(map[string]string, len(oldSections))
	for _, s := range oldSections {
		oldByTitle[s.Title] = s.Body
	}
	newByTitle := make(map[string]string, len(newSections))
	for _, s := range newSections {
		newByTitle[s.Title] = s.Body
	}

	var entries []types.ChangelogEntry

	for _, s := range newSections {
		oldBody, existed := oldByTitle[s.Title]
		if !existed {
			entries = append(entries, types.ChangelogEntry{
				Type:    types.ChangeAdded,
				Section: s.Title,
				Summary: "New section added",
			})
			continue
		}
		if normalize(oldBody) != normalize(s.Body) {
			entries = append(entries, types.ChangelogEntry{
				Type:    types.ChangeModified,
				Section: s.Title,
				Summary: summarizeDiff(oldBody, s.Body),
			})
		}
	}

	for _, s := range oldSections {
		if _, kept := newByTitle[s.Title]; !kept {
			entries = append(entries, types.ChangelogEntry{
				Type:    types.ChangeRemoved,
				Section: s.Title,
				Summary: "Section removed",
			})
		}
	}

	return entries
}

// summarizeDiff produces a short description of how a section changed.
// Priority order: checklist count delta, then completion delta, then a
// line-count delta of lineCountThreshold or more, then a generic note.
func summarizeDiff(oldBody, newBody string) string {
	oldTotal, oldDone := checklistCounts(oldBody)
	newTotal, newDone := checklistCounts(newBody)

	if oldTotal != newTotal {
		delta := newTotal - oldTotal
		if delta > 0 {
			return fmt.Sprintf("%d task(s) added", delta)
		}
		return fmt.Sprintf("%d task(s) removed", -delta)
	}

	if oldTotal > 0 && oldDone != newDone {
		delta := newDone - oldDone
		if delta > 0 {
			return fmt.Sprintf("%d task(s) completed", delta)
		}
		return fmt.Sprintf("%d task(s) reopened", -delta)
	}

	oldLines := nonBlankLineCount(oldBody)
	newLines := nonBlankLineCount(newBody)
	if diff := newLines - oldLines; diff >= lineCountThreshold {
		return fmt.Sprintf("%d lines added", diff)
	} else if -diff >= lineCountThreshold {
		return fmt.Sprintf("%d lines removed", -diff)
	}

	return "Content updated"
}

// checklistCounts returns the total and completed checklist item counts.
func checklistCounts(body string) (total, done int) {
	for _, line := range strings.Split(body, "\n") {
		m := checklistPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		total++
		if m[1] != " " {
			done++
		}
	}
	return total, done
}

// nonBlankLineCount excludes blank lines from line-count comparisons.
func nonBlankLineCount(body string) int {
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// normalize strips per-line trailing whitespace and outer blank space so
// formatting-only differences do not register as modifications.
func normalize(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
