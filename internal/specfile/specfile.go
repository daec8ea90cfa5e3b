// Package specfile reads and writes the Markdown document that shadows
// each record. The document carries a title line, a metadata block with
// labeled phase/updated lines, and free-form body sections. The metadata
// lines are rewritten in place on phase transitions without disturbing
// the surrounding content.
package specfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sddlab/specd/internal/types"
)

// TimestampFormat is the wall-clock format used in metadata lines.
// Second precision: the auditor compares timestamps truncated to seconds.
const TimestampFormat = "2006-01-02 15:04:05"

// Metadata line patterns. Anchored to the label so a rewrite replaces
// only the value and leaves surrounding content untouched.
var (
	phaseLinePattern   = regexp.MustCompile(`(?m)^(- \*\*Phase\*\*: ).*$`)
	updatedLinePattern = regexp.MustCompile(`(?m)^(- \*\*Updated\*\*: ).*$`)
	titleLinePattern   = regexp.MustCompile(`(?m)^# (.+)$`)
)

// Document is the parsed form of a record's Markdown file.
type Document struct {
	Name      string
	Phase     types.Phase
	UpdatedAt time.Time
	Content   string
}

// Path returns the Markdown file path for a record ID under dir.
func Path(dir, recordID string) string {
	return filepath.Join(dir, recordID+".md")
}

// New renders a fresh document for a record.
func New(record *types.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", record.Name)
	b.WriteString("## Metadata\n\n")
	fmt.Fprintf(&b, "- **Phase**: %s\n", record.Phase)
	fmt.Fprintf(&b, "- **Created**: %s\n", record.CreatedAt.Format(TimestampFormat))
	fmt.Fprintf(&b, "- **Updated**: %s\n", record.UpdatedAt.Format(TimestampFormat))
	b.WriteString("\n## Requirements\n\n")
	if record.Description != "" {
		b.WriteString(record.Description + "\n")
	}
	return b.String()
}

// Parse extracts the title, phase, and updated timestamp from document
// content. Missing or malformed metadata is an error: the auditor
// records these as per-file mismatches rather than aborting.
func Parse(content string) (*Document, error) {
	doc := &Document{Content: content}

	m := titleLinePattern.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("no title line found")
	}
	doc.Name = strings.TrimSpace(m[1])

	m = phaseLinePattern.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("no phase metadata line found")
	}
	phaseValue := strings.TrimSpace(strings.TrimPrefix(m[0], m[1]))
	phase, err := types.ParsePhase(phaseValue)
	if err != nil {
		return nil, fmt.Errorf("metadata phase: %w", err)
	}
	doc.Phase = phase

	m = updatedLinePattern.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("no updated metadata line found")
	}
	tsValue := strings.TrimSpace(strings.TrimPrefix(m[0], m[1]))
	ts, err := time.ParseInLocation(TimestampFormat, tsValue, time.Local)
	if err != nil {
		return nil, fmt.Errorf("metadata timestamp: %w", err)
	}
	doc.UpdatedAt = ts

	return doc, nil
}

// ParseFile reads and parses a record's Markdown file.
func ParseFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}
	return Parse(string(content))
}

// RewriteMetadata replaces the phase and updated lines in place,
// leaving every other byte of the document unchanged.
func RewriteMetadata(content string, phase types.Phase, updatedAt time.Time) (string, error) {
	if !phaseLinePattern.MatchString(content) {
		return "", fmt.Errorf("no phase metadata line to rewrite")
	}
	if !updatedLinePattern.MatchString(content) {
		return "", fmt.Errorf("no updated metadata line to rewrite")
	}
	content = phaseLinePattern.ReplaceAllString(content, "${1}"+string(phase))
	content = updatedLinePattern.ReplaceAllString(content, "${1}"+updatedAt.Format(TimestampFormat))
	return content, nil
}

// WriteDurable writes content to path and flushes both the file and its
// containing directory to stable storage. A phase transition is not
// committed until this returns.
func WriteDurable(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open spec file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write spec file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync spec file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close spec file: %w", err)
	}

	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("open spec dir: %w", err)
	}
	defer func() { _ = dir.Close() }()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync spec dir: %w", err)
	}
	return nil
}

// headingPattern matches ATX headings, levels 1-6.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Section is one heading-delimited region of a document.
type Section struct {
	Title string
	Level int
	Body  string
}

// SplitSections maps each heading (any level 1-6) to its body text. A
// section's body runs until the next heading at the same or a shallower
// level, so child headings stay embedded in their parent's body while
// also appearing as entries of their own.
func SplitSections(content string) []Section {
	lines := strings.Split(content, "\n")

	type headingAt struct {
		index int
		level int
		title string
	}
	var headings []headingAt
	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			headings = append(headings, headingAt{index: i, level: len(m[1]), title: m[2]})
		}
	}

	sections := make([]Section, 0, len(headings))
	for i, h := range headings {
		end := len(lines)
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.index
				break
			}
		}
		body := strings.Join(lines[h.index+1:end], "\n")
		sections = append(sections, Section{Title: h.title, Level: h.level, Body: body})
	}
	return sections
}

// HasSection reports whether the document contains a heading whose text
// equals title (case-insensitive, surrounding whitespace ignored).
func HasSection(content, title string) bool {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, s := range SplitSections(content) {
		if strings.ToLower(strings.TrimSpace(s.Title)) == want {
			return true
		}
	}
	return false
}
