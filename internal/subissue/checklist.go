package subissue

import (
	"regexp"
	"strconv"
	"strings"
)

// checklistRefPattern matches checklist lines of the form
// "- [ ] #123 text". The trailing group requires whitespace or
// end-of-line after the number, so reference 101 never matches 1011.
var checklistRefPattern = regexp.MustCompile(`^(\s*- \[)([ xX])(\] #)(\d+)(\s.*|)$`)

// ToggleChecklistItem flips the checkbox on the one checklist line whose
// issue reference exactly equals number, leaving every other line
// byte-identical. References inside prose are never touched. Returns the
// (possibly updated) body and whether a line changed.
func ToggleChecklistItem(body string, number int, checked bool) (string, bool) {
	box := " "
	if checked {
		box = "x"
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		m := checklistRefPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ref, err := strconv.Atoi(m[4])
		if err != nil || ref != number {
			continue
		}
		updated := m[1] + box + m[3] + m[4] + m[5]
		if updated == line {
			return body, false
		}
		lines[i] = updated
		return strings.Join(lines, "\n"), true
	}
	return body, false
}
