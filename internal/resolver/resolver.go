// Package resolver infers a structured ticket reference from the free-text
// description of a time entry.
package resolver

import (
	"regexp"
	"strings"

	"togglsync/internal/model"
)

// pattern pairs a regular expression with the reference kind it produces.
// The identifier is always capture group 1.
type pattern struct {
	re   *regexp.Regexp
	kind model.RefKind
}

// patterns is the priority table. Order matters: earlier entries are more
// specific and break position ties against later, more general ones. Among
// patterns that match at all, the one matching earliest in the description
// wins; ties go to the lower table index.
var patterns = []pattern{
	// [PROJ-123] or (PROJ-123)
	{regexp.MustCompile(`[\[(]([A-Za-z][A-Za-z0-9]+-[0-9]+)[\])]`), model.ProjectCode},
	// Issue #123: or Issue #123
	{regexp.MustCompile(`(?i)\bissue\s+#([0-9]+):?`), model.HashNumber},
	// #123 or #123:
	{regexp.MustCompile(`#([0-9]+):?`), model.HashNumber},
	// PROJ-123, PROJ-123:, PROJ-123 - (word-boundary delimited)
	{regexp.MustCompile(`\b([A-Za-z][A-Za-z0-9]+-[0-9]+)\b:?`), model.ProjectCode},
	// 123: description (most prone to false positives, tried last)
	{regexp.MustCompile(`^\s*([0-9]+):`), model.SimpleNumber},
}

// separators are stripped from the residual title where they directly
// adjoin the matched reference token.
const separators = " \t:-[]()"

// Resolve parses description and returns the best ticket reference in it.
// The second return value is false when no pattern matches or the
// description is empty; that is a normal outcome, not an error.
func Resolve(description string) (model.TicketReference, bool) {
	if strings.TrimSpace(description) == "" {
		return model.TicketReference{}, false
	}

	best := -1
	var bestLoc []int
	for i, p := range patterns {
		loc := p.re.FindStringSubmatchIndex(description)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < bestLoc[0] {
			best = i
			bestLoc = loc
		}
	}
	if best == -1 {
		return model.TicketReference{}, false
	}

	p := patterns[best]
	identifier := description[bestLoc[2]:bestLoc[3]]
	if p.kind == model.ProjectCode {
		identifier = strings.ToUpper(identifier)
	}

	return model.TicketReference{
		Kind:       p.kind,
		Identifier: identifier,
		Title:      residualTitle(description, bestLoc[0], bestLoc[1]),
	}, true
}

// residualTitle removes the matched span [start, end) plus any directly
// adjacent separator characters, then collapses whitespace.
func residualTitle(description string, start, end int) string {
	for start > 0 && strings.ContainsRune(separators, rune(description[start-1])) {
		start--
	}
	for end < len(description) && strings.ContainsRune(separators, rune(description[end])) {
		end++
	}
	rest := description[:start] + " " + description[end:]
	return strings.Join(strings.Fields(rest), " ")
}
