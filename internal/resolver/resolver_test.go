package resolver_test

import (
	"strings"
	"testing"

	"togglsync/internal/model"
	"togglsync/internal/resolver"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		description string
		kind        model.RefKind
		identifier  string
		title       string
	}{
		{"hash with colon", "#42: Fix login bug", model.HashNumber, "42", "Fix login bug"},
		{"hash without colon", "#42 Fix login bug", model.HashNumber, "42", "Fix login bug"},
		{"bracketed project code", "[PROJ-123] Add dashboard", model.ProjectCode, "PROJ-123", "Add dashboard"},
		{"parenthesized project code", "(PROJ-123) Add dashboard", model.ProjectCode, "PROJ-123", "Add dashboard"},
		{"issue prefix beats bare hash", "Issue #55: Update docs", model.HashNumber, "55", "Update docs"},
		{"issue prefix case-insensitive", "issue #7 tidy up", model.HashNumber, "7", "tidy up"},
		{"bare project code", "PROJ-123 refactor parser", model.ProjectCode, "PROJ-123", "refactor parser"},
		{"project code with colon", "PROJ-123: refactor parser", model.ProjectCode, "PROJ-123", "refactor parser"},
		{"project code with dash separator", "PROJ-123 - refactor parser", model.ProjectCode, "PROJ-123", "refactor parser"},
		{"project code upper-cased", "proj-123 refactor parser", model.ProjectCode, "PROJ-123", "refactor parser"},
		{"leading number colon", "123: write release notes", model.SimpleNumber, "123", "write release notes"},
		{"reference mid-string", "Pairing on #19 review", model.HashNumber, "19", "Pairing on review"},
		{"earliest position wins", "ABC-9 then #42 later", model.ProjectCode, "ABC-9", "then #42 later"},
		{"token only, empty title", "#300", model.HashNumber, "300", ""},
		{"bracketed code only", "[OPS-77]", model.ProjectCode, "OPS-77", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := resolver.Resolve(tt.description)
			if !ok {
				t.Fatalf("Resolve(%q) found no reference", tt.description)
			}
			if ref.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", ref.Kind, tt.kind)
			}
			if ref.Identifier != tt.identifier {
				t.Errorf("Identifier = %q, want %q", ref.Identifier, tt.identifier)
			}
			if ref.Title != tt.title {
				t.Errorf("Title = %q, want %q", ref.Title, tt.title)
			}
		})
	}
}

func TestResolveNoReference(t *testing.T) {
	for _, description := range []string{
		"",
		"   ",
		"lunch break",
		"weekly team meeting",
		"2026-01 planning",       // year-month is not a project code
		"well-known regression",  // hyphenated word without digits
		"42 minutes of debugging", // number without colon
	} {
		if ref, ok := resolver.Resolve(description); ok {
			t.Errorf("Resolve(%q) = %+v, want no reference", description, ref)
		}
	}
}

func TestResolveTitleNeverContainsMatch(t *testing.T) {
	descriptions := []string{
		"#42: Fix login bug",
		"[PROJ-123] Add dashboard",
		"Issue #55: Update docs",
		"PROJ-123 - refactor parser",
		"123: write release notes",
	}
	for _, d := range descriptions {
		ref, ok := resolver.Resolve(d)
		if !ok {
			t.Fatalf("Resolve(%q) found no reference", d)
		}
		if ref.Title != "" && strings.Contains(strings.ToLower(ref.Title), strings.ToLower(ref.Identifier)) {
			t.Errorf("Resolve(%q): title %q still contains identifier %q", d, ref.Title, ref.Identifier)
		}
	}
}
