// Package diag defines the shared diagnostic and autofix-suggestion model
// produced by the lint and pattern engines and consumed by the autofix
// engine, the formatter's diagnostic passthrough, and the CLI renderers.
package diag

import (
	"sort"

	"github.com/octofhir/fshlint/internal/text"
)

// Severity is the severity of a diagnostic.
type Severity uint8

// Severity levels, ordered from most to least severe.
const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Category groups rules by the concern they check, mirroring the catalog
// sections rules are organized under.
type Category string

// Category values used by the built-in rule catalog.
const (
	CategoryCorrectness  Category = "correctness"
	CategoryStyle        Category = "style"
	CategoryBestPractice Category = "best-practice"
	CategoryDocumentation Category = "documentation"
)

// RelatedInfo adds secondary context (e.g. the conflicting definition site)
// to a diagnostic.
type RelatedInfo struct {
	URI     string
	Span    text.Span
	Message string
}

// TextEdit is a single atomic byte-range replacement.
type TextEdit struct {
	Span    text.Span
	NewText string
}

// CodeSuggestion is a named, independently applicable group of edits.
type CodeSuggestion struct {
	Description string
	Edits       []TextEdit
	// Safe reports whether the suggestion is safe to apply without review,
	// i.e. it preserves the resource's validation semantics. Unsafe
	// suggestions are excluded from `--fix` runs unless `--fix-unsafe` (or
	// the autofix engine's "all" safety mode) is requested.
	Safe bool
}

// Diagnostic is one lint/pattern finding.
type Diagnostic struct {
	RuleID      string
	Category    Category
	Severity    Severity
	Message     string
	URI         string
	Span        text.Span
	Related     []RelatedInfo
	Suggestions []CodeSuggestion
	// AutoFixable reports whether at least one Suggestion can be applied by
	// the autofix engine. Kept denormalized from len(Suggestions) > 0 so
	// rules can explicitly suppress autofix eligibility.
	AutoFixable bool
}

// HasFix reports whether the diagnostic carries at least one suggestion.
func (d Diagnostic) HasFix() bool {
	return d.AutoFixable && len(d.Suggestions) > 0
}

// Sort orders diagnostics deterministically: by URI, then span start/end,
// then severity (most severe first), then rule ID, for stable CLI/JSON output.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.RuleID < b.RuleID
	})
}

// CountBySeverity tallies diagnostics per severity level.
func CountBySeverity(diags []Diagnostic) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, d := range diags {
		counts[d.Severity]++
	}
	return counts
}
