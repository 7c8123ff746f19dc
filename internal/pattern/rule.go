package pattern

import (
	"context"
	"fmt"

	"github.com/octofhir/fshlint/internal/ast"
	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/semantic"
)

// Rule adapts a compiled pattern into internal/lint's Rule interface, so a
// pattern-DSL check can sit in the same catalog and runner as a native rule
// (spec §4.4 "native + pattern-DSL variants").
type Rule struct {
	id       string
	message  string
	severity diag.Severity
	category diag.Category
	blocking bool
	ir       *IR
}

// NewRule compiles source and wraps it as a lint.Rule-compatible check.
func NewRule(id, message string, severity diag.Severity, category diag.Category, blocking bool, source string) (Rule, error) {
	ir, err := Compile(source)
	if err != nil {
		return Rule{}, fmt.Errorf("compile pattern rule %s: %w", id, err)
	}
	return Rule{
		id:       id,
		message:  message,
		severity: severity,
		category: category,
		blocking: blocking,
		ir:       ir,
	}, nil
}

// ID returns the rule's stable category/kebab-name identifier.
func (r Rule) ID() string { return r.id }

// Description returns the rule's human-readable summary.
func (r Rule) Description() string { return r.message }

// DefaultSeverity returns the rule's configured default severity.
func (r Rule) DefaultSeverity() diag.Severity { return r.severity }

// Category returns the rule's catalog category.
func (r Rule) Category() diag.Category { return r.category }

// Blocking reports whether this rule must pass before non-blocking rules run.
func (r Rule) Blocking() bool { return r.blocking }

// Check runs the compiled pattern against doc and converts each match into a
// diagnostic, attaching any rewrite-clause suggestions as CodeSuggestions.
func (r Rule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	overlay := ast.NewDocument(doc.Tree)
	matches := Run(r.ir, overlay)

	out := make([]diag.Diagnostic, 0, len(matches))
	for _, m := range matches {
		d := diag.Diagnostic{
			RuleID:   r.id,
			Category: r.category,
			Severity: r.severity,
			Message:  r.message,
			Span:     m.Span,
		}
		if suggestions := Effects(r.ir, m, doc.Tree); len(suggestions) > 0 {
			d.Suggestions = suggestions
			d.AutoFixable = true
		}
		out = append(out, d)
	}
	return out, nil
}
