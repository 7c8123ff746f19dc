// Package lint runs native and pattern-DSL rules over parsed FSH syntax
// trees and produces diagnostics.
package lint

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/semantic"
)

// DiagnosticSource identifies diagnostics produced by this package.
const DiagnosticSource = "fshlint"

// Rule is a lint check that can emit diagnostics for one file's syntax tree.
//
// Both native (tree-walking Go) rules and compiled pattern-DSL rules
// implement this single interface, so the Runner can treat them
// polymorphically; native rules satisfy it directly, pattern rules are
// adapted by the pattern package's rule wrapper.
type Rule interface {
	ID() string
	Description() string
	DefaultSeverity() diag.Severity
	Category() diag.Category
	// Blocking reports whether this rule's findings must be resolved before
	// later, non-blocking rules' findings are safe to trust (for example a
	// rule that flags unparseable constructs). Blocking rules run first.
	Blocking() bool
	Check(ctx context.Context, doc *semantic.Document) ([]diag.Diagnostic, error)
}

// Runner executes lint rules against a file's semantic document and
// returns aggregated, sorted diagnostics.
type Runner struct {
	blocking    []Rule
	nonBlocking []Rule
}

// NewRunner builds a lint runner from a rule set, partitioning rules by
// their Blocking() metadata. Order within each partition is preserved.
func NewRunner(rules ...Rule) *Runner {
	r := &Runner{}
	for _, rule := range rules {
		if rule.Blocking() {
			r.blocking = append(r.blocking, rule)
		} else {
			r.nonBlocking = append(r.nonBlocking, rule)
		}
	}
	return r
}

// NewDefaultRunner builds the runner for the built-in rule catalog.
func NewDefaultRunner() *Runner {
	return NewRunner(DefaultRules()...)
}

// Run executes all configured rules against doc and returns a
// deterministically sorted diagnostic list. A panicking rule is isolated:
// it is converted into a single internal-error diagnostic rather than
// aborting the whole run, so one broken rule cannot blind the rest of the
// catalog.
func (r *Runner) Run(ctx context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	if doc == nil {
		return nil, errors.New("nil semantic document")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]diag.Diagnostic, 0, 16)
	for _, rule := range slices.Concat(r.blocking, r.nonBlocking) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diags, err := r.runOne(ctx, rule, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, diags...)
	}

	diag.Sort(out)
	return out, nil
}

func (r *Runner) runOne(ctx context.Context, rule Rule, doc *semantic.Document) (diags []diag.Diagnostic, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			diags = []diag.Diagnostic{{
				RuleID:   rule.ID(),
				Category: diag.CategoryCorrectness,
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("rule %s panicked: %v", rule.ID(), rec),
				URI:      doc.Tree.URI,
				Span:     doc.Tree.RootNode().Span,
			}}
			err = nil
		}
	}()

	found, runErr := rule.Check(ctx, doc)
	if runErr != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID(), runErr)
	}
	for i := range found {
		if found[i].RuleID == "" {
			found[i].RuleID = rule.ID()
		}
		if found[i].Category == "" {
			found[i].Category = rule.Category()
		}
		if found[i].Severity == 0 {
			found[i].Severity = rule.DefaultSeverity()
		}
		if found[i].URI == "" {
			found[i].URI = doc.Tree.URI
		}
		found[i].AutoFixable = found[i].AutoFixable || len(found[i].Suggestions) > 0
	}
	return found, nil
}

// Rules returns all configured rules, blocking rules first.
func (r *Runner) Rules() []Rule {
	return slices.Concat(r.blocking, r.nonBlocking)
}
