// Package autofix computes and applies conflict-free subsets of diagnostic
// suggestions to source text (spec §4.6 "Autofix Engine").
//
// The engine is deliberately separate from both the rule runtime and the
// formatter: it consumes the diagnostic list a lint run already produced and
// never re-parses or re-checks anything itself. Adapted from the teacher's
// internal/text/edits.go ApplyEdits, extended with the severity/source-order
// conflict-ranking policy the spec describes.
package autofix

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/text"
)

// ErrMalformedSpan is returned when a suggestion's edit span is out of
// bounds or reversed; per spec §4.6 "Failure modes" the engine leaves the
// source unchanged rather than attempt a partial application.
type ErrMalformedSpan struct {
	RuleID string
	Span   text.Span
	Reason string
}

func (e *ErrMalformedSpan) Error() string {
	return fmt.Sprintf("autofix: malformed span %s for rule %s: %s", e.Span, e.RuleID, e.Reason)
}

// Mode selects which suggestions are eligible for application (spec §4.6
// step 1, "Filter by safety").
type Mode int

const (
	// SafeOnly keeps suggestions with Safe == true.
	SafeOnly Mode = iota
	// All keeps every suggestion regardless of its Safe flag.
	All
)

// candidate is one suggestion paired with the diagnostic metadata needed to
// rank it against others: its originating rule's severity and its position
// in the input diagnostic list (source order).
type candidate struct {
	ruleID     string
	severity   diag.Severity
	sourceOrd  int
	suggestion diag.CodeSuggestion
}

// span returns the smallest span covering every edit in the candidate's
// suggestion, used for the overlap test in step 2.
func (c candidate) span() (text.Span, bool) {
	if len(c.suggestion.Edits) == 0 {
		return text.Span{}, false
	}
	span := c.suggestion.Edits[0].Span
	for _, e := range c.suggestion.Edits[1:] {
		if e.Span.Start < span.Start {
			span.Start = e.Span.Start
		}
		if e.Span.End > span.End {
			span.End = e.Span.End
		}
	}
	return span, true
}

// overlaps reports whether two candidates' spans overlap under the
// half-open rule spec §4.6 step 2 gives: a.start < b.end ∧ b.start < a.end.
func overlaps(a, b text.Span) bool {
	return a.Start < b.End && b.Start < a.End
}

// Discarded records a suggestion that lost a conflict during resolution.
type Discarded struct {
	RuleID      string
	Description string
	Span        text.Span
	// WinningRuleID names the higher-priority suggestion this one conflicted
	// with and lost to.
	WinningRuleID string
}

// Plan is the computed result of filtering, ranking, and resolving
// conflicts among a diagnostic list's suggestions, before application.
// Stamped with a fresh ID so a caller can correlate a preview with its
// eventual application across a request/response boundary (spec §B).
type Plan struct {
	ID        uuid.UUID
	Mode      Mode
	Accepted  []diag.CodeSuggestion
	Discarded []Discarded
}

// Compute filters diagnostics' suggestions by mode, ranks the survivors by
// (severity descending, source order ascending), and greedily resolves span
// conflicts, without touching the source text (spec §4.6 steps 1-3).
func Compute(diagnostics []diag.Diagnostic, mode Mode) (Plan, error) {
	plan := Plan{ID: uuid.New(), Mode: mode}

	var candidates []candidate
	ord := 0
	for _, d := range diagnostics {
		for _, s := range d.Suggestions {
			if mode == SafeOnly && !s.Safe {
				continue
			}
			candidates = append(candidates, candidate{
				ruleID:     d.RuleID,
				severity:   d.Severity,
				sourceOrd:  ord,
				suggestion: s,
			})
			ord++
		}
	}

	for _, c := range candidates {
		if _, ok := c.span(); !ok {
			continue
		}
		for _, e := range c.suggestion.Edits {
			if !e.Span.IsValid() {
				return Plan{}, &ErrMalformedSpan{RuleID: c.ruleID, Span: e.Span, Reason: "reversed or negative span"}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.severity != b.severity {
			return a.severity < b.severity // Error (1) before Warning (2) before ...
		}
		return a.sourceOrd < b.sourceOrd
	})

	var accepted []candidate
	for _, c := range candidates {
		cSpan, ok := c.span()
		if !ok {
			continue
		}
		conflict := false
		for _, a := range accepted {
			aSpan, _ := a.span()
			if overlaps(cSpan, aSpan) {
				conflict = true
				plan.Discarded = append(plan.Discarded, Discarded{
					RuleID:        c.ruleID,
					Description:   c.suggestion.Description,
					Span:          cSpan,
					WinningRuleID: a.ruleID,
				})
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c)
		}
	}

	for _, a := range accepted {
		plan.Accepted = append(plan.Accepted, a.suggestion)
	}
	return plan, nil
}

// Apply splices every accepted suggestion's edits into src in descending
// start-offset order, so earlier splices never invalidate later offsets
// (spec §4.6 step 4).
func Apply(src []byte, plan Plan) ([]byte, error) {
	var edits []diag.TextEdit
	for _, s := range plan.Accepted {
		edits = append(edits, s.Edits...)
	}
	if len(edits) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	srcLen := text.ByteOffset(len(src))
	for _, e := range edits {
		if err := e.Span.Validate(); err != nil {
			return nil, &ErrMalformedSpan{Span: e.Span, Reason: err.Error()}
		}
		if e.Span.End > srcLen {
			return nil, &ErrMalformedSpan{Span: e.Span, Reason: "span exceeds source length"}
		}
	}

	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].Span.Start > edits[j].Span.Start
	})

	out := append([]byte(nil), src...)
	for _, e := range edits {
		var buf []byte
		buf = append(buf, out[:e.Span.Start]...)
		buf = append(buf, []byte(e.NewText)...)
		buf = append(buf, out[e.Span.End:]...)
		out = buf
	}
	return out, nil
}

// ApplySafe is the spec §6 "Autofix API" apply_safe(diagnostics, source)
// operation: compute a safe-only plan and apply it in one step.
func ApplySafe(diagnostics []diag.Diagnostic, src []byte) ([]byte, Plan, error) {
	plan, err := Compute(diagnostics, SafeOnly)
	if err != nil {
		return nil, Plan{}, err
	}
	out, err := Apply(src, plan)
	if err != nil {
		return nil, Plan{}, err
	}
	return out, plan, nil
}

// ApplyAll is the spec §6 apply_all(diagnostics, source) operation: compute
// a plan over every suggestion regardless of safety and apply it.
func ApplyAll(diagnostics []diag.Diagnostic, src []byte) ([]byte, Plan, error) {
	plan, err := Compute(diagnostics, All)
	if err != nil {
		return nil, Plan{}, err
	}
	out, err := Apply(src, plan)
	if err != nil {
		return nil, Plan{}, err
	}
	return out, plan, nil
}

// ErrEmptyPlan describes a plan with no accepted suggestions. No function in
// this package returns it: Preview renders such a plan as a Diff with no
// hunks and a nil error.
var ErrEmptyPlan = errors.New("autofix: plan has no accepted suggestions")
