package autofix

import (
	"fmt"
	"strings"

	"github.com/octofhir/fshlint/internal/diag"
)

// Diff is a unified-diff-shaped rendering of what a Plan would change,
// without mutating the source (spec §6 "Autofix API" preview(...) -> diff).
type Diff struct {
	PlanID string
	Hunks  []Hunk
}

// Hunk describes one contiguous replaced region in terms of line numbers in
// the original source, mirroring a unified diff's "@@ -l,n +l,n @@" header
// without the surrounding context lines (the autofix engine has no notion
// of a configurable context width; that is a CLI rendering concern).
type Hunk struct {
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Removed   string
	Added     string
}

// Preview computes a Plan for mode and renders its accepted suggestions as
// a Diff against src, without applying them (spec §6 preview(diagnostics,
// source, mode) -> diff).
func Preview(diagnostics []diag.Diagnostic, src []byte, mode Mode) (Diff, Plan, error) {
	plan, err := Compute(diagnostics, mode)
	if err != nil {
		return Diff{}, Plan{}, err
	}

	diffOut := Diff{PlanID: plan.ID.String()}
	for _, s := range plan.Accepted {
		for _, e := range s.Edits {
			startLine := lineOf(src, int(e.Span.Start))
			endLine := lineOf(src, int(e.Span.End))
			diffOut.Hunks = append(diffOut.Hunks, Hunk{
				StartLine: startLine,
				EndLine:   endLine,
				Removed:   string(src[e.Span.Start:e.Span.End]),
				Added:     e.NewText,
			})
		}
	}
	return diffOut, plan, nil
}

func lineOf(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return 1 + strings.Count(string(src[:offset]), "\n")
}

// String renders the diff in a compact "@@ line L-L @@ -removed +added"
// form suitable for a CLI consumer; not a strict unified-diff implementation
// since spec §6 only requires a "diff-shaped" value, not a specific format.
func (d Diff) String() string {
	var b strings.Builder
	for _, h := range d.Hunks {
		fmt.Fprintf(&b, "@@ line %d-%d @@\n-%s\n+%s\n", h.StartLine, h.EndLine, h.Removed, h.Added)
	}
	return b.String()
}
