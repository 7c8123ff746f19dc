package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// Document formats a full syntax tree. Formatting fails closed: invalid
// UTF-8 or unrecoverable syntax diagnostics cause Document to refuse rather
// than guess at a plausible rendering of malformed input.
func Document(ctx context.Context, tree *syntax.Tree, opts Options) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if tree == nil {
		return Result{}, errors.New("nil syntax tree")
	}
	normOpts, err := normalizeOptions(opts)
	if err != nil {
		return Result{}, err
	}

	diags := append([]syntax.Diagnostic(nil), tree.Diagnostics...)
	policy, policyDiags := analyzeSourcePolicy(tree.Source)
	diags = append(diags, policyDiags...)

	if !policy.ValidUTF8 {
		return unsafeResult(diags, UnsafeReasonInvalidUTF8, "input contains invalid UTF-8 bytes")
	}
	if hasUnsafeSyntaxDiagnostics(tree.Diagnostics) {
		return unsafeResult(diags, UnsafeReasonSyntaxErrors, "syntax diagnostics present (fail-closed policy)")
	}

	out, err := formatSyntaxTree(tree, normOpts, policy)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Output:      out,
		Changed:     !bytes.Equal(out, tree.Source),
		Diagnostics: diags,
	}, nil
}

// Range formats the smallest format-safe declaration or statement that
// contains r, returning a single byte edit for that span — or no edits at
// all if the ancestor is already canonically formatted.
func Range(ctx context.Context, tree *syntax.Tree, r text.Span, opts Options) (RangeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return RangeResult{}, err
	}
	if tree == nil {
		return RangeResult{}, errors.New("nil syntax tree")
	}
	if err := r.Validate(); err != nil {
		return RangeResult{}, fmt.Errorf("invalid range: %w", err)
	}
	srcSpan := sourceSpan(tree.Source)
	if !srcSpan.ContainsSpan(r) {
		return RangeResult{}, fmt.Errorf("range %s out of bounds for source length %d", r, len(tree.Source))
	}

	normOpts, err := normalizeOptions(opts)
	if err != nil {
		return RangeResult{}, err
	}

	diags := append([]syntax.Diagnostic(nil), tree.Diagnostics...)
	policy, policyDiags := analyzeSourcePolicy(tree.Source)
	diags = append(diags, policyDiags...)

	if !policy.ValidUTF8 {
		res, err := unsafeResult(diags, UnsafeReasonInvalidUTF8, "input contains invalid UTF-8 bytes")
		return RangeResult{Diagnostics: res.Diagnostics}, err
	}
	if hasUnsafeSyntaxDiagnostics(tree.Diagnostics) {
		res, err := unsafeResult(diags, UnsafeReasonSyntaxErrors, "syntax diagnostics present (fail-closed policy)")
		return RangeResult{Diagnostics: res.Diagnostics}, err
	}

	ancestor, blockingDiag, err := findRangeFormatAncestor(tree, r)
	if err != nil {
		return RangeResult{Diagnostics: append(diags, blockingDiag)}, err
	}

	n := tree.NodeByID(ancestor)
	formatted, err := formatNodeRange(tree, ancestor, normOpts, policy)
	if err != nil {
		return RangeResult{Diagnostics: diags}, err
	}

	original := tree.Source[n.Span.Start:n.Span.End]
	if bytes.Equal(formatted, original) {
		return RangeResult{Diagnostics: diags}, nil
	}

	return RangeResult{
		Edits: []text.ByteEdit{{
			Span:    n.Span,
			NewText: formatted,
		}},
		Diagnostics: diags,
	}, nil
}

// Source parses and formats source bytes in one step.
func Source(ctx context.Context, src []byte, uri string, opts Options) (Result, error) {
	tree := syntax.Parse(src, syntax.ParseOptions{URI: uri})
	return Document(ctx, tree, opts)
}

func hasUnsafeSyntaxDiagnostics(diags []syntax.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == syntax.SeverityError && d.Source != "formatter" {
			return true
		}
	}
	return false
}

func unsafeResult(diags []syntax.Diagnostic, reason UnsafeReason, msg string) (Result, error) {
	return Result{
			Output:      nil,
			Changed:     false,
			Diagnostics: diags,
		}, &ErrUnsafeToFormat{
			Reason:  reason,
			Message: msg,
		}
}
