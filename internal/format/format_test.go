package format

import (
	"bytes"
	"context"
	"testing"

	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

func TestNormalizeOptionsDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	got, err := normalizeOptions(Options{})
	if err != nil {
		t.Fatalf("normalizeOptions default: %v", err)
	}
	if got.LineWidth != defaultLineWidth {
		t.Fatalf("LineWidth = %d, want %d", got.LineWidth, defaultLineWidth)
	}
	if got.Indent != defaultIndent {
		t.Fatalf("Indent = %q, want %q", got.Indent, defaultIndent)
	}
	if got.MaxBlankLines != defaultMaxBlankLines {
		t.Fatalf("MaxBlankLines = %d, want %d", got.MaxBlankLines, defaultMaxBlankLines)
	}

	if _, err := normalizeOptions(Options{LineWidth: -1}); err == nil {
		t.Fatal("expected error for negative LineWidth")
	}
	if _, err := normalizeOptions(Options{MaxBlankLines: -1}); err == nil {
		t.Fatal("expected error for negative MaxBlankLines")
	}
}

func TestDocumentPreservesBOMAndReportsMixedNewlines(t *testing.T) {
	t.Parallel()

	src := []byte("\xEF\xBB\xBFProfile: A\r\nParent: Patient\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "test.fsh"})

	res, err := Document(context.Background(), tree, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if len(res.Output) == 0 {
		t.Fatal("expected formatted output")
	}
	if !bytes.HasPrefix(res.Output, []byte("\xEF\xBB\xBF")) {
		t.Fatalf("expected BOM preserved, got %q", res.Output)
	}

	var sawMixed bool
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterMixedNewlines {
			sawMixed = true
			break
		}
	}
	if !sawMixed {
		t.Fatal("expected mixed newline formatter diagnostic")
	}
}

func TestDocumentRefusesInvalidUTF8(t *testing.T) {
	t.Parallel()

	tree := &syntax.Tree{Source: []byte{0xff}}
	res, err := Document(context.Background(), tree, Options{})
	if err == nil {
		t.Fatal("expected ErrUnsafeToFormat")
	}
	if !IsErrUnsafeToFormat(err) {
		t.Fatalf("unexpected error type: %T %v", err, err)
	}

	var unsafe *ErrUnsafeToFormat
	if !AsUnsafeToFormat(err, &unsafe) {
		t.Fatal("AsUnsafeToFormat = false")
	}
	if unsafe.Reason != UnsafeReasonInvalidUTF8 {
		t.Fatalf("unsafe reason = %q, want %q", unsafe.Reason, UnsafeReasonInvalidUTF8)
	}

	var sawInvalidUTF8 bool
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterInvalidUTF8 {
			sawInvalidUTF8 = true
			break
		}
	}
	if !sawInvalidUTF8 {
		t.Fatal("expected invalid UTF-8 formatter diagnostic")
	}
}

func TestSourceRefusesUnsafeSyntaxAndReturnsDiagnostics(t *testing.T) {
	t.Parallel()

	res, err := Source(context.Background(), []byte("Profile: A\nParent: \"unterminated\n"), "test.fsh", Options{})
	if err == nil {
		t.Fatal("expected unsafe formatting refusal")
	}
	if !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %T %v", err, err)
	}

	var unsafe *ErrUnsafeToFormat
	if !AsUnsafeToFormat(err, &unsafe) {
		t.Fatal("AsUnsafeToFormat = false")
	}
	if unsafe.Reason != UnsafeReasonSyntaxErrors {
		t.Fatalf("unsafe reason = %q, want %q", unsafe.Reason, UnsafeReasonSyntaxErrors)
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected parse diagnostics in result")
	}
}

func TestDocumentFormatsWellFormedInputIdempotently(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\nId: my-patient\n* name 1..1 MS\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "test.fsh"})

	res, err := Document(context.Background(), tree, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	tree2 := syntax.Parse(res.Output, syntax.ParseOptions{URI: "test.fsh"})
	res2, err := Document(context.Background(), tree2, Options{})
	if err != nil {
		t.Fatalf("Document (second pass): %v", err)
	}
	if !bytes.Equal(res.Output, res2.Output) {
		t.Fatalf("formatting is not idempotent:\n--- first ---\n%s\n--- second ---\n%s", res.Output, res2.Output)
	}
}

func TestDocumentAlignsCaretRulesWhenEnabled(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n* ^short = \"s\"\n* name ^short = \"longer prefix\"\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "test.fsh"})

	res, err := Document(context.Background(), tree, Options{AlignCarets: true})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	lines := bytes.Split(res.Output, []byte("\n"))
	var caretLines [][]byte
	for _, l := range lines {
		if bytes.Contains(l, []byte("^")) {
			caretLines = append(caretLines, l)
		}
	}
	if len(caretLines) != 2 {
		t.Fatalf("expected 2 caret-value rule lines, got %d: %q", len(caretLines), lines)
	}
	col0 := bytes.IndexByte(caretLines[0], '^')
	col1 := bytes.IndexByte(caretLines[1], '^')
	if col0 != col1 {
		t.Fatalf("caret columns not aligned: %d vs %d (%q / %q)", col0, col1, caretLines[0], caretLines[1])
	}
}

func TestDocumentLeavesCaretRulesUnalignedByDefault(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n* ^short = \"s\"\n* name ^short = \"longer prefix\"\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "test.fsh"})

	res, err := Document(context.Background(), tree, Options{})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	lines := bytes.Split(res.Output, []byte("\n"))
	var caretLines [][]byte
	for _, l := range lines {
		if bytes.Contains(l, []byte("^")) {
			caretLines = append(caretLines, l)
		}
	}
	if len(caretLines) != 2 {
		t.Fatalf("expected 2 caret-value rule lines, got %d: %q", len(caretLines), lines)
	}
	if bytes.IndexByte(caretLines[0], '^') == bytes.IndexByte(caretLines[1], '^') {
		t.Fatalf("expected differing caret columns without AlignCarets, got %q / %q", caretLines[0], caretLines[1])
	}
}

func TestRangeReturnsNoEditsForSafeInputTrackA(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "test.fsh"})
	start := bytes.Index(src, []byte("Patient\n"))
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 7)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(res.Edits) != 0 {
		t.Fatalf("expected no edits for already-formatted declaration range, got %d", len(res.Edits))
	}
}
