package format

import (
	"bytes"
	"context"
	"testing"

	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

func TestRangeWidensToRuleLineAncestorAndReturnsEdit(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n* name  1..1   MS\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "x.fsh"})

	start := bytes.Index(src, []byte("1..1"))
	if start < 0 {
		t.Fatal("failed to find range marker")
	}
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 4)}

	got, err := Range(context.Background(), tree, r, Options{})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(got.Edits))
	}

	edit := got.Edits[0]
	n := findNodeByKind(tree, syntax.KindCardinalityRule)
	if n == nil {
		t.Fatal("expected a CardinalityRule node in the tree")
	}
	if edit.Span != n.Span {
		t.Fatalf("edit span = %s, want widened to rule span %s", edit.Span, n.Span)
	}

	out, err := text.ApplyEdits(src, got.Edits)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	want := []byte("Profile: MyPatient\nParent: Patient\n* name 1..1 MS\n")
	if !bytes.Equal(out, want) {
		t.Fatalf("range formatted output mismatch\n--- got ---\n%s\n--- want ---\n%s", out, want)
	}
}

func TestRangeRefusesWhenNoSafeAncestorExists(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n\n\nProfile: OtherPatient\nParent: Patient\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "x.fsh"})

	blankStart := bytes.Index(src, []byte("\n\n\n"))
	if blankStart < 0 {
		t.Fatal("failed to find blank run")
	}
	r := text.Span{Start: text.ByteOffset(blankStart + 1), End: text.ByteOffset(blankStart + 2)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err == nil || !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %v", err)
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected formatter blocking diagnostic")
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterRangeNoSafeAncestor {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected %q diagnostic, got %+v", DiagnosticFormatterRangeNoSafeAncestor, res.Diagnostics)
	}
}

func TestRangeRefusesUnboundedAncestorCoverage(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: MyPatient\nParent: Patient\n* name 1..1 MS\n")
	tree := syntax.Parse(src, syntax.ParseOptions{URI: "x.fsh"})

	n := findNodeByKind(tree, syntax.KindCardinalityRule)
	if n == nil {
		t.Fatal("expected a CardinalityRule node in the tree")
	}
	// Corrupt the node's recorded span so it no longer matches its token
	// coverage, simulating a node whose bounds cannot be trusted.
	tree.Nodes[n.ID].Span.End--

	start := bytes.Index(src, []byte("name"))
	r := text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(start + 4)}

	res, err := Range(context.Background(), tree, r, Options{})
	if err == nil || !IsErrUnsafeToFormat(err) {
		t.Fatalf("expected ErrUnsafeToFormat, got %v", err)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == DiagnosticFormatterRangeUnboundedNode {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected %q diagnostic, got %+v", DiagnosticFormatterRangeUnboundedNode, res.Diagnostics)
	}
}

func findNodeByKind(tree *syntax.Tree, kind syntax.NodeKind) *syntax.Node {
	for i := 1; i < len(tree.Nodes); i++ {
		n := tree.NodeByID(syntax.NodeID(i))
		if n != nil && n.Kind == kind {
			return n
		}
	}
	return nil
}
