package syntax

import (
	"testing"

	"github.com/octofhir/fshlint/internal/lexer"
)

func TestParseProfileProducesExpectedShape(t *testing.T) {
	t.Parallel()

	src := []byte(`Profile: MyPatient
Parent: Patient
Id: my-patient
Title: "My Patient"
* name 1..1 MS
* gender from MyGenderVS (required)
* active = true
`)

	tree := Parse(src, ParseOptions{URI: "test.fsh"})
	if len(tree.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", tree.Diagnostics)
	}

	root := tree.RootNode()
	if root == nil || root.Kind != KindDocument {
		t.Fatalf("expected root Document node, got %+v", root)
	}

	children := tree.ChildNodes(tree.Root)
	if len(children) != 1 {
		t.Fatalf("expected 1 top-level entity, got %d", len(children))
	}

	profile := tree.NodeByID(children[0])
	if profile.Kind != KindProfileDecl {
		t.Fatalf("expected ProfileDecl, got %s", KindName(profile.Kind))
	}

	var ruleKinds []NodeKind
	for _, cid := range tree.ChildNodes(children[0]) {
		n := tree.NodeByID(cid)
		switch n.Kind {
		case KindCardinalityRule, KindBindingRule, KindAssignmentRule:
			ruleKinds = append(ruleKinds, n.Kind)
		}
	}
	want := []NodeKind{KindCardinalityRule, KindBindingRule, KindAssignmentRule}
	if len(ruleKinds) != len(want) {
		t.Fatalf("rule kinds = %v, want %v", ruleKinds, want)
	}
	for i := range want {
		if ruleKinds[i] != want[i] {
			t.Fatalf("rule[%d] kind = %s, want %s", i, KindName(ruleKinds[i]), KindName(want[i]))
		}
	}
}

func TestParseMultipleEntitiesAndAlias(t *testing.T) {
	t.Parallel()

	src := []byte(`Alias: SCT = "http://snomed.info/sct"
ValueSet: MyVS
* codes from SCT
CodeSystem: MyCS
* #a "A"
`)
	tree := Parse(src, ParseOptions{URI: "test.fsh"})

	children := tree.ChildNodes(tree.Root)
	if len(children) != 3 {
		t.Fatalf("expected 3 top-level declarations, got %d: %+v", len(children), children)
	}
	gotKinds := []NodeKind{
		tree.NodeByID(children[0]).Kind,
		tree.NodeByID(children[1]).Kind,
		tree.NodeByID(children[2]).Kind,
	}
	want := []NodeKind{KindAliasDecl, KindValueSetDecl, KindCodeSystemDecl}
	for i := range want {
		if gotKinds[i] != want[i] {
			t.Fatalf("decl[%d] kind = %s, want %s", i, KindName(gotKinds[i]), KindName(want[i]))
		}
	}
}

func TestParseNoPanicOnMalformedInput(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("Profile:"),
		[]byte("Profile: X\n*"),
		[]byte("* 1..1"),
		[]byte("garbage tokens with no entity keyword"),
		{0xff, 0xfe},
	}

	for _, src := range inputs {
		tree := Parse(src, ParseOptions{})
		if tree == nil || tree.RootNode() == nil {
			t.Fatalf("expected non-nil tree/root for input %q", src)
		}
	}
}

func TestParseEveryByteCoveredByTokenStream(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: X\nParent: Y\n* name 1..1 MS\n")
	tree := Parse(src, ParseOptions{})

	if len(tree.Tokens) == 0 {
		t.Fatal("expected at least one token")
	}
	last := tree.Tokens[len(tree.Tokens)-1]
	if last.Kind != lexer.TokenEOF {
		t.Fatalf("expected final token to be EOF, got %s", last.Kind)
	}
	if int(last.Span.End) != len(src) {
		t.Fatalf("EOF span end = %d, want %d", last.Span.End, len(src))
	}

	for _, n := range tree.Nodes[1:] {
		if !n.Span.IsValid() {
			t.Fatalf("node %s has invalid span %s", KindName(n.Kind), n.Span)
		}
	}
}

func TestFixupParentsSetsParentIDs(t *testing.T) {
	t.Parallel()

	src := []byte("Profile: X\n* name 1..1 MS\n")
	tree := Parse(src, ParseOptions{})

	for _, id := range tree.ChildNodes(tree.Root) {
		n := tree.NodeByID(id)
		if n.Parent != tree.Root {
			t.Fatalf("expected parent of %s to be root, got %d", KindName(n.Kind), n.Parent)
		}
	}
}
