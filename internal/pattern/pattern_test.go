package pattern

import (
	"testing"

	"github.com/octofhir/fshlint/internal/ast"
	"github.com/octofhir/fshlint/internal/syntax"
)

func parseOverlay(t *testing.T, src string) ast.Document {
	t.Helper()
	tree := syntax.Parse([]byte(src), syntax.ParseOptions{URI: "test.fsh"})
	return ast.NewDocument(tree)
}

func TestCompileCachesByExactSourceText(t *testing.T) {
	t.Parallel()

	src := `Profile: $p where { $p.name <: ` + "`^Patient`" + ` }`
	a, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	b, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if a != b {
		t.Fatal("expected second Compile of identical source to return the cached *IR")
	}
}

func TestCompileRejectsUnboundVariable(t *testing.T) {
	t.Parallel()

	_, err := Compile(`Profile: $p where { $other.name == "X" }`)
	if err == nil {
		t.Fatal("expected compile error for unbound $other")
	}
}

func TestCompileRejectsUndefinedFunction(t *testing.T) {
	t.Parallel()

	_, err := Compile(`Profile: $p where { not_a_real_fn($p) }`)
	if err == nil {
		t.Fatal("expected compile error for undefined function")
	}
}

func TestCompileRejectsInvalidRegex(t *testing.T) {
	t.Parallel()

	_, err := Compile(`Profile: $p where { $p.name <: ` + "`(unterminated`" + ` }`)
	if err == nil {
		t.Fatal("expected compile error for invalid regex")
	}
}

func TestRunMatchesProfilesByNameRegex(t *testing.T) {
	t.Parallel()

	doc := parseOverlay(t, `Profile: MyPatient
Parent: Patient

Profile: LabResult
Parent: Observation
`)

	ir, err := Compile(`Profile: $p where { $p.name <: ` + "`^My`" + ` }`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	matches := Run(ir, doc)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	name, _ := matches[0].Bindings["p"].Name().Get()
	if name != "MyPatient" {
		t.Fatalf("matched entity name = %q, want MyPatient", name)
	}
}

func TestRunIsKebabCasePredicate(t *testing.T) {
	t.Parallel()

	doc := parseOverlay(t, `Profile: MyPatient
Parent: Patient
Id: my-patient

Profile: OtherPatient
Parent: Patient
Id: OtherPatient
`)

	ir, err := Compile(`Profile: $p where { not is_kebab_case($p.id) }`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	matches := Run(ir, doc)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	name, _ := matches[0].Bindings["p"].Name().Get()
	if name != "OtherPatient" {
		t.Fatalf("matched entity name = %q, want OtherPatient", name)
	}
}

func TestRunAndCombinatorRequiresBothSides(t *testing.T) {
	t.Parallel()

	doc := parseOverlay(t, `Profile: MyPatient
Parent: Patient
Title: "My Patient"

Profile: OtherPatient
Parent: Observation
`)

	ir, err := Compile(`Profile: $p where { $p.parent == "Patient" and $p.title != "" }`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	matches := Run(ir, doc)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	name, _ := matches[0].Bindings["p"].Name().Get()
	if name != "MyPatient" {
		t.Fatalf("matched entity name = %q, want MyPatient", name)
	}
}

func TestEffectsProducesUnsafeRewriteForNameField(t *testing.T) {
	t.Parallel()

	doc := parseOverlay(t, `Profile: myPatient
Parent: Patient
`)
	tree := doc.Tree()

	ir, err := Compile(`Profile: $p => rewrite($p.name) => to_pascal_case($p.name)`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	matches := Run(ir, doc)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	suggestions := Effects(ir, matches[0], tree)
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	s := suggestions[0]
	if s.Safe {
		t.Fatal("renaming an entity's own name should never be marked safe")
	}
	if len(s.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(s.Edits))
	}
	if s.Edits[0].NewText != "MyPatient" {
		t.Fatalf("edit.NewText = %q, want MyPatient", s.Edits[0].NewText)
	}
}

func TestEffectsInsertAnchorsAfterHeader(t *testing.T) {
	t.Parallel()

	doc := parseOverlay(t, `Profile: MyPatient
Parent: Patient
`)
	tree := doc.Tree()

	ir, err := Compile(`Profile: $p => insert("Title: \"Generated\"")`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	matches := Run(ir, doc)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	suggestions := Effects(ir, matches[0], tree)
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}
	edit := suggestions[0].Edits[0]
	if !edit.Span.IsEmpty() {
		t.Fatalf("insert edit span should be empty (a pure insertion point), got %v", edit.Span)
	}
}
