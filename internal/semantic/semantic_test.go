package semantic

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/octofhir/fshlint/internal/syntax"
)

// entitySummary is the subset of EntityDecl that is stable to compare
// across a whole document: Node and Span vary with exact byte offsets,
// which isn't what these tests care about.
type entitySummary struct {
	Name   string
	Kind   syntax.NodeKind
	Parent string
}

func summarizeEntities(entities []EntityDecl) []entitySummary {
	out := make([]entitySummary, len(entities))
	for i, e := range entities {
		out[i] = entitySummary{Name: e.Name, Kind: e.Kind, Parent: e.Parent}
	}
	return out
}

func TestIndexDocumentExtractsEntitiesAndAliases(t *testing.T) {
	t.Parallel()

	src := []byte(`Alias: SCT = "http://snomed.info/sct"
Profile: MyPatient
Parent: Patient
Id: my-patient
* name 1..1 MS
`)
	doc := IndexDocument("patient.fsh", src)

	alias, ok := doc.ResolveAlias("SCT")
	if !ok {
		t.Fatal("expected alias SCT to resolve")
	}
	if alias != `"http://snomed.info/sct"` {
		t.Fatalf("alias value = %q, want quoted URL", alias)
	}

	entity, ok := doc.EntityByName("MyPatient")
	if !ok {
		t.Fatal("expected entity MyPatient to be indexed")
	}
	if entity.Parent != "Patient" {
		t.Fatalf("entity.Parent = %q, want Patient", entity.Parent)
	}
}

func TestIndexDocumentHandlesMultipleEntities(t *testing.T) {
	t.Parallel()

	src := []byte(`Profile: A
Parent: Patient
Profile: B
Parent: A
`)
	doc := IndexDocument("multi.fsh", src)

	if len(doc.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(doc.Entities))
	}
	b, ok := doc.EntityByName("B")
	if !ok {
		t.Fatal("expected entity B to be indexed")
	}
	if b.Parent != "A" {
		t.Fatalf("B.Parent = %q, want A", b.Parent)
	}
}

func TestIndexDocumentEntitySummariesMatchAcrossMixedDeclarationKinds(t *testing.T) {
	t.Parallel()

	src := []byte(`Profile: MyPatient
Parent: Patient

Extension: MyExtension
Parent: Extension

ValueSet: MyValueSet

Instance: MyInstance
InstanceOf: MyPatient
`)
	doc := IndexDocument("mixed.fsh", src)

	want := []entitySummary{
		{Name: "MyPatient", Kind: syntax.KindProfileDecl, Parent: "Patient"},
		{Name: "MyExtension", Kind: syntax.KindExtensionDecl, Parent: "Extension"},
		{Name: "MyValueSet", Kind: syntax.KindValueSetDecl, Parent: ""},
		{Name: "MyInstance", Kind: syntax.KindInstanceDecl, Parent: ""},
	}

	if diff := deep.Equal(summarizeEntities(doc.Entities), want); diff != nil {
		t.Fatalf("entity summaries diverge: %v", diff)
	}
}
