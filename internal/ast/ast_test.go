package ast

import (
	"testing"

	"github.com/octofhir/fshlint/internal/syntax"
)

func parseDoc(t *testing.T, src string) Document {
	t.Helper()
	tree := syntax.Parse([]byte(src), syntax.ParseOptions{URI: "test.fsh"})
	return NewDocument(tree)
}

func TestDocumentProfilesExposesMetadataAndRules(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `Profile: MyPatient
Parent: Patient
Id: my-patient
Title: "My Patient"
* name 1..1 MS
* gender MS
* identifier from MyValueSet (required)
`)

	profiles := doc.Profiles()
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]

	if name, ok := p.Name().Get(); !ok || name != "MyPatient" {
		t.Fatalf("Name() = %q, %v; want MyPatient, true", name, ok)
	}
	if parent, ok := p.Parent().Get(); !ok || parent != "Patient" {
		t.Fatalf("Parent() = %q, %v; want Patient, true", parent, ok)
	}
	if id, ok := p.Id().Get(); !ok || id != "my-patient" {
		t.Fatalf("Id() = %q, %v; want my-patient, true", id, ok)
	}
	if title, ok := p.Title().Get(); !ok || title != `"My Patient"` {
		t.Fatalf("Title() = %q, %v; want quoted My Patient, true", title, ok)
	}
	if _, ok := p.Description().Get(); ok {
		t.Fatal("Description() should be absent")
	}

	rules := p.Rules()
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}

	card, ok := rules[0].(CardinalityRule)
	if !ok {
		t.Fatalf("rules[0] = %T, want CardinalityRule", rules[0])
	}
	if path, _ := card.Path().Get(); path != "name" {
		t.Fatalf("card.Path() = %q, want name", path)
	}
	if cardinality, _ := card.Cardinality().Get(); cardinality != "1..1" {
		t.Fatalf("card.Cardinality() = %q, want 1..1", cardinality)
	}
	if flags := card.Flags(); len(flags) != 1 || flags[0] != "MS" {
		t.Fatalf("card.Flags() = %v, want [MS]", flags)
	}

	flag, ok := rules[1].(FlagRule)
	if !ok {
		t.Fatalf("rules[1] = %T, want FlagRule", rules[1])
	}
	if flags := flag.Flags(); len(flags) != 1 || flags[0] != "MS" {
		t.Fatalf("flag.Flags() = %v, want [MS]", flags)
	}

	binding, ok := rules[2].(BindingRule)
	if !ok {
		t.Fatalf("rules[2] = %T, want BindingRule", rules[2])
	}
	if vs, _ := binding.ValueSet().Get(); vs != "MyValueSet" {
		t.Fatalf("binding.ValueSet() = %q, want MyValueSet", vs)
	}
	if strength, _ := binding.Strength().Get(); strength != "required" {
		t.Fatalf("binding.Strength() = %q, want required", strength)
	}
}

func TestCodeSystemConceptsExposeCodeAndDisplay(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `CodeSystem: MyCS
Id: my-cs
* #active "Active" "The item is active"
* #inactive "Inactive"
`)

	systems := doc.CodeSystems()
	if len(systems) != 1 {
		t.Fatalf("expected 1 code system, got %d", len(systems))
	}
	concepts := systems[0].Concepts()
	if len(concepts) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(concepts))
	}

	if code, _ := concepts[0].Code().Get(); code != "active" {
		t.Fatalf("concepts[0].Code() = %q, want active", code)
	}
	if display, _ := concepts[0].Display().Get(); display != `"Active"` {
		t.Fatalf("concepts[0].Display() = %q, want quoted Active", display)
	}
	if def, _ := concepts[0].Definition().Get(); def != `"The item is active"` {
		t.Fatalf("concepts[0].Definition() = %q, want quoted definition", def)
	}

	if _, ok := concepts[1].Definition().Get(); ok {
		t.Fatal("concepts[1].Definition() should be absent")
	}
}

func TestMappingEntriesExposePathTargetAndComment(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `Mapping: MyMap
Source: MyPatient
Target: "http://hl7.org/fhir/R4/patient.html"
* gender -> "Patient.gender" "direct mapping"
`)

	mappings := doc.Mappings()
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(mappings))
	}
	m := mappings[0]
	if src, _ := m.Source().Get(); src != "MyPatient" {
		t.Fatalf("Source() = %q, want MyPatient", src)
	}

	entries := m.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 mapping entry, got %d", len(entries))
	}
	if path, _ := entries[0].Path().Get(); path != "gender" {
		t.Fatalf("entries[0].Path() = %q, want gender", path)
	}
	if target, _ := entries[0].Target().Get(); target != `"Patient.gender"` {
		t.Fatalf("entries[0].Target() = %q, want quoted Patient.gender", target)
	}
	if comment, _ := entries[0].Comment().Get(); comment != `"direct mapping"` {
		t.Fatalf("entries[0].Comment() = %q, want quoted comment", comment)
	}
}

func TestCaretValueRuleExposesCaretPathAndValue(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `Profile: MyPatient
Parent: Patient
* ^status = #active
* identifier ^short = "An identifier"
`)

	rules := doc.Profiles()[0].Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	top, ok := rules[0].(CaretValueRule)
	if !ok {
		t.Fatalf("rules[0] = %T, want CaretValueRule", rules[0])
	}
	if _, ok := top.Path().Get(); ok {
		t.Fatal("top-level caret rule should have no element path")
	}
	if caretPath, _ := top.CaretPath().Get(); caretPath != "status" {
		t.Fatalf("top.CaretPath() = %q, want status", caretPath)
	}
	if value, _ := top.Value().Get(); value != "#active" {
		t.Fatalf("top.Value() = %q, want #active", value)
	}

	nested, ok := rules[1].(CaretValueRule)
	if !ok {
		t.Fatalf("rules[1] = %T, want CaretValueRule", rules[1])
	}
	if path, _ := nested.Path().Get(); path != "identifier" {
		t.Fatalf("nested.Path() = %q, want identifier", path)
	}
	if caretPath, _ := nested.CaretPath().Get(); caretPath != "short" {
		t.Fatalf("nested.CaretPath() = %q, want short", caretPath)
	}
}

func TestAliasNameAndValue(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `Alias: SCT = http://snomed.info/sct
`)

	aliases := doc.Aliases()
	if len(aliases) != 1 {
		t.Fatalf("expected 1 alias, got %d", len(aliases))
	}
	if name, _ := aliases[0].Name().Get(); name != "SCT" {
		t.Fatalf("Name() = %q, want SCT", name)
	}
	if value, _ := aliases[0].Value().Get(); value != "http://snomed.info/sct" {
		t.Fatalf("Value() = %q, want http://snomed.info/sct", value)
	}
}

func TestInsertRuleAndOnlyRule(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `Profile: MyPatient
Parent: Patient
* insert CommonRules
* value[x] only string or CodeableConcept
`)

	rules := doc.Profiles()[0].Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	insert, ok := rules[0].(InsertRule)
	if !ok {
		t.Fatalf("rules[0] = %T, want InsertRule", rules[0])
	}
	if _, ok := insert.Path().Get(); ok {
		t.Fatal("InsertRule.Path() should always be absent")
	}
	if name, _ := insert.RuleSetName().Get(); name != "CommonRules" {
		t.Fatalf("insert.RuleSetName() = %q, want CommonRules", name)
	}

	only, ok := rules[1].(OnlyRule)
	if !ok {
		t.Fatalf("rules[1] = %T, want OnlyRule", rules[1])
	}
	if types := only.Types(); len(types) != 2 || types[0] != "string" || types[1] != "CodeableConcept" {
		t.Fatalf("only.Types() = %v, want [string CodeableConcept]", types)
	}
}
