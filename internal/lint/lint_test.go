package lint

import (
	"context"
	"testing"

	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/semantic"
)

func mustIndex(t *testing.T, src string) *semantic.Document {
	t.Helper()
	return semantic.IndexDocument("file:///test.fsh", []byte(src))
}

func hasRuleID(diags []diag.Diagnostic, id string) bool {
	for _, d := range diags {
		if d.RuleID == id {
			return true
		}
	}
	return false
}

// panickyRule is a test-only Rule that always panics, used to verify the
// Runner isolates a misbehaving rule instead of aborting the whole run.
type panickyRule struct{}

func (panickyRule) ID() string                     { return "panicky" }
func (panickyRule) Description() string             { return "always panics" }
func (panickyRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (panickyRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (panickyRule) Blocking() bool                 { return false }
func (panickyRule) Check(context.Context, *semantic.Document) ([]diag.Diagnostic, error) {
	panic("boom")
}

func TestMissingParentRuleFlagsProfileWithoutParent(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: MyPatient\nId: my-patient\n")
	diags, err := missingParentRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1", len(diags))
	}
}

func TestMissingParentRuleAcceptsDeclaredParent(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: MyPatient\nParent: Patient\nId: my-patient\n")
	diags, err := missingParentRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostic count=%d, want 0: %+v", len(diags), diags)
	}
}

func TestIDKebabCaseRuleFlagsPascalID(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: MyPatient\nParent: Patient\nId: MyPatient\n")
	diags, err := idKebabCaseRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1", len(diags))
	}
}

func TestNameConventionRuleFlagsLowercaseName(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: myPatient\nParent: Patient\n")
	diags, err := nameConventionRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1", len(diags))
	}
}

func TestInvariantMetadataRuleRequiresSeverityAndExpression(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Invariant: my-1\nDescription: \"must hold\"\n")
	diags, err := invariantMetadataRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 2 {
		t.Fatalf("diagnostic count=%d, want 2: %+v", len(diags), diags)
	}
}

func TestDuplicateDefinitionRuleFlagsSecondOccurrence(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: MyProfile\nParent: Patient\n\nProfile: MyProfile\nParent: Patient\n")
	diags, err := duplicateDefinitionRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1: %+v", len(diags), diags)
	}
	if len(diags[0].Related) != 1 {
		t.Fatalf("expected one related info pointing at the first declaration, got %+v", diags[0].Related)
	}
}

func TestDuplicateDefinitionRuleAcceptsUniqueNames(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: FirstProfile\nParent: Patient\n\nProfile: SecondProfile\nParent: Patient\n")
	diags, err := duplicateDefinitionRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostic count=%d, want 0: %+v", len(diags), diags)
	}
}

func TestInvalidCardinalityRuleFlagsInvertedBounds(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: P\nParent: Patient\n* name 5..3\n")
	diags, err := invalidCardinalityRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1: %+v", len(diags), diags)
	}
}

func TestInvalidCardinalityRuleAcceptsUnboundedUpper(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: P\nParent: Patient\n* name 1..*\n")
	diags, err := invalidCardinalityRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostic count=%d, want 0: %+v", len(diags), diags)
	}
}

func TestInvalidCardinalityRuleAcceptsValidBounds(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: P\nParent: Patient\n* name 1..1\n")
	diags, err := invalidCardinalityRule{}.Check(context.Background(), doc)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostic count=%d, want 0: %+v", len(diags), diags)
	}
}

func TestDefaultRunnerAggregatesAndSortsDiagnostics(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: myPatient\n")
	runner := NewDefaultRunner()
	diags, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(diags) == 0 {
		t.Fatal("expected at least one diagnostic")
	}
	for i := 1; i < len(diags); i++ {
		if diags[i-1].Span.Start > diags[i].Span.Start {
			t.Fatalf("diagnostics not sorted by span start: %+v", diags)
		}
	}
}

func TestRunnerIsolatesPanickingRule(t *testing.T) {
	t.Parallel()

	doc := mustIndex(t, "Profile: MyPatient\nParent: Patient\n")
	runner := NewRunner(panickyRule{})
	diags, err := runner.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run returned error instead of isolating panic: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostic count=%d, want 1 synthetic diagnostic", len(diags))
	}
}
