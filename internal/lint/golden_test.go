package lint

import (
	"context"
	"strings"
	"testing"

	"github.com/octofhir/fshlint/internal/semantic"
	"github.com/octofhir/fshlint/internal/testutil"
)

// TestLintGoldenCases runs the default rule catalog over every
// testdata/lint fixture and checks the resulting rule IDs, in document
// order, against the adjacent .diagnostics fixture.
func TestLintGoldenCases(t *testing.T) {
	t.Parallel()

	cases, err := testutil.LintGoldenCases()
	if err != nil {
		t.Fatalf("LintGoldenCases: %v", err)
	}
	if len(cases) == 0 {
		t.Fatal("no lint golden cases discovered")
	}

	runner := NewDefaultRunner()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			src := testutil.ReadFile(t, tc.InputPath)
			doc := semantic.IndexDocument("file:///"+tc.Name+".fsh", src)

			diags, err := runner.Run(context.Background(), doc)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			gotIDs := make([]string, len(diags))
			for i, d := range diags {
				gotIDs[i] = d.RuleID
			}

			expected := strings.Split(strings.TrimSpace(string(testutil.ReadFile(t, tc.ExpectedPath))), "\n")
			if len(expected) == 1 && expected[0] == "" {
				expected = nil
			}

			if len(gotIDs) != len(expected) {
				t.Fatalf("rule ids = %v, want %v", gotIDs, expected)
			}
			for i := range expected {
				if gotIDs[i] != expected[i] {
					t.Fatalf("rule ids = %v, want %v", gotIDs, expected)
				}
			}
		})
	}
}
