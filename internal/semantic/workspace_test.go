package semantic

import (
	"context"
	"testing"
)

func TestIndexAllBuildsCrossFileSymbolTable(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{URI: "a.fsh", Data: []byte("Profile: A\nParent: Patient\n")},
		{URI: "b.fsh", Data: []byte("Profile: B\nParent: A\n")},
	}

	ws, err := IndexAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("IndexAll error: %v", err)
	}

	if len(ws.Documents()) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(ws.Documents()))
	}

	a, ok := ws.Resolve("A")
	if !ok {
		t.Fatal("expected to resolve entity A across the workspace")
	}
	if a.URI != "a.fsh" {
		t.Fatalf("A.URI = %q, want a.fsh", a.URI)
	}
}

func TestIndexAllDetectsDuplicateEntities(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{URI: "a.fsh", Data: []byte("Profile: Dup\nParent: Patient\n")},
		{URI: "b.fsh", Data: []byte("Profile: Dup\nParent: Observation\n")},
	}

	ws, err := IndexAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("IndexAll error: %v", err)
	}

	dupes := ws.DuplicateEntities()
	defs, ok := dupes["Dup"]
	if !ok {
		t.Fatal("expected Dup to be reported as a duplicate")
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 declaration sites for Dup, got %d", len(defs))
	}
}

func TestIndexAllRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IndexAll(ctx, []Source{{URI: "a.fsh", Data: []byte("Profile: A\n")}})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
