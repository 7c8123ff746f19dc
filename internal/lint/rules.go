package lint

import (
	"context"
	"fmt"
	"strconv"

	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/semantic"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// DefaultRules returns the built-in native rule catalog.
func DefaultRules() []Rule {
	return []Rule{
		parseErrorRule{},
		duplicateDefinitionRule{},
		missingParentRule{},
		invalidCardinalityRule{},
		missingIDRule{},
		idKebabCaseRule{},
		nameConventionRule{},
		missingTitleRule{},
		missingDescriptionRule{},
		invariantMetadataRule{},
		conceptMissingDisplayRule{},
	}
}

// parentfulKinds are the entity kinds that must declare a Parent: line.
var parentfulKinds = map[syntax.NodeKind]bool{
	syntax.KindProfileDecl:   true,
	syntax.KindExtensionDecl: true,
	syntax.KindLogicalDecl:   true,
}

// ---------------------------------------------------------------------
// parse-error-node: surfaces CST-level parse diagnostics as lint findings.
// ---------------------------------------------------------------------

type parseErrorRule struct{}

func (parseErrorRule) ID() string                     { return "correctness/parse-error-node" }
func (parseErrorRule) Description() string             { return "source contains a syntax error the parser could not recover cleanly from" }
func (parseErrorRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (parseErrorRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (parseErrorRule) Blocking() bool                 { return true }

func (parseErrorRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, d := range doc.Tree.Diagnostics {
		out = append(out, diag.Diagnostic{
			Message: d.Message,
			Span:    d.Span,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------
// duplicate-definition: the same top-level name must not be declared twice
// in one document.
// ---------------------------------------------------------------------

type duplicateDefinitionRule struct{}

func (duplicateDefinitionRule) ID() string { return "correctness/duplicate-definition" }
func (duplicateDefinitionRule) Description() string {
	return "a top-level declaration name must not be reused by a later declaration in the same document"
}
func (duplicateDefinitionRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (duplicateDefinitionRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (duplicateDefinitionRule) Blocking() bool                 { return false }

func (duplicateDefinitionRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	first := make(map[string]text.Span, len(doc.Entities))
	for _, e := range doc.Entities {
		prior, seen := first[e.Name]
		if !seen {
			first[e.Name] = e.Span
			continue
		}
		out = append(out, diag.Diagnostic{
			Message: fmt.Sprintf("%q is already declared", e.Name),
			Span:    e.Span,
			Related: []diag.RelatedInfo{{
				URI:     e.URI,
				Span:    prior,
				Message: fmt.Sprintf("%q first declared here", e.Name),
			}},
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------
// profile-parent-required: Profile/Extension/Logical must declare Parent:.
// ---------------------------------------------------------------------

type missingParentRule struct{}

func (missingParentRule) ID() string                     { return "correctness/profile-parent-required" }
func (missingParentRule) Description() string             { return "Profile, Extension, and Logical declarations must declare a Parent" }
func (missingParentRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (missingParentRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (missingParentRule) Blocking() bool                 { return false }

func (missingParentRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if !parentfulKinds[e.Kind] {
			continue
		}
		if e.Parent == "" {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("%s %s has no Parent declaration", syntax.KindName(e.Kind), e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// invalid-cardinality: a cardinality rule's lower bound must not exceed its
// upper bound.
// ---------------------------------------------------------------------

type invalidCardinalityRule struct{}

func (invalidCardinalityRule) ID() string { return "correctness/invalid-cardinality" }
func (invalidCardinalityRule) Description() string {
	return "a cardinality rule's lower bound must not exceed its upper bound"
}
func (invalidCardinalityRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (invalidCardinalityRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (invalidCardinalityRule) Blocking() bool                 { return false }

func (invalidCardinalityRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	forEachNode(doc.Tree, syntax.KindCardinalityRule, func(n *syntax.Node) {
		card := childByKind(doc.Tree, n.ID, syntax.KindCardinality)
		if card == nil {
			return
		}
		min, max, ok := cardinalityBounds(doc.Tree, card)
		if !ok || max < 0 {
			return
		}
		if min > max {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("cardinality %d..%d has a lower bound greater than its upper bound", min, max),
				Span:    card.Span,
			})
		}
	})
	return out, nil
}

// cardinalityBounds extracts the numeric lower bound and upper bound of a
// KindCardinality node. An unbounded upper ("*") reports max = -1, ok = true.
func cardinalityBounds(tree *syntax.Tree, n *syntax.Node) (min, max int, ok bool) {
	toks := childTokens(tree, n)
	var nums []lexer.Token
	star := false
	for _, tok := range toks {
		switch tok.Kind {
		case lexer.TokenNumber:
			nums = append(nums, tok)
		case lexer.TokenStar:
			star = true
		}
	}
	if len(nums) == 0 {
		return 0, 0, false
	}
	min, err := strconv.Atoi(string(nums[0].Bytes(tree.Source)))
	if err != nil {
		return 0, 0, false
	}
	if star {
		return min, -1, true
	}
	if len(nums) < 2 {
		return 0, 0, false
	}
	max, err = strconv.Atoi(string(nums[1].Bytes(tree.Source)))
	if err != nil {
		return 0, 0, false
	}
	return min, max, true
}

// ---------------------------------------------------------------------
// missing-id: every entity should declare Id: for a stable canonical URL.
// ---------------------------------------------------------------------

type missingIDRule struct{}

func (missingIDRule) ID() string                     { return "best-practice/missing-id" }
func (missingIDRule) Description() string             { return "declarations should set an explicit Id so their canonical URL does not depend on their display name" }
func (missingIDRule) DefaultSeverity() diag.Severity { return diag.SeverityWarning }
func (missingIDRule) Category() diag.Category        { return diag.CategoryBestPractice }
func (missingIDRule) Blocking() bool                 { return false }

func (missingIDRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		n := doc.Tree.NodeByID(e.Node)
		if n == nil {
			continue
		}
		if childByKind(doc.Tree, e.Node, syntax.KindMetadataId) == nil {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("%s has no Id declaration", e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// naming-convention (id half): Id values should be lowercase,
// hyphen-separated. Shares its rule id with nameConventionRule below — spec
// S2 expects style/naming-convention to fire once for the name and once for
// the id.
// ---------------------------------------------------------------------

type idKebabCaseRule struct{}

func (idKebabCaseRule) ID() string                     { return "style/naming-convention" }
func (idKebabCaseRule) Description() string             { return "Id values should use kebab-case" }
func (idKebabCaseRule) DefaultSeverity() diag.Severity { return diag.SeverityWarning }
func (idKebabCaseRule) Category() diag.Category        { return diag.CategoryStyle }
func (idKebabCaseRule) Blocking() bool                 { return false }

func (idKebabCaseRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		idNode := childByKind(doc.Tree, e.Node, syntax.KindMetadataId)
		if idNode == nil {
			continue
		}
		tok, ok := metadataValueToken(doc.Tree, idNode)
		if !ok {
			continue
		}
		val := string(tok.Bytes(doc.Tree.Source))
		if !isKebabCase(val) {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("id %q is not kebab-case", val),
				Span:    tok.Span,
				Suggestions: []diag.CodeSuggestion{{
					Description: "rules that fix casing require a deterministic kebab-case conversion, left to the autofix layer",
					Safe:        false,
				}},
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// naming-convention (name half): entity names should be PascalCase.
// ---------------------------------------------------------------------

type nameConventionRule struct{}

func (nameConventionRule) ID() string                     { return "style/naming-convention" }
func (nameConventionRule) Description() string             { return "declaration names should be PascalCase" }
func (nameConventionRule) DefaultSeverity() diag.Severity { return diag.SeverityWarning }
func (nameConventionRule) Category() diag.Category        { return diag.CategoryStyle }
func (nameConventionRule) Blocking() bool                 { return false }

func (nameConventionRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if !isPascalCase(e.Name) {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("name %q should be PascalCase", e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// missing-title / missing-description: documentation completeness.
// ---------------------------------------------------------------------

type missingTitleRule struct{}

func (missingTitleRule) ID() string                     { return "documentation/missing-title" }
func (missingTitleRule) Description() string             { return "Profile and Extension declarations should set a human-readable Title" }
func (missingTitleRule) DefaultSeverity() diag.Severity { return diag.SeverityInfo }
func (missingTitleRule) Category() diag.Category        { return diag.CategoryDocumentation }
func (missingTitleRule) Blocking() bool                 { return false }

func (missingTitleRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if e.Kind != syntax.KindProfileDecl && e.Kind != syntax.KindExtensionDecl {
			continue
		}
		if childByKind(doc.Tree, e.Node, syntax.KindMetadataTitle) == nil {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("%s has no Title", e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

type missingDescriptionRule struct{}

func (missingDescriptionRule) ID() string                     { return "documentation/missing-description" }
func (missingDescriptionRule) Description() string             { return "Profile and Extension declarations should set a Description" }
func (missingDescriptionRule) DefaultSeverity() diag.Severity { return diag.SeverityInfo }
func (missingDescriptionRule) Category() diag.Category        { return diag.CategoryDocumentation }
func (missingDescriptionRule) Blocking() bool                 { return false }

func (missingDescriptionRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if e.Kind != syntax.KindProfileDecl && e.Kind != syntax.KindExtensionDecl {
			continue
		}
		if childByKind(doc.Tree, e.Node, syntax.KindMetadataDescription) == nil {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("%s has no Description", e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// invariant-metadata: Invariant declarations must set Severity and Expression.
// ---------------------------------------------------------------------

type invariantMetadataRule struct{}

func (invariantMetadataRule) ID() string                     { return "correctness/invariant-metadata" }
func (invariantMetadataRule) Description() string             { return "Invariant declarations must set both Severity and Expression" }
func (invariantMetadataRule) DefaultSeverity() diag.Severity { return diag.SeverityError }
func (invariantMetadataRule) Category() diag.Category        { return diag.CategoryCorrectness }
func (invariantMetadataRule) Blocking() bool                 { return false }

func (invariantMetadataRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if e.Kind != syntax.KindInvariantDecl {
			continue
		}
		if childByKind(doc.Tree, e.Node, syntax.KindMetadataSeverity) == nil {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("invariant %s has no Severity", e.Name),
				Span:    e.Span,
			})
		}
		if childByKind(doc.Tree, e.Node, syntax.KindMetadataExpression) == nil {
			out = append(out, diag.Diagnostic{
				Message: fmt.Sprintf("invariant %s has no Expression", e.Name),
				Span:    e.Span,
			})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// concept-missing-display: CodeSystem/ValueSet concept lines should carry a
// display string, not just a bare code.
// ---------------------------------------------------------------------

type conceptMissingDisplayRule struct{}

func (conceptMissingDisplayRule) ID() string                     { return "style/concept-missing-display" }
func (conceptMissingDisplayRule) Description() string             { return "concept definitions should include a display string" }
func (conceptMissingDisplayRule) DefaultSeverity() diag.Severity { return diag.SeverityInfo }
func (conceptMissingDisplayRule) Category() diag.Category        { return diag.CategoryStyle }
func (conceptMissingDisplayRule) Blocking() bool                 { return false }

func (conceptMissingDisplayRule) Check(_ context.Context, doc *semantic.Document) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	for _, e := range doc.Entities {
		if e.Kind != syntax.KindCodeSystemDecl && e.Kind != syntax.KindValueSetDecl {
			continue
		}
		for _, c := range childrenByKind(doc.Tree, e.Node, syntax.KindConceptDefinition) {
			hasDisplay := false
			for _, tok := range childTokens(doc.Tree, c) {
				if tok.Kind == lexer.TokenString || tok.Kind == lexer.TokenMultilineString {
					hasDisplay = true
					break
				}
			}
			if !hasDisplay {
				out = append(out, diag.Diagnostic{
					Message: "concept definition has no display string",
					Span:    c.Span,
				})
			}
		}
	}
	return out, nil
}
