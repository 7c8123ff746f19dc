package pattern

import (
	"github.com/octofhir/fshlint/internal/diag"
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// metadataFieldKinds maps a pattern field name to the metadata child node
// kind it reads, mirroring internal/ast's entity accessors (spec §4.5 step 4
// "Field access... consulting the typed AST").
var metadataFieldKinds = map[string]syntax.NodeKind{
	"id":          syntax.KindMetadataId,
	"title":       syntax.KindMetadataTitle,
	"description": syntax.KindMetadataDescription,
	"parent":      syntax.KindMetadataParent,
	"usage":       syntax.KindMetadataUsage,
	"instanceOf":  syntax.KindMetadataInstanceOf,
	"source":      syntax.KindMetadataSource,
	"target":      syntax.KindMetadataTarget,
	"expression":  syntax.KindMetadataExpression,
	"severity":    syntax.KindMetadataSeverity,
	"xpath":       syntax.KindMetadataXPath,
}

// Effects converts a match produced by a rewrite-bearing pattern into the
// diagnostic's suggestion set (spec §4.5 "Rewrites and effects"). Returns
// nil if the pattern carries no rewrite clause.
func Effects(ir *IR, m Match, tree *syntax.Tree) []diag.CodeSuggestion {
	if !ir.HasRewrite {
		return nil
	}

	switch ir.Rewrite.Kind {
	case "rewrite":
		return rewriteEffect(ir, m, tree)
	case "insert":
		return insertEffect(ir, m, tree)
	case "delete":
		return deleteEffect(ir, m, tree)
	default:
		return nil
	}
}

func rewriteEffect(ir *IR, m Match, tree *syntax.Tree) []diag.CodeSuggestion {
	targetSpan, ok := resolveTargetSpan(ir.Rewrite.Target, m, tree)
	if !ok {
		return nil
	}
	value := stringForm(ir.Rewrite.Value, m.Bindings, tree)

	// A rewrite is marked safe unless it targets the entity's own declared
	// name or names no field (the whole node): renaming the entity changes its
	// canonical identity and is never safe to apply unreviewed (spec §4.5
	// "Rewrites and effects"). The rewritten value itself is not inspected.
	safe := ir.Rewrite.Target.Field != "name" && ir.Rewrite.Target.Field != ""

	return []diag.CodeSuggestion{{
		Description: "pattern rewrite: " + ir.Source,
		Edits:       []diag.TextEdit{{Span: targetSpan, NewText: value}},
		Safe:        safe,
	}}
}

func insertEffect(ir *IR, m Match, tree *syntax.Tree) []diag.CodeSuggestion {
	// Anchor point: immediately after the matched entity's header line (its
	// declared name token), the position every FSH metadata/rule line that
	// follows an entity header is inserted at.
	anchor := m.Span.Start
	if n := tree.NodeByID(m.Node); n != nil {
		if tok, ok := headerEnd(tree, n); ok {
			anchor = tok.End
		}
	}
	span := text.Span{Start: anchor, End: anchor}
	return []diag.CodeSuggestion{{
		Description: "pattern insert: " + ir.Source,
		Edits:       []diag.TextEdit{{Span: span, NewText: "\n" + ir.Rewrite.Text}},
		Safe:        false,
	}}
}

func deleteEffect(ir *IR, m Match, tree *syntax.Tree) []diag.CodeSuggestion {
	targetSpan, ok := resolveTargetSpan(ir.Rewrite.Target, m, tree)
	if !ok {
		return nil
	}
	return []diag.CodeSuggestion{{
		Description: "pattern delete: " + ir.Source,
		Edits:       []diag.TextEdit{{Span: targetSpan, NewText: ""}},
		Safe:        false,
	}}
}

func resolveTargetSpan(target irExpr, m Match, tree *syntax.Tree) (text.Span, bool) {
	entity, ok := m.Bindings[target.VarName]
	if !ok {
		return text.Span{}, false
	}
	n := tree.NodeByID(entity.Node())
	if n == nil {
		return text.Span{}, false
	}
	if target.Field == "" {
		return n.Span, true
	}
	if target.Field == "name" {
		return nameTokenSpan(tree, n)
	}
	kind, ok := metadataFieldKinds[target.Field]
	if !ok {
		return text.Span{}, false
	}
	child := directChildOfKind(tree, n, kind)
	if child == nil {
		return text.Span{}, false
	}
	return valueTokenSpan(tree, child)
}

func directChildOfKind(tree *syntax.Tree, n *syntax.Node, kind syntax.NodeKind) *syntax.Node {
	for _, c := range n.Children {
		if c.IsToken {
			continue
		}
		child := tree.NodeByID(syntax.NodeID(c.Index))
		if child != nil && child.Kind == kind {
			return child
		}
	}
	return nil
}

func nameTokenSpan(tree *syntax.Tree, n *syntax.Node) (text.Span, bool) {
	for _, c := range n.Children {
		if !c.IsToken {
			continue
		}
		tok := tree.Tokens[c.Index]
		if tok.Kind == lexer.TokenIdentifier {
			return tok.Span, true
		}
	}
	return text.Span{}, false
}

func valueTokenSpan(tree *syntax.Tree, n *syntax.Node) (text.Span, bool) {
	for _, c := range n.Children {
		if !c.IsToken {
			continue
		}
		tok := tree.Tokens[c.Index]
		switch tok.Kind {
		case lexer.TokenIdentifier, lexer.TokenString, lexer.TokenMultilineString, lexer.TokenNumber:
			return tok.Span, true
		}
	}
	return text.Span{}, false
}

// headerEnd returns the span of the last token in an entity's header line —
// its declared name identifier — as the anchor for insert().
func headerEnd(tree *syntax.Tree, n *syntax.Node) (text.Span, bool) {
	return nameTokenSpan(tree, n)
}
