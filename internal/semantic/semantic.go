// Package semantic builds a lightweight symbol index over one or more
// parsed FSH files: entity declarations, alias definitions, and the
// qualified-name lookups native and pattern rules need without having to
// re-walk the syntax tree themselves.
package semantic

import (
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// EntityDecl is one top-level FSH declaration (Profile, Extension, ValueSet,
// CodeSystem, Instance, RuleSet, Mapping, Invariant, Logical, or Resource).
type EntityDecl struct {
	Name   string
	Kind   syntax.NodeKind
	Node   syntax.NodeID
	Span   text.Span
	Parent string // value of a Parent: metadata line, if present
	URI    string
}

// AliasDecl is one `Alias: Name = value` declaration.
type AliasDecl struct {
	Name  string
	Value string
	Span  text.Span
	URI   string
}

// Document is one file's parse tree plus its locally derived symbol table.
type Document struct {
	Tree     *syntax.Tree
	Entities []EntityDecl
	Aliases  map[string]AliasDecl

	byName map[string]*EntityDecl
}

// EntityByName looks up a top-level declaration by its name within this
// document only. Cross-file lookups go through Workspace.Resolve.
func (d *Document) EntityByName(name string) (*EntityDecl, bool) {
	e, ok := d.byName[name]
	return e, ok
}

// ResolveAlias expands name through this document's alias table, returning
// the alias value and true if name is a known alias, else name unchanged.
func (d *Document) ResolveAlias(name string) (string, bool) {
	if a, ok := d.Aliases[name]; ok {
		return a.Value, true
	}
	return name, false
}

// IndexDocument parses src and builds its Document.
func IndexDocument(uri string, src []byte) *Document {
	tree := syntax.Parse(src, syntax.ParseOptions{URI: uri})
	return indexTree(uri, tree)
}

func indexTree(uri string, tree *syntax.Tree) *Document {
	doc := &Document{
		Tree:    tree,
		Aliases: make(map[string]AliasDecl),
		byName:  make(map[string]*EntityDecl),
	}

	for _, childID := range tree.ChildNodes(tree.Root) {
		n := tree.NodeByID(childID)
		if n == nil {
			continue
		}
		if n.Kind == syntax.KindAliasDecl {
			if a, ok := parseAliasNode(tree, n); ok {
				a.URI = uri
				doc.Aliases[a.Name] = a
			}
			continue
		}
		if decl, ok := parseEntityNode(tree, n, uri); ok {
			doc.Entities = append(doc.Entities, decl)
		}
	}

	doc.byName = make(map[string]*EntityDecl, len(doc.Entities))
	for i := range doc.Entities {
		doc.byName[doc.Entities[i].Name] = &doc.Entities[i]
	}

	return doc
}

// directTokens returns the lexer tokens held as direct (non-node) children
// of n, in source order.
func directTokens(tree *syntax.Tree, n *syntax.Node) []lexer.Token {
	out := make([]lexer.Token, 0, len(n.Children))
	for _, c := range n.Children {
		if c.IsToken {
			out = append(out, tree.Tokens[c.Index])
		}
	}
	return out
}

func isValueToken(kind lexer.TokenKind) bool {
	switch kind {
	case lexer.TokenIdentifier, lexer.TokenString, lexer.TokenMultilineString, lexer.TokenNumber:
		return true
	default:
		return false
	}
}

// parseAliasNode expects children shaped [Colon, Identifier(name), Equal, value].
func parseAliasNode(tree *syntax.Tree, n *syntax.Node) (AliasDecl, bool) {
	toks := directTokens(tree, n)
	var name, value string
	sawEqual := false
	for _, tok := range toks {
		switch {
		case tok.Kind == lexer.TokenIdentifier && name == "" && !sawEqual:
			name = string(tok.Bytes(tree.Source))
		case tok.Kind == lexer.TokenEqual:
			sawEqual = true
		case sawEqual && isValueToken(tok.Kind) && value == "":
			value = string(tok.Bytes(tree.Source))
		}
	}
	if name == "" {
		return AliasDecl{}, false
	}
	return AliasDecl{Name: name, Value: value, Span: n.Span}, true
}

// parseEntityNode expects direct children shaped [Colon, Identifier(name)]
// followed by metadata/rule child nodes.
func parseEntityNode(tree *syntax.Tree, n *syntax.Node, uri string) (EntityDecl, bool) {
	decl := EntityDecl{Kind: n.Kind, Node: n.ID, Span: n.Span, URI: uri}

	for _, tok := range directTokens(tree, n) {
		if tok.Kind == lexer.TokenIdentifier && decl.Name == "" {
			decl.Name = string(tok.Bytes(tree.Source))
		}
	}

	for _, c := range n.Children {
		if c.IsToken {
			continue
		}
		child := tree.NodeByID(syntax.NodeID(c.Index))
		if child != nil && child.Kind == syntax.KindMetadataParent {
			decl.Parent = metadataValue(tree, child)
		}
	}

	if decl.Name == "" {
		return decl, false
	}
	return decl, true
}

func metadataValue(tree *syntax.Tree, n *syntax.Node) string {
	for _, tok := range directTokens(tree, n) {
		if isValueToken(tok.Kind) {
			return string(tok.Bytes(tree.Source))
		}
	}
	return ""
}
