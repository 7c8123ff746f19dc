package ast

import (
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// base is the shared handle every typed wrapper in this package embeds: a
// tree and the node id it overlays. Wrappers are cheap values, safe to copy,
// and never outlive the *syntax.Tree they point into.
type base struct {
	tree *syntax.Tree
	id   syntax.NodeID
}

// Node returns the underlying CST node id.
func (b base) Node() syntax.NodeID {
	return b.id
}

// Kind returns the underlying CST node kind.
func (b base) Kind() syntax.NodeKind {
	if n := b.tree.NodeByID(b.id); n != nil {
		return n.Kind
	}
	return syntax.KindUnknown
}

// Span returns the node's source span.
func (b base) Span() text.Span {
	if n := b.tree.NodeByID(b.id); n != nil {
		return n.Span
	}
	return text.Span{}
}

func (b base) node() *syntax.Node {
	return b.tree.NodeByID(b.id)
}

// directTokens returns the lexer tokens held as direct (non-node) children
// of the node, in source order.
func directTokens(tree *syntax.Tree, n *syntax.Node) []lexer.Token {
	if n == nil {
		return nil
	}
	out := make([]lexer.Token, 0, len(n.Children))
	for _, c := range n.Children {
		if c.IsToken {
			out = append(out, tree.Tokens[c.Index])
		}
	}
	return out
}

// childNode returns the first direct node child of the given kind.
func childNode(tree *syntax.Tree, n *syntax.Node, kind syntax.NodeKind) *syntax.Node {
	if n == nil {
		return nil
	}
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

// childNodes returns every direct node child of the given kind, in order.
func childNodes(tree *syntax.Tree, n *syntax.Node, kind syntax.NodeKind) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for _, c := range n.Children {
		if c.IsToken {
			continue
		}
		child := tree.NodeByID(syntax.NodeID(c.Index))
		if child != nil && child.Kind == kind {
			out = append(out, child)
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

func isFlagToken(kind lexer.TokenKind) bool {
	switch kind {
	case lexer.TokenFlagMS, lexer.TokenFlagSU, lexer.TokenFlagTU, lexer.TokenFlagN, lexer.TokenFlagD, lexer.TokenFlagModifier:
		return true
	default:
		return false
	}
}

// firstIdentifier returns the first Identifier token's text among n's direct
// token children.
func firstIdentifier(tree *syntax.Tree, n *syntax.Node) Option[string] {
	for _, tok := range directTokens(tree, n) {
		if tok.Kind == lexer.TokenIdentifier {
			return Some(string(tok.Bytes(tree.Source)))
		}
	}
	return None[string]()
}

// firstValue returns the first value-like token's text (identifier, string,
// multiline string, or number) among n's direct token children.
func firstValue(tree *syntax.Tree, n *syntax.Node) Option[string] {
	for _, tok := range directTokens(tree, n) {
		if isValueToken(tok.Kind) {
			return Some(string(tok.Bytes(tree.Source)))
		}
	}
	return None[string]()
}

// metadataValue returns the value carried by a metadata keyword-line node
// (e.g. Parent:, Title:, Id:), which is always its single value token.
func metadataValue(tree *syntax.Tree, n *syntax.Node) Option[string] {
	return firstValue(tree, n)
}

func flagStrings(tree *syntax.Tree, n *syntax.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, tok := range directTokens(tree, n) {
		if isFlagToken(tok.Kind) {
			out = append(out, string(tok.Bytes(tree.Source)))
		}
	}
	return out
}
