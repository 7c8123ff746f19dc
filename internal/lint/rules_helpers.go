package lint

import (
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
)

// forEachNode visits every node of the given kind in tree, in node-ID
// (source) order.
func forEachNode(tree *syntax.Tree, kind syntax.NodeKind, fn func(n *syntax.Node)) {
	if tree == nil || fn == nil {
		return
	}
	for i := 1; i < len(tree.Nodes); i++ {
		n := &tree.Nodes[i]
		if n.Kind == kind {
			fn(n)
		}
	}
}

// hasAnyFlag reports whether any bit in mask is set on flags.
func hasAnyFlag(flags syntax.NodeFlags, mask syntax.NodeFlags) bool {
	return flags&mask != 0
}

// childByKind returns the first direct child node of parent with the given
// kind, or nil.
func childByKind(tree *syntax.Tree, parent syntax.NodeID, kind syntax.NodeKind) *syntax.Node {
	n := tree.NodeByID(parent)
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

// childrenByKind returns every direct child node of parent with the given kind.
func childrenByKind(tree *syntax.Tree, parent syntax.NodeID, kind syntax.NodeKind) []*syntax.Node {
	n := tree.NodeByID(parent)
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

// childTokens returns the lexer tokens held as direct (non-node) children of
// n, in source order.
func childTokens(tree *syntax.Tree, n *syntax.Node) []lexer.Token {
	out := make([]lexer.Token, 0, len(n.Children))
	for _, c := range n.Children {
		if c.IsToken {
			out = append(out, tree.Tokens[c.Index])
		}
	}
	return out
}

// entityName returns the declared name of an entity node: its first direct
// Identifier token child.
func entityName(tree *syntax.Tree, n *syntax.Node) (string, bool) {
	for _, c := range n.Children {
		if !c.IsToken {
			continue
		}
		tok := tree.Tokens[c.Index]
		if tok.Kind == lexer.TokenIdentifier {
			return string(tok.Bytes(tree.Source)), true
		}
	}
	return "", false
}

// metadataValueToken returns the value token of a metadata line node (the
// token after the Colon), or the zero Token and false if absent/missing.
func metadataValueToken(tree *syntax.Tree, n *syntax.Node) (lexer.Token, bool) {
	sawColon := false
	for _, c := range n.Children {
		if !c.IsToken {
			continue
		}
		tok := tree.Tokens[c.Index]
		if tok.Kind == lexer.TokenColon {
			sawColon = true
			continue
		}
		if sawColon {
			return tok, true
		}
	}
	return lexer.Token{}, false
}

// isKebabCase reports whether s is composed of lowercase alphanumeric
// segments separated by single hyphens, with no leading/trailing/double
// hyphens — the convention FSH ids are expected to follow.
func isKebabCase(s string) bool {
	if s == "" {
		return false
	}
	prevHyphen := true // disallow a leading hyphen
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return !prevHyphen
}

// isPascalCase reports whether s starts with an uppercase letter and
// contains only letters and digits — the convention FSH entity names are
// expected to follow.
func isPascalCase(s string) bool {
	if s == "" {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if len(s) >= 6 && s[:3] == `"""` && s[len(s)-3:] == `"""` {
		return s[3 : len(s)-3]
	}
	return s
}
