package ast

import "github.com/octofhir/fshlint/internal/lexer"

// Alias wraps an `Alias: $Name = value` declaration.
type Alias struct{ base }

// Name returns the alias identifier, if the parser recovered one.
func (a Alias) Name() Option[string] {
	return firstIdentifier(a.tree, a.node())
}

// Value returns the aliased canonical URL or code, if present.
func (a Alias) Value() Option[string] {
	n := a.node()
	if n == nil {
		return None[string]()
	}
	toks := directTokens(a.tree, n)
	sawEqual := false
	for _, tok := range toks {
		switch {
		case tok.Kind == lexer.TokenEqual:
			sawEqual = true
		case sawEqual && isValueToken(tok.Kind):
			return Some(string(tok.Bytes(a.tree.Source)))
		}
	}
	return None[string]()
}
