package ast

import (
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// Rule is the common view over any `*`-prefixed rule line. Type-assert or
// switch on the concrete type (CardinalityRule, FlagRule, ...) to reach
// kind-specific accessors, or use Kind() to dispatch without asserting.
type Rule interface {
	Kind() syntax.NodeKind
	Node() syntax.NodeID
	Span() text.Span
	Path() Option[string]
}

// rule holds the path accessor shared by every rule kind that carries an
// element path (every kind but InsertRule, which names a rule set instead).
type rule struct{ base }

// Path returns the rule's element path rendered as written (e.g.
// "name.given[0]"), if the rule carries one.
func (r rule) Path() Option[string] {
	n := childNode(r.tree, r.node(), syntax.KindElementPath)
	if n == nil || n.Span.Len() == 0 {
		return None[string]()
	}
	return Some(string(r.tree.Source[n.Span.Start:n.Span.End]))
}

func wrapRule(b base) Rule {
	switch b.Kind() {
	case syntax.KindCardinalityRule:
		return CardinalityRule{rule{b}}
	case syntax.KindFlagRule:
		return FlagRule{rule{b}}
	case syntax.KindBindingRule:
		return BindingRule{rule{b}}
	case syntax.KindAssignmentRule:
		return AssignmentRule{rule{b}}
	case syntax.KindContainsRule:
		return ContainsRule{rule{b}}
	case syntax.KindObeysRule:
		return ObeysRule{rule{b}}
	case syntax.KindCaretValueRule:
		return CaretValueRule{rule{b}}
	case syntax.KindInsertRule:
		return InsertRule{rule{b}}
	case syntax.KindOnlyRule:
		return OnlyRule{rule{b}}
	default:
		return PathRule{rule{b}}
	}
}

// CardinalityRule is a `* path 1..1 MS` rule.
type CardinalityRule struct{ rule }

// Cardinality returns the rule's `min..max` text, e.g. "1..1" or "0..*".
func (r CardinalityRule) Cardinality() Option[string] {
	n := childNode(r.tree, r.node(), syntax.KindCardinality)
	if n == nil {
		return None[string]()
	}
	return Some(string(r.tree.Source[n.Span.Start:n.Span.End]))
}

// Flags returns any trailing flag tokens (MS, SU, TU, ?!, N, D), in order.
func (r CardinalityRule) Flags() []string {
	return flagStrings(r.tree, r.node())
}

// FlagRule is a `* path MS SU` rule with no cardinality change.
type FlagRule struct{ rule }

// Flags returns the rule's flag tokens, in order.
func (r FlagRule) Flags() []string {
	return flagStrings(r.tree, r.node())
}

// BindingRule is a `* path from ValueSetRef (strength)` rule.
type BindingRule struct{ rule }

// ValueSet returns the bound value set reference (name, alias, or URL).
func (r BindingRule) ValueSet() Option[string] {
	return firstIdentifierAfter(r.tree, r.node(), lexer.TokenKwFrom)
}

// Strength returns the binding strength (example, preferred, extensible,
// required), if an explicit `(strength)` clause is present.
func (r BindingRule) Strength() Option[string] {
	n := r.node()
	if n == nil {
		return None[string]()
	}
	toks := directTokens(r.tree, n)
	inParen := false
	for _, tok := range toks {
		switch {
		case tok.Kind == lexer.TokenLParen:
			inParen = true
		case tok.Kind == lexer.TokenRParen:
			inParen = false
		case inParen && tok.Kind == lexer.TokenIdentifier:
			return Some(string(tok.Bytes(r.tree.Source)))
		}
	}
	return None[string]()
}

// AssignmentRule is a `* path = value [(exactly)]` rule.
type AssignmentRule struct{ rule }

// Value returns the assigned value's rendered text.
func (r AssignmentRule) Value() Option[string] {
	n := r.node()
	if n == nil {
		return None[string]()
	}
	for _, c := range n.Children {
		if c.IsToken {
			continue
		}
		child := r.tree.NodeByID(syntax.NodeID(c.Index))
		if child != nil && child.Kind != syntax.KindElementPath {
			return Some(string(r.tree.Source[child.Span.Start:child.Span.End]))
		}
	}
	return None[string]()
}

// IsExact reports whether the assignment carries a trailing `(exactly)`.
func (r AssignmentRule) IsExact() bool {
	for _, tok := range directTokens(r.tree, r.node()) {
		if tok.Kind == lexer.TokenKwExactly {
			return true
		}
	}
	return false
}

// ContainsRule is a `* path contains item1 and item2 ...` rule.
type ContainsRule struct{ rule }

// Items returns the names of each contained slice/extension item.
func (r ContainsRule) Items() []string {
	var out []string
	for _, child := range childNodes(r.tree, r.node(), syntax.KindContainsItem) {
		if name, ok := firstIdentifier(r.tree, child).Get(); ok {
			out = append(out, name)
		}
	}
	return out
}

// ObeysRule is a `* path obeys invariant-key` rule.
type ObeysRule struct{ rule }

// InvariantKey returns the referenced invariant's key.
func (r ObeysRule) InvariantKey() Option[string] {
	return lastIdentifier(r.tree, r.node())
}

// CaretValueRule is a `* [path] ^caretPath = value` rule.
type CaretValueRule struct{ rule }

// CaretPath returns the caret-prefixed path (e.g. "short" in `^short`).
func (r CaretValueRule) CaretPath() Option[string] {
	body := childNode(r.tree, r.node(), syntax.KindPathRule)
	if body == nil {
		return None[string]()
	}
	n := childNode(r.tree, body, syntax.KindElementPath)
	if n == nil {
		return None[string]()
	}
	return Some(string(r.tree.Source[n.Span.Start:n.Span.End]))
}

// Value returns the caret rule's assigned value, rendered as written.
func (r CaretValueRule) Value() Option[string] {
	body := childNode(r.tree, r.node(), syntax.KindPathRule)
	if body == nil {
		return None[string]()
	}
	for _, c := range body.Children {
		if c.IsToken {
			continue
		}
		child := r.tree.NodeByID(syntax.NodeID(c.Index))
		if child != nil && child.Kind != syntax.KindElementPath {
			return Some(string(r.tree.Source[child.Span.Start:child.Span.End]))
		}
	}
	return None[string]()
}

// InsertRule is a `* insert RuleSetName` rule.
type InsertRule struct{ rule }

// Path always returns None: insert rules have no element path.
func (r InsertRule) Path() Option[string] {
	return None[string]()
}

// RuleSetName returns the inserted rule set's name.
func (r InsertRule) RuleSetName() Option[string] {
	return lastIdentifier(r.tree, r.node())
}

// OnlyRule is a `* path only Type1 or Type2` rule.
type OnlyRule struct{ rule }

// Types returns the allowed type names, in order.
func (r OnlyRule) Types() []string {
	list := childNode(r.tree, r.node(), syntax.KindTargetTypeList)
	if list == nil {
		return nil
	}
	var out []string
	for _, child := range childNodes(r.tree, list, syntax.KindTargetType) {
		if name, ok := firstIdentifier(r.tree, child).Get(); ok {
			out = append(out, name)
		}
	}
	return out
}

// PathRule is a bare `* path` rule line whose shape the parser could not
// further refine, or the inner `^caretPath = value` body of a
// CaretValueRule.
type PathRule struct{ rule }

// ConceptDefinition is a `#code ["display"] ["definition"]` line in a
// CodeSystem or ValueSet. The rule line itself wraps a KindCodeLiteral
// child that carries the code and its optional display/definition strings.
type ConceptDefinition struct{ base }

func (c ConceptDefinition) literal() *syntax.Node {
	return childNode(c.tree, c.node(), syntax.KindCodeLiteral)
}

// Code returns the concept's code.
func (c ConceptDefinition) Code() Option[string] {
	return firstIdentifier(c.tree, c.literal())
}

// Display returns the concept's display string, if present.
func (c ConceptDefinition) Display() Option[string] {
	return stringTokenAt(c.tree, c.literal(), 0)
}

// Definition returns the concept's definition string, if present.
func (c ConceptDefinition) Definition() Option[string] {
	return stringTokenAt(c.tree, c.literal(), 1)
}

// MappingEntry is a `path -> "target" ["comment" [#code]]` line in a
// Mapping declaration.
type MappingEntry struct{ base }

// Path returns the mapped element path.
func (m MappingEntry) Path() Option[string] {
	n := childNode(m.tree, m.node(), syntax.KindElementPath)
	if n == nil {
		return None[string]()
	}
	return Some(string(m.tree.Source[n.Span.Start:n.Span.End]))
}

// Target returns the mapping target expression.
func (m MappingEntry) Target() Option[string] {
	return stringTokenAt(m.tree, m.node(), 0)
}

// Comment returns the mapping entry's optional trailing comment.
func (m MappingEntry) Comment() Option[string] {
	return stringTokenAt(m.tree, m.node(), 1)
}

// firstIdentifierAfter returns the first Identifier token that appears
// after the first occurrence of after among n's direct token children.
func firstIdentifierAfter(tree *syntax.Tree, n *syntax.Node, after lexer.TokenKind) Option[string] {
	if n == nil {
		return None[string]()
	}
	seen := false
	for _, tok := range directTokens(tree, n) {
		switch {
		case tok.Kind == after:
			seen = true
		case seen && tok.Kind == lexer.TokenIdentifier:
			return Some(string(tok.Bytes(tree.Source)))
		}
	}
	return None[string]()
}

// lastIdentifier returns the last Identifier token among n's direct token
// children (the common shape for a trailing reference like `obeys key` or
// `insert RuleSetName`).
func lastIdentifier(tree *syntax.Tree, n *syntax.Node) Option[string] {
	if n == nil {
		return None[string]()
	}
	var out Option[string]
	for _, tok := range directTokens(tree, n) {
		if tok.Kind == lexer.TokenIdentifier {
			out = Some(string(tok.Bytes(tree.Source)))
		}
	}
	return out
}

// stringTokenAt returns the (index)'th String/MultilineString token among
// n's direct token children, 0-based.
func stringTokenAt(tree *syntax.Tree, n *syntax.Node, index int) Option[string] {
	if n == nil {
		return None[string]()
	}
	count := 0
	for _, tok := range directTokens(tree, n) {
		if tok.Kind == lexer.TokenString || tok.Kind == lexer.TokenMultilineString {
			if count == index {
				return Some(string(tok.Bytes(tree.Source)))
			}
			count++
		}
	}
	return None[string]()
}
