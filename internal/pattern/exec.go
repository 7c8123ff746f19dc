package pattern

import (
	"regexp"
	"strings"

	"github.com/octofhir/fshlint/internal/ast"
	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
	"github.com/octofhir/fshlint/internal/text"
)

// Match is one successful pattern match (spec §4.5 "Matches").
type Match struct {
	Node     syntax.NodeID
	Span     text.Span
	Text     string
	Bindings map[string]ast.Entity
}

// Run executes a compiled pattern against doc's candidate nodes (spec §4.5
// "Execution semantics"), returning matches in document order.
func Run(ir *IR, doc ast.Document) []Match {
	tree := doc.Tree()
	var matches []Match

	for _, candidate := range doc.Entities() {
		if candidate.Kind() != ir.NodeKind {
			continue
		}

		bindings := map[string]ast.Entity{}
		if ir.HasBinder {
			bindings[ir.Binder] = candidate
		}

		if !evalClauses(ir.Clauses, bindings, tree) {
			continue
		}

		span := candidate.Span()
		matches = append(matches, Match{
			Node:     candidate.Node(),
			Span:     span,
			Text:     string(tree.Source[span.Start:span.End]),
			Bindings: bindings,
		})
	}

	return matches
}

func evalClauses(clauses []irClause, bindings map[string]ast.Entity, tree *syntax.Tree) bool {
	for _, clause := range clauses {
		for _, pred := range clause.Predicates {
			if !evalPredicate(&pred, bindings, tree) {
				return false
			}
		}
	}
	return true
}

func evalPredicate(p *irPredicate, bindings map[string]ast.Entity, tree *syntax.Tree) bool {
	switch {
	case p.Not != nil:
		return !evalPredicate(p.Not, bindings, tree)
	case p.Call != nil:
		return evalPredicateCall(p.Call, bindings, tree)
	case p.Rel != nil:
		return evalRelation(p.Rel, bindings, tree)
	default:
		return false
	}
}

func evalRelation(r *irRelation, bindings map[string]ast.Entity, tree *syntax.Tree) bool {
	ok := evalOp(r, bindings, tree)
	if r.Next == nil {
		return ok
	}
	switch r.Combinator {
	case "and":
		return ok && evalPredicate(r.Next, bindings, tree)
	case "or":
		return ok || evalPredicate(r.Next, bindings, tree)
	default:
		return ok
	}
}

func evalOp(r *irRelation, bindings map[string]ast.Entity, tree *syntax.Tree) bool {
	left := stringForm(r.Left, bindings, tree)
	switch r.Op {
	case "<:":
		if r.Right.Regexp == nil {
			return false
		}
		return r.Right.Regexp.MatchString(left)
	case "contains":
		return strings.Contains(left, stringForm(r.Right, bindings, tree))
	case "==":
		return left == stringForm(r.Right, bindings, tree)
	case "!=":
		return left != stringForm(r.Right, bindings, tree)
	case "startsWith":
		return strings.HasPrefix(left, stringForm(r.Right, bindings, tree))
	case "endsWith":
		return strings.HasSuffix(left, stringForm(r.Right, bindings, tree))
	default:
		return false
	}
}

// stringForm resolves an expr to its string form (spec §4.5 step 4: unknown
// fields yield None, which this renders as "" so it fails whatever relation
// tests it — a missing field never accidentally matches).
func stringForm(e irExpr, bindings map[string]ast.Entity, tree *syntax.Tree) string {
	switch e.Kind {
	case exprString, exprRegex:
		return e.Literal
	case exprVar:
		entity, ok := bindings[e.VarName]
		if !ok {
			return ""
		}
		if e.Field == "" {
			name, _ := entity.Name().Get()
			return name
		}
		val, _ := fieldValue(entity, e.Field)
		return val
	case exprCall:
		if e.Call == nil || len(e.Call.Args) == 0 {
			return ""
		}
		arg := stringForm(e.Call.Args[0], bindings, tree)
		return applyTransform(e.Call.Name, arg)
	default:
		return ""
	}
}

// fieldValue resolves `$var.field` against the typed AST entity accessors
// spec §4.5 step 4 describes ("for a Profile bound to $var, $var.name yields
// the name identifier node").
func fieldValue(e ast.Entity, field string) (string, bool) {
	switch field {
	case "name":
		return e.Name().Get()
	case "id":
		return e.Id().Get()
	case "title":
		return e.Title().Get()
	case "description":
		return e.Description().Get()
	case "parent":
		return e.Parent().Get()
	case "usage":
		return e.Usage().Get()
	case "instanceOf":
		return e.InstanceOf().Get()
	case "source":
		return e.Source().Get()
	case "target":
		return e.Target().Get()
	case "expression":
		return e.Expression().Get()
	case "severity":
		return e.Severity().Get()
	case "xpath":
		return e.XPath().Get()
	default:
		return "", false
	}
}

func evalPredicateCall(c *irCall, bindings map[string]ast.Entity, tree *syntax.Tree) bool {
	var arg0Entity ast.Entity
	var hasEntity bool
	var arg0String string
	if len(c.Args) > 0 && c.Args[0].Kind == exprVar && c.Args[0].Field == "" {
		arg0Entity, hasEntity = bindings[c.Args[0].VarName]
	}
	if len(c.Args) > 0 {
		arg0String = stringForm(c.Args[0], bindings, tree)
	}

	switch c.Name {
	case "is_profile":
		return hasEntity && arg0Entity.Kind() == syntax.KindProfileDecl
	case "is_extension":
		return hasEntity && arg0Entity.Kind() == syntax.KindExtensionDecl
	case "is_valueset":
		return hasEntity && arg0Entity.Kind() == syntax.KindValueSetDecl
	case "is_codesystem":
		return hasEntity && arg0Entity.Kind() == syntax.KindCodeSystemDecl
	case "is_instance":
		return hasEntity && arg0Entity.Kind() == syntax.KindInstanceDecl
	case "is_ruleset":
		return hasEntity && arg0Entity.Kind() == syntax.KindRuleSetDecl
	case "has_comment":
		return hasEntity && nodeHasComment(tree, arg0Entity.Node())
	case "has_url":
		return hasEntity && nodeHasURL(tree, arg0Entity.Node())
	case "has_title":
		if hasEntity {
			_, ok := arg0Entity.Title().Get()
			return ok
		}
		return false
	case "has_description":
		if hasEntity {
			_, ok := arg0Entity.Description().Get()
			return ok
		}
		return false
	case "is_kebab_case":
		return isKebabCase(arg0String)
	case "is_pascal_case":
		return isPascalCase(arg0String)
	default:
		return false
	}
}

var kebabCaseRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func isKebabCase(s string) bool {
	return s != "" && kebabCaseRe.MatchString(s)
}

func isPascalCase(s string) bool {
	if s == "" {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// nodeHasComment inspects every token directly or transitively within n's
// span for leading/trailing comment trivia (spec §4.5 built-in
// `has_comment($n)`).
func nodeHasComment(tree *syntax.Tree, id syntax.NodeID) bool {
	for _, tok := range tree.TokensFor(id) {
		if tok.HasLeadingComment() || tok.HasTrailingComment() {
			return true
		}
	}
	return false
}

// nodeHasURL reports whether any string-literal token within n's span looks
// like a URL (scheme://...), the closest stable signal available without a
// dedicated "canonical URL" CST node (there is no ^url caret-path-specific
// node kind; it is just another CaretValueRule).
func nodeHasURL(tree *syntax.Tree, id syntax.NodeID) bool {
	for _, tok := range tree.TokensFor(id) {
		if tok.Kind != lexer.TokenString && tok.Kind != lexer.TokenMultilineString {
			continue
		}
		lit := string(tok.Bytes(tree.Source))
		if strings.Contains(lit, "://") {
			return true
		}
	}
	return false
}

func applyTransform(name, s string) string {
	switch name {
	case "upper":
		return strings.ToUpper(s)
	case "lower":
		return strings.ToLower(s)
	case "capitalize":
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	case "to_kebab_case":
		return toKebabCase(s)
	case "to_pascal_case":
		return toPascalCase(s)
	case "to_snake_case":
		return toSnakeCase(s)
	default:
		return s
	}
}

func toKebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r == ' ':
			b.WriteByte('-')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		if len(p) > 1 {
			b.WriteString(p[1:])
		}
	}
	return b.String()
}
