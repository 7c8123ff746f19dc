package pattern

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/octofhir/fshlint/internal/syntax"
)

// ErrCompile is returned (wrapped) whenever a pattern fails to parse,
// validate, or have its regex literals compiled.
type ErrCompile struct {
	Source string
	Reason string
}

func (e *ErrCompile) Error() string {
	return fmt.Sprintf("pattern: %s: %s", e.Reason, e.Source)
}

// predicateFunctions is the closed set of node/string predicate built-ins
// spec §4.5 names (representatively, via "..."): attempting to call a name
// outside this set fails compilation.
var predicateFunctions = map[string]bool{
	"is_profile":     true,
	"is_extension":   true,
	"is_valueset":    true,
	"is_codesystem":  true,
	"is_instance":    true,
	"is_ruleset":     true,
	"has_comment":    true,
	"has_url":        true,
	"has_title":      true,
	"has_description": true,
	"is_kebab_case":  true,
	"is_pascal_case": true,
}

// transformFunctions is the closed set of rewrite-expr transform built-ins.
var transformFunctions = map[string]bool{
	"capitalize":    true,
	"to_kebab_case": true,
	"to_pascal_case": true,
	"to_snake_case": true,
	"upper":         true,
	"lower":         true,
}

// nodeKinds maps the pattern grammar's surface NodeKind spelling to the CST
// node kind it selects candidates from.
var nodeKinds = map[string]syntax.NodeKind{
	"Profile":    syntax.KindProfileDecl,
	"Extension":  syntax.KindExtensionDecl,
	"ValueSet":   syntax.KindValueSetDecl,
	"CodeSystem": syntax.KindCodeSystemDecl,
	"Instance":   syntax.KindInstanceDecl,
	"RuleSet":    syntax.KindRuleSetDecl,
}

// IR is a compiled, validated pattern ready for execution. Field access and
// function names have been checked against the typed AST and the closed
// built-in registries; regex literals have been precompiled.
type IR struct {
	Source    string
	NodeKind  syntax.NodeKind
	Binder    string // "" if the pattern declares no root binder
	HasBinder bool
	Clauses   []irClause
	HasRewrite bool
	Rewrite   irRewrite
}

type irClause struct {
	Predicates []irPredicate
}

type irPredicate struct {
	Not *irPredicate
	Call *irCall
	Rel  *irRelation
}

type irRelation struct {
	Left       irExpr
	Op         string
	Right      irExpr
	Combinator string // "and", "or", or ""
	Next       *irPredicate
}

type exprKind uint8

const (
	exprVar exprKind = iota
	exprString
	exprRegex
	exprCall
)

type irExpr struct {
	Kind    exprKind
	VarName string
	Field   string // "" if no field access
	Literal string
	Regexp  *regexp.Regexp
	Call    *irCall
}

type irCall struct {
	Name string
	Args []irExpr
}

type irRewrite struct {
	Kind   string // "rewrite", "insert", "delete"
	Target irExpr // var (+ optional field) for rewrite/delete
	Value  irExpr // for rewrite
	Text   string // for insert
}

// compileCache memoizes compiled patterns by their exact source text.
var compileCache sync.Map // source string -> *IR

// Compile parses, validates, and lowers pattern source text into an IR,
// caching the result by the exact source text (spec §4.5 "Compilation").
// A cache hit returns the same *IR pointer without re-parsing.
func Compile(source string) (*IR, error) {
	if cached, ok := compileCache.Load(source); ok {
		return cached.(*IR), nil
	}

	ir, err := compile(source)
	if err != nil {
		return nil, err
	}
	actual, _ := compileCache.LoadOrStore(source, ir)
	return actual.(*IR), nil
}

func compile(source string) (*IR, error) {
	parser, err := newParser()
	if err != nil {
		return nil, &ErrCompile{Source: source, Reason: "grammar build failed: " + err.Error()}
	}

	g, err := parser.ParseString("", source)
	if err != nil {
		return nil, &ErrCompile{Source: source, Reason: "parse error: " + err.Error()}
	}

	kind, ok := nodeKinds[g.Kind]
	if !ok {
		return nil, &ErrCompile{Source: source, Reason: "unknown node kind " + g.Kind}
	}

	ir := &IR{Source: source, NodeKind: kind}
	if g.Binder != nil {
		ir.Binder = *g.Binder
		ir.HasBinder = true
	}

	bound := map[string]bool{}
	if ir.HasBinder {
		bound[ir.Binder] = true
	}

	for _, c := range g.Clauses {
		clause := irClause{}
		for _, p := range c.Predicates {
			ip, err := lowerPredicate(p, bound)
			if err != nil {
				return nil, &ErrCompile{Source: source, Reason: err.Error()}
			}
			clause.Predicates = append(clause.Predicates, ip)
		}
		ir.Clauses = append(ir.Clauses, clause)
	}

	if g.Rewrite != nil {
		rw, err := lowerRewrite(g.Rewrite, bound)
		if err != nil {
			return nil, &ErrCompile{Source: source, Reason: err.Error()}
		}
		ir.HasRewrite = true
		ir.Rewrite = rw
	}

	return ir, nil
}

func lowerPredicate(p *Predicate, bound map[string]bool) (irPredicate, error) {
	switch {
	case p.Not != nil:
		inner, err := lowerPredicate(p.Not, bound)
		if err != nil {
			return irPredicate{}, err
		}
		return irPredicate{Not: &inner}, nil
	case p.Call != nil:
		call, err := lowerCall(p.Call, bound, predicateFunctions)
		if err != nil {
			return irPredicate{}, err
		}
		return irPredicate{Call: call}, nil
	case p.Rel != nil:
		rel, err := lowerRelation(p.Rel, bound)
		if err != nil {
			return irPredicate{}, err
		}
		return irPredicate{Rel: rel}, nil
	default:
		return irPredicate{}, fmt.Errorf("empty predicate")
	}
}

func lowerRelation(r *Relation, bound map[string]bool) (*irRelation, error) {
	left, err := lowerExpr(r.Left, bound)
	if err != nil {
		return nil, err
	}
	right, err := lowerExpr(r.Right, bound)
	if err != nil {
		return nil, err
	}
	rel := &irRelation{Left: left, Op: r.Op, Right: right}
	if r.Combinator != nil {
		next, err := lowerPredicate(r.Combinator.Next, bound)
		if err != nil {
			return nil, err
		}
		rel.Combinator = r.Combinator.Op
		rel.Next = &next
	}
	return rel, nil
}

func lowerExpr(e *Expr, bound map[string]bool) (irExpr, error) {
	switch {
	case e.Call != nil:
		call, err := lowerCall(e.Call, bound, transformFunctions)
		if err != nil {
			return irExpr{}, err
		}
		return irExpr{Kind: exprCall, Call: call}, nil
	case e.Var != nil:
		if !bound[e.Var.Name] {
			return irExpr{}, fmt.Errorf("unbound variable $%s", e.Var.Name)
		}
		field := ""
		if e.Var.Field != nil {
			field = *e.Var.Field
		}
		return irExpr{Kind: exprVar, VarName: e.Var.Name, Field: field}, nil
	case e.String != nil:
		return irExpr{Kind: exprString, Literal: unquote(*e.String)}, nil
	case e.Regex != nil:
		pattern := unbacktick(*e.Regex)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return irExpr{}, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		return irExpr{Kind: exprRegex, Literal: pattern, Regexp: re}, nil
	default:
		return irExpr{}, fmt.Errorf("empty expression")
	}
}

func lowerCall(c *CallExpr, bound map[string]bool, allowed map[string]bool) (*irCall, error) {
	if !allowed[c.Name] {
		return nil, fmt.Errorf("undefined function %s", c.Name)
	}
	call := &irCall{Name: c.Name}
	for _, argExpr := range c.Args {
		arg, err := lowerExpr(argExpr, bound)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

func lowerRewrite(r *Rewrite, bound map[string]bool) (irRewrite, error) {
	switch {
	case r.RewriteOp != nil:
		target, err := lowerVarRef(r.RewriteOp.Target, bound)
		if err != nil {
			return irRewrite{}, err
		}
		value, err := lowerExpr(r.RewriteOp.Value, bound)
		if err != nil {
			return irRewrite{}, err
		}
		return irRewrite{Kind: "rewrite", Target: target, Value: value}, nil
	case r.InsertOp != nil:
		return irRewrite{Kind: "insert", Text: unquote(r.InsertOp.Text)}, nil
	case r.DeleteOp != nil:
		target, err := lowerVarRef(r.DeleteOp.Target, bound)
		if err != nil {
			return irRewrite{}, err
		}
		return irRewrite{Kind: "delete", Target: target}, nil
	default:
		return irRewrite{}, fmt.Errorf("empty rewrite body")
	}
}

func lowerVarRef(v *VarRef, bound map[string]bool) (irExpr, error) {
	if !bound[v.Name] {
		return irExpr{}, fmt.Errorf("unbound variable $%s", v.Name)
	}
	field := ""
	if v.Field != nil {
		field = *v.Field
	}
	return irExpr{Kind: exprVar, VarName: v.Name, Field: field}, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func unbacktick(s string) string {
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		return s[1 : len(s)-1]
	}
	return s
}
