// Package pattern implements the declarative pattern DSL (spec §4.5): a
// small language for expressing lint rules as tree patterns plus predicates
// and optional rewrites, without writing a native Go rule.
//
// Pattern source text is parsed by a Participle grammar (this file) into a
// concrete grammar tree, then lowered by Compile into the IR the executor
// consumes (compile.go), matched against a parsed document (exec.go), and
// any rewrite clause turned into diagnostic suggestions (rewrite.go).
package pattern

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var patternLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Regex", Pattern: "`[^`]*`"},
	{Name: "Op", Pattern: `<:|==|!=`},
	{Name: "Arrow", Pattern: `=>`},
	{Name: "Punct", Pattern: `[{}().,:$]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},
})

// Grammar mirrors spec §4.5's informal BNF:
//
//	Pattern    := NodeKind ':' Binder? Clause* Rewrite?
//	NodeKind   := 'Profile' | 'Extension' | 'ValueSet' | 'CodeSystem' | 'Instance' | 'RuleSet'
//	Binder     := '$' Ident
//	Clause     := 'where' '{' PredicateList '}'

// Grammar is the root production of one compiled pattern.
type Grammar struct {
	Pos     lexer.Position
	Kind    string     `@("Profile"|"Extension"|"ValueSet"|"CodeSystem"|"Instance"|"RuleSet") ":"`
	Binder  *string    `( "$" @Ident )?`
	Clauses []*Clause  `@@*`
	Rewrite *Rewrite   `( "=>" @@ )?`
}

// Clause is a `where { ... }` predicate block.
type Clause struct {
	Pos        lexer.Position
	Predicates []*Predicate `"where" "{" @@* "}"`
}

// Predicate is one of: negation, a built-in function call, or a relational
// expression (optionally chained with 'and'/'or').
type Predicate struct {
	Pos  lexer.Position
	Not  *Predicate `  "not" @@`
	Call *CallExpr  `| @@`
	Rel  *Relation  `| @@`
}

// CallExpr is a bare built-in predicate invocation, e.g. `is_profile($p)`.
type CallExpr struct {
	Pos  lexer.Position
	Name string  `@Ident "("`
	Args []*Expr `( @@ ( "," @@ )* )? ")"`
}

// Relation is `Expr op Expr`, optionally chained by a trailing and/or.
type Relation struct {
	Pos        lexer.Position
	Left       *Expr       `@@`
	Op         string      `@( "<:" | "contains" | "==" | "!=" | "startsWith" | "endsWith" )`
	Right      *Expr       `@@`
	Combinator *Combinator `@@?`
}

// Combinator chains a relation to the next predicate with 'and'/'or'.
type Combinator struct {
	Pos  lexer.Position
	Op   string     `@( "and" | "or" )`
	Next *Predicate `@@`
}

// Expr is a variable reference (with optional field access), a string
// literal, a regex literal, or a transform function call.
type Expr struct {
	Pos    lexer.Position
	Call   *CallExpr `  @@`
	Var    *VarRef   `| @@`
	String *string   `| @String`
	Regex  *string   `| @Regex`
}

// VarRef is `$Name` or `$Name.field`.
type VarRef struct {
	Pos   lexer.Position
	Name  string  `"$" @Ident`
	Field *string `( "." @Ident )?`
}

// Rewrite is the `=> ...` clause: exactly one of rewrite/insert/delete.
//
//	Rewrite    := '=>' RewriteBody
//	RewriteBody:= 'rewrite(' Target ')' '=>' Expr
//	             | 'insert(' String ')'
//	             | 'delete(' Target ')'
type Rewrite struct {
	Pos       lexer.Position
	RewriteOp *RewriteOp `  @@`
	InsertOp  *InsertOp  `| @@`
	DeleteOp  *DeleteOp  `| @@`
}

// RewriteOp replaces $target's span with the rendered value of an Expr.
type RewriteOp struct {
	Pos    lexer.Position
	Target *VarRef `"rewrite" "(" @@ ")" "=>"`
	Value  *Expr   `@@`
}

// InsertOp inserts literal text at a context-determined anchor point.
type InsertOp struct {
	Pos  lexer.Position
	Text string `"insert" "(" @String ")"`
}

// DeleteOp removes $target's span entirely.
type DeleteOp struct {
	Pos    lexer.Position
	Target *VarRef `"delete" "(" @@ ")"`
}

// newParser builds the Participle parser for pattern source text.
func newParser() (*participle.Parser[Grammar], error) {
	return participle.Build[Grammar](
		participle.Lexer(patternLexer),
		participle.UseLookahead(4),
		participle.Elide("Comment", "Whitespace"),
	)
}
