// Package lexer provides a lossless token/trivia lexer for FHIR Shorthand (FSH) source.
package lexer

import (
	"fmt"

	"github.com/octofhir/fshlint/internal/text"
)

// TokenKind identifies the syntactic category of a token.
type TokenKind uint16

// TokenKind values used by the FSH lexer.
const (
	TokenError TokenKind = iota
	TokenEOF
	TokenIdentifier
	TokenNumber
	TokenString
	TokenMultilineString

	TokenKwAlias
	TokenKwProfile
	TokenKwExtension
	TokenKwValueSet
	TokenKwCodeSystem
	TokenKwInstance
	TokenKwRuleSet
	TokenKwMapping
	TokenKwInvariant
	TokenKwLogical
	TokenKwResource

	TokenKwParent
	TokenKwId
	TokenKwTitle
	TokenKwDescription
	TokenKwUsage
	TokenKwInstanceOf
	TokenKwSource
	TokenKwTarget
	TokenKwExpression
	TokenKwSeverity
	TokenKwXPath

	TokenKwFrom
	TokenKwContains
	TokenKwObeys
	TokenKwOnly
	TokenKwAnd
	TokenKwOr
	TokenKwNamed
	TokenKwInsert
	TokenKwExactly
	TokenKwUnits

	TokenFlagMS
	TokenFlagSU
	TokenFlagTU
	TokenFlagN
	TokenFlagD
	TokenFlagModifier // "?!"

	TokenColon
	TokenEqual
	TokenStar
	TokenPipe
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenDot
	TokenDotDot
	TokenArrow
	TokenHash
	TokenCaret
	TokenSlash
)

func (k TokenKind) String() string {
	switch k {
	case TokenError:
		return "Error"
	case TokenEOF:
		return "EOF"
	case TokenIdentifier:
		return "Identifier"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenMultilineString:
		return "MultilineString"
	case TokenKwAlias:
		return "KwAlias"
	case TokenKwProfile:
		return "KwProfile"
	case TokenKwExtension:
		return "KwExtension"
	case TokenKwValueSet:
		return "KwValueSet"
	case TokenKwCodeSystem:
		return "KwCodeSystem"
	case TokenKwInstance:
		return "KwInstance"
	case TokenKwRuleSet:
		return "KwRuleSet"
	case TokenKwMapping:
		return "KwMapping"
	case TokenKwInvariant:
		return "KwInvariant"
	case TokenKwLogical:
		return "KwLogical"
	case TokenKwResource:
		return "KwResource"
	case TokenKwParent:
		return "KwParent"
	case TokenKwId:
		return "KwId"
	case TokenKwTitle:
		return "KwTitle"
	case TokenKwDescription:
		return "KwDescription"
	case TokenKwUsage:
		return "KwUsage"
	case TokenKwInstanceOf:
		return "KwInstanceOf"
	case TokenKwSource:
		return "KwSource"
	case TokenKwTarget:
		return "KwTarget"
	case TokenKwExpression:
		return "KwExpression"
	case TokenKwSeverity:
		return "KwSeverity"
	case TokenKwXPath:
		return "KwXPath"
	case TokenKwFrom:
		return "KwFrom"
	case TokenKwContains:
		return "KwContains"
	case TokenKwObeys:
		return "KwObeys"
	case TokenKwOnly:
		return "KwOnly"
	case TokenKwAnd:
		return "KwAnd"
	case TokenKwOr:
		return "KwOr"
	case TokenKwNamed:
		return "KwNamed"
	case TokenKwInsert:
		return "KwInsert"
	case TokenKwExactly:
		return "KwExactly"
	case TokenKwUnits:
		return "KwUnits"
	case TokenFlagMS:
		return "FlagMS"
	case TokenFlagSU:
		return "FlagSU"
	case TokenFlagTU:
		return "FlagTU"
	case TokenFlagN:
		return "FlagN"
	case TokenFlagD:
		return "FlagD"
	case TokenFlagModifier:
		return "FlagModifier"
	case TokenColon:
		return "Colon"
	case TokenEqual:
		return "Equal"
	case TokenStar:
		return "Star"
	case TokenPipe:
		return "Pipe"
	case TokenLParen:
		return "LParen"
	case TokenRParen:
		return "RParen"
	case TokenLBracket:
		return "LBracket"
	case TokenRBracket:
		return "RBracket"
	case TokenLBrace:
		return "LBrace"
	case TokenRBrace:
		return "RBrace"
	case TokenDot:
		return "Dot"
	case TokenDotDot:
		return "DotDot"
	case TokenArrow:
		return "Arrow"
	case TokenHash:
		return "Hash"
	case TokenCaret:
		return "Caret"
	case TokenSlash:
		return "Slash"
	default:
		return fmt.Sprintf("TokenKind(%d)", k)
	}
}

// TokenFlags carry metadata about the token source or origin.
type TokenFlags uint8

// TokenFlags values describe token provenance or recovery state.
const (
	TokenFlagMalformed TokenFlags = 1 << iota
	TokenFlagSynthesized
	TokenFlagRecovered
)

// Has reports whether all bits in mask are set.
func (f TokenFlags) Has(mask TokenFlags) bool {
	return f&mask == mask
}

// Token is a lexed token with a source span, leading and trailing trivia.
type Token struct {
	Kind     TokenKind
	Span     text.Span
	Leading  []Trivia
	Trailing []Trivia
	Flags    TokenFlags
}

// Bytes returns the token bytes referenced by Span or nil if Span is invalid for src.
func (t Token) Bytes(src []byte) []byte {
	return bytesForSpan(src, t.Span)
}

// HasLeadingComment reports whether any leading trivia token is a comment.
func (t Token) HasLeadingComment() bool {
	return triviaHasComment(t.Leading)
}

// HasTrailingComment reports whether any trailing trivia token is a comment.
func (t Token) HasTrailingComment() bool {
	return triviaHasComment(t.Trailing)
}

var keywordKinds = map[string]TokenKind{
	"Alias":       TokenKwAlias,
	"Profile":     TokenKwProfile,
	"Extension":   TokenKwExtension,
	"ValueSet":    TokenKwValueSet,
	"CodeSystem":  TokenKwCodeSystem,
	"Instance":    TokenKwInstance,
	"RuleSet":     TokenKwRuleSet,
	"Mapping":     TokenKwMapping,
	"Invariant":   TokenKwInvariant,
	"Logical":     TokenKwLogical,
	"Resource":    TokenKwResource,
	"Parent":      TokenKwParent,
	"Id":          TokenKwId,
	"Title":       TokenKwTitle,
	"Description": TokenKwDescription,
	"Usage":       TokenKwUsage,
	"InstanceOf":  TokenKwInstanceOf,
	"Source":      TokenKwSource,
	"Target":      TokenKwTarget,
	"Expression":  TokenKwExpression,
	"Severity":    TokenKwSeverity,
	"XPath":       TokenKwXPath,
	"from":        TokenKwFrom,
	"contains":    TokenKwContains,
	"obeys":       TokenKwObeys,
	"only":        TokenKwOnly,
	"and":         TokenKwAnd,
	"or":          TokenKwOr,
	"named":       TokenKwNamed,
	"insert":      TokenKwInsert,
	"exactly":     TokenKwExactly,
	"units":       TokenKwUnits,
	"MS":          TokenFlagMS,
	"SU":          TokenFlagSU,
	"TU":          TokenFlagTU,
	"N":           TokenFlagN,
	"D":           TokenFlagD,
}

func bytesForSpan(src []byte, sp text.Span) []byte {
	if !sp.IsValid() {
		return nil
	}
	if sp.End > text.ByteOffset(len(src)) {
		return nil
	}
	return src[sp.Start:sp.End]
}
