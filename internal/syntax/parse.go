package syntax

import (
	"fmt"

	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/text"
)

// Parse lexes and parses src into a lossless CST.
//
// Parse never panics and never fails outright: malformed input produces
// KindError/KindMissing nodes with attached diagnostics instead of an error
// return, so every byte of src is still covered by some node in the tree.
func Parse(src []byte, opts ParseOptions) *Tree {
	lexRes := lexer.Lex(src)

	p := &parser{
		src:    src,
		tokens: lexRes.Tokens,
		nodes:  []Node{{}}, // index 0 sentinel
	}
	for _, d := range lexRes.Diagnostics {
		p.diags = append(p.diags, Diagnostic{
			Code:        mapLexDiagnosticCode(d.Code),
			Message:     d.Message,
			Severity:    SeverityError,
			Span:        d.Span,
			Source:      "lexer",
			Recoverable: true,
		})
	}

	root := p.parseDocument()

	tree := &Tree{
		URI:         opts.URI,
		Source:      src,
		Tokens:      p.tokens,
		Nodes:       p.nodes,
		Root:        root,
		Diagnostics: p.diags,
		LineIndex:   text.NewLineIndex(src),
	}
	fixupParents(tree, root, NoNode)
	return tree
}

func mapLexDiagnosticCode(code lexer.DiagnosticCode) DiagnosticCode {
	switch code {
	case lexer.DiagnosticUnterminatedString:
		return "LEX_UNTERMINATED_STRING"
	case lexer.DiagnosticUnterminatedBlockComment:
		return "LEX_UNTERMINATED_BLOCK_COMMENT"
	case lexer.DiagnosticInvalidByte:
		return "LEX_INVALID_BYTE"
	default:
		return "LEX_UNKNOWN_CHARACTER"
	}
}

func fixupParents(t *Tree, id, parent NodeID) {
	n := t.NodeByID(id)
	if n == nil {
		return
	}
	n.Parent = parent
	for _, c := range n.Children {
		if !c.IsToken {
			fixupParents(t, NodeID(c.Index), id)
		}
	}
}

// entityBoundary keywords that start a new top-level entity declaration.
var entityBoundaryKinds = map[lexer.TokenKind]NodeKind{
	lexer.TokenKwProfile:    KindProfileDecl,
	lexer.TokenKwExtension:  KindExtensionDecl,
	lexer.TokenKwLogical:    KindLogicalDecl,
	lexer.TokenKwResource:   KindResourceDecl,
	lexer.TokenKwValueSet:   KindValueSetDecl,
	lexer.TokenKwCodeSystem: KindCodeSystemDecl,
	lexer.TokenKwInstance:   KindInstanceDecl,
	lexer.TokenKwRuleSet:    KindRuleSetDecl,
	lexer.TokenKwMapping:    KindMappingDecl,
	lexer.TokenKwInvariant:  KindInvariantDecl,
}

// metadataKeywordKinds maps a metadata keyword token to its CST node kind.
var metadataKeywordKinds = map[lexer.TokenKind]NodeKind{
	lexer.TokenKwParent:      KindMetadataParent,
	lexer.TokenKwId:          KindMetadataId,
	lexer.TokenKwTitle:       KindMetadataTitle,
	lexer.TokenKwDescription: KindMetadataDescription,
	lexer.TokenKwUsage:       KindMetadataUsage,
	lexer.TokenKwInstanceOf:  KindMetadataInstanceOf,
	lexer.TokenKwSource:      KindMetadataSource,
	lexer.TokenKwTarget:      KindMetadataTarget,
	lexer.TokenKwExpression:  KindMetadataExpression,
	lexer.TokenKwSeverity:    KindMetadataSeverity,
	lexer.TokenKwXPath:       KindMetadataXPath,
}

var valueLikeKinds = map[lexer.TokenKind]bool{
	lexer.TokenIdentifier:      true,
	lexer.TokenString:          true,
	lexer.TokenMultilineString: true,
	lexer.TokenNumber:          true,
}

type parser struct {
	src    []byte
	tokens []lexer.Token
	pos    int
	nodes  []Node
	diags  []Diagnostic
}

func (p *parser) curKind() lexer.TokenKind {
	return p.tokens[p.pos].Kind
}

func (p *parser) atEOF() bool {
	return p.curKind() == lexer.TokenEOF
}

func (p *parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *parser) curSpan() text.Span {
	return p.tokens[p.pos].Span
}

// advance consumes the current token and returns its index.
func (p *parser) advance() int {
	i := p.pos
	if !p.atEOF() {
		p.pos++
	}
	return i
}

func (p *parser) at(kind lexer.TokenKind) bool {
	return p.curKind() == kind
}

func (p *parser) atAny(kinds ...lexer.TokenKind) bool {
	for _, k := range kinds {
		if p.curKind() == k {
			return true
		}
	}
	return false
}

// expect consumes the current token if it matches kind, else records a
// MissingNode diagnostic and returns ok=false without advancing.
func (p *parser) expect(kind lexer.TokenKind, what string) (int, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	p.diags = append(p.diags, Diagnostic{
		Code:        DiagnosticParserMissingNode,
		Message:     fmt.Sprintf("expected %s, found %s", what, p.curKind()),
		Severity:    SeverityError,
		Span:        p.curSpan(),
		Source:      "parser",
		Recoverable: true,
	})
	return -1, false
}

func tokenRef(tok int) ChildRef {
	return ChildRef{IsToken: true, Index: uint32(tok)}
}

func nodeRef(id NodeID) ChildRef {
	return ChildRef{IsToken: false, Index: uint32(id)}
}

func (p *parser) newNode(kind NodeKind, firstTok, lastTok int, children []ChildRef, flags NodeFlags) NodeID {
	span := p.spanFromTokens(firstTok, lastTok)
	id := NodeID(len(p.nodes))
	p.nodes = append(p.nodes, Node{
		ID:         id,
		Kind:       kind,
		Span:       span,
		FirstToken: uint32(firstTok),
		LastToken:  uint32(lastTok),
		Children:   children,
		Flags:      flags,
	})
	return id
}

func (p *parser) spanFromTokens(firstTok, lastTok int) text.Span {
	if lastTok < firstTok {
		sp := p.tokens[firstTok].Span
		return text.Span{Start: sp.Start, End: sp.Start}
	}
	start := p.tokens[firstTok].Span.Start
	end := p.tokens[lastTok].Span.End
	return text.Span{Start: start, End: end}
}

// synthesizeMissing creates a zero-width KindMissing node at the current
// position, so callers always get a NodeID to attach even when a required
// construct is absent from the source.
func (p *parser) synthesizeMissing(kind NodeKind) NodeID {
	tok := p.pos
	return p.newNode(kind, tok, tok-1, nil, NodeFlagMissing)
}

// parseDocument parses the whole file: a sequence of Alias lines and entity
// declarations, in any order, until EOF.
func (p *parser) parseDocument() NodeID {
	firstTok := p.pos
	var children []ChildRef

	for !p.atEOF() {
		before := p.pos
		var child NodeID

		switch {
		case p.at(lexer.TokenKwAlias):
			child = p.parseAlias()
		default:
			if kind, ok := entityBoundaryKinds[p.curKind()]; ok {
				child = p.parseEntity(kind)
			} else {
				child = p.recoverUnexpectedToken()
			}
		}
		children = append(children, nodeRef(child))

		if p.pos == before {
			// Safety valve: a production that consumed nothing would loop forever.
			p.advance()
		}
	}

	lastTok := p.pos
	return p.newNode(KindDocument, firstTok, lastTok, children, 0)
}

// recoverUnexpectedToken consumes exactly one token into an error node and
// records a diagnostic, so the parser always makes forward progress.
func (p *parser) recoverUnexpectedToken() NodeID {
	tok := p.advance()
	p.diags = append(p.diags, Diagnostic{
		Code:        DiagnosticParserErrorNode,
		Message:     fmt.Sprintf("unexpected token %s", p.tokens[tok].Kind),
		Severity:    SeverityError,
		Span:        p.tokens[tok].Span,
		Source:      "parser",
		Recoverable: true,
	})
	return p.newNode(KindError, tok, tok, []ChildRef{tokenRef(tok)}, NodeFlagError)
}

// parseAlias parses `Alias: $Name = CanonicalURLOrCode`.
func (p *parser) parseAlias() NodeID {
	firstTok := p.advance() // Alias
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenColon, "':'"); ok {
		children = append(children, tokenRef(tok))
	}
	if tok, ok := p.expect(lexer.TokenIdentifier, "alias name"); ok {
		children = append(children, tokenRef(tok))
	}
	if tok, ok := p.expect(lexer.TokenEqual, "'='"); ok {
		children = append(children, tokenRef(tok))
	}
	if valueLikeKinds[p.curKind()] {
		children = append(children, tokenRef(p.advance()))
	} else {
		children = append(children, nodeRef(p.synthesizeMissing(KindMissing)))
	}

	lastTok := p.pos - 1
	return p.newNode(KindAliasDecl, firstTok, lastTok, children, 0)
}

// atEntityBoundary reports whether the parser has reached the next
// top-level Alias/entity keyword, ending the current entity's body.
func (p *parser) atEntityBoundary() bool {
	if p.atEOF() {
		return true
	}
	if p.at(lexer.TokenKwAlias) {
		return true
	}
	_, ok := entityBoundaryKinds[p.curKind()]
	return ok
}

// parseEntity parses one entity declaration: `Keyword: Name` followed by
// metadata lines and rule lines, until the next entity boundary.
func (p *parser) parseEntity(kind NodeKind) NodeID {
	firstTok := p.advance() // entity keyword
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenColon, "':'"); ok {
		children = append(children, tokenRef(tok))
	}
	if tok, ok := p.expect(lexer.TokenIdentifier, "entity name"); ok {
		children = append(children, tokenRef(tok))
	} else {
		children = append(children, nodeRef(p.synthesizeMissing(KindMissing)))
	}

	for !p.atEntityBoundary() {
		before := p.pos
		children = append(children, nodeRef(p.parseStatement()))
		if p.pos == before {
			p.advance()
		}
	}

	lastTok := p.pos - 1
	return p.newNode(kind, firstTok, lastTok, children, 0)
}

// parseStatement parses either a metadata keyword line or a `*`-prefixed rule.
func (p *parser) parseStatement() NodeID {
	if mdKind, ok := metadataKeywordKinds[p.curKind()]; ok {
		return p.parseMetadataLine(mdKind)
	}
	if p.at(lexer.TokenStar) {
		return p.parseRule()
	}
	return p.recoverUnexpectedToken()
}

func (p *parser) parseMetadataLine(kind NodeKind) NodeID {
	firstTok := p.advance() // keyword
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenColon, "':'"); ok {
		children = append(children, tokenRef(tok))
	}
	if valueLikeKinds[p.curKind()] {
		children = append(children, tokenRef(p.advance()))
	} else {
		children = append(children, nodeRef(p.synthesizeMissing(KindMissing)))
	}

	lastTok := p.pos - 1
	return p.newNode(kind, firstTok, lastTok, children, 0)
}

// parseRule parses one `*`-prefixed rule line. The grammar is intentionally
// permissive at the CST level: path shape and rule-body shape are recorded
// faithfully, and stricter per-rule-kind validation is left to the lint
// layer, which can see the whole (possibly malformed) tree.
func (p *parser) parseRule() NodeID {
	firstTok := p.advance() // '*'
	var children []ChildRef

	if p.at(lexer.TokenHash) {
		children = append(children, nodeRef(p.parseConceptDefinition()))
		return p.newNode(KindConceptDefinition, firstTok, p.pos-1, children, 0)
	}

	if p.at(lexer.TokenKwInsert) {
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "rule set name"); ok {
			children = append(children, tokenRef(tok))
		}
		return p.newNode(KindInsertRule, firstTok, p.pos-1, children, 0)
	}

	if p.at(lexer.TokenCaret) {
		children = append(children, nodeRef(p.parseCaretValueBody(p.pos)))
		return p.newNode(KindCaretValueRule, firstTok, p.pos-1, children, 0)
	}

	pathNode := p.parseElementPath()
	children = append(children, nodeRef(pathNode))

	switch {
	case p.at(lexer.TokenCaret):
		children = append(children, nodeRef(p.parseCaretValueBody(p.pos)))
		return p.newNode(KindCaretValueRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenNumber) || p.at(lexer.TokenDotDot):
		children = append(children, nodeRef(p.parseCardinality()))
		for p.atFlagToken() {
			children = append(children, tokenRef(p.advance()))
		}
		return p.newNode(KindCardinalityRule, firstTok, p.pos-1, children, 0)

	case p.atFlagToken():
		for p.atFlagToken() {
			children = append(children, tokenRef(p.advance()))
		}
		return p.newNode(KindFlagRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenKwFrom):
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "value set reference"); ok {
			children = append(children, tokenRef(tok))
		}
		if p.at(lexer.TokenLParen) {
			children = append(children, tokenRef(p.advance()))
			if tok, ok := p.expect(lexer.TokenIdentifier, "binding strength"); ok {
				children = append(children, tokenRef(tok))
			}
			if tok, ok := p.expect(lexer.TokenRParen, "')'"); ok {
				children = append(children, tokenRef(tok))
			}
		}
		return p.newNode(KindBindingRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenEqual):
		children = append(children, tokenRef(p.advance()))
		children = append(children, nodeRef(p.parseValue()))
		if p.at(lexer.TokenKwExactly) {
			children = append(children, tokenRef(p.advance()))
		}
		return p.newNode(KindAssignmentRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenKwContains):
		children = append(children, tokenRef(p.advance()))
		children = append(children, nodeRef(p.parseContainsItem()))
		for p.at(lexer.TokenKwAnd) {
			children = append(children, tokenRef(p.advance()))
			children = append(children, nodeRef(p.parseContainsItem()))
		}
		return p.newNode(KindContainsRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenKwObeys):
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "invariant key"); ok {
			children = append(children, tokenRef(tok))
		}
		return p.newNode(KindObeysRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenKwOnly):
		children = append(children, tokenRef(p.advance()))
		children = append(children, nodeRef(p.parseTargetTypeList()))
		return p.newNode(KindOnlyRule, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenArrow):
		// Mapping entry: `path -> "target" ["comment" [#code]]`.
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenString, "mapping target"); ok {
			children = append(children, tokenRef(tok))
		}
		if p.atAny(lexer.TokenString, lexer.TokenMultilineString) {
			children = append(children, tokenRef(p.advance())) // optional comment
		}
		if p.at(lexer.TokenHash) {
			children = append(children, nodeRef(p.parseValue())) // optional language code
		}
		return p.newNode(KindMappingEntry, firstTok, p.pos-1, children, 0)

	default:
		return p.newNode(KindPathRule, firstTok, p.pos-1, children, 0)
	}
}

// parseConceptDefinition parses a CodeSystem/ValueSet concept line:
// `#code ["display"] ["definition"]`.
func (p *parser) parseConceptDefinition() NodeID {
	firstTok := p.advance() // '#'
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenIdentifier, "concept code"); ok {
		children = append(children, tokenRef(tok))
	}
	if p.atAny(lexer.TokenString, lexer.TokenMultilineString) {
		children = append(children, tokenRef(p.advance())) // display
	}
	if p.atAny(lexer.TokenString, lexer.TokenMultilineString) {
		children = append(children, tokenRef(p.advance())) // definition
	}

	return p.newNode(KindCodeLiteral, firstTok, p.pos-1, children, 0)
}

func (p *parser) atFlagToken() bool {
	return p.atAny(
		lexer.TokenFlagMS, lexer.TokenFlagSU, lexer.TokenFlagTU,
		lexer.TokenFlagN, lexer.TokenFlagD, lexer.TokenFlagModifier,
	)
}

// parseElementPath parses a dotted FHIR element path with optional slice or
// choice-type brackets, e.g. `name.given[0]` or `value[x]`.
func (p *parser) parseElementPath() NodeID {
	firstTok := p.pos
	var children []ChildRef

	appendPart := func() {
		start := p.pos
		if tok, ok := p.expect(lexer.TokenIdentifier, "path segment"); ok {
			partChildren := []ChildRef{tokenRef(tok)}
			if p.at(lexer.TokenLBracket) {
				partChildren = append(partChildren, tokenRef(p.advance()))
				if p.atAny(lexer.TokenIdentifier, lexer.TokenNumber) {
					partChildren = append(partChildren, tokenRef(p.advance()))
				}
				if rb, ok := p.expect(lexer.TokenRBracket, "']'"); ok {
					partChildren = append(partChildren, tokenRef(rb))
				}
			}
			children = append(children, nodeRef(p.newNode(KindPathPart, start, p.pos-1, partChildren, 0)))
		}
	}

	appendPart()
	for p.at(lexer.TokenDot) {
		children = append(children, tokenRef(p.advance()))
		appendPart()
	}

	return p.newNode(KindElementPath, firstTok, p.pos-1, children, 0)
}

// parseCaretValueBody parses `^caretPath = value`, starting at the "^" token,
// which it consumes itself; the returned node starts at firstTok.
func (p *parser) parseCaretValueBody(firstTok int) NodeID {
	var children []ChildRef
	children = append(children, tokenRef(p.advance())) // '^'
	children = append(children, nodeRef(p.parseElementPath()))
	if tok, ok := p.expect(lexer.TokenEqual, "'='"); ok {
		children = append(children, tokenRef(tok))
	}
	children = append(children, nodeRef(p.parseValue()))
	return p.newNode(KindPathRule, firstTok, p.pos-1, children, 0)
}

func (p *parser) parseCardinality() NodeID {
	firstTok := p.pos
	var children []ChildRef

	if p.at(lexer.TokenNumber) {
		children = append(children, tokenRef(p.advance()))
	}
	if tok, ok := p.expect(lexer.TokenDotDot, "'..'"); ok {
		children = append(children, tokenRef(tok))
	}
	if p.atAny(lexer.TokenNumber, lexer.TokenStar) {
		children = append(children, tokenRef(p.advance()))
	}

	return p.newNode(KindCardinality, firstTok, p.pos-1, children, 0)
}

func (p *parser) parseContainsItem() NodeID {
	firstTok := p.pos
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenIdentifier, "contains item name"); ok {
		children = append(children, tokenRef(tok))
	}
	if p.at(lexer.TokenKwNamed) {
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "slice name"); ok {
			children = append(children, tokenRef(tok))
		}
	}
	if p.atAny(lexer.TokenNumber, lexer.TokenDotDot) {
		children = append(children, nodeRef(p.parseCardinality()))
	}
	for p.atFlagToken() {
		children = append(children, tokenRef(p.advance()))
	}

	return p.newNode(KindContainsItem, firstTok, p.pos-1, children, 0)
}

func (p *parser) parseTargetTypeList() NodeID {
	firstTok := p.pos
	var children []ChildRef

	children = append(children, nodeRef(p.parseTargetType()))
	for p.at(lexer.TokenKwAnd) || p.at(lexer.TokenPipe) || p.at(lexer.TokenKwOr) {
		children = append(children, tokenRef(p.advance()))
		children = append(children, nodeRef(p.parseTargetType()))
	}

	return p.newNode(KindTargetTypeList, firstTok, p.pos-1, children, 0)
}

func (p *parser) parseTargetType() NodeID {
	firstTok := p.pos
	var children []ChildRef

	if tok, ok := p.expect(lexer.TokenIdentifier, "type name"); ok {
		children = append(children, tokenRef(tok))
	}
	if p.at(lexer.TokenLParen) {
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "reference target"); ok {
			children = append(children, tokenRef(tok))
		}
		for p.at(lexer.TokenKwOr) {
			children = append(children, tokenRef(p.advance()))
			if tok, ok := p.expect(lexer.TokenIdentifier, "reference target"); ok {
				children = append(children, tokenRef(tok))
			}
		}
		if tok, ok := p.expect(lexer.TokenRParen, "')'"); ok {
			children = append(children, tokenRef(tok))
		}
	}

	return p.newNode(KindTargetType, firstTok, p.pos-1, children, 0)
}

// parseValue parses a single rule value: a literal, code, quantity, or
// canonical/reference expression built from one or more tokens.
func (p *parser) parseValue() NodeID {
	firstTok := p.pos

	switch {
	case p.at(lexer.TokenHash):
		var children []ChildRef
		children = append(children, tokenRef(p.advance()))
		if tok, ok := p.expect(lexer.TokenIdentifier, "code"); ok {
			children = append(children, tokenRef(tok))
		}
		if p.at(lexer.TokenString) {
			children = append(children, tokenRef(p.advance()))
		}
		return p.newNode(KindCodeLiteral, firstTok, p.pos-1, children, 0)

	case p.at(lexer.TokenNumber):
		var children []ChildRef
		children = append(children, tokenRef(p.advance()))
		if p.at(lexer.TokenString) {
			// Quantity literal: `value 'unit'` spelled as number followed by a
			// UCUM unit string.
			children = append(children, tokenRef(p.advance()))
			return p.newNode(KindQuantityLiteral, firstTok, p.pos-1, children, 0)
		}
		return p.newNode(KindQuantityLiteral, firstTok, p.pos-1, children, 0)

	case valueLikeKinds[p.curKind()]:
		tok := p.advance()
		return p.newNode(KindPathPart, firstTok, tok, []ChildRef{tokenRef(tok)}, 0)

	default:
		return p.synthesizeMissing(KindMissing)
	}
}
