package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/syntax"
)

// formatHints records, by token index, where blank-line and line-break
// separators belong: two breaks before a new top-level declaration, one
// break before every metadata/rule line inside a declaration body.
type formatHints struct {
	topLevelStart map[uint32]int
	lineStart     map[uint32]struct{}
	// caretPad maps the token index of a `^` token to the number of extra
	// spaces to insert before it so it aligns with the rest of its block.
	caretPad map[uint32]int
}

type tokenWriter struct {
	buf           bytes.Buffer
	newline       string
	indent        string
	maxBlankLines int
	atLineStart   bool
	pendingSpace  bool
	pendingBreaks int
}

func newTokenWriter(newline, indent string, maxBlankLines int) *tokenWriter {
	return &tokenWriter{
		newline:       newline,
		indent:        indent,
		maxBlankLines: maxBlankLines,
		atLineStart:   true,
	}
}

func (w *tokenWriter) requestSpace() {
	if w.atLineStart || w.pendingBreaks > 0 {
		return
	}
	w.pendingSpace = true
}

func (w *tokenWriter) requestBreaks(lines int) {
	if lines <= 0 {
		return
	}
	if lines > w.pendingBreaks {
		w.pendingBreaks = lines
	}
	w.pendingSpace = false
}

func (w *tokenWriter) addBreak() {
	w.pendingBreaks++
	w.pendingSpace = false
}

func (w *tokenWriter) flushBeforeContent(indentLevel int) {
	if w.pendingBreaks > 0 {
		w.buf.WriteString(repeatString(w.newline, w.cappedBreaks()))
		w.atLineStart = true
		w.pendingBreaks = 0
	}
	if w.atLineStart {
		if indentLevel > 0 {
			w.buf.WriteString(repeatString(w.indent, indentLevel))
		}
		w.atLineStart = false
		w.pendingSpace = false
		return
	}
	if w.pendingSpace {
		w.buf.WriteByte(' ')
		w.pendingSpace = false
	}
}

func (w *tokenWriter) writeRaw(indentLevel int, raw []byte) {
	if len(raw) == 0 {
		return
	}
	w.flushBeforeContent(indentLevel)
	w.buf.Write(raw)
	w.pendingSpace = false
	w.atLineStart = endsWithLineBreak(raw)
}

func (w *tokenWriter) emitLeadingTrivia(src []byte, trivia []lexer.Trivia, indentLevel int, preserveNewlines bool) error {
	hasComment := triviaHasComment(trivia)
	for _, tr := range trivia {
		switch tr.Kind {
		case lexer.TriviaWhitespace:
			if hasComment {
				w.requestSpace()
			}
		case lexer.TriviaNewline:
			if hasComment || preserveNewlines {
				w.addBreak()
			}
		case lexer.TriviaLineComment, lexer.TriviaBlockComment:
			raw := tr.Bytes(src)
			if raw == nil {
				return fmt.Errorf("invalid trivia span %s", tr.Span)
			}
			w.writeRaw(indentLevel, raw)
		default:
			// Ignore unknown trivia conservatively.
		}
	}
	return nil
}

func (w *tokenWriter) finish() []byte {
	if w.pendingBreaks > 0 {
		w.buf.WriteString(repeatString(w.newline, w.cappedBreaks()))
		w.pendingBreaks = 0
		w.pendingSpace = false
		w.atLineStart = true
	}
	return w.buf.Bytes()
}

func (w *tokenWriter) cappedBreaks() int {
	return min(w.pendingBreaks, max(w.maxBlankLines+1, 1))
}

// formatSyntaxTree re-prints the token stream of tree, normalizing
// inter-token spacing and line breaks while preserving every comment and
// every token's own bytes verbatim. FSH has no brace-delimited blocks:
// metadata lines sit at column zero, a rule line keeps its source
// indentation (see lineIndentLevel), each statement starts on its own line,
// top-level declarations are separated by a blank line, and the output ends
// with exactly one line break.
func formatSyntaxTree(tree *syntax.Tree, opts Options, policy SourcePolicy) ([]byte, error) {
	if tree == nil {
		return nil, errors.New("nil syntax tree")
	}
	if len(tree.Tokens) == 0 || tree.Root == syntax.NoNode {
		return bytes.Clone(tree.Source), nil
	}

	hints := collectFormatHints(tree, opts)
	w := newTokenWriter(policy.Newline, opts.Indent, opts.MaxBlankLines)
	if policy.HasBOM {
		w.buf.WriteString(utf8BOM)
		w.atLineStart = false
	}

	indentLevel := 0
	var prevKind lexer.TokenKind
	var havePrev bool

	for i := range tree.Tokens {
		idx := uint32(i)
		tok := tree.Tokens[i]
		if i > 0 {
			if err := w.emitLeadingTrivia(tree.Source, tree.Tokens[i-1].Trailing, indentLevel, false); err != nil {
				return nil, err
			}
		}
		if tok.Kind == lexer.TokenEOF {
			if err := w.emitLeadingTrivia(tree.Source, tok.Leading, 0, true); err != nil {
				return nil, err
			}
			break
		}

		if order, ok := hints.topLevelStart[idx]; ok && order > 0 {
			w.requestBreaks(2)
			indentLevel = 0
		} else if _, ok := hints.lineStart[idx]; ok {
			w.requestBreaks(1)
			indentLevel = lineIndentLevel(tok, opts.Indent)
		}

		if err := w.emitLeadingTrivia(tree.Source, tok.Leading, indentLevel, false); err != nil {
			return nil, err
		}
		if havePrev && shouldInsertSpace(prevKind, tok.Kind) {
			w.requestSpace()
		}
		if pad, ok := hints.caretPad[idx]; ok && pad > 0 {
			w.flushBeforeContent(indentLevel)
			w.buf.WriteString(strings.Repeat(" ", pad))
		}

		raw := tok.Bytes(tree.Source)
		if raw == nil {
			return nil, fmt.Errorf("invalid token span %s at index %d", tok.Span, i)
		}
		w.writeRaw(indentLevel, raw)

		prevKind = tok.Kind
		havePrev = true
	}

	if havePrev {
		w.pendingBreaks = 1
		w.pendingSpace = false
	}
	return bytes.Clone(w.finish()), nil
}

// lineIndentLevel returns the indent level for a statement line that starts
// with tok. A rule line (one starting with `*`) keeps the indentation it has
// in the source, counted in units of indent and at least one unit when it is
// indented at all; every other line starts at column zero.
func lineIndentLevel(tok lexer.Token, indent string) int {
	if tok.Kind != lexer.TokenStar || len(tok.Leading) == 0 || indent == "" {
		return 0
	}
	last := tok.Leading[len(tok.Leading)-1]
	if last.Kind != lexer.TriviaWhitespace {
		return 0
	}
	return max(int(last.Span.Len())/len(indent), 1)
}

func collectFormatHints(tree *syntax.Tree, opts Options) formatHints {
	hints := formatHints{
		topLevelStart: make(map[uint32]int),
		lineStart:     make(map[uint32]struct{}),
		caretPad:      make(map[uint32]int),
	}

	for order, id := range tree.ChildNodes(tree.Root) {
		n := tree.NodeByID(id)
		if n == nil {
			continue
		}
		hints.topLevelStart[n.FirstToken] = order

		children := tree.ChildNodes(id)
		for _, childID := range children {
			child := tree.NodeByID(childID)
			if child == nil || !isLineLevelKind(child.Kind) {
				continue
			}
			hints.lineStart[child.FirstToken] = struct{}{}
		}
		if opts.AlignCarets {
			collectCaretAlignment(tree, children, hints.caretPad)
		}
	}

	return hints
}

// collectCaretAlignment pads the `^` token of every caret-value rule in a
// contiguous run of sibling caret-value rules so they share a column — the
// target column is the widest rule prefix in the run, per spec.
func collectCaretAlignment(tree *syntax.Tree, siblings []syntax.NodeID, pad map[uint32]int) {
	i := 0
	for i < len(siblings) {
		n := tree.NodeByID(siblings[i])
		if n == nil || n.Kind != syntax.KindCaretValueRule {
			i++
			continue
		}

		type caretEntry struct {
			tokenIdx uint32
			width    int
		}
		var group []caretEntry
		maxWidth := 0

		j := i
		for j < len(siblings) {
			cn := tree.NodeByID(siblings[j])
			if cn == nil || cn.Kind != syntax.KindCaretValueRule {
				break
			}
			caretTok, ok := findCaretToken(tree, cn)
			if ok {
				width := prefixWidth(tree, cn.FirstToken, caretTok)
				group = append(group, caretEntry{tokenIdx: caretTok, width: width})
				if width > maxWidth {
					maxWidth = width
				}
			}
			j++
		}
		for _, e := range group {
			if e.width < maxWidth {
				pad[e.tokenIdx] = maxWidth - e.width
			}
		}
		i = j
	}
}

func findCaretToken(tree *syntax.Tree, n *syntax.Node) (uint32, bool) {
	for ti := n.FirstToken; ti <= n.LastToken && int(ti) < len(tree.Tokens); ti++ {
		if tree.Tokens[ti].Kind == lexer.TokenCaret {
			return ti, true
		}
	}
	return 0, false
}

// prefixWidth computes the rendered byte width of the tokens in [first,
// caretTok) as the formatter would print them: raw token bytes plus a single
// space wherever shouldInsertSpace would request one. It excludes the
// single space that always precedes the caret itself, since every rule in a
// block gets that same separator regardless of prefix length.
func prefixWidth(tree *syntax.Tree, first, caretTok uint32) int {
	width := 0
	var prevKind lexer.TokenKind
	havePrev := false
	for ti := first; ti < caretTok && int(ti) < len(tree.Tokens); ti++ {
		tok := tree.Tokens[ti]
		if tok.Kind == lexer.TokenEOF {
			break
		}
		if havePrev && shouldInsertSpace(prevKind, tok.Kind) {
			width++
		}
		width += len(tok.Bytes(tree.Source))
		prevKind = tok.Kind
		havePrev = true
	}
	return width
}

// isLineLevelKind reports whether kind is a metadata or rule statement that
// should start on its own line within a declaration body.
func isLineLevelKind(kind syntax.NodeKind) bool {
	switch kind {
	case syntax.KindMetadataParent, syntax.KindMetadataId, syntax.KindMetadataTitle,
		syntax.KindMetadataDescription, syntax.KindMetadataUsage, syntax.KindMetadataInstanceOf,
		syntax.KindMetadataSource, syntax.KindMetadataTarget, syntax.KindMetadataExpression,
		syntax.KindMetadataSeverity, syntax.KindMetadataXPath,
		syntax.KindCardinalityRule, syntax.KindFlagRule, syntax.KindBindingRule,
		syntax.KindAssignmentRule, syntax.KindContainsRule, syntax.KindObeysRule,
		syntax.KindCaretValueRule, syntax.KindInsertRule, syntax.KindOnlyRule,
		syntax.KindConceptDefinition, syntax.KindMappingEntry, syntax.KindPathRule:
		return true
	default:
		return false
	}
}

func shouldInsertSpace(prev, cur lexer.TokenKind) bool {
	switch {
	case cur == lexer.TokenColon:
		return false
	case prev == lexer.TokenColon:
		return true
	case cur == lexer.TokenDot, cur == lexer.TokenDotDot:
		return false
	case prev == lexer.TokenDot, prev == lexer.TokenDotDot:
		return false
	case cur == lexer.TokenLBracket, prev == lexer.TokenLBracket:
		return false
	case cur == lexer.TokenRBracket:
		return false
	case prev == lexer.TokenRBracket:
		return isWordLike(cur)
	case cur == lexer.TokenLParen:
		return isWordLike(prev)
	case prev == lexer.TokenLParen:
		return false
	case cur == lexer.TokenRParen:
		return false
	case prev == lexer.TokenRParen:
		return isWordLike(cur)
	case cur == lexer.TokenPipe, prev == lexer.TokenPipe:
		return true
	case cur == lexer.TokenHash:
		return isWordLike(prev) || prev == lexer.TokenEqual
	case prev == lexer.TokenHash:
		return false
	case cur == lexer.TokenCaret:
		return isWordLike(prev) || prev == lexer.TokenStar
	case prev == lexer.TokenCaret:
		return false
	case cur == lexer.TokenEqual, prev == lexer.TokenEqual:
		return true
	case cur == lexer.TokenArrow, prev == lexer.TokenArrow:
		return true
	case prev == lexer.TokenStar:
		return true
	case cur == lexer.TokenStar:
		return true
	case isWordLike(prev) && isWordLike(cur):
		return true
	default:
		return false
	}
}

func isWordLike(k lexer.TokenKind) bool {
	switch k {
	case lexer.TokenIdentifier, lexer.TokenNumber, lexer.TokenString, lexer.TokenMultilineString, lexer.TokenError:
		return true
	case lexer.TokenFlagMS, lexer.TokenFlagSU, lexer.TokenFlagTU, lexer.TokenFlagN, lexer.TokenFlagD, lexer.TokenFlagModifier:
		return true
	default:
		return k >= lexer.TokenKwAlias && k <= lexer.TokenKwUnits
	}
}

func isCommentTrivia(k lexer.TriviaKind) bool {
	return k == lexer.TriviaLineComment || k == lexer.TriviaBlockComment
}

func triviaHasComment(trivia []lexer.Trivia) bool {
	for _, tr := range trivia {
		if isCommentTrivia(tr.Kind) {
			return true
		}
	}
	return false
}

func repeatString(s string, count int) string {
	if count <= 0 || s == "" {
		return ""
	}
	return strings.Repeat(s, count)
}
