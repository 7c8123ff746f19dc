// Package syntax builds a lossless green/red concrete syntax tree over FSH source.
package syntax

import (
	"fmt"

	"github.com/octofhir/fshlint/internal/lexer"
	"github.com/octofhir/fshlint/internal/text"
)

// NodeKind identifies a CST node kind.
type NodeKind uint16

// NodeID identifies a node in Tree.Nodes.
type NodeID uint32

const (
	// NoNode is the sentinel value for the absence of a node.
	NoNode NodeID = 0
)

// NodeKind values for the FSH grammar. Entity definitions, metadata keyword
// statements, rule statements, and the literal/path fragments that compose
// them each get a dedicated kind so native rules and the pattern engine can
// select candidate nodes by shape without re-deriving it from tokens.
const (
	KindUnknown NodeKind = iota

	KindDocument
	KindError
	KindMissing

	KindAliasDecl

	KindProfileDecl
	KindExtensionDecl
	KindLogicalDecl
	KindResourceDecl
	KindValueSetDecl
	KindCodeSystemDecl
	KindInstanceDecl
	KindRuleSetDecl
	KindMappingDecl
	KindInvariantDecl

	KindMetadataParent
	KindMetadataId
	KindMetadataTitle
	KindMetadataDescription
	KindMetadataUsage
	KindMetadataInstanceOf
	KindMetadataSource
	KindMetadataTarget
	KindMetadataExpression
	KindMetadataSeverity
	KindMetadataXPath

	KindCardinalityRule
	KindFlagRule
	KindBindingRule
	KindAssignmentRule
	KindContainsRule
	KindContainsItem
	KindObeysRule
	KindCaretValueRule
	KindInsertRule
	KindOnlyRule
	KindValueSetComponent
	KindConceptDefinition
	KindMappingEntry
	KindPathRule

	KindElementPath
	KindPathPart

	KindCardinality
	KindFlagList
	KindTargetType
	KindTargetTypeList

	KindCodeLiteral
	KindQuantityLiteral
	KindReferenceLiteral
	KindCanonicalLiteral

	KindRuleSetReference
	KindRuleBlock
)

func kindName(kind NodeKind) string {
	switch kind {
	case KindUnknown:
		return "Unknown"
	case KindDocument:
		return "Document"
	case KindError:
		return "Error"
	case KindMissing:
		return "Missing"
	case KindAliasDecl:
		return "AliasDecl"
	case KindProfileDecl:
		return "ProfileDecl"
	case KindExtensionDecl:
		return "ExtensionDecl"
	case KindLogicalDecl:
		return "LogicalDecl"
	case KindResourceDecl:
		return "ResourceDecl"
	case KindValueSetDecl:
		return "ValueSetDecl"
	case KindCodeSystemDecl:
		return "CodeSystemDecl"
	case KindInstanceDecl:
		return "InstanceDecl"
	case KindRuleSetDecl:
		return "RuleSetDecl"
	case KindMappingDecl:
		return "MappingDecl"
	case KindInvariantDecl:
		return "InvariantDecl"
	case KindMetadataParent:
		return "MetadataParent"
	case KindMetadataId:
		return "MetadataId"
	case KindMetadataTitle:
		return "MetadataTitle"
	case KindMetadataDescription:
		return "MetadataDescription"
	case KindMetadataUsage:
		return "MetadataUsage"
	case KindMetadataInstanceOf:
		return "MetadataInstanceOf"
	case KindMetadataSource:
		return "MetadataSource"
	case KindMetadataTarget:
		return "MetadataTarget"
	case KindMetadataExpression:
		return "MetadataExpression"
	case KindMetadataSeverity:
		return "MetadataSeverity"
	case KindMetadataXPath:
		return "MetadataXPath"
	case KindCardinalityRule:
		return "CardinalityRule"
	case KindFlagRule:
		return "FlagRule"
	case KindBindingRule:
		return "BindingRule"
	case KindAssignmentRule:
		return "AssignmentRule"
	case KindContainsRule:
		return "ContainsRule"
	case KindContainsItem:
		return "ContainsItem"
	case KindObeysRule:
		return "ObeysRule"
	case KindCaretValueRule:
		return "CaretValueRule"
	case KindInsertRule:
		return "InsertRule"
	case KindOnlyRule:
		return "OnlyRule"
	case KindValueSetComponent:
		return "ValueSetComponent"
	case KindConceptDefinition:
		return "ConceptDefinition"
	case KindMappingEntry:
		return "MappingEntry"
	case KindPathRule:
		return "PathRule"
	case KindElementPath:
		return "ElementPath"
	case KindPathPart:
		return "PathPart"
	case KindCardinality:
		return "Cardinality"
	case KindFlagList:
		return "FlagList"
	case KindTargetType:
		return "TargetType"
	case KindTargetTypeList:
		return "TargetTypeList"
	case KindCodeLiteral:
		return "CodeLiteral"
	case KindQuantityLiteral:
		return "QuantityLiteral"
	case KindReferenceLiteral:
		return "ReferenceLiteral"
	case KindCanonicalLiteral:
		return "CanonicalLiteral"
	case KindRuleSetReference:
		return "RuleSetReference"
	case KindRuleBlock:
		return "RuleBlock"
	default:
		return fmt.Sprintf("NodeKind(%d)", kind)
	}
}

// ChildRef references either a token or a node child, in source order.
type ChildRef struct {
	IsToken bool
	Index   uint32 // token index or node ID
}

// NodeFlags carry parser recovery/error metadata.
type NodeFlags uint8

const (
	// NodeFlagError marks a node synthesized to recover from a parse error.
	NodeFlagError NodeFlags = 1 << iota
	// NodeFlagMissing marks a node whose required tokens were absent and synthesized.
	NodeFlagMissing
	// NodeFlagRecovered marks a node subtree that contains parser recovery.
	NodeFlagRecovered
)

// Has reports whether all bits in mask are set.
func (f NodeFlags) Has(mask NodeFlags) bool {
	return f&mask == mask
}

// Node is a CST node in source order with token coverage.
type Node struct {
	ID         NodeID
	Kind       NodeKind
	Span       text.Span
	FirstToken uint32 // inclusive
	LastToken  uint32 // inclusive
	Parent     NodeID
	Children   []ChildRef
	Flags      NodeFlags
}

// Severity is a diagnostic severity level.
type Severity uint8

const (
	// SeverityError indicates an error diagnostic.
	SeverityError Severity = iota + 1
	// SeverityWarning indicates a warning diagnostic.
	SeverityWarning
	// SeverityInfo indicates an informational diagnostic.
	SeverityInfo
)

// DiagnosticCode identifies a syntax-layer diagnostic kind.
type DiagnosticCode string

const (
	// DiagnosticParserErrorNode reports a parser-generated error node.
	DiagnosticParserErrorNode DiagnosticCode = "PARSE_ERROR_NODE"
	// DiagnosticParserMissingNode reports a parser-generated missing node.
	DiagnosticParserMissingNode DiagnosticCode = "PARSE_MISSING_NODE"
	// DiagnosticInternalAlignment reports parser/lexer alignment invariant failures.
	DiagnosticInternalAlignment DiagnosticCode = "INTERNAL_ALIGNMENT"
	// DiagnosticInternalParse reports parser infrastructure issues surfaced in diagnostics.
	DiagnosticInternalParse DiagnosticCode = "INTERNAL_PARSE"
)

// RelatedDiagnostic adds context to a diagnostic.
type RelatedDiagnostic struct {
	Message string
	Span    text.Span
}

// Diagnostic is a unified syntax diagnostic.
type Diagnostic struct {
	Code        DiagnosticCode
	Message     string
	Severity    Severity
	Span        text.Span
	Related     []RelatedDiagnostic
	Source      string // lexer | parser
	Recoverable bool
}

// ParseOptions control syntax parsing behavior.
type ParseOptions struct {
	// URI identifies the source file, used only for diagnostics and workspace indexing.
	URI string
}

// Tree is the immutable syntax parse result for one FSH file.
//
// Nodes form a green tree: children are stored by index into Tokens/Nodes and
// every Node carries its own absolute Span, so the tree can be shared and
// walked without a separate red-tree allocation pass.
type Tree struct {
	URI         string
	Source      []byte
	Tokens      []lexer.Token
	Nodes       []Node // index 0 is unused sentinel; real NodeIDs are 1-based
	Root        NodeID
	Diagnostics []Diagnostic
	LineIndex   *text.LineIndex
}

// NodeByID returns the node for id or nil if not present.
func (t *Tree) NodeByID(id NodeID) *Node {
	if t == nil || id == NoNode {
		return nil
	}
	idx := int(id)
	if idx < 0 || idx >= len(t.Nodes) {
		return nil
	}
	return &t.Nodes[idx]
}

// RootNode returns the root node or nil.
func (t *Tree) RootNode() *Node {
	return t.NodeByID(t.Root)
}

// KindName resolves a NodeKind to its display name.
func KindName(kind NodeKind) string {
	return kindName(kind)
}

// ChildNodes returns the node IDs of direct node children, skipping tokens.
func (t *Tree) ChildNodes(id NodeID) []NodeID {
	n := t.NodeByID(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.Children))
	for _, c := range n.Children {
		if !c.IsToken {
			out = append(out, NodeID(c.Index))
		}
	}
	return out
}

// Tokens returns the tokens covered by node id, inclusive of FirstToken/LastToken.
func (t *Tree) TokensFor(id NodeID) []lexer.Token {
	n := t.NodeByID(id)
	if n == nil || int(n.LastToken) >= len(t.Tokens) {
		return nil
	}
	return t.Tokens[n.FirstToken : n.LastToken+1]
}

func (n Node) String() string {
	return fmt.Sprintf("Node{id=%d kind=%s span=%s tokens=%d..%d}", n.ID, KindName(n.Kind), n.Span, n.FirstToken, n.LastToken)
}
