package ast

import "github.com/octofhir/fshlint/internal/syntax"

// entity holds the metadata accessors shared by every top-level FSH
// declaration kind. The CST does not validate which metadata keyword
// belongs to which entity kind (see DESIGN.md's CST-permissiveness
// decision), so these accessors are safe to call on any entity: they
// simply return None if that metadata line is absent.
type entity struct{ base }

// Name returns the entity's declared identifier.
func (e entity) Name() Option[string] {
	return firstIdentifier(e.tree, e.node())
}

// Id returns the value of an `Id:` metadata line, if present.
func (e entity) Id() Option[string] {
	return metadataOf(e, syntax.KindMetadataId)
}

// Title returns the value of a `Title:` metadata line, if present.
func (e entity) Title() Option[string] {
	return metadataOf(e, syntax.KindMetadataTitle)
}

// Description returns the value of a `Description:` metadata line, if present.
func (e entity) Description() Option[string] {
	return metadataOf(e, syntax.KindMetadataDescription)
}

// Parent returns the value of a `Parent:` metadata line, if present.
func (e entity) Parent() Option[string] {
	return metadataOf(e, syntax.KindMetadataParent)
}

// Usage returns the value of a `Usage:` metadata line, if present.
func (e entity) Usage() Option[string] {
	return metadataOf(e, syntax.KindMetadataUsage)
}

// InstanceOf returns the value of an `InstanceOf:` metadata line, if present.
func (e entity) InstanceOf() Option[string] {
	return metadataOf(e, syntax.KindMetadataInstanceOf)
}

// Source returns the value of a `Source:` metadata line, if present.
func (e entity) Source() Option[string] {
	return metadataOf(e, syntax.KindMetadataSource)
}

// Target returns the value of a `Target:` metadata line, if present.
func (e entity) Target() Option[string] {
	return metadataOf(e, syntax.KindMetadataTarget)
}

// Expression returns the value of an `Expression:` metadata line, if present.
func (e entity) Expression() Option[string] {
	return metadataOf(e, syntax.KindMetadataExpression)
}

// Severity returns the value of a `Severity:` metadata line, if present.
func (e entity) Severity() Option[string] {
	return metadataOf(e, syntax.KindMetadataSeverity)
}

// XPath returns the value of an `XPath:` metadata line, if present.
func (e entity) XPath() Option[string] {
	return metadataOf(e, syntax.KindMetadataXPath)
}

// Rules returns the entity's direct rule-line children (cardinality, flag,
// binding, assignment, contains, obeys, caret-value, insert, only, and bare
// path rules), in source order. Concept definitions and mapping entries are
// available separately via Concepts/Entries for callers that know the
// entity kind.
func (e entity) Rules() []Rule {
	n := e.node()
	if n == nil {
		return nil
	}
	var out []Rule
	for _, c := range n.Children {
		if c.IsToken {
			continue
		}
		child := e.tree.NodeByID(syntax.NodeID(c.Index))
		if child == nil || !isRuleKind(child.Kind) {
			continue
		}
		out = append(out, wrapRule(base{e.tree, child.ID}))
	}
	return out
}

// Concepts returns the entity's direct `#code ...` concept definition
// children, in source order (meaningful for CodeSystem/ValueSet).
func (e entity) Concepts() []ConceptDefinition {
	var out []ConceptDefinition
	for _, child := range childNodes(e.tree, e.node(), syntax.KindConceptDefinition) {
		out = append(out, ConceptDefinition{base{e.tree, child.ID}})
	}
	return out
}

// Entries returns the entity's direct mapping-entry children, in source
// order (meaningful for Mapping).
func (e entity) Entries() []MappingEntry {
	var out []MappingEntry
	for _, child := range childNodes(e.tree, e.node(), syntax.KindMappingEntry) {
		out = append(out, MappingEntry{base{e.tree, child.ID}})
	}
	return out
}

func metadataOf(e entity, kind syntax.NodeKind) Option[string] {
	child := childNode(e.tree, e.node(), kind)
	if child == nil {
		return None[string]()
	}
	return metadataValue(e.tree, child)
}

func isRuleKind(kind syntax.NodeKind) bool {
	switch kind {
	case syntax.KindCardinalityRule, syntax.KindFlagRule, syntax.KindBindingRule,
		syntax.KindAssignmentRule, syntax.KindContainsRule, syntax.KindObeysRule,
		syntax.KindCaretValueRule, syntax.KindInsertRule, syntax.KindOnlyRule,
		syntax.KindPathRule:
		return true
	default:
		return false
	}
}

// Entity is the kind-agnostic typed view over any top-level declaration.
// Use AsProfile/AsExtension/... (or Document.Profiles/Extensions/...) for a
// kind-specific wrapper with its own navigation methods.
type Entity struct{ entity }

// Profile wraps a `Profile:` declaration.
type Profile struct{ entity }

// Extension wraps an `Extension:` declaration.
type Extension struct{ entity }

// Logical wraps a `Logical:` declaration.
type Logical struct{ entity }

// Resource wraps a `Resource:` declaration.
type Resource struct{ entity }

// ValueSet wraps a `ValueSet:` declaration.
type ValueSet struct{ entity }

// CodeSystem wraps a `CodeSystem:` declaration.
type CodeSystem struct{ entity }

// Instance wraps an `Instance:` declaration.
type Instance struct{ entity }

// RuleSet wraps a `RuleSet:` declaration.
type RuleSet struct{ entity }

// Mapping wraps a `Mapping:` declaration.
type Mapping struct{ entity }

// Invariant wraps an `Invariant:` declaration.
type Invariant struct{ entity }
