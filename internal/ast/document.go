package ast

import "github.com/octofhir/fshlint/internal/syntax"

// Document is the typed overlay root for one parsed FSH file.
type Document struct {
	tree *syntax.Tree
}

// NewDocument wraps tree as a typed Document overlay.
func NewDocument(tree *syntax.Tree) Document {
	return Document{tree: tree}
}

// Tree returns the underlying syntax tree.
func (d Document) Tree() *syntax.Tree {
	return d.tree
}

// Aliases returns every top-level Alias declaration, in source order.
func (d Document) Aliases() []Alias {
	var out []Alias
	for _, id := range d.tree.ChildNodes(d.tree.Root) {
		n := d.tree.NodeByID(id)
		if n != nil && n.Kind == syntax.KindAliasDecl {
			out = append(out, Alias{base{d.tree, id}})
		}
	}
	return out
}

// Entities returns every top-level entity declaration, in source order, as
// the generic Entity view. Use Profiles/Extensions/... for a kind-specific
// typed wrapper.
func (d Document) Entities() []Entity {
	var out []Entity
	for _, id := range d.tree.ChildNodes(d.tree.Root) {
		n := d.tree.NodeByID(id)
		if n == nil || n.Kind == syntax.KindAliasDecl {
			continue
		}
		out = append(out, Entity{entity{base{d.tree, id}}})
	}
	return out
}

// Profiles returns every top-level Profile declaration.
func (d Document) Profiles() []Profile {
	return filterEntities(d, syntax.KindProfileDecl, func(b base) Profile { return Profile{entity{b}} })
}

// Extensions returns every top-level Extension declaration.
func (d Document) Extensions() []Extension {
	return filterEntities(d, syntax.KindExtensionDecl, func(b base) Extension { return Extension{entity{b}} })
}

// Logicals returns every top-level Logical model declaration.
func (d Document) Logicals() []Logical {
	return filterEntities(d, syntax.KindLogicalDecl, func(b base) Logical { return Logical{entity{b}} })
}

// Resources returns every top-level custom Resource declaration.
func (d Document) Resources() []Resource {
	return filterEntities(d, syntax.KindResourceDecl, func(b base) Resource { return Resource{entity{b}} })
}

// ValueSets returns every top-level ValueSet declaration.
func (d Document) ValueSets() []ValueSet {
	return filterEntities(d, syntax.KindValueSetDecl, func(b base) ValueSet { return ValueSet{entity{b}} })
}

// CodeSystems returns every top-level CodeSystem declaration.
func (d Document) CodeSystems() []CodeSystem {
	return filterEntities(d, syntax.KindCodeSystemDecl, func(b base) CodeSystem { return CodeSystem{entity{b}} })
}

// Instances returns every top-level Instance declaration.
func (d Document) Instances() []Instance {
	return filterEntities(d, syntax.KindInstanceDecl, func(b base) Instance { return Instance{entity{b}} })
}

// RuleSets returns every top-level RuleSet declaration.
func (d Document) RuleSets() []RuleSet {
	return filterEntities(d, syntax.KindRuleSetDecl, func(b base) RuleSet { return RuleSet{entity{b}} })
}

// Mappings returns every top-level Mapping declaration.
func (d Document) Mappings() []Mapping {
	return filterEntities(d, syntax.KindMappingDecl, func(b base) Mapping { return Mapping{entity{b}} })
}

// Invariants returns every top-level Invariant declaration.
func (d Document) Invariants() []Invariant {
	return filterEntities(d, syntax.KindInvariantDecl, func(b base) Invariant { return Invariant{entity{b}} })
}

func filterEntities[T any](d Document, kind syntax.NodeKind, wrap func(base) T) []T {
	var out []T
	for _, id := range d.tree.ChildNodes(d.tree.Root) {
		n := d.tree.NodeByID(id)
		if n != nil && n.Kind == kind {
			out = append(out, wrap(base{d.tree, id}))
		}
	}
	return out
}
