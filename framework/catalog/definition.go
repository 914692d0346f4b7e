package catalog

import (
	"github.com/lexcodex/xmodel/framework/model"
)

// ValueType classifies attribute values for schema checks.
type ValueType int

const (
	ValueText ValueType = iota
	ValueEnum
	ValueNumber
	ValueReference
)

// Occurrence constrains how often a child tag may appear.
type Occurrence int

const (
	OccursAny Occurrence = iota
	// OccursOnce allows at most one child.
	OccursOnce
	// OccursRequiredOnce requires exactly one child.
	OccursRequiredOnce
	// OccursAtLeastOnce requires one or more children.
	OccursAtLeastOnce
)

func (o Occurrence) String() string {
	switch o {
	case OccursOnce:
		return "once"
	case OccursRequiredOnce:
		return "required once"
	case OccursAtLeastOnce:
		return "at-least-once"
	default:
		return "any"
	}
}

// AttributeDef describes one attribute of an element.
type AttributeDef struct {
	Name     string
	Type     ValueType
	Required bool
	// AutoAdd marks attributes editors insert when completing the tag.
	AutoAdd    bool
	RequiredIf Condition
	VisibleIf  Condition
	Enum       []string
	Targets    []model.ElementType
}

// IsRequired evaluates static and conditional requiredness against attrs.
func (a *AttributeDef) IsRequired(attrs AttrSource) bool {
	if a.Required {
		return true
	}
	return a.RequiredIf != nil && a.RequiredIf.Eval(attrs)
}

// IsVisible reports whether the attribute applies given the other values.
func (a *AttributeDef) IsVisible(attrs AttrSource) bool {
	return a.VisibleIf == nil || a.VisibleIf.Eval(attrs)
}

// AllowsValue reports whether v is one of the enum values.
func (a *AttributeDef) AllowsValue(v string) bool {
	for _, allowed := range a.Enum {
		if allowed == v {
			return true
		}
	}
	return false
}

// Text declares a free-text attribute.
func Text(name string) AttributeDef {
	return AttributeDef{Name: name, Type: ValueText}
}

// Enum declares an attribute restricted to values.
func Enum(name string, values ...string) AttributeDef {
	return AttributeDef{Name: name, Type: ValueEnum, Enum: values}
}

// Number declares a numeric attribute.
func Number(name string) AttributeDef {
	return AttributeDef{Name: name, Type: ValueNumber}
}

// Ref declares a relational attribute naming a declaration.
func Ref(name string, targets ...model.ElementType) AttributeDef {
	return AttributeDef{Name: name, Type: ValueReference, Targets: targets}
}

// Req marks the attribute as required and auto-added.
func (a AttributeDef) Req() AttributeDef {
	a.Required = true
	a.AutoAdd = true
	return a
}

// RequiredWhen makes the attribute required when c holds.
func (a AttributeDef) RequiredWhen(c Condition) AttributeDef {
	a.RequiredIf = c
	return a
}

// VisibleWhen limits the attribute to nodes where c holds.
func (a AttributeDef) VisibleWhen(c Condition) AttributeDef {
	a.VisibleIf = c
	return a
}

// ChildDef allows a child tag with an occurrence constraint.
type ChildDef struct {
	Tag    string
	Occurs Occurrence
}

// Child declares an allowed child tag.
func Child(tag string, occurs Occurrence) ChildDef {
	return ChildDef{Tag: tag, Occurs: occurs}
}

// Children declares tags allowed any number of times.
func Children(tags ...string) []ChildDef {
	out := make([]ChildDef, 0, len(tags))
	for _, tag := range tags {
		out = append(out, ChildDef{Tag: tag})
	}
	return out
}

// Definition describes one semantic interpretation of a tag. Several
// definitions may share a tag; the first whose constraints hold wins.
type Definition struct {
	Tag        string
	Type       model.ElementType
	SubType    model.SubType
	Attributes []AttributeDef
	Children   []ChildDef
	IsSymbol   bool
	IsGrouping bool
	// Match disambiguates duplicate tags against the live parse context.
	Match func(MatchContext) bool
	// Ancestor, when set, requires an ancestor of that type.
	Ancestor model.ElementType
	// NameFunc computes the declaration name; defaults to the name attribute.
	NameFunc func(MatchContext) string
	// NameSpaceAttr names the attribute that opens a namespace for
	// descendants.
	NameSpaceAttr string
}

// Attribute returns the schema of the named attribute, or nil.
func (d *Definition) Attribute(name string) *AttributeDef {
	if d == nil {
		return nil
	}
	for i := range d.Attributes {
		if d.Attributes[i].Name == name {
			return &d.Attributes[i]
		}
	}
	return nil
}

// Child returns the child schema for tag, or nil when tag is not allowed.
func (d *Definition) Child(tag string) *ChildDef {
	if d == nil {
		return nil
	}
	for i := range d.Children {
		if d.Children[i].Tag == tag {
			return &d.Children[i]
		}
	}
	return nil
}

// DeclaredName computes the name of a declaration from its context.
func (d *Definition) DeclaredName(mc MatchContext) string {
	if d.NameFunc != nil {
		return d.NameFunc(mc)
	}
	v, _ := mc.Attrs.AttrValue("name")
	return v
}

// MatchContext is the snapshot a definition predicate sees: the live
// ancestor chain (outermost first, Document included) and the attributes
// of the tag being resolved.
type MatchContext struct {
	Ancestors []*model.Node
	Attrs     Attrs
}

// Parent returns the innermost ancestor, or nil.
func (mc MatchContext) Parent() *model.Node {
	if len(mc.Ancestors) == 0 {
		return nil
	}
	return mc.Ancestors[len(mc.Ancestors)-1]
}

// RelevantParent returns the innermost ancestor that is not a grouping
// element.
func (mc MatchContext) RelevantParent(c *Catalog) *model.Node {
	for i := len(mc.Ancestors) - 1; i >= 0; i-- {
		anc := mc.Ancestors[i]
		def := c.ResolveForTree(anc.Tag, anc.Type, anc.SubType)
		if def == nil || !def.IsGrouping {
			return anc
		}
	}
	return nil
}

// HasAncestorTag reports whether any ancestor has the tag.
func (mc MatchContext) HasAncestorTag(tag string) bool {
	for _, anc := range mc.Ancestors {
		if anc.Tag == tag {
			return true
		}
	}
	return false
}

// HasAncestorType reports whether any ancestor has the element type.
func (mc MatchContext) HasAncestorType(t model.ElementType) bool {
	for _, anc := range mc.Ancestors {
		if anc.Type == t {
			return true
		}
	}
	return false
}

// NearestOfType returns the innermost ancestor of type t, or nil.
func (mc MatchContext) NearestOfType(t model.ElementType) *model.Node {
	for i := len(mc.Ancestors) - 1; i >= 0; i-- {
		if mc.Ancestors[i].Type == t {
			return mc.Ancestors[i]
		}
	}
	return nil
}
