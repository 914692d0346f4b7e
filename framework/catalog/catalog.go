package catalog

import (
	"sort"

	"github.com/lexcodex/xmodel/framework/model"
)

type treeKey struct {
	tag     string
	typ     model.ElementType
	subType model.SubType
}

// Catalog maps, per file context, tag names to ordered candidate
// definitions.
type Catalog struct {
	tables    map[model.FileContext]map[string][]*Definition
	overrides map[model.FileContext]map[string]model.FileContext
	byTree    map[treeKey]*Definition
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		tables:    make(map[model.FileContext]map[string][]*Definition),
		overrides: make(map[model.FileContext]map[string]model.FileContext),
		byTree:    make(map[treeKey]*Definition),
	}
}

// Register appends definitions to the table of ctx. Registration order is
// resolution priority.
func (c *Catalog) Register(ctx model.FileContext, defs ...*Definition) {
	table := c.tables[ctx]
	if table == nil {
		table = make(map[string][]*Definition)
		c.tables[ctx] = table
	}
	for _, def := range defs {
		table[def.Tag] = append(table[def.Tag], def)
		key := treeKey{tag: def.Tag, typ: def.Type, subType: def.SubType}
		if _, ok := c.byTree[key]; !ok {
			c.byTree[key] = def
		}
	}
}

// SetOverride makes tag switch the file context of its subtree to target
// while parsing a file of context ctx.
func (c *Catalog) SetOverride(ctx model.FileContext, tag string, target model.FileContext) {
	table := c.overrides[ctx]
	if table == nil {
		table = make(map[string]model.FileContext)
		c.overrides[ctx] = table
	}
	table[tag] = target
}

// Override reports the context override for tag, if any.
func (c *Catalog) Override(ctx model.FileContext, tag string) (model.FileContext, bool) {
	target, ok := c.overrides[ctx][tag]
	return target, ok
}

// ResolveForParsing picks the first definition of tag whose ancestor
// constraint and predicate hold for the live context, or nil.
func (c *Catalog) ResolveForParsing(ctx model.FileContext, tag string, mc MatchContext) *Definition {
	for _, def := range c.tables[ctx][tag] {
		if def.Ancestor != model.TypeUnknown && !mc.HasAncestorType(def.Ancestor) {
			continue
		}
		if def.Match != nil && !def.Match(mc) {
			continue
		}
		return def
	}
	return nil
}

// ResolveForTree returns the definition of an already typed node.
func (c *Catalog) ResolveForTree(tag string, typ model.ElementType, subType model.SubType) *Definition {
	return c.byTree[treeKey{tag: tag, typ: typ, subType: subType}]
}

// Definition resolves the definition of node n.
func (c *Catalog) Definition(n *model.Node) *Definition {
	if n == nil {
		return nil
	}
	return c.ResolveForTree(n.Tag, n.Type, n.SubType)
}

// IsGrouping reports whether n is a grouping element.
func (c *Catalog) IsGrouping(n *model.Node) bool {
	def := c.Definition(n)
	return def != nil && def.IsGrouping
}

// NearestRelevantAncestor returns the closest ancestor of n that is not a
// grouping element, skipping nested groups recursively.
func (c *Catalog) NearestRelevantAncestor(n *model.Node) *model.Node {
	if n == nil {
		return nil
	}
	p := n.Parent
	for p != nil && c.IsGrouping(p) {
		p = p.Parent
	}
	return p
}

// Tags lists the tags known in ctx, sorted.
func (c *Catalog) Tags(ctx model.FileContext) []string {
	tags := make([]string, 0, len(c.tables[ctx]))
	for tag := range c.tables[ctx] {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Candidates returns the ordered definitions registered for tag in ctx.
func (c *Catalog) Candidates(ctx model.FileContext, tag string) []*Definition {
	return c.tables[ctx][tag]
}
