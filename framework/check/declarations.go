package check

import (
	"strings"

	"github.com/lexcodex/xmodel/framework/model"
)

// Declaration-consistency diagnostic codes.
const (
	CodeNoReferences         = "DC0001"
	CodeUndefinedLocal       = "DC0002"
	CodeUnusedLocal          = "DC0003"
	CodeUnknownSearchColumn  = "DC0004"
	CodePlaceholderNotInput  = "DC0005"
	CodeIndirectionCycle     = "DC0006"
	CodeDuplicateDeclaration = "DC0007"
)

// referencedTypes are the declarations expected to be referenced from
// somewhere in the workspace.
var referencedTypes = map[model.ElementType]bool{
	model.TypeRule:         true,
	model.TypeInfoset:      true,
	model.TypeType:         true,
	model.TypeView:         true,
	model.TypeFunction:     true,
	model.TypeAction:       true,
	model.TypeDecorator:    true,
	model.TypeIncludeBlock: true,
	model.TypeProfile:      true,
}

func declarationChecks() []Check {
	return []Check{
		{
			Name:  "symbol-referenced",
			Type:  model.TypeAll,
			Match: func(n *model.Node) bool { return n.IsSymbol && referencedTypes[n.Type] },
			Level: model.DetailReferences,
			Run:   checkSymbolReferenced,
		},
		{
			Name:  "infoset-declaration",
			Type:  model.TypeInfoset,
			Level: model.DetailReferences,
			Run:   checkInfosetDeclaration,
		},
		{
			Name:  "rule-declaration",
			Type:  model.TypeRule,
			Level: model.DetailDeclarations,
			Run:   checkRuleDeclaration,
		},
		{
			Name: "indirection-cycle",
			Type: model.TypeAll,
			Match: func(n *model.Node) bool {
				return n.Type == model.TypeIncludeBlock || n.Type == model.TypeDecorator || n.Type == model.TypeView
			},
			Level: model.DetailReferences,
			Run:   checkIndirectionCycle,
		},
		{
			Name: "duplicate-declaration",
			Type: model.TypeAll,
			Match: func(n *model.Node) bool {
				return n.IsSymbol && n.Type.IsStandalone() && n.Type != model.TypeNameSpace && n.Name != ""
			},
			Level: model.DetailDeclarations,
			Run:   checkDuplicateDeclaration,
		},
	}
}

func checkSymbolReferenced(c *Context, n *model.Node) {
	if n.Name == "" || len(c.Index.ReferencesForSymbol(n)) > 0 {
		return
	}
	if n.Type == model.TypeInfoset {
		c.Report(n.Range, model.SeverityInformation, CodeNoReferences,
			"No references found for infoset %q; it may still be used through its output variables", n.Name)
		return
	}
	c.Report(n.Range, model.SeverityInformation, CodeNoReferences,
		"No references found for %s %q", n.Type.DisplayName(), n.Name)
}

func checkInfosetDeclaration(c *Context, infoset *model.Node) {
	inputs := make(map[string]bool)
	for _, in := range c.Index.ChildrenOfType(infoset, model.TypeInput) {
		inputs[in.Value("name")] = true
	}
	for _, search := range c.Index.ChildrenOfType(infoset, model.TypeSearch) {
		checkSearchColumns(c, infoset, search, inputs)
	}
}

// checkSearchColumns validates the columns of a search or subquery against
// its type, descending into subqueries.
func checkSearchColumns(c *Context, infoset, search *model.Node, inputs map[string]bool) {
	typeName := search.Value("type")
	types := c.Index.Resolve(typeName, search.NameSpace, model.TypeType)
	if len(types) > 0 {
		attrs := make(map[string]bool)
		for _, name := range typeAttributes(c, types[0]) {
			attrs[name] = true
		}
		for _, col := range search.ChildrenOfType(model.TypeSearchColumn) {
			attr := col.Attr("name")
			if attr == nil || attr.Value == "" {
				continue
			}
			if v, ok := placeholderName(attr.Value); ok {
				if !inputs[v] {
					c.Report(attr.ValueRange, model.SeverityError, CodePlaceholderNotInput,
						"Search column %q is not an input of infoset %q", attr.Value, infoset.Name)
				}
				continue
			}
			if hasPlaceholder(attr.Value) {
				continue
			}
			if !attrs[attr.Value] {
				c.Report(attr.ValueRange, model.SeverityError, CodeUnknownSearchColumn,
					"Unknown attribute %q on type %q", attr.Value, types[0].Name)
			}
		}
	}
	for _, sub := range search.ChildrenOfType(model.TypeSubquery) {
		checkSearchColumns(c, infoset, sub, inputs)
	}
}

// local is one definition or use of a rule-local name.
type local struct {
	name string
	attr *model.Attribute
}

func checkRuleDeclaration(c *Context, rule *model.Node) {
	var defined, used []local
	var visit func(n *model.Node)
	visit = func(n *model.Node) {
		for _, child := range n.Children {
			if child.Obsolete || child.Type == model.TypeRule {
				continue
			}
			defined = append(defined, definedLocals(child)...)
			used = append(used, usedLocals(child)...)
			visit(child)
		}
	}
	visit(rule)

	definedNames := make(map[string]bool)
	for _, d := range defined {
		definedNames[d.name] = true
	}
	usedNames := make(map[string]bool)
	for _, u := range used {
		usedNames[u.name] = true
		if !definedNames[u.name] {
			c.Report(u.attr.ValueRange, model.SeverityError, CodeUndefinedLocal,
				"Local name %q is not defined in rule %q", u.name, rule.Name)
		}
	}
	reported := make(map[string]bool)
	for _, d := range defined {
		if usedNames[d.name] || reported[d.name] {
			continue
		}
		reported[d.name] = true
		c.Report(d.attr.ValueRange, model.SeverityInformation, CodeUnusedLocal,
			"Local name %q is never used in rule %q", d.name, rule.Name)
	}
}

func definedLocals(n *model.Node) []local {
	var attr *model.Attribute
	switch n.Type {
	case model.TypeInput, model.TypeSetVar:
		attr = n.Attr("name")
	case model.TypeActionOutput:
		attr = n.Attr("local-name")
		if attr == nil || attr.Value == "" {
			attr = n.Attr("name")
		}
	}
	if attr == nil || attr.Value == "" || hasPlaceholder(attr.Value) {
		return nil
	}
	return []local{{name: attr.Value, attr: attr}}
}

func usedLocals(n *model.Node) []local {
	var out []local
	direct := func(name string) {
		if attr := n.Attr(name); attr != nil && attr.Value != "" && !hasPlaceholder(attr.Value) {
			out = append(out, local{name: attr.Value, attr: attr})
		}
	}
	switch n.Type {
	case model.TypeOutput:
		direct("name")
	case model.TypeArgument, model.TypeSwitch, model.TypeCondition:
		direct("variable")
	}
	for _, name := range []string{"value", "expression"} {
		attr := n.Attr(name)
		if attr == nil {
			continue
		}
		for _, token := range placeholderNames(attr.Value) {
			out = append(out, local{name: token, attr: attr})
		}
	}
	return out
}

func checkIndirectionCycle(c *Context, decl *model.Node) {
	cycle := c.Index.IndirectionCycle(decl)
	if cycle == nil {
		return
	}
	names := make([]string, len(cycle))
	for i, n := range cycle {
		names[i] = n.Name
	}
	c.Report(decl.Range, model.SeverityWarning, CodeIndirectionCycle,
		"%s %q includes itself: %s", decl.Type.DisplayName(), decl.Name, strings.Join(names, " -> "))
}

func checkDuplicateDeclaration(c *Context, decl *model.Node) {
	decls := c.Index.DeclarationsNamed(decl.Type, decl.Name)
	if len(decls) > 1 {
		c.Report(decl.Range, model.SeverityWarning, CodeDuplicateDeclaration,
			"%s %q is declared %d times", decl.Type.DisplayName(), decl.Name, len(decls))
	}
}
