package catalog

import (
	"github.com/lexcodex/xmodel/framework/model"
)

var obsoleteAttr = Enum("obsolete", "yes", "no")

var logicTags = []string{"action", "set-var", "if", "switch", "decoration", "decorations", "include"}

// DataActions lists the action names served by the Data call sub type.
var DataActions = []string{"attributeselect", "attributeinsert", "attributeupdate", "attributedelete"}

func parentIs(t model.ElementType) func(MatchContext) bool {
	return func(mc MatchContext) bool {
		p := mc.Parent()
		return p != nil && p.Type == t
	}
}

func parentIsNot(t model.ElementType) func(MatchContext) bool {
	return func(mc MatchContext) bool {
		p := mc.Parent()
		return p == nil || p.Type != t
	}
}

func nameIs(values ...string) func(MatchContext) bool {
	return func(mc MatchContext) bool {
		v, _ := mc.Attrs.AttrValue("name")
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	}
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// declaration returns a symbol definition with the common name/obsolete
// attributes prepended.
func declaration(tag string, typ model.ElementType, attrs []AttributeDef, children []ChildDef) *Definition {
	all := append([]AttributeDef{Text("name").Req(), obsoleteAttr, Text("description")}, attrs...)
	return &Definition{Tag: tag, Type: typ, IsSymbol: true, Attributes: all, Children: children}
}

type builtinSet struct {
	module, rule, function, typ, typeAttr, decorator, decoration, decorations *Definition
	includeBlock, include, setVar, ifDef, condition, switchDef, caseDef       *Definition
	argument, actionOutput, input, output, actionsRoot, actionDef             *Definition
	ruleCall, infosetCall, ruleLoopCall, functionCall, dataCall, genericCall  *Definition
	infoset, infosetVar, search, searchColumn, subquery                       *Definition
	view, mainView, field, event, target, profile, permission                 *Definition
	backend, rulesRoot, infosetsRoot, frontend                                *Definition
}

func newBuiltinSet() *builtinSet {
	s := &builtinSet{}
	rootChildren := Children("module", "rule", "function", "type", "decorator", "include-block", "actions", "infoset")

	s.module = &Definition{
		Tag:        "module",
		Type:       model.TypeNameSpace,
		IsSymbol:   true,
		IsGrouping: true,
		Attributes: []AttributeDef{Text("target-namespace").Req(), obsoleteAttr},
		Children:   append(rootChildren, Children("view", "mainview", "profile", "action")...),
		NameFunc: func(mc MatchContext) string {
			v, _ := mc.Attrs.AttrValue("target-namespace")
			return v
		},
		NameSpaceAttr: "target-namespace",
	}
	s.backend = &Definition{Tag: "backend", Type: model.TypeBackend, Children: rootChildren}
	s.rulesRoot = &Definition{Tag: "rules", Type: model.TypeRulesRoot, Children: rootChildren}
	s.infosetsRoot = &Definition{Tag: "infosets", Type: model.TypeInfosetsRoot, Children: Children("infoset", "type", "module")}
	s.frontend = &Definition{Tag: "frontend", Type: model.TypeFrontend, Children: Children("view", "mainview", "profile", "decorator", "include-block", "module")}

	s.rule = declaration("rule", model.TypeRule, nil, Children(concat([]string{"input", "output"}, logicTags)...))
	s.function = declaration("function", model.TypeFunction, []AttributeDef{Enum("language", "expression", "script")},
		Children(concat([]string{"input", "output"}, logicTags)...))
	s.typ = declaration("type", model.TypeType, []AttributeDef{Text("table")}, []ChildDef{Child("attribute", OccursAtLeastOnce)})
	s.typeAttr = &Definition{
		Tag:  "attribute",
		Type: model.TypeTypeAttribute,
		Attributes: []AttributeDef{
			Text("name").Req(),
			Enum("datatype", "string", "integer", "decimal", "date", "boolean").Req(),
			Number("length").VisibleWhen(Equals{Attr: "datatype", Value: "string"}),
			Number("precision").VisibleWhen(Equals{Attr: "datatype", Value: "decimal"}),
		},
	}
	s.decorator = declaration("decorator", model.TypeDecorator, nil,
		Children(concat([]string{"input", "output", "field", "event", "target"}, logicTags)...))
	s.decoration = &Definition{Tag: "decoration", Type: model.TypeDecoration, Attributes: []AttributeDef{Ref("name", model.TypeDecorator).Req()}}
	s.decorations = &Definition{Tag: "decorations", Type: model.TypeDecorations, Children: []ChildDef{Child("decoration", OccursAtLeastOnce)}}
	s.includeBlock = declaration("include-block", model.TypeIncludeBlock, nil,
		Children(concat([]string{"input", "output", "field", "event", "target"}, logicTags)...))
	s.include = &Definition{Tag: "include", Type: model.TypeInclude, Attributes: []AttributeDef{Ref("block", model.TypeIncludeBlock).Req()}}

	s.setVar = &Definition{Tag: "set-var", Type: model.TypeSetVar, Attributes: []AttributeDef{Text("name").Req(), Text("value")}}
	compare := Equals{Attr: "kind", Value: "compare"}
	s.condition = &Definition{
		Tag:  "condition",
		Type: model.TypeCondition,
		Attributes: []AttributeDef{
			Enum("kind", "compare", "expression"),
			Text("variable").RequiredWhen(compare),
			Enum("operator", "eq", "ne", "lt", "gt", "empty", "notempty").VisibleWhen(compare),
			Text("value").RequiredWhen(And{
				compare,
				NotEquals{Attr: "operator", Value: "empty"},
				NotEquals{Attr: "operator", Value: "notempty"},
			}),
			Text("expression").RequiredWhen(Equals{Attr: "kind", Value: "expression"}),
		},
	}
	s.ifDef = &Definition{
		Tag:        "if",
		Type:       model.TypeIf,
		Attributes: []AttributeDef{Text("expression")},
		Children:   append([]ChildDef{Child("condition", OccursOnce)}, Children(logicTags...)...),
	}
	s.switchDef = &Definition{
		Tag:        "switch",
		Type:       model.TypeSwitch,
		Attributes: []AttributeDef{Text("variable").Req()},
		Children:   []ChildDef{Child("case", OccursAtLeastOnce)},
	}
	s.caseDef = &Definition{
		Tag:        "case",
		Type:       model.TypeCase,
		Attributes: []AttributeDef{Text("value").Req()},
		Children:   Children(logicTags...),
	}

	s.argument = &Definition{
		Tag:        "input",
		Type:       model.TypeArgument,
		Match:      parentIs(model.TypeActionCall),
		Attributes: []AttributeDef{Ref("name", model.TypeInput).Req(), Text("value"), Text("variable")},
	}
	s.actionOutput = &Definition{
		Tag:        "output",
		Type:       model.TypeActionOutput,
		Match:      parentIs(model.TypeActionCall),
		Attributes: []AttributeDef{Ref("name", model.TypeOutput).Req(), Text("local-name")},
	}
	s.input = &Definition{
		Tag:        "input",
		Type:       model.TypeInput,
		Match:      parentIsNot(model.TypeActionCall),
		Attributes: []AttributeDef{Text("name").Req(), Enum("required", "yes", "no"), Text("datatype"), Text("default").VisibleWhen(NotEquals{Attr: "required", Value: "yes"})},
	}
	s.output = &Definition{
		Tag:        "output",
		Type:       model.TypeOutput,
		Match:      parentIsNot(model.TypeActionCall),
		Attributes: []AttributeDef{Text("name").Req(), Text("datatype")},
	}

	s.actionsRoot = &Definition{Tag: "actions", Type: model.TypeActionsRoot, Children: []ChildDef{Child("action", OccursAtLeastOnce), Child("module", OccursAny)}}
	s.actionDef = declaration("action", model.TypeAction, nil, Children("input", "output"))
	s.actionDef.Match = func(mc MatchContext) bool { return mc.HasAncestorTag("actions") }

	callChildren := Children("input", "output")
	call := func(sub model.SubType, match func(MatchContext) bool, attrs ...AttributeDef) *Definition {
		return &Definition{
			Tag:        "action",
			Type:       model.TypeActionCall,
			SubType:    sub,
			Match:      match,
			Attributes: append([]AttributeDef{Text("name").Req(), Text("description")}, attrs...),
			Children:   callChildren,
		}
	}
	s.ruleCall = call(model.SubTypeRule, nameIs("rule"), Ref("rule-name", model.TypeRule))
	s.infosetCall = call(model.SubTypeInfoset, nameIs("infoset"), Ref("infoset-name", model.TypeInfoset), Number("max-rows"))
	s.ruleLoopCall = call(model.SubTypeRuleLoop, nameIs("ruleloop"), Ref("rule-name", model.TypeRule), Ref("infoset-name", model.TypeInfoset), Text("list"))
	s.functionCall = call(model.SubTypeFunction, nameIs("function"), Ref("function-name", model.TypeFunction))
	s.dataCall = call(model.SubTypeData, nameIs(DataActions...), Ref("type-name", model.TypeType))
	s.genericCall = &Definition{
		Tag:        "action",
		Type:       model.TypeActionCall,
		SubType:    model.SubTypeAction,
		Attributes: []AttributeDef{Ref("name", model.TypeAction).Req(), Text("description")},
		Children:   callChildren,
	}

	s.infoset = declaration("infoset", model.TypeInfoset, nil, []ChildDef{
		Child("input", OccursAny), Child("variable", OccursAny), Child("search", OccursRequiredOnce),
	})
	s.infosetVar = declaration("variable", model.TypeInfosetVariable, []AttributeDef{Text("column")}, nil)
	s.search = &Definition{
		Tag:        "search",
		Type:       model.TypeSearch,
		Attributes: []AttributeDef{Ref("type", model.TypeType).Req(), Number("max-rows")},
		Children:   Children("searchcolumn", "subquery"),
	}
	s.searchColumn = &Definition{
		Tag:  "searchcolumn",
		Type: model.TypeSearchColumn,
		Attributes: []AttributeDef{
			Text("name").Req(),
			Text("value").RequiredWhen(NotEquals{Attr: "operator", Value: "empty"}),
			Enum("operator", "eq", "ne", "lt", "gt", "like", "in", "empty"),
		},
	}
	s.subquery = &Definition{
		Tag:        "subquery",
		Type:       model.TypeSubquery,
		Attributes: []AttributeDef{Ref("type", model.TypeType).Req(), Text("column")},
		Children:   Children("searchcolumn", "subquery"),
	}

	viewChildren := Children("field", "event", "target", "include", "decoration", "decorations")
	s.view = declaration("view", model.TypeView, []AttributeDef{Ref("profile", model.TypeProfile)}, viewChildren)
	s.mainView = declaration("mainview", model.TypeMainView, []AttributeDef{Ref("profile", model.TypeProfile)}, viewChildren)
	s.field = &Definition{
		Tag:  "field",
		Type: model.TypeField,
		Attributes: []AttributeDef{
			Text("name").Req(),
			Ref("infoset-variable", model.TypeInfosetVariable),
			Number("width"),
			Enum("visible", "yes", "no"),
		},
	}
	s.event = &Definition{
		Tag:        "event",
		Type:       model.TypeEvent,
		Attributes: []AttributeDef{Enum("name", "onload", "onclick", "onchange").Req(), Ref("rule", model.TypeRule).Req()},
	}
	s.target = &Definition{Tag: "target", Type: model.TypeTarget, Attributes: []AttributeDef{Ref("view", model.TypeView).Req()}}
	s.profile = declaration("profile", model.TypeProfile, nil, []ChildDef{Child("permission", OccursAtLeastOnce)})
	s.permission = &Definition{
		Tag:        "permission",
		Type:       model.TypePermission,
		Attributes: []AttributeDef{Ref("view", model.TypeView).Req(), Enum("access", "read", "write", "none").Req()},
	}
	return s
}

// logic returns the rule-body definitions in resolution priority order.
func (s *builtinSet) logic() []*Definition {
	return []*Definition{
		s.rule, s.function, s.typ, s.typeAttr, s.decorator, s.decoration, s.decorations,
		s.includeBlock, s.include, s.setVar, s.ifDef, s.condition, s.switchDef, s.caseDef,
		s.argument, s.input, s.actionOutput, s.output,
		s.actionsRoot, s.actionDef,
		s.ruleCall, s.infosetCall, s.ruleLoopCall, s.functionCall, s.dataCall, s.genericCall,
	}
}

// Default returns a catalog loaded with the built-in dialect tables.
func Default() *Catalog {
	c := New()
	s := newBuiltinSet()

	c.Register(model.ContextBackend, s.backend, s.module)
	c.Register(model.ContextBackend, s.logic()...)
	c.Register(model.ContextBackend, s.infoset, s.infosetVar, s.search, s.searchColumn, s.subquery)

	c.Register(model.ContextRules, s.rulesRoot, s.module)
	c.Register(model.ContextRules, s.logic()...)

	c.Register(model.ContextBackendActions, s.actionsRoot, s.module, s.actionDef, s.input, s.output)

	c.Register(model.ContextInfosets, s.infosetsRoot, s.module, s.infoset, s.input, s.infosetVar,
		s.search, s.searchColumn, s.subquery, s.typ, s.typeAttr)

	c.Register(model.ContextFrontend, s.frontend, s.module, s.view, s.mainView, s.field, s.event,
		s.target, s.profile, s.permission, s.decorator, s.decoration, s.decorations,
		s.includeBlock, s.include)
	for _, tag := range []string{"html", "script", "style"} {
		c.SetOverride(model.ContextFrontend, tag, model.ContextUnknown)
	}
	return c
}
