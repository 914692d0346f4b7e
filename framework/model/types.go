package model

import "strings"

// ElementType is the closed classification attached to every tree node.
type ElementType int

const (
	TypeUnknown ElementType = iota
	TypeDocument
	TypeBackend
	TypeFrontend
	TypeRulesRoot
	TypeInfosetsRoot
	TypeActionsRoot
	TypeNameSpace
	TypeRule
	TypeInput
	TypeOutput
	TypeActionCall
	TypeArgument
	TypeActionOutput
	TypeSetVar
	TypeIf
	TypeCondition
	TypeSwitch
	TypeCase
	TypeInfoset
	TypeInfosetVariable
	TypeSearch
	TypeSearchColumn
	TypeSubquery
	TypeType
	TypeTypeAttribute
	TypeFunction
	TypeAction
	TypeDecorator
	TypeDecoration
	TypeDecorations
	TypeIncludeBlock
	TypeInclude
	TypeTarget
	TypeView
	TypeMainView
	TypeField
	TypeEvent
	TypeProfile
	TypePermission

	// TypeAll is a pseudo type used by checks that apply to every node.
	TypeAll
)

var elementTypeNames = map[ElementType]string{
	TypeUnknown:         "Unknown",
	TypeDocument:        "Document",
	TypeBackend:         "Backend",
	TypeFrontend:        "Frontend",
	TypeRulesRoot:       "Rules",
	TypeInfosetsRoot:    "Infosets",
	TypeActionsRoot:     "Actions",
	TypeNameSpace:       "NameSpace",
	TypeRule:            "Rule",
	TypeInput:           "Input",
	TypeOutput:          "Output",
	TypeActionCall:      "ActionCall",
	TypeArgument:        "Argument",
	TypeActionOutput:    "ActionOutput",
	TypeSetVar:          "SetVar",
	TypeIf:              "If",
	TypeCondition:       "Condition",
	TypeSwitch:          "Switch",
	TypeCase:            "Case",
	TypeInfoset:         "Infoset",
	TypeInfosetVariable: "InfosetVariable",
	TypeSearch:          "Search",
	TypeSearchColumn:    "SearchColumn",
	TypeSubquery:        "Subquery",
	TypeType:            "Type",
	TypeTypeAttribute:   "TypeAttribute",
	TypeFunction:        "Function",
	TypeAction:          "Action",
	TypeDecorator:       "Decorator",
	TypeDecoration:      "Decoration",
	TypeDecorations:     "Decorations",
	TypeIncludeBlock:    "IncludeBlock",
	TypeInclude:         "Include",
	TypeTarget:          "Target",
	TypeView:            "View",
	TypeMainView:        "MainView",
	TypeField:           "Field",
	TypeEvent:           "Event",
	TypeProfile:         "Profile",
	TypePermission:      "Permission",
	TypeAll:             "All",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// DisplayName renders the type for user-facing messages ("include block").
func (t ElementType) DisplayName() string {
	name := t.String()
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// standaloneTypes are resolvable to a declaration without ancestor context.
var standaloneTypes = map[ElementType]bool{
	TypeRule:            true,
	TypeInfoset:         true,
	TypeType:            true,
	TypeView:            true,
	TypeFunction:        true,
	TypeAction:          true,
	TypeDecorator:       true,
	TypeIncludeBlock:    true,
	TypeNameSpace:       true,
	TypeProfile:         true,
	TypeInfosetVariable: true,
	TypeMainView:        true,
}

// IsStandalone reports whether t is indexed workspace-wide.
func (t ElementType) IsStandalone() bool {
	return standaloneTypes[t]
}

// StandaloneTypes lists the standalone element types in declaration order.
func StandaloneTypes() []ElementType {
	out := make([]ElementType, 0, len(standaloneTypes))
	for t := TypeUnknown; t < TypeAll; t++ {
		if standaloneTypes[t] {
			out = append(out, t)
		}
	}
	return out
}

// SubType refines an element type, e.g. the kind of action call.
type SubType string

const (
	SubTypeNone     SubType = ""
	SubTypeRule     SubType = "rule"
	SubTypeInfoset  SubType = "infoset"
	SubTypeRuleLoop SubType = "ruleloop"
	SubTypeFunction SubType = "function"
	SubTypeData     SubType = "data"
	SubTypeAction   SubType = "action"
)

// DetailLevel orders how much cross-reference work a parse or check does.
type DetailLevel int

const (
	DetailDeclarations DetailLevel = iota
	DetailReferences
	DetailSubReferences
	DetailAll
)

var detailLevelNames = []string{"declarations", "references", "subreferences", "all"}

func (l DetailLevel) String() string {
	if l < DetailDeclarations || l > DetailAll {
		return "unknown"
	}
	return detailLevelNames[l]
}

// ParseDetailLevel maps a level name to its value.
func ParseDetailLevel(s string) (DetailLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range detailLevelNames {
		if name == s {
			return DetailLevel(i), true
		}
	}
	return DetailAll, false
}

// FileContext is the model dialect of a file.
type FileContext int

const (
	ContextUnknown FileContext = iota
	ContextBackend
	ContextBackendActions
	ContextFrontend
	ContextRules
	ContextInfosets
)

var fileContextNames = map[FileContext]string{
	ContextUnknown:        "unknown",
	ContextBackend:        "backend",
	ContextBackendActions: "backend-actions",
	ContextFrontend:       "frontend",
	ContextRules:          "rules",
	ContextInfosets:       "infosets",
}

func (c FileContext) String() string {
	if name, ok := fileContextNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseFileContext maps the body of a model processing instruction to a
// dialect. Unrecognised values yield ContextUnknown.
func ParseFileContext(s string) FileContext {
	s = strings.ToLower(strings.TrimSpace(s))
	for ctx, name := range fileContextNames {
		if name == s {
			return ctx
		}
	}
	return ContextUnknown
}
