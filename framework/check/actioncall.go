package check

import (
	"fmt"
	"slices"

	"github.com/lexcodex/xmodel/framework/model"
)

// Action-call diagnostic codes.
const (
	CodeRuleCallWithoutName     = "CC0001"
	CodeInfosetCallWithoutName  = "CC0002"
	CodeFunctionCallWithoutName = "CC0003"
	CodeDataActionWithoutType   = "CC0004"
	CodeRuleLoopWithoutRule     = "CC0005"
	CodeUnknownArgument         = "CC0006"
	CodeUnknownOutput           = "CC0007"
	CodeMissingMandatoryInput   = "CC0008"
)

// reservedLoopInput is what a rule loop without an infoset passes to its
// rule for every element of its list.
const reservedLoopInput = "value"

type callKind struct {
	sub     model.SubType
	idAttr  string
	target  model.ElementType
	code    string
	missing string
}

var callKinds = []callKind{
	{model.SubTypeRule, "rule-name", model.TypeRule, CodeRuleCallWithoutName, "Rule call without rule-name specified"},
	{model.SubTypeInfoset, "infoset-name", model.TypeInfoset, CodeInfosetCallWithoutName, "Infoset call without infoset-name specified"},
	{model.SubTypeRuleLoop, "rule-name", model.TypeRule, CodeRuleLoopWithoutRule, "Rule loop without rule-name specified"},
	{model.SubTypeFunction, "function-name", model.TypeFunction, CodeFunctionCallWithoutName, "Function call without function-name specified"},
	{model.SubTypeData, "type-name", model.TypeType, CodeDataActionWithoutType, "Data action without type-name specified"},
	{model.SubTypeAction, "name", model.TypeAction, "", ""},
}

func actionCallChecks() []Check {
	checks := make([]Check, 0, len(callKinds))
	for _, kind := range callKinds {
		kind := kind
		checks = append(checks, Check{
			Name:  "action-call/" + string(kind.sub),
			Type:  model.TypeActionCall,
			Match: func(n *model.Node) bool { return n.SubType == kind.sub },
			Level: model.DetailReferences,
			Run:   kind.run,
		})
	}
	return checks
}

// missingSeverity is the severity of a missing identifying attribute: the
// backend dialects treat it as a warning, the rest as information.
func missingSeverity(n *model.Node) model.Severity {
	switch n.FileContext {
	case model.ContextBackend, model.ContextBackendActions:
		return model.SeverityWarning
	}
	return model.SeverityInformation
}

// signature is what a call site is checked against.
type signature struct {
	owner    *model.Node
	inputs   map[string]bool
	required []string
	outputs  map[string]bool
	// supplied holds inputs provided implicitly by the call kind.
	supplied map[string]bool
}

func newSignature(owner *model.Node) *signature {
	return &signature{
		owner:    owner,
		inputs:   make(map[string]bool),
		outputs:  make(map[string]bool),
		supplied: make(map[string]bool),
	}
}

func (s *signature) describe() string {
	return fmt.Sprintf("%s %q", s.owner.Type.DisplayName(), s.owner.Name)
}

// identifier returns the value naming the callee: the attribute itself, or
// an argument of that name.
func identifier(call *model.Node, attr string) (string, bool) {
	if v := call.Value(attr); v != "" {
		return v, true
	}
	for _, arg := range call.ChildrenOfType(model.TypeArgument) {
		if arg.Value("name") == attr {
			return arg.Value("value"), true
		}
	}
	return "", false
}

func (k callKind) run(c *Context, call *model.Node) {
	name, ok := identifier(call, k.idAttr)
	if !ok {
		if k.code != "" {
			c.Report(call.Range, missingSeverity(call), k.code, "%s", k.missing)
		}
		return
	}
	if hasPlaceholder(name) {
		return
	}
	sig := k.signature(c, call, name)
	if sig == nil {
		return
	}
	ids := map[string]bool{k.idAttr: true}
	if k.sub == model.SubTypeRuleLoop {
		ids["infoset-name"] = true
	}
	checkCall(c, call, sig, ids)
}

func (k callKind) signature(c *Context, call *model.Node, name string) *signature {
	decls := c.Index.Resolve(name, call.NameSpace, k.target)
	if len(decls) == 0 {
		return nil
	}
	decl := decls[0]
	sig := newSignature(decl)
	switch k.sub {
	case model.SubTypeInfoset:
		addInputs(c, sig, decl)
		for _, v := range c.Index.ChildrenOfType(decl, model.TypeInfosetVariable) {
			sig.outputs[v.Value("name")] = true
		}
	case model.SubTypeData:
		for _, attr := range typeAttributes(c, decl) {
			sig.inputs[attr] = true
			sig.outputs[attr] = true
		}
	case model.SubTypeRuleLoop:
		addInputs(c, sig, decl)
		addOutputs(c, sig, decl)
		infoset, ok := identifier(call, "infoset-name")
		if !ok || hasPlaceholder(infoset) {
			sig.inputs[reservedLoopInput] = true
			sig.supplied[reservedLoopInput] = true
			break
		}
		for _, is := range c.Index.Resolve(infoset, call.NameSpace, model.TypeInfoset) {
			for _, attr := range searchTypeAttributes(c, is) {
				sig.inputs[attr] = true
				sig.supplied[attr] = true
			}
		}
	default:
		addInputs(c, sig, decl)
		addOutputs(c, sig, decl)
	}
	return sig
}

func addInputs(c *Context, sig *signature, decl *model.Node) {
	for _, in := range c.Index.ChildrenOfType(decl, model.TypeInput) {
		name := in.Value("name")
		sig.inputs[name] = true
		if in.Value("required") == "yes" && !slices.Contains(sig.required, name) {
			sig.required = append(sig.required, name)
		}
	}
}

func addOutputs(c *Context, sig *signature, decl *model.Node) {
	for _, out := range c.Index.ChildrenOfType(decl, model.TypeOutput) {
		sig.outputs[out.Value("name")] = true
	}
}

// typeAttributes lists the attribute names declared by a Type.
func typeAttributes(c *Context, typ *model.Node) []string {
	var out []string
	for _, attr := range c.Index.ChildrenOfType(typ, model.TypeTypeAttribute) {
		out = append(out, attr.Value("name"))
	}
	return out
}

// searchTypeAttributes lists the attributes of the types an infoset
// searches.
func searchTypeAttributes(c *Context, infoset *model.Node) []string {
	var out []string
	for _, search := range c.Index.ChildrenOfType(infoset, model.TypeSearch) {
		for _, typ := range c.Index.Resolve(search.Value("type"), search.NameSpace, model.TypeType) {
			out = append(out, typeAttributes(c, typ)...)
		}
	}
	return out
}

// checkCall matches the arguments and outputs of call against sig. ids are
// argument names that identify the callee rather than pass an input.
func checkCall(c *Context, call *model.Node, sig *signature, ids map[string]bool) {
	given := make(map[string]bool)
	dynamic := false
	for _, arg := range call.ChildrenOfType(model.TypeArgument) {
		attr := arg.Attr("name")
		if attr == nil || attr.Value == "" || ids[attr.Value] {
			continue
		}
		if hasPlaceholder(attr.Value) {
			dynamic = true
			continue
		}
		given[attr.Value] = true
		if !sig.inputs[attr.Value] {
			c.Report(attr.ValueRange, model.SeverityError, CodeUnknownArgument,
				"Unknown input %q for %s", attr.Value, sig.describe())
		}
	}
	for _, out := range call.ChildrenOfType(model.TypeActionOutput) {
		attr := out.Attr("name")
		if attr == nil || attr.Value == "" || hasPlaceholder(attr.Value) {
			continue
		}
		given[attr.Value] = true
		if !sig.outputs[attr.Value] {
			c.Report(attr.ValueRange, model.SeverityError, CodeUnknownOutput,
				"Unknown output %q for %s", attr.Value, sig.describe())
		}
	}
	if dynamic {
		return
	}
	for _, req := range sig.required {
		if !given[req] && !sig.supplied[req] {
			c.Report(call.Range, model.SeverityError, CodeMissingMandatoryInput,
				"Mandatory input %q of %s is not supplied", req, sig.describe())
		}
	}
}
