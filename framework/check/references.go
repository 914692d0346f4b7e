package check

import (
	"github.com/lexcodex/xmodel/framework/model"
)

// Referenced-object diagnostic codes.
const (
	CodeUnresolvedReference     = "ROC0001"
	CodePreferredCapitalization = "ROC0002"
	CodeObsoleteTarget          = "ROC0003"
)

func referencedObjectCheck() Check {
	return Check{
		Name:  "referenced-object",
		Type:  model.TypeAll,
		Match: func(n *model.Node) bool { return len(n.Attributes) > 0 },
		Level: model.DetailReferences,
		Run:   checkReferences,
	}
}

func standaloneTargets(attr *model.Attribute) bool {
	for _, t := range attr.Targets {
		if !t.IsStandalone() {
			return false
		}
	}
	return len(attr.Targets) > 0
}

func checkReferences(c *Context, n *model.Node) {
	for _, ref := range n.References() {
		if ref.Value == "" || hasPlaceholder(ref.Value) || !standaloneTargets(ref) {
			continue
		}
		found := c.Index.ReferencedObject(ref)
		if len(found) == 0 {
			folded := c.Index.ReferencedObjectFold(ref)
			if len(folded) == 0 {
				c.Report(ref.ValueRange, model.SeverityError, CodeUnresolvedReference,
					"Cannot resolve %s %q", targetLabel(ref), ref.Value)
				continue
			}
			found = folded
		}
		decl := found[0]
		if decl.Name != ref.Value && decl.Name != model.QualifyName(ref.NameSpace, ref.Value) {
			c.Report(ref.ValueRange, model.SeverityInformation, CodePreferredCapitalization,
				"Preferred capitalization is %q", preferredSpelling(decl, ref))
		}
		if allObsolete(found) {
			c.Report(ref.ValueRange, model.SeverityError, CodeObsoleteTarget,
				"%s %q is obsolete", decl.Type.DisplayName(), decl.Name)
		}
	}
}

func targetLabel(ref *model.Attribute) string {
	if len(ref.Targets) == 1 {
		return ref.Targets[0].DisplayName()
	}
	return "reference"
}

// preferredSpelling keeps the reference's own qualification style.
func preferredSpelling(decl *model.Node, ref *model.Attribute) string {
	if ref.NameSpace != "" && len(decl.Name) > len(ref.NameSpace)+1 &&
		len(ref.Value) == len(decl.Name)-len(ref.NameSpace)-1 {
		return decl.Name[len(ref.NameSpace)+1:]
	}
	return decl.Name
}

func allObsolete(decls []*model.Node) bool {
	for _, d := range decls {
		if !d.Obsolete {
			return false
		}
	}
	return true
}
