package check

import (
	"strconv"
	"strings"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/model"
)

// Schema diagnostic codes.
const (
	CodeInvalidChild           = "MDC0002"
	CodeOnceExceeded           = "MDC0003"
	CodeRequiredChildMissing   = "MDC0004"
	CodeMissingAttribute       = "MDC0005"
	CodeInvalidEnumValue       = "MDC0006"
	CodeNotANumber             = "MDC0007"
	CodeUnknownAttribute       = "MDC0008"
	CodeAttributeNotApplicable = "MDC0009"
)

func schemaCheck() Check {
	return Check{
		Name: "schema",
		Type: model.TypeAll,
		Match: func(n *model.Node) bool {
			return n.Type != model.TypeUnknown && n.Type != model.TypeDocument
		},
		Level: model.DetailDeclarations,
		Run:   checkSchema,
	}
}

func checkSchema(c *Context, n *model.Node) {
	def := c.Catalog.Definition(n)
	if def == nil {
		return
	}
	checkChildren(c, n, def)
	checkAttributes(c, n, def)
}

func checkChildren(c *Context, n *model.Node, def *catalog.Definition) {
	counts := make(map[string]int)
	for _, child := range n.Children {
		if child.Type == model.TypeUnknown {
			continue
		}
		cd := def.Child(child.Tag)
		if cd == nil {
			c.Report(child.Range, model.SeverityError, CodeInvalidChild,
				"<%s> is not allowed in <%s>", child.Tag, n.Tag)
			continue
		}
		counts[child.Tag]++
		if counts[child.Tag] == 2 && !def.IsGrouping &&
			(cd.Occurs == catalog.OccursOnce || cd.Occurs == catalog.OccursRequiredOnce) {
			c.Report(child.Range, model.SeverityError, CodeOnceExceeded,
				"<%s> may appear only once in <%s>", child.Tag, n.Tag)
		}
	}
	if def.IsGrouping {
		return
	}
	for _, cd := range def.Children {
		if counts[cd.Tag] > 0 {
			continue
		}
		if cd.Occurs == catalog.OccursRequiredOnce || cd.Occurs == catalog.OccursAtLeastOnce {
			c.Report(n.Range, model.SeverityError, CodeRequiredChildMissing,
				"<%s> requires a <%s> child", n.Tag, cd.Tag)
		}
	}
}

func checkAttributes(c *Context, n *model.Node, def *catalog.Definition) {
	for i := range def.Attributes {
		ad := &def.Attributes[i]
		attr := n.Attr(ad.Name)
		if attr == nil {
			if ad.IsRequired(n) {
				c.Report(n.Range, model.SeverityError, CodeMissingAttribute,
					"<%s> is missing required attribute %q", n.Tag, ad.Name)
			}
			continue
		}
		if !ad.IsVisible(n) {
			c.Report(attr.FullRange, model.SeverityWarning, CodeAttributeNotApplicable,
				"Attribute %q does not apply to this <%s>", ad.Name, n.Tag)
			continue
		}
		if hasPlaceholder(attr.Value) {
			continue
		}
		switch ad.Type {
		case catalog.ValueEnum:
			if !ad.AllowsValue(attr.Value) {
				c.Report(attr.ValueRange, model.SeverityError, CodeInvalidEnumValue,
					"Invalid value %q for %q; expected one of %s", attr.Value, ad.Name, strings.Join(ad.Enum, ", "))
			}
		case catalog.ValueNumber:
			if _, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64); err != nil {
				c.Report(attr.ValueRange, model.SeverityError, CodeNotANumber,
					"Value %q of %q is not a number", attr.Value, ad.Name)
			}
		}
	}
	if c.Level < model.DetailAll {
		return
	}
	for _, attr := range n.Attributes {
		if !attr.Known {
			c.Report(attr.FullRange, model.SeverityInformation, CodeUnknownAttribute,
				"Unknown attribute %q on <%s>", attr.Name, n.Tag)
		}
	}
}
