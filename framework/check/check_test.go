package check

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/index"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/parser"
)

type harness struct {
	t      *testing.T
	parser *parser.Parser
	index  *index.Index
	engine *Engine
}

func newHarness(t *testing.T, files map[string]string, opts ...Option) *harness {
	t.Helper()
	cat := catalog.Default()
	h := &harness{t: t, parser: parser.New(cat, nil), index: index.New(nil, nil)}
	h.engine = Default(cat, h.index, nil, opts...)
	for uri, text := range files {
		h.update(uri, text)
	}
	return h
}

func (h *harness) update(uri, text string) {
	h.t.Helper()
	res := h.parser.Parse(uri, text, model.DetailAll)
	require.NoError(h.t, h.index.Update(uri, res.Root))
}

func (h *harness) run(uri string) []model.Diagnostic {
	return h.engine.Run(uri, model.DetailAll)
}

func (h *harness) node(uri string, pred func(*model.Node) bool) *model.Node {
	h.t.Helper()
	var found *model.Node
	h.index.Tree(uri).Walk(func(n *model.Node) bool {
		if found == nil && pred(n) {
			found = n
		}
		return found == nil
	})
	require.NotNil(h.t, found)
	return found
}

func withCode(diags []model.Diagnostic, code string) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func withSeverity(diags []model.Diagnostic, sev model.Severity) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

func countCodes(diags []model.Diagnostic) map[string]int {
	out := make(map[string]int)
	for _, d := range diags {
		out[d.Code]++
	}
	return out
}

func isCall(n *model.Node) bool { return n.Type == model.TypeActionCall }

const mandatoryDoc = `<?model rules?>
<rules>
  <rule name="ApplyTax">
    <input name="X" required="yes"/>
  </rule>
  <rule name="Caller">
    <action name="rule" rule-name="ApplyTax"%s
  </rule>
</rules>
`

func mandatory(call string) string {
	return fmt.Sprintf(mandatoryDoc, call)
}

func TestMandatoryInputMissing(t *testing.T) {
	h := newHarness(t, map[string]string{"file:///r.xml": mandatory("/>")})
	errs := withSeverity(h.run("file:///r.xml"), model.SeverityError)
	require.Len(t, errs, 1)
	require.Equal(t, CodeMissingMandatoryInput, errs[0].Code)
	require.Contains(t, errs[0].Message, `"X"`)
	require.Contains(t, errs[0].Message, `"ApplyTax"`)
	require.Equal(t, h.node("file:///r.xml", isCall).Range, errs[0].Range)
}

func TestMandatoryInputSupplied(t *testing.T) {
	for name, call := range map[string]string{
		"argument":    `><input name="X" value="1"/></action>`,
		"placeholder": `><input name="{dynamic}" value="1"/></action>`,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, map[string]string{"file:///r.xml": mandatory(call)})
			require.Empty(t, withCode(h.run("file:///r.xml"), CodeMissingMandatoryInput))
		})
	}
}

func TestInfosetCallWithoutName(t *testing.T) {
	cases := map[string]model.Severity{
		"backend": model.SeverityWarning,
		"rules":   model.SeverityInformation,
	}
	for dialect, sev := range cases {
		t.Run(dialect, func(t *testing.T) {
			root := map[string]string{"backend": "backend", "rules": "rules"}[dialect]
			doc := "<?model " + dialect + "?>\n<" + root + ">\n  <rule name=\"R\">\n    <action name=\"infoset\"/>\n  </rule>\n</" + root + ">\n"
			h := newHarness(t, map[string]string{"file:///b.xml": doc})
			call := h.node("file:///b.xml", isCall)

			var atCall []model.Diagnostic
			for _, d := range h.run("file:///b.xml") {
				if d.Range == call.Range {
					atCall = append(atCall, d)
				}
			}
			require.Len(t, atCall, 1)
			require.Equal(t, CodeInfosetCallWithoutName, atCall[0].Code)
			require.Equal(t, sev, atCall[0].Severity)
			require.Contains(t, atCall[0].Message, "Infoset call without infoset-name specified")
		})
	}
}

func TestInfosetCallNameViaArgument(t *testing.T) {
	doc := `<?model backend?>
<backend>
  <infoset name="Orders"><search type="Order"/></infoset>
  <rule name="R">
    <action name="infoset"><input name="infoset-name" value="Orders"/></action>
  </rule>
</backend>
`
	h := newHarness(t, map[string]string{"file:///b.xml": doc})
	diags := h.run("file:///b.xml")
	require.Empty(t, withCode(diags, CodeInfosetCallWithoutName))
	require.Empty(t, withCode(diags, CodeUnknownArgument))
}

func TestUnknownSearchColumn(t *testing.T) {
	doc := `<?model infosets?>
<infosets>
  <type name="Order">
    <attribute name="id" datatype="integer"/>
    <attribute name="status" datatype="string"/>
  </type>
  <infoset name="OpenOrders">
    <search type="Order">
      <searchcolumn name="status" value="open"/>
      <searchcolumn name="colour" value="red"/>
    </search>
  </infoset>
</infosets>
`
	h := newHarness(t, map[string]string{"file:///i.xml": doc})
	errs := withSeverity(h.run("file:///i.xml"), model.SeverityError)
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnknownSearchColumn, errs[0].Code)
	require.Contains(t, errs[0].Message, `"colour"`)
	require.Contains(t, errs[0].Message, `"Order"`)
}

func TestSearchColumnPlaceholdersAndSubqueries(t *testing.T) {
	doc := `<?model infosets?>
<infosets>
  <type name="Order"><attribute name="customer" datatype="string"/></type>
  <type name="Line"><attribute name="sku" datatype="string"/></type>
  <infoset name="ByCustomer">
    <input name="customer"/>
    <search type="Order">
      <searchcolumn name="{customer}" value="x"/>
      <searchcolumn name="{region}" value="x"/>
      <subquery type="Line" column="customer">
        <searchcolumn name="sku" value="1"/>
        <searchcolumn name="customer" value="2"/>
      </subquery>
    </search>
  </infoset>
</infosets>
`
	h := newHarness(t, map[string]string{"file:///i.xml": doc})
	diags := h.run("file:///i.xml")
	notInput := withCode(diags, CodePlaceholderNotInput)
	require.Len(t, notInput, 1)
	require.Contains(t, notInput[0].Message, "{region}")
	unknown := withCode(diags, CodeUnknownSearchColumn)
	require.Len(t, unknown, 1)
	require.Contains(t, unknown[0].Message, `"customer" on type "Line"`)
}

func TestDeadCodeDetection(t *testing.T) {
	h := newHarness(t, map[string]string{
		"file:///a.xml": "<?model rules?>\n<rules>\n  <rule name=\"Lonely\"/>\n</rules>\n",
		"file:///b.xml": "<?model rules?>\n<rules>\n  <rule name=\"Other\"/>\n</rules>\n",
	})
	dead := withCode(h.run("file:///a.xml"), CodeNoReferences)
	require.Len(t, dead, 1)
	require.Equal(t, model.SeverityInformation, dead[0].Severity)
	require.Contains(t, dead[0].Message, `"Lonely"`)

	h.update("file:///b.xml", "<?model rules?>\n<rules>\n  <rule name=\"Other\"><action name=\"rule\" rule-name=\"Lonely\"/></rule>\n</rules>\n")
	require.Empty(t, withCode(h.run("file:///a.xml"), CodeNoReferences))
}

func TestUnreferencedInfosetGetsSofterMessage(t *testing.T) {
	doc := "<?model infosets?>\n<infosets>\n  <infoset name=\"Idle\"><search type=\"Nope\"/></infoset>\n</infosets>\n"
	h := newHarness(t, map[string]string{"file:///i.xml": doc})
	dead := withCode(h.run("file:///i.xml"), CodeNoReferences)
	require.Len(t, dead, 1)
	require.Contains(t, dead[0].Message, "output variables")
}

func TestReferencedObjectChecks(t *testing.T) {
	rules := `<?model rules?>
<rules>
  <rule name="Target"/>
  <rule name="Old" obsolete="yes"/>
  <rule name="Caller">
    <action name="rule" rule-name="Missing"/>
    <action name="rule" rule-name="target"/>
    <action name="rule" rule-name="Old"/>
    <action name="rule" rule-name="{dynamic}"/>
    <action name="sendmail"/>
  </rule>
</rules>
`
	actions := "<?model backend-actions?>\n<actions>\n  <action name=\"SendMail\"/>\n</actions>\n"
	h := newHarness(t, map[string]string{"file:///r.xml": rules, "file:///a.xml": actions})
	diags := h.run("file:///r.xml")

	unresolved := withCode(diags, CodeUnresolvedReference)
	require.Len(t, unresolved, 1)
	require.Equal(t, model.SeverityError, unresolved[0].Severity)
	require.Contains(t, unresolved[0].Message, `"Missing"`)

	capitalization := withCode(diags, CodePreferredCapitalization)
	require.Len(t, capitalization, 2)
	require.Equal(t, `Preferred capitalization is "Target"`, capitalization[0].Message)
	require.Equal(t, `Preferred capitalization is "SendMail"`, capitalization[1].Message)
	require.Equal(t, model.SeverityInformation, capitalization[0].Severity)

	obsolete := withCode(diags, CodeObsoleteTarget)
	require.Len(t, obsolete, 1)
	require.Contains(t, obsolete[0].Message, `"Old"`)

	for _, d := range withCode(diags, CodeNoReferences) {
		require.NotContains(t, d.Message, `"Old"`)
	}
}

func TestRuleDeclarationLocals(t *testing.T) {
	doc := `<?model rules?>
<rules>
  <rule name="Calc">
    <input name="a"/>
    <input name="unused"/>
    <output name="result"/>
    <output name="ghost"/>
    <set-var name="result" value="{a} + {b}"/>
  </rule>
</rules>
`
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	diags := h.run("file:///r.xml")

	undefined := withCode(diags, CodeUndefinedLocal)
	require.Len(t, undefined, 2)
	require.Contains(t, undefined[0].Message, `"ghost"`)
	require.Contains(t, undefined[1].Message, `"b"`)

	unused := withCode(diags, CodeUnusedLocal)
	require.Len(t, unused, 1)
	require.Contains(t, unused[0].Message, `"unused"`)
	require.Equal(t, model.SeverityInformation, unused[0].Severity)
}

func TestActionOutputDefinesLocal(t *testing.T) {
	doc := `<?model rules?>
<rules>
  <rule name="Tax">
    <input name="base" required="yes"/>
    <output name="taxed"/>
    <set-var name="taxed" value="{base}"/>
  </rule>
  <rule name="Total">
    <input name="amount"/>
    <output name="total"/>
    <action name="rule" rule-name="Tax">
      <input name="base" value="{amount}"/>
      <output name="taxed" local-name="total"/>
      <output name="price"/>
    </action>
  </rule>
</rules>
`
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	diags := h.run("file:///r.xml")
	require.Empty(t, withCode(diags, CodeUndefinedLocal))
	unknownOut := withCode(diags, CodeUnknownOutput)
	require.Len(t, unknownOut, 1)
	require.Contains(t, unknownOut[0].Message, `"price"`)
	unused := withCode(diags, CodeUnusedLocal)
	require.Len(t, unused, 1)
	require.Contains(t, unused[0].Message, `"price"`)
}

func TestRuleLoopInputs(t *testing.T) {
	doc := `<?model backend?>
<backend>
  <type name="Order"><attribute name="status" datatype="string"/></type>
  <infoset name="Orders"><search type="Order"/></infoset>
  <rule name="PerOrder"><input name="status" required="yes"/></rule>
  <rule name="PerValue"><input name="value" required="yes"/></rule>
  <rule name="Loop">
    <action name="ruleloop" rule-name="PerOrder" infoset-name="Orders"/>
    <action name="ruleloop" rule-name="PerValue" list="a,b"/>
    <action name="ruleloop" rule-name="PerOrder" list="a,b"/>
    <action name="ruleloop" infoset-name="Orders"/>
  </rule>
</backend>
`
	h := newHarness(t, map[string]string{"file:///b.xml": doc})
	diags := h.run("file:///b.xml")
	missing := withCode(diags, CodeMissingMandatoryInput)
	require.Len(t, missing, 1)
	require.Contains(t, missing[0].Message, `"status"`)
	require.Len(t, withCode(diags, CodeRuleLoopWithoutRule), 1)
}

func TestDataActionInputs(t *testing.T) {
	doc := `<?model backend?>
<backend>
  <type name="Order"><attribute name="status" datatype="string"/></type>
  <rule name="Save">
    <action name="attributeupdate" type-name="Order">
      <input name="status" value="x"/>
      <input name="bogus" value="y"/>
      <output name="status"/>
    </action>
    <action name="attributeselect"/>
  </rule>
</backend>
`
	h := newHarness(t, map[string]string{"file:///b.xml": doc})
	diags := h.run("file:///b.xml")
	unknown := withCode(diags, CodeUnknownArgument)
	require.Len(t, unknown, 1)
	require.Contains(t, unknown[0].Message, `"bogus" for type "Order"`)
	require.Empty(t, withCode(diags, CodeUnknownOutput))
	require.Len(t, withCode(diags, CodeDataActionWithoutType), 1)
}

func TestSchemaCheck(t *testing.T) {
	doc := `<?model backend?>
<backend>
  <type name="T">
    <attribute name="n" datatype="decimal" precision="x" length="5"/>
    <attribute name="s" datatype="text"/>
  </type>
  <type name="Empty"/>
  <infoset name="I">
    <search type="T"/>
    <search type="T"/>
  </infoset>
  <rule name="R">
    <set-var value="1"/>
    <searchcolumn name="x" value="y"/>
    <action name="infoset" infoset-name="I" max-rows="{limit}" colour="red"/>
  </rule>
</backend>
`
	h := newHarness(t, map[string]string{"file:///b.xml": doc})
	counts := countCodes(h.run("file:///b.xml"))
	require.Equal(t, 1, counts[CodeNotANumber])
	require.Equal(t, 1, counts[CodeAttributeNotApplicable])
	require.Equal(t, 1, counts[CodeInvalidEnumValue])
	require.Equal(t, 1, counts[CodeRequiredChildMissing])
	require.Equal(t, 1, counts[CodeOnceExceeded])
	require.Equal(t, 1, counts[CodeMissingAttribute])
	require.Equal(t, 1, counts[CodeInvalidChild])
	require.Equal(t, 1, counts[CodeUnknownAttribute])

	atDecl := h.engine.Run("file:///b.xml", model.DetailReferences)
	require.Empty(t, withCode(atDecl, CodeUnknownAttribute))
}

func TestConditionalRequiredness(t *testing.T) {
	doc := `<?model rules?>
<rules>
  <rule name="R">
    <if><condition kind="compare" variable="v" operator="eq"/></if>
    <if><condition kind="compare" variable="v" operator="empty"/></if>
    <if><condition kind="expression"/></if>
    <set-var name="v" value="1"/>
  </rule>
</rules>
`
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	missing := withCode(h.run("file:///r.xml"), CodeMissingAttribute)
	require.Len(t, missing, 2)
	require.Contains(t, missing[0].Message, `"value"`)
	require.Contains(t, missing[1].Message, `"expression"`)
}

func TestIndirectionCyclesAndDuplicates(t *testing.T) {
	front := `<?model frontend?>
<frontend>
  <include-block name="Header"><include block="Footer"/></include-block>
  <include-block name="Footer"><include block="Header"/></include-block>
  <view name="Orders"><include block="Header"/></view>
</frontend>
`
	other := "<?model frontend?>\n<frontend>\n  <view name=\"Orders\"/>\n</frontend>\n"
	h := newHarness(t, map[string]string{"file:///f.xml": front, "file:///g.xml": other})
	diags := h.run("file:///f.xml")
	cycles := withCode(diags, CodeIndirectionCycle)
	require.Len(t, cycles, 2)
	require.Contains(t, cycles[0].Message, "Header -> Footer -> Header")
	require.Equal(t, model.SeverityWarning, cycles[0].Severity)

	dup := withCode(diags, CodeDuplicateDeclaration)
	require.Len(t, dup, 1)
	require.Contains(t, dup[0].Message, `"Orders" is declared 2 times`)
	require.Len(t, withCode(h.run("file:///g.xml"), CodeDuplicateDeclaration), 1)
}

func TestEngineSkipsObsoleteSubtrees(t *testing.T) {
	doc := "<?model rules?>\n<rules>\n  <rule name=\"Old\" obsolete=\"yes\"><output name=\"ghost\"/></rule>\n</rules>\n"
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	require.Empty(t, h.run("file:///r.xml"))
}

func TestEngineRecoversPanics(t *testing.T) {
	doc := "<?model rules?>\n<rules>\n  <rule name=\"R\"><output name=\"ghost\"/></rule>\n</rules>\n"
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	h.engine.Register(Check{
		Name: "explodes",
		Type: model.TypeRule,
		Run:  func(*Context, *model.Node) { panic("boom") },
	})
	diags := h.run("file:///r.xml")
	faults := withCode(diags, CodeCheckFault)
	require.Len(t, faults, 1)
	require.Contains(t, faults[0].Message, "/rules/rule")
	require.Contains(t, faults[0].Message, "boom")
	require.Len(t, withCode(diags, CodeUndefinedLocal), 1)
}

func TestEngineOptions(t *testing.T) {
	doc := "<?model rules?>\n<rules>\n  <rule name=\"R\"><action name=\"rule\" rule-name=\"Missing\"/><output name=\"ghost\"/></rule>\n</rules>\n"
	files := map[string]string{"file:///r.xml": doc}

	h := newHarness(t, files, WithDisabled("DC"), WithSeverityOverrides(map[string]model.Severity{
		CodeUnresolvedReference: model.SeverityWarning,
	}))
	diags := h.run("file:///r.xml")
	for _, d := range diags {
		require.NotEqual(t, "DC", d.Code[:2])
	}
	unresolved := withCode(diags, CodeUnresolvedReference)
	require.Len(t, unresolved, 1)
	require.Equal(t, model.SeverityWarning, unresolved[0].Severity)
}

func TestEngineLevelGating(t *testing.T) {
	doc := "<?model rules?>\n<rules>\n  <rule name=\"R\"><action name=\"rule\" rule-name=\"Missing\"/></rule>\n</rules>\n"
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	diags := h.engine.Run("file:///r.xml", model.DetailDeclarations)
	require.Empty(t, withCode(diags, CodeUnresolvedReference))
	require.Empty(t, withCode(diags, CodeNoReferences))
	require.Nil(t, h.engine.Run("file:///missing.xml", model.DetailAll))
}

func TestMandatoryInputReachedTwiceReportsOnce(t *testing.T) {
	doc := `<?model rules?>
<rules>
  <include-block name="Common"><input name="X" required="yes"/></include-block>
  <rule name="ApplyTax">
    <input name="X" required="yes"/>
    <include block="Common"/>
  </rule>
  <rule name="Caller">
    <action name="rule" rule-name="ApplyTax"/>
  </rule>
</rules>
`
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	missing := withCode(h.run("file:///r.xml"), CodeMissingMandatoryInput)
	require.Len(t, missing, 1)
	require.Contains(t, missing[0].Message, `"X"`)
}

func TestUnterminatedBraceIsNotAPlaceholder(t *testing.T) {
	doc := `<?model rules?>
<rules>
  <rule name="Braced" obsolete="a{b"/>
  <rule name="Templated" obsolete="{flag}"/>
  <rule name="Caller">
    <action name="rule" rule-name="Nope{"/>
  </rule>
</rules>
`
	h := newHarness(t, map[string]string{"file:///r.xml": doc})
	diags := h.run("file:///r.xml")
	enums := withCode(diags, CodeInvalidEnumValue)
	require.Len(t, enums, 1)
	require.Contains(t, enums[0].Message, `"a{b"`)
	unresolved := withCode(diags, CodeUnresolvedReference)
	require.Len(t, unresolved, 1)
	require.Contains(t, unresolved[0].Message, `"Nope{"`)

	require.True(t, hasPlaceholder("{a} + {b}"))
	require.False(t, hasPlaceholder("a{b"))
	require.False(t, hasPlaceholder("{}"))
}
