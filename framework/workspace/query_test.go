package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/framework/model"
)

const completionDoc = `<?model rules?>
<rules>
  <rule name="ApplyTax"/>
  <rule name="Approve"/>
  <rule name="Main">
    <input name="x" />
    <action name="rule" rule-name="Ap"/>
    <if>
      <condition kind="expression" expression="1"/>
      
    </if>
  </rule>
</rules>
`

func labels(items []CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestNodeAndAttributeAt(t *testing.T) {
	s := newSession(t, DefaultConfig())
	require.NoError(t, s.Open(mainURI, mainDoc))

	n, attr := s.AttributeAt(mainURI, posAfter(t, mainDoc, `rule-name="sales.Ap`))
	require.NotNil(t, n)
	require.Equal(t, model.TypeActionCall, n.Type)
	require.NotNil(t, attr)
	require.Equal(t, "rule-name", attr.Name)

	require.Nil(t, s.NodeAt(mainURI, model.Position{Line: 0, Character: 2}))
	require.Nil(t, s.NodeAt("file:///ws/unknown.xml", model.Position{}))
}

func TestDefinitionAndReferences(t *testing.T) {
	s := newSession(t, DefaultConfig())
	require.NoError(t, s.Open(mainURI, mainDoc))
	require.NoError(t, s.Open(otherURI, otherDoc))
	declRange := rangeOf(t, mainDoc, `<rule name="ApplyTax"/>`)

	defs := s.Definition(otherURI, posAfter(t, otherDoc, `rule-name="sales.App`))
	require.Equal(t, []Location{{URI: mainURI, Range: declRange}}, defs)

	refs := s.References(mainURI, posAfter(t, mainDoc, `<rule name="Ap`), true)
	require.Equal(t, []Location{
		{URI: mainURI, Range: declRange},
		{URI: mainURI, Range: rangeOf(t, mainDoc, "sales.ApplyTax")},
		{URI: otherURI, Range: rangeOf(t, otherDoc, "sales.ApplyTax")},
	}, refs)

	refs = s.References(otherURI, posAfter(t, otherDoc, `rule-name="sales`), false)
	require.Len(t, refs, 2)

	require.Empty(t, s.Definition(mainURI, posAfter(t, mainDoc, "<rules")))
}

func TestCompletion(t *testing.T) {
	s := newSession(t, DefaultConfig())
	require.NoError(t, s.Open(mainURI, completionDoc))

	items := s.Completion(mainURI, posAfter(t, completionDoc, `rule-name="Ap`))
	require.Equal(t, []string{"ApplyTax", "Approve"}, labels(items))
	require.Equal(t, CompletionSymbol, items[0].Kind)

	items = s.Completion(mainURI, posAfter(t, completionDoc, `<input name="x" `))
	require.Equal(t, []string{"required", "datatype", "default"}, labels(items))
	require.Equal(t, CompletionAttribute, items[0].Kind)

	items = s.Completion(mainURI, posAfter(t, completionDoc, `kind="expr`))
	require.Equal(t, []string{"compare", "expression"}, labels(items))

	items = s.Completion(mainURI, posAfter(t, completionDoc, "expression=\"1\"/>\n   "))
	require.Equal(t, []string{"action", "set-var", "if", "switch", "decoration", "decorations", "include"}, labels(items))
	require.Equal(t, CompletionElement, items[0].Kind)
}

func TestOutlineAndWorkspaceSymbols(t *testing.T) {
	s := newSession(t, DefaultConfig())
	require.NoError(t, s.Open(mainURI, mainDoc))
	require.NoError(t, s.Open(otherURI, otherDoc))

	outline := s.Outline(mainURI)
	require.Len(t, outline, 2)
	require.Equal(t, "sales", outline[0].Node.Name)
	require.Len(t, outline[0].Children, 1)
	require.Equal(t, "sales.ApplyTax", outline[0].Children[0].Node.Name)
	require.Equal(t, "Main", outline[1].Node.Name)

	var names []string
	for _, n := range s.WorkspaceSymbols("o") {
		names = append(names, n.Name)
	}
	require.Equal(t, []string{"Other"}, names)
}
