package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/parser"
)

const rulesDoc = `<?model rules?>
<rules>
  <module target-namespace="sales">
    <rule name="ApplyTax"><input name="base" required="yes"/></rule>
    <rule name="Compute">
      <action name="rule" rule-name="ApplyTax"><input name="base" value="1"/></action>
    </rule>
  </module>
  <rule name="Main">
    <action name="rule" rule-name="sales.ApplyTax"/>
    <action name="rule" rule-name="sales.applytax"/>
    <action name="SENDMAIL"/>
  </rule>
</rules>
`

const actionsDoc = `<?model backend-actions?>
<actions>
  <action name="SendMail"><input name="to"/></action>
</actions>
`

const frontendDoc = `<?model frontend?>
<frontend>
  <include-block name="Header"><field name="title"/><include block="Footer"/></include-block>
  <include-block name="Footer"><field name="copyright"/><include block="Header"/></include-block>
  <decorator name="Audit"><field name="audited"/></decorator>
  <view name="Orders">
    <field name="id"/>
    <include block="Header"/>
    <decorations><decoration name="Audit"/></decorations>
  </view>
</frontend>
`

const (
	rulesURI    = "file:///ws/rules.xml"
	actionsURI  = "file:///ws/actions.xml"
	frontendURI = "file:///ws/frontend.xml"
)

func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite-memory": func() Store {
			s, err := NewSQLiteStore("")
			require.NoError(t, err)
			return s
		},
		"sqlite-file": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, ix *Index)) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ix := New(factory(), nil)
			t.Cleanup(func() { ix.Close() })
			p := parser.New(catalog.Default(), nil)
			for uri, text := range map[string]string{rulesURI: rulesDoc, actionsURI: actionsDoc, frontendURI: frontendDoc} {
				res := p.Parse(uri, text, model.DetailAll)
				require.NoError(t, ix.Update(uri, res.Root))
			}
			fn(t, ix)
		})
	}
}

func findNode(t *testing.T, root *model.Node, pred func(*model.Node) bool) *model.Node {
	t.Helper()
	var found *model.Node
	root.Walk(func(n *model.Node) bool {
		if found == nil && pred(n) {
			found = n
		}
		return found == nil
	})
	require.NotNil(t, found)
	return found
}

func callRef(t *testing.T, ix *Index, ruleName string, nth int) *model.Attribute {
	t.Helper()
	rule := findNode(t, ix.Tree(rulesURI), func(n *model.Node) bool { return n.Name == ruleName })
	calls := rule.ChildrenOfType(model.TypeActionCall)
	require.Greater(t, len(calls), nth)
	for _, attr := range calls[nth].References() {
		return attr
	}
	t.Fatalf("call %d of %s has no reference", nth, ruleName)
	return nil
}

func names(nodes []*model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.DisplayName())
	}
	return out
}

func TestUpdateIndexesStandaloneDeclarations(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		require.Equal(t, []string{actionsURI, frontendURI, rulesURI}, ix.URIs())
		require.Equal(t, []string{"sales", "sales.ApplyTax", "sales.Compute", "Main"}, names(ix.Declarations(rulesURI)))
		require.Equal(t, []string{"SendMail"}, names(ix.Declarations(actionsURI)))
	})
}

func TestReferencedObjectResolution(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		qualified := callRef(t, ix, "sales.Compute", 0)
		require.Equal(t, []string{"sales.ApplyTax"}, names(ix.ReferencedObject(qualified)))

		literal := callRef(t, ix, "Main", 0)
		require.Equal(t, []string{"sales.ApplyTax"}, names(ix.ReferencedObject(literal)))

		wrongCase := callRef(t, ix, "Main", 1)
		require.Empty(t, ix.ReferencedObject(wrongCase))
		require.Equal(t, []string{"sales.ApplyTax"}, names(ix.ReferencedObjectFold(wrongCase)))

		action := callRef(t, ix, "Main", 2)
		require.Equal(t, []string{"SendMail"}, names(ix.ReferencedObject(action)))
	})
}

func TestReferencedObjectIsDeterministic(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		ref := callRef(t, ix, "sales.Compute", 0)
		first := ix.ReferencedObject(ref)
		require.Len(t, first, 1)
		require.Same(t, first[0], ix.ReferencedObject(ref)[0])
	})
}

func TestReferencedObjectOrdersDuplicatesByURI(t *testing.T) {
	const dupURI = "file:///ws/dup.xml"
	const dupDoc = `<?model rules?>
<rules>
  <module target-namespace="sales">
    <rule name="ApplyTax"/>
  </module>
</rules>
`
	forEachStore(t, func(t *testing.T, ix *Index) {
		res := parser.New(catalog.Default(), nil).Parse(dupURI, dupDoc, model.DetailAll)
		require.NoError(t, ix.Update(dupURI, res.Root))

		found := ix.ReferencedObject(callRef(t, ix, "Main", 0))
		require.Len(t, found, 2)
		require.Equal(t, dupURI, found[0].URI)
		require.Equal(t, rulesURI, found[1].URI)
		require.Same(t, found[0], ix.ReferencedObject(callRef(t, ix, "Main", 0))[0])
	})
}

func TestReferencesForSymbol(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		tax := ix.DeclarationsNamed(model.TypeRule, "sales.ApplyTax")
		require.Len(t, tax, 1)
		refs := ix.ReferencesForSymbol(tax[0])
		require.Len(t, refs, 2)
		require.Same(t, callRef(t, ix, "sales.Compute", 0), refs[0])
		require.Same(t, callRef(t, ix, "Main", 0), refs[1])
		owner := ix.ReferenceOwner(refs[0])
		require.Equal(t, model.TypeActionCall, owner.Type)

		mail := ix.DeclarationsNamed(model.TypeAction, "sendmail")
		require.Len(t, mail, 1)
		require.Len(t, ix.ReferencesForSymbol(mail[0]), 1)

		main := ix.DeclarationsNamed(model.TypeRule, "Main")
		require.Len(t, main, 1)
		require.Empty(t, ix.ReferencesForSymbol(main[0]))
	})
}

func TestUpdateIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		tree := ix.Tree(rulesURI)
		before := names(ix.FindSymbolsMatchingWord("", false))
		require.NoError(t, ix.Update(rulesURI, tree))
		require.NoError(t, ix.Update(rulesURI, tree))
		require.Equal(t, before, names(ix.FindSymbolsMatchingWord("", false)))
		tax := ix.DeclarationsNamed(model.TypeRule, "sales.ApplyTax")
		require.Len(t, tax, 1)
		require.Len(t, ix.ReferencesForSymbol(tax[0]), 2)
	})
}

func TestClearRemovesFile(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		require.NoError(t, ix.Clear(actionsURI))
		require.Nil(t, ix.Tree(actionsURI))
		require.Empty(t, ix.Declarations(actionsURI))
		require.Empty(t, ix.ReferencedObject(callRef(t, ix, "Main", 2)))
		require.NotContains(t, ix.URIs(), actionsURI)
	})
}

func TestFindMatchingWord(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		require.Equal(t, []string{"sales", "sales.ApplyTax", "sales.Compute"}, names(ix.FindSymbolsMatchingWord("SALES", false)))
		require.Equal(t, []string{"sales.ApplyTax", "sales.Compute"}, names(ix.FindSymbolsMatchingWord("sales", false, model.TypeRule)))
		require.Equal(t, []string{"Main"}, names(ix.FindSymbolsMatchingWord("Main", true)))
		require.Empty(t, ix.FindSymbolsMatchingWord("main", true))
		require.Equal(t, []string{"SendMail"}, names(ix.FindSymbolsMatchingWord("sendMAIL", true)))

		require.Len(t, ix.FindReferencesMatchingWord("sales.ApplyTax", true, model.TypeRule), 2)
		require.Len(t, ix.FindReferencesMatchingWord("sales.", false), 3)
	})
}

func TestChildrenOfTypeFollowsIndirections(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		view := ix.DeclarationsNamed(model.TypeView, "Orders")
		require.Len(t, view, 1)
		fields := ix.ChildrenOfType(view[0], model.TypeField)
		require.Equal(t, []string{"id", "title", "copyright", "audited"}, names(fields))
	})
}

func TestIndirectionCycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, ix *Index) {
		header := ix.DeclarationsNamed(model.TypeIncludeBlock, "Header")
		require.Len(t, header, 1)
		require.Equal(t, []string{"Header", "Footer", "Header"}, names(ix.IndirectionCycle(header[0])))

		view := ix.DeclarationsNamed(model.TypeView, "Orders")
		require.Nil(t, ix.IndirectionCycle(view[0]))
		audit := ix.DeclarationsNamed(model.TypeDecorator, "Audit")
		require.Nil(t, ix.IndirectionCycle(audit[0]))
	})
}
