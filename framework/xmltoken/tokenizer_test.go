package xmltoken

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/framework/model"
)

func pos(line, char int) model.Position {
	return model.Position{Line: line, Character: char}
}

func TestTokenizerBasicStream(t *testing.T) {
	src := "<?model rules?>\n<rules>\n  <rule name=\"A\" obsolete='no'/>\n</rules>\n"
	toks := New(src).All()
	require.Len(t, toks, 5)

	require.Equal(t, KindProcInst, toks[0].Kind)
	require.Equal(t, "model", toks[0].Name)
	require.Equal(t, "rules", toks[0].Body)

	require.Equal(t, KindOpen, toks[1].Kind)
	require.Equal(t, 1, toks[1].Depth)
	require.Equal(t, model.Range{Start: pos(1, 0), End: pos(1, 7)}, toks[1].Range)

	rule := toks[2]
	require.Equal(t, KindOpen, rule.Kind)
	require.True(t, rule.SelfClosing)
	require.Equal(t, 2, rule.Depth)
	require.Len(t, rule.Attrs, 2)
	require.Equal(t, "A", rule.Attrs[0].Value)
	require.Equal(t, model.Range{Start: pos(2, 14), End: pos(2, 15)}, rule.Attrs[0].ValueRange)
	require.Equal(t, model.Range{Start: pos(2, 8), End: pos(2, 16)}, rule.Attrs[0].FullRange)

	require.Equal(t, KindClose, toks[3].Kind)
	require.Equal(t, 1, toks[3].Depth)
	require.Equal(t, rule.Range, toks[3].Range)

	require.Equal(t, KindClose, toks[4].Kind)
	require.Equal(t, 0, toks[4].Depth)
}

func TestTokenizerSkipsCommentsAndText(t *testing.T) {
	toks := New("<a><!-- <b> --><![CDATA[<c>]]>text</a>").All()
	require.Len(t, toks, 2)
	require.Equal(t, "a", toks[0].Name)
	require.Equal(t, KindClose, toks[1].Kind)
}

func TestTokenizerRecoversFromErrors(t *testing.T) {
	toks := New("<a><b></a><c x=1/>").All()
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []Kind{KindOpen, KindOpen, KindError, KindClose, KindError, KindOpen, KindClose}, kinds)
	require.Contains(t, toks[2].Message, "missing close tag for <b>")
	require.Equal(t, 0, toks[3].Depth)
	require.Contains(t, toks[4].Message, "malformed attribute")
}

func TestTokenizerReportsUnclosedAtEOF(t *testing.T) {
	toks := New("<a>").All()
	require.Len(t, toks, 2)
	require.Equal(t, KindError, toks[1].Kind)
	require.Contains(t, toks[1].Message, "<a> is not closed")
}

func TestTokenizerUnescapesValues(t *testing.T) {
	toks := New(`<a v="x &amp; y &#65;"/>`).All()
	require.Equal(t, "x & y A", toks[0].Attrs[0].Value)
	require.Equal(t, model.Range{Start: pos(0, 6), End: pos(0, 21)}, toks[0].Attrs[0].ValueRange)
}
