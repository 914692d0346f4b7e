// Package parser builds typed model trees from XML text, either in one
// streaming pass or by patching a previous tree for a single edit.
package parser

import (
	"fmt"
	"io"
	"log"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/xmltoken"
)

// Diagnostic codes emitted while parsing.
const (
	CodeTokenizer    = "PRS0001"
	CodeNoDefinition = "MDC0001"
)

// DocumentTag is the tag of the synthetic root node.
const DocumentTag = "#document"

// contextInstruction is the processing instruction target selecting the
// file dialect.
const contextInstruction = "model"

// Result is the outcome of a parse.
type Result struct {
	URI         string
	Root        *model.Node
	Diagnostics []model.Diagnostic
	Context     model.FileContext
	Level       model.DetailLevel
}

// Parser turns model files into trees using a definition catalog.
type Parser struct {
	catalog *catalog.Catalog
	logger  *log.Logger
}

// New builds a parser. A nil logger discards output.
func New(cat *catalog.Catalog, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Parser{catalog: cat, logger: logger}
}

// Catalog exposes the catalog the parser resolves tags with.
func (p *Parser) Catalog() *catalog.Catalog {
	return p.catalog
}

// Parse builds the full tree of text.
func (p *Parser) Parse(uri, text string, level model.DetailLevel) *Result {
	root := &model.Node{
		Tag:  DocumentTag,
		Type: model.TypeDocument,
		URI:  uri,
	}
	st := p.newState(uri, level, model.ContextUnknown)
	st.stack = []frame{{node: root}}
	tok := xmltoken.New(text)
	st.run(tok)
	root.FullRange.End = tok.Position()
	root.FileContext = st.fileCtx
	return &Result{
		URI:         uri,
		Root:        root,
		Diagnostics: st.diags,
		Context:     st.fileCtx,
		Level:       level,
	}
}

// frame is one entry of the parse stack.
type frame struct {
	depth int
	node  *model.Node
	def   *catalog.Definition
	// own qualifiers declared by this node, before inheritance
	obsolete  bool
	nameSpace string
}

type override struct {
	depth int
	ctx   model.FileContext
}

type state struct {
	p         *Parser
	uri       string
	level     model.DetailLevel
	fileCtx   model.FileContext
	stack     []frame
	overrides []override
	diags     []model.Diagnostic
}

func (p *Parser) newState(uri string, level model.DetailLevel, ctx model.FileContext) *state {
	return &state{p: p, uri: uri, level: level, fileCtx: ctx}
}

func (st *state) run(tok *xmltoken.Tokenizer) {
	for {
		t, err := tok.Next()
		if err != nil {
			break
		}
		switch t.Kind {
		case xmltoken.KindProcInst:
			st.procInst(t)
		case xmltoken.KindOpen:
			st.open(t)
		case xmltoken.KindClose:
			st.close(t.Depth, t.Range.End)
		case xmltoken.KindError:
			st.tokenError(t)
		}
	}
	st.close(0, tok.Position())
}

func (st *state) top() *frame {
	return &st.stack[len(st.stack)-1]
}

func (st *state) activeCtx() model.FileContext {
	if n := len(st.overrides); n > 0 {
		return st.overrides[n-1].ctx
	}
	return st.fileCtx
}

func (st *state) report(rng model.Range, sev model.Severity, code, format string, args ...any) {
	st.diags = append(st.diags, model.Diagnostic{
		URI:      st.uri,
		Range:    rng,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Code:     code,
	})
}

func (st *state) tokenError(t xmltoken.Token) {
	st.p.logger.Printf("parse %s: %s at %s", st.uri, t.Message, t.Range.Start)
	st.report(t.Range, model.SeverityError, CodeTokenizer, "%s", t.Message)
}

func (st *state) procInst(t xmltoken.Token) {
	if t.Name != contextInstruction {
		return
	}
	st.fileCtx = model.ParseFileContext(t.Body)
	if st.fileCtx == model.ContextUnknown {
		st.report(t.Range, model.SeverityWarning, CodeNoDefinition, "unknown model file context %q", t.Body)
	}
}

// ancestors returns the live node chain, outermost first.
func (st *state) ancestors() []*model.Node {
	out := make([]*model.Node, len(st.stack))
	for i, f := range st.stack {
		out[i] = f.node
	}
	return out
}

// inherited computes the qualifiers contributed by every frame on the stack.
func (st *state) inherited() (obsolete bool, nameSpace string) {
	for _, f := range st.stack {
		obsolete = obsolete || f.obsolete
		if f.nameSpace != "" {
			nameSpace = f.nameSpace
		}
	}
	return obsolete, nameSpace
}

func (st *state) open(t xmltoken.Token) {
	ctx := st.activeCtx()
	if target, ok := st.p.catalog.Override(ctx, t.Name); ok {
		st.overrides = append(st.overrides, override{depth: t.Depth, ctx: target})
		ctx = target
	}
	attrs := make(catalog.Attrs, len(t.Attrs))
	for _, a := range t.Attrs {
		attrs[a.Name] = a.Value
	}
	mc := catalog.MatchContext{Ancestors: st.ancestors(), Attrs: attrs}
	def := st.p.catalog.ResolveForParsing(ctx, t.Name, mc)
	if def == nil {
		if ctx != model.ContextUnknown {
			st.report(t.Range, model.SeverityWarning, CodeNoDefinition,
				"no definition found for <%s> in <%s>", t.Name, st.top().node.Tag)
		}
		if st.level < model.DetailAll {
			return
		}
	}
	f := frame{depth: t.Depth, def: def}
	f.node = st.build(t, def, ctx, mc, &f)
	st.stack = append(st.stack, f)
}

func (st *state) build(t xmltoken.Token, def *catalog.Definition, ctx model.FileContext, mc catalog.MatchContext, f *frame) *model.Node {
	n := &model.Node{
		Tag:         t.Name,
		Type:        model.TypeUnknown,
		Range:       t.Range,
		FullRange:   t.Range,
		URI:         st.uri,
		FileContext: ctx,
	}
	_, inheritedNS := st.inherited()
	if def != nil {
		n.Type = def.Type
		n.SubType = def.SubType
		n.IsSymbol = def.IsSymbol
		if def.IsSymbol {
			n.Name = def.DeclaredName(mc)
			if def.Type != model.TypeNameSpace {
				n.Name = model.QualifyName(inheritedNS, n.Name)
			}
		}
		if def.NameSpaceAttr != "" {
			f.nameSpace, _ = mc.Attrs.AttrValue(def.NameSpaceAttr)
		}
	}
	if v, _ := mc.Attrs.AttrValue("obsolete"); v == "yes" {
		f.obsolete = true
	}
	nameSpace := inheritedNS
	if f.nameSpace != "" {
		nameSpace = f.nameSpace
	}
	for _, a := range t.Attrs {
		attr := &model.Attribute{
			Name:       a.Name,
			Value:      a.Value,
			ValueRange: a.ValueRange,
			FullRange:  a.FullRange,
			URI:        st.uri,
			NameSpace:  nameSpace,
		}
		ad := def.Attribute(a.Name)
		if ad == nil {
			if st.level < model.DetailAll {
				continue
			}
		} else {
			attr.Known = true
			if ad.Type == catalog.ValueReference && st.typesReference(ad) {
				attr.Targets = ad.Targets
			}
		}
		n.Attributes = append(n.Attributes, attr)
	}
	return n
}

// typesReference reports whether the detail level asks for ad to be typed
// as a Reference.
func (st *state) typesReference(ad *catalog.AttributeDef) bool {
	switch {
	case st.level >= model.DetailSubReferences:
		return true
	case st.level == model.DetailReferences:
		for _, t := range ad.Targets {
			if !t.IsStandalone() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// close pops every frame deeper than depth, attaching each node to its
// parent frame and stamping its end and qualifiers.
func (st *state) close(depth int, end model.Position) {
	for len(st.stack) > 1 && st.top().depth > depth {
		f := st.stack[len(st.stack)-1]
		st.stack = st.stack[:len(st.stack)-1]
		f.node.FullRange.End = end
		obsolete, nameSpace := st.inherited()
		f.node.Obsolete = obsolete || f.obsolete
		f.node.NameSpace = nameSpace
		if f.nameSpace != "" {
			f.node.NameSpace = f.nameSpace
		}
		st.top().node.AppendChild(f.node)
	}
	for len(st.overrides) > 0 && st.overrides[len(st.overrides)-1].depth > depth {
		st.overrides = st.overrides[:len(st.overrides)-1]
	}
}
