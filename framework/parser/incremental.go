package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/xmltoken"
)

// ErrFallback signals that an edit cannot be applied incrementally and the
// caller must reparse the whole file. The previous tree must be discarded
// once it has been returned from ParseIncremental.
var ErrFallback = errors.New("incremental parse not applicable")

// Change is a single text edit expressed in old-document coordinates.
type Change struct {
	Range model.Range
	Text  string
}

// Edit describes the node-aligned region an incremental parse replaces:
// Before is the full range of the replaced node in the old document, After
// the extent of its text in the new document.
type Edit struct {
	Before model.Range
	After  model.Range
}

// Apply returns text with the change applied.
func (c Change) Apply(text string) string {
	start := model.OffsetAt(text, c.Range.Start)
	end := model.OffsetAt(text, c.Range.End)
	if end < start {
		end = start
	}
	return text[:start] + c.Text + text[end:]
}

// PlanEdit aligns change to the deepest node strictly containing it and
// returns the edit, the new document text and the fragment to reparse.
// ok is false when only a full reparse is safe.
func PlanEdit(prev *Result, oldText string, change Change) (edit Edit, newText, fragment string, ok bool) {
	newText = change.Apply(oldText)
	if prev == nil || prev.Root == nil {
		return Edit{}, newText, "", false
	}
	target := deepestContaining(prev.Root, change.Range)
	if target == nil {
		return Edit{}, newText, "", false
	}
	for n := target; n != nil && n.Type != model.TypeDocument; n = n.Parent {
		if n.Type == model.TypeUnknown {
			return Edit{}, newText, "", false
		}
	}
	startOff := model.OffsetAt(oldText, target.FullRange.Start)
	endOff := model.OffsetAt(oldText, target.FullRange.End)
	changeStart := model.OffsetAt(oldText, change.Range.Start)
	changeEnd := model.OffsetAt(oldText, change.Range.End)
	newEnd := endOff + len(change.Text) - (changeEnd - changeStart)
	if newEnd < startOff || newEnd > len(newText) {
		return Edit{}, newText, "", false
	}
	fragment = newText[startOff:newEnd]
	if strings.Contains(oldText[startOff:endOff], "<?") || strings.Contains(fragment, "<?") {
		return Edit{}, newText, "", false
	}
	edit = Edit{
		Before: target.FullRange,
		After: model.Range{
			Start: target.FullRange.Start,
			End:   model.PositionAt(newText, newEnd),
		},
	}
	return edit, newText, fragment, true
}

func deepestContaining(n *model.Node, r model.Range) *model.Node {
	var found *model.Node
	for _, child := range n.Children {
		if child.FullRange.StrictlyContains(r) {
			found = child
			if deeper := deepestContaining(child, r); deeper != nil {
				found = deeper
			}
			break
		}
	}
	return found
}

// Update applies change to prev, incrementally when possible, and returns
// the new result and document text.
func (p *Parser) Update(prev *Result, oldText string, change Change, level model.DetailLevel) (*Result, string) {
	edit, newText, fragment, ok := PlanEdit(prev, oldText, change)
	if ok && prev.Level == level {
		res, err := p.ParseIncremental(prev, edit, fragment)
		if err == nil {
			return res, newText
		}
		p.logger.Printf("incremental parse %s: %v; reparsing", prev.URI, err)
	}
	uri := ""
	if prev != nil {
		uri = prev.URI
	}
	return p.Parse(uri, newText, level), newText
}

type nodeState int

const (
	stateBefore nodeState = iota
	stateParent
	stateIs
	stateAfter
	stateOverlap
)

type incremental struct {
	p           *Parser
	prev        *Result
	edit        Edit
	fragment    string
	lineDelta   int
	charDelta   int
	replaced    bool
	replacement *model.Node
	fragDiags   []model.Diagnostic
}

// ParseIncremental patches prev.Root in place for edit, reparsing only the
// node whose full range equals edit.Before. fragment is the new text of
// that node.
func (p *Parser) ParseIncremental(prev *Result, edit Edit, fragment string) (*Result, error) {
	if prev == nil || prev.Root == nil {
		return nil, ErrFallback
	}
	ip := &incremental{
		p:         p,
		prev:      prev,
		edit:      edit,
		fragment:  fragment,
		lineDelta: edit.After.End.Line - edit.Before.End.Line,
		charDelta: edit.After.End.Character - edit.Before.End.Character,
	}
	// Validate the fragment before touching the tree.
	if err := ip.visit(prev.Root, []frame{ip.frameFor(prev.Root)}, true); err != nil {
		return nil, err
	}
	if !ip.replaced {
		return nil, fmt.Errorf("%w: no node spans %s", ErrFallback, edit.Before)
	}
	ip.replaced = false
	if err := ip.visit(prev.Root, []frame{ip.frameFor(prev.Root)}, false); err != nil {
		return nil, err
	}
	prev.Root.FullRange.End = ip.shift(prev.Root.FullRange.End)
	return &Result{
		URI:         prev.URI,
		Root:        prev.Root,
		Diagnostics: ip.diagnostics(),
		Context:     prev.Context,
		Level:       prev.Level,
	}, nil
}

func (ip *incremental) classify(n *model.Node) nodeState {
	fr, before := n.FullRange, ip.edit.Before
	switch {
	case fr == before:
		return stateIs
	case !fr.End.After(before.Start):
		return stateBefore
	case !fr.Start.Before(before.End):
		return stateAfter
	case fr.Contains(before):
		return stateParent
	default:
		return stateOverlap
	}
}

func (ip *incremental) frameFor(n *model.Node) frame {
	return frame{
		node:      n,
		def:       ip.p.catalog.Definition(n),
		obsolete:  n.Obsolete,
		nameSpace: n.NameSpace,
	}
}

// visit walks the children of n. In dry-run mode only the replaced node is
// located and its fragment validated; nothing is mutated.
func (ip *incremental) visit(n *model.Node, stack []frame, dryRun bool) error {
	for i := 0; i < len(n.Children); i++ {
		child := n.Children[i]
		switch ip.classify(child) {
		case stateBefore:
		case stateParent:
			if err := ip.visit(child, append(stack, ip.frameFor(child)), dryRun); err != nil {
				return err
			}
			if !dryRun {
				child.FullRange.End = ip.shift(child.FullRange.End)
			}
		case stateIs:
			ip.replaced = true
			if dryRun {
				replacement, err := ip.reparse(child, stack)
				if err != nil {
					return err
				}
				ip.replacement = replacement
				continue
			}
			replacement := ip.replacement
			later := append([]*model.Node(nil), n.Children[i+1:]...)
			n.Children = n.Children[:i]
			ip.translateFragment(replacement)
			n.AppendChild(replacement)
			n.Children = append(n.Children, later...)
		case stateAfter:
			if !dryRun {
				ip.translateAfter(child)
			}
		default:
			return fmt.Errorf("%w: <%s> at %s overlaps the edit", ErrFallback, child.Tag, child.FullRange)
		}
	}
	return nil
}

// reparse parses the fragment under a scratch copy of the parent frame and
// checks that it yields exactly one node spanning the whole fragment.
func (ip *incremental) reparse(old *model.Node, stack []frame) (*model.Node, error) {
	seeded := make([]frame, len(stack))
	copy(seeded, stack)
	parent := *seeded[len(seeded)-1].node
	parent.Children = nil
	seeded[len(seeded)-1].node = &parent

	st := ip.p.newState(ip.prev.URI, ip.prev.Level, old.FileContext)
	st.stack = seeded
	tok := xmltoken.New(ip.fragment)
	st.run(tok)

	for _, d := range st.diags {
		if d.Code == CodeTokenizer {
			return nil, fmt.Errorf("%w: fragment does not tokenize cleanly: %s", ErrFallback, d.Message)
		}
	}
	if len(parent.Children) != 1 {
		return nil, fmt.Errorf("%w: fragment produced %d nodes", ErrFallback, len(parent.Children))
	}
	node := parent.Children[0]
	want := model.Range{End: tok.Position()}
	if node.FullRange != want {
		return nil, fmt.Errorf("%w: fragment node spans %s, want %s", ErrFallback, node.FullRange, want)
	}
	node.Parent = nil
	ip.fragDiags = st.diags
	return node, nil
}

// shift moves a position at or after the old edit end into new-document
// coordinates: positions on the old end line also move horizontally.
func (ip *incremental) shift(p model.Position) model.Position {
	if p.Line == ip.edit.Before.End.Line {
		p.Character += ip.charDelta
	}
	p.Line += ip.lineDelta
	return p
}

// fromFragment maps a fragment-relative position into the document.
func (ip *incremental) fromFragment(p model.Position) model.Position {
	if p.Line == 0 {
		p.Character += ip.edit.After.Start.Character
	}
	p.Line += ip.edit.After.Start.Line
	return p
}

func (ip *incremental) translateFragment(n *model.Node) {
	translate(n, ip.fromFragment)
}

func (ip *incremental) translateAfter(n *model.Node) {
	translate(n, ip.shift)
}

func translateRange(r model.Range, fn func(model.Position) model.Position) model.Range {
	return model.Range{Start: fn(r.Start), End: fn(r.End)}
}

func translate(n *model.Node, fn func(model.Position) model.Position) {
	n.Range = translateRange(n.Range, fn)
	n.FullRange = translateRange(n.FullRange, fn)
	for _, attr := range n.Attributes {
		attr.ValueRange = translateRange(attr.ValueRange, fn)
		attr.FullRange = translateRange(attr.FullRange, fn)
	}
	for _, child := range n.Children {
		translate(child, fn)
	}
}

// diagnostics merges the previous diagnostics outside the edit with the
// fragment's, in document order.
func (ip *incremental) diagnostics() []model.Diagnostic {
	var before, after []model.Diagnostic
	for _, d := range ip.prev.Diagnostics {
		switch {
		case d.Range.Start.Before(ip.edit.Before.Start):
			before = append(before, d)
		case !d.Range.Start.Before(ip.edit.Before.End):
			d.Range = translateRange(d.Range, ip.shift)
			after = append(after, d)
		}
	}
	out := before
	for _, d := range ip.fragDiags {
		d.Range = translateRange(d.Range, ip.fromFragment)
		out = append(out, d)
	}
	return append(out, after...)
}
