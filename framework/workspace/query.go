package workspace

import (
	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/model"
)

// Location is a range inside a document.
type Location struct {
	URI   string
	Range model.Range
}

func declLocation(n *model.Node) Location {
	return Location{URI: n.URI, Range: n.Range}
}

// CompletionKind classifies completion items.
type CompletionKind int

const (
	CompletionElement CompletionKind = iota
	CompletionAttribute
	CompletionValue
	CompletionSymbol
)

// CompletionItem is one proposal offered at a cursor position.
type CompletionItem struct {
	Label  string
	Kind   CompletionKind
	Detail string
}

// Symbol is a declaration in a document outline.
type Symbol struct {
	Node     *model.Node
	Children []Symbol
}

// NodeAt returns the deepest element whose full range contains pos, or nil
// outside every element.
func (s *Session) NodeAt(uri string, pos model.Position) *model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeAt(uri, pos)
}

func (s *Session) nodeAt(uri string, pos model.Position) *model.Node {
	doc := s.docs[uri]
	if doc == nil || doc.result.Root == nil {
		return nil
	}
	return deepestAt(doc.result.Root, pos)
}

func deepestAt(n *model.Node, pos model.Position) *model.Node {
	for _, child := range n.Children {
		if child.FullRange.ContainsPosition(pos) {
			return deepestAt(child, pos)
		}
	}
	if n.Type == model.TypeDocument {
		return nil
	}
	return n
}

// AttributeAt returns the element at pos and the attribute under pos, if
// any.
func (s *Session) AttributeAt(uri string, pos model.Position) (*model.Node, *model.Attribute) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributeAt(uri, pos)
}

func (s *Session) attributeAt(uri string, pos model.Position) (*model.Node, *model.Attribute) {
	n := s.nodeAt(uri, pos)
	if n == nil || !n.Range.ContainsPosition(pos) {
		return n, nil
	}
	for _, attr := range n.Attributes {
		if attr.FullRange.ContainsPosition(pos) {
			return n, attr
		}
	}
	return n, nil
}

// symbolsAt returns the declarations meant at pos: the targets of a
// reference, or the declaration whose start tag holds the cursor.
func (s *Session) symbolsAt(uri string, pos model.Position) []*model.Node {
	n, attr := s.attributeAt(uri, pos)
	if attr.IsReference() {
		return s.index.ReferencedObject(attr)
	}
	if n != nil && n.IsSymbol && n.Range.ContainsPosition(pos) {
		return []*model.Node{n}
	}
	return nil
}

// Definition returns the declarations of the symbol at pos.
func (s *Session) Definition(uri string, pos model.Position) []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var locs []Location
	for _, decl := range s.symbolsAt(uri, pos) {
		locs = append(locs, declLocation(decl))
	}
	return locs
}

// References returns every reference to the symbol at pos, optionally
// preceded by its declarations.
func (s *Session) References(uri string, pos model.Position, includeDeclaration bool) []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var locs []Location
	seen := make(map[Location]bool)
	add := func(loc Location) {
		if !seen[loc] {
			seen[loc] = true
			locs = append(locs, loc)
		}
	}
	for _, decl := range s.symbolsAt(uri, pos) {
		if includeDeclaration {
			add(declLocation(decl))
		}
		for _, ref := range s.index.ReferencesForSymbol(decl) {
			add(Location{URI: ref.URI, Range: ref.ValueRange})
		}
	}
	return locs
}

// Completion proposes symbol names inside reference values, enum values
// inside other values, missing attributes inside a start tag and allowed
// child tags elsewhere.
func (s *Session) Completion(uri string, pos model.Position) []CompletionItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.docs[uri]
	if doc == nil {
		return nil
	}
	n, attr := s.attributeAt(uri, pos)
	if n == nil {
		return nil
	}
	def := s.catalog.Definition(n)
	switch {
	case attr != nil && attr.ValueRange.ContainsPosition(pos):
		if attr.IsReference() {
			prefix := model.Slice(doc.text, model.Range{Start: attr.ValueRange.Start, End: pos})
			return s.symbolCompletions(prefix, attr.Targets)
		}
		return valueCompletions(def.Attribute(attr.Name))
	case n.Range.ContainsPosition(pos):
		return attributeCompletions(def, n)
	default:
		return childCompletions(def, n)
	}
}

func (s *Session) symbolCompletions(prefix string, targets []model.ElementType) []CompletionItem {
	var items []CompletionItem
	seen := make(map[string]bool)
	for _, decl := range s.index.FindSymbolsMatchingWord(prefix, false, targets...) {
		if seen[decl.Name] {
			continue
		}
		seen[decl.Name] = true
		items = append(items, CompletionItem{Label: decl.Name, Kind: CompletionSymbol, Detail: decl.Type.DisplayName()})
	}
	return items
}

func valueCompletions(ad *catalog.AttributeDef) []CompletionItem {
	if ad == nil {
		return nil
	}
	items := make([]CompletionItem, 0, len(ad.Enum))
	for _, v := range ad.Enum {
		items = append(items, CompletionItem{Label: v, Kind: CompletionValue})
	}
	return items
}

func attributeCompletions(def *catalog.Definition, n *model.Node) []CompletionItem {
	if def == nil {
		return nil
	}
	var items []CompletionItem
	for i := range def.Attributes {
		ad := &def.Attributes[i]
		if n.Attr(ad.Name) != nil || !ad.IsVisible(n) {
			continue
		}
		item := CompletionItem{Label: ad.Name, Kind: CompletionAttribute}
		if ad.IsRequired(n) {
			item.Detail = "required"
		}
		items = append(items, item)
	}
	return items
}

func childCompletions(def *catalog.Definition, n *model.Node) []CompletionItem {
	if def == nil {
		return nil
	}
	present := make(map[string]int)
	for _, child := range n.Children {
		present[child.Tag]++
	}
	var items []CompletionItem
	for _, cd := range def.Children {
		if (cd.Occurs == catalog.OccursOnce || cd.Occurs == catalog.OccursRequiredOnce) && present[cd.Tag] > 0 {
			continue
		}
		items = append(items, CompletionItem{Label: cd.Tag, Kind: CompletionElement, Detail: cd.Occurs.String()})
	}
	return items
}

// Outline returns the declarations of uri nested by containment.
func (s *Session) Outline(uri string) []Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.docs[uri]
	if doc == nil || doc.result.Root == nil {
		return nil
	}
	return outline(doc.result.Root)
}

func outline(n *model.Node) []Symbol {
	var out []Symbol
	for _, child := range n.Children {
		if child.IsSymbol {
			out = append(out, Symbol{Node: child, Children: outline(child)})
			continue
		}
		out = append(out, outline(child)...)
	}
	return out
}

// WorkspaceSymbols returns the declarations whose name starts with query,
// ignoring case.
func (s *Session) WorkspaceSymbols(query string) []*model.Node {
	return s.index.FindSymbolsMatchingWord(query, false)
}
