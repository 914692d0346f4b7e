// Package index maintains the per-file declaration/reference sets and the
// workspace-wide name tables, and answers resolution queries over them.
package index

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/lexcodex/xmodel/framework/model"
)

type fileEntry struct {
	tree  *model.Node
	decls []*model.Node
	refs  []*model.Attribute
	// owners[i] is the node carrying refs[i].
	owners []*model.Node
}

// Index is the symbol and reference index of one session. All mutation goes
// through Update and Clear; readers see either the previous or the new
// state of a file, never a partial one.
type Index struct {
	mu     sync.RWMutex
	store  Store
	files  map[string]*fileEntry
	logger *log.Logger
}

// New builds an index over store. A nil store selects a MemoryStore and a
// nil logger discards output.
func New(store Store, logger *log.Logger) *Index {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Index{store: store, files: make(map[string]*fileEntry), logger: logger}
}

// Close releases the store.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Key returns the lookup key of name for declarations of type t. Action
// names are matched case-insensitively.
func Key(t model.ElementType, name string) string {
	if t == model.TypeAction {
		return strings.ToLower(name)
	}
	return name
}

// Update replaces every entry of uri with those found in tree.
func (ix *Index) Update(uri string, tree *model.Node) error {
	fe := &fileEntry{tree: tree}
	var decls, refs []Entry
	tree.Walk(func(n *model.Node) bool {
		if n.IsSymbol && n.Type.IsStandalone() && n.Name != "" {
			decls = append(decls, entry(uri, len(fe.decls), n.Name, n.Type))
			fe.decls = append(fe.decls, n)
		}
		for _, attr := range n.References() {
			ordinal := len(fe.refs)
			indexed := false
			for _, t := range attr.Targets {
				if !t.IsStandalone() || attr.Value == "" {
					continue
				}
				for _, name := range candidateNames(attr) {
					refs = append(refs, entry(uri, ordinal, name, t))
				}
				indexed = true
			}
			if indexed {
				fe.refs = append(fe.refs, attr)
				fe.owners = append(fe.owners, n)
			}
		}
		return true
	})

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.ReplaceFile(uri, decls, refs); err != nil {
		return fmt.Errorf("index %s: %w", uri, err)
	}
	ix.files[uri] = fe
	return nil
}

// Clear drops every entry of uri.
func (ix *Index) Clear(uri string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.DeleteFile(uri); err != nil {
		return fmt.Errorf("clear %s: %w", uri, err)
	}
	delete(ix.files, uri)
	return nil
}

func entry(uri string, ordinal int, name string, t model.ElementType) Entry {
	return Entry{
		URI:     uri,
		Ordinal: ordinal,
		Name:    name,
		Key:     Key(t, name),
		Fold:    strings.ToLower(name),
		Type:    t,
	}
}

// candidateNames lists the names a reference may resolve to, in priority
// order: the literal value, then the value qualified with the namespace the
// reference was written in.
func candidateNames(attr *model.Attribute) []string {
	names := []string{attr.Value}
	if q := model.QualifyName(attr.NameSpace, attr.Value); q != attr.Value {
		names = append(names, q)
	}
	return names
}

// Tree returns the indexed tree of uri, or nil.
func (ix *Index) Tree(uri string) *model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if fe := ix.files[uri]; fe != nil {
		return fe.tree
	}
	return nil
}

// URIs lists the indexed files, sorted.
func (ix *Index) URIs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.files))
	for uri := range ix.files {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Declarations returns the standalone declarations of uri in document
// order.
func (ix *Index) Declarations(uri string) []*model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if fe := ix.files[uri]; fe != nil {
		return append([]*model.Node(nil), fe.decls...)
	}
	return nil
}

// declNodes maps store rows back to tree nodes. Callers hold mu.
func (ix *Index) declNodes(rows []Entry) []*model.Node {
	var out []*model.Node
	seen := make(map[*model.Node]bool)
	for _, row := range rows {
		fe := ix.files[row.URI]
		if fe == nil || row.Ordinal >= len(fe.decls) {
			continue
		}
		n := fe.decls[row.Ordinal]
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func (ix *Index) refAttrs(rows []Entry) []*model.Attribute {
	var out []*model.Attribute
	seen := make(map[*model.Attribute]bool)
	for _, row := range rows {
		fe := ix.files[row.URI]
		if fe == nil || row.Ordinal >= len(fe.refs) {
			continue
		}
		attr := fe.refs[row.Ordinal]
		if !seen[attr] {
			seen[attr] = true
			out = append(out, attr)
		}
	}
	return out
}

func (ix *Index) queryDecls(q Query) []*model.Node {
	rows, err := ix.store.Declarations(q)
	if err != nil {
		ix.logger.Printf("index: declarations query %+v: %v", q, err)
		return nil
	}
	return ix.declNodes(rows)
}

func (ix *Index) queryRefs(q Query) []*model.Attribute {
	rows, err := ix.store.References(q)
	if err != nil {
		ix.logger.Printf("index: references query %+v: %v", q, err)
		return nil
	}
	return ix.refAttrs(rows)
}

// resolve looks value up among declarations of t, trying the literal name
// first and then the nameSpace-qualified one. Callers hold mu.
func (ix *Index) resolve(value, nameSpace string, t model.ElementType, fold bool) []*model.Node {
	if value == "" || !t.IsStandalone() {
		return nil
	}
	for _, name := range candidateNames(&model.Attribute{Value: value, NameSpace: nameSpace}) {
		q := Query{Key: Key(t, name), Types: []model.ElementType{t}}
		if fold {
			q = Query{Key: strings.ToLower(name), Fold: true, Types: []model.ElementType{t}}
		}
		if found := ix.queryDecls(q); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (ix *Index) referencedObject(ref *model.Attribute, fold bool) []*model.Node {
	if !ref.IsReference() {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []*model.Node
	for _, t := range ref.Targets {
		out = append(out, ix.resolve(ref.Value, ref.NameSpace, t, fold)...)
	}
	return out
}

// ReferencedObject returns the declarations ref resolves to, ordered by URI
// then document order. Matching is case-sensitive except for Action targets.
// The first entry is the resolution; any further entries are duplicate
// declarations of the same name, which the checks report as DC0007.
func (ix *Index) ReferencedObject(ref *model.Attribute) []*model.Node {
	return ix.referencedObject(ref, false)
}

// ReferencedObjectFold resolves ref ignoring letter case.
func (ix *Index) ReferencedObjectFold(ref *model.Attribute) []*model.Node {
	return ix.referencedObject(ref, true)
}

// Resolve looks up the declarations of type t named value as written in
// nameSpace, whether or not the naming attribute was typed as a Reference.
func (ix *Index) Resolve(value, nameSpace string, t model.ElementType) []*model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.resolve(value, nameSpace, t, false)
}

// ReferencesForSymbol returns every indexed reference naming sym.
func (ix *Index) ReferencesForSymbol(sym *model.Node) []*model.Attribute {
	if sym == nil || sym.Name == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []*model.Attribute
	for _, attr := range ix.queryRefs(Query{Key: Key(sym.Type, sym.Name), Types: []model.ElementType{sym.Type}}) {
		// A qualified candidate may match while the literal name resolves
		// elsewhere first.
		for _, target := range ix.resolve(attr.Value, attr.NameSpace, sym.Type, false) {
			if target == sym {
				out = append(out, attr)
				break
			}
		}
	}
	return out
}

// ReferenceOwner returns the node carrying an indexed reference attribute.
func (ix *Index) ReferenceOwner(ref *model.Attribute) *model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fe := ix.files[ref.URI]
	if fe == nil {
		return nil
	}
	for i, attr := range fe.refs {
		if attr == ref {
			return fe.owners[i]
		}
	}
	return nil
}

// DeclarationsNamed returns every declaration of t with exactly name.
func (ix *Index) DeclarationsNamed(t model.ElementType, name string) []*model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.queryDecls(Query{Key: Key(t, name), Types: []model.ElementType{t}})
}

// FindSymbolsMatchingWord searches declarations by name. With exact the
// name must match under the per-type case policy; otherwise word is a
// case-insensitive prefix. No types means every standalone type.
func (ix *Index) FindSymbolsMatchingWord(word string, exact bool, types ...model.ElementType) []*model.Node {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !exact {
		return ix.queryDecls(Query{Key: strings.ToLower(word), Fold: true, Prefix: true, Types: types})
	}
	if len(types) == 0 {
		types = model.StandaloneTypes()
	}
	var out []*model.Node
	for _, t := range types {
		out = append(out, ix.queryDecls(Query{Key: Key(t, word), Types: []model.ElementType{t}})...)
	}
	return out
}

// FindReferencesMatchingWord searches references by name, like
// FindSymbolsMatchingWord.
func (ix *Index) FindReferencesMatchingWord(word string, exact bool, types ...model.ElementType) []*model.Attribute {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !exact {
		return ix.queryRefs(Query{Key: strings.ToLower(word), Fold: true, Prefix: true, Types: types})
	}
	if len(types) == 0 {
		types = model.StandaloneTypes()
	}
	var out []*model.Attribute
	seen := make(map[*model.Attribute]bool)
	for _, t := range types {
		for _, attr := range ix.queryRefs(Query{Key: Key(t, word), Types: []model.ElementType{t}}) {
			if !seen[attr] {
				seen[attr] = true
				out = append(out, attr)
			}
		}
	}
	return out
}
