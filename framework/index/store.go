package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/lexcodex/xmodel/framework/model"
)

// Entry is one row of the workspace name tables: a declaration, or a
// reference to one target type. Ordinal addresses the node or attribute in
// the owning file's per-file slice.
type Entry struct {
	URI     string
	Ordinal int
	Name    string
	// Key is the lookup key: Name, lowercased for Action entries.
	Key string
	// Fold is the fully lowercased name for case-insensitive lookups.
	Fold string
	Type model.ElementType
}

// Query filters name table rows. An empty Types matches every type.
type Query struct {
	Key    string
	Fold   bool
	Prefix bool
	Types  []model.ElementType
}

func (q Query) matches(e Entry) bool {
	value := e.Key
	if q.Fold {
		value = e.Fold
	}
	if q.Prefix {
		if !strings.HasPrefix(value, q.Key) {
			return false
		}
	} else if value != q.Key {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Store holds the workspace-wide name -> declarations and name ->
// references tables. Implementations return rows ordered by URI then
// ordinal so lookups are deterministic.
type Store interface {
	// ReplaceFile atomically swaps every row of uri.
	ReplaceFile(uri string, decls, refs []Entry) error
	DeleteFile(uri string) error
	Declarations(q Query) ([]Entry, error)
	References(q Query) ([]Entry, error)
	Close() error
}

// MemoryStore keeps each name table bucketed by lookup key and by folded
// name. Buckets stay ordered by URI then ordinal.
type MemoryStore struct {
	mu    sync.RWMutex
	decls *nameTable
	refs  *nameTable
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decls: newNameTable(), refs: newNameTable()}
}

func (s *MemoryStore) ReplaceFile(uri string, decls, refs []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decls.replace(uri, decls)
	s.refs.replace(uri, refs)
	return nil
}

func (s *MemoryStore) DeleteFile(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decls.remove(uri)
	s.refs.remove(uri)
	return nil
}

func (s *MemoryStore) Declarations(q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decls.lookup(q), nil
}

func (s *MemoryStore) References(q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs.lookup(q), nil
}

func (s *MemoryStore) Close() error { return nil }

type nameTable struct {
	byKey  map[string][]Entry
	byFold map[string][]Entry
	// files holds each file's rows in ordinal order, for removal and prefix
	// scans.
	files map[string][]Entry
	uris  []string
}

func newNameTable() *nameTable {
	return &nameTable{
		byKey:  make(map[string][]Entry),
		byFold: make(map[string][]Entry),
		files:  make(map[string][]Entry),
	}
}

func (t *nameTable) replace(uri string, entries []Entry) {
	t.remove(uri)
	if len(entries) == 0 {
		return
	}
	rows := append([]Entry(nil), entries...)
	t.files[uri] = rows
	i := sort.SearchStrings(t.uris, uri)
	t.uris = append(t.uris, "")
	copy(t.uris[i+1:], t.uris[i:])
	t.uris[i] = uri
	insertRows(t.byKey, uri, rows, func(e Entry) string { return e.Key })
	insertRows(t.byFold, uri, rows, func(e Entry) string { return e.Fold })
}

func (t *nameTable) remove(uri string) {
	rows, ok := t.files[uri]
	if !ok {
		return
	}
	delete(t.files, uri)
	if i := sort.SearchStrings(t.uris, uri); i < len(t.uris) && t.uris[i] == uri {
		t.uris = append(t.uris[:i], t.uris[i+1:]...)
	}
	removeRows(t.byKey, uri, rows, func(e Entry) string { return e.Key })
	removeRows(t.byFold, uri, rows, func(e Entry) string { return e.Fold })
}

// insertRows splices the rows of uri into their buckets after every row of
// a smaller URI.
func insertRows(buckets map[string][]Entry, uri string, rows []Entry, key func(Entry) string) {
	grouped := make(map[string][]Entry)
	var order []string
	for _, e := range rows {
		k := key(e)
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], e)
	}
	for _, k := range order {
		bucket := buckets[k]
		at := sort.Search(len(bucket), func(i int) bool { return bucket[i].URI > uri })
		merged := make([]Entry, 0, len(bucket)+len(grouped[k]))
		merged = append(merged, bucket[:at]...)
		merged = append(merged, grouped[k]...)
		merged = append(merged, bucket[at:]...)
		buckets[k] = merged
	}
}

func removeRows(buckets map[string][]Entry, uri string, rows []Entry, key func(Entry) string) {
	done := make(map[string]bool)
	for _, e := range rows {
		k := key(e)
		if done[k] {
			continue
		}
		done[k] = true
		bucket := buckets[k]
		kept := bucket[:0:0]
		for _, b := range bucket {
			if b.URI != uri {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(buckets, k)
		} else {
			buckets[k] = kept
		}
	}
}

// lookup answers exact queries from one bucket; prefix queries scan the
// files in URI order.
func (t *nameTable) lookup(q Query) []Entry {
	var out []Entry
	if !q.Prefix {
		bucket := t.byKey[q.Key]
		if q.Fold {
			bucket = t.byFold[q.Key]
		}
		for _, e := range bucket {
			if q.matches(e) {
				out = append(out, e)
			}
		}
		return out
	}
	for _, uri := range t.uris {
		for _, e := range t.files[uri] {
			if q.matches(e) {
				out = append(out, e)
			}
		}
	}
	return out
}
