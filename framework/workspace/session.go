// Package workspace ties parsing, indexing and checking together for a set
// of model files: the documents an editor has open plus the files found on
// disk under a workspace root.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/check"
	"github.com/lexcodex/xmodel/framework/index"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/parser"
)

var (
	// ErrDocumentNotOpen is returned for edits to documents that were never
	// opened.
	ErrDocumentNotOpen = errors.New("document not open")
	// ErrDiagnosticCap is returned by CheckAll when the workspace produced
	// more diagnostics than Config.MaxDiagnostics.
	ErrDiagnosticCap = errors.New("diagnostic limit reached")
)

// Config controls discovery and checking.
type Config struct {
	Extensions []string
	// Ignore holds gitignore-style patterns applied on top of .gitignore.
	Ignore []string
	Level  model.DetailLevel
	// MaxDiagnostics caps CheckAll; 0 means unlimited.
	MaxDiagnostics    int
	Disabled          []string
	SeverityOverrides map[string]model.Severity
}

// DefaultConfig checks every .xml file at full detail.
func DefaultConfig() Config {
	return Config{
		Extensions: []string{".xml"},
		Level:      model.DetailAll,
	}
}

type document struct {
	text   string
	result *parser.Result
	// open is set while an editor owns the text.
	open bool
}

// Session owns the parsed documents of one workspace. It is safe for
// concurrent use.
type Session struct {
	mu      sync.RWMutex
	cfg     Config
	catalog *catalog.Catalog
	parser  *parser.Parser
	index   *index.Index
	engine  *check.Engine
	docs    map[string]*document
	logger  *log.Logger
}

// NewSession builds a session over store using the built-in catalog. A nil
// store selects an in-memory index and a nil logger discards output.
func NewSession(cfg Config, store index.Store, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultConfig().Extensions
	}
	cat := catalog.Default()
	ix := index.New(store, logger)
	return &Session{
		cfg:     cfg,
		catalog: cat,
		parser:  parser.New(cat, logger),
		index:   ix,
		engine: check.Default(cat, ix, logger,
			check.WithDisabled(cfg.Disabled...),
			check.WithSeverityOverrides(cfg.SeverityOverrides)),
		docs:   make(map[string]*document),
		logger: logger,
	}
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// Catalog returns the definition catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Index returns the symbol index.
func (s *Session) Index() *index.Index { return s.index }

// Engine returns the check engine.
func (s *Session) Engine() *check.Engine { return s.engine }

// Open registers text as the editor-owned content of uri.
func (s *Session) Open(uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(uri, text, s.parser.Parse(uri, text, s.cfg.Level), true)
}

// Replace swaps the whole text of an open document.
func (s *Session) Replace(uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc := s.docs[uri]; doc == nil || !doc.open {
		return fmt.Errorf("replace %s: %w", uri, ErrDocumentNotOpen)
	}
	return s.store(uri, text, s.parser.Parse(uri, text, s.cfg.Level), true)
}

// Change applies edits to an open document in order, patching the
// previous tree where possible.
func (s *Session) Change(uri string, changes []parser.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[uri]
	if doc == nil || !doc.open {
		return fmt.Errorf("change %s: %w", uri, ErrDocumentNotOpen)
	}
	res, text := doc.result, doc.text
	for _, ch := range changes {
		res, text = s.parser.Update(res, text, ch, s.cfg.Level)
	}
	return s.store(uri, text, res, true)
}

// Close releases editor ownership of uri. A file still present on disk is
// reloaded from there; otherwise the document leaves the index.
func (s *Session) Close(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[uri]; !ok {
		return fmt.Errorf("close %s: %w", uri, ErrDocumentNotOpen)
	}
	data, err := os.ReadFile(model.URIToPath(uri))
	if err != nil {
		delete(s.docs, uri)
		return s.index.Clear(uri)
	}
	text := string(data)
	return s.store(uri, text, s.parser.Parse(uri, text, s.cfg.Level), false)
}

// store records a parse result and reindexes it. Callers hold mu.
func (s *Session) store(uri, text string, res *parser.Result, open bool) error {
	s.docs[uri] = &document{text: text, result: res, open: open}
	if err := s.index.Update(uri, res.Root); err != nil {
		return fmt.Errorf("index %s: %w", uri, err)
	}
	return nil
}

// IsOpen reports whether an editor owns uri.
func (s *Session) IsOpen(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.docs[uri]
	return doc != nil && doc.open
}

// Text returns the current content of uri.
func (s *Session) Text(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.docs[uri]
	if doc == nil {
		return "", false
	}
	return doc.text, true
}

// Result returns the latest parse result of uri.
func (s *Session) Result(uri string) *parser.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc := s.docs[uri]; doc != nil {
		return doc.result
	}
	return nil
}

// Documents lists every known document, sorted.
func (s *Session) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents(false)
}

// OpenDocuments lists the editor-owned documents, sorted.
func (s *Session) OpenDocuments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents(true)
}

func (s *Session) documents(openOnly bool) []string {
	uris := make([]string, 0, len(s.docs))
	for uri, doc := range s.docs {
		if !openOnly || doc.open {
			uris = append(uris, uri)
		}
	}
	sort.Strings(uris)
	return uris
}

// Diagnostics returns the parse and check diagnostics of uri.
func (s *Session) Diagnostics(uri string) []model.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diagnostics(uri)
}

func (s *Session) diagnostics(uri string) []model.Diagnostic {
	doc := s.docs[uri]
	if doc == nil {
		return nil
	}
	diags := s.engine.Filter(doc.result.Diagnostics)
	return append(diags, s.engine.Run(uri, s.cfg.Level)...)
}

// Load parses and indexes every model file under root. Documents already
// open keep their editor text. It returns the number of files loaded.
func (s *Session) Load(ctx context.Context, root string) (int, error) {
	files, err := Discover(root, s.cfg.Extensions, s.cfg.Ignore)
	if err != nil {
		return 0, fmt.Errorf("discover %s: %w", root, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		uri := model.PathToURI(path)
		if doc := s.docs[uri]; doc != nil && doc.open {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Printf("workspace: skipping %s: %v", path, err)
			continue
		}
		text := string(data)
		if err := s.store(uri, text, s.parser.Parse(uri, text, s.cfg.Level), false); err != nil {
			return loaded, err
		}
		loaded++
	}
	s.logger.Printf("workspace: loaded %d of %d files under %s", loaded, len(files), root)
	return loaded, nil
}

// CheckAll checks every known document in URI order. When the total
// exceeds Config.MaxDiagnostics the result is truncated to the cap and
// ErrDiagnosticCap is returned with it.
func (s *Session) CheckAll(ctx context.Context) ([]model.Diagnostic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.Diagnostic
	for _, uri := range s.documents(false) {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		all = append(all, s.diagnostics(uri)...)
		if limit := s.cfg.MaxDiagnostics; limit > 0 && len(all) > limit {
			return all[:limit], ErrDiagnosticCap
		}
	}
	return all, nil
}

// Shutdown releases the index store.
func (s *Session) Shutdown() error {
	return s.index.Close()
}
