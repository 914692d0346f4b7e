// Package check runs independent check units over indexed model trees.
package check

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/lexcodex/xmodel/framework/catalog"
	"github.com/lexcodex/xmodel/framework/index"
	"github.com/lexcodex/xmodel/framework/model"
)

// CodeCheckFault is reported when a check panics on a node.
const CodeCheckFault = "VAL0001"

// Check is one independent check unit.
type Check struct {
	Name string
	// Type selects the nodes the check runs on; model.TypeAll means every
	// node.
	Type  model.ElementType
	Match func(n *model.Node) bool
	// Level is the minimum detail level the check needs.
	Level model.DetailLevel
	Run   func(c *Context, n *model.Node)
}

func (ch Check) applies(n *model.Node, level model.DetailLevel) bool {
	if level < ch.Level {
		return false
	}
	if ch.Type != model.TypeAll && ch.Type != n.Type {
		return false
	}
	return ch.Match == nil || ch.Match(n)
}

// Context is what a check sees while it runs: read-only access to the
// catalog and index plus a diagnostic sink.
type Context struct {
	URI     string
	Level   model.DetailLevel
	Catalog *catalog.Catalog
	Index   *index.Index

	engine *Engine
	diags  []model.Diagnostic
}

// Report records a diagnostic unless its code is disabled. Severity
// overrides are applied here.
func (c *Context) Report(rng model.Range, sev model.Severity, code, format string, args ...any) {
	if c.engine.disabled(code) {
		return
	}
	if override, ok := c.engine.overrides[code]; ok {
		sev = override
	}
	c.diags = append(c.diags, model.Diagnostic{
		URI:      c.URI,
		Range:    rng,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Code:     code,
	})
}

// Engine is a registry of check units.
type Engine struct {
	catalog   *catalog.Catalog
	index     *index.Index
	logger    *log.Logger
	checks    []Check
	disable   []string
	overrides map[string]model.Severity
}

// Option configures an Engine.
type Option func(*Engine)

// WithDisabled suppresses diagnostics whose code equals or starts with one
// of codes.
func WithDisabled(codes ...string) Option {
	return func(e *Engine) {
		e.disable = append(e.disable, codes...)
	}
}

// WithSeverityOverrides replaces the severity of the given codes.
func WithSeverityOverrides(overrides map[string]model.Severity) Option {
	return func(e *Engine) {
		for code, sev := range overrides {
			e.overrides[code] = sev
		}
	}
}

// NewEngine builds an engine with no checks registered.
func NewEngine(cat *catalog.Catalog, ix *index.Index, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		catalog:   cat,
		index:     ix,
		logger:    logger,
		overrides: make(map[string]model.Severity),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Default builds an engine with every built-in check registered.
func Default(cat *catalog.Catalog, ix *index.Index, logger *log.Logger, opts ...Option) *Engine {
	e := NewEngine(cat, ix, logger, opts...)
	e.Register(Builtin()...)
	return e
}

// Builtin returns the built-in check units.
func Builtin() []Check {
	var checks []Check
	checks = append(checks, actionCallChecks()...)
	checks = append(checks, referencedObjectCheck())
	checks = append(checks, declarationChecks()...)
	checks = append(checks, schemaCheck())
	return checks
}

// Register adds check units. Checks run in registration order at every
// node.
func (e *Engine) Register(checks ...Check) {
	e.checks = append(e.checks, checks...)
}

// Checks lists the registered check names.
func (e *Engine) Checks() []string {
	names := make([]string, len(e.checks))
	for i, ch := range e.checks {
		names[i] = ch.Name
	}
	return names
}

func (e *Engine) disabled(code string) bool {
	for _, d := range e.disable {
		if d != "" && strings.HasPrefix(code, d) {
			return true
		}
	}
	return false
}

// Run checks the indexed tree of uri. Subtrees rooted at obsolete nodes
// are skipped.
func (e *Engine) Run(uri string, level model.DetailLevel) []model.Diagnostic {
	tree := e.index.Tree(uri)
	if tree == nil {
		return nil
	}
	c := &Context{URI: uri, Level: level, Catalog: e.catalog, Index: e.index, engine: e}
	tree.Walk(func(n *model.Node) bool {
		if n.Obsolete {
			return false
		}
		for _, ch := range e.checks {
			if ch.applies(n, level) {
				e.runOne(c, ch, n)
			}
		}
		return true
	})
	return c.diags
}

func (e *Engine) runOne(c *Context, ch Check, n *model.Node) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("check %s panicked at %s %s: %v", ch.Name, c.URI, n.Path(), r)
			c.Report(n.Range, model.SeverityError, CodeCheckFault,
				"Validation error in check %s at %s: %v", ch.Name, n.Path(), r)
		}
	}()
	ch.Run(c, n)
}

// Filter applies disabled codes and severity overrides to diagnostics
// produced outside the engine, such as parse diagnostics.
func (e *Engine) Filter(diags []model.Diagnostic) []model.Diagnostic {
	out := make([]model.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if e.disabled(d.Code) {
			continue
		}
		if sev, ok := e.overrides[d.Code]; ok {
			d.Severity = sev
		}
		out = append(out, d)
	}
	return out
}
