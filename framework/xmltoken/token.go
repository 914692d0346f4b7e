// Package xmltoken is a small pull-style XML tokenizer that reports open
// tags, close tags, processing instructions and recoverable errors with
// LSP-compatible positions, including per-attribute value ranges.
package xmltoken

import "github.com/lexcodex/xmodel/framework/model"

// Kind identifies the syntactic kind of a token.
type Kind uint8

const (
	KindNone Kind = iota
	KindProcInst
	KindOpen
	KindClose
	KindError
)

// String returns a stable name for the kind, suitable for debugging.
func (k Kind) String() string {
	switch k {
	case KindProcInst:
		return "ProcInst"
	case KindOpen:
		return "Open"
	case KindClose:
		return "Close"
	case KindError:
		return "Error"
	default:
		return "None"
	}
}

// Attr is an attribute of an open tag. Value has entities expanded;
// ValueRange covers the raw text between the quotes.
type Attr struct {
	Name       string
	Value      string
	ValueRange model.Range
	FullRange  model.Range
}

// Token is a single event of the stream.
type Token struct {
	Kind Kind
	// Name is the tag name, or the processing instruction target.
	Name string
	// Body is the processing instruction content.
	Body  string
	Attrs []Attr
	// Range covers the markup of the token. For the close token of a
	// self-closing tag it equals the open tag range.
	Range model.Range
	// Depth is the tag-stack depth after the token was applied.
	Depth       int
	SelfClosing bool
	Message     string
}
