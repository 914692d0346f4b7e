package xmltoken

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/lexcodex/xmodel/framework/model"
)

// Tokenizer produces tokens from an in-memory document. It is single pass
// and never aborts: malformed markup yields KindError tokens and scanning
// resumes after the offending construct.
type Tokenizer struct {
	src     string
	off     int
	pos     model.Position
	stack   []string
	pending []Token
	done    bool
}

// New returns a tokenizer over text.
func New(text string) *Tokenizer {
	return &Tokenizer{src: text}
}

// Position reports the current scan position.
func (t *Tokenizer) Position() model.Position {
	return t.pos
}

// Depth reports the current tag-stack depth.
func (t *Tokenizer) Depth() int {
	return len(t.stack)
}

// Stack returns a copy of the open tag names, outermost first.
func (t *Tokenizer) Stack() []string {
	return append([]string(nil), t.stack...)
}

// Next returns the next token, or io.EOF once the input is exhausted.
func (t *Tokenizer) Next() (Token, error) {
	for len(t.pending) == 0 {
		if t.done {
			return Token{}, io.EOF
		}
		t.scan()
	}
	tok := t.pending[0]
	t.pending = t.pending[1:]
	return tok, nil
}

// All drains the tokenizer.
func (t *Tokenizer) All() []Token {
	var out []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return out
		}
		out = append(out, tok)
	}
}

func (t *Tokenizer) emit(tok Token) {
	t.pending = append(t.pending, tok)
}

func (t *Tokenizer) errorf(start model.Position, format string, args ...any) {
	t.emit(Token{
		Kind:    KindError,
		Range:   model.Range{Start: start, End: t.pos},
		Depth:   len(t.stack),
		Message: fmt.Sprintf(format, args...),
	})
}

func (t *Tokenizer) advance(n int) {
	end := t.off + n
	if end > len(t.src) {
		end = len(t.src)
	}
	for t.off < end {
		r, size := utf8.DecodeRuneInString(t.src[t.off:])
		t.off += size
		if r == '\n' {
			t.pos.Line++
			t.pos.Character = 0
			continue
		}
		if utf16.IsSurrogate(r) || r > 0xFFFF {
			t.pos.Character += 2
		} else {
			t.pos.Character++
		}
	}
}

func (t *Tokenizer) rest() string {
	return t.src[t.off:]
}

func (t *Tokenizer) scan() {
	idx := strings.IndexByte(t.rest(), '<')
	if idx < 0 {
		t.advance(len(t.rest()))
		t.finish()
		return
	}
	t.advance(idx)
	rest := t.rest()
	start := t.pos
	switch {
	case strings.HasPrefix(rest, "<?"):
		t.scanProcInst(start)
	case strings.HasPrefix(rest, "<!--"):
		t.skipUntil(start, "-->", "comment")
	case strings.HasPrefix(rest, "<![CDATA["):
		t.skipUntil(start, "]]>", "CDATA section")
	case strings.HasPrefix(rest, "<!"):
		t.skipUntil(start, ">", "declaration")
	case strings.HasPrefix(rest, "</"):
		t.scanClose(start)
	default:
		t.scanOpen(start)
	}
}

func (t *Tokenizer) finish() {
	t.done = true
	if len(t.stack) > 0 {
		t.errorf(t.pos, "unexpected end of document: <%s> is not closed", t.stack[len(t.stack)-1])
	}
}

func (t *Tokenizer) skipUntil(start model.Position, terminator, what string) {
	idx := strings.Index(t.rest(), terminator)
	if idx < 0 {
		t.advance(len(t.rest()))
		t.errorf(start, "unterminated %s", what)
		return
	}
	t.advance(idx + len(terminator))
}

func (t *Tokenizer) scanProcInst(start model.Position) {
	t.advance(2)
	name := t.readName()
	body := t.rest()
	idx := strings.Index(body, "?>")
	if idx < 0 {
		t.advance(len(body))
		t.errorf(start, "unterminated processing instruction")
		return
	}
	t.advance(idx + 2)
	if name == "" {
		t.errorf(start, "processing instruction without target")
		return
	}
	t.emit(Token{
		Kind:  KindProcInst,
		Name:  name,
		Body:  strings.TrimSpace(body[:idx]),
		Range: model.Range{Start: start, End: t.pos},
		Depth: len(t.stack),
	})
}

func (t *Tokenizer) scanClose(start model.Position) {
	t.advance(2)
	name := t.readName()
	t.skipSpace()
	if !strings.HasPrefix(t.rest(), ">") {
		t.skipTo('>')
		t.errorf(start, "malformed close tag </%s>", name)
		return
	}
	t.advance(1)
	rng := model.Range{Start: start, End: t.pos}
	match := -1
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i] == name {
			match = i
			break
		}
	}
	if match < 0 {
		t.emit(Token{Kind: KindError, Range: rng, Depth: len(t.stack), Message: fmt.Sprintf("unexpected close tag </%s>", name)})
		return
	}
	if match != len(t.stack)-1 {
		t.emit(Token{Kind: KindError, Range: rng, Depth: len(t.stack), Message: fmt.Sprintf("missing close tag for <%s>", t.stack[len(t.stack)-1])})
	}
	t.stack = t.stack[:match]
	t.emit(Token{Kind: KindClose, Name: name, Range: rng, Depth: len(t.stack)})
}

func (t *Tokenizer) scanOpen(start model.Position) {
	t.advance(1)
	name := t.readName()
	if name == "" {
		t.errorf(start, "invalid tag start")
		return
	}
	tok := Token{Kind: KindOpen, Name: name}
	seen := make(map[string]bool)
	for {
		t.skipSpace()
		rest := t.rest()
		switch {
		case rest == "":
			t.errorf(start, "unterminated tag <%s>", name)
			return
		case strings.HasPrefix(rest, "/>"):
			t.advance(2)
			tok.SelfClosing = true
			t.pushOpen(tok, start)
			return
		case strings.HasPrefix(rest, ">"):
			t.advance(1)
			t.pushOpen(tok, start)
			return
		}
		attr, ok := t.readAttr()
		if !ok {
			t.skipTo('>')
			t.errorf(start, "malformed attribute in <%s>", name)
			if strings.HasSuffix(t.src[:t.off], "/>") {
				tok.SelfClosing = true
			}
			t.pushOpen(tok, start)
			return
		}
		if seen[attr.Name] {
			t.emit(Token{Kind: KindError, Range: attr.FullRange, Depth: len(t.stack), Message: fmt.Sprintf("duplicate attribute %q", attr.Name)})
			continue
		}
		seen[attr.Name] = true
		tok.Attrs = append(tok.Attrs, attr)
	}
}

func (t *Tokenizer) pushOpen(tok Token, start model.Position) {
	tok.Range = model.Range{Start: start, End: t.pos}
	t.stack = append(t.stack, tok.Name)
	tok.Depth = len(t.stack)
	t.emit(tok)
	if tok.SelfClosing {
		t.stack = t.stack[:len(t.stack)-1]
		t.emit(Token{Kind: KindClose, Name: tok.Name, Range: tok.Range, Depth: len(t.stack), SelfClosing: true})
	}
}

func (t *Tokenizer) readAttr() (Attr, bool) {
	start := t.pos
	name := t.readName()
	if name == "" {
		return Attr{}, false
	}
	t.skipSpace()
	if !strings.HasPrefix(t.rest(), "=") {
		return Attr{}, false
	}
	t.advance(1)
	t.skipSpace()
	rest := t.rest()
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return Attr{}, false
	}
	quote := rest[0]
	t.advance(1)
	valueStart := t.pos
	idx := strings.IndexByte(t.rest(), quote)
	if idx < 0 {
		return Attr{}, false
	}
	raw := t.rest()[:idx]
	if strings.ContainsRune(raw, '<') {
		return Attr{}, false
	}
	t.advance(idx)
	valueEnd := t.pos
	t.advance(1)
	return Attr{
		Name:       name,
		Value:      unescape(raw),
		ValueRange: model.Range{Start: valueStart, End: valueEnd},
		FullRange:  model.Range{Start: start, End: t.pos},
	}, true
}

func (t *Tokenizer) readName() string {
	rest := t.rest()
	n := 0
	for n < len(rest) && isNameByte(rest[n]) {
		n++
	}
	name := rest[:n]
	t.advance(n)
	return name
}

func (t *Tokenizer) skipSpace() {
	rest := t.rest()
	n := 0
	for n < len(rest) && isSpace(rest[n]) {
		n++
	}
	t.advance(n)
}

func (t *Tokenizer) skipTo(b byte) {
	idx := strings.IndexByte(t.rest(), b)
	if idx < 0 {
		t.advance(len(t.rest()))
		return
	}
	t.advance(idx + 1)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' || b == '.' || b == ':' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9') ||
		b >= 0x80
}

var entities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

func unescape(raw string) string {
	if !strings.ContainsRune(raw, '&') {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '&' {
			b.WriteByte(raw[i])
			continue
		}
		end := strings.IndexByte(raw[i:], ';')
		if end < 0 {
			b.WriteString(raw[i:])
			break
		}
		ref := raw[i+1 : i+end]
		if v, ok := entities[ref]; ok {
			b.WriteString(v)
		} else if r, ok := charRef(ref); ok {
			b.WriteRune(r)
		} else {
			b.WriteString(raw[i : i+end+1])
		}
		i += end
	}
	return b.String()
}

func charRef(ref string) (rune, bool) {
	if !strings.HasPrefix(ref, "#") {
		return 0, false
	}
	base := 10
	digits := ref[1:]
	if strings.HasPrefix(digits, "x") || strings.HasPrefix(digits, "X") {
		base = 16
		digits = digits[1:]
	}
	v, err := strconv.ParseInt(digits, base, 32)
	if err != nil || !utf8.ValidRune(rune(v)) {
		return 0, false
	}
	return rune(v), true
}
