package catalog

// AttrSource yields attribute values; *model.Node satisfies it.
type AttrSource interface {
	AttrValue(name string) (string, bool)
}

// Attrs is a plain attribute map usable as an AttrSource.
type Attrs map[string]string

// AttrValue implements AttrSource.
func (a Attrs) AttrValue(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Condition is a predicate over sibling attribute values, used for
// conditional requiredness and visibility.
type Condition interface {
	Eval(attrs AttrSource) bool
}

// Equals holds when Attr is present with Value.
type Equals struct {
	Attr  string
	Value string
}

// Eval implements Condition.
func (c Equals) Eval(attrs AttrSource) bool {
	v, ok := attrs.AttrValue(c.Attr)
	return ok && v == c.Value
}

// NotEquals holds when Attr is absent or differs from Value.
type NotEquals struct {
	Attr  string
	Value string
}

// Eval implements Condition.
func (c NotEquals) Eval(attrs AttrSource) bool {
	v, ok := attrs.AttrValue(c.Attr)
	return !ok || v != c.Value
}

// And holds when every operand holds.
type And []Condition

// Eval implements Condition.
func (c And) Eval(attrs AttrSource) bool {
	for _, cond := range c {
		if !cond.Eval(attrs) {
			return false
		}
	}
	return true
}

// Or holds when any operand holds.
type Or []Condition

// Eval implements Condition.
func (c Or) Eval(attrs AttrSource) bool {
	for _, cond := range c {
		if cond.Eval(attrs) {
			return true
		}
	}
	return false
}
