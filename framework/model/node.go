package model

import "strings"

// Attribute is a parsed XML attribute. An attribute with Targets set is a
// Reference: its value names a declaration of one of the target types.
type Attribute struct {
	Name       string        `json:"name"`
	Value      string        `json:"value"`
	ValueRange Range         `json:"value_range"`
	FullRange  Range         `json:"full_range"`
	Targets    []ElementType `json:"targets,omitempty"`
	URI        string        `json:"uri,omitempty"`
	// NameSpace is the namespace active where the attribute was written;
	// references fall back to a name qualified with it.
	NameSpace string `json:"name_space,omitempty"`
	// Known is false for attributes the schema does not describe.
	Known bool `json:"known"`
}

// IsReference reports whether the attribute resolves to a declaration.
func (a *Attribute) IsReference() bool {
	return a != nil && len(a.Targets) > 0
}

// HasTarget reports whether t is among the reference target types.
func (a *Attribute) HasTarget(t ElementType) bool {
	for _, target := range a.Targets {
		if target == t {
			return true
		}
	}
	return false
}

// Node is the universal tree node. Nodes are created by the parser and only
// mutated in place by the incremental parser.
type Node struct {
	Tag         string       `json:"tag"`
	Type        ElementType  `json:"type"`
	SubType     SubType      `json:"sub_type,omitempty"`
	Range       Range        `json:"range"`
	FullRange   Range        `json:"full_range"`
	URI         string       `json:"uri"`
	FileContext FileContext  `json:"file_context"`
	Attributes  []*Attribute `json:"attributes,omitempty"`
	Children    []*Node      `json:"children,omitempty"`
	Parent      *Node        `json:"-"`

	// Name is the identity key of a symbol declaration, namespace-prefixed
	// when declared inside a module.
	Name     string `json:"name,omitempty"`
	IsSymbol bool   `json:"is_symbol"`

	Obsolete  bool   `json:"obsolete"`
	NameSpace string `json:"name_space,omitempty"`
}

// Attr returns the attribute with the given name, or nil.
func (n *Node) Attr(name string) *Attribute {
	if n == nil {
		return nil
	}
	for _, attr := range n.Attributes {
		if attr.Name == name {
			return attr
		}
	}
	return nil
}

// AttrValue returns the value of the named attribute and whether it exists.
func (n *Node) AttrValue(name string) (string, bool) {
	attr := n.Attr(name)
	if attr == nil {
		return "", false
	}
	return attr.Value, true
}

// Value returns the named attribute value or "".
func (n *Node) Value(name string) string {
	v, _ := n.AttrValue(name)
	return v
}

// References returns the reference attributes of n in document order.
func (n *Node) References() []*Attribute {
	var refs []*Attribute
	for _, attr := range n.Attributes {
		if attr.IsReference() {
			refs = append(refs, attr)
		}
	}
	return refs
}

// AppendChild attaches child as the last child of n.
func (n *Node) AppendChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// ChildrenOfType returns the direct physical children of the given types.
func (n *Node) ChildrenOfType(types ...ElementType) []*Node {
	var out []*Node
	for _, child := range n.Children {
		for _, t := range types {
			if child.Type == t {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// Ancestor returns the nearest ancestor of type t, or nil.
func (n *Node) Ancestor(t ElementType) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == t {
			return p
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the subtree of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Path renders the tag chain from the document root, for messages and logs.
func (n *Node) Path() string {
	var parts []string
	for p := n; p != nil && p.Type != TypeDocument; p = p.Parent {
		parts = append(parts, p.Tag)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// DisplayName is the name shown to users: the symbol name, or the tag.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	if v := n.Value("name"); v != "" {
		return v
	}
	return n.Tag
}

// QualifyName prefixes name with a namespace using the "ns.name" form.
func QualifyName(nameSpace, name string) string {
	if nameSpace == "" || name == "" || strings.HasPrefix(name, nameSpace+".") {
		return name
	}
	return nameSpace + "." + name
}
