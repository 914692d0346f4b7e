package index

import "github.com/lexcodex/xmodel/framework/model"

// Indirection returns the declarations an Include, Decoration or Target
// node stands for: the included block, the decorator, or the target view.
// Other nodes yield nil.
func (ix *Index) Indirection(n *model.Node) []*model.Node {
	switch n.Type {
	case model.TypeInclude:
		return ix.Resolve(n.Value("block"), n.NameSpace, model.TypeIncludeBlock)
	case model.TypeDecoration:
		return ix.Resolve(n.Value("name"), n.NameSpace, model.TypeDecorator)
	case model.TypeTarget:
		return ix.Resolve(n.Value("view"), n.NameSpace, model.TypeView)
	}
	return nil
}

// ChildrenOfType returns the logical children of n with one of the given
// types: its direct children plus those reached through Include, Decoration,
// Decorations and Target indirections, recursively. Each declaration is
// entered at most once, so indirection cycles are silently cut.
func (ix *Index) ChildrenOfType(n *model.Node, types ...model.ElementType) []*model.Node {
	if n == nil {
		return nil
	}
	var out []*model.Node
	visited := map[*model.Node]bool{n: true}
	ix.collect(n, types, visited, &out)
	return out
}

func (ix *Index) collect(n *model.Node, types []model.ElementType, visited map[*model.Node]bool, out *[]*model.Node) {
	for _, child := range n.Children {
		if hasType(child.Type, types) {
			*out = append(*out, child)
		}
		if child.Type == model.TypeDecorations {
			ix.collect(child, types, visited, out)
			continue
		}
		for _, target := range ix.Indirection(child) {
			if visited[target] {
				continue
			}
			visited[target] = true
			ix.collect(target, types, visited, out)
		}
	}
}

// IndirectionCycle reports a chain of declarations, starting and ending at
// decl, formed by following indirections from decl's logical children. It
// returns nil when decl is not part of a cycle.
func (ix *Index) IndirectionCycle(decl *model.Node) []*model.Node {
	onPath := map[*model.Node]bool{}
	done := map[*model.Node]bool{}
	var path []*model.Node
	var visit func(n *model.Node) bool
	visit = func(n *model.Node) bool {
		path = append(path, n)
		onPath[n] = true
		for _, target := range ix.indirectTargets(n) {
			if target == decl {
				path = append(path, target)
				return true
			}
			if onPath[target] || done[target] {
				continue
			}
			if visit(target) {
				return true
			}
		}
		onPath[n] = false
		done[n] = true
		path = path[:len(path)-1]
		return false
	}
	if visit(decl) {
		return path
	}
	return nil
}

// indirectTargets lists the declarations referenced by indirection nodes
// directly under n, looking through Decorations groups.
func (ix *Index) indirectTargets(n *model.Node) []*model.Node {
	var out []*model.Node
	for _, child := range n.Children {
		if child.Type == model.TypeDecorations {
			out = append(out, ix.indirectTargets(child)...)
			continue
		}
		out = append(out, ix.Indirection(child)...)
	}
	return out
}

func hasType(t model.ElementType, types []model.ElementType) bool {
	for _, want := range types {
		if want == t || want == model.TypeAll {
			return true
		}
	}
	return false
}
