package aggregate

import (
	"sort"

	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/typetab"
)

type (
	// View is a frozen aggregate snapshot. It shares no state with the
	// trie it was merged from and is safe for concurrent reads.
	View struct {
		Root  *Node `json:"root"`
		Total Stats `json:"total"`
	}

	// Node is one call-path position. The root node carries an empty
	// frame; Allocs is non-empty only at nodes where allocations were
	// recorded.
	Node struct {
		Frame    frame.Frame              `json:"frame"`
		Children map[string]*Node         `json:"children,omitempty"`
		Allocs   map[typetab.TypeID]Stats `json:"allocs,omitempty"`
	}
)

// Cumulative sums the counts recorded at this node and everything below
// it.
func (n *Node) Cumulative() Stats {
	var total Stats
	for _, st := range n.Allocs {
		total.Count += st.Count
		total.Bytes += st.Bytes
	}
	for _, child := range n.Children {
		c := child.Cumulative()
		total.Count += c.Count
		total.Bytes += c.Bytes
	}
	return total
}

// SortedChildren returns the node's children in deterministic key order.
func (n *Node) SortedChildren() []*Node {
	keys := make([]string, 0, len(n.Children))
	for key := range n.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	children := make([]*Node, len(keys))
	for i, key := range keys {
		children[i] = n.Children[key]
	}
	return children
}

// SortedAllocs returns the node's per-type stats ordered by TypeID.
func (n *Node) SortedAllocs() []TypeStats {
	out := make([]TypeStats, 0, len(n.Allocs))
	for id, st := range n.Allocs {
		out = append(out, TypeStats{TypeID: id, Stats: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

type TypeStats struct {
	TypeID typetab.TypeID
	Stats  Stats
}

// Walk visits every node holding allocation counts, in deterministic
// order, with the call path from the outermost frame down to the node.
func (v *View) Walk(visit func(path []frame.Frame, allocs []TypeStats)) {
	walk(v.Root, nil, visit)
}

func walk(n *Node, path []frame.Frame, visit func([]frame.Frame, []TypeStats)) {
	if len(n.Allocs) > 0 {
		visit(path, n.SortedAllocs())
	}
	for _, child := range n.SortedChildren() {
		walk(child, append(path, child.Frame), visit)
	}
}
