package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/heapscope/heapscope/aggregate"
	"github.com/heapscope/heapscope/profile"
)

const (
	nativeFillColor  = "lightsteelblue"
	managedFillColor = "wheat"
)

// WriteDOT renders the aggregate as a graph-description document. Each
// trie node becomes one graph node, colored by whether the frame is
// native or managed; edges point from caller to callee and are labeled
// with the cumulative count flowing through the callee.
func WriteDOT(w io.Writer, p *profile.Profile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %q {\n", "allocations")
	fmt.Fprintf(bw, "\trankdir=TB;\n")
	fmt.Fprintf(bw, "\tnode [style=filled, shape=box];\n")

	ids := make(map[*aggregate.Node]int)
	writeDOTNodes(bw, p, p.View.Root, ids)
	writeDOTEdges(bw, p.View.Root, ids)

	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

func writeDOTNodes(w io.Writer, p *profile.Profile, n *aggregate.Node, ids map[*aggregate.Node]int) {
	for _, child := range n.SortedChildren() {
		id := len(ids)
		ids[child] = id

		cum := child.Cumulative()
		label := fmt.Sprintf("%s\\n%d objects / %d bytes", escapeDOT(child.Frame.Key()), cum.Count, cum.Bytes)
		for _, ts := range child.SortedAllocs() {
			label += fmt.Sprintf("\\n%s: %d", escapeDOT(p.TypeName(ts.TypeID)), ts.Stats.Count)
		}
		color := managedFillColor
		if child.Frame.Native {
			color = nativeFillColor
		}
		fmt.Fprintf(w, "\tn%d [label=\"%s\", fillcolor=%s];\n", id, label, color)

		writeDOTNodes(w, p, child, ids)
	}
}

func writeDOTEdges(w io.Writer, n *aggregate.Node, ids map[*aggregate.Node]int) {
	from, hasFrom := ids[n]
	for _, child := range n.SortedChildren() {
		if hasFrom {
			fmt.Fprintf(w, "\tn%d -> n%d [label=\"%d\"];\n", from, ids[child], child.Cumulative().Count)
		}
		writeDOTEdges(w, child, ids)
	}
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", ``,
	"\t", `\t`,
)

func escapeDOT(s string) string {
	return dotEscaper.Replace(s)
}
