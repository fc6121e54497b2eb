package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/heapscope/heapscope/aggregate"
	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/profile"
	"github.com/heapscope/heapscope/typetab"
)

// WriteText renders a human-readable dump: for every allocation site, the
// type name and counts followed by the indented call stack, innermost
// frame first. GC cycles observed during the session are appended as a
// trailer.
func WriteText(w io.Writer, p *profile.Profile) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "profile %s: %d of %d allocations recorded\n",
		p.ID, p.AllocsRecorded, p.AllocsOffered)

	p.View.Walk(func(path []frame.Frame, allocs []aggregate.TypeStats) {
		for _, ts := range allocs {
			fmt.Fprintf(bw, "\n%s: %d objects, %d bytes\n",
				p.TypeName(ts.TypeID), ts.Stats.Count, ts.Stats.Bytes)
			for i := len(path) - 1; i >= 0; i-- {
				indent := len(path) - 1 - i
				fmt.Fprintf(bw, "  %*s%s\n", 2*indent, "", path[i].Key())
			}
		}
	})

	if len(p.Frees) > 0 {
		fmt.Fprintf(bw, "\nfrees (advisory):\n")
		for id := 0; id < len(p.TypeNames); id++ {
			if count, ok := p.Frees[typetab.TypeID(id)]; ok {
				fmt.Fprintf(bw, "  %s: %d\n", p.TypeNames[id], count)
			}
		}
	}

	for _, c := range p.Cycles {
		fmt.Fprintf(bw, "\nGC: pause %.3fms. collected %.3fMB. %d allocs total. %s%s\n",
			float64(c.Pause.Nanoseconds())/1e6,
			float64(c.BytesFreed)/1e6,
			c.BytesAlloc,
			cycleKind(c.Full),
			recollectSuffix(c.Recollect))
	}

	return bw.Flush()
}

func cycleKind(full bool) string {
	if full {
		return "full"
	}
	return "incr"
}

func recollectSuffix(recollect bool) string {
	if recollect {
		return " recollect"
	}
	return ""
}
