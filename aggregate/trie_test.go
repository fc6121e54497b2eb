package aggregate

import (
	"sync"
	"testing"

	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/internal/testutil"
	"github.com/heapscope/heapscope/typetab"
)

var (
	frameF = frame.Frame{Function: "f", File: "prog.jl", Line: 10}
	frameG = frame.Frame{Function: "g", File: "prog.jl", Line: 20}
	frameH = frame.Frame{Function: "h", File: "prog.jl", Line: 30}
)

// stack helpers are innermost-first, like capture output.
func stackGF() []frame.Frame { return []frame.Frame{frameG, frameF} }
func stackHF() []frame.Frame { return []frame.Frame{frameH, frameF} }

func TestRecordSharedPath(t *testing.T) {
	trie := NewTrie()
	trie.Record(stackGF(), 0, 16)
	trie.Record(stackGF(), 1, 32)
	trie.Record(stackGF(), 1, 32)

	v := trie.Freeze()

	fNode, ok := v.Root.Children[frameF.Key()]
	if !ok {
		t.Fatalf("missing outer node %q", frameF.Key())
	}
	gNode, ok := fNode.Children[frameG.Key()]
	if !ok {
		t.Fatalf("missing terminal node %q", frameG.Key())
	}

	// Identical call paths must accumulate in one node, never two.
	if len(v.Root.Children) != 1 || len(fNode.Children) != 1 {
		t.Fatalf("duplicate nodes for equal paths: root=%d f=%d",
			len(v.Root.Children), len(fNode.Children))
	}

	want := map[typetab.TypeID]Stats{
		0: {Count: 1, Bytes: 16},
		1: {Count: 2, Bytes: 64},
	}
	if diff := testutil.Diff(want, gNode.Allocs); diff != "" {
		t.Fatalf("allocs mismatch: %s", diff)
	}
}

func TestRecordDivergingPaths(t *testing.T) {
	trie := NewTrie()
	trie.Record(stackGF(), 0, 8)
	trie.Record(stackHF(), 0, 8)

	v := trie.Freeze()
	fNode := v.Root.Children[frameF.Key()]
	if fNode == nil {
		t.Fatal("missing shared prefix node")
	}
	if len(fNode.Children) != 2 {
		t.Fatalf("shared prefix has %d children, want 2", len(fNode.Children))
	}
	if got := v.Total; got.Count != 2 || got.Bytes != 16 {
		t.Fatalf("total = %+v", got)
	}
}

func TestFreezeIsDetached(t *testing.T) {
	trie := NewTrie()
	trie.Record(stackGF(), 0, 8)

	v := trie.Freeze()
	trie.Record(stackGF(), 0, 8)

	if got := v.Total.Count; got != 1 {
		t.Fatalf("frozen view changed after later records: count=%d", got)
	}
	if got := trie.Freeze().Total.Count; got != 2 {
		t.Fatalf("second freeze count=%d, want 2", got)
	}
}

func TestReset(t *testing.T) {
	trie := NewTrie()
	trie.Record(stackGF(), 0, 8)
	trie.Reset()

	v := trie.Freeze()
	if v.Total.Count != 0 || len(v.Root.Children) != 0 {
		t.Fatalf("reset left counts behind: %+v", v.Total)
	}
}

func TestConcurrentRecord(t *testing.T) {
	trie := NewTrie()
	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				trie.Record(stackGF(), 0, 1)
			}
		}()
	}
	wg.Wait()

	v := trie.Freeze()
	if v.Total.Count != goroutines*perGoroutine {
		t.Fatalf("lost records under concurrency: %d", v.Total.Count)
	}
	fNode := v.Root.Children[frameF.Key()]
	if fNode == nil || len(fNode.Children) != 1 {
		t.Fatal("shards merged into duplicate nodes")
	}
}

func TestWalkOrder(t *testing.T) {
	trie := NewTrie()
	trie.Record(stackGF(), 0, 8)
	trie.Record([]frame.Frame{frameF}, 1, 4)

	var paths [][]string
	trie.Freeze().Walk(func(path []frame.Frame, allocs []TypeStats) {
		keys := make([]string, len(path))
		for i, f := range path {
			keys[i] = f.Function
		}
		paths = append(paths, keys)
	})

	want := [][]string{{"f"}, {"f", "g"}}
	if diff := testutil.Diff(want, paths); diff != "" {
		t.Fatalf("walk order mismatch: %s", diff)
	}
}
