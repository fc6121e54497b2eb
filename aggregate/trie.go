// Package aggregate folds (stack, type, size) triples into a
// stack-indexed trie. The trie root is the outermost frame; inserting a
// stack of length K walks or creates K child links keyed by each frame's
// canonical string and bumps the per-type counters at the terminal node.
// Writers land on independent shards and the shards are merged into one
// read-only view at freeze time, keeping the record path off a single
// global lock.
package aggregate

import (
	"sync"
	"sync/atomic"

	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/typetab"
)

// Stats accumulates allocation counts for one type at one node.
type Stats struct {
	Count uint64 `json:"count"`
	Bytes uint64 `json:"bytes"`
}

const numShards = 16

type node struct {
	frame    frame.Frame
	children map[string]*node
	allocs   map[typetab.TypeID]*Stats
}

func newNode(f frame.Frame) *node {
	return &node{frame: f}
}

type shard struct {
	mu   sync.Mutex
	root *node
}

// Trie is the mutable aggregate. All methods are safe for concurrent use
// except Reset, which the caller must serialize against Record.
type Trie struct {
	next   atomic.Uint64
	shards [numShards]shard
}

func NewTrie() *Trie {
	t := &Trie{}
	for i := range t.shards {
		t.shards[i].root = newNode(frame.Frame{})
	}
	return t
}

// Record folds one allocation into the trie. stack is innermost-first, as
// produced by capture and symbolication; the trie stores it outermost
// node down. Amortized O(len(stack)).
func (t *Trie) Record(stack []frame.Frame, id typetab.TypeID, size uint64) {
	sh := &t.shards[t.next.Add(1)%numShards]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur := sh.root
	for i := len(stack) - 1; i >= 0; i-- {
		key := stack[i].Key()
		child, ok := cur.children[key]
		if !ok {
			child = newNode(stack[i])
			if cur.children == nil {
				cur.children = make(map[string]*node)
			}
			cur.children[key] = child
		}
		cur = child
	}
	if cur.allocs == nil {
		cur.allocs = make(map[typetab.TypeID]*Stats)
	}
	st, ok := cur.allocs[id]
	if !ok {
		st = &Stats{}
		cur.allocs[id] = st
	}
	st.Count++
	st.Bytes += size
}

// Freeze merges all shards into a detached read-only snapshot. The trie
// keeps accepting records afterwards; they do not show up in the returned
// view.
func (t *Trie) Freeze() *View {
	v := &View{Root: &Node{}}
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		mergeNode(v.Root, sh.root)
		sh.mu.Unlock()
	}
	v.Total = v.Root.Cumulative()
	return v
}

// Reset clears all counts. Safe only when no concurrent Record is
// possible.
func (t *Trie) Reset() {
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		sh.root = newNode(frame.Frame{})
		sh.mu.Unlock()
	}
}

func mergeNode(dst *Node, src *node) {
	for id, st := range src.allocs {
		if dst.Allocs == nil {
			dst.Allocs = make(map[typetab.TypeID]Stats)
		}
		agg := dst.Allocs[id]
		agg.Count += st.Count
		agg.Bytes += st.Bytes
		dst.Allocs[id] = agg
	}
	for key, child := range src.children {
		if dst.Children == nil {
			dst.Children = make(map[string]*Node)
		}
		dc, ok := dst.Children[key]
		if !ok {
			dc = &Node{Frame: child.frame}
			dst.Children[key] = dc
		}
		mergeNode(dc, child)
	}
}
