package backtrace

import (
	"encoding/binary"
	"runtime"
)

// MaxFrames bounds the depth of a single capture. Deeper stacks are
// truncated at the outermost end.
const MaxFrames = 128

type Kind uint8

const (
	// KindNative is a machine frame identified by a program counter.
	KindNative Kind = iota
	// KindManaged is an interpreter frame identified by a code object and
	// an instruction offset within it.
	KindManaged
	// KindPlaceholder stands in for a stack that could not be walked.
	KindPlaceholder
)

// RawFrame is one machine-level frame descriptor. It is only meaningful to
// the symbolicator; everything else treats it as opaque.
type RawFrame struct {
	Kind   Kind
	PC     uintptr
	CodeID uint64
	IP     uint32
}

// Key is the exact byte encoding of a raw frame. It is the memoization key
// for symbolication: byte-identical raw frames must resolve identically.
type Key [16]byte

func (f RawFrame) EncodeKey() Key {
	var k Key
	k[0] = byte(f.Kind)
	switch f.Kind {
	case KindNative:
		binary.LittleEndian.PutUint64(k[1:9], uint64(f.PC))
	case KindManaged:
		binary.LittleEndian.PutUint64(k[1:9], f.CodeID)
		binary.LittleEndian.PutUint32(k[9:13], f.IP)
	}
	return k
}

// Backtrace is a fixed-capacity raw stack capture. It is owned by the
// capture call and must not be retained past one record operation unless
// copied out.
type Backtrace struct {
	frames [MaxFrames]RawFrame
	pcs    [MaxFrames]uintptr
	n      int
}

func (b *Backtrace) Frames() []RawFrame {
	return b.frames[:b.n]
}

func (b *Backtrace) Len() int {
	return b.n
}

func (b *Backtrace) Reset() {
	b.n = 0
}

// Walker captures the managed interpreter's call stack. Implementations
// fill buf innermost-first, skipping skip frames, and report how many
// frames were written. Returning 0 signals that the interpreter state was
// not walkable; the capture degrades to a placeholder frame.
type Walker interface {
	WalkStack(buf []RawFrame, skip int) int
}

// Capture walks the current call stack into bt. When w is nil the native
// Go stack is captured instead; skip counts frames to drop at the
// innermost end, not including Capture itself. Capture never fails: an
// unwalkable stack produces a single placeholder frame.
func Capture(bt *Backtrace, w Walker, skip int) {
	bt.n = 0
	if w != nil {
		n := w.WalkStack(bt.frames[:], skip)
		if n <= 0 || n > MaxFrames {
			bt.placeholder()
			return
		}
		bt.n = n
		return
	}
	// +2 skips runtime.Callers and Capture.
	n := runtime.Callers(skip+2, bt.pcs[:])
	if n == 0 {
		bt.placeholder()
		return
	}
	for i := 0; i < n; i++ {
		bt.frames[i] = RawFrame{Kind: KindNative, PC: bt.pcs[i]}
	}
	bt.n = n
}

func (b *Backtrace) placeholder() {
	b.frames[0] = RawFrame{Kind: KindPlaceholder}
	b.n = 1
}
