package backtrace

import (
	"testing"

	"github.com/heapscope/heapscope/internal/testutil"
)

type sliceWalker []RawFrame

func (w sliceWalker) WalkStack(buf []RawFrame, skip int) int {
	n := copy(buf, w[skip:])
	return n
}

type emptyWalker struct{}

func (emptyWalker) WalkStack([]RawFrame, int) int { return 0 }

func TestCaptureManaged(t *testing.T) {
	walker := sliceWalker{
		{Kind: KindManaged, CodeID: 3, IP: 12},
		{Kind: KindManaged, CodeID: 2},
		{Kind: KindManaged, CodeID: 1},
	}

	var bt Backtrace
	Capture(&bt, walker, 0)

	if diff := testutil.Diff([]RawFrame(walker), bt.Frames()); diff != "" {
		t.Fatalf("frames mismatch: %s", diff)
	}
}

func TestCaptureSkip(t *testing.T) {
	walker := sliceWalker{
		{Kind: KindManaged, CodeID: 3},
		{Kind: KindManaged, CodeID: 2},
		{Kind: KindManaged, CodeID: 1},
	}

	var bt Backtrace
	Capture(&bt, walker, 1)

	want := []RawFrame{
		{Kind: KindManaged, CodeID: 2},
		{Kind: KindManaged, CodeID: 1},
	}
	if diff := testutil.Diff(want, bt.Frames()); diff != "" {
		t.Fatalf("frames mismatch: %s", diff)
	}
}

func TestCapturePlaceholder(t *testing.T) {
	// An interpreter with partially-constructed state yields no frames;
	// the capture degrades to a placeholder instead of failing.
	var bt Backtrace
	Capture(&bt, emptyWalker{}, 0)

	if bt.Len() != 1 || bt.Frames()[0].Kind != KindPlaceholder {
		t.Fatalf("expected a single placeholder frame, got %v", bt.Frames())
	}
}

func TestCaptureNative(t *testing.T) {
	var bt Backtrace
	Capture(&bt, nil, 0)

	if bt.Len() == 0 {
		t.Fatal("native capture yielded no frames")
	}
	for _, f := range bt.Frames() {
		if f.Kind != KindNative || f.PC == 0 {
			t.Fatalf("bad native frame: %+v", f)
		}
	}
}

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name string
		a, b RawFrame
		same bool
	}{
		{
			name: "identical native frames",
			a:    RawFrame{Kind: KindNative, PC: 0xabc},
			b:    RawFrame{Kind: KindNative, PC: 0xabc},
			same: true,
		},
		{
			name: "different pcs",
			a:    RawFrame{Kind: KindNative, PC: 0xabc},
			b:    RawFrame{Kind: KindNative, PC: 0xabd},
			same: false,
		},
		{
			name: "kind is part of the encoding",
			a:    RawFrame{Kind: KindNative, PC: 0xabc},
			b:    RawFrame{Kind: KindManaged, CodeID: 0xabc},
			same: false,
		},
		{
			name: "managed ip is part of the encoding",
			a:    RawFrame{Kind: KindManaged, CodeID: 1, IP: 4},
			b:    RawFrame{Kind: KindManaged, CodeID: 1, IP: 5},
			same: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.a.EncodeKey() == test.b.EncodeKey(); got != test.same {
				t.Fatalf("key equality = %v, want %v", got, test.same)
			}
		})
	}
}

func TestReset(t *testing.T) {
	var bt Backtrace
	Capture(&bt, sliceWalker{{Kind: KindManaged, CodeID: 1}}, 0)
	bt.Reset()
	if bt.Len() != 0 {
		t.Fatalf("len = %d after reset", bt.Len())
	}
}
