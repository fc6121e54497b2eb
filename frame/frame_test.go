package frame

import (
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{
			name:  "full location",
			frame: Frame{Function: "solve", File: "/opt/app/solver.jl", Line: 42},
			want:  "solve (solver.jl:42)",
		},
		{
			name:  "no file",
			frame: Frame{Function: "solve"},
			want:  "solve",
		},
		{
			name:  "unknown sentinel",
			frame: Unknown(0xbeef, 8),
			want:  "unknown (@0xbeef+8:0)",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.frame.Key(); got != test.want {
				t.Fatalf("Key() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestKeyDistinguishesLines(t *testing.T) {
	a := Frame{Function: "f", File: "x.jl", Line: 1}
	b := Frame{Function: "f", File: "x.jl", Line: 2}
	if a.Key() == b.Key() {
		t.Fatal("frames on different lines must not collapse")
	}
}

func TestIsUnknown(t *testing.T) {
	if !Unknown(1, 0).IsUnknown() {
		t.Fatal("Unknown() not flagged")
	}
	if !Placeholder().IsUnknown() {
		t.Fatal("Placeholder() not flagged")
	}
	if (Frame{Function: "f"}).IsUnknown() {
		t.Fatal("ordinary frame flagged as unknown")
	}
}
