package frame

import (
	"fmt"
	"path"
	"strconv"
)

type (
	// Frame is a resolved stack frame. Native frames come out of the host
	// platform's symbol tables, managed frames out of the interpreter's own
	// line tables.
	Frame struct {
		File     string `json:"file,omitempty"`
		Function string `json:"function"`
		Inline   bool   `json:"inline,omitempty"`
		Line     uint32 `json:"line,omitempty"`
		Native   bool   `json:"native"`
	}
)

const (
	// UnknownFunction is the sentinel used for managed frames whose line
	// table was absent or inconsistent at capture time.
	UnknownFunction = "unknown"

	// PlaceholderFunction marks a frame emitted when the stack walker could
	// not produce any frames at all.
	PlaceholderFunction = "<no stack>"
)

// Unknown builds the sentinel frame for a managed address that could not be
// resolved. The raw address is kept in the file position so the frame stays
// distinguishable in output.
func Unknown(codeID uint64, ip uint32) Frame {
	return Frame{
		Function: UnknownFunction,
		File:     fmt.Sprintf("@0x%x+%d", codeID, ip),
	}
}

// Placeholder is the frame recorded when stack capture yields nothing,
// typically because the interpreter state was only partially constructed.
func Placeholder() Frame {
	return Frame{Function: PlaceholderFunction}
}

// Key returns the canonical string identity of the frame. Two frames with
// equal keys aggregate into the same node.
func (f Frame) Key() string {
	if f.File == "" {
		return f.Function
	}
	return f.Function + " (" + path.Base(f.File) + ":" + strconv.FormatUint(uint64(f.Line), 10) + ")"
}

func (f Frame) String() string {
	return f.Key()
}

// IsUnknown reports whether the frame is one of the sentinel frames rather
// than a genuinely resolved location.
func (f Frame) IsUnknown() bool {
	return f.Function == UnknownFunction || f.Function == PlaceholderFunction
}
