package render

import (
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/heapscope/heapscope/profile"
)

// WriteJSON marshals the whole profile, including tables and GC cycle
// annotations, for tooling that wants the raw structure.
func WriteJSON(w io.Writer, p *profile.Profile) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(p)
}
