package render

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/heapscope/heapscope/aggregate"
	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/profile"
)

// PathSeparator joins frame keys into one CSV path field, outermost frame
// first.
const PathSeparator = ";"

var csvHeader = []string{"path", "type", "count", "bytes"}

// WriteCSV renders one row per (call path, type) pair. Quoting and quote
// doubling follow RFC 4180 via encoding/csv.
func WriteCSV(w io.Writer, p *profile.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	var walkErr error
	p.View.Walk(func(path []frame.Frame, allocs []aggregate.TypeStats) {
		if walkErr != nil {
			return
		}
		keys := make([]string, len(path))
		for i, f := range path {
			keys[i] = f.Key()
		}
		joined := strings.Join(keys, PathSeparator)
		for _, ts := range allocs {
			err := cw.Write([]string{
				joined,
				p.TypeName(ts.TypeID),
				strconv.FormatUint(ts.Stats.Count, 10),
				strconv.FormatUint(ts.Stats.Bytes, 10),
			})
			if err != nil {
				walkErr = err
				return
			}
		}
	})
	if walkErr != nil {
		return walkErr
	}
	cw.Flush()
	return cw.Error()
}
