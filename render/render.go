// Package render serializes a frozen profile. Every writer here is a pure
// function of its input; rendering the same profile twice produces
// byte-identical output.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/heapscope/heapscope/profile"
)

type Format string

const (
	FormatDOT  Format = "dot"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("render: unknown format")

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDOT, FormatCSV, FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Write renders p in the given format.
func Write(w io.Writer, p *profile.Profile, format Format) error {
	switch format {
	case FormatDOT:
		return WriteDOT(w, p)
	case FormatCSV:
		return WriteCSV(w, p)
	case FormatText:
		return WriteText(w, p)
	case FormatJSON:
		return WriteJSON(w, p)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
}
