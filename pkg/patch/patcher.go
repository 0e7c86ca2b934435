package patch

import (
	"io"

	"github.com/kr/binarydist"
)

// Patcher reconstructs new file bytes from old bytes plus a binary delta.
// The engine treats it as opaque; any error it returns is reported as
// CodeDiffApply.
type Patcher interface {
	Patch(old io.Reader, new io.Writer, delta io.Reader) error
}

// PatcherFunc adapts a function to the Patcher interface.
type PatcherFunc func(old io.Reader, new io.Writer, delta io.Reader) error

// Patch calls f.
func (f PatcherFunc) Patch(old io.Reader, new io.Writer, delta io.Reader) error {
	return f(old, new, delta)
}

// BSDiff applies deltas in the bsdiff 4.x format (BSDIFF40 header with
// bzip2-compressed control, diff and extra blocks).
var BSDiff Patcher = PatcherFunc(binarydist.Patch)
