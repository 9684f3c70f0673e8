package archive

import (
	"io"

	"github.com/klauspost/compress/flate"
)

func newFlateWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return flate.NewWriter(w, level)
}
