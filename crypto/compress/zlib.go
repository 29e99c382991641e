package compress

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
)

var (
	ZlibCompressor   Compressor   = zlibBackend{}
	ZlibDecompressor Decompressor = zlibBackend{}
)

type zlibBackend struct{}

func (zlibBackend) Algorithm() Algorithm { return Zlib }

func (zlibBackend) Compress(input []byte, level Level) ([]byte, error) {
	zl := zlib.DefaultCompression
	if level == Amortized {
		zl = zlib.BestCompression
	}
	buf := bytes.NewBuffer(make([]byte, 0, zlibBound(len(input))))
	w, err := zlib.NewWriterLevel(buf, zl)
	if err != nil {
		return nil, ErrCompressionFailed
	}
	if _, err := w.Write(input); err != nil {
		return nil, ErrCompressionFailed
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompressionFailed
	}
	return buf.Bytes(), nil
}

func (zlibBackend) Decompress(input, output []byte) error {
	if err := checkInput(input, output); err != nil {
		return err
	}
	src := bytes.NewReader(input)
	r, err := zlib.NewReader(src)
	if err != nil {
		return ErrDecompressionFailed
	}
	defer r.Close()
	if err := fillExact(r, output); err != nil {
		return err
	}
	// bytes.Reader is an io.ByteReader, so inflate consumed exactly the
	// stream and its checksum; anything left is trailing garbage.
	if src.Len() != 0 {
		return ErrDecompressionFailed
	}
	return nil
}

// zlibBound is zlib's compressBound.
func zlibBound(n int) int {
	return n + n>>12 + n>>14 + n>>25 + 13
}
