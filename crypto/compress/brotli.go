package compress

import (
	"bytes"

	"github.com/andybalholm/brotli"
)

const (
	brotliLGWin          = 22
	brotliQualityFast    = 4
	brotliQualityMaximum = 11
)

var (
	BrotliCompressor   Compressor   = brotliBackend{}
	BrotliDecompressor Decompressor = brotliBackend{}
)

type brotliBackend struct{}

func (brotliBackend) Algorithm() Algorithm { return Brotli }

func (brotliBackend) Compress(input []byte, level Level) ([]byte, error) {
	quality := brotliQualityFast
	if level == Amortized {
		quality = brotliQualityMaximum
	}
	buf := bytes.NewBuffer(make([]byte, 0, brotliBound(len(input))))
	w := brotli.NewWriterOptions(buf, brotli.WriterOptions{Quality: quality, LGWin: brotliLGWin})
	if _, err := w.Write(input); err != nil {
		return nil, ErrCompressionFailed
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompressionFailed
	}
	return buf.Bytes(), nil
}

// Decompress relies on the reader reporting excessive input after the last
// meta-block, so trailing data fails like any other corruption.
func (brotliBackend) Decompress(input, output []byte) error {
	if err := checkInput(input, output); err != nil {
		return err
	}
	return fillExact(brotli.NewReader(bytes.NewReader(input)), output)
}

// brotliBound is BrotliEncoderMaxCompressedSize.
func brotliBound(n int) int {
	if n == 0 {
		return 2
	}
	return n + 2 + 4*(n>>14) + 3 + 1
}
