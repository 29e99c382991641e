package compress

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	ZstdCompressor   Compressor   = zstdBackend{}
	ZstdDecompressor Decompressor = zstdBackend{}
)

// EncodeAll and DecodeAll are safe for concurrent use, so one encoder per
// level and one decoder serve every caller.
var (
	zstdFast = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true))
	})
	zstdBest = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(MaxDecompressedLen+1),
			zstd.WithDecodeAllCapLimit(true),
			zstd.WithDecoderConcurrency(0))
	})
)

type zstdBackend struct{}

func (zstdBackend) Algorithm() Algorithm { return Zstd }

func (zstdBackend) Compress(input []byte, level Level) ([]byte, error) {
	enc, err := zstdFast()
	if level == Amortized {
		enc, err = zstdBest()
	}
	if err != nil {
		return nil, ErrCompressionFailed
	}
	return enc.EncodeAll(input, make([]byte, 0, zstdBound(len(input)))), nil
}

func (zstdBackend) Decompress(input, output []byte) error {
	if err := checkInput(input, output); err != nil {
		return err
	}
	var h zstd.Header
	if err := h.Decode(input); err != nil || (h.HasFCS && h.FrameContentSize != uint64(len(output))) {
		return ErrDecompressionFailed
	}
	dec, err := zstdDecoder()
	if err != nil {
		return ErrDecompressionFailed
	}
	// The capacity bounds decoding of frames that omit the content size.
	out, err := dec.DecodeAll(input, make([]byte, 0, len(output)+1))
	if err != nil || len(out) != len(output) {
		return ErrDecompressionFailed
	}
	copy(output, out)
	return nil
}

// zstdBound is ZSTD_COMPRESSBOUND.
func zstdBound(n int) int {
	const small = 128 << 10
	margin := 0
	if n < small {
		margin = (small - n) >> 11
	}
	return n + n>>8 + margin
}
