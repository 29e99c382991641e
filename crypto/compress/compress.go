// Package compress implements the certificate compression registry: one
// compressor and one decompressor per algorithm identifier, selected from an
// explicit list at startup.
package compress

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Algorithm is a CertificateCompressionAlgorithm code point (RFC 8879).
type Algorithm uint16

const (
	Zlib   Algorithm = 1
	Brotli Algorithm = 2
	Zstd   Algorithm = 3
)

func (a Algorithm) String() string {
	switch a {
	case Zlib:
		return "zlib"
	case Brotli:
		return "brotli"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(a))
	}
}

// ParseAlgorithm accepts a name ("brotli") or a decimal code point ("2").
func ParseAlgorithm(s string) (Algorithm, error) {
	switch norm := strings.ToLower(strings.TrimSpace(s)); norm {
	case "zlib":
		return Zlib, nil
	case "brotli":
		return Brotli, nil
	case "zstd":
		return Zstd, nil
	default:
		if v, err := strconv.ParseUint(norm, 10, 16); err == nil {
			return Algorithm(v), nil
		}
	}
	return 0, fmt.Errorf("unknown compression algorithm %q", s)
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Level is the effort hint passed to Compress.
type Level uint8

const (
	// Interactive compressions run during a live handshake.
	Interactive Level = iota
	// Amortized compressions are computed once and reused across connections.
	Amortized
)

func (l Level) String() string {
	switch l {
	case Interactive:
		return "interactive"
	case Amortized:
		return "amortized"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interactive":
		return Interactive, nil
	case "amortized":
		return Amortized, nil
	}
	return 0, fmt.Errorf("unknown compression level %q", s)
}

// Neither error carries detail about the input. Callers reject the message or
// send the certificate uncompressed.
var (
	ErrCompressionFailed   = errors.New("compression failed")
	ErrDecompressionFailed = errors.New("decompression failed")
)

// MaxDecompressedLen is the largest uncompressed_length a CompressedCertificate
// message can carry (uint24).
const MaxDecompressedLen = 1<<24 - 1

// Compressor compresses certificate messages for one algorithm.
// Implementations are stateless and safe for concurrent use.
type Compressor interface {
	// Compress takes ownership of input.
	Compress(input []byte, level Level) ([]byte, error)
	Algorithm() Algorithm
}

// Decompressor is the inverse of the Compressor for the same Algorithm.
type Decompressor interface {
	// Decompress fills output exactly. Producing fewer or more bytes than
	// len(output), or reading malformed input, returns ErrDecompressionFailed;
	// output contents are then unspecified.
	Decompress(input, output []byte) error
	Algorithm() Algorithm
}

// fillExact reads exactly len(output) bytes from r and requires r to be at
// end of stream afterwards.
func fillExact(r io.Reader, output []byte) error {
	if _, err := io.ReadFull(r, output); err != nil {
		return ErrDecompressionFailed
	}
	var extra [1]byte
	for {
		n, err := r.Read(extra[:])
		if n > 0 {
			return ErrDecompressionFailed
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ErrDecompressionFailed
		}
	}
}

func checkInput(input, output []byte) error {
	if len(input) == 0 || len(output) > MaxDecompressedLen {
		return ErrDecompressionFailed
	}
	return nil
}
