package tarstream

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression selects the codec applied to the whole archive stream.
type Compression string

const (
	None  Compression = "none"
	Gzip  Compression = "gz"
	Bzip2 Compression = "bz2"
	Xz    Compression = "xz"
	Zstd  Compression = "zst"
	Lz4   Compression = "lz4"
)

// ParseCompression parses a compression name. The empty string means None.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return None, nil
	case "gz", "gzip":
		return Gzip, nil
	case "bz2", "bzip2":
		return Bzip2, nil
	case "xz":
		return Xz, nil
	case "zst", "zstd":
		return Zstd, nil
	case "lz4":
		return Lz4, nil
	default:
		return "", fmt.Errorf("tarstream: invalid compression %q: must be none, gz, bz2, xz, zst or lz4", name)
	}
}

// String returns the compression name.
func (c Compression) String() string {
	if c == "" {
		return string(None)
	}
	return string(c)
}

// Extension returns the conventional file extension for an archive written
// with c, such as ".tar.gz".
func (c Compression) Extension() string {
	if c == "" || c == None {
		return ".tar"
	}
	return ".tar." + string(c)
}

func (c Compression) validate() error {
	switch c {
	case "", None, Gzip, Bzip2, Xz, Zstd, Lz4:
		return nil
	}
	return fmt.Errorf("tarstream: unsupported compression %q", string(c))
}

// compressor wraps w so that everything written is compressed with c.
// Closing the returned writer flushes the codec trailer but leaves w open.
func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case "", None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		return bzip2.NewWriter(w, nil)
	case Xz:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w)
	case Lz4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("tarstream: unsupported compression %q", string(c))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
