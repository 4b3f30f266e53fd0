package tarstream

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultBufferSize is the size of the buffer payloads are copied through.
const DefaultBufferSize = 1024 * 1024

// Latest mtime a USTAR header can hold (11 octal digits).
var maxUSTARTime = time.Unix(1<<33-1, 0)

// writeEntry writes one regular-file entry of obj.Size bytes read from r,
// including its block padding. The header is written before any payload is
// read, so the content must match the declared size exactly.
func writeEntry(tw *tar.Writer, name string, obj Object, r io.Reader, buf []byte) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     obj.Size,
		Mode:     0o644,
		ModTime:  headerTime(obj.ModTime),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Hide tar.Writer's ReadFrom so the copy goes through buf.
	n, err := io.CopyBuffer(struct{ io.Writer }{tw}, io.LimitReader(r, obj.Size), buf)
	if err != nil {
		return fmt.Errorf("copy payload: %w", err)
	}
	if n < obj.Size {
		return fmt.Errorf("short read: got %d of %d bytes", n, obj.Size)
	}

	var probe [1]byte
	if m, err := io.ReadFull(r, probe[:]); m > 0 {
		return fmt.Errorf("object is longer than its declared %d bytes", obj.Size)
	} else if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read payload end: %w", err)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("pad entry: %w", err)
	}
	return nil
}

// headerTime clamps t to the range a USTAR header can represent. Unknown
// times become the Unix epoch.
func headerTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(time.Unix(0, 0)) || t.After(maxUSTARTime) {
		return time.Unix(0, 0)
	}
	return t
}
