package tarstream

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// chunk is one output archive being written. The write path is
//
//	tar.Writer -> raw counter -> compressor -> out counter (+ sha256) -> sink
//
// so raw counts uncompressed archive bytes and out counts what the sink
// received.
type chunk struct {
	index int
	name  string

	sink io.WriteCloser
	out  *countingWriter
	hash hash.Hash
	comp io.WriteCloser
	raw  *countingWriter
	tw   *tar.Writer

	entries int
	closed  bool
}

// openChunk creates the output for archive index and layers the compressor
// and tar writer on top of it.
func openChunk(ctx context.Context, sinks Sinks, index int, c Compression, checksum bool) (*chunk, error) {
	name, sink, err := sinks.Create(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("%w: create chunk %d: %w", ErrOutput, index, err)
	}

	ch := &chunk{index: index, name: name, sink: sink}

	var dst io.Writer = sink
	if checksum {
		ch.hash = sha256.New()
		dst = io.MultiWriter(sink, ch.hash)
	}
	ch.out = &countingWriter{w: dst}

	comp, err := compressor(ch.out, c)
	if err != nil {
		discard(sink)
		return nil, err
	}
	ch.comp = comp
	ch.raw = &countingWriter{w: comp}
	ch.tw = tar.NewWriter(ch.raw)

	return ch, nil
}

// written returns the uncompressed archive bytes emitted so far, excluding
// the end-of-archive marker.
func (ch *chunk) written() int64 {
	return ch.raw.n
}

// close writes the end-of-archive marker, finalizes compression and commits
// the sink. If finalizing fails the sink is discarded instead of committed.
func (ch *chunk) close() (ChunkInfo, error) {
	if ch.closed {
		return ChunkInfo{}, fmt.Errorf("tarstream: chunk %d already closed", ch.index)
	}
	ch.closed = true

	tarBytes := ch.raw.n

	if err := ch.tw.Close(); err != nil {
		discard(ch.sink)
		return ChunkInfo{}, fmt.Errorf("%w: chunk %d: close archive: %w", ErrEntryWrite, ch.index, err)
	}
	if err := ch.comp.Close(); err != nil {
		discard(ch.sink)
		return ChunkInfo{}, fmt.Errorf("%w: chunk %d: %w", ErrCompressionFinalize, ch.index, err)
	}
	if err := ch.sink.Close(); err != nil {
		return ChunkInfo{}, fmt.Errorf("%w: commit chunk %d (%s): %w", ErrOutput, ch.index, ch.name, err)
	}

	info := ChunkInfo{
		Index:    ch.index,
		Name:     ch.name,
		Entries:  ch.entries,
		TarBytes: tarBytes,
		Size:     ch.out.n,
	}
	if ch.hash != nil {
		info.Checksum = hex.EncodeToString(ch.hash.Sum(nil))
	}
	return info, nil
}

// abort releases the sink without finalizing the archive. Sinks that support
// it discard the partial output.
func (ch *chunk) abort() {
	if ch.closed {
		return
	}
	ch.closed = true
	discard(ch.sink)
}

// discard releases a sink whose archive is incomplete. Sinks that support it
// drop the partial output; others are just closed.
func discard(sink io.WriteCloser) {
	if a, ok := sink.(aborter); ok {
		a.Abort()
		return
	}
	sink.Close()
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
