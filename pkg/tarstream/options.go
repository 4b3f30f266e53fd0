package tarstream

import "go.uber.org/zap"

// Options configures an Archiver.
type Options struct {
	StripPrefix bool
	Compression Compression
	SizeCeiling int64
	BufferSize  int
	Checksum    bool // sha256 of every output (default: true)
	Logger      *zap.Logger
	Observer    Observer
}

// Option is a functional option for configuring an Archiver.
type Option func(*Options)

// Observer is notified as a run progresses. Calls are made from the
// archiving goroutine, one at a time.
type Observer interface {
	ObjectArchived(key string, size int64)
	ObjectSkipped(key string, err error)
	ChunkCompleted(info ChunkInfo)
}

// WithStripPrefix controls whether the listed prefix is removed from archive
// paths. Default is true.
func WithStripPrefix(strip bool) Option {
	return func(o *Options) {
		o.StripPrefix = strip
	}
}

// WithCompression sets the codec applied to each archive.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithSizeCeiling sets the maximum uncompressed size of each archive written
// by Archive and ArchiveToFiles. A single object larger than the ceiling is
// still archived, alone in its own archive.
func WithSizeCeiling(n int64) Option {
	return func(o *Options) {
		o.SizeCeiling = n
	}
}

// WithBufferSize sets the size of the buffer object payloads are streamed
// through.
func WithBufferSize(n int) Option {
	return func(o *Options) {
		o.BufferSize = n
	}
}

// WithChecksum enables or disables the sha256 checksum recorded for each
// archive in the manifest.
func WithChecksum(compute bool) Option {
	return func(o *Options) {
		o.Checksum = compute
	}
}

// WithLogger sets the logger. Archived objects and chunks are logged at
// debug level, skipped objects at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithObserver registers an Observer, e.g. a progress reporter.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

type nopObserver struct{}

func (nopObserver) ObjectArchived(string, int64) {}
func (nopObserver) ObjectSkipped(string, error)  {}
func (nopObserver) ChunkCompleted(ChunkInfo)     {}
