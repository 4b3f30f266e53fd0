package tarstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Archiver streams objects from a Source into TAR archives.
type Archiver struct {
	source Source
	opts   Options
	log    *zap.Logger
}

// New returns an Archiver reading from source.
func New(source Source, options ...Option) *Archiver {
	opts := Options{
		StripPrefix: true,
		Compression: None,
		SizeCeiling: DefaultSizeCeiling,
		BufferSize:  DefaultBufferSize,
		Checksum:    true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	if opts.Compression == "" {
		opts.Compression = None
	}
	if opts.SizeCeiling <= 0 {
		opts.SizeCeiling = DefaultSizeCeiling
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	return &Archiver{
		source: source,
		opts:   opts,
		log:    opts.Logger,
	}
}

// Archive writes every object under prefix into archives created by sinks,
// starting a new archive whenever the next entry would push the current one
// past the size ceiling. An empty listing produces no archives.
//
// On failure the returned manifest lists the archives that were completed
// before the error; they remain valid, but the run as a whole failed.
func (a *Archiver) Archive(ctx context.Context, prefix string, sinks Sinks) (*Manifest, error) {
	return a.run(ctx, prefix, sinks, a.opts.SizeCeiling, false)
}

// StreamTo writes every object under prefix into a single archive on w and
// returns the number of entries written. An empty listing still produces a
// valid, empty archive. w is not closed.
func (a *Archiver) StreamTo(ctx context.Context, prefix string, w io.Writer) (int, error) {
	m, err := a.run(ctx, prefix, WriterSink(w, "-"), Unlimited, true)
	if err != nil {
		return 0, err
	}
	return m.Entries(), nil
}

// ArchiveOne writes every object under prefix into a single archive created
// by sinks, ignoring the size ceiling. Unlike Archive, an empty listing still
// produces one (empty) archive.
func (a *Archiver) ArchiveOne(ctx context.Context, prefix string, sinks Sinks) (*Manifest, error) {
	return a.run(ctx, prefix, sinks, Unlimited, true)
}

// ArchiveToFile writes every object under prefix into a single archive file
// at path and returns the number of entries written.
func (a *Archiver) ArchiveToFile(ctx context.Context, prefix, path string) (int, error) {
	m, err := a.ArchiveOne(ctx, prefix, FileSinks(path))
	if err != nil {
		return 0, err
	}
	return m.Entries(), nil
}

// ArchiveToFiles writes every object under prefix into local archive files
// named by pattern, which must contain IndexPlaceholder ("archive_{}.tar").
func (a *Archiver) ArchiveToFiles(ctx context.Context, prefix, pattern string) (*Manifest, error) {
	if err := checkPattern(pattern); err != nil {
		return nil, err
	}
	return a.Archive(ctx, prefix, FileSinks(pattern))
}

func checkPattern(pattern string) error {
	if strings.Contains(pattern, IndexPlaceholder) {
		return nil
	}
	return fmt.Errorf("tarstream: output pattern %q must contain %s", pattern, IndexPlaceholder)
}

// run drives one archiving pass. When always is set an archive is produced
// even if nothing is listed.
func (a *Archiver) run(ctx context.Context, prefix string, sinks Sinks, ceiling int64, always bool) (*Manifest, error) {
	if err := a.opts.Compression.validate(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Prefix:      prefix,
		Compression: a.opts.Compression,
		SizeCeiling: ceiling,
		Chunks:      []ChunkInfo{},
	}

	var (
		cur  *chunk
		next = 1
		buf  = make([]byte, a.opts.BufferSize)
		list = newLister(a.source, prefix)
	)

	// Whatever is still open on a failure is discarded, not committed.
	defer func() {
		if cur != nil {
			cur.abort()
		}
	}()

	finish := func() error {
		ch := cur
		cur = nil
		info, err := ch.close()
		if err != nil {
			return err
		}
		m.Chunks = append(m.Chunks, info)
		a.opts.Observer.ChunkCompleted(info)
		a.log.Debug("chunk completed",
			zap.Int("chunk", info.Index),
			zap.String("name", info.Name),
			zap.Int("entries", info.Entries),
			zap.Int64("tar_bytes", info.TarBytes),
			zap.Int64("size", info.Size),
		)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			if cur != nil {
				if cerr := finish(); cerr != nil {
					return m, errors.Join(err, cerr)
				}
			}
			return m, err
		}

		obj, ok, err := list.next(ctx)
		if err != nil {
			return m, fmt.Errorf("%w: prefix %q: %w", ErrListing, prefix, err)
		}
		if !ok {
			break
		}

		name, err := ArchivePath(obj.Key, prefix, a.opts.StripPrefix)
		if err != nil {
			a.skip(m, obj, err)
			continue
		}

		rc, err := a.source.Open(ctx, obj.Key)
		if err != nil {
			if isNotExist(err) {
				err = fmt.Errorf("%w: %s: removed after listing: %w", ErrOpenReader, obj.Key, err)
			} else {
				err = fmt.Errorf("%w: %s: %w", ErrOpenReader, obj.Key, err)
			}
			a.skip(m, obj, err)
			continue
		}

		if cur != nil && ShouldRotate(cur.written(), cur.entries, EntrySize(name, obj.Size), ceiling) {
			if err := finish(); err != nil {
				rc.Close()
				return m, err
			}
		}
		if cur == nil {
			cur, err = openChunk(ctx, sinks, next, a.opts.Compression, a.opts.Checksum)
			if err != nil {
				rc.Close()
				return m, err
			}
			next++
		}

		err = writeEntry(cur.tw, name, obj, rc, buf)
		rc.Close()
		if err != nil {
			return m, fmt.Errorf("%w: %s in chunk %d: %w", ErrEntryWrite, obj.Key, cur.index, err)
		}
		cur.entries++

		a.opts.Observer.ObjectArchived(obj.Key, obj.Size)
		a.log.Debug("archived object",
			zap.String("key", obj.Key),
			zap.String("path", name),
			zap.Int64("size", obj.Size),
			zap.Int("chunk", cur.index),
		)
	}

	if cur == nil && always {
		var err error
		cur, err = openChunk(ctx, sinks, next, a.opts.Compression, a.opts.Checksum)
		if err != nil {
			return m, err
		}
	}
	if cur != nil {
		if err := finish(); err != nil {
			return m, err
		}
	}

	m.CompletedAt = time.Now().UTC()
	return m, nil
}

// skip records an object that could not be archived and carries on.
func (a *Archiver) skip(m *Manifest, obj Object, err error) {
	m.Skipped = append(m.Skipped, SkippedObject{Key: obj.Key, Reason: err.Error()})
	a.opts.Observer.ObjectSkipped(obj.Key, err)
	a.log.Warn("skipping object", zap.String("key", obj.Key), zap.Error(err))
}
