package tarstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"gocloud.dev/blob"
)

// IndexPlaceholder is replaced by the chunk index in output name patterns.
const IndexPlaceholder = "{}"

// Sinks creates the output for each archive of a run. Create is called with
// index 1 for the first archive and with increasing indices after that. The
// returned writer is closed exactly once by the archiver.
type Sinks interface {
	Create(ctx context.Context, index int) (name string, w io.WriteCloser, err error)
}

// ChunkName expands pattern for the given chunk index, e.g.
// "archive_{}.tar" becomes "archive_3.tar".
func ChunkName(pattern string, index int) string {
	return strings.ReplaceAll(pattern, IndexPlaceholder, strconv.Itoa(index))
}

// aborter is implemented by sink writers that can discard a partial output
// instead of committing it.
type aborter interface {
	Abort()
}

// WriterSink writes a single archive to w. w is not closed. Only one archive
// can be created; use it with an Unlimited ceiling.
func WriterSink(w io.Writer, name string) Sinks {
	return &writerSinks{w: w, name: name}
}

type writerSinks struct {
	w    io.Writer
	name string
	used bool
}

func (s *writerSinks) Create(_ context.Context, index int) (string, io.WriteCloser, error) {
	if s.used || index != 1 {
		return "", nil, errors.New("tarstream: single output cannot hold more than one archive")
	}
	s.used = true
	return s.name, nopWriteCloser{s.w}, nil
}

// FileSinks writes each archive to a local file named by expanding pattern.
// With a pattern lacking IndexPlaceholder only one archive can be created.
func FileSinks(pattern string) Sinks {
	return &fileSinks{pattern: pattern}
}

type fileSinks struct {
	pattern string
}

func (s *fileSinks) Create(_ context.Context, index int) (string, io.WriteCloser, error) {
	if index > 1 && !strings.Contains(s.pattern, IndexPlaceholder) {
		return "", nil, fmt.Errorf("tarstream: output %q has no %s placeholder for chunk %d", s.pattern, IndexPlaceholder, index)
	}
	name := ChunkName(s.pattern, index)
	f, err := os.Create(name)
	if err != nil {
		return "", nil, err
	}
	return name, f, nil
}

// BucketSinks writes each archive to bucket under the key made by expanding
// pattern. Objects only become visible once their archive is complete; an
// aborted archive is never committed.
func BucketSinks(bucket *blob.Bucket, pattern string) Sinks {
	return &bucketSinks{bucket: bucket, pattern: pattern}
}

type bucketSinks struct {
	bucket  *blob.Bucket
	pattern string
}

func (s *bucketSinks) Create(ctx context.Context, index int) (string, io.WriteCloser, error) {
	if index > 1 && !strings.Contains(s.pattern, IndexPlaceholder) {
		return "", nil, fmt.Errorf("tarstream: output %q has no %s placeholder for chunk %d", s.pattern, IndexPlaceholder, index)
	}
	key := ChunkName(s.pattern, index)

	// The writer's context controls the upload; cancelling it aborts.
	wctx, cancel := context.WithCancel(ctx)
	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: "application/x-tar",
	})
	if err != nil {
		cancel()
		return "", nil, err
	}
	return key, &bucketWriter{Writer: w, cancel: cancel}, nil
}

type bucketWriter struct {
	*blob.Writer
	cancel context.CancelFunc

	once sync.Once
	err  error
}

func (w *bucketWriter) Close() error {
	w.once.Do(func() {
		w.err = w.Writer.Close()
		w.cancel()
	})
	return w.err
}

// Abort cancels the upload. The blob writer still has to be closed to
// release its resources; the close error is expected and ignored.
func (w *bucketWriter) Abort() {
	w.once.Do(func() {
		w.cancel()
		w.Writer.Close()
		w.err = context.Canceled
	})
}
