package tarstream

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"gocloud.dev/blob"
)

// fakeObject is an object served by fakeSource. Without data, content is a
// generated pattern of served bytes (Size unless served is set).
type fakeObject struct {
	Object
	data    []byte
	served  int64
	openErr error
}

// fakeSource is an in-memory Source with configurable paging and failures.
type fakeSource struct {
	objects  []fakeObject
	pageSize int
	failPage int // 1-based List call that fails; 0 never fails

	lists int
}

func (s *fakeSource) List(_ context.Context, prefix, token string) (*Page, error) {
	s.lists++
	if s.failPage > 0 && s.lists == s.failPage {
		return nil, errors.New("listing unavailable")
	}

	var matched []Object
	for _, o := range s.objects {
		if strings.HasPrefix(o.Key, prefix) {
			matched = append(matched, o.Object)
		}
	}

	start := 0
	if token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil {
			return nil, fmt.Errorf("bad token %q", token)
		}
	}
	size := s.pageSize
	if size <= 0 {
		size = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	page := &Page{Objects: matched[start:end]}
	if end < len(matched) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (s *fakeSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	for _, o := range s.objects {
		if o.Key != key {
			continue
		}
		if o.openErr != nil {
			return nil, o.openErr
		}
		if o.data != nil {
			return io.NopCloser(bytes.NewReader(o.data)), nil
		}
		n := o.Size
		if o.served != 0 {
			n = o.served
		}
		return io.NopCloser(io.LimitReader(patternReader{}, n)), nil
	}
	return nil, fmt.Errorf("object %q not found", key)
}

// patternReader yields an endless deterministic byte pattern.
type patternReader struct{}

func (patternReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i % 251)
	}
	return len(p), nil
}

func sizedObjects(prefix string, count int, size int64) []fakeObject {
	objs := make([]fakeObject, count)
	for i := range objs {
		objs[i] = fakeObject{Object: Object{Key: fmt.Sprintf("%sobj-%04d.bin", prefix, i), Size: size}}
	}
	return objs
}

// memSinks keeps every archive in memory.
type memSinks struct {
	outputs    []*memOutput
	failAt     int
	writeLimit int
}

type memOutput struct {
	bytes.Buffer
	name    string
	closed  bool
	aborted bool

	limit int // writes past this many bytes fail; 0 means no limit
}

func (o *memOutput) Write(p []byte) (int, error) {
	if o.limit > 0 && o.Len()+len(p) > o.limit {
		return 0, errors.New("upload broke")
	}
	return o.Buffer.Write(p)
}

func (o *memOutput) Close() error {
	o.closed = true
	return nil
}

func (o *memOutput) Abort() {
	o.aborted = true
}

func (s *memSinks) Create(_ context.Context, index int) (string, io.WriteCloser, error) {
	if s.failAt > 0 && index == s.failAt {
		return "", nil, errors.New("disk full")
	}
	o := &memOutput{name: fmt.Sprintf("chunk-%d.tar", index), limit: s.writeLimit}
	s.outputs = append(s.outputs, o)
	return o.name, o, nil
}

// discardSinks counts bytes but keeps none of them.
type discardSinks struct{}

func (discardSinks) Create(_ context.Context, index int) (string, io.WriteCloser, error) {
	return fmt.Sprintf("chunk-%d.tar", index), nopWriteCloser{io.Discard}, nil
}

type tarEntry struct {
	Name string
	Data []byte
}

func readTar(t *testing.T, r io.Reader) []tarEntry {
	t.Helper()

	tr := tar.NewReader(r)
	var entries []tarEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read entry %s: %v", hdr.Name, err)
		}
		entries = append(entries, tarEntry{Name: hdr.Name, Data: data})
	}
	return entries
}

// recordingObserver records everything reported to it.
type recordingObserver struct {
	archived []string
	skipped  []error
	chunks   []ChunkInfo

	onArchived func(n int)
}

func (r *recordingObserver) ObjectArchived(key string, _ int64) {
	r.archived = append(r.archived, key)
	if r.onArchived != nil {
		r.onArchived(len(r.archived))
	}
}

func (r *recordingObserver) ObjectSkipped(_ string, err error) {
	r.skipped = append(r.skipped, err)
}

func (r *recordingObserver) ChunkCompleted(info ChunkInfo) {
	r.chunks = append(r.chunks, info)
}

// limitedSinks caps how many bytes each output accepts.
type limitedSinks struct {
	Sinks
	limit int
}

func (s limitedSinks) Create(ctx context.Context, index int) (string, io.WriteCloser, error) {
	name, w, err := s.Sinks.Create(ctx, index)
	if err != nil {
		return "", nil, err
	}
	return name, &limitedWriter{WriteCloser: w, left: s.limit}, nil
}

type limitedWriter struct {
	io.WriteCloser
	left int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		return 0, errors.New("upload broke")
	}
	w.left -= len(p)
	return w.WriteCloser.Write(p)
}

func (w *limitedWriter) Abort() {
	if a, ok := w.WriteCloser.(aborter); ok {
		a.Abort()
		return
	}
	w.WriteCloser.Close()
}

// nilPageSource answers every listing with a nil page.
type nilPageSource struct{}

func (nilPageSource) List(context.Context, string, string) (*Page, error) { return nil, nil }

func (nilPageSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("object %q not found", key)
}

// vanishingSource deletes key from the bucket right after listing it.
type vanishingSource struct {
	*BucketSource
	bucket *blob.Bucket
	key    string
}

func (s *vanishingSource) List(ctx context.Context, prefix, token string) (*Page, error) {
	page, err := s.BucketSource.List(ctx, prefix, token)
	if err != nil {
		return nil, err
	}
	if err := s.bucket.Delete(ctx, s.key); err != nil {
		return nil, err
	}
	return page, nil
}
