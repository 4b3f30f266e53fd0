package tarstream

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gocloud.dev/blob"
)

// DefaultPageSize is the number of objects requested per listing page.
const DefaultPageSize = 1000

// Object describes one remote object to be archived.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Page is one page of a prefix listing.
type Page struct {
	Objects []Object

	// NextToken resumes the listing. Empty when the listing is exhausted.
	NextToken string
}

// Source lists and opens objects in a remote store.
//
// List returns the page of objects under prefix that starts at token; an
// empty token requests the first page. Open returns a reader that yields the
// content of key. Retries, if any, are the responsibility of the Source.
type Source interface {
	List(ctx context.Context, prefix, token string) (*Page, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BucketSource is a Source backed by a gocloud.dev bucket.
type BucketSource struct {
	bucket   *blob.Bucket
	pageSize int
}

// NewBucketSource returns a Source reading from bucket. A pageSize of zero
// or less uses DefaultPageSize.
func NewBucketSource(bucket *blob.Bucket, pageSize int) *BucketSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &BucketSource{bucket: bucket, pageSize: pageSize}
}

// List returns one page of objects under prefix. Directory markers (keys
// ending in "/") are left out.
func (s *BucketSource) List(ctx context.Context, prefix, token string) (*Page, error) {
	pageToken := blob.FirstPageToken
	if token != "" {
		pageToken = []byte(token)
	}

	objs, next, err := s.bucket.ListPage(ctx, pageToken, s.pageSize, &blob.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	page := &Page{
		Objects:   make([]Object, 0, len(objs)),
		NextToken: string(next),
	}
	for _, obj := range objs {
		if obj.IsDir || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		page.Objects = append(page.Objects, Object{
			Key:     obj.Key,
			Size:    obj.Size,
			ModTime: obj.ModTime,
		})
	}
	return page, nil
}

// Open opens the content of key for reading.
func (s *BucketSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.bucket.NewReader(ctx, key, nil)
}

// lister walks a paginated listing one object at a time.
type lister struct {
	src    Source
	prefix string
	token  string
	page   []Object
	done   bool
}

func newLister(src Source, prefix string) *lister {
	return &lister{src: src, prefix: prefix}
}

// next returns the next object, or false once the listing is exhausted.
func (l *lister) next(ctx context.Context) (Object, bool, error) {
	for len(l.page) == 0 {
		if l.done {
			return Object{}, false, nil
		}
		page, err := l.src.List(ctx, l.prefix, l.token)
		if err != nil {
			return Object{}, false, err
		}
		if page == nil {
			l.done = true
			continue
		}
		l.page = page.Objects
		l.token = page.NextToken
		if page.NextToken == "" {
			l.done = true
		}
	}

	obj := l.page[0]
	l.page = l.page[1:]
	return obj, true, nil
}
