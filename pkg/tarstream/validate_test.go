package tarstream

import (
	"context"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gocloud.dev/blob"
)

const manifestKey = "backup/manifest.json"

// archiveToBucket archives six 1000-byte objects, three per chunk, into
// bucket and stores the manifest.
func archiveToBucket(t *testing.T, bucket *blob.Bucket) *Manifest {
	t.Helper()

	ctx := context.Background()
	src := &fakeSource{objects: sizedObjects("data/", 6, 1000)}
	a := New(src, WithSizeCeiling(3*EntrySize("obj-0000.bin", 1000)))

	m, err := a.Archive(ctx, "data/", BucketSinks(bucket, "backup/data_{}.tar"))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := WriteManifest(ctx, bucket, manifestKey, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	return m
}

func TestBucketSinksAndManifest(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, nil)
	m := archiveToBucket(t, bucket)

	if len(m.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(m.Chunks))
	}
	for i, c := range m.Chunks {
		if want := ChunkName("backup/data_{}.tar", i+1); c.Name != want {
			t.Errorf("chunk %d: expected %s, got %s", i, want, c.Name)
		}

		r, err := bucket.NewReader(ctx, c.Name, nil)
		if err != nil {
			t.Fatalf("open %s: %v", c.Name, err)
		}
		entries := readTar(t, r)
		r.Close()
		if len(entries) != 3 {
			t.Errorf("%s: expected 3 entries, got %d", c.Name, len(entries))
		}
	}

	got, err := ReadManifest(ctx, bucket, manifestKey)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if diff := cmp.Diff(m, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("manifest round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAbortedBucketChunkIsNotCommitted(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, nil)

	src := &fakeSource{objects: []fakeObject{
		{Object: Object{Key: "d/short", Size: 1000}, served: 10},
	}}
	if _, err := New(src).Archive(ctx, "d/", BucketSinks(bucket, "out_{}.tar")); err == nil {
		t.Fatal("expected short read error")
	}

	exists, err := bucket.Exists(ctx, "out_1.tar")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("aborted chunk should not be committed")
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, nil)
	archiveToBucket(t, bucket)

	result, err := Validate(ctx, bucket, manifestKey)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := &ValidationResult{Valid: true, ChunkCount: 2, Entries: 6, Errors: []string{}}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateDetectsProblems(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, nil)
	archiveToBucket(t, bucket)

	if err := bucket.Delete(ctx, "backup/data_1.tar"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := bucket.WriteAll(ctx, "backup/data_2.tar", []byte("truncated"), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	result, err := Validate(ctx, bucket, manifestKey)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result")
	}
	if result.MissingChunks != 1 || result.SizeMismatches != 1 {
		t.Errorf("expected 1 missing and 1 mismatch, got %d and %d", result.MissingChunks, result.SizeMismatches)
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", result.Errors)
	}
}

func TestValidateMissingManifest(t *testing.T) {
	bucket := newTestBucket(t, nil)
	if _, err := Validate(context.Background(), bucket, "nope.json"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, map[string][]byte{"keep/me.txt": []byte("x")})
	archiveToBucket(t, bucket)

	// Already gone chunks are fine.
	if err := bucket.Delete(ctx, "backup/data_2.tar"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := Delete(ctx, bucket, manifestKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var left []string
	iter := bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		left = append(left, obj.Key)
	}
	if diff := cmp.Diff([]string{"keep/me.txt"}, left); diff != "" {
		t.Errorf("remaining objects mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveOneEmptyListing(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t, nil)

	m, err := New(&fakeSource{}).ArchiveOne(ctx, "none/", BucketSinks(bucket, "empty.tar"))
	if err != nil {
		t.Fatalf("ArchiveOne: %v", err)
	}
	if len(m.Chunks) != 1 || m.Chunks[0].Entries != 0 {
		t.Fatalf("expected one empty chunk, got %+v", m.Chunks)
	}

	data, err := bucket.ReadAll(ctx, "empty.tar")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 2*BlockSize {
		t.Errorf("expected %d bytes, got %d", 2*BlockSize, len(data))
	}
}
