//go:build integration

package main

import (
	"archive/tar"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ligustah/objtar/internal/testutils"
	"github.com/ligustah/objtar/pkg/tarstream"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinio(t, ctx, "exports", "archives")

	// Enough objects to need several listing pages and several chunks.
	objs := testutils.PatternObjects("source/", 40, 64*1024)
	minio.Seed(t, ctx, "exports", objs)
	archives := minio.Open(t, ctx, "archives")

	t.Run("stream_to_file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "source.tar")
		r := runCLI(t, "", "archive", "-b", minio.URL("exports"), "-p", "source/", "-o", out, "--page-size", "7")
		if r.code != ExitSuccess {
			t.Fatalf("archive failed with exit code %d: %s", r.code, r.stderr.String())
		}
	})

	t.Run("chunked_to_bucket", func(t *testing.T) {
		r := runCLI(t, "", "archive",
			"-b", minio.URL("exports"), "-p", "source/",
			"--output-bucket", minio.URL("archives"),
			"-o", "source_{}.tar.zst", "-c", "zst",
			"--chunked", "--max-size", "512KiB", "--page-size", "7",
			"--manifest", "manifest.json",
		)
		if r.code != ExitSuccess {
			t.Fatalf("archive failed with exit code %d: %s", r.code, r.stderr.String())
		}

		m, err := tarstream.ReadManifest(ctx, archives, "manifest.json")
		if err != nil {
			t.Fatalf("ReadManifest: %v", err)
		}
		if len(m.Chunks) < 2 {
			t.Fatalf("expected several chunks, got %d", len(m.Chunks))
		}
		if m.Entries() != len(objs) {
			t.Fatalf("expected %d entries, got %d", len(objs), m.Entries())
		}

		// Entries come back in listing order across chunk boundaries.
		next := 0
		for _, c := range m.Chunks {
			rc, err := archives.NewReader(ctx, c.Name, nil)
			if err != nil {
				t.Fatalf("open %s: %v", c.Name, err)
			}
			zr, err := zstd.NewReader(rc)
			if err != nil {
				t.Fatalf("zstd: %v", err)
			}
			tr := tar.NewReader(zr)
			for {
				hdr, err := tr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("%s: %v", c.Name, err)
				}
				if want := objs[next].Key[len("source/"):]; hdr.Name != want {
					t.Fatalf("entry %d: expected %s, got %s", next, want, hdr.Name)
				}
				testutils.AssertContent(t, hdr.Name, tr, objs[next].Data)
				next++
			}
			zr.Close()
			rc.Close()
		}
	})

	t.Run("validate", func(t *testing.T) {
		r := runCLI(t, "", "validate", "-b", minio.URL("archives"), "-m", "manifest.json")
		if r.code != ExitSuccess {
			t.Fatalf("validate failed with exit code %d: %s", r.code, r.stdout.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		r := runCLI(t, "", "delete", "-b", minio.URL("archives"), "-m", "manifest.json", "--force")
		if r.code != ExitSuccess {
			t.Fatalf("delete failed with exit code %d: %s", r.code, r.stderr.String())
		}
		exists, err := archives.Exists(ctx, "manifest.json")
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists {
			t.Error("manifest still exists after delete")
		}
	})
}
