package tarstream

import (
	"archive/tar"
	"io"
	"strings"
	"testing"
	"time"
)

func TestEntrySize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int64
	}{
		{"empty.txt", 0, 512},
		{"one.txt", 1, 1024},
		{"block.bin", 512, 1024},
		{"kib.bin", 1024, 1536},
		{"odd.bin", 1000, 1536},
	}

	for _, tt := range tests {
		if got := EntrySize(tt.name, tt.size); got != tt.want {
			t.Errorf("EntrySize(%q, %d) = %d, want %d", tt.name, tt.size, got, tt.want)
		}
	}
}

// EntrySize must never be below what archive/tar actually writes.
func TestEntrySizeCoversTarOutput(t *testing.T) {
	names := []string{
		"a.txt",
		strings.Repeat("d/", 49) + "file.txt",
		strings.Repeat("long-segment/", 20) + "file.txt",
		"ünïcödé/ファイル.txt",
		strings.Repeat("x", 300),
	}
	sizes := []int64{0, 1, 511, 512, 513, 4096}

	for _, name := range names {
		for _, size := range sizes {
			cw := &countingWriter{w: io.Discard}
			tw := tar.NewWriter(cw)
			obj := Object{Key: name, Size: size, ModTime: time.Now()}
			if err := writeEntry(tw, name, obj, patternReader{}, make([]byte, 64)); err == nil {
				t.Fatalf("expected long-read error for unbounded reader")
			}

			cw = &countingWriter{w: io.Discard}
			tw = tar.NewWriter(cw)
			r := io.LimitReader(patternReader{}, size)
			if err := writeEntry(tw, name, obj, r, make([]byte, 64)); err != nil {
				t.Fatalf("writeEntry(%q, %d): %v", name, size, err)
			}
			if est := EntrySize(name, size); est < cw.n {
				t.Errorf("EntrySize(%q, %d) = %d, archive/tar wrote %d", name, size, est, cw.n)
			}
		}
	}
}

func TestShouldRotate(t *testing.T) {
	const ceiling = 8 * 1024 * 1024

	tests := []struct {
		name    string
		written int64
		entries int
		next    int64
		ceiling int64
		want    bool
	}{
		{"empty chunk never rotates", 0, 0, 20 * 1024 * 1024, ceiling, false},
		{"fits", 1024, 1, 4096, ceiling, false},
		{"fits exactly", ceiling - 4096, 3, 4096, ceiling, false},
		{"one byte over", ceiling - 4095, 3, 4096, ceiling, true},
		{"chunk already over ceiling", ceiling + 512, 1, 512, ceiling, true},
		{"unlimited", 1 << 62, 1000, 1 << 62, Unlimited, false},
		{"unlimited nearly full", Unlimited - 10, 5, 1 << 40, Unlimited, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRotate(tt.written, tt.entries, tt.next, tt.ceiling); got != tt.want {
				t.Errorf("ShouldRotate(%d, %d, %d, %d) = %v, want %v",
					tt.written, tt.entries, tt.next, tt.ceiling, got, tt.want)
			}
		})
	}
}

