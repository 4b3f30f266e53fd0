package tarstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
)

// Manifest describes the archives produced by one run, in the order they
// were closed.
type Manifest struct {
	Prefix      string          `json:"prefix"`
	Compression Compression     `json:"compression"`
	SizeCeiling int64           `json:"size_ceiling"`
	Chunks      []ChunkInfo     `json:"chunks"`
	Skipped     []SkippedObject `json:"skipped,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ChunkInfo describes a single completed archive.
type ChunkInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Entries int    `json:"entries"`

	// TarBytes is the uncompressed size of the entries, excluding the
	// end-of-archive marker. It is the quantity the size ceiling bounds.
	TarBytes int64 `json:"tar_bytes"`

	// Size is the number of bytes written to the output.
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// SkippedObject records an object left out of the archives.
type SkippedObject struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Entries returns the total number of entries across all archives.
func (m *Manifest) Entries() int {
	var n int
	for _, c := range m.Chunks {
		n += c.Entries
	}
	return n
}

// EncodeManifest writes m to w as indented JSON.
func EncodeManifest(w io.Writer, m *Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("tarstream: encode manifest: %w", err)
	}
	return nil
}

// WriteManifest stores m as JSON under key in bucket.
func WriteManifest(ctx context.Context, bucket *blob.Bucket, key string, m *Manifest) error {
	var buf bytes.Buffer
	if err := EncodeManifest(&buf, m); err != nil {
		return err
	}
	data := buf.Bytes()
	if err := bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("tarstream: write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest stored by WriteManifest.
func ReadManifest(ctx context.Context, bucket *blob.Bucket, key string) (*Manifest, error) {
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("tarstream: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tarstream: unmarshal manifest: %w", err)
	}
	return &m, nil
}
