package tarstream

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ValidationResult contains the results of validating stored archives.
type ValidationResult struct {
	Valid          bool     // true if all archives exist and sizes match
	ChunkCount     int      // number of archives in the manifest
	Entries        int      // total entries recorded in the manifest
	MissingChunks  int      // number of archives that don't exist
	SizeMismatches int      // number of archives with the wrong size
	Errors         []string // detailed error messages
}

// Validate checks that every archive listed in the manifest stored at
// manifestKey exists in bucket with the recorded size. Only object
// attributes are read, never archive contents.
//
// Missing archives and size mismatches are reported in the result with
// Valid=false. An error is returned only when the manifest cannot be read or
// the bucket cannot be queried.
func Validate(ctx context.Context, bucket *blob.Bucket, manifestKey string) (*ValidationResult, error) {
	m, err := ReadManifest(ctx, bucket, manifestKey)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Valid:      true,
		ChunkCount: len(m.Chunks),
		Entries:    m.Entries(),
		Errors:     make([]string, 0),
	}

	for _, c := range m.Chunks {
		attrs, err := bucket.Attributes(ctx, c.Name)
		if err != nil {
			if isNotExist(err) {
				result.Valid = false
				result.MissingChunks++
				result.Errors = append(result.Errors,
					fmt.Sprintf("chunk %d missing: %s", c.Index, c.Name))
				continue
			}
			return nil, fmt.Errorf("tarstream: check chunk %d: %w", c.Index, err)
		}

		if attrs.Size != c.Size {
			result.Valid = false
			result.SizeMismatches++
			result.Errors = append(result.Errors,
				fmt.Sprintf("chunk %d size mismatch: expected %d, got %d", c.Index, c.Size, attrs.Size))
		}
	}

	return result, nil
}

// Delete removes every archive listed in the manifest stored at manifestKey,
// then the manifest itself. Archives that are already gone are ignored.
func Delete(ctx context.Context, bucket *blob.Bucket, manifestKey string) error {
	m, err := ReadManifest(ctx, bucket, manifestKey)
	if err != nil {
		return err
	}

	for _, c := range m.Chunks {
		if err := bucket.Delete(ctx, c.Name); err != nil && !isNotExist(err) {
			return fmt.Errorf("tarstream: delete chunk %s: %w", c.Name, err)
		}
	}

	if err := bucket.Delete(ctx, manifestKey); err != nil {
		return fmt.Errorf("tarstream: delete manifest: %w", err)
	}
	return nil
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
