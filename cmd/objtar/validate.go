package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
	"gocloud.dev/blob"

	"github.com/ligustah/objtar/pkg/tarstream"
)

// validateCommand checks that every archive in a manifest exists with the
// recorded size. Archive contents are not read.
func validateCommand(std streams) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Verify all archives in a manifest exist and sizes match",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Bucket URL holding the archives (required)"},
			&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Manifest key (required)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			bucketURL, manifest := cmd.String("bucket"), cmd.String("manifest")
			if bucketURL == "" || manifest == "" {
				return exitWith(ExitInvalidArgs, errors.New("--bucket and --manifest are required"))
			}

			bkt, err := blob.OpenBucket(ctx, bucketURL)
			if err != nil {
				return exitWith(ExitStorageError, fmt.Errorf("open bucket: %w", err))
			}
			defer bkt.Close()

			result, err := tarstream.Validate(ctx, bkt, manifest)
			if err != nil {
				return exitWith(ExitStorageError, err)
			}

			fmt.Fprintf(std.out, "Manifest: %s\n", manifest)
			fmt.Fprintf(std.out, "Archives: %d\n", result.ChunkCount)
			fmt.Fprintf(std.out, "Entries: %d\n", result.Entries)

			if result.Valid {
				fmt.Fprintln(std.out, "Status: VALID")
				return nil
			}

			fmt.Fprintln(std.out, "Status: INVALID")
			fmt.Fprintf(std.out, "Missing archives: %d\n", result.MissingChunks)
			fmt.Fprintf(std.out, "Size mismatches: %d\n", result.SizeMismatches)
			if len(result.Errors) > 0 {
				fmt.Fprintln(std.out, "\nErrors:")
				for _, e := range result.Errors {
					fmt.Fprintf(std.out, "  - %s\n", e)
				}
			}

			return exitWith(ExitValidationFailed, errors.New("validation failed"))
		},
	}
}
