package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
	"gocloud.dev/blob"

	"github.com/ligustah/objtar/pkg/tarstream"
)

// deleteCommand removes the archives listed in a manifest and then the
// manifest. It asks for confirmation unless --force is given.
func deleteCommand(std streams) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Remove all archives in a manifest and the manifest itself",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Bucket URL holding the archives (required)"},
			&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Manifest key (required)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip confirmation prompt"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			bucketURL, manifest := cmd.String("bucket"), cmd.String("manifest")
			if bucketURL == "" || manifest == "" {
				return exitWith(ExitInvalidArgs, errors.New("--bucket and --manifest are required"))
			}

			if !cmd.Bool("force") {
				fmt.Fprintf(std.out, "Delete archives of %s from %s? [y/N]: ", manifest, bucketURL)
				response, _ := bufio.NewReader(std.in).ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(std.err, "Cancelled")
					return nil
				}
			}

			bkt, err := blob.OpenBucket(ctx, bucketURL)
			if err != nil {
				return exitWith(ExitStorageError, fmt.Errorf("open bucket: %w", err))
			}
			defer bkt.Close()

			if err := tarstream.Delete(ctx, bkt, manifest); err != nil {
				return exitWith(ExitStorageError, err)
			}

			fmt.Fprintf(std.err, "[objtar] Deleted: %s from %s\n", manifest, bucketURL)
			return nil
		},
	}
}
