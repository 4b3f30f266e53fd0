package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitSourceNotAccess  = 3
	ExitStorageError     = 4
	ExitValidationFailed = 5
	ExitInterrupted      = 130
)

// exitError carries the exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// streams are the process's standard streams, swapped out in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[objtar] Received interrupt, shutting down...")
		cancel()
	}()

	os.Exit(run(ctx, os.Args, streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}))
}

func run(ctx context.Context, args []string, std streams) int {
	cmd := &cli.Command{
		Name:      "objtar",
		Usage:     "Stream object storage prefixes into TAR archives",
		Writer:    std.err,
		ErrWriter: std.err,
		Commands: []*cli.Command{
			archiveCommand(std),
			validateCommand(std),
			deleteCommand(std),
		},
	}

	err := cmd.Run(ctx, args)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(std.err, "Error: %v\n", err)

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		// Flag parsing and usage errors from the cli package.
		return ExitInvalidArgs
	}
}
