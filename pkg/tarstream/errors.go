package tarstream

import "errors"

// Errors identifying the stage an archiving run failed in. Match them with
// errors.Is.
var (
	// ErrListing is returned when a listing page cannot be fetched. Fatal.
	ErrListing = errors.New("tarstream: listing failed")

	// ErrInvalidPath marks a key that cannot be mapped to a safe archive
	// path. The object is skipped.
	ErrInvalidPath = errors.New("tarstream: invalid archive path")

	// ErrOpenReader marks an object whose content could not be opened. The
	// object is skipped.
	ErrOpenReader = errors.New("tarstream: open object failed")

	// ErrEntryWrite is returned when an entry cannot be written in full,
	// including when the object yields fewer or more bytes than its declared
	// size. Fatal.
	ErrEntryWrite = errors.New("tarstream: write entry failed")

	// ErrCompressionFinalize is returned when the compression trailer cannot
	// be flushed. Fatal.
	ErrCompressionFinalize = errors.New("tarstream: finalize compression failed")

	// ErrOutput is returned when an output archive cannot be created or
	// committed. Fatal.
	ErrOutput = errors.New("tarstream: output failed")
)
