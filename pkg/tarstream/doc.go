// Package tarstream streams objects from cloud storage into TAR archives.
//
// Objects listed under a key prefix are written one after another into a
// TAR stream, optionally compressed. Nothing is staged on local disk and at
// most one copy buffer of payload is held in memory. Listings are paginated,
// so prefixes with more objects than fit in memory are fine.
//
// # Archiving
//
// Create an [Archiver] with [New] around a [Source] (usually a
// [BucketSource]), then call one of:
//   - [Archiver.StreamTo]: a single archive written to an io.Writer
//   - [Archiver.ArchiveToFile]: a single archive written to a local file
//   - [Archiver.ArchiveToFiles]: size-limited chunks written to local files
//   - [Archiver.ArchiveOne]: a single archive written to any [Sinks]
//   - [Archiver.Archive]: size-limited chunks written to any [Sinks]
//
// Options:
//   - [WithStripPrefix]: Store paths relative to the prefix (default true)
//   - [WithCompression]: none, gz, bz2, xz, zst or lz4
//   - [WithSizeCeiling]: Maximum uncompressed bytes per chunk (default 20 GiB)
//   - [WithBufferSize]: Copy buffer size (default 1 MiB)
//   - [WithChecksum]: Record a sha256 per chunk (default true)
//   - [WithLogger], [WithObserver]: Logging and progress
//
// # Chunking
//
// Before each entry the archiver estimates its size with [EntrySize] and
// starts a new chunk if the entry would take the current one past the
// ceiling ([ShouldRotate]). The estimate rounds up to whole 512-byte blocks,
// so chunks never exceed the ceiling, except a chunk holding a single object
// that is larger than the ceiling on its own. Objects are never split.
// The ceiling applies to uncompressed bytes even when compression is on.
//
// # Errors
//
// Objects whose key cannot be turned into a safe path ([ErrInvalidPath]) or
// whose content cannot be opened ([ErrOpenReader]) are skipped and recorded
// in [Manifest.Skipped]. Listing failures ([ErrListing]), payloads that do
// not match their declared size ([ErrEntryWrite]) and output failures
// ([ErrCompressionFinalize], [ErrOutput]) abort the run. The manifest
// returned alongside the error lists the chunks completed before it.
//
// # Manifest Format
//
//	{
//	  "prefix": "data/exports/",
//	  "compression": "gz",
//	  "size_ceiling": 21474836480,
//	  "chunks": [
//	    {"index": 1, "name": "exports_1.tar.gz", "entries": 812,
//	     "tar_bytes": 21474000896, "size": 3120539014, "checksum": "..."},
//	    ...
//	  ],
//	  "skipped": [{"key": "data/exports/../x", "reason": "..."}],
//	  "completed_at": "2025-01-15T10:30:00Z"
//	}
package tarstream
