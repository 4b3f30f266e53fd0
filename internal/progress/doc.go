// Package progress reports archiving progress on the terminal.
//
// A Reporter is registered with the archiver as its observer and prints a
// status line at a fixed interval.
//
//	reporter := progress.NewReporter(progress.Options{Source: "s3://bucket/data/"})
//	reporter.Start()
//	defer reporter.Stop()
//
//	archiver := tarstream.New(src, tarstream.WithObserver(reporter))
//
// # Output Format
//
//	[objtar] Archiving: s3://bucket/data/
//	[objtar] Objects: 48210 | 1.1 TiB | Chunks: 57 | Skipped: 2 | Speed: 1.2 GiB/s
//	[objtar] Written: 310 GiB | Total time: 18m 32s | Average speed: 1.0 GiB/s
package progress
