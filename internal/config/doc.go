// Package config defines configuration structures for the objtar CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (OBJTAR_ prefix)
//   - YAML configuration file
//
// Flags override the environment, which overrides the file.
//
// # Example
//
//	bucket: s3://exports?region=eu-west-1
//	prefix: data/2025/
//	output: backups/data_{}.tar.zst
//	output_bucket: gs://archive-bucket
//	compression: zst
//	chunked: true
//	max_size: 20GiB
//	manifest: backups/data.manifest.json
package config
