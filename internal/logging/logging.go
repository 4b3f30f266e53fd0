// Package logging builds the zap logger used by the objtar CLI.
package logging

import (
	"go.uber.org/zap"
)

// New returns a logger writing to outputPath ("stderr" when empty). Debug
// selects a human-readable development encoder at debug level; otherwise
// JSON at info level is used.
func New(outputPath string, debug bool) (*zap.Logger, error) {
	if outputPath == "" {
		outputPath = "stderr"
	}

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.Sampling = nil
	}
	config.OutputPaths = []string{outputPath}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}
