package main

import (
	"errors"
	"os"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/codec"
	"github.com/alnah/go-texport/internal/config"
	"github.com/alnah/go-texport/internal/latex"
)

// Exit codes for the texport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Command completed
	ExitGeneral   = 1 // General/unexpected error
	ExitUsage     = 2 // Invalid flags, config, or validation
	ExitIO        = 3 // File not found, permission denied
	ExitBrowser   = 4 // Browser/Chrome errors
	ExitConverter = 5 // pandoc missing or failed
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, texport.ErrBrowserConnect) ||
		errors.Is(err, texport.ErrPageCreate) ||
		errors.Is(err, texport.ErrPageLoad) ||
		errors.Is(err, texport.ErrPDFGeneration) {
		return ExitBrowser
	}

	if errors.Is(err, texport.ErrConverterSpawn) ||
		errors.Is(err, texport.ErrConversion) ||
		errors.Is(err, texport.ErrEmptyOutput) ||
		errors.Is(err, texport.ErrInvalidArtifact) {
		return ExitConverter
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrReadProject) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, texport.ErrSandbox) {
		return ExitIO
	}

	if errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrInvalidEngine) ||
		errors.Is(err, ErrBadProject) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, codec.ErrUnknownFormat) ||
		errors.Is(err, codec.ErrUnknownKeys) ||
		errors.Is(err, latex.ErrUnknownTarget) ||
		errors.Is(err, texport.ErrEmptySource) ||
		errors.Is(err, texport.ErrUnsupportedFormat) ||
		errors.Is(err, texport.ErrInvalidFilename) ||
		errors.Is(err, texport.ErrInvalidPageSize) ||
		errors.Is(err, texport.ErrInvalidOrientation) ||
		errors.Is(err, texport.ErrInvalidMargin) ||
		errors.Is(err, errFlagParse) {
		return ExitUsage
	}

	return ExitGeneral
}
