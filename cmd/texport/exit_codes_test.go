package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/codec"
	"github.com/alnah/go-texport/internal/config"
	"github.com/alnah/go-texport/internal/latex"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		{"browser connect", texport.ErrBrowserConnect, ExitBrowser},
		{"page load", texport.ErrPageLoad, ExitBrowser},
		{"pdf generation", texport.ErrPDFGeneration, ExitBrowser},
		{"stage wrapped browser", &texport.StageError{Stage: texport.StageSpawn, Err: texport.ErrBrowserConnect}, ExitBrowser},

		{"converter spawn", texport.ErrConverterSpawn, ExitConverter},
		{"conversion", fmt.Errorf("%w: exit 43", texport.ErrConversion), ExitConverter},
		{"empty output", texport.ErrEmptyOutput, ExitConverter},
		{"invalid artifact", texport.ErrInvalidArtifact, ExitConverter},
		{"timeout", fmt.Errorf("%w: pandoc interrupted: %w", texport.ErrConversion, context.DeadlineExceeded), ExitConverter},

		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"no input", ErrNoInput, ExitIO},
		{"read project", ErrReadProject, ExitIO},
		{"write output", fmt.Errorf("%w: disk full", ErrWriteOutput), ExitIO},
		{"sandbox", &texport.StageError{Stage: texport.StageSandbox, Err: texport.ErrSandbox}, ExitIO},

		{"unknown command", ErrUnknownCommand, ExitUsage},
		{"invalid engine", ErrInvalidEngine, ExitUsage},
		{"bad project", ErrBadProject, ExitUsage},
		{"flag parse", errFlagParse, ExitUsage},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", fmt.Errorf("loading: %w", config.ErrConfigParse), ExitUsage},
		{"invalid value", config.ErrInvalidValue, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"unknown keys", codec.ErrUnknownKeys, ExitUsage},
		{"unknown target", latex.ErrUnknownTarget, ExitUsage},
		{"empty source", texport.ErrEmptySource, ExitUsage},
		{"unsupported format", texport.ErrUnsupportedFormat, ExitUsage},
		{"invalid filename", texport.ErrInvalidFilename, ExitUsage},
		{"invalid page size", texport.ErrInvalidPageSize, ExitUsage},
		{"invalid margin", texport.ErrInvalidMargin, ExitUsage},

		{"unknown error", errors.New("something else"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodeConstants(t *testing.T) {
	t.Parallel()

	codes := []int{ExitSuccess, ExitGeneral, ExitUsage, ExitIO, ExitBrowser, ExitConverter}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code %d", c)
		}
		seen[c] = true
		if c >= 126 {
			t.Errorf("exit code %d collides with shell-reserved codes", c)
		}
	}
	if ExitSuccess != 0 || ExitGeneral != 1 || ExitUsage != 2 {
		t.Error("exit codes 0, 1, 2 must keep their Unix meanings")
	}
}
