package texport

import (
	"fmt"
	"log/slog"
	"os"
)

// WithSandbox creates a fresh directory under base (os.TempDir() when
// empty) named after jobID, runs fn with its path and removes it on every
// exit path, panics included. Removal failures are logged and never replace
// the result of fn.
func WithSandbox(base, jobID string, logger *slog.Logger, fn func(dir string) error) error {
	if base == "" {
		base = os.TempDir()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir, err := os.MkdirTemp(base, "texport-"+jobID+"-*")
	if err != nil {
		return &StageError{Stage: StageSandbox, Err: fmt.Errorf("%w: %v", ErrSandbox, err)}
	}

	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("sandbox cleanup failed", "dir", dir, "error", err)
			return
		}
		logger.Debug("sandbox removed", "dir", dir)
	}()

	return fn(dir)
}
