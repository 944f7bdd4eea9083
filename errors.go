package texport

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for library operations.
var (
	ErrEmptySource       = errors.New("source is required")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidFilename   = errors.New("invalid filename")

	// Orchestrator errors.
	ErrSandbox         = errors.New("sandbox unavailable")
	ErrConverterSpawn  = errors.New("converter could not be started")
	ErrConversion      = errors.New("conversion failed")
	ErrEmptyOutput     = errors.New("converter produced no output")
	ErrInvalidArtifact = errors.New("output is not a valid document")

	// Browser backend errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
)

// Stage names the step of an export job that failed.
type Stage string

// Export stages, in execution order.
const (
	StageSandbox Stage = "sandbox"
	StagePrepare Stage = "prepare"
	StageWrite   Stage = "write"
	StageSpawn   Stage = "spawn"
	StageConvert Stage = "convert"
	StageOutput  Stage = "output"
)

// StageError reports which stage of an export job failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or "" when err does not
// come from an export job.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// StackTrace returns the stack recorded when an export job failed, or ""
// when err carries none.
func StackTrace(err error) string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}
