package texport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/alnah/go-texport/internal/fileutil"
	"github.com/alnah/go-texport/internal/latex"
	"github.com/alnah/go-texport/internal/resources"
)

// State is a step in the life of an export job.
type State string

// Job states. Every job ends in StateCleanedUp.
const (
	StateCreated       State = "created"
	StateSandboxReady  State = "sandbox_ready"
	StateSourceWritten State = "source_written"
	StateConverting    State = "converting"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateCleanedUp     State = "cleaned_up"
)

// resourcePreparer localizes remote images of a source into a directory.
type resourcePreparer interface {
	Prepare(ctx context.Context, markup, dir string) (resources.Prepared, error)
}

// Exporter converts LaTeX sources to DOCX or PDF. Each call to Export runs
// in its own sandbox directory; an Exporter may be shared between
// goroutines as long as its converter is.
type Exporter struct {
	cfg       exporterConfig
	logger    *slog.Logger
	converter Converter
	fetch     *resources.Preparer
	preparer  resourcePreparer
	newID     func() string
}

// NewExporter creates an Exporter backed by pandoc on PATH unless
// WithConverter says otherwise.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		cfg:    exporterConfig{timeout: defaultTimeout},
		logger: slog.New(slog.DiscardHandler),
		fetch:  &resources.Preparer{},
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.converter == nil {
		e.converter = NewPandocConverter(DefaultPandocBinary)
	}
	e.fetch.Logger = e.logger
	if e.preparer == nil {
		e.preparer = e.fetch
	}
	return e
}

// Export runs one job: sandbox, image fetch, sanitize, write, convert,
// verify, cleanup. Failures are *StageError values carrying a stack trace
// (see StackTrace). Panics inside the job are recovered into an error.
func (e *Exporter) Export(ctx context.Context, req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = pkgerrors.WithStack(fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.timeout)
	defer cancel()

	job := &Job{ID: e.newID(), Format: req.Format}
	log := e.logger.With("job", job.ID, "format", string(req.Format))
	start := time.Now()
	log.Debug("job state", "state", StateCreated)

	err = WithSandbox(e.cfg.sandboxBase, job.ID, log, func(dir string) error {
		job.Dir = dir
		job.SourcePath = filepath.Join(dir, sourceFileName)
		job.OutputPath = filepath.Join(dir, outputBaseName+"."+req.Format.Extension())
		log.Debug("job state", "state", StateSandboxReady, "dir", dir)

		source, failed, err := e.writeSource(ctx, job, req)
		if err != nil {
			return err
		}
		log.Debug("job state", "state", StateSourceWritten, "resources", len(job.Resources), "failed_images", len(failed))

		log.Debug("job state", "state", StateConverting)
		data, err := e.convert(ctx, job)
		if err != nil {
			return err
		}

		filename, _ := SafeFilename(req.Filename, req.Format)
		result = &Result{
			Data:     data,
			MIMEType: req.Format.MIMEType(),
			Filename: filename,
			Source:   source,
			Failed:   failed,
		}
		return nil
	})

	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Debug("job state", "state", StateFailed)
		log.Debug("job state", "state", StateCleanedUp)
		log.Error("export failed", "stage", string(FailedStage(err)), "error", err, "duration_ms", duration)
		return nil, pkgerrors.WithStack(err)
	}

	log.Debug("job state", "state", StateSucceeded)
	log.Debug("job state", "state", StateCleanedUp)
	log.Info("export succeeded", "bytes", len(result.Data), "duration_ms", duration)
	return result, nil
}

// writeSource localizes images, strips bibliography directives and writes
// the source (plus bibliography) into the sandbox.
func (e *Exporter) writeSource(ctx context.Context, job *Job, req Request) (string, []string, error) {
	prepared, err := e.preparer.Prepare(ctx, req.Source, job.Dir)
	if err != nil {
		return "", nil, &StageError{Stage: StagePrepare, Err: err}
	}
	job.Resources = prepared.Files

	source := latex.Sanitize(prepared.Markup)
	if _, err := fileutil.WriteFileIn(job.Dir, sourceFileName, []byte(source)); err != nil {
		return "", nil, &StageError{Stage: StageWrite, Err: err}
	}

	if req.Bibliography != "" {
		path, err := fileutil.WriteFileIn(job.Dir, bibliographyFileName, []byte(req.Bibliography))
		if err != nil {
			return "", nil, &StageError{Stage: StageWrite, Err: err}
		}
		job.BibliographyPath = path
	}
	return source, prepared.Failed, nil
}

// convert runs the converter and maps its failure to a stage.
func (e *Exporter) convert(ctx context.Context, job *Job) ([]byte, error) {
	data, err := e.converter.Convert(ctx, job)
	switch {
	case err == nil:
	case errors.Is(err, ErrConverterSpawn), errors.Is(err, ErrBrowserConnect):
		return nil, &StageError{Stage: StageSpawn, Err: err}
	case errors.Is(err, ErrEmptyOutput):
		return nil, &StageError{Stage: StageOutput, Err: err}
	default:
		return nil, &StageError{Stage: StageConvert, Err: err}
	}

	if len(data) == 0 {
		return nil, &StageError{Stage: StageOutput, Err: ErrEmptyOutput}
	}
	if e.cfg.verify {
		if err := VerifyArtifact(job.Format, job.OutputPath); err != nil {
			return nil, &StageError{Stage: StageOutput, Err: err}
		}
	}
	return data, nil
}

// Close releases resources held by the converter, such as a browser.
func (e *Exporter) Close() error {
	if c, ok := e.converter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
