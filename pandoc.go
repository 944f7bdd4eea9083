package texport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-texport/internal/process"
)

// DefaultPandocBinary is looked up on PATH when no binary is configured.
const DefaultPandocBinary = "pandoc"

// waitDelay bounds how long Run waits for output pipes after the converter
// was killed.
const waitDelay = 5 * time.Second

// Converter turns the sandboxed source of a job into document bytes.
type Converter interface {
	Convert(ctx context.Context, job *Job) ([]byte, error)
}

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec. Canceling ctx kills
// the command and every process it started.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	process.Prepare(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// PandocConverter converts LaTeX by invoking the pandoc CLI inside the job
// sandbox.
type PandocConverter struct {
	Runner    CommandRunner
	Binary    string // defaults to DefaultPandocBinary
	PDFEngine string // passed as --pdf-engine for PDF targets when set
}

// NewPandocConverter creates a PandocConverter with a real command runner.
func NewPandocConverter(binary string) *PandocConverter {
	return &PandocConverter{Runner: ExecRunner{}, Binary: binary}
}

// Args returns the pandoc command line for job.
func (c *PandocConverter) Args(job *Job) []string {
	args := []string{
		job.SourcePath,
		"-f", "latex",
		"-t", job.Format.writer(),
		"--standalone",
		"--wrap=none",
		"--citeproc",
		"--number-sections",
		"--resource-path=" + job.Dir,
		"-o", job.OutputPath,
	}
	if job.BibliographyPath != "" {
		args = append(args, "--bibliography="+job.BibliographyPath)
	}
	if job.Format == FormatPDF && c.PDFEngine != "" {
		args = append(args, "--pdf-engine="+c.PDFEngine)
	}
	return args
}

// Convert runs pandoc and reads the output file it wrote.
func (c *PandocConverter) Convert(ctx context.Context, job *Job) ([]byte, error) {
	_, stderr, err := c.runner().Run(ctx, job.Dir, c.binary(), c.Args(job)...)
	if err != nil {
		return nil, c.runError(ctx, stderr, err)
	}
	return readOutput(job.OutputPath)
}

// ToHTML converts the job source to an HTML fragment on stdout. The
// browser backend renders that fragment.
func (c *PandocConverter) ToHTML(ctx context.Context, job *Job) (string, error) {
	args := []string{
		job.SourcePath,
		"-f", "latex",
		"-t", "html5",
		"--wrap=none",
		"--citeproc",
		"--number-sections",
		"--mathml",
		"--resource-path=" + job.Dir,
	}
	if job.BibliographyPath != "" {
		args = append(args, "--bibliography="+job.BibliographyPath)
	}

	stdout, stderr, err := c.runner().Run(ctx, job.Dir, c.binary(), args...)
	if err != nil {
		return "", c.runError(ctx, stderr, err)
	}
	if strings.TrimSpace(stdout) == "" {
		return "", ErrEmptyOutput
	}
	return stdout, nil
}

// runError separates a converter that never started from one that ran and
// failed. Only the latter has an exit code.
func (c *PandocConverter) runError(ctx context.Context, stderr string, err error) error {
	name := filepath.Base(c.binary())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s interrupted: %w", ErrConversion, name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with code %d: %s",
			ErrConversion, name, exitErr.ExitCode(), strings.TrimSpace(stderr))
	}
	return fmt.Errorf("%w: %s: %v", ErrConverterSpawn, name, err)
}

func (c *PandocConverter) runner() CommandRunner {
	if c.Runner != nil {
		return c.Runner
	}
	return ExecRunner{}
}

func (c *PandocConverter) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return DefaultPandocBinary
}

// readOutput treats a missing or empty output file as a failed conversion
// even when the converter exited cleanly.
func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is inside the job sandbox
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEmptyOutput
		}
		return nil, fmt.Errorf("reading output: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	return data, nil
}
