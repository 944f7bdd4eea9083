package texport

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

type MockRunner struct {
	Stdout     string
	Stderr     string
	Err        error
	CalledWith []string
	Dir        string
	// Write, when set, is written to the -o target before returning.
	Write []byte
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	m.CalledWith = append([]string{name}, args...)
	m.Dir = dir
	if m.Write != nil {
		if i := slices.Index(args, "-o"); i >= 0 && i+1 < len(args) {
			_ = os.WriteFile(args[i+1], m.Write, 0o600)
		}
	}
	return m.Stdout, m.Stderr, m.Err
}

func newTestJob(t *testing.T, f Format) *Job {
	t.Helper()
	dir := t.TempDir()
	return &Job{
		ID:         "job",
		Format:     f,
		Dir:        dir,
		SourcePath: filepath.Join(dir, sourceFileName),
		OutputPath: filepath.Join(dir, "output."+f.Extension()),
	}
}

// exitError returns a real *exec.ExitError with the given code.
func exitError(t *testing.T, code string) error {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	err := exec.Command("sh", "-c", "exit "+code).Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	return err
}

func TestPandocConverter_Args(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		format    Format
		bib       bool
		engine    string
		wantExtra []string
		wantNot   []string
	}{
		{
			name:    "word",
			format:  FormatWord,
			engine:  "xelatex",
			wantNot: []string{"--pdf-engine=xelatex"},
		},
		{
			name:      "pdf with engine",
			format:    FormatPDF,
			engine:    "lualatex",
			wantExtra: []string{"--pdf-engine=lualatex"},
		},
		{
			name:      "bibliography",
			format:    FormatWord,
			bib:       true,
			wantExtra: []string{"--bibliography="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := newTestJob(t, tt.format)
			if tt.bib {
				job.BibliographyPath = filepath.Join(job.Dir, bibliographyFileName)
			}
			c := &PandocConverter{PDFEngine: tt.engine}
			args := c.Args(job)
			joined := strings.Join(args, " ")

			want := []string{
				job.SourcePath,
				"-f latex",
				"-t " + tt.format.Extension(),
				"--standalone",
				"--wrap=none",
				"--citeproc",
				"--number-sections",
				"--resource-path=" + job.Dir,
				"-o " + job.OutputPath,
			}
			want = append(want, tt.wantExtra...)
			for _, w := range want {
				if !strings.Contains(joined, w) {
					t.Errorf("args missing %q: %v", w, args)
				}
			}
			for _, w := range tt.wantNot {
				if strings.Contains(joined, w) {
					t.Errorf("args should not contain %q: %v", w, args)
				}
			}
			if !tt.bib && strings.Contains(joined, "--bibliography") {
				t.Errorf("unexpected --bibliography: %v", args)
			}
		})
	}
}

func TestPandocConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("reads the written output", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatWord)
		mock := &MockRunner{Write: []byte("PK docx")}
		c := &PandocConverter{Runner: mock, Binary: "/opt/pandoc/bin/pandoc"}

		data, err := c.Convert(context.Background(), job)
		if err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		if string(data) != "PK docx" {
			t.Errorf("data = %q", data)
		}
		if mock.CalledWith[0] != "/opt/pandoc/bin/pandoc" {
			t.Errorf("binary = %q", mock.CalledWith[0])
		}
		if mock.Dir != job.Dir {
			t.Errorf("working dir = %q, want sandbox %q", mock.Dir, job.Dir)
		}
	})

	t.Run("default binary", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatPDF)
		mock := &MockRunner{Write: []byte("%PDF")}
		if _, err := (&PandocConverter{Runner: mock}).Convert(context.Background(), job); err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		if mock.CalledWith[0] != DefaultPandocBinary {
			t.Errorf("binary = %q", mock.CalledWith[0])
		}
	})

	t.Run("exit zero without output", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatPDF)
		_, err := (&PandocConverter{Runner: &MockRunner{}}).Convert(context.Background(), job)
		if !errors.Is(err, ErrEmptyOutput) {
			t.Errorf("Convert() error = %v, want ErrEmptyOutput", err)
		}
	})

	t.Run("exit zero with empty output", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatPDF)
		_, err := (&PandocConverter{Runner: &MockRunner{Write: []byte{}}}).Convert(context.Background(), job)
		if !errors.Is(err, ErrEmptyOutput) {
			t.Errorf("Convert() error = %v, want ErrEmptyOutput", err)
		}
	})

	t.Run("spawn failure has no exit code", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatWord)
		mock := &MockRunner{Err: exec.ErrNotFound}
		_, err := (&PandocConverter{Runner: mock}).Convert(context.Background(), job)
		if !errors.Is(err, ErrConverterSpawn) {
			t.Errorf("Convert() error = %v, want ErrConverterSpawn", err)
		}
		if strings.Contains(err.Error(), "exited with code") {
			t.Errorf("spawn failure must not report an exit code: %v", err)
		}
	})

	t.Run("nonzero exit carries code and stderr", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatPDF)
		mock := &MockRunner{Err: exitError(t, "43"), Stderr: "Error producing PDF.\n! Undefined control sequence.\n"}
		_, err := (&PandocConverter{Runner: mock}).Convert(context.Background(), job)
		if !errors.Is(err, ErrConversion) {
			t.Fatalf("Convert() error = %v, want ErrConversion", err)
		}
		want := "pandoc exited with code 43: Error producing PDF.\n! Undefined control sequence."
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Convert() error = %q, want it to contain %q", err.Error(), want)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		job := newTestJob(t, FormatPDF)
		mock := &MockRunner{Err: errors.New("signal: killed")}
		_, err := (&PandocConverter{Runner: mock}).Convert(ctx, job)
		if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrConversion) {
			t.Errorf("Convert() error = %v, want ErrConversion wrapping context.Canceled", err)
		}
	})
}

func TestPandocConverter_ToHTML(t *testing.T) {
	t.Parallel()

	t.Run("returns stdout", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, FormatPDF)
		job.BibliographyPath = filepath.Join(job.Dir, bibliographyFileName)
		mock := &MockRunner{Stdout: "<h1>Intro</h1>"}

		got, err := (&PandocConverter{Runner: mock}).ToHTML(context.Background(), job)
		if err != nil {
			t.Fatalf("ToHTML() error = %v", err)
		}
		if got != "<h1>Intro</h1>" {
			t.Errorf("ToHTML() = %q", got)
		}
		joined := strings.Join(mock.CalledWith, " ")
		if !strings.Contains(joined, "-t html5") || !strings.Contains(joined, "--bibliography=") {
			t.Errorf("unexpected args: %v", mock.CalledWith)
		}
		if strings.Contains(joined, " -o ") {
			t.Errorf("HTML goes to stdout, not a file: %v", mock.CalledWith)
		}
	})

	t.Run("blank stdout", func(t *testing.T) {
		t.Parallel()

		_, err := (&PandocConverter{Runner: &MockRunner{Stdout: "\n"}}).ToHTML(context.Background(), newTestJob(t, FormatPDF))
		if !errors.Is(err, ErrEmptyOutput) {
			t.Errorf("ToHTML() error = %v, want ErrEmptyOutput", err)
		}
	})
}

func TestExecRunner(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	stdout, stderr, err := ExecRunner{}.Run(context.Background(), dir, "sh", "-c", "pwd; echo oops >&2; exit 3")

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("Run() error = %v, want exit code 3", err)
	}
	if stderr != "oops\n" {
		t.Errorf("stderr = %q", stderr)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if got := strings.TrimSpace(stdout); got != dir && got != resolved {
		t.Errorf("working dir = %q, want %q", got, dir)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, _, err := ExecRunner{}.Run(context.Background(), t.TempDir(), "texport-no-such-binary")
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		t.Error("a missing binary must not look like an exit code")
	}
}
