package main

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-texport"
)

// stubConverter stands in for pandoc: it records the job and writes a
// fixed payload to the output path.
type stubConverter struct {
	mu     sync.Mutex
	calls  int
	format texport.Format
	source string
	bib    string
	err    error
}

func (s *stubConverter) Convert(_ context.Context, job *texport.Job) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.format = job.Format
	if data, err := os.ReadFile(job.SourcePath); err == nil {
		s.source = string(data)
	}
	if job.BibliographyPath != "" {
		if data, err := os.ReadFile(job.BibliographyPath); err == nil {
			s.bib = string(data)
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	data := []byte("stub " + string(job.Format))
	if err := os.WriteFile(job.OutputPath, data, 0o600); err != nil {
		return nil, err
	}
	return data, nil
}

// testEnv returns an Environment with captured output and a fixed
// environment map instead of the process environment.
func testEnv(t *testing.T, vars map[string]string, conv texport.Converter) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	if vars == nil {
		vars = map[string]string{}
	}
	if _, ok := vars["TEXPORT_SANDBOX_DIR"]; !ok {
		vars["TEXPORT_SANDBOX_DIR"] = t.TempDir()
	}

	env := &Environment{
		Now:    func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) },
		Stdout: &stdout,
		Stderr: &stderr,
		Getenv: func(k string) string { return vars[k] },
		Environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
	if conv != nil {
		env.ExportOptions = []texport.Option{texport.WithConverter(conv)}
	}
	return env, &stdout, &stderr
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
