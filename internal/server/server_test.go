package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-texport"
)

type fakeExporter struct {
	mu    sync.Mutex
	calls []texport.Request
	res   *texport.Result
	err   error
}

func (f *fakeExporter) Export(_ context.Context, req texport.Request) (*texport.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func (f *fakeExporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestServer(exp Exporter, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }
	}
	return New(exp, nil, opts)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeExporter{}, Options{})
	rec := do(t, srv, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestExport_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		format   texport.Format
		result   *texport.Result
		wantDisp string
	}{
		{
			name:   "word",
			path:   "/export/word",
			format: texport.FormatWord,
			result: &texport.Result{
				Data:     []byte("PK docx bytes"),
				MIMEType: texport.FormatWord.MIMEType(),
				Filename: "document.docx",
			},
			wantDisp: `attachment; filename="document.docx"`,
		},
		{
			name:   "pdf",
			path:   "/export/pdf",
			format: texport.FormatPDF,
			result: &texport.Result{
				Data:     []byte("%PDF-1.7"),
				MIMEType: texport.FormatPDF.MIMEType(),
				Filename: "report.pdf",
			},
			wantDisp: `attachment; filename="report.pdf"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exp := &fakeExporter{res: tt.result}
			srv := newTestServer(exp, Options{})
			rec := do(t, srv, http.MethodPost, tt.path, `{"source":"\\section{A}","filename":"x"}`)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.result.MIMEType {
				t.Errorf("Content-Type = %q, want %q", got, tt.result.MIMEType)
			}
			if got := rec.Header().Get("Content-Disposition"); got != tt.wantDisp {
				t.Errorf("Content-Disposition = %q, want %q", got, tt.wantDisp)
			}
			if rec.Body.String() != string(tt.result.Data) {
				t.Errorf("body = %q", rec.Body.String())
			}
			if exp.calls[0].Format != tt.format {
				t.Errorf("format = %q, want %q", exp.calls[0].Format, tt.format)
			}
			if exp.calls[0].Filename != "x" {
				t.Errorf("filename = %q, want %q", exp.calls[0].Filename, "x")
			}
		})
	}
}

func TestExport_MissingImagesHeader(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{res: &texport.Result{
		Data:     []byte("%PDF"),
		MIMEType: "application/pdf",
		Filename: "document.pdf",
		Failed:   []string{"https://example.com/a.png"},
	}}
	rec := do(t, newTestServer(exp, Options{}), http.MethodPost, "/export/pdf", `{"source":"x"}`)

	if got := rec.Header().Get("X-Texport-Missing-Images"); got != "1" {
		t.Errorf("X-Texport-Missing-Images = %q, want 1", got)
	}
}

func TestExport_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"empty source", `{"source":""}`, http.StatusBadRequest, "source is required"},
		{"whitespace source", `{"source":"   \n"}`, http.StatusBadRequest, "source is required"},
		{"missing source", `{}`, http.StatusBadRequest, "source is required"},
		{"invalid json", `{"source":`, http.StatusBadRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exp := &fakeExporter{}
			rec := do(t, newTestServer(exp, Options{}), http.MethodPost, "/export/word", tt.body)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decodeError(t, rec)["error"]; !strings.Contains(got, tt.wantErr) {
				t.Errorf("error = %q, want substring %q", got, tt.wantErr)
			}
			if exp.callCount() != 0 {
				t.Error("exporter should not be called")
			}
		})
	}
}

func TestExport_BodyTooLarge(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{}
	srv := newTestServer(exp, Options{MaxBodyBytes: 32})
	body := `{"source":"` + strings.Repeat("a", 100) + `"}`
	rec := do(t, srv, http.MethodPost, "/export/pdf", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if exp.callCount() != 0 {
		t.Error("exporter should not be called")
	}
}

func TestExport_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid filename", texport.ErrInvalidFilename, http.StatusBadRequest},
		{"pool closed", texport.ErrPoolClosed, http.StatusServiceUnavailable},
		{"conversion", &texport.StageError{Stage: texport.StageConvert, Err: texport.ErrConversion}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exp := &fakeExporter{err: tt.err}
			rec := do(t, newTestServer(exp, Options{}), http.MethodPost, "/export/word", `{"source":"x"}`)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestExport_FailureBody(t *testing.T) {
	t.Parallel()

	failure := &texport.StageError{
		Stage: texport.StageConvert,
		Err:   errors.New("pandoc exited with code 43: ! Undefined control sequence"),
	}

	tests := []struct {
		name       string
		production bool
	}{
		{"development", false},
		{"production", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exp := &fakeExporter{err: failure}
			srv := newTestServer(exp, Options{Production: tt.production})
			rec := do(t, srv, http.MethodPost, "/export/pdf", `{"source":"x"}`)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != "Export failed" {
				t.Errorf("error = %v", body["error"])
			}
			if !strings.Contains(body["details"].(string), "Undefined control sequence") {
				t.Errorf("details = %v", body["details"])
			}
			if body["stage"] != "convert" {
				t.Errorf("stage = %v, want convert", body["stage"])
			}
			if _, hasStack := body["stack"]; hasStack && tt.production {
				t.Error("production response must not include a stack")
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	body := `{
		"structure": [{"id":"1","name":"Thesis","children":[{"id":"2","name":"Intro"}]}],
		"content": {"2": "50% done"},
		"auditLog": [],
		"target": "pdf"
	}`
	rec := do(t, newTestServer(&fakeExporter{}, Options{}), http.MethodPost, "/generate", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/x-tex") {
		t.Errorf("Content-Type = %q", got)
	}
	out := rec.Body.String()
	for _, want := range []string{
		`\title{Thesis}`,
		`\subsection{Intro}`,
		`50\% done`,
		"The audit log contains no entries.",
		`\end{document}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestGenerate_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"unknown target", `{"structure":[],"target":"odt"}`, "target must be word or pdf"},
		{"missing target", `{"structure":[]}`, "target must be word or pdf"},
		{"depth too large", `{"structure":[],"target":"word","maxDepth":9}`, "maxDepth must be between 0 and 5 (0 = default)"},
		{"negative depth", `{"structure":[],"target":"word","maxDepth":-1}`, "maxDepth must be between 0 and 5 (0 = default)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, newTestServer(&fakeExporter{}, Options{}), http.MethodPost, "/generate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec)["error"]; got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeExporter{}, Options{})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodGet, "/export/word", http.StatusMethodNotAllowed},
		{http.MethodPost, "/export/odt", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := do(t, srv, tt.method, tt.path, "")
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}
