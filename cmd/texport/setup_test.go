package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "site.toml")
	writeFile(t, cfgPath, "[server]\naddr = \":9000\"\n\n[export]\nengine = \"chrome\"\n")

	tests := []struct {
		name       string
		flag       string
		vars       map[string]string
		wantAddr   string
		wantEngine string
		wantWarn   string
		wantErr    error
	}{
		{"defaults", "", nil, config.DefaultAddr, config.EnginePandoc, "", nil},
		{"flag file", cfgPath, nil, ":9000", config.EngineChrome, "", nil},
		{"env file", "", map[string]string{"TEXPORT_CONFIG": cfgPath}, ":9000", config.EngineChrome, "", nil},
		{"env overrides file", cfgPath, map[string]string{"TEXPORT_ADDR": ":7000"}, ":7000", config.EngineChrome, "", nil},
		{"unknown variable", "", map[string]string{"TEXPORT_ADRR": ":1"}, config.DefaultAddr, config.EnginePandoc, "TEXPORT_ADRR", nil},
		{"bad env value", "", map[string]string{"TEXPORT_WORKERS": "many"}, "", "", "", config.ErrInvalidValue},
		{"missing file", filepath.Join(dir, "nope.yaml"), nil, "", "", "", config.ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _, stderr := testEnv(t, tt.vars, nil)
			cfg, err := loadConfig(commonFlags{config: tt.flag}, env)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("loadConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.Server.Addr != tt.wantAddr {
				t.Errorf("addr = %q, want %q", cfg.Server.Addr, tt.wantAddr)
			}
			if cfg.Export.Engine != tt.wantEngine {
				t.Errorf("engine = %q, want %q", cfg.Export.Engine, tt.wantEngine)
			}
			if tt.wantWarn != "" && !strings.Contains(stderr.String(), tt.wantWarn) {
				t.Errorf("stderr should warn about %s, got %q", tt.wantWarn, stderr.String())
			}
		})
	}
}

func TestExportFlagsApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   exportFlags
		page    config.PageConfig
		wantErr error
	}{
		{"no flags", exportFlags{}, config.PageConfig{}, nil},
		{"chrome engine", exportFlags{engine: "Chrome"}, config.PageConfig{}, nil},
		{"bad engine", exportFlags{engine: "prince"}, config.PageConfig{}, ErrInvalidEngine},
		{"bad timeout", exportFlags{timeout: "-1s"}, config.PageConfig{}, config.ErrInvalidValue},
		{"chrome bad page size", exportFlags{engine: "chrome"}, config.PageConfig{Size: "a0"}, texport.ErrInvalidPageSize},
		{"pandoc ignores page", exportFlags{}, config.PageConfig{Size: "a0"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.Page = tt.page
			err := tt.flags.apply(cfg)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("apply() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("apply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportFlagsApply_Overrides(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	f := exportFlags{engine: "chrome", pandoc: "/opt/pandoc", pdfEngine: "xelatex", timeout: "90s", verify: true}
	if err := f.apply(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Export.Engine != config.EngineChrome || cfg.Export.Pandoc != "/opt/pandoc" ||
		cfg.Export.PDFEngine != "xelatex" || cfg.Export.Timeout != "90s" || !cfg.Export.Verify {
		t.Errorf("export config = %+v", cfg.Export)
	}
}

func TestNewConverter(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Export.PDFEngine = "lualatex"
	pandoc, ok := newConverter(cfg).(*texport.PandocConverter)
	if !ok {
		t.Fatal("pandoc engine should build a *PandocConverter")
	}
	if pandoc.PDFEngine != "lualatex" || pandoc.Binary != texport.DefaultPandocBinary {
		t.Errorf("pandoc = %+v", pandoc)
	}

	cfg.Export.Engine = config.EngineChrome
	mux, ok := newConverter(cfg).(texport.FormatMux)
	if !ok {
		t.Fatal("chrome engine should build a FormatMux")
	}
	if _, ok := mux[texport.FormatWord].(*texport.PandocConverter); !ok {
		t.Error("word jobs should stay on pandoc")
	}
	if _, ok := mux[texport.FormatPDF].(*texport.ChromeConverter); !ok {
		t.Error("pdf jobs should use the browser")
	}
	_ = mux.Close()
}

func TestPageSettings(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	if got := pageSettings(cfg); *got != *texport.DefaultPageSettings() {
		t.Errorf("empty page config = %+v, want defaults", got)
	}

	cfg.Page = config.PageConfig{Size: "Letter", Orientation: "LANDSCAPE", Margin: 1}
	got := pageSettings(cfg)
	if got.Size != "letter" || got.Orientation != "landscape" || got.Margin != 1 {
		t.Errorf("pageSettings() = %+v", got)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		flags     commonFlags
		wantDebug bool
		wantInfo  bool
		wantJSON  bool
	}{
		{"default", commonFlags{}, false, true, false},
		{"verbose", commonFlags{verbose: true}, true, true, false},
		{"quiet", commonFlags{quiet: true}, false, false, false},
		{"json", commonFlags{json: true}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := newLogger(tt.flags, &buf)
			ctx := context.Background()

			if got := logger.Handler().Enabled(ctx, -4); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := logger.Handler().Enabled(ctx, 0); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			logger.Error("boom")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", got, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestHintFor(t *testing.T) {
	t.Parallel()

	env, _, _ := testEnv(t, nil, nil)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"spawn", texport.ErrConverterSpawn, "pandoc"},
		{"timeout", &texport.StageError{Stage: texport.StageConvert, Err: context.DeadlineExceeded}, "--timeout"},
		{"conversion", texport.ErrConversion, "--keep-source"},
		{"missing tex engine", errors.Join(texport.ErrConversion, errors.New("xelatex not found")), "--engine chrome"},
		{"config", config.ErrConfigNotFound, "--config"},
		{"other", errors.New("x"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := hintFor(tt.err, env)
			if tt.want == "" {
				if got != "" {
					t.Errorf("hintFor() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("hintFor() = %q, want substring %q", got, tt.want)
			}
		})
	}
}
