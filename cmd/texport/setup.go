package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/config"
	"github.com/alnah/go-texport/internal/hints"
)

// ErrInvalidEngine is returned for an --engine value other than pandoc or chrome.
var ErrInvalidEngine = errors.New("invalid engine")

// loadConfig resolves the config file (flag, then TEXPORT_CONFIG, then
// defaults) and applies TEXPORT_* overrides. Unknown TEXPORT_* variables
// are reported on stderr.
func loadConfig(f commonFlags, env *Environment) (*config.Config, error) {
	name := f.config
	if name == "" {
		name = env.Getenv(config.EnvConfig)
	}

	cfg := config.DefaultConfig()
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if env.Environ != nil {
		for _, key := range config.UnknownEnvVars(env.Environ()) {
			fmt.Fprintf(env.Stderr, "warning: unknown environment variable %s\n", key)
		}
	}
	if err := cfg.ApplyEnv(env.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overrides cfg with the flags that were set.
func (f exportFlags) apply(cfg *config.Config) error {
	if f.engine != "" {
		switch strings.ToLower(f.engine) {
		case config.EnginePandoc, config.EngineChrome:
			cfg.Export.Engine = strings.ToLower(f.engine)
		default:
			return fmt.Errorf("%w: %q (want pandoc or chrome)", ErrInvalidEngine, f.engine)
		}
	}
	if f.pandoc != "" {
		cfg.Export.Pandoc = f.pandoc
	}
	if f.pdfEngine != "" {
		cfg.Export.PDFEngine = f.pdfEngine
	}
	if f.timeout != "" {
		cfg.Export.Timeout = f.timeout
	}
	if f.verify {
		cfg.Export.Verify = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if strings.EqualFold(cfg.Export.Engine, config.EngineChrome) {
		return pageSettings(cfg).Validate()
	}
	return nil
}

// newLogger builds the CLI logger. Job states are logged at debug level.
func newLogger(f commonFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if f.json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// exporterFactory returns a constructor for exporters configured from cfg.
// Each exporter owns its converter, so a chrome engine gets one browser
// per pool slot.
func exporterFactory(cfg *config.Config, logger *slog.Logger, extra []texport.Option) func() *texport.Exporter {
	return func() *texport.Exporter {
		opts := []texport.Option{
			texport.WithLogger(logger),
			texport.WithSandboxBase(cfg.Export.SandboxDir),
			texport.WithVerify(cfg.Export.Verify),
			texport.WithPrivateHostBlocking(cfg.Fetch.BlockPrivateHosts),
			texport.WithConverter(newConverter(cfg)),
		}
		if d := cfg.ExportTimeout(); d > 0 {
			opts = append(opts, texport.WithTimeout(d))
		}
		if d := cfg.FetchTimeout(); d > 0 {
			opts = append(opts, texport.WithHTTPClient(&http.Client{Timeout: d}))
		}
		if cfg.Fetch.Concurrency > 0 {
			opts = append(opts, texport.WithFetchConcurrency(cfg.Fetch.Concurrency))
		}
		if cfg.Fetch.MaxBytes > 0 {
			opts = append(opts, texport.WithMaxImageBytes(cfg.Fetch.MaxBytes))
		}
		opts = append(opts, extra...)
		return texport.NewExporter(opts...)
	}
}

// newConverter builds the backend selected by export.engine.
func newConverter(cfg *config.Config) texport.Converter {
	binary := cfg.Export.Pandoc
	if binary == "" {
		binary = texport.DefaultPandocBinary
	}
	pandoc := texport.NewPandocConverter(binary)
	pandoc.PDFEngine = cfg.Export.PDFEngine

	if !strings.EqualFold(cfg.Export.Engine, config.EngineChrome) {
		return pandoc
	}
	return texport.FormatMux{
		texport.FormatWord: pandoc,
		texport.FormatPDF:  texport.NewChromeConverter(pandoc, pageSettings(cfg), cfg.ExportTimeout()),
	}
}

// pageSettings maps the page section onto browser page settings, keeping
// defaults for unset fields.
func pageSettings(cfg *config.Config) *texport.PageSettings {
	page := texport.DefaultPageSettings()
	if cfg.Page.Size != "" {
		page.Size = strings.ToLower(cfg.Page.Size)
	}
	if cfg.Page.Orientation != "" {
		page.Orientation = strings.ToLower(cfg.Page.Orientation)
	}
	if cfg.Page.Margin > 0 {
		page.Margin = cfg.Page.Margin
	}
	return page
}

// hintFor returns an actionable hint for common failures, or "".
func hintFor(err error, env *Environment) string {
	switch {
	case errors.Is(err, texport.ErrConverterSpawn):
		return hints.ForConverterMissing(env.Getenv(config.EnvPandoc))
	case errors.Is(err, texport.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, texport.ErrConversion):
		if h := hints.ForPDFEngine(err.Error()); h != "" {
			return h
		}
		return hints.ForConversionFailed()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	}
	return ""
}
