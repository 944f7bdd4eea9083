package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-texport/internal/codec"
	"github.com/alnah/go-texport/internal/dateutil"
	"github.com/alnah/go-texport/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidValue    = errors.New("invalid config value")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
)

// Field limits.
const (
	MaxAddrLength       = 256
	MaxPathLength       = 4096
	MaxWorkers          = 64
	MaxFetchConcurrency = 32
	MaxHeadingDepth     = 5
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 10 << 20
	DefaultTimeout      = "2m"
	DefaultFetchTimeout = "30s"
)

// Engines selectable for PDF export.
const (
	EnginePandoc = "pandoc"
	EngineChrome = "chrome"
)

// appDirName is the directory under the user config dir searched by LoadConfig.
const appDirName = "go-texport"

// Config holds all configuration for the export service and CLI.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Export   ExportConfig   `yaml:"export" toml:"export"`
	Fetch    FetchConfig    `yaml:"fetch" toml:"fetch"`
	Page     PageConfig     `yaml:"page" toml:"page"`
	Generate GenerateConfig `yaml:"generate" toml:"generate"`
}

// ServerConfig defines the HTTP endpoint.
type ServerConfig struct {
	Addr         string `yaml:"addr" toml:"addr"`
	Production   bool   `yaml:"production" toml:"production"` // hide stack traces from clients
	Workers      int    `yaml:"workers" toml:"workers"`       // 0 = derived from GOMAXPROCS
	MaxBodyBytes int64  `yaml:"maxBodyBytes" toml:"maxBodyBytes"`
}

// ExportConfig defines the converter and its sandbox.
type ExportConfig struct {
	Engine     string `yaml:"engine" toml:"engine"`         // "pandoc" or "chrome" (pdf only)
	Pandoc     string `yaml:"pandoc" toml:"pandoc"`         // binary path, empty = PATH lookup
	PDFEngine  string `yaml:"pdfEngine" toml:"pdfEngine"`   // e.g. "xelatex"
	SandboxDir string `yaml:"sandboxDir" toml:"sandboxDir"` // empty = system temp dir
	Timeout    string `yaml:"timeout" toml:"timeout"`       // Go duration
	Verify     bool   `yaml:"verify" toml:"verify"`
}

// FetchConfig defines remote image downloads.
type FetchConfig struct {
	Timeout           string `yaml:"timeout" toml:"timeout"`
	MaxBytes          int64  `yaml:"maxBytes" toml:"maxBytes"`
	Concurrency       int    `yaml:"concurrency" toml:"concurrency"`
	BlockPrivateHosts bool   `yaml:"blockPrivateHosts" toml:"blockPrivateHosts"`
}

// PageConfig defines browser-rendered PDF pages.
type PageConfig struct {
	Size        string  `yaml:"size" toml:"size"`               // "letter", "a4", "legal"
	Orientation string  `yaml:"orientation" toml:"orientation"` // "portrait", "landscape"
	Margin      float64 `yaml:"margin" toml:"margin"`           // inches
}

// GenerateConfig defines LaTeX generation defaults.
type GenerateConfig struct {
	MaxDepth   int    `yaml:"maxDepth" toml:"maxDepth"`     // 0 = two levels
	DateFormat string `yaml:"dateFormat" toml:"dateFormat"` // dateutil format
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Export: ExportConfig{
			Engine:  EnginePandoc,
			Timeout: DefaultTimeout,
		},
		Fetch: FetchConfig{
			Timeout: DefaultFetchTimeout,
		},
	}
}

// Validate checks every field. Called automatically by LoadConfig and
// ApplyEnv, but available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if c.Server.Workers < 0 || c.Server.Workers > MaxWorkers {
		return fmt.Errorf("%w: server.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Server.Workers)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: server.maxBodyBytes must not be negative", ErrInvalidValue)
	}

	switch strings.ToLower(c.Export.Engine) {
	case "", EnginePandoc, EngineChrome:
	default:
		return fmt.Errorf("%w: export.engine %q (must be pandoc or chrome)", ErrInvalidValue, c.Export.Engine)
	}
	for field, value := range map[string]string{
		"export.pandoc":     c.Export.Pandoc,
		"export.pdfEngine":  c.Export.PDFEngine,
		"export.sandboxDir": c.Export.SandboxDir,
	} {
		if err := validateFieldLength(field, value, MaxPathLength); err != nil {
			return err
		}
	}
	if _, err := parseDuration("export.timeout", c.Export.Timeout); err != nil {
		return err
	}

	if _, err := parseDuration("fetch.timeout", c.Fetch.Timeout); err != nil {
		return err
	}
	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("%w: fetch.maxBytes must not be negative", ErrInvalidValue)
	}
	if c.Fetch.Concurrency < 0 || c.Fetch.Concurrency > MaxFetchConcurrency {
		return fmt.Errorf("%w: fetch.concurrency must be between 0 and %d, got %d", ErrInvalidValue, MaxFetchConcurrency, c.Fetch.Concurrency)
	}

	if c.Generate.MaxDepth < 0 || c.Generate.MaxDepth > MaxHeadingDepth {
		return fmt.Errorf("%w: generate.maxDepth must be between 0 and %d, got %d", ErrInvalidValue, MaxHeadingDepth, c.Generate.MaxDepth)
	}
	if c.Generate.DateFormat != "" {
		if err := dateutil.Validate(c.Generate.DateFormat); err != nil {
			return fmt.Errorf("%w: generate.dateFormat: %v", ErrInvalidValue, err)
		}
	}
	return nil
}

// ExportTimeout returns export.timeout as a duration (zero when unset).
func (c *Config) ExportTimeout() time.Duration {
	d, _ := parseDuration("export.timeout", c.Export.Timeout)
	return d
}

// FetchTimeout returns fetch.timeout as a duration (zero when unset).
func (c *Config) FetchTimeout() time.Duration {
	d, _ := parseDuration("fetch.timeout", c.Fetch.Timeout)
	return d
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s %q (want a positive duration such as 90s)", ErrInvalidValue, field, value)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's searched as name.yaml, name.yml or name.toml in the
// current directory, then in the user config directory.
// Missing fields keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := codec.DecodeFile(configPath, cfg, true); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries locations in order: current directory, <user config dir>/go-texport/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml", ".toml"}
	dirs := []string{""}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(userConfigDir, appDirName))
	}

	tried := make([]string, 0, len(extensions)*len(dirs))
	for _, dir := range dirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			if fileutil.FileExists(path) {
				return path, nil
			}
			tried = append(tried, path)
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}

// Environment variables understood by ApplyEnv.
const (
	EnvConfig            = "TEXPORT_CONFIG"
	EnvAddr              = "TEXPORT_ADDR"
	EnvProduction        = "TEXPORT_PRODUCTION"
	EnvWorkers           = "TEXPORT_WORKERS"
	EnvMaxBodyBytes      = "TEXPORT_MAX_BODY_BYTES"
	EnvEngine            = "TEXPORT_ENGINE"
	EnvPandoc            = "TEXPORT_PANDOC"
	EnvPDFEngine         = "TEXPORT_PDF_ENGINE"
	EnvSandboxDir        = "TEXPORT_SANDBOX_DIR"
	EnvTimeout           = "TEXPORT_TIMEOUT"
	EnvVerify            = "TEXPORT_VERIFY"
	EnvFetchTimeout      = "TEXPORT_FETCH_TIMEOUT"
	EnvBlockPrivateHosts = "TEXPORT_BLOCK_PRIVATE_HOSTS"
	EnvContainer         = "TEXPORT_CONTAINER" // read by doctor only
)

// knownEnvVars lists valid TEXPORT_* environment variables.
var knownEnvVars = map[string]bool{
	EnvConfig:            true,
	EnvAddr:              true,
	EnvProduction:        true,
	EnvWorkers:           true,
	EnvMaxBodyBytes:      true,
	EnvEngine:            true,
	EnvPandoc:            true,
	EnvPDFEngine:         true,
	EnvSandboxDir:        true,
	EnvTimeout:           true,
	EnvVerify:            true,
	EnvFetchTimeout:      true,
	EnvBlockPrivateHosts: true,
	EnvContainer:         true,
}

// ApplyEnv overrides fields from TEXPORT_* variables read through getenv
// (os.Getenv in production). Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(EnvAddr, &c.Server.Addr)
	setString(EnvEngine, &c.Export.Engine)
	setString(EnvPandoc, &c.Export.Pandoc)
	setString(EnvPDFEngine, &c.Export.PDFEngine)
	setString(EnvSandboxDir, &c.Export.SandboxDir)
	setString(EnvTimeout, &c.Export.Timeout)
	setString(EnvFetchTimeout, &c.Fetch.Timeout)

	for key, dst := range map[string]*bool{
		EnvProduction:        &c.Server.Production,
		EnvVerify:            &c.Export.Verify,
		EnvBlockPrivateHosts: &c.Fetch.BlockPrivateHosts,
	} {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q (want true or false)", ErrInvalidValue, key, v)
			}
			*dst = b
		}
	}

	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q (want an integer)", ErrInvalidValue, EnvWorkers, v)
		}
		c.Server.Workers = n
	}
	if v := getenv(EnvMaxBodyBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q (want an integer)", ErrInvalidValue, EnvMaxBodyBytes, v)
		}
		c.Server.MaxBodyBytes = n
	}

	return c.Validate()
}

// UnknownEnvVars returns TEXPORT_* entries of environ that ApplyEnv does
// not understand, to catch typos.
func UnknownEnvVars(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "TEXPORT_") && !knownEnvVars[key] {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
