// Package codec decodes configuration and project files. YAML, and JSON as
// the YAML subset it is, go through goccy/go-yaml; TOML goes through
// BurntSushi/toml. Callers pick strict decoding to reject unknown keys.
package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// MaxInputSize limits decoded input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("codec: nil or empty data")
	ErrNilDestination = errors.New("codec: nil destination pointer")
	ErrInputTooLarge  = errors.New("codec: input exceeds maximum size")
	ErrUnknownFormat  = errors.New("codec: unknown file format")
	ErrUnknownKeys    = errors.New("codec: unknown keys")
)

// Format is a supported file syntax.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

// Extensions lists the file extensions FormatFor understands, in lookup order.
var Extensions = []string{".yaml", ".yml", ".toml", ".json"}

// FormatFor picks a format from the file extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

func validateInput(data []byte, v any) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

// Decode parses data in format f into v.
func Decode(f Format, data []byte, v any, strict bool) error {
	if err := validateInput(data, v); err != nil {
		return err
	}

	switch f {
	case YAML, JSON:
		var opts []yaml.DecodeOption
		if strict {
			opts = append(opts, yaml.Strict())
		}
		if err := yaml.UnmarshalWithOptions(data, v, opts...); err != nil {
			return fmt.Errorf("codec: %s: %w", f, err)
		}
		return nil
	case TOML:
		md, err := toml.Decode(string(data), v)
		if err != nil {
			return fmt.Errorf("codec: toml: %w", err)
		}
		if strict {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, 0, len(undecoded))
				for _, k := range undecoded {
					keys = append(keys, k.String())
				}
				sort.Strings(keys)
				return fmt.Errorf("%w: %s", ErrUnknownKeys, strings.Join(keys, ", "))
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// DecodeFile reads path and decodes it according to its extension.
func DecodeFile(path string, v any, strict bool) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return err
	}
	return Decode(f, data, v, strict)
}
