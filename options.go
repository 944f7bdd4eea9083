package texport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alnah/go-texport/internal/resources"
)

// Option configures an Exporter.
type Option func(*Exporter)

// exporterConfig holds internal configuration for Exporter.
type exporterConfig struct {
	timeout     time.Duration
	sandboxBase string
	verify      bool
}

// defaultTimeout bounds a whole export job when no timeout is specified.
const defaultTimeout = 2 * time.Minute

// WithTimeout sets the per-job timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("texport: WithTimeout duration must be positive")
	}
	return func(e *Exporter) {
		e.cfg.timeout = d
	}
}

// WithLogger sets the structured logger. Jobs log nothing by default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSandboxBase sets the directory under which job sandboxes are created.
// It must live outside any tree watched by a live-reload tool.
func WithSandboxBase(dir string) Option {
	return func(e *Exporter) {
		e.cfg.sandboxBase = dir
	}
}

// WithConverter replaces the default pandoc backend.
func WithConverter(c Converter) Option {
	return func(e *Exporter) {
		if c != nil {
			e.converter = c
		}
	}
}

// WithVerify parses every produced document before returning it.
func WithVerify(verify bool) Option {
	return func(e *Exporter) {
		e.cfg.verify = verify
	}
}

// WithHTTPClient sets the client used to fetch remote images.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exporter) {
		e.fetch.Client = client
	}
}

// WithFetchConcurrency caps parallel image downloads per job.
func WithFetchConcurrency(n int) Option {
	return func(e *Exporter) {
		e.fetch.Concurrency = n
	}
}

// WithMaxImageBytes caps the size of one downloaded image.
func WithMaxImageBytes(n int64) Option {
	return func(e *Exporter) {
		e.fetch.MaxBytes = n
	}
}

// WithPrivateHostBlocking refuses image URLs that resolve to loopback or
// private addresses.
func WithPrivateHostBlocking(block bool) Option {
	return func(e *Exporter) {
		if block {
			e.fetch.Guard = resources.BlockPrivateHosts
		} else {
			e.fetch.Guard = nil
		}
	}
}
