// Package hints provides actionable error hints for common export failures.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-texport/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForConverterMissing returns hints when the converter executable cannot be started.
func ForConverterMissing(bin string) string {
	var hints []string
	if IsInContainer() {
		hints = append(hints, "install pandoc in the image (apt-get install pandoc)")
	} else {
		hints = append(hints, "install pandoc from https://pandoc.org/installing.html")
	}
	if os.Getenv("TEXPORT_PANDOC") == "" {
		hints = append(hints, "set TEXPORT_PANDOC to the pandoc binary path")
	} else if bin != "" {
		hints = append(hints, "check that "+bin+" is executable")
	}
	return formatHints(hints)
}

// ForConversionFailed returns a hint for converter errors on generated source.
func ForConversionFailed() string {
	return format("rerun with --keep-source to inspect the generated document.tex")
}

// ForPDFEngine returns a hint when pandoc cannot find a LaTeX engine for PDF output.
func ForPDFEngine(stderr string) string {
	if !strings.Contains(stderr, "pdflatex not found") &&
		!strings.Contains(stderr, "xelatex not found") &&
		!strings.Contains(stderr, "lualatex not found") {
		return ""
	}
	return format("install a TeX distribution or use --engine chrome")
}

// ForBrowserConnect returns hints for browser connection errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use custom Chrome")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about increasing the job timeout.
func ForTimeout() string {
	return format("for large documents, use --timeout or TEXPORT_TIMEOUT")
}

// ForConfigNotFound returns hints for config file not found errors.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-texport") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
