package texport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an export target.
type Format string

// Supported export targets.
const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "word", "docx" and "pdf", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "docx":
		return FormatWord, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q (must be word or pdf)", ErrUnsupportedFormat, s)
	}
}

// Validate checks that f is a supported target.
func (f Format) Validate() error {
	switch f {
	case FormatWord, FormatPDF:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// Extension returns the file extension without dot.
func (f Format) Extension() string {
	if f == FormatWord {
		return "docx"
	}
	return "pdf"
}

// MIMEType returns the content type of documents in this format.
func (f Format) MIMEType() string {
	if f == FormatWord {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/pdf"
}

// DefaultFilename is the attachment name used when the caller picks none.
func (f Format) DefaultFilename() string {
	return "document." + f.Extension()
}

// writer is the pandoc output format name.
func (f Format) writer() string {
	return f.Extension()
}

// Request is one export job submitted to an Exporter.
type Request struct {
	Source       string // LaTeX source (required)
	Format       Format // target format (required)
	Filename     string // attachment name (optional, defaults per format)
	Bibliography string // BibLaTeX database content (optional)
}

// Validate checks the request before any filesystem work is done.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return ErrEmptySource
	}
	if err := r.Format.Validate(); err != nil {
		return err
	}
	if r.Filename != "" {
		if _, err := SafeFilename(r.Filename, r.Format); err != nil {
			return err
		}
	}
	return nil
}

// Result is a successful export.
type Result struct {
	Data     []byte
	MIMEType string
	Filename string
	Source   string   // LaTeX actually handed to the converter
	Failed   []string // image URLs that could not be fetched
}

// Job is the per-export state shared with converters. It lives only as long
// as its sandbox directory.
type Job struct {
	ID               string
	Format           Format
	Dir              string
	SourcePath       string
	BibliographyPath string // empty when the request carried no bibliography
	OutputPath       string
	Resources        []string
}

const (
	sourceFileName       = "document.tex"
	bibliographyFileName = "references.bib"
	outputBaseName       = "output"
)

// SafeFilename reduces name to a bare file name with the extension of f.
// Directory components are dropped; names made only of dots or separators
// are rejected.
func SafeFilename(name string, f Format) (string, error) {
	if name == "" {
		return f.DefaultFilename(), nil
	}
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == 0x7f {
			return -1
		}
		return r
	}, base)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.Trim(stem, ". /") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return stem + "." + f.Extension(), nil
}

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.75
)

// PageSettings configures the page of PDFs rendered by the browser backend.
type PageSettings struct {
	Size        string  // "letter", "a4", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // inches, applied to all sides
}

// DefaultPageSettings returns A4 portrait pages.
func DefaultPageSettings() *PageSettings {
	return &PageSettings{
		Size:        PageSizeA4,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that page settings are valid. A nil receiver is valid.
func (p *PageSettings) Validate() error {
	if p == nil {
		return nil
	}
	if _, ok := paperSizes[strings.ToLower(p.Size)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}
	switch strings.ToLower(p.Orientation) {
	case OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}
	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}
	return nil
}

// paperSizes maps page sizes to portrait width and height in inches.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// dimensions returns paper width and height in inches after orientation.
func (p *PageSettings) dimensions() (width, height float64) {
	if p == nil {
		p = DefaultPageSettings()
	}
	size, ok := paperSizes[strings.ToLower(p.Size)]
	if !ok {
		size = paperSizes[PageSizeA4]
	}
	width, height = size[0], size[1]
	if strings.EqualFold(p.Orientation, OrientationLandscape) {
		width, height = height, width
	}
	return width, height
}
