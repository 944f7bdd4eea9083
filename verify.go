package texport

import (
	"fmt"
	"os"

	"github.com/fumiama/go-docx"
	pdflib "github.com/ledongthuc/pdf"
)

// VerifyArtifact opens the document at path with a format-specific parser
// and fails with ErrInvalidArtifact when it does not parse.
func VerifyArtifact(f Format, path string) error {
	switch f {
	case FormatWord:
		return verifyDOCX(path)
	case FormatPDF:
		return verifyPDF(path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

func verifyDOCX(path string) error {
	file, err := os.Open(path) // #nosec G304 -- path is inside the job sandbox
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if _, err := docx.Parse(file, info.Size()); err != nil {
		return fmt.Errorf("%w: docx: %v", ErrInvalidArtifact, err)
	}
	return nil
}

func verifyPDF(path string) (err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", ErrInvalidArtifact, r)
		}
	}()

	file, reader, err := pdflib.Open(path)
	if err != nil {
		return fmt.Errorf("%w: pdf: %v", ErrInvalidArtifact, err)
	}
	defer file.Close()

	if reader.NumPage() == 0 {
		return fmt.Errorf("%w: pdf has no pages", ErrInvalidArtifact)
	}
	return nil
}
