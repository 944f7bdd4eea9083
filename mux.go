package texport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
)

// FormatMux dispatches each job to the converter registered for its format.
// It lets the browser backend render PDFs while pandoc keeps producing DOCX.
type FormatMux map[Format]Converter

var (
	_ Converter = FormatMux(nil)
	_ io.Closer = FormatMux(nil)
)

// Convert runs the converter registered for job.Format.
func (m FormatMux) Convert(ctx context.Context, job *Job) ([]byte, error) {
	c, ok := m[job.Format]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: no converter for %q", ErrUnsupportedFormat, job.Format)
	}
	return c.Convert(ctx, job)
}

// Close closes every registered converter that holds resources. A converter
// registered for several formats is closed once.
func (m FormatMux) Close() error {
	seen := make(map[io.Closer]bool, len(m))
	var errs []error
	for _, c := range m {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		// Map keys must be comparable; other closers are closed per entry.
		if reflect.TypeOf(closer).Comparable() {
			if seen[closer] {
				continue
			}
			seen[closer] = true
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
