// Package dateutil renders dates from user-friendly format strings.
//
// Formats are written with tokens (YYYY, YY, MMMM, MMM, MM, M, DD, D) or a
// named preset. Text inside brackets is copied literally: "[Printed] YYYY".
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat indicates an unusable date format string.
var ErrInvalidDateFormat = errors.New("invalid date format")

// MaxFormatLength bounds format strings coming from config or requests.
const MaxFormatLength = 50

// tokens are matched longest first.
var tokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// Presets are named shortcuts, matched case-insensitively.
var Presets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
}

// segment is one piece of a parsed format: a Go layout for a single token,
// or text written as is.
type segment struct {
	text   string
	layout bool
}

// Validate reports whether format is a usable token format or preset name.
func Validate(format string) error {
	_, err := parse(format)
	return err
}

func parse(format string) ([]segment, error) {
	if format == "" {
		return nil, fmt.Errorf("%w: format cannot be empty", ErrInvalidDateFormat)
	}
	if len(format) > MaxFormatLength {
		return nil, fmt.Errorf("%w: format exceeds %d characters", ErrInvalidDateFormat, MaxFormatLength)
	}
	if preset, ok := Presets[strings.ToLower(format)]; ok {
		format = preset
	}

	var segs []segment
	literal := func(s string) {
		if n := len(segs); n > 0 && !segs[n-1].layout {
			segs[n-1].text += s
			return
		}
		segs = append(segs, segment{text: s})
	}

	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidDateFormat, i)
			}
			literal(format[i+1 : i+1+end])
			i += end + 2
			continue
		}

		matched := false
		for _, t := range tokens {
			if strings.HasPrefix(format[i:], t.token) {
				segs = append(segs, segment{text: t.layout, layout: true})
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			literal(format[i : i+1])
			i++
		}
	}
	return segs, nil
}

// Format renders t with a token format or preset name. Bracketed text and
// characters outside tokens are printed exactly as written.
func Format(t time.Time, format string) (string, error) {
	segs, err := parse(format)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range segs {
		if s.layout {
			b.WriteString(t.Format(s.text))
		} else {
			b.WriteString(s.text)
		}
	}
	return b.String(), nil
}
