// Package resources downloads remote images referenced by a LaTeX source
// into a job sandbox and rewrites the references to the local copies.
package resources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-texport/internal/fileutil"
)

// ErrFetch marks a failed image download. It is never fatal to a job.
var ErrFetch = errors.New("image fetch failed")

// Defaults for Preparer fields left at their zero value.
const (
	DefaultMaxBytes    int64 = 20 << 20
	DefaultConcurrency       = 4
	DefaultTimeout           = 30 * time.Second
	defaultExtension         = "png"
	maxExtensionLength       = 5
	userAgent                = "go-texport"
)

// includePattern matches \includegraphics[options]{target}.
var includePattern = regexp.MustCompile(`\\includegraphics(\[[^\]]*\])?\{([^}]*)\}`)

// Guard vets a URL before it is fetched. Returning an error skips the fetch.
type Guard func(ctx context.Context, rawURL string) error

// Preparer fetches remote images for one or many jobs. The zero value is
// usable; it is safe for concurrent use once configured.
type Preparer struct {
	Client      *http.Client
	Logger      *slog.Logger
	MaxBytes    int64 // per image
	Concurrency int   // parallel fetches per job
	Guard       Guard // nil = no URL vetting
}

// Prepared is the outcome of Prepare.
type Prepared struct {
	Markup string   // source with successful references rewritten
	Files  []string // local files written, in ordinal order
	Failed []string // URLs left untouched because their fetch failed
}

// reference is one distinct remote image in first-appearance order.
type reference struct {
	url     string
	ordinal int
	local   string
	err     error
}

// Prepare downloads every distinct remote image referenced through
// \includegraphics into dir as img_<n>.<ext>, where n is the 1-based order
// of first appearance. Every occurrence of a fetched URL inside an
// \includegraphics target is rewritten to the local path. Failed fetches
// are logged and leave their URL in place; Prepare only returns an error
// when ctx is done.
func (p *Preparer) Prepare(ctx context.Context, markup, dir string) (Prepared, error) {
	refs := scanReferences(markup)
	if len(refs) == 0 {
		return Prepared{Markup: markup}, nil
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for _, ref := range refs {
		g.Go(func() error {
			ref.local, ref.err = p.fetch(ctx, ref.url, ref.ordinal, dir)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Prepared{}, err
	}

	res := Prepared{}
	rewrites := make(map[string]string, len(refs))
	for _, ref := range refs {
		if ref.err != nil {
			p.logger().Warn("image fetch failed, keeping remote reference",
				"url", ref.url, "ordinal", ref.ordinal, "error", ref.err)
			res.Failed = append(res.Failed, ref.url)
			continue
		}
		rewrites[ref.url] = ref.local
		res.Files = append(res.Files, ref.local)
	}

	res.Markup = rewriteTargets(markup, rewrites)
	return res, nil
}

// scanReferences assigns ordinals to distinct remote targets before any
// fetch starts, so numbering never depends on fetch completion order.
func scanReferences(markup string) []*reference {
	var refs []*reference
	seen := make(map[string]bool)
	for _, m := range includePattern.FindAllStringSubmatch(markup, -1) {
		target := strings.TrimSpace(m[2])
		if !fileutil.IsURL(target) || seen[target] {
			continue
		}
		seen[target] = true
		refs = append(refs, &reference{url: target, ordinal: len(refs) + 1})
	}
	return refs
}

func rewriteTargets(markup string, rewrites map[string]string) string {
	if len(rewrites) == 0 {
		return markup
	}
	return includePattern.ReplaceAllStringFunc(markup, func(m string) string {
		g := includePattern.FindStringSubmatch(m)
		local, ok := rewrites[strings.TrimSpace(g[2])]
		if !ok {
			return m
		}
		return `\includegraphics` + g[1] + "{" + local + "}"
	})
}

func (p *Preparer) fetch(ctx context.Context, rawURL string, ordinal int, dir string) (string, error) {
	if p.Guard != nil {
		if err := p.Guard(ctx, rawURL); err != nil {
			return "", fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	limit := p.maxBytes()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrFetch, limit)
	}

	name := fmt.Sprintf("img_%d.%s", ordinal, ExtensionFor(rawURL))
	local, err := fileutil.WriteFileIn(dir, name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return local, nil
}

// ExtensionFor derives a file extension (without dot) from the URL path.
// It falls back to "png" when the URL does not parse or carries no usable
// extension.
func ExtensionFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" || len(ext) > maxExtensionLength || fileutil.ValidateExtension(ext) != nil {
		return defaultExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExtension
		}
	}
	return ext
}

func (p *Preparer) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (p *Preparer) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (p *Preparer) maxBytes() int64 {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	return DefaultMaxBytes
}

func (p *Preparer) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return DefaultConcurrency
}
