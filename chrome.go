package texport

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/microcosm-cc/bluemonday"

	"github.com/alnah/go-texport/internal/fileutil"
)

// htmlSource produces the HTML fragment of a job.
type htmlSource interface {
	ToHTML(ctx context.Context, job *Job) (string, error)
}

// pdfRenderer abstracts PDF rendering from an HTML file to enable testing without a browser.
type pdfRenderer interface {
	RenderFromFile(ctx context.Context, filePath string, page *PageSettings) ([]byte, error)
	Close() error
}

// Compile-time interface checks
var (
	_ Converter   = (*PandocConverter)(nil)
	_ Converter   = (*ChromeConverter)(nil)
	_ htmlSource  = (*PandocConverter)(nil)
	_ pdfRenderer = (*rodRenderer)(nil)
)

const printHTMLName = "print.html"

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: "Latin Modern Roman", "Times New Roman", serif; font-size: 11pt; line-height: 1.4; }
figure, .figure { text-align: center; margin: 1.5em 0; }
img { max-width: 80%; }
table { border-collapse: collapse; margin: 1em auto; }
td, th { border: 1px solid #444; padding: 2pt 6pt; }
h1, h2, h3 { page-break-after: avoid; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// ChromeConverter renders PDFs with headless Chrome. Pandoc turns the
// LaTeX into HTML, which is sanitized before the browser loads it.
type ChromeConverter struct {
	html     htmlSource
	renderer pdfRenderer
	policy   *bluemonday.Policy
	page     *PageSettings
}

// NewChromeConverter creates a browser backend. The browser starts on the
// first conversion; call Close to release it.
func NewChromeConverter(pandoc *PandocConverter, page *PageSettings, timeout time.Duration) *ChromeConverter {
	if page == nil {
		page = DefaultPageSettings()
	}
	return &ChromeConverter{
		html:     pandoc,
		renderer: newRodRenderer(timeout),
		policy:   newPrintPolicy(),
		page:     page,
	}
}

// mathElements are the MathML tags pandoc emits for --mathml.
var mathElements = []string{
	"math", "semantics", "annotation", "mrow", "mi", "mo", "mn",
	"msup", "msub", "msubsup", "mfrac", "msqrt", "mroot", "mtext",
	"mtable", "mtr", "mtd", "mover", "munder", "mspace",
}

// newPrintPolicy allows user content markup plus the MathML pandoc emits.
func newPrintPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	p.AllowElements("figure", "figcaption", "section")
	p.AllowElements(mathElements...)
	// bluemonday drops attribute-less tags it does not know.
	p.AllowNoAttrs().OnElements(mathElements...)
	p.AllowAttrs("display", "xmlns").OnElements("math")
	p.AllowAttrs("encoding").OnElements("annotation")
	return p
}

// Convert renders job to PDF and writes it to the job output path.
func (c *ChromeConverter) Convert(ctx context.Context, job *Job) ([]byte, error) {
	if job.Format != FormatPDF {
		return nil, fmt.Errorf("%w: browser backend only renders pdf", ErrUnsupportedFormat)
	}

	fragment, err := c.html.ToHTML(ctx, job)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	// #nosec G203 -- fragment was sanitized by the print policy
	if err := printTemplate.Execute(&buf, template.HTML(c.policy.Sanitize(fragment))); err != nil {
		return nil, fmt.Errorf("%w: building print page: %v", ErrPDFGeneration, err)
	}

	htmlPath, err := fileutil.WriteFileIn(job.Dir, printHTMLName, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	data, err := c.renderer.RenderFromFile(ctx, htmlPath, c.page)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	if err := os.WriteFile(job.OutputPath, data, fileutil.FilePerm); err != nil {
		return nil, fmt.Errorf("%w: writing output: %v", ErrPDFGeneration, err)
	}
	return data, nil
}

// Close releases browser resources.
func (c *ChromeConverter) Close() error {
	if c.renderer != nil {
		return c.renderer.Close()
	}
	return nil
}

// rodRenderer implements pdfRenderer using go-rod.
// Rod automatically downloads Chromium on first run if not found.
type rodRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	timeout time.Duration
}

func newRodRenderer(timeout time.Duration) *rodRenderer {
	return &rodRenderer{timeout: timeout}
}

// ensureBrowser lazily connects to the browser.
func (r *rodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" || os.Getenv("ROD_NO_SANDBOX") == "1" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = browser
	return browser, nil
}

// Close releases browser resources.
func (r *rodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		err := r.browser.Close()
		r.browser = nil
		return err
	}
	return nil
}

// RenderFromFile opens a local HTML file in headless Chrome and renders it to PDF.
func (r *rodRenderer) RenderFromFile(ctx context.Context, filePath string, page *PageSettings) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	p, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + filePath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer p.Close()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	if err := p.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := p.Context(ctx).PDF(buildPDFOptions(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdfBuf, nil
}

// buildPDFOptions constructs proto.PagePrintToPDF from page settings with
// a page-number footer.
func buildPDFOptions(page *PageSettings) *proto.PagePrintToPDF {
	if page == nil {
		page = DefaultPageSettings()
	}
	width, height := page.dimensions()

	return &proto.PagePrintToPDF{
		PaperWidth:          floatPtr(width),
		PaperHeight:         floatPtr(height),
		MarginTop:           floatPtr(page.Margin),
		MarginBottom:        floatPtr(page.Margin),
		MarginLeft:          floatPtr(page.Margin),
		MarginRight:         floatPtr(page.Margin),
		PrintBackground:     true,
		DisplayHeaderFooter: true,
		HeaderTemplate:      "<span></span>",
		FooterTemplate:      `<div style="font-size: 9px; width: 100%; text-align: center;"><span class="pageNumber"></span></div>`,
	}
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
