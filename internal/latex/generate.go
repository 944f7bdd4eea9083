package latex

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alnah/go-texport/internal/dateutil"
)

// Profile selects layout variations for the target format.
type Profile int

const (
	// ProfileWord targets word-processor output (DOCX).
	ProfileWord Profile = iota
	// ProfilePaginated targets paginated output (PDF).
	ProfilePaginated
)

// ErrUnknownTarget is returned by ProfileFor for unsupported targets.
var ErrUnknownTarget = errors.New("unknown export target")

// ProfileFor maps an export target name ("word", "docx" or "pdf") to its
// layout profile.
func ProfileFor(target string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "word", "docx":
		return ProfileWord, nil
	case "pdf":
		return ProfilePaginated, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

// Depth and date defaults.
const (
	DefaultMaxDepth   = 2
	DefaultDateFormat = "MMMM D, YYYY"
	auditDateFormat   = "YYYY-MM-DD"
	untitledDocument  = "Untitled"
	noAuditEntries    = "The audit log contains no entries."
	bibliographyFile  = "references.bib"
)

// headingCommands maps tree depth (1-based) to sectioning commands.
// Depths past the end use the last command.
var headingCommands = []string{
	"section",
	"subsection",
	"subsubsection",
	"paragraph",
	"subparagraph",
}

// StructureNode is one section of the content tree.
type StructureNode struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Children []StructureNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// ContentMap maps node IDs to raw author text.
type ContentMap map[string]string

// AuditEntry records one assisted edit for the audit appendix.
type AuditEntry struct {
	ToolName      string     `json:"toolName" yaml:"toolName"`
	UsageForm     string     `json:"usageForm" yaml:"usageForm"`
	AffectedParts string     `json:"affectedParts" yaml:"affectedParts"`
	Remarks       string     `json:"remarks" yaml:"remarks"`
	CreatedAt     *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Document bundles everything Generate needs.
type Document struct {
	Structure []StructureNode
	Content   ContentMap
	Audit     []AuditEntry
}

// GenerateOptions tunes document generation.
type GenerateOptions struct {
	Profile    Profile
	Now        func() time.Time // nil = time.Now
	DateFormat string           // dateutil format, empty = DefaultDateFormat
	MaxDepth   int              // 0 = DefaultMaxDepth
}

// Generate emits a complete LaTeX document for doc.
//
// Top-level nodes become sections and their children subsections. With the
// default MaxDepth of 2, grandchildren are not rendered. A larger MaxDepth
// recurses further with subsubsection, paragraph and subparagraph headings.
func Generate(doc Document, opts GenerateOptions) string {
	opts = opts.withDefaults()

	var b strings.Builder
	writePreamble(&b, doc, opts)

	for _, node := range doc.Structure {
		writeNode(&b, node, doc.Content, 1, opts.MaxDepth)
	}

	writeAuditAppendix(&b, doc.Audit, opts.Profile)

	b.WriteString("\n\\printbibliography\n")
	b.WriteString("\n\\end{document}\n")
	return b.String()
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.DateFormat == "" {
		o.DateFormat = DefaultDateFormat
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

func writePreamble(b *strings.Builder, doc Document, opts GenerateOptions) {
	title := untitledDocument
	if len(doc.Structure) > 0 && doc.Structure[0].Name != "" {
		title = doc.Structure[0].Name
	}

	date, err := dateutil.Format(opts.Now(), opts.DateFormat)
	if err != nil {
		date, _ = dateutil.Format(opts.Now(), DefaultDateFormat)
	}

	b.WriteString("\\documentclass{article}\n")
	b.WriteString("\\usepackage{graphicx}\n")
	b.WriteString("\\usepackage{amsmath}\n")
	b.WriteString("\\usepackage{hyperref}\n")
	b.WriteString("\\usepackage{longtable}\n")
	b.WriteString("\\usepackage[backend=biber]{biblatex}\n")
	fmt.Fprintf(b, "\\addbibresource{%s}\n", bibliographyFile)
	b.WriteString("\n")
	fmt.Fprintf(b, "\\title{%s}\n", Escape(title))
	fmt.Fprintf(b, "\\date{%s}\n", Escape(date))
	b.WriteString("\n\\begin{document}\n")
	b.WriteString("\\maketitle\n")
}

func writeNode(b *strings.Builder, node StructureNode, content ContentMap, depth, maxDepth int) {
	fmt.Fprintf(b, "\n\\%s{%s}\n", headingCommand(depth), Escape(node.Name))
	if text := content[node.ID]; text != "" {
		b.WriteString(Expand(Escape(text)))
		b.WriteString("\n")
	}

	if depth >= maxDepth {
		return
	}
	for _, child := range node.Children {
		writeNode(b, child, content, depth+1, maxDepth)
	}
}

func headingCommand(depth int) string {
	i := depth - 1
	if i < 0 {
		i = 0
	}
	if i >= len(headingCommands) {
		i = len(headingCommands) - 1
	}
	return headingCommands[i]
}

// auditColumns are the header cells of the audit appendix table.
var auditColumns = []string{"Name", "Usage", "Affected Parts", "Remarks", "Created", "Updated"}

// Column specs per profile. Word output gets uniform pipe columns, paginated
// output gets paragraph columns sized against the line width.
const (
	wordAuditColumns      = `|p{2.4cm}|p{2.4cm}|p{2.4cm}|p{2.4cm}|p{2.4cm}|p{2.4cm}|`
	paginatedAuditColumns = `p{0.14\linewidth}p{0.14\linewidth}p{0.16\linewidth}p{0.24\linewidth}p{0.1\linewidth}p{0.1\linewidth}`
)

func writeAuditAppendix(b *strings.Builder, entries []AuditEntry, profile Profile) {
	b.WriteString("\n\\appendix\n")
	b.WriteString("\\section*{Audit Log}\n")

	if len(entries) == 0 {
		b.WriteString(noAuditEntries + "\n")
		return
	}

	header := auditHeader()

	switch profile {
	case ProfilePaginated:
		fmt.Fprintf(b, "\\begin{longtable}{%s}\n", paginatedAuditColumns)
		b.WriteString("\\hline\n" + header + " \\\\\n\\hline\n\\endfirsthead\n")
		b.WriteString("\\hline\n" + header + " \\\\\n\\hline\n\\endhead\n")
		for _, e := range entries {
			b.WriteString(auditRow(e) + " \\\\\n")
		}
		b.WriteString("\\hline\n")
	default:
		fmt.Fprintf(b, "\\begin{longtable}{%s}\n", wordAuditColumns)
		b.WriteString("\\hline\n" + header + " \\\\\n\\hline\n")
		for _, e := range entries {
			b.WriteString(auditRow(e) + " \\\\\n\\hline\n")
		}
	}
	b.WriteString("\\end{longtable}\n")
}

func auditHeader() string {
	cells := make([]string, len(auditColumns))
	for i, c := range auditColumns {
		cells[i] = `\textbf{` + c + `}`
	}
	return strings.Join(cells, " & ")
}

func auditRow(e AuditEntry) string {
	return strings.Join([]string{
		Escape(e.ToolName),
		Escape(e.UsageForm),
		Escape(e.AffectedParts),
		Escape(e.Remarks),
		auditDate(e.CreatedAt),
		auditDate(e.UpdatedAt),
	}, " & ")
}

func auditDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	s, err := dateutil.Format(*t, auditDateFormat)
	if err != nil {
		return "-"
	}
	return s
}
