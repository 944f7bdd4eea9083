package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// errFlagParse wraps pflag errors so they map to ExitUsage.
var errFlagParse = errors.New("invalid flags")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
	json    bool
}

// exportFlags override the export section of the config file.
type exportFlags struct {
	engine    string
	pandoc    string
	pdfEngine string
	timeout   string
	verify    bool
}

// serveFlags holds flags for the serve command.
type serveFlags struct {
	common     commonFlags
	export     exportFlags
	addr       string
	workers    int
	production bool
}

// buildFlags holds flags for the build command.
type buildFlags struct {
	common       commonFlags
	export       exportFlags
	output       string
	format       string
	maxDepth     int
	dateFormat   string
	bibliography string
	keepSource   bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log job states")
	fs.BoolVar(&f.json, "log-json", false, "log as JSON lines")
}

// addExportFlags adds converter flags to a FlagSet.
func addExportFlags(fs *flag.FlagSet, f *exportFlags) {
	fs.StringVarP(&f.engine, "engine", "e", "", "pdf backend: pandoc, chrome")
	fs.StringVar(&f.pandoc, "pandoc", "", "pandoc binary path")
	fs.StringVar(&f.pdfEngine, "pdf-engine", "", "LaTeX engine passed to pandoc (e.g. xelatex)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-job timeout (e.g. 90s, 2m)")
	fs.BoolVar(&f.verify, "verify", false, "parse every produced document before returning it")
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string, usage io.Writer) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &serveFlags{}

	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :8080)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent export jobs (0 = auto)")
	fs.BoolVar(&f.production, "production", false, "hide stack traces from error responses")
	addCommonFlags(fs, &f.common)
	addExportFlags(fs, &f.export)

	fs.Usage = func() { printServeUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, wrapFlagError(err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments, got %q", errFlagParse, fs.Args())
	}
	return f, nil
}

// parseBuildFlags parses build command flags and returns positional args.
func parseBuildFlags(args []string, usage io.Writer) (*buildFlags, []string, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &buildFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file (default <project>.<ext>)")
	fs.StringVarP(&f.format, "format", "f", "pdf", "output format: word, docx, pdf")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "deepest heading level rendered (1-5, default 2)")
	fs.StringVar(&f.dateFormat, "date-format", "", "title date format (e.g. long, iso, DD/MM/YYYY)")
	fs.StringVarP(&f.bibliography, "bibliography", "b", "", "BibLaTeX file (overrides the project file)")
	fs.BoolVar(&f.keepSource, "keep-source", false, "write the generated .tex next to the output")
	addCommonFlags(fs, &f.common)
	addExportFlags(fs, &f.export)

	fs.Usage = func() { printBuildUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, wrapFlagError(err)
	}
	return f, fs.Args(), nil
}

// wrapFlagError keeps flag.ErrHelp recognizable and tags the rest as usage errors.
func wrapFlagError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errFlagParse, err)
}
