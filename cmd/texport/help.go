package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texport <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the export HTTP API")
	fmt.Fprintln(w, "  build      Generate LaTeX from a project file and export it")
	fmt.Fprintln(w, "  doctor     Check pandoc, Chrome and the sandbox directory")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'texport help <command>' for details on a specific command.")
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Export:")
	fmt.Fprintln(w, "  -e, --engine <s>          PDF backend: pandoc, chrome")
	fmt.Fprintln(w, "      --pandoc <path>       pandoc binary")
	fmt.Fprintln(w, "      --pdf-engine <s>      LaTeX engine for pandoc PDFs (e.g. xelatex)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-job timeout (e.g. 90s, 2m)")
	fmt.Fprintln(w, "      --verify              Parse every produced document")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path (.yaml, .yml, .toml)")
	fmt.Fprintln(w, "  -q, --quiet               Only log errors")
	fmt.Fprintln(w, "  -v, --verbose             Log job states")
	fmt.Fprintln(w, "      --log-json            Log as JSON lines")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texport serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the HTTP API:")
	fmt.Fprintln(w, "  POST /export/word    {source, filename?, bibliography?} -> .docx")
	fmt.Fprintln(w, "  POST /export/pdf     {source, filename?, bibliography?} -> .pdf")
	fmt.Fprintln(w, "  POST /generate       {structure, content, auditLog, target} -> .tex")
	fmt.Fprintln(w, "  GET  /health")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -a, --addr <addr>         Listen address (default :8080)")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent export jobs (0 = auto)")
	fmt.Fprintln(w, "      --production          Hide stack traces from error responses")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printBuildUsage prints usage for the build command.
func printBuildUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texport build <project> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate a LaTeX document from a project file and export it.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  project    YAML, TOML or JSON file with structure, content, auditLog")
	fmt.Fprintln(w, "             and an optional bibliography path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Document:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (default <project>.<ext>)")
	fmt.Fprintln(w, "  -f, --format <s>          Output format: word, docx, pdf (default pdf)")
	fmt.Fprintln(w, "      --max-depth <n>       Deepest heading level rendered (1-5, default 2)")
	fmt.Fprintln(w, "      --date-format <s>     Title date format")
	fmt.Fprintln(w, "                            Tokens: YYYY, YY, MMMM, MMM, MM, M, DD, D")
	fmt.Fprintln(w, "                            Presets (case-insensitive): iso, european, us, long")
	fmt.Fprintln(w, "  -b, --bibliography <path> BibLaTeX file (overrides the project file)")
	fmt.Fprintln(w, "      --keep-source         Write the generated .tex next to the output")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "serve":
		printServeUsage(env.Stdout)
	case "build":
		printBuildUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: texport doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check pandoc, Chrome and the sandbox directory.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: texport version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: texport help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
