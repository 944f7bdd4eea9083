// Package texport exports LaTeX documents to DOCX and PDF.
//
// # Quick Start
//
// Create an exporter and run a job:
//
//	exp := texport.NewExporter(texport.WithTimeout(time.Minute))
//	defer exp.Close()
//
//	result, err := exp.Export(ctx, texport.Request{
//	    Source: source,
//	    Format: texport.FormatWord,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(result.Filename, result.Data, 0o600)
//
// # Export Pipeline
//
// Every job runs in its own sandbox directory, removed when the job ends:
//
//  1. Remote images referenced by \includegraphics are downloaded next to
//     the source and the references rewritten (failures keep the URL)
//  2. biblatex backend and \addbibresource directives are stripped
//  3. The source is written as document.tex, the bibliography as references.bib
//  4. The converter (pandoc by default) writes output.docx or output.pdf
//  5. The output is read back and, with WithVerify, parsed
//
// Failures are reported as *StageError naming the stage that failed;
// use errors.Is with the package sentinels to classify them.
//
// # Backends
//
// PandocConverter runs the pandoc CLI. ChromeConverter renders PDFs with
// headless Chrome from the HTML pandoc produces, for hosts without a TeX
// engine.
//
// # Concurrency
//
// Pool caps the number of concurrent jobs. ResolvePoolSize derives a size
// from GOMAXPROCS when none is configured.
//
// LaTeX generation from a section tree lives in the latex subpackage used
// by the texport command.
package texport
