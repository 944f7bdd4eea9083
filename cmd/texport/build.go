package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/codec"
	"github.com/alnah/go-texport/internal/config"
	"github.com/alnah/go-texport/internal/dateutil"
	"github.com/alnah/go-texport/internal/latex"
)

// Sentinel errors for the build command.
var (
	ErrNoInput     = errors.New("no project file specified")
	ErrReadProject = errors.New("failed to read project file")
	ErrBadProject  = errors.New("invalid project file")
	ErrWriteOutput = errors.New("failed to write output file")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// project is the on-disk description of a document to build.
type project struct {
	Structure    []latex.StructureNode `yaml:"structure" toml:"structure"`
	Content      latex.ContentMap      `yaml:"content" toml:"content"`
	AuditLog     []latex.AuditEntry    `yaml:"auditLog" toml:"auditLog"`
	Bibliography string                `yaml:"bibliography" toml:"bibliography"` // path, relative to the project file
}

// runBuild generates LaTeX from a project file and exports it.
func runBuild(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseBuildFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(positional) == 0 {
		return ErrNoInput
	}
	if len(positional) > 1 {
		return fmt.Errorf("%w: build takes one project file, got %d", errFlagParse, len(positional))
	}
	projectPath := positional[0]

	format, err := texport.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common, env)
	if err != nil {
		return err
	}
	if err := flags.export.apply(cfg); err != nil {
		return err
	}
	genOpts, err := generateOptions(flags, cfg, format, env)
	if err != nil {
		return err
	}

	proj, err := readProject(projectPath)
	if err != nil {
		return err
	}
	bib, err := readBibliography(flags.bibliography, proj.Bibliography, projectPath)
	if err != nil {
		return err
	}

	source := latex.Generate(latex.Document{
		Structure: proj.Structure,
		Content:   proj.Content,
		Audit:     proj.AuditLog,
	}, genOpts)

	outPath := flags.output
	if outPath == "" {
		outPath = strings.TrimSuffix(projectPath, filepath.Ext(projectPath)) + "." + format.Extension()
	}

	logger := newLogger(flags.common, env.Stderr)
	exp := exporterFactory(cfg, logger, env.ExportOptions)()
	defer func() { _ = exp.Close() }()

	res, err := exp.Export(ctx, texport.Request{
		Source:       source,
		Format:       format,
		Filename:     filepath.Base(outPath),
		Bibliography: bib,
	})
	if err != nil {
		return err
	}

	if err := writeOutput(outPath, res.Data); err != nil {
		return err
	}
	if flags.keepSource {
		texPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".tex"
		if err := writeOutput(texPath, []byte(res.Source)); err != nil {
			return err
		}
	}

	if !flags.common.quiet {
		for _, url := range res.Failed {
			fmt.Fprintf(env.Stderr, "warning: image not downloaded: %s\n", url)
		}
		fmt.Fprintf(env.Stdout, "%s (%d bytes)\n", outPath, len(res.Data))
	}
	return nil
}

// generateOptions resolves generation settings from flags, then config.
func generateOptions(flags *buildFlags, cfg *config.Config, format texport.Format, env *Environment) (latex.GenerateOptions, error) {
	profile, err := latex.ProfileFor(string(format))
	if err != nil {
		return latex.GenerateOptions{}, err
	}

	depth := cfg.Generate.MaxDepth
	if flags.maxDepth != 0 {
		depth = flags.maxDepth
	}
	if depth < 0 || depth > config.MaxHeadingDepth {
		return latex.GenerateOptions{}, fmt.Errorf("%w: --max-depth must be between 1 and %d, got %d",
			config.ErrInvalidValue, config.MaxHeadingDepth, depth)
	}

	dateFormat := cfg.Generate.DateFormat
	if flags.dateFormat != "" {
		dateFormat = flags.dateFormat
	}
	if dateFormat != "" {
		if err := dateutil.Validate(dateFormat); err != nil {
			return latex.GenerateOptions{}, fmt.Errorf("%w: --date-format: %v", config.ErrInvalidValue, err)
		}
	}

	return latex.GenerateOptions{
		Profile:    profile,
		Now:        env.Now,
		DateFormat: dateFormat,
		MaxDepth:   depth,
	}, nil
}

// readProject decodes a YAML, TOML or JSON project file, rejecting unknown keys.
func readProject(path string) (*project, error) {
	var proj project
	if err := codec.DecodeFile(path, &proj, true); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: %w", ErrReadProject, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrBadProject, path, err)
	}
	if len(proj.Structure) == 0 {
		return nil, fmt.Errorf("%w: %s: structure is empty", ErrBadProject, path)
	}
	return &proj, nil
}

// readBibliography loads the flag path, or the project path resolved
// against the project directory. An empty result means no bibliography.
func readBibliography(flagPath, projectBib, projectPath string) (string, error) {
	path := flagPath
	if path == "" && projectBib != "" {
		path = projectBib
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(projectPath), path)
		}
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return "", fmt.Errorf("%w: bibliography %s: %w", ErrReadProject, path, err)
	}
	return string(data), nil
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}
	if err := os.WriteFile(path, data, filePermissions); err != nil { // #nosec G306 -- output is meant to be shared
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
