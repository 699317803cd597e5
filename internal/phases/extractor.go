// Package phases discovers phase function names in a Python task module
// without importing it.
//
// The orchestration config needs the phase names before the module that
// defines them can be imported, and importing that module needs the config.
// Reading the module as a syntax tree breaks the cycle.
package phases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/QTest-hq/phasescan/internal/parser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// Suffix marks a function definition as a phase
	Suffix = "_phase"

	DefaultTasksDir  = "tasks"
	DefaultTasksFile = "start_tasks.py"
)

// executable is swapped in tests
var executable = os.Executable

// Source loads the raw bytes of a source document
type Source interface {
	ReadSource(ctx context.Context, path string) ([]byte, error)
}

// FileSource reads documents from the local filesystem
type FileSource struct{}

// ReadSource implements Source
func (FileSource) ReadSource(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Result holds the phases found in one file
type Result struct {
	Path   string   `json:"path" yaml:"path"`
	Phases []string `json:"phases" yaml:"phases"`
}

// Extractor finds phase names. The zero value is not usable; call New.
type Extractor struct {
	source        Source
	defaultSource string
	logger        zerolog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithSource reads documents from src instead of the local filesystem
func WithSource(src Source) Option {
	return func(e *Extractor) {
		e.source = src
	}
}

// WithDefaultSource sets the file used when Extract is called without a path
func WithDefaultSource(path string) Option {
	return func(e *Extractor) {
		e.defaultSource = path
	}
}

// WithLogger replaces the global logger for this extractor
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{source: FileSource{}, logger: log.Logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns the names of every function
// definition, sync or async, whose name ends with Suffix. Names appear in
// document order. An empty path selects the default start-tasks file.
func Extract(ctx context.Context, path string) ([]string, error) {
	return New().Extract(ctx, path)
}

// Extract is the method form of the package-level Extract
func (e *Extractor) Extract(ctx context.Context, path string) ([]string, error) {
	path, err := e.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := e.source.ReadSource(ctx, path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}

	return e.ExtractSource(ctx, path, content)
}

// ExtractSource applies the extraction to content already in memory.
// path is only used for diagnostics.
func (e *Extractor) ExtractSource(ctx context.Context, path string, content []byte) ([]string, error) {
	if !utf8.Valid(content) {
		return nil, &SyntaxError{Path: path, Detail: "source is not valid UTF-8"}
	}

	mod, err := parser.ParsePython(ctx, path, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if mod.HasErrors() {
		d := mod.Diagnostics[0]
		return nil, &SyntaxError{
			Path:   path,
			Line:   d.Line,
			Column: d.Column,
			Detail: d.Message,
		}
	}

	names := make([]string, 0)
	for _, def := range mod.Definitions {
		if IsPhaseName(def.Name) {
			names = append(names, def.Name)
		}
	}

	e.logger.Debug().
		Str("file", path).
		Int("definitions", len(mod.Definitions)).
		Strs("phases", names).
		Msg("extracted phase names")

	return names, nil
}

// ExtractAll extracts phases from several files concurrently, running at
// most limit extractions at once (limit <= 0 means unbounded). Results keep
// the order of paths. The first failure cancels the remaining work and no
// results are returned.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string, limit int) ([]Result, error) {
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			names, err := e.Extract(gctx, path)
			if err != nil {
				return err
			}
			results[i] = Result{Path: path, Phases: names}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DefaultPath returns the file Extract reads when given no path
func (e *Extractor) DefaultPath() (string, error) {
	return e.resolve("")
}

func (e *Extractor) resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if e.defaultSource != "" {
		return e.defaultSource, nil
	}
	return DefaultSourcePath()
}

// IsPhaseName reports whether name carries the phase suffix
func IsPhaseName(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// DefaultSourcePath locates tasks/start_tasks.py next to the running
// executable. It is resolved on every call so the result does not depend
// on the working directory.
func DefaultSourcePath() (string, error) {
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultTasksDir, DefaultTasksFile), nil
}
