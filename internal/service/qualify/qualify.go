// Package qualify runs the self-call rewriter over many files.
package qualify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/panbanda/thisifier/internal/cache"
	"github.com/panbanda/thisifier/internal/diffview"
	"github.com/panbanda/thisifier/internal/fileproc"
	"github.com/panbanda/thisifier/internal/report"
	"github.com/panbanda/thisifier/internal/scanner"
	"github.com/panbanda/thisifier/internal/vcs"
	"github.com/panbanda/thisifier/pkg/config"
	"github.com/panbanda/thisifier/pkg/parser"
	"github.com/panbanda/thisifier/pkg/rewrite"
	"github.com/panbanda/thisifier/pkg/source"
	"github.com/panbanda/thisifier/pkg/txn"
)

// Version is folded into the cache fingerprint so upgrades drop old entries.
const Version = "0.3.0"

// Service qualifies self-calls across a set of files.
type Service struct {
	config   *config.Config
	opener   vcs.Opener
	logger   *slog.Logger
	cache    *cache.Cache
	source   source.ContentSource
	rewriter *rewrite.Rewriter
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSource reads files through src instead of the filesystem. Edits are
// still committed to disk unless the run is a dry run.
func WithSource(src source.ContentSource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithCache replaces the cache built from the configuration.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New creates a qualify service. Without WithConfig the config file found in
// the working directory applies. A cache that cannot be created is disabled
// with a warning.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		opener: vcs.NewGitOpener(),
		logger: slog.Default(),
		source: source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cache == nil {
		c, err := cache.New(s.config.Cache.Dir, s.config.Cache.TTL, s.config.Cache.Enabled, Version, s.config.Qualifier.Style)
		if err != nil {
			s.logger.Warn("cache disabled", "dir", s.config.Cache.Dir, "error", err)
			c, _ = cache.New("", 0, false)
		}
		s.cache = c
	}
	s.rewriter = rewrite.New(
		rewrite.WithLogger(s.logger),
		rewrite.WithStyle(rewrite.Style(s.config.Qualifier.Style)),
	)
	return s
}

// DiscoverOptions narrows file discovery.
type DiscoverOptions struct {
	// Changed keeps only files git reports as changed.
	Changed bool
	// Since compares against this revision instead of the index when Changed is set.
	Since string
}

// Discover expands paths into the Java files to process, applying exclusions
// and the size limit.
func (s *Service) Discover(paths []string, opts DiscoverOptions) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := scanner.NewScanner(s.config).Scan(paths)
	if err != nil {
		return nil, &ScanError{Err: err}
	}

	if opts.Changed {
		files, err = s.onlyChanged(paths[0], files, opts.Since)
		if err != nil {
			return nil, err
		}
	}

	files, skipped := scanner.FilterBySize(files, s.config.Limits.MaxFileSize)
	if skipped > 0 {
		s.logger.Info("skipped large files", "count", skipped, "max_file_size", s.config.Limits.MaxFileSize)
	}
	return files, nil
}

func (s *Service) onlyChanged(start string, files []string, since string) ([]string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	repo, err := s.opener.PlainOpenWithDetect(abs)
	if err != nil {
		return nil, &GitError{Err: err}
	}

	var changed []string
	if since != "" {
		changed, err = repo.ChangedSince(since)
	} else {
		changed, err = repo.WorktreeChanges()
	}
	if err != nil {
		return nil, &GitError{Err: err}
	}

	keep := make(map[string]bool, len(changed))
	for _, path := range changed {
		keep[canonical(path)] = true
	}
	var out []string
	for _, f := range files {
		if keep[canonical(f)] {
			out = append(out, f)
		}
	}
	return out, nil
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// Options configures a Qualify batch.
type Options struct {
	// Scope limits each file's run; positional scopes make sense for one file.
	Scope rewrite.Scope
	// DryRun computes the edits in memory without writing files.
	DryRun bool
	// Diff collects a unified diff per changed file.
	Diff bool
	// BaseDir makes diff paths relative; empty keeps them as given.
	BaseDir string
	// Workers bounds parallelism; 0 uses the fileproc default.
	Workers    int
	OnProgress fileproc.ProgressFunc
}

// FileOutcome is the result for one file.
type FileOutcome struct {
	Summary report.FileResult
	Report  *rewrite.Report // nil when served from cache
	Diff    *diff.FileDiff  // nil unless Options.Diff and the file changed
}

// Result collects a batch.
type Result struct {
	Files  []FileOutcome
	Errors *fileproc.ProcessingErrors
}

// Summaries returns the per-file summaries, including failed files.
func (r *Result) Summaries() []report.FileResult {
	out := make([]report.FileResult, 0, len(r.Files))
	for _, f := range r.Files {
		out = append(out, f.Summary)
	}
	if r.Errors != nil {
		for _, e := range r.Errors.Errors {
			out = append(out, report.FileResult{Path: e.Path, Error: e.Err.Error()})
		}
	}
	return out
}

// Diffs returns the collected diffs in file order.
func (r *Result) Diffs() []*diff.FileDiff {
	var out []*diff.FileDiff
	for _, f := range r.Files {
		if f.Diff != nil {
			out = append(out, f.Diff)
		}
	}
	return out
}

// Eligible returns the number of eligible sites across the batch.
func (r *Result) Eligible() int {
	n := 0
	for _, f := range r.Files {
		n += f.Summary.Eligible
	}
	return n
}

// Qualify processes files concurrently, one goroutine per file. Per-file
// failures are collected in Result.Errors; the batch itself only fails when
// ctx ends before any file was processed.
func (s *Service) Qualify(ctx context.Context, files []string, opts Options) (*Result, error) {
	outcomes, errs := fileproc.MapFilesN(ctx, files, opts.Workers, func(ctx context.Context, psr *parser.Parser, path string) (FileOutcome, error) {
		return s.qualifyFile(ctx, psr, path, opts)
	}, opts.OnProgress)

	result := &Result{Files: outcomes, Errors: errs}
	if len(outcomes) == 0 && ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

func (s *Service) qualifyFile(ctx context.Context, psr *parser.Parser, path string, opts Options) (FileOutcome, error) {
	started := time.Now()
	out := FileOutcome{Summary: report.FileResult{Path: s.display(path, opts.BaseDir)}}

	data, err := s.source.Read(path)
	if err != nil {
		return out, err
	}

	wholeFile := opts.Scope.Kind == rewrite.WholeFile
	if wholeFile && s.cache.Clean(path, data) {
		out.Summary.Cached = true
		return out, nil
	}

	doc, err := source.NewWithParser(psr, path, data)
	if err != nil {
		return out, err
	}
	defer doc.Close()

	var tx txn.Transactor = txn.NewFile(s.logger)
	if opts.DryRun {
		tx = txn.NewMemory()
	}

	rep, err := s.rewriter.Run(ctx, doc, opts.Scope, tx)
	out.Report = rep
	out.Summary.Eligible = rep.Eligible
	out.Summary.Applied = rep.Applied()
	out.Summary.Skipped = rep.Skipped()
	out.Summary.Canceled = rep.CanceledSites()
	out.Summary.Duration = time.Since(started)

	switch {
	case errors.Is(err, txn.ErrTransactionRefused):
		s.logger.Warn("file not rewritten", "path", path, "error", err)
		out.Summary.Error = err.Error()
		return out, nil
	case errors.Is(err, rewrite.ErrCanceled):
		// Edits made before cancellation are kept and, outside a dry run, committed.
		out.Summary.Error = err.Error()
	case err != nil:
		return out, err
	}

	if opts.Diff && rep.Changed() {
		out.Diff = diffview.Unified(out.Summary.Path, doc.Original(), doc.Source(), diffview.DefaultContext)
	}

	if wholeFile && err == nil {
		s.remember(path, data, doc, rep, opts.DryRun)
	}
	return out, nil
}

// remember caches the file's remaining eligible count against the content
// now on disk.
func (s *Service) remember(path string, original []byte, doc *source.Document, rep *rewrite.Report, dryRun bool) {
	if !s.cache.Enabled() {
		return
	}
	content, remaining := doc.Source(), rep.Skipped()
	if dryRun {
		content, remaining = original, rep.Eligible
	}
	if err := s.cache.Record(path, content, remaining); err != nil {
		s.logger.Debug("cache write failed", "path", path, "error", err)
	}
}

func (s *Service) display(path, base string) string {
	if base == "" {
		return path
	}
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// FileDiagnoses lists every call site in scope of one file with its verdict.
type FileDiagnoses struct {
	Path      string
	Diagnoses []rewrite.Diagnosis
}

// Explain reports the verdict of every call site in scope, file by file.
func (s *Service) Explain(ctx context.Context, files []string, scope rewrite.Scope, baseDir string) ([]FileDiagnoses, *fileproc.ProcessingErrors) {
	return fileproc.MapFiles(ctx, files, func(ctx context.Context, psr *parser.Parser, path string) (FileDiagnoses, error) {
		data, err := s.source.Read(path)
		if err != nil {
			return FileDiagnoses{}, err
		}
		doc, err := source.NewWithParser(psr, path, data)
		if err != nil {
			return FileDiagnoses{}, err
		}
		defer doc.Close()

		diags, err := s.rewriter.Explain(doc, scope)
		if err != nil {
			return FileDiagnoses{}, err
		}
		return FileDiagnoses{Path: s.display(path, baseDir), Diagnoses: diags}, nil
	})
}

// ContentResult is the outcome of qualifying an in-memory buffer.
type ContentResult struct {
	Source string
	Report *rewrite.Report
	Diff   string
}

// QualifyContent rewrites an unsaved buffer without touching the disk.
func (s *Service) QualifyContent(ctx context.Context, path string, content []byte, scope rewrite.Scope) (*ContentResult, error) {
	doc, err := source.New(path, content)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	rep, err := s.rewriter.Run(ctx, doc, scope, txn.NewMemory())
	if err != nil && !errors.Is(err, rewrite.ErrCanceled) {
		return nil, err
	}

	result := &ContentResult{Source: string(doc.Source()), Report: rep}
	if doc.Modified() {
		rendered, rerr := diffview.Render(diffview.Unified(path, doc.Original(), doc.Source(), diffview.DefaultContext))
		if rerr != nil {
			return nil, rerr
		}
		result.Diff = string(rendered)
	}
	return result, err
}

// ExplainContent is Explain for an in-memory buffer.
func (s *Service) ExplainContent(path string, content []byte, scope rewrite.Scope) ([]rewrite.Diagnosis, error) {
	doc, err := source.New(path, content)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return s.rewriter.Explain(doc, scope)
}

// ScanError indicates a discovery failure.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan: %v", e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// GitError indicates --changed could not consult git.
type GitError struct {
	Err error
}

func (e *GitError) Error() string {
	return "changed files unavailable: " + e.Err.Error()
}

func (e *GitError) Unwrap() error { return e.Err }
