// Package fileproc provides concurrent file processing utilities.
//
// Files are processed in parallel, one goroutine per file at a time; a single
// file is never handled by two goroutines. Each call to fn gets its own
// parser, since tree-sitter parsers are not safe for concurrent use.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/thisifier/pkg/parser"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error { return e.Err }

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the per-file errors to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		out[i] = pe
	}
	return out
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// FileFunc processes one file with a dedicated parser.
type FileFunc[T any] func(ctx context.Context, psr *parser.Parser, path string) (T, error)

// MapFiles processes files in parallel with the default worker count.
func MapFiles[T any](ctx context.Context, files []string, fn FileFunc[T]) ([]T, *ProcessingErrors) {
	return MapFilesN(ctx, files, 0, fn, nil)
}

// MapFilesN processes files with a configurable worker count and progress
// callback. If maxWorkers is <= 0, defaults to 2x NumCPU.
//
// Results of successful files are returned in the order of files. Failed
// files, and files not started before ctx ended, are reported in the returned
// ProcessingErrors, which is nil when every file succeeded.
func MapFilesN[T any](ctx context.Context, files []string, maxWorkers int, fn FileFunc[T], onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if onProgress != nil {
				defer onProgress()
			}

			// Check for cancellation before processing
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				return nil
			}

			result, err := processOne(ctx, path, fn)
			if err != nil {
				errs.Add(path, err)
				return nil // Don't stop pool on individual file errors
			}

			slots[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = p.Wait() // per-file errors are already captured in errs

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ErrPanic wraps a panic raised while processing a file.
var ErrPanic = errors.New("panic while processing file")

func processOne[T any](ctx context.Context, path string, fn FileFunc[T]) (result T, err error) {
	psr := parser.New()
	defer psr.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return fn(ctx, psr, path)
}
