// Package txn provides the write transaction every document mutation runs in.
//
// A transaction takes the document's exclusive write lock without waiting,
// runs the action, converts a panic into an error, and always releases the
// lock. FileTransactor additionally writes the result back to disk once, and
// only when the action succeeded and changed the document.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/panbanda/thisifier/pkg/source"
)

var (
	// ErrTransactionRefused is returned when the transaction could not start:
	// the document is locked, closed, read-only or the context is done.
	ErrTransactionRefused = errors.New("write transaction refused")
	// ErrActionPanicked wraps a panic raised by the action.
	ErrActionPanicked = errors.New("write action panicked")
)

// Action is the body of a write transaction.
type Action func(ctx context.Context) error

// Transactor runs actions that mutate a document.
type Transactor interface {
	RunInWriteTransaction(ctx context.Context, doc *source.Document, action Action) error
}

// MemoryTransactor mutates documents in memory only. Used for previews,
// dry runs and MCP requests on unsaved buffers.
type MemoryTransactor struct{}

// NewMemory creates an in-memory transactor.
func NewMemory() *MemoryTransactor {
	return &MemoryTransactor{}
}

// RunInWriteTransaction implements Transactor.
func (MemoryTransactor) RunInWriteTransaction(ctx context.Context, doc *source.Document, action Action) error {
	return run(ctx, doc, action)
}

// FileTransactor commits successful transactions to the document's path.
type FileTransactor struct {
	logger *slog.Logger
}

// NewFile creates a transactor that writes documents back to disk.
func NewFile(logger *slog.Logger) *FileTransactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileTransactor{logger: logger}
}

// RunInWriteTransaction implements Transactor.
func (f *FileTransactor) RunInWriteTransaction(ctx context.Context, doc *source.Document, action Action) error {
	if doc == nil {
		return fmt.Errorf("%w: no document", ErrTransactionRefused)
	}
	info, err := os.Stat(doc.Path())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionRefused, err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		return fmt.Errorf("%w: %s is read-only", ErrTransactionRefused, doc.Path())
	}

	before := doc.Version()
	if err := run(ctx, doc, action); err != nil {
		return err
	}
	if doc.Version() == before {
		return nil
	}

	if err := writeAtomic(doc.Path(), doc.Source(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to commit %s: %w", doc.Path(), err)
	}
	f.logger.Debug("committed document", "path", doc.Path(), "edits", doc.Version()-before)
	return nil
}

func run(ctx context.Context, doc *source.Document, action Action) (err error) {
	if doc == nil || doc.Closed() {
		return fmt.Errorf("%w: document closed", ErrTransactionRefused)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionRefused, err)
	}
	if !doc.TryAcquire() {
		return fmt.Errorf("%w: %s is locked by another transaction", ErrTransactionRefused, doc.Path())
	}
	defer doc.Release()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()

	return action(ctx)
}

// writeAtomic replaces path with data through a temporary file in the same
// directory, so readers never observe a partial write.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
