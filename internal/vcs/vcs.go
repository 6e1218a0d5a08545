// Package vcs finds the files a git working tree has changed, which narrows
// a run to the files a developer is touching.
package vcs

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when no git repository encloses a path.
var ErrNotRepository = errors.New("not a git repository")

// Repository answers change queries for one working tree.
type Repository interface {
	// Root returns the absolute path of the working tree.
	Root() string
	// WorktreeChanges returns absolute paths of files that are modified,
	// staged, or untracked. Deleted files are omitted.
	WorktreeChanges() ([]string, error)
	// ChangedSince returns absolute paths of files that differ between rev
	// and HEAD, plus the worktree changes.
	ChangedSince(rev string) ([]string, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpenWithDetect opens the repository enclosing path.
	PlainOpenWithDetect(path string) (Repository, error)
}

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
func (o *GitOpener) PlainOpenWithDetect(path string) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &gitRepository{repo: repo, root: wt.Filesystem.Root(), wt: wt}, nil
}

type gitRepository struct {
	repo *git.Repository
	wt   *git.Worktree
	root string
}

func (r *gitRepository) Root() string { return r.root }

func (r *gitRepository) WorktreeChanges() ([]string, error) {
	status, err := r.wt.Status()
	if err != nil {
		return nil, err
	}

	var out []string
	for path, s := range status {
		if s.Worktree == git.Deleted || s.Staging == git.Deleted {
			continue
		}
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		out = append(out, r.abs(path))
	}
	sort.Strings(out)
	return out, nil
}

func (r *gitRepository) ChangedSince(rev string) ([]string, error) {
	base, err := r.tree(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	head, err := r.tree(plumbing.Revision(plumbing.HEAD))
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	changes, err := object.DiffTree(base, head)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	for _, c := range changes {
		if c.To.Name == "" {
			continue // deleted
		}
		add(r.abs(c.To.Name))
	}

	dirty, err := r.WorktreeChanges()
	if err != nil {
		return nil, err
	}
	for _, path := range dirty {
		add(path)
	}
	sort.Strings(out)
	return out, nil
}

func (r *gitRepository) tree(rev plumbing.Revision) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func (r *gitRepository) abs(path string) string {
	return filepath.Join(r.root, filepath.FromSlash(path))
}
