// Package scanner finds the Java files a run should process.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/thisifier/pkg/config"
	"github.com/panbanda/thisifier/pkg/parser"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config *config.Config

	// configMatcher applies exclude.patterns and exclude.dirs relative to the
	// scanned root; gitMatcher applies .gitignore files relative to gitRoot.
	configMatcher gitignore.Matcher
	gitMatcher    gitignore.Matcher
	gitRoot       string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg}

	var patterns []gitignore.Pattern
	for _, pattern := range cfg.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	for _, dir := range cfg.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(strings.TrimSuffix(dir, "/")+"/", nil))
	}
	if len(patterns) > 0 {
		s.configMatcher = gitignore.NewMatcher(patterns)
	}
	return s
}

// FindGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func FindGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadGitignore reads every .gitignore of the repository containing root.
func (s *Scanner) loadGitignore(root string) {
	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := FindGitRoot(root)
	if gitRoot == "" || gitRoot == s.gitRoot {
		return
	}
	// ReadPatterns walks the tree below the filesystem root recursively.
	patterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(patterns) == 0 {
		return
	}
	s.gitRoot = gitRoot
	s.gitMatcher = gitignore.NewMatcher(patterns)
}

// isExcluded checks a path given relative to the scan root and as an
// absolute path.
func (s *Scanner) isExcluded(rel, abs string, isDir bool) bool {
	if s.configMatcher != nil && s.configMatcher.Match(splitPath(rel), isDir) {
		return true
	}
	if s.gitMatcher != nil {
		if gitRel, err := filepath.Rel(s.gitRoot, abs); err == nil && !strings.HasPrefix(gitRel, "..") {
			if s.gitMatcher.Match(splitPath(gitRel), isDir) {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	return strings.Split(filepath.ToSlash(path), "/")
}

// ScanDir recursively scans a directory for Java files.
// Uses filepath.WalkDir for better performance (avoids stat calls).
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	// Resolve root to absolute path for security validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadGitignore(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == absRoot {
			return nil
		}

		relPath, _ := filepath.Rel(absRoot, path)

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(relPath, path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(relPath, path, false) {
			return nil
		}
		if parser.DetectLanguage(path) == parser.LangJava {
			files = append(files, path)
		}

		return nil
	})

	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// ScanFile checks if a single file should be processed.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	if info.IsDir() {
		return false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	s.loadGitignore(filepath.Dir(abs))

	if s.isExcluded(filepath.Base(path), abs, false) {
		return false, nil
	}

	return parser.DetectLanguage(path) == parser.LangJava, nil
}

// Scan expands a mix of files and directories into a sorted, de-duplicated
// list of Java files. Files named explicitly are still subject to exclusion.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			files, err := s.ScanDir(path)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
			continue
		}
		ok, err := s.ScanFile(path)
		if err != nil {
			return nil, err
		}
		if ok {
			abs, _ := filepath.Abs(path)
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				abs = resolved
			}
			add(abs)
		}
	}

	sort.Strings(out)
	return out, nil
}

// FilterBySize filters files that exceed the configured maximum size.
// Returns the filtered list and the count of files that were skipped.
// If maxSize is 0, returns the original list unchanged.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}

	filtered := make([]string, 0, len(files))
	skipped := 0

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			skipped++
			continue
		}
		if info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}

	return filtered, skipped
}
