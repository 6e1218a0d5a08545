package qualify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/thisifier/internal/cache"
	"github.com/panbanda/thisifier/internal/logging"
	"github.com/panbanda/thisifier/internal/testutil"
	"github.com/panbanda/thisifier/internal/vcs"
	"github.com/panbanda/thisifier/pkg/config"
	"github.com/panbanda/thisifier/pkg/resolve"
	"github.com/panbanda/thisifier/pkg/rewrite"
	"github.com/panbanda/thisifier/pkg/source"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	return New(append([]Option{WithConfig(cfg), WithLogger(logging.Discard())}, opts...)...)
}

func noCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New("", 0, false)
	require.NoError(t, err)
	return c
}

func project(t *testing.T) (root, counter, clean string) {
	t.Helper()
	root = testutil.JavaProject(t)
	dir := filepath.Join(root, "src", "main", "java", "app")
	return root, filepath.Join(dir, "Counter.java"), filepath.Join(dir, "Clean.java")
}

func TestDiscover(t *testing.T) {
	root, counter, clean := project(t)
	s := newService(t)

	files, err := s.Discover([]string{root}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{clean, counter}, files, "build/ is excluded")
}

func TestDiscoverMissingPath(t *testing.T) {
	s := newService(t)
	_, err := s.Discover([]string{filepath.Join(t.TempDir(), "missing")}, DiscoverOptions{})

	var scanErr *ScanError
	assert.ErrorAs(t, err, &scanErr)
}

type fakeRepo struct {
	root    string
	changed []string
	since   map[string][]string
}

func (r *fakeRepo) Root() string                       { return r.root }
func (r *fakeRepo) WorktreeChanges() ([]string, error) { return r.changed, nil }
func (r *fakeRepo) ChangedSince(rev string) ([]string, error) {
	files, ok := r.since[rev]
	if !ok {
		return nil, errors.New("unknown revision")
	}
	return files, nil
}

type fakeOpener struct {
	repo *fakeRepo
}

func (o fakeOpener) PlainOpenWithDetect(string) (vcs.Repository, error) {
	if o.repo == nil {
		return nil, vcs.ErrNotRepository
	}
	return o.repo, nil
}

func TestDiscoverChanged(t *testing.T) {
	root, counter, clean := project(t)
	repo := &fakeRepo{
		root:    root,
		changed: []string{counter, filepath.Join(root, "README.md")},
		since:   map[string][]string{"main": {clean}},
	}
	s := newService(t, WithOpener(fakeOpener{repo: repo}))

	files, err := s.Discover([]string{root}, DiscoverOptions{Changed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{counter}, files)

	files, err = s.Discover([]string{root}, DiscoverOptions{Changed: true, Since: "main"})
	require.NoError(t, err)
	assert.Equal(t, []string{clean}, files)

	_, err = s.Discover([]string{root}, DiscoverOptions{Changed: true, Since: "nope"})
	var gitErr *GitError
	assert.ErrorAs(t, err, &gitErr)
}

func TestDiscoverChangedOutsideRepository(t *testing.T) {
	root, _, _ := project(t)
	s := newService(t, WithOpener(fakeOpener{}))

	_, err := s.Discover([]string{root}, DiscoverOptions{Changed: true})
	assert.ErrorIs(t, err, vcs.ErrNotRepository)
}

func TestDiscoverSizeLimit(t *testing.T) {
	root, _, clean := project(t)
	cfg := config.DefaultConfig()
	cfg.Limits.MaxFileSize = int64(len(testutil.Clean))
	cfg.Cache.Enabled = false
	s := New(WithConfig(cfg), WithLogger(logging.Discard()))

	files, err := s.Discover([]string{root}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{clean}, files)
}

func TestQualifyWritesFiles(t *testing.T) {
	_, counter, clean := project(t)
	s := newService(t)

	result, err := s.Qualify(context.Background(), []string{clean, counter}, Options{Scope: rewrite.FileScope()})
	require.NoError(t, err)
	require.Nil(t, result.Errors)
	require.Len(t, result.Files, 2)

	assert.Equal(t, 0, result.Files[0].Summary.Eligible)
	assert.Equal(t, 3, result.Files[1].Summary.Applied)
	assert.Equal(t, 3, result.Eligible())

	assert.Equal(t, testutil.CounterQualified, testutil.ReadFile(t, counter))
	assert.Equal(t, testutil.Clean, testutil.ReadFile(t, clean))
}

func TestQualifyIsIdempotent(t *testing.T) {
	_, counter, _ := project(t)
	s := newService(t, WithCache(noCache(t)))
	ctx := context.Background()

	_, err := s.Qualify(ctx, []string{counter}, Options{})
	require.NoError(t, err)

	result, err := s.Qualify(ctx, []string{counter}, Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Eligible())
	assert.Equal(t, testutil.CounterQualified, testutil.ReadFile(t, counter))
}

func TestQualifyDryRunWithDiff(t *testing.T) {
	root, counter, clean := project(t)
	s := newService(t)

	result, err := s.Qualify(context.Background(), []string{clean, counter}, Options{DryRun: true, Diff: true, BaseDir: root})
	require.NoError(t, err)

	assert.Equal(t, testutil.Counter, testutil.ReadFile(t, counter), "dry run must not write")
	diffs := result.Diffs()
	require.Len(t, diffs, 1)
	assert.Equal(t, "a/src/main/java/app/Counter.java", diffs[0].OrigName)
	assert.Equal(t, "src/main/java/app/Counter.java", result.Files[1].Summary.Path)
	assert.Equal(t, 3, result.Files[1].Summary.Applied)
}

func TestQualifyUsesCache(t *testing.T) {
	_, counter, clean := project(t)
	s := newService(t)
	ctx := context.Background()
	files := []string{clean, counter}

	first, err := s.Qualify(ctx, files, Options{})
	require.NoError(t, err)
	assert.False(t, first.Files[0].Summary.Cached)

	second, err := s.Qualify(ctx, files, Options{})
	require.NoError(t, err)
	for _, f := range second.Files {
		assert.True(t, f.Summary.Cached, f.Summary.Path)
		assert.Nil(t, f.Report)
	}

	testutil.WriteFile(t, counter, testutil.Counter)
	third, err := s.Qualify(ctx, files, Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, third.Files[1].Summary.Cached, "changed content must miss")
	assert.Equal(t, 3, third.Files[1].Summary.Eligible)
}

func TestQualifyPositionalScopeBypassesCache(t *testing.T) {
	_, counter, _ := project(t)
	s := newService(t)
	ctx := context.Background()

	_, err := s.Qualify(ctx, []string{counter}, Options{DryRun: true})
	require.NoError(t, err)

	scope, err := rewrite.ParseScope("9:9")
	require.NoError(t, err)
	result, err := s.Qualify(ctx, []string{counter}, Options{Scope: scope})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.False(t, result.Files[0].Summary.Cached)
	assert.Equal(t, 1, result.Files[0].Summary.Applied)
	assert.Contains(t, testutil.ReadFile(t, counter), "        this.increment();\n        decrement();")
}

func TestQualifyReadOnlyFile(t *testing.T) {
	_, counter, _ := project(t)
	require.NoError(t, os.Chmod(counter, 0444))
	s := newService(t)

	result, err := s.Qualify(context.Background(), []string{counter}, Options{})
	require.NoError(t, err)
	require.Nil(t, result.Errors, "a refused transaction is not a failure")
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0].Summary.Error, "read-only")
	assert.Zero(t, result.Files[0].Summary.Applied)
	assert.Equal(t, testutil.Counter, testutil.ReadFile(t, counter))
}

func TestQualifyCollectsFileErrors(t *testing.T) {
	_, counter, _ := project(t)
	missing := filepath.Join(filepath.Dir(counter), "Missing.java")
	s := newService(t)

	result, err := s.Qualify(context.Background(), []string{counter, missing}, Options{DryRun: true})
	require.NoError(t, err)
	require.NotNil(t, result.Errors)
	assert.Len(t, result.Errors.Errors, 1)
	assert.ErrorIs(t, result.Errors, os.ErrNotExist)

	summaries := result.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, missing, summaries[1].Path)
	assert.NotEmpty(t, summaries[1].Error)
}

func TestQualifyCanceled(t *testing.T) {
	_, counter, _ := project(t)
	s := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Qualify(ctx, []string{counter}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, testutil.Counter, testutil.ReadFile(t, counter))
}

func TestExplain(t *testing.T) {
	root, counter, clean := project(t)
	s := newService(t)

	files, errs := s.Explain(context.Background(), []string{clean, counter}, rewrite.FileScope(), root)
	require.Nil(t, errs)
	require.Len(t, files, 2)
	assert.Equal(t, "src/main/java/app/Counter.java", files[1].Path)

	diags := files[1].Diagnoses
	require.Len(t, diags, 6)
	assert.Equal(t, "increment", diags[0].Site.CalleeName)
	assert.Equal(t, resolve.ReasonEligible, diags[0].Reason)
	assert.Equal(t, resolve.ReasonStatic, diags[5].Reason)
}

func TestQualifyContent(t *testing.T) {
	s := newService(t)

	result, err := s.QualifyContent(context.Background(), "Counter.java", []byte(testutil.Counter), rewrite.FileScope())
	require.NoError(t, err)
	assert.Equal(t, testutil.CounterQualified, result.Source)
	assert.Equal(t, 3, result.Report.Applied())
	assert.Contains(t, result.Diff, "+        this.increment();\n")

	unchanged, err := s.QualifyContent(context.Background(), "Clean.java", []byte(testutil.Clean), rewrite.FileScope())
	require.NoError(t, err)
	assert.Empty(t, unchanged.Diff)
	assert.Equal(t, testutil.Clean, unchanged.Source)
}

func TestExplainContent(t *testing.T) {
	s := newService(t)

	diags, err := s.ExplainContent("Counter.java", []byte(testutil.Counter), rewrite.FileScope())
	require.NoError(t, err)
	assert.Len(t, diags, 6)

	_, err = s.ExplainContent("Counter.java", []byte(testutil.Counter), rewrite.RegionScope(0, 1<<20))
	assert.Error(t, err)
}

func TestMemorySourceDryRun(t *testing.T) {
	src := source.NewMemory(map[string]string{"buffers/Counter.java": testutil.Counter})
	s := newService(t, WithSource(src), WithCache(noCache(t)))

	files, errs := s.Explain(context.Background(), []string{"buffers/Counter.java"}, rewrite.FileScope(), "")
	require.Nil(t, errs)
	require.Len(t, files, 1)
	assert.Len(t, files[0].Diagnoses, 6)

	result, err := s.Qualify(context.Background(), []string{"buffers/Counter.java"}, Options{DryRun: true, Diff: true})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, 3, result.Files[0].Summary.Applied)
	assert.NotNil(t, result.Files[0].Diff)

	data, err := src.Read("buffers/Counter.java")
	require.NoError(t, err)
	assert.Equal(t, testutil.Counter, string(data), "dry run leaves the source untouched")
}
