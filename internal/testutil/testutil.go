// Package testutil holds filesystem helpers and Java fixtures shared by tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Counter is the canonical fixture: three eligible self-calls, two already
// qualified calls and one call to a static method.
const Counter = `public class Counter {
    private int counter = 0;

    public void increment() { counter++; }
    public void decrement() { counter--; }
    public void reset() { counter = 0; }

    public void performOperations() {
        increment();
        decrement();
        reset();
    }

    public void performOperationsWithThis() {
        this.increment();
        this.decrement();
    }

    public static void staticMethod() {}

    public void callStaticMethod() {
        staticMethod();
    }
}
`

// CounterQualified is Counter after qualifying every eligible call.
const CounterQualified = `public class Counter {
    private int counter = 0;

    public void increment() { counter++; }
    public void decrement() { counter--; }
    public void reset() { counter = 0; }

    public void performOperations() {
        this.increment();
        this.decrement();
        this.reset();
    }

    public void performOperationsWithThis() {
        this.increment();
        this.decrement();
    }

    public static void staticMethod() {}

    public void callStaticMethod() {
        staticMethod();
    }
}
`

// Clean has no eligible call sites.
const Clean = `class Clean {
    void run() { this.step(); }
    void step() {}
}
`

// WriteFile writes content to a file, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// ReadFile reads content from a file.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return string(data)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TempDir returns a test directory with symlinks resolved, so paths compare
// equal to those produced by filepath.Abs and EvalSymlinks.
func TempDir(t testing.TB) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks error: %v", err)
	}
	return dir
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}

// JavaProject creates a small source tree holding Counter and Clean plus an
// excluded build directory, and returns its root.
func JavaProject(t testing.TB) string {
	t.Helper()
	root := TempDir(t)
	CreateFileTree(t, root, map[string]string{
		"src/main/java/app/Counter.java": Counter,
		"src/main/java/app/Clean.java":   Clean,
		"build/generated/Counter.java":   Counter,
		"README.md":                      "# fixture\n",
	})
	return root
}
