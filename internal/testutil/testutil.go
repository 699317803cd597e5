// Package testutil provides fixtures shared by package tests
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// StartTasks returns the absolute path of the shipped start-tasks fixture,
// which defines prelim_phase, primary_repo_collect_phase and
// secondary_repo_collect_phase.
func StartTasks(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not locate testutil source")
	}

	path := filepath.Join(filepath.Dir(file), "..", "..", "testdata", "tasks", "start_tasks.py")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("start-tasks fixture missing: %v", err)
	}
	return path
}

// WriteSource writes code to a fresh file named name in a temp directory
// and returns its path
func WriteSource(t *testing.T, name, code string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
