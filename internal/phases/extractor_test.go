package phases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/QTest-hq/phasescan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Silence the global logger
func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

func writeSource(t *testing.T, code string) string {
	t.Helper()
	return testutil.WriteSource(t, "tasks.py", code)
}

func TestExtract_StartTasks(t *testing.T) {
	names, err := Extract(context.Background(), testutil.StartTasks(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"prelim_phase",
		"primary_repo_collect_phase",
		"secondary_repo_collect_phase",
	}, names)

	seen := make(map[string]bool)
	for _, name := range names {
		assert.False(t, seen[name], "duplicate phase %s", name)
		seen[name] = true
	}
}

func TestExtract_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "mixed phase and helper functions",
			code: "def prelim_phase(): pass\ndef helper(): pass\ndef secondary_collect_phase(): pass\ndef not_a_phase_at_all(): pass\n",
			want: []string{"prelim_phase", "secondary_collect_phase"},
		},
		{
			name: "async and sync",
			code: "async def async_phase(): pass\ndef sync_phase(): pass\n",
			want: []string{"async_phase", "sync_phase"},
		},
		{
			name: "variable with matching name",
			code: "this_is_a_variable_phase = 1\ndef actual_function_phase(): pass\n",
			want: []string{"actual_function_phase"},
		},
		{
			name: "suffix in the middle of the name",
			code: "def some_phase():\n    pass\n\ndef build_primary_phase_request():\n    pass\n\ndef unrelated_function():\n    pass\n",
			want: []string{"some_phase"},
		},
		{
			name: "class named like a phase",
			code: "class cleanup_phase:\n    pass\n\nlambda_phase = lambda: None\n",
			want: []string{},
		},
		{
			name: "nested and method definitions",
			code: "def outer_phase():\n    def inner_phase():\n        pass\n\nclass Pipeline:\n    async def method_phase(self):\n        pass\n",
			want: []string{"outer_phase", "inner_phase", "method_phase"},
		},
		{
			name: "decorated definition",
			code: "@celery.task\ndef decorated_phase():\n    pass\n",
			want: []string{"decorated_phase"},
		},
		{
			name: "same name in nested scopes",
			code: "def a():\n    def shared_phase():\n        pass\n\ndef b():\n    def shared_phase():\n        pass\n",
			want: []string{"shared_phase", "shared_phase"},
		},
		{
			name: "bare suffix",
			code: "def _phase():\n    pass\n",
			want: []string{"_phase"},
		},
		{
			name: "comments and strings only",
			code: "# def commented_phase(): pass\n\"\"\"def docstring_phase(): pass\"\"\"\n",
			want: []string{},
		},
		{
			name: "empty file",
			code: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.code)
			names, err := Extract(context.Background(), path)
			require.NoError(t, err)
			require.NotNil(t, names)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExtract_FileNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nonexistent_file_abc123.py")

	names, err := Extract(context.Background(), missing)
	require.Error(t, err)
	assert.Nil(t, names)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrInvalidSyntax))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, missing, nf.Path)
	assert.Contains(t, err.Error(), missing)
}

func TestExtract_Directory(t *testing.T) {
	_, err := Extract(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtract_InvalidSyntax(t *testing.T) {
	path := writeSource(t, "def valid_phase():\n    pass\n\ndef broken_phase(:\n    pass\n")

	names, err := Extract(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, names)
	assert.True(t, errors.Is(err, ErrInvalidSyntax))
	assert.False(t, errors.Is(err, ErrNotFound))

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, path, se.Path)
	assert.NotEmpty(t, se.Detail)
	assert.GreaterOrEqual(t, se.Line, 1)
	assert.Contains(t, err.Error(), "exists, but contains invalid syntax")
}

func TestExtract_InvalidSyntaxWithoutErrorNodes(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"unexpected indent", "x = 1\n    y = 2\n"},
		{"tab and space indentation", "def b_phase():\n\tif x:\n        pass\n"},
		{"python 2 print", "print \"hi\"\n"},
		{"python 2 exec", "exec \"x=1\"\n"},
		{"bare assignment expression", "x := 1\n"},
		{"required parameter after default", "def b_phase(a=1, b): pass\n"},
		{"delete a call", "del f()\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.code+"def a_phase(): pass\n")

			names, err := Extract(context.Background(), path)
			assert.Nil(t, names)
			assert.ErrorIs(t, err, ErrInvalidSyntax)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.GreaterOrEqual(t, se.Line, 1)
		})
	}
}

func TestExtract_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.py")
	require.NoError(t, os.WriteFile(path, []byte("def caf\xe9_phase():\n    pass\n"), 0644))

	_, err := Extract(context.Background(), path)
	require.Error(t, err)

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Detail, "UTF-8")
	assert.Zero(t, se.Line)
}

func TestExtractor_DefaultSource(t *testing.T) {
	startTasks := testutil.StartTasks(t)
	ex := New(WithDefaultSource(startTasks))

	path, err := ex.DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, startTasks, path)

	names, err := ex.Extract(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestDefaultSourcePath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "bin", "phasescan")

	orig := executable
	executable = func() (string, error) { return exe, nil }
	t.Cleanup(func() { executable = orig })

	path, err := DefaultSourcePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bin", "tasks", "start_tasks.py"), path)

	// Without an override the package-level call uses the same location
	_, err = Extract(context.Background(), "")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, path, nf.Path)
}

func TestDefaultSourcePath_ExecutableError(t *testing.T) {
	orig := executable
	executable = func() (string, error) { return "", errors.New("no executable") }
	t.Cleanup(func() { executable = orig })

	_, err := DefaultSourcePath()
	assert.ErrorContains(t, err, "failed to locate executable")
}

func TestExtractor_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	ex := New(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	path := writeSource(t, "def prelim_phase(): pass\n")
	_, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "extracted phase names", entry["message"])
	assert.Equal(t, path, entry["file"])
	assert.Equal(t, []any{"prelim_phase"}, entry["phases"])
}

type memSource map[string]string

func (m memSource) ReadSource(_ context.Context, path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(content), nil
}

func TestExtractor_WithSource(t *testing.T) {
	ex := New(WithSource(memSource{
		"tasks.py": "def remote_phase():\n    pass\n",
	}))

	names, err := ex.Extract(context.Background(), "tasks.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"remote_phase"}, names)

	_, err = ex.Extract(context.Background(), "other.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractor_ExtractAll(t *testing.T) {
	startTasks := testutil.StartTasks(t)
	first := writeSource(t, "def a_phase(): pass\n")
	second := writeSource(t, "async def b_phase(): pass\ndef helper(): pass\n")

	results, err := New().ExtractAll(context.Background(), []string{first, second, startTasks}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, Result{Path: first, Phases: []string{"a_phase"}}, results[0])
	assert.Equal(t, Result{Path: second, Phases: []string{"b_phase"}}, results[1])
	assert.Equal(t, startTasks, results[2].Path)
	assert.Len(t, results[2].Phases, 3)
}

func TestExtractor_ExtractAllFailure(t *testing.T) {
	good := writeSource(t, "def a_phase(): pass\n")
	bad := filepath.Join(t.TempDir(), "missing.py")

	results, err := New().ExtractAll(context.Background(), []string{good, bad}, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, results)
}

func TestExtract_Concurrent(t *testing.T) {
	path := writeSource(t, "def prelim_phase(): pass\nasync def collect_phase(): pass\n")
	want := []string{"prelim_phase", "collect_phase"}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names, err := Extract(context.Background(), path)
			if err != nil {
				errs <- err
				return
			}
			if !assert.ObjectsAreEqual(want, names) {
				errs <- errors.New("unexpected result")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestIsPhaseName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"prelim_phase", true},
		{"_phase", true},
		{"phase", false},
		{"prelim_phases", false},
		{"build_primary_phase_request", false},
		{"prelim_Phase", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPhaseName(tt.name))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	nf := &NotFoundError{Path: "/tmp/x.py", Err: fs.ErrNotExist}
	assert.Equal(t, "couldn't find the source file at /tmp/x.py: file does not exist", nf.Error())

	se := &SyntaxError{Path: "x.py", Line: 3, Column: 7, Detail: `unexpected ")"`}
	assert.Equal(t, `x.py exists, but contains invalid syntax: unexpected ")" (line 3, column 7)`, se.Error())
}
