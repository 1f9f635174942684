package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjk/movielib/require"
)

func TestWriteDailyRotates(t *testing.T) {
	dir := t.TempDir()
	w := NewWriteDaily(dir)
	day1 := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day1 }
	require.NoError(t, w.WriteString("first\n"))
	require.NoError(t, w.WriteString("second\n"))

	day2 := day1.Add(2 * time.Minute)
	w.now = func() time.Time { return day2 }
	require.NoError(t, w.WriteString("third\n"))
	require.NoError(t, w.Close())

	d, err := os.ReadFile(filepath.Join(dir, "2024-03-09.txt"))
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(d))
	d, err = os.ReadFile(w.Path(day2))
	require.NoError(t, err)
	require.Equal(t, "third\n", string(d))
}

func TestWriteDailyNil(t *testing.T) {
	var w *WriteDaily
	require.NoError(t, w.WriteString("ignored"))
	require.NoError(t, w.Close())
}

func TestLogf(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	Init(&Config{Dir: dir, Output: &buf})
	defer Close()

	Logf("added movie %d\n", 3)
	Verbosef("not shown\n")
	Verbose = true
	Verbosef("shown\n")
	require.Equal(t, "added movie 3\nshown\n", buf.String())

	require.True(t, IfErrf(errors.New("disk full")))
	require.False(t, IfErrf(nil))
	require.True(t, strings.Contains(buf.String(), "disk full"))
	Close()

	errs, err := os.ReadDir(filepath.Join(dir, "errors"))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	d, err := os.ReadFile(filepath.Join(dir, "errors", errs[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(d), "disk full")
	// callstack points to the caller
	require.Contains(t, string(d), "log_test.go")
}

func TestLogfNotInitialized(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Output: &buf})
	Logf("no files %s", "here")
	Errorf("still fine")
	require.True(t, strings.HasPrefix(buf.String(), "no files here"))
}
