package sync

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFile struct {
	path     string
	contents string
	mode     os.FileMode
	modTime  time.Time
}

func (f mockFile) writeTo(t *testing.T, fs afero.Fs) {
	require.NoError(t, fs.MkdirAll(filepath.Dir(f.path), 0755))
	require.NoError(t, afero.WriteFile(fs, f.path, []byte(f.contents), f.mode))
	require.NoError(t, fs.Chtimes(f.path, time.Now(), f.modTime))
}

func (f mockFile) withPath(path string) mockFile {
	f.path = path
	return f
}

func randomFile(overrides mockFile) mockFile {
	if overrides.path == "" {
		overrides.path = "/" + strconv.Itoa(rand.Int())
	}

	if overrides.contents == "" {
		overrides.contents = strconv.Itoa(rand.Int())
	}

	if overrides.modTime.IsZero() {
		randomTime := time.Date(2019, 11, 10, rand.Intn(23), rand.Intn(59), rand.Intn(59), 0, time.UTC)
		overrides.modTime = randomTime
	}

	if overrides.mode == 0000 {
		overrides.mode = os.FileMode(0640 | rand.Intn(8))
	}
	return overrides
}

// treeEntry describes an entry in a tree for comparisons in tests.
type treeEntry struct {
	dir      bool
	contents string
	modTime  time.Time
}

// readTree returns every entry beneath `root`, keyed by its path relative to
// `root`.
func readTree(t *testing.T, fs afero.Fs, root string) map[string]treeEntry {
	tree := map[string]treeEntry{}
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		require.NoError(t, err)
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)

		if fi.IsDir() {
			tree[rel] = treeEntry{dir: true}
			return nil
		}

		contents, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		tree[rel] = treeEntry{contents: string(contents), modTime: fi.ModTime().UTC()}
		return nil
	})
	require.NoError(t, err)
	return tree
}

func assertMirrored(t *testing.T, fs afero.Fs, source, replica string) {
	assert.Equal(t, readTree(t, fs, source), readTree(t, fs, replica))
}

// failingFs wraps an afero.Fs and fails operations on specific paths.
type failingFs struct {
	afero.Fs
	failOpen   map[string]bool
	failRemove map[string]bool
	failMkdir  map[string]bool
}

func (fs failingFs) Open(name string) (afero.File, error) {
	if fs.failOpen[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.Open(name)
}

func (fs failingFs) Remove(name string) error {
	if fs.failRemove[name] {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.Remove(name)
}

func (fs failingFs) RemoveAll(name string) error {
	if fs.failRemove[name] {
		return &os.PathError{Op: "removeall", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.RemoveAll(name)
}

func (fs failingFs) MkdirAll(name string, perm os.FileMode) error {
	if fs.failMkdir[name] {
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.MkdirAll(name, perm)
}

// panicFs panics on every Stat.
type panicFs struct {
	afero.Fs
}

func (panicFs) Stat(name string) (os.FileInfo, error) {
	panic("stat exploded")
}

func newTestLogger() (*logrus.Logger, *logrusTest.Hook) {
	logger, hook := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func logMessages(hook *logrusTest.Hook, level logrus.Level) (msgs []string) {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level {
			msgs = append(msgs, entry.Message)
		}
	}
	return msgs
}
