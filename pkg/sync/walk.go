package sync

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Kind is the type of an Entry.
type Kind int

const (
	// Unknown is used for entries that couldn't be stat'd.
	Unknown Kind = iota
	Directory
	File
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

// An Entry is a directory or file found beneath a walked root.
type Entry struct {
	// RelPath is the path of the entry relative to the walked root. It's the
	// key used to match source entries with replica entries.
	RelPath string

	Kind    Kind
	ModTime time.Time
	Mode    os.FileMode
}

// WalkFunc is called by Walk for each entry.
//
// If err is non-nil, the entry couldn't be read, or, for a directory, its
// children couldn't be listed. Returning nil continues the walk with the next
// sibling, so the unreadable subtree is skipped. Returning filepath.SkipDir
// for a directory skips its children. Any other error stops the walk.
type WalkFunc func(entry Entry, err error) error

// Walk calls fn for every directory and file beneath root. Directories are
// visited before their children, and children are visited in lexical order.
// The root itself isn't passed to fn.
//
// The root is followed if it's a symlink to a directory. Links beneath the
// root are reported as files and never followed.
//
// If root doesn't exist, or isn't a directory, Walk doesn't call fn and
// returns nil.
func Walk(fs afero.Fs, root string, fn WalkFunc) error {
	rootInfo, err := fs.Stat(root)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.WithContext(err, "stat root")
	case !rootInfo.IsDir():
		return nil
	}

	children, err := afero.ReadDir(fs, root)
	if err != nil {
		return errors.WithContext(err, "read root")
	}

	walkFn := func(path string, fi os.FileInfo, err error) error {
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			// This shouldn't happen because `path` is always a child of `root`.
			return errors.WithContext(relErr, "relative path")
		}

		entry := Entry{RelPath: relPath}
		if fi != nil {
			entry.Kind = kindOf(fi)
			entry.ModTime = fi.ModTime()
			entry.Mode = fi.Mode()
		}
		return fn(entry, err)
	}

	// Only the root is resolved through Stat. afero.Walk Lstats each child.
	for _, child := range children {
		if err := afero.Walk(fs, filepath.Join(root, child.Name()), walkFn); err != nil {
			return err
		}
	}
	return nil
}

func kindOf(fi os.FileInfo) Kind {
	if fi.IsDir() {
		return Directory
	}
	return File
}

// skipSubtree returns the value a WalkFunc should return to avoid descending
// into `entry`. filepath.SkipDir must never be returned for a file since it
// would skip the file's remaining siblings.
func skipSubtree(entry Entry) error {
	if entry.Kind == Directory {
		return filepath.SkipDir
	}
	return nil
}
