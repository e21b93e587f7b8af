package sync

import (
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// tempPrefix is the prefix of the files that copies are staged in. A staged
// file that's left behind by a crash has no counterpart in the source, so the
// next pass prunes it.
const tempPrefix = ".foldersync-"

// copyFile copies the contents and mode of `src` to `dst`, and sets the
// modification time of `dst` to the modification time `src` had when it was
// opened. The contents are staged in a temporary file next to `dst` and
// renamed into place, so `dst` is never left partially written.
func copyFile(fs afero.Fs, log logrus.FieldLogger, src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	tmpFile, err := afero.TempFile(fs, filepath.Dir(dst), tempPrefix)
	if err != nil {
		return errors.WithContext(err, "create staging file")
	}
	tmpPath := tmpFile.Name()

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := fs.Remove(tmpPath); err != nil {
			log.WithError(err).WithField("path", tmpPath).Warn(
				"Failed to clean up staging file. It will be removed by the next pass.")
		}
	}()

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		tmpFile.Close()
		return errors.WithContext(err, "copy")
	}

	if err := tmpFile.Close(); err != nil {
		return errors.WithContext(err, "close staging file")
	}

	if err := fs.Chmod(tmpPath, fileInfo.Mode().Perm()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	if err := fs.Rename(tmpPath, dst); err != nil {
		return errors.WithContext(err, "rename")
	}
	committed = true

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(dst, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}
