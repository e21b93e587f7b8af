package sync

import (
	"os"
	"syscall"

	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Action is what needs to happen to a replica file.
type Action int

const (
	// Skip means the replica file already matches the source.
	Skip Action = iota

	// Copy means the source file must be copied over the replica file.
	Copy
)

// Reason explains a Decision.
type Reason string

const (
	// ReasonUpToDate means the replica's modification time equals the
	// source's.
	ReasonUpToDate Reason = "up-to-date"

	// ReasonMissing means the replica file doesn't exist.
	ReasonMissing Reason = "missing"

	// ReasonStale means the replica's modification time differs from the
	// source's.
	ReasonStale Reason = "stale"

	// ReasonReplacesDirectory means the replica has a directory where the
	// source has a file. The directory has to be removed before copying.
	ReasonReplacesDirectory Reason = "replaces-directory"
)

// Decision is the result of comparing a source file with its replica
// counterpart.
type Decision struct {
	Action Action
	Reason Reason
}

// Compare decides whether the file at `sourcePath` must be copied to
// `replicaPath`.
//
// Modification times are compared exactly. Filesystems with different
// timestamp resolutions will therefore cause a copy on every pass, since the
// replica can never hold the source's exact timestamp.
func Compare(fs afero.Fs, sourcePath, replicaPath string) (Decision, error) {
	srcInfo, err := fs.Stat(sourcePath)
	if err != nil {
		return Decision{}, errors.WithContext(err, "stat source")
	}

	dstInfo, err := fs.Stat(replicaPath)
	switch {
	case os.IsNotExist(err), errors.Is(err, syscall.ENOTDIR):
		// ENOTDIR means a parent is still a file, which only happens in dry
		// runs where the parent was never replaced.
		return Decision{Action: Copy, Reason: ReasonMissing}, nil
	case err != nil:
		return Decision{}, errors.WithContext(err, "stat replica")
	case dstInfo.IsDir():
		return Decision{Action: Copy, Reason: ReasonReplacesDirectory}, nil
	case !srcInfo.ModTime().Equal(dstInfo.ModTime()):
		return Decision{Action: Copy, Reason: ReasonStale}, nil
	}
	return Decision{Action: Skip, Reason: ReasonUpToDate}, nil
}
