package sync

import (
	"fmt"
	"time"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Op names the filesystem operation that an OpError occurred in.
type Op string

// The operations performed during a pass.
const (
	OpCheckRoots Op = "check roots"
	OpWalk       Op = "walk"
	OpStat       Op = "stat"
	OpCompare    Op = "compare"
	OpCreateDir  Op = "create directory"
	OpCopyFile   Op = "copy file"
	OpRemoveFile Op = "remove file"
	OpRemoveDir  Op = "remove directory"
	OpPass       Op = "pass"
)

// OpError records a failed operation. A failed operation only affects its own
// entry (and, for directories, the entry's subtree). The rest of the pass
// still runs.
type OpError struct {
	Op   Op
	Path string
	Err  error
}

func (err *OpError) Error() string {
	return fmt.Sprintf("%s %q: %s", err.Op, err.Path, err.Err)
}

func (err *OpError) Unwrap() error {
	return err.Err
}

// Result summarizes a single pass.
type Result struct {
	// PassID uniquely identifies the pass in logs.
	PassID string

	Source  string
	Replica string
	DryRun  bool

	Started  time.Time
	Finished time.Time

	DirsCreated  int
	FilesCopied  int
	FilesUpdated int
	FilesRemoved int
	DirsRemoved  int

	// Errors contains every operation that failed during the pass.
	Errors []*OpError

	// Interrupted is set if the pass was cancelled before it completed.
	Interrupted bool
}

// Mutations returns the number of changes made to the replica. In a dry run,
// it's the number of changes that would have been made.
func (r Result) Mutations() int {
	return r.DirsCreated + r.FilesCopied + r.FilesUpdated + r.FilesRemoved + r.DirsRemoved
}

// Failed returns whether any operation failed.
func (r Result) Failed() bool {
	return len(r.Errors) > 0
}

// Duration returns how long the pass took.
func (r Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Err returns an error describing the failed operations, or nil if none
// failed.
func (r Result) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return r.Errors[0]
	default:
		return errors.WithContext(r.Errors[0],
			fmt.Sprintf("%d operations failed, the first was", len(r.Errors)))
	}
}
