package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// dirMode is the mode used for directories created in the replica.
const dirMode = 0755

// Synchronizer mirrors source trees onto replica trees. It keeps no state
// between passes.
type Synchronizer struct {
	// DryRun makes passes log and count the mutations they would make
	// without touching the replica.
	DryRun bool

	fs  afero.Fs
	log logrus.FieldLogger
}

// New creates a Synchronizer that operates on `fs` and reports every mutation
// and failure to `log`.
func New(fs afero.Fs, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{fs: fs, log: log}
}

// pass holds the state of a single call to Synchronize.
type pass struct {
	*Synchronizer
	ctx     context.Context
	source  string
	replica string
	result  *Result
	log     logrus.FieldLogger
}

// Synchronize makes `replicaRoot` a mirror of `sourceRoot`.
//
// Failed operations are recorded in the returned Result and logged; they
// never stop the rest of the pass. Cancelling `ctx` stops the pass before the
// next entry is processed. The replica is then partially synced, and the next
// pass finishes the job.
func (s *Synchronizer) Synchronize(ctx context.Context, sourceRoot, replicaRoot string) (res Result) {
	res = Result{
		PassID:  uuid.New().String(),
		Source:  sourceRoot,
		Replica: replicaRoot,
		DryRun:  s.DryRun,
		Started: time.Now(),
	}

	passLog := s.log.WithField("pass", res.PassID)
	if s.DryRun {
		passLog = passLog.WithField("dryRun", true)
	}

	p := &pass{
		Synchronizer: s,
		ctx:          ctx,
		source:       sourceRoot,
		replica:      replicaRoot,
		result:       &res,
		log:          passLog,
	}

	defer func() {
		if r := recover(); r != nil {
			p.fail(OpPass, sourceRoot, errors.UnexpectedFailure{Value: r})
		}
		res.Finished = time.Now()
		p.logSummary()
	}()

	if p.interrupted() {
		return
	}

	if err := p.checkRoots(); err != nil {
		p.fail(OpCheckRoots, sourceRoot, err)
		return
	}

	if !p.ensureDir(replicaRoot) {
		return
	}

	if err := Walk(s.fs, sourceRoot, p.copyEntry); err != nil && !p.interrupted() {
		p.fail(OpWalk, sourceRoot, err)
	}

	if p.interrupted() {
		return
	}

	if err := Walk(s.fs, replicaRoot, p.pruneEntry); err != nil && !p.interrupted() {
		p.fail(OpWalk, replicaRoot, err)
	}
	return
}

// CheckNesting returns an error if `source` and `replica` are the same
// directory, or if either contains the other. Mirroring into a nested root
// would copy the replica into itself on every pass.
func CheckNesting(source, replica string) error {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return errors.WithContext(err, "resolve source")
	}

	absReplica, err := filepath.Abs(replica)
	if err != nil {
		return errors.WithContext(err, "resolve replica")
	}

	switch {
	case absSource == absReplica:
		return errors.ConfigurationError{
			Err: errors.New("source and replica are the same directory")}
	case IsWithin(absSource, absReplica):
		return errors.ConfigurationError{
			Err: errors.New("replica is inside the source directory")}
	case IsWithin(absReplica, absSource):
		return errors.ConfigurationError{
			Err: errors.New("source is inside the replica directory")}
	}
	return nil
}

// IsWithin returns whether `child` is strictly beneath `parent`. Both paths
// must be absolute, or relative to the same directory.
func IsWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkRoots makes sure that both roots are usable. A missing source is
// allowed: it mirrors as an empty tree.
func (p *pass) checkRoots() error {
	if err := CheckNesting(p.source, p.replica); err != nil {
		return err
	}

	srcInfo, err := p.fs.Stat(p.source)
	switch {
	case os.IsNotExist(err):
		p.log.WithField("source", p.source).Warn(
			"Source does not exist. Everything in the replica will be removed.")
	case err != nil:
		return errors.WithContext(err, "stat source")
	case !srcInfo.IsDir():
		return errors.NotADirectory{Path: p.source}
	}

	dstInfo, err := p.fs.Stat(p.replica)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return errors.WithContext(err, "stat replica")
	case !dstInfo.IsDir():
		return errors.NotADirectory{Path: p.replica}
	}
	return nil
}

func (p *pass) copyEntry(entry Entry, err error) error {
	if p.interrupted() {
		return p.ctx.Err()
	}

	srcPath := filepath.Join(p.source, entry.RelPath)
	dstPath := filepath.Join(p.replica, entry.RelPath)
	if err != nil {
		p.fail(OpWalk, srcPath, err)
		return skipSubtree(entry)
	}

	switch entry.Kind {
	case Directory:
		if !p.ensureDir(dstPath) {
			// The children can't be created without their parent.
			return filepath.SkipDir
		}
	case File:
		p.syncFile(srcPath, dstPath)
	}
	return nil
}

// ensureDir creates the directory at `path` if it doesn't exist. A file in
// its way is removed first. It returns false if the directory couldn't be
// created.
func (p *pass) ensureDir(path string) bool {
	info, err := p.fs.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return true
	case err == nil:
		if !p.removeFile(path) {
			return false
		}
	case !os.IsNotExist(err):
		p.fail(OpStat, path, err)
		return false
	}

	if !p.DryRun {
		if err := p.fs.MkdirAll(path, dirMode); err != nil {
			p.fail(OpCreateDir, path, err)
			return false
		}
	}

	p.result.DirsCreated++
	p.log.WithField("path", path).Info("Folder created")
	return true
}

func (p *pass) syncFile(srcPath, dstPath string) {
	decision, err := Compare(p.fs, srcPath, dstPath)
	if err != nil {
		p.fail(OpCompare, srcPath, err)
		return
	}

	if decision.Action == Skip {
		return
	}

	if decision.Reason == ReasonReplacesDirectory && !p.removeDir(dstPath) {
		return
	}

	if !p.DryRun {
		if err := copyFile(p.fs, p.log, srcPath, dstPath); err != nil {
			p.fail(OpCopyFile, srcPath, err)
			return
		}
	}

	fileLog := p.log.WithFields(logrus.Fields{
		"source":  srcPath,
		"replica": dstPath,
		"reason":  decision.Reason,
	})
	if decision.Reason == ReasonStale {
		p.result.FilesUpdated++
		fileLog.Info("File updated")
	} else {
		p.result.FilesCopied++
		fileLog.Info("File copied")
	}
}

func (p *pass) pruneEntry(entry Entry, err error) error {
	if p.interrupted() {
		return p.ctx.Err()
	}

	srcPath := filepath.Join(p.source, entry.RelPath)
	dstPath := filepath.Join(p.replica, entry.RelPath)
	if err != nil {
		p.fail(OpWalk, dstPath, err)
		return skipSubtree(entry)
	}

	srcInfo, err := p.fs.Stat(srcPath)
	switch {
	case err == nil && kindOf(srcInfo) == entry.Kind:
		return nil
	case err == nil:
		// The kinds only differ here if the copy phase failed to replace the
		// entry, or if this is a dry run. Either way, the copy phase already
		// reported it.
		return skipSubtree(entry)
	case !os.IsNotExist(err):
		// Never remove anything based on a source we can't read.
		p.fail(OpStat, srcPath, err)
		return skipSubtree(entry)
	}

	if entry.Kind == Directory {
		p.removeDir(dstPath)

		// The directory's contents were removed along with it. Don't visit
		// them, otherwise each would fail as already removed.
		return filepath.SkipDir
	}
	p.removeFile(dstPath)
	return nil
}

func (p *pass) removeFile(path string) bool {
	if !p.DryRun {
		if err := p.fs.Remove(path); err != nil {
			p.fail(OpRemoveFile, path, err)
			return false
		}
	}

	p.result.FilesRemoved++
	p.log.WithField("path", path).Info("File removed")
	return true
}

func (p *pass) removeDir(path string) bool {
	if !p.DryRun {
		if err := p.fs.RemoveAll(path); err != nil {
			p.fail(OpRemoveDir, path, err)
			return false
		}
	}

	p.result.DirsRemoved++
	p.log.WithField("path", path).Info("Folder removed")
	return true
}

func (p *pass) fail(op Op, path string, err error) {
	p.result.Errors = append(p.result.Errors, &OpError{Op: op, Path: path, Err: err})
	p.log.WithError(err).WithFields(logrus.Fields{
		"op":   op,
		"path": path,
	}).Error("Synchronization operation failed")
}

// interrupted returns whether the pass was cancelled, and records it in the
// result.
func (p *pass) interrupted() bool {
	if p.ctx.Err() == nil {
		return false
	}
	p.result.Interrupted = true
	return true
}

func (p *pass) logSummary() {
	res := p.result
	summaryLog := p.log.WithFields(logrus.Fields{
		"source":       res.Source,
		"replica":      res.Replica,
		"dirsCreated":  res.DirsCreated,
		"filesCopied":  res.FilesCopied,
		"filesUpdated": res.FilesUpdated,
		"filesRemoved": res.FilesRemoved,
		"dirsRemoved":  res.DirsRemoved,
		"errors":       len(res.Errors),
		"duration":     res.Duration(),
	})

	switch {
	case res.Interrupted:
		summaryLog.Warn("Synchronization interrupted")
	case res.Failed():
		summaryLog.Error("Synchronization finished with errors")
	case res.Mutations() == 0:
		summaryLog.Debug("Already synced")
	default:
		summaryLog.Info("Synchronization finished")
	}
}
