// Package executor implements the Copy/Move and Delete Executors (spec
// §4.F, §4.G), grounded on original_source/rnr/rnr_cpmv.py and
// rnr_delete.py: conflict-policy resolution, the rename_dir_stack /
// skip_dir_stack bookkeeping, the mv-rename-with-EXDEV-fallback shortcut,
// and post-order directory finalization.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bugnano/rnr/internal/blockcopy"
	"github.com/bugnano/rnr/internal/ctrlflow"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/progressbus"
)

// errChecksumMismatch is returned when the --checksum pass's post-copy
// BLAKE3 digest of source and destination disagree, becoming an ERROR file
// record rather than a silently accepted copy (SPEC_FULL.md's supplemental
// checksum feature, grounded on the teacher's copyAndRemove verify pass).
var errChecksumMismatch = errors.New("checksum mismatch")

// CopyMove runs one Copy or Move job to completion (or until interrupted,
// aborted, or skipped), persisting per-file progress to a Store as it goes
// so a killed process can resume.
type CopyMove struct {
	Store  *jobstore.Store
	Events *ctrlflow.Events
	Bus    *progressbus.Bus
}

// NewCopyMove builds a CopyMove executor. Store may be jobstore.NoDB() to
// run without persistence; Bus may be nil to run without progress
// reporting (both common in tests).
func NewCopyMove(store *jobstore.Store, events *ctrlflow.Events, bus *progressbus.Bus) *CopyMove {
	if events == nil {
		events = ctrlflow.NewEvents()
	}

	return &CopyMove{Store: store, Events: events, Bus: bus}
}

// Run executes job.WorkList in path-sorted order (spec §9: "paths whose
// components contain the OS separator are normalized by replacing the
// separator with NUL for sort purposes, guaranteeing parents precede
// children"). WorkItems already DONE/ERROR/SKIPPED are passed through
// unchanged into the result (the resume path).
func (c *CopyMove) Run(ctx context.Context, job *model.Job) model.Report {
	if c.Bus != nil {
		defer c.Bus.PushDone(progressbus.Done{})
	}

	sort.SliceStable(job.WorkList, func(i, j int) bool {
		return model.PathSortKey(job.WorkList[i].File) < model.PathSortKey(job.WorkList[j].File)
	})

	st := &cpmvState{
		job:            job,
		renameDirStack: append([]model.RenameDirEntry(nil), job.RenameDirStack...),
		skipDirStack:   append([]string(nil), job.SkipDirStack...),
		dirList:        append([]model.DirListEntry(nil), job.DirList...),
		blockSize:      blockcopy.BlockSizeFor(job.Destination),
	}

	st.replaceFirstPath = job.ReplaceFirstPath

	var report model.Report

	for i := range job.WorkList {
		item := &job.WorkList[i]

		switch item.Status {
		case model.StatusDone:
			report.Result = append(report.Result, model.ResultEntry{File: item.File, Message: item.Warning})

			continue
		case model.StatusError:
			report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: item.Message})

			continue
		case model.StatusSkipped:
			report.Skipped = append(report.Skipped, model.ResultEntry{File: item.File, Message: item.Message})

			continue
		}

		switch c.Events.Check() {
		case ctrlflow.SignalInterrupt:
			return report
		case ctrlflow.SignalAbort:
			return c.finalizeDirs(ctx, st, c.abortRemaining(ctx, job, i, report))
		case ctrlflow.SignalSkip:
			item.Status = model.StatusSkipped
			c.Store.SetFileStatus(ctx, item, model.StatusSkipped, "")
			report.Skipped = append(report.Skipped, model.ResultEntry{File: item.File})

			continue
		}

		skipped, noLog := st.popSkippedDirs(item.File)
		if skipped {
			if noLog {
				item.Status = model.StatusDone
				c.Store.SetFileStatus(ctx, item, model.StatusDone, "")
				report.Result = append(report.Result, model.ResultEntry{File: item.File})
			}

			continue
		}

		msg, warning, skipReason, err := c.processOne(ctx, st, item)

		switch {
		case errors.Is(err, ctrlflow.ErrInterrupted):
			// Exit without touching DB state so the job remains resumable
			// (spec §7): the IN_PROGRESS/cur_target persist already
			// happened in processOne before the copy was attempted.
			return report
		case errors.Is(err, ctrlflow.ErrAborted):
			return c.finalizeDirs(ctx, st, c.abortRemaining(ctx, job, i, report))
		case err != nil:
			item.Status = model.StatusError
			c.Store.SetFileStatus(ctx, item, model.StatusError, msg)
			report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: msg})
		case skipReason != "":
			item.Status = model.StatusSkipped
			c.Store.SetFileStatus(ctx, item, model.StatusSkipped, skipReason)
			report.Skipped = append(report.Skipped, model.ResultEntry{File: item.File, Message: skipReason})
		default:
			item.Status = model.StatusDone
			item.Warning = warning
			c.Store.SetFileStatus(ctx, item, model.StatusDone, warning)
			report.Result = append(report.Result, model.ResultEntry{File: item.File, Message: warning})
		}

		c.Store.SetRenameDirStack(ctx, job.ID, st.renameDirStack)
		c.Store.SetSkipDirStack(ctx, job.ID, st.skipDirStack)
	}

	return c.finalizeDirs(ctx, st, report)
}

// abortRemaining marks job.WorkList[from:] (inclusive) as ABORTED, used
// both by the top-of-loop SignalAbort check and by a mid-copy abort
// detected inside performCopy.
func (c *CopyMove) abortRemaining(ctx context.Context, job *model.Job, from int, report model.Report) model.Report {
	for i := from; i < len(job.WorkList); i++ {
		report.Aborted = append(report.Aborted, model.ResultEntry{File: job.WorkList[i].File})
		c.Store.SetFileStatus(ctx, &job.WorkList[i], model.StatusError, "Aborted")
	}

	return report
}

type cpmvState struct {
	job              *model.Job
	renameDirStack   []model.RenameDirEntry
	skipDirStack     []string
	dirList          []model.DirListEntry
	replaceFirstPath bool
	blockSize        int64
}

// popSkippedDirs mirrors the skip_dir_stack walk at the top of the Python
// loop body: while the stack's top entry is an ancestor of file, it stays;
// once it no longer is, it's popped (it can never match again, since
// WorkItems are processed in path order). noLog is true when a match is
// found (the item is silently counted as done, matching the `no_log`
// SkippedError sentinel).
func (s *cpmvState) popSkippedDirs(file string) (skipped, noLog bool) {
	for len(s.skipDirStack) > 0 {
		top := s.skipDirStack[len(s.skipDirStack)-1]

		if isUnder(file, top) {
			return true, true
		}

		s.skipDirStack = s.skipDirStack[:len(s.skipDirStack)-1]
	}

	return false, false
}

// targetFor computes cur_target for file, applying replace_first_path and
// then walking renameDirStack the same way dir_stack is walked in the
// original: pop entries whose old_target is not an ancestor, remap once one
// is found.
func (s *cpmvState) targetFor(relFile string) string {
	var target string

	if s.replaceFirstPath {
		parts := strings.SplitN(relFile, string(filepath.Separator), 2)
		if len(parts) == 2 {
			target = filepath.Join(s.job.Destination, parts[1])
		} else {
			target = s.job.Destination
		}
	} else {
		target = filepath.Join(s.job.Destination, relFile)
	}

	for len(s.renameDirStack) > 0 {
		top := s.renameDirStack[len(s.renameDirStack)-1]

		if isUnder(target, top.OldTarget) {
			return strings.Replace(target, top.OldTarget, top.NewTarget, 1)
		}

		s.renameDirStack = s.renameDirStack[:len(s.renameDirStack)-1]
	}

	return target
}

func isUnder(path, ancestor string) bool {
	if path == ancestor {
		return false
	}

	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// processOne performs one WorkItem's copy/move action, returning exactly
// one of (message for StatusError), (warning for success), or
// (skipReason for StatusSkipped). It mirrors the large try/except body of
// rnr_cpmv's main loop.
func (c *CopyMove) processOne(ctx context.Context, st *cpmvState, item *model.WorkItem) (errMsg, warning, skipReason string, err error) {
	cwd := st.job.SourceCwd
	relFile, relErr := filepath.Rel(cwd, item.File)
	if relErr != nil {
		relFile = item.File
	}

	curFile := item.File
	curTarget := st.targetFor(relFile)

	if c.Bus != nil {
		c.Bus.PushSample(progressbus.Sample{CurFile: relFile, TotalSize: item.Lstat.Size})
	}

	when := ""

	// A resumed item already chose its cur_target and survived conflict
	// resolution on the run that was interrupted; re-running that check
	// would see the item's own partial output and treat it as a conflicting
	// pre-existing file. Go straight to the copy step, which reopens
	// cur_target without O_EXCL and seeks past what's already on disk.
	if item.Resumed {
		curTarget = item.CurTarget

		if copyErr := c.performCopy(ctx, st, item, curFile, curTarget, &when); copyErr != nil {
			return classifyCopyErr(copyErr, curTarget, when)
		}

		item.CurTarget = curTarget

		return "", "Resumed", "", nil
	}

	targetInfo, statErr := os.Lstat(curTarget)
	targetExists := statErr == nil
	targetIsDir := targetExists && targetInfo.IsDir()
	targetIsSymlink := targetExists && targetInfo.Mode()&os.ModeSymlink != 0

	if targetExists && !(item.IsDir && targetIsDir) {
		if sameFile(curFile, curTarget) {
			if st.job.Operation == model.OperationMove || (st.job.ConflictPolicy != model.ConflictRenameExisting && st.job.ConflictPolicy != model.ConflictRenameCopy) {
				return "", "", "Same file", nil
			}
		}

		switch st.job.ConflictPolicy {
		case model.ConflictOverwrite:
			when = "remove"

			var rmErr error
			if targetIsDir {
				rmErr = os.RemoveAll(curTarget)
			} else {
				rmErr = os.Remove(curTarget)
			}

			if rmErr != nil {
				return fmt.Sprintf("(%s) %s", when, rmErr.Error()), "", "", rmErr
			}

			warning = "Overwrite"
		case model.ConflictRenameExisting:
			existingTarget, newName := rotateName(curTarget, "rnrsave")

			if sameFile(curFile, curTarget) {
				curFile = existingTarget
			}

			when = "rename"
			if rerr := os.Rename(curTarget, existingTarget); rerr != nil {
				return fmt.Sprintf("(%s) %s", when, rerr.Error()), "", "", rerr
			}

			warning = "Renamed to " + newName
		case model.ConflictRenameCopy:
			var newName string

			i := 0
			name := filepath.Base(curTarget)

			for {
				candidate := filepath.Join(filepath.Dir(curTarget), fmt.Sprintf("%s.rnrnew%d", name, i))
				if _, err := os.Lstat(candidate); err != nil {
					newName = filepath.Base(candidate)

					if item.IsDir {
						st.renameDirStack = append(st.renameDirStack, model.RenameDirEntry{OldTarget: curTarget, NewTarget: candidate})
					}

					curTarget = candidate

					break
				}

				i++
			}

			warning = "Renamed to " + newName
		default:
			return "", "", "Target exists", nil
		}
	}

	// Persist WorkItem state before performing the operation (spec §4.F
	// step 5), so a crash mid-copy leaves cur_target/target_is_dir/
	// target_is_symlink on disk for Hydrate to restore and resume from.
	item.CurTarget = curTarget
	item.TargetIsDir = targetIsDir
	item.TargetIsSymlink = targetIsSymlink
	c.Store.UpdateFile(ctx, item, model.StatusInProgress, "")

	performCopy := true

	if st.job.Operation == model.OperationMove && !targetIsDir {
		if rerr := os.Rename(curFile, curTarget); rerr == nil {
			performCopy = false

			if item.IsDir {
				st.skipDirStack = append(st.skipDirStack, curFile)
			}
		}
	}

	if performCopy {
		if copyErr := c.performCopy(ctx, st, item, curFile, curTarget, &when); copyErr != nil {
			return classifyCopyErr(copyErr, curTarget, when)
		}

		if item.IsDir {
			preexisted := targetExists && targetIsDir
			st.dirList = append(st.dirList, model.DirListEntry{WorkItem: *item, CurFile: curFile, CurTarget: curTarget, NewDir: !preexisted})
			c.Store.SetDirList(ctx, st.job.ID, st.dirList)
		} else {
			if lerr := lchown(curTarget, item.Lstat.Uid, item.Lstat.Gid); lerr != nil {
				when = "lchown"

				return fmt.Sprintf("(%s) %s", when, lerr.Error()), "", "", lerr
			}

			when = "copystat"
			if serr := copystat(curTarget, item.Lstat.Mode, item.Lstat.ModTime.Unix(), item.Lstat.AccTime.Unix(), item.IsSymlink); serr != nil {
				return fmt.Sprintf("(%s) %s", when, serr.Error()), "", "", serr
			}

			when = "fsync"
			if ferr := fsyncDir(filepath.Dir(curTarget)); ferr != nil {
				return fmt.Sprintf("(%s) %s", when, ferr.Error()), "", "", ferr
			}
		}
	}

	if st.job.Operation == model.OperationMove && !item.IsDir {
		if performCopy {
			when = "remove"
			if rerr := os.Remove(curFile); rerr != nil {
				return fmt.Sprintf("(%s) %s", when, rerr.Error()), "", "", rerr
			}
		}

		when = "fsync"
		if ferr := fsyncDir(filepath.Dir(curFile)); ferr != nil {
			return fmt.Sprintf("(%s) %s", when, ferr.Error()), "", "", ferr
		}
	}

	item.CurTarget = curTarget

	return "", warning, "", nil
}

func (c *CopyMove) performCopy(ctx context.Context, st *cpmvState, item *model.WorkItem, curFile, curTarget string, when *string) error {
	switch {
	case item.IsSymlink:
		*when = "symlink"

		target, err := os.Readlink(curFile)
		if err != nil {
			return err
		}

		return os.Symlink(target, curTarget)
	case item.IsDir:
		*when = "makedirs"

		return os.MkdirAll(curTarget, 0o777)
	case item.IsFile:
		*when = "copyfile"

		if _, err := blockcopy.Copy(ctx, curFile, curTarget, item.Lstat.Size, blockcopy.Options{
			BlockSize: st.blockSize,
			Resume:    item.Resumed,
			Events:    c.Events,
			Bus:       c.Bus,
		}); err != nil {
			return err
		}

		if !st.job.Checksum {
			return nil
		}

		*when = "checksum"

		return verifyChecksum(curFile, curTarget)
	default:
		return fmt.Errorf("special file")
	}
}

// classifyCopyErr turns an error returned by performCopy into processOne's
// (errMsg, warning, skipReason, err) return shape. blockcopy.Copy returns
// ctrlflow.ErrSkipped/ErrAborted/ErrInterrupted for a mid-copy suspension
// point instead of an OS error; a generic OS error still falls back to the
// "(when) message" formatting every other call site in this file uses.
func classifyCopyErr(copyErr error, curTarget, when string) (errMsg, warning, skipReason string, err error) {
	switch {
	case errors.Is(copyErr, ctrlflow.ErrSkipped):
		// Spec §4.F.a: "Skip during copy removes the partial target file."
		_ = os.Remove(curTarget)

		return "", "", "Skipped", nil
	case errors.Is(copyErr, ctrlflow.ErrAborted):
		return "", "", "", ctrlflow.ErrAborted
	case errors.Is(copyErr, ctrlflow.ErrInterrupted):
		return "", "", "", ctrlflow.ErrInterrupted
	default:
		return fmt.Sprintf("(%s) %s", when, copyErr.Error()), "", "", copyErr
	}
}

// verifyChecksum re-reads src and dst in full and compares their BLAKE3
// digests, independent of any partial hashing blockcopy.Copy may have done
// during a resumed transfer (which only sees the bytes written this call).
func verifyChecksum(src, dst string) error {
	srcSum, err := hashFile(src)
	if err != nil {
		return fmt.Errorf("hashing source: %w", err)
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		return fmt.Errorf("hashing destination: %w", err)
	}

	if !bytes.Equal(srcSum, dstSum) {
		return errChecksumMismatch
	}

	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// rotateName finds the first available "<name>.rnrsave<i>" sibling of
// target, matching rename_existing's probe loop.
func rotateName(target, tag string) (path, name string) {
	i := 0
	base := filepath.Base(target)
	dir := filepath.Dir(target)

	for {
		candidate := filepath.Join(dir, base+"."+tag+strconv.Itoa(i))
		if _, err := os.Lstat(candidate); err != nil {
			return candidate, filepath.Base(candidate)
		}

		i++
	}
}

// finalizeDirs performs the post-order directory finalization pass over
// every directory recorded this run, reversed so children are finalized
// before their parents: lchown + copystat for directories this run created
// (a pre-existing merge target keeps its own metadata), fsync of the
// target's parent, then (on Move) rmdir of the now-empty source directory.
func (c *CopyMove) finalizeDirs(ctx context.Context, st *cpmvState, report model.Report) model.Report {
	for i := len(st.dirList) - 1; i >= 0; i-- {
		entry := st.dirList[i]

		switch c.Events.Check() {
		case ctrlflow.SignalInterrupt:
			return report
		case ctrlflow.SignalAbort:
			continue
		}

		item := entry.WorkItem

		if entry.NewDir {
			if err := lchown(entry.CurTarget, item.Lstat.Uid, item.Lstat.Gid); err != nil {
				report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: "(lchown) " + err.Error()})

				continue
			}

			if err := copystat(entry.CurTarget, item.Lstat.Mode, item.Lstat.ModTime.Unix(), item.Lstat.AccTime.Unix(), false); err != nil {
				report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: "(copystat) " + err.Error()})

				continue
			}
		}

		if err := fsyncDir(filepath.Dir(entry.CurTarget)); err != nil {
			report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: "(fsync) " + err.Error()})

			continue
		}

		if st.job.Operation == model.OperationMove {
			if err := os.Remove(entry.CurFile); err != nil {
				report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: "(rmdir) " + err.Error()})

				continue
			}

			_ = fsyncDir(filepath.Dir(entry.CurFile))
		}
	}

	c.Store.SetDirList(ctx, st.job.ID, nil)
	c.Store.SetJobStatus(ctx, st.job.ID, model.JobDone)

	return report
}
