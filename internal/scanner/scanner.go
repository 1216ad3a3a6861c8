// Package scanner implements the two-phase recursive directory scan (spec
// §4.C), grounded on original_source/rnr/rnr_dirscan.py: it turns the flat
// list of files/directories a user selected into a flat []model.WorkItem
// covering every descendant, suitable for driving a Copy/Move/Delete
// Executor.
package scanner

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/bugnano/rnr/internal/ctrlflow"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/progressbus"
)

// Result is the outcome of a full scan: every WorkItem whose file also
// appears in Errors has already been filtered out of WorkList, matching
// rnr_dirscan's `file_list = [x for x in file_list if x['file'] not in err]`.
type Result struct {
	WorkList []model.WorkItem
	Errors   []model.ScanIssue
	Skipped  []model.ScanIssue
}

type counters struct {
	current string
	files   int64
	bytes   int64
}

// Scan walks roots (each a logical, already-translated top-level path the
// user selected) and every descendant beneath any directory among them,
// pushing throttled progressbus samples and honoring events at each
// suspension point exactly where the original checks ev_interrupt/ev_abort/
// ev_skip: once per top-level item and once per entry of every
// os.scandir() call.
func Scan(fsys afero.Fs, roots []string, cwd string, events *ctrlflow.Events, bus *progressbus.Bus) Result {
	var (
		fileList []model.WorkItem
		errList  []model.ScanIssue
		skipped  []model.ScanIssue
	)

	info := &counters{current: cwd}
	throttle := progressbus.NewThrottle(50 * time.Millisecond)

	for _, root := range roots {
		switch events.Check() {
		case ctrlflow.SignalInterrupt, ctrlflow.SignalAbort:
			goto finish
		case ctrlflow.SignalSkip:
			fileList = nil
			errList = nil
			info.files = 0
			info.bytes = 0
			skipped = append(skipped, model.ScanIssue{File: cwd})

			goto finish
		}

		item, err := scanOne(fsys, root, info)
		if err != nil {
			errList = append(errList, model.ScanIssue{File: root, Message: formatOSError(err)})

			continue
		}

		fileList = append(fileList, item)

		if item.IsDir {
			before := len(fileList)
			kept := recursiveScan(fsys, root, &fileList, &errList, &skipped, info, throttle, events, bus)

			if !kept {
				fileList = fileList[:before-1]
				info.files--
				info.bytes -= item.Lstat.Size
			}
		}

		pushIfDue(bus, throttle, info)
	}

finish:

	filtered := fileList[:0:0]

	errSet := make(map[string]struct{}, len(errList))
	for _, e := range errList {
		errSet[e.File] = struct{}{}
	}

	for _, item := range fileList {
		if _, isErr := errSet[item.File]; isErr {
			continue
		}

		filtered = append(filtered, item)
	}

	if bus != nil {
		bus.PushDone(progressbus.Done{})
	}

	return Result{WorkList: filtered, Errors: errList, Skipped: skipped}
}

// scanOne lstats one path and classifies it into a WorkItem, matching the
// top-level `file.lstat()` / is_symlink / is_dir / is_file branch of
// rnr_dirscan.
func scanOne(fsys afero.Fs, path string, info *counters) (model.WorkItem, error) {
	fi, err := lstat(fsys, path)
	if err != nil {
		return model.WorkItem{}, err
	}

	info.current = filepath.Dir(path)
	info.files++
	info.bytes += fi.Size()

	item := model.WorkItem{
		File:   path,
		Status: model.StatusToDo,
		Lstat:  snapshotOf(fi),
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		item.IsSymlink = true
	case fi.IsDir():
		item.IsDir = true
	default:
		item.IsFile = fi.Mode().IsRegular()
	}

	return item, nil
}

// recursiveScan is recursive_dirscan: it lists dir_'s children, classifies
// each, and recurses into subdirectories. It returns false exactly when
// this subtree must be discarded by the caller (interrupt, abort, or a
// skip that targeted this directory).
func recursiveScan(
	fsys afero.Fs,
	dir string,
	fileList *[]model.WorkItem,
	errList *[]model.ScanIssue,
	skipped *[]model.ScanIssue,
	info *counters,
	throttle *progressbus.Throttle,
	events *ctrlflow.Events,
	bus *progressbus.Bus,
) bool {
	children, err := afero.ReadDir(fsys, dir)
	if err != nil {
		*errList = append(*errList, model.ScanIssue{File: dir, Message: formatOSError(err)})

		return true
	}

	var (
		collected     []model.WorkItem
		collectedErrs []model.ScanIssue
	)

	oldFiles, oldBytes := info.files, info.bytes

	for _, child := range children {
		switch events.Check() {
		case ctrlflow.SignalInterrupt, ctrlflow.SignalAbort:
			return false
		case ctrlflow.SignalSkip:
			info.files = oldFiles
			info.bytes = oldBytes
			*skipped = append(*skipped, model.ScanIssue{File: dir})

			return false
		}

		childPath := filepath.Join(dir, child.Name())

		fi, lerr := lstat(fsys, childPath)
		if lerr != nil {
			collectedErrs = append(collectedErrs, model.ScanIssue{File: childPath, Message: formatOSError(lerr)})

			continue
		}

		info.current = dir
		info.files++
		info.bytes += fi.Size()

		item := model.WorkItem{File: childPath, Status: model.StatusToDo, Lstat: snapshotOf(fi)}

		switch {
		case fi.Mode()&os.ModeSymlink != 0:
			item.IsSymlink = true
			collected = append(collected, item)
		case fi.IsDir():
			item.IsDir = true
			collected = append(collected, item)

			before := len(collected)
			kept := recursiveScan(fsys, childPath, &collected, &collectedErrs, skipped, info, throttle, events, bus)

			if !kept {
				collected = collected[:before-1]
				info.files--
				info.bytes -= fi.Size()
			}
		default:
			item.IsFile = fi.Mode().IsRegular()
			collected = append(collected, item)
		}

		pushIfDue(bus, throttle, info)
	}

	*fileList = append(*fileList, collected...)
	*errList = append(*errList, collectedErrs...)

	return true
}

func pushIfDue(bus *progressbus.Bus, throttle *progressbus.Throttle, info *counters) {
	if bus == nil {
		return
	}

	if throttle.Ready(time.Now()) {
		bus.PushSample(progressbus.Sample{
			CurrentDir:   info.current,
			FilesScanned: info.files,
			BytesScanned: info.bytes,
		})
	}
}

func lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if lstater, ok := fsys.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)

		return fi, err
	}

	return fsys.Stat(path)
}

func snapshotOf(fi os.FileInfo) model.StatSnapshot {
	snap := model.StatSnapshot{Mode: uint32(fi.Mode()), Size: fi.Size(), ModTime: fi.ModTime(), AccTime: fi.ModTime()}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		snap.Uid = st.Uid
		snap.Gid = st.Gid
		snap.AccTime = time.Unix(st.Atim.Unix())
	}

	return snap
}

func formatOSError(err error) string {
	if perr, ok := err.(*os.PathError); ok {
		return perr.Err.Error()
	}

	return err.Error()
}
