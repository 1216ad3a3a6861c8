package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bugnano/rnr/internal/ctrlflow"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/progressbus"
)

// Delete runs one Delete job to completion, grounded on
// original_source/rnr/rnr_delete.py: descending-path-order removal so a
// directory's children are always gone before the directory itself is
// attempted, with ENOENT treated as already-done rather than an error.
type Delete struct {
	Store  *jobstore.Store
	Events *ctrlflow.Events
	Bus    *progressbus.Bus
}

// NewDelete builds a Delete executor, mirroring NewCopyMove's defaults.
func NewDelete(store *jobstore.Store, events *ctrlflow.Events, bus *progressbus.Bus) *Delete {
	if events == nil {
		events = ctrlflow.NewEvents()
	}

	return &Delete{Store: store, Events: events, Bus: bus}
}

// Run deletes job.WorkList in descending path order. WorkItems already
// DONE/ERROR/SKIPPED are passed through unchanged (resume).
func (d *Delete) Run(ctx context.Context, job *model.Job) model.Report {
	if d.Bus != nil {
		defer d.Bus.PushDone(progressbus.Done{})
	}

	sort.SliceStable(job.WorkList, func(i, j int) bool {
		return model.PathSortKey(job.WorkList[i].File) > model.PathSortKey(job.WorkList[j].File)
	})

	var report model.Report

	var bytesDone, filesDone int64

	for i := range job.WorkList {
		item := &job.WorkList[i]

		switch item.Status {
		case model.StatusDone:
			report.Result = append(report.Result, model.ResultEntry{File: item.File})

			continue
		case model.StatusError:
			report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: item.Message})

			continue
		case model.StatusSkipped:
			report.Skipped = append(report.Skipped, model.ResultEntry{File: item.File, Message: item.Message})

			continue
		}

		if ctx != nil && ctx.Err() != nil {
			return report
		}

		switch d.Events.Check() {
		case ctrlflow.SignalInterrupt:
			return report
		case ctrlflow.SignalAbort:
			for ; i < len(job.WorkList); i++ {
				report.Aborted = append(report.Aborted, model.ResultEntry{File: job.WorkList[i].File})
				d.Store.SetFileStatus(ctx, &job.WorkList[i], model.StatusError, "Aborted")
			}

			d.Store.SetJobStatus(ctx, job.ID, model.JobAborted)

			return report
		case ctrlflow.SignalSkip:
			item.Status = model.StatusSkipped
			d.Store.SetFileStatus(ctx, item, model.StatusSkipped, "")
			report.Skipped = append(report.Skipped, model.ResultEntry{File: item.File})

			continue
		}

		if d.Bus != nil {
			d.Bus.PushSample(progressbus.Sample{CurrentDir: item.File, FilesScanned: filesDone, BytesScanned: bytesDone})
		}

		if err := d.removeOne(item); err != nil {
			msg := err.Error()
			item.Status = model.StatusError
			d.Store.SetFileStatus(ctx, item, model.StatusError, msg)
			report.Error = append(report.Error, model.ResultEntry{File: item.File, Message: msg})
		} else {
			item.Status = model.StatusDone
			d.Store.SetFileStatus(ctx, item, model.StatusDone, "")
			report.Result = append(report.Result, model.ResultEntry{File: item.File})
		}

		bytesDone += item.Lstat.Size
		filesDone++
	}

	d.Store.SetJobStatus(ctx, job.ID, model.JobDone)

	return report
}

// removeOne removes a single WorkItem's file, swallowing ENOENT (already
// gone, counts as success) and fsyncing the parent directory after a real
// removal, matching rnr_delete's rmdir/remove + parent-fsync pair.
func (d *Delete) removeOne(item *model.WorkItem) error {
	// os.Remove rmdir's an empty directory or unlinks a regular file
	// depending on what's at the path, same as the original's
	// os.rmdir/os.remove branch collapsed into one syscall-selecting call.
	if err := os.Remove(item.File); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("%w", err)
	}

	return fsyncDir(filepath.Dir(item.File))
}
