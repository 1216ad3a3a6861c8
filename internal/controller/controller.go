// Package controller implements the Controller (spec §4.I): the mainloop
// handle that owns the process-wide interrupt flag, the pending-job
// enumeration/resume flow, and wires the Scanner and Copy/Move/Delete
// Executors to the Job Persistence Layer and Archive Mount Layer. Grounded
// on original_source/rnr/__main__.py's top-level signal/loop handling (App's
// quit/unarchive_path/archive bookkeeping) and the teacher's
// goroutine+signal-channel+timeout shutdown race in cmd/mirrorshuttle/main.go,
// generalized here to dispatch into job-shaped work instead of a single mode
// function.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/bugnano/rnr/internal/archivemount"
	"github.com/bugnano/rnr/internal/ctrlflow"
	"github.com/bugnano/rnr/internal/executor"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/pathtranslate"
	"github.com/bugnano/rnr/internal/progressbus"
	"github.com/bugnano/rnr/internal/scanner"
)

// Controller is the small, cloneable-by-reference handle Design Note §9
// asks for in place of true globals: the pending-jobs list lives in Store,
// the control-event set lives here, and the archive-mount list lives in
// AML.
type Controller struct {
	Store *jobstore.Store
	AML   *archivemount.AML
	Log   *slog.Logger
	Fsys  afero.Fs

	// Interrupt is process-wide and never cleared once set (spec §5): every
	// per-job Events built by NewJobEvents shares this same flag.
	Interrupt *ctrlflow.LevelFlag
}

// New builds a Controller. fsys is the filesystem Scanner/Lister operate
// against (normally afero.NewOsFs(), swappable in tests).
func New(store *jobstore.Store, aml *archivemount.AML, log *slog.Logger, fsys afero.Fs) *Controller {
	return &Controller{
		Store:     store,
		AML:       aml,
		Log:       log,
		Fsys:      fsys,
		Interrupt: ctrlflow.NewLevelFlag(),
	}
}

// NewJobEvents builds a fresh per-job control-event set (one per active
// progress dialog, spec §4.I) sharing the Controller's process-wide
// Interrupt flag.
func (c *Controller) NewJobEvents() *ctrlflow.Events {
	events := ctrlflow.NewEvents()
	events.Interrupt = c.Interrupt

	return events
}

// HandleSignal is called from the OS signal handler (SIGTERM or
// Ctrl-C/keyboard interrupt): it stops the loop by latching Interrupt,
// exactly as __main__.py's App treats both the same way.
func (c *Controller) HandleSignal() {
	c.Interrupt.Set()
}

// Translator snapshots the live archive mounts for the Lister/Scanner to
// translate logical paths with.
func (c *Controller) Translator() *pathtranslate.Translator {
	return c.AML.Translator()
}

// PendingJobs enumerates every job in the store still marked IN_PROGRESS,
// for the startup pending-job dialog (spec §4.I). Jobs already DONE/ABORTED
// are left for the UI's report/cleanup flow, not resume.
func (c *Controller) PendingJobs(ctx context.Context) []*model.Job {
	var pending []*model.Job

	for _, job := range c.Store.GetJobs(ctx) {
		if job.Status == model.JobInProgress {
			pending = append(pending, job)
		}
	}

	return pending
}

// Hydrate fills in a pending job's WorkList/DirList/RenameDirStack/
// SkipDirStack from the store and marks every IN_PROGRESS WorkItem as
// Resumed, so RunJob's Copy/Move Executor jumps straight back into its
// partial copy instead of re-running conflict resolution against its own
// output (see internal/executor's Resumed handling).
func (c *Controller) Hydrate(ctx context.Context, job *model.Job) {
	job.WorkList = c.Store.GetFileList(ctx, job.ID)
	job.DirList = c.Store.GetDirList(ctx, job.ID)
	job.RenameDirStack = c.Store.GetRenameDirStack(ctx, job.ID)
	job.SkipDirStack = c.Store.GetSkipDirStack(ctx, job.ID)
	job.ReplaceFirstPath = c.Store.GetReplaceFirstPath(ctx, job.ID)

	for i := range job.WorkList {
		if job.WorkList[i].Status == model.StatusInProgress {
			job.WorkList[i].Resumed = true
		}
	}
}

// Scan runs the Scanner over roots (already-translated logical paths) and
// pushes progress onto bus, honoring events at every suspension point (spec
// §4.C, §5).
func (c *Controller) Scan(roots []string, cwd string, events *ctrlflow.Events, bus *progressbus.Bus) scanner.Result {
	return scanner.Scan(c.Fsys, roots, cwd, events, bus)
}

// RunJob dispatches a fully-populated (or Hydrate'd, for resume) job to the
// matching executor, persists it via the Store passed to New, and returns
// its final report (spec §4.F/§4.G). It is the single place job.Operation
// is switched on, so the Controller is the only component that needs to
// know about every executor kind.
func (c *Controller) RunJob(ctx context.Context, job *model.Job, events *ctrlflow.Events, bus *progressbus.Bus) model.Report {
	switch job.Operation {
	case model.OperationCopy, model.OperationMove:
		return executor.NewCopyMove(c.Store, events, bus).Run(ctx, job)
	case model.OperationDelete:
		return executor.NewDelete(c.Store, events, bus).Run(ctx, job)
	default:
		return model.Report{}
	}
}

// MountArchive mounts archiveFile for panel, translating its parent through
// the current mount snapshot first (archives may themselves live inside an
// already-mounted archive).
func (c *Controller) MountArchive(ctx context.Context, archiveFile, panel string) (string, error) {
	tr := c.Translator()
	parentDir, _, _ := tr.Unarchive(filepath.Dir(archiveFile), false)

	tempDir, err := c.AML.Mount(ctx, archiveFile, parentDir, panel)
	if err != nil {
		return "", fmt.Errorf("mounting archive: %w", err)
	}

	return tempDir, nil
}

// UnmountArchive drops panel's reference to file (or any mount file is
// under), unmounting it once no panel references it anymore.
func (c *Controller) UnmountArchive(ctx context.Context, file, panel string) {
	tr := c.Translator()

	c.AML.Unmount(ctx, file, panel, func(archiveFile string) string {
		dir, _, _ := tr.Unarchive(filepath.Dir(archiveFile), false)

		return dir
	})
}

// Quit unmounts every live archive and, if printwdPath is non-empty, writes
// focusedCwd to it, matching __main__.py's quit(): walk the focused panel's
// cwd back out of any archive it is nested in, then persist that real path.
func (c *Controller) Quit(ctx context.Context, focusedCwd, printwdPath string) error {
	tr := c.Translator()

	cwd := focusedCwd
	for {
		real, archiveFile, _ := tr.Unarchive(cwd, false)
		if archiveFile == "" {
			cwd = real

			break
		}

		cwd = filepath.Dir(archiveFile)
	}

	c.AML.Quit(ctx, func(archiveFile string) string {
		dir, _, _ := tr.Unarchive(filepath.Dir(archiveFile), false)

		return dir
	})

	if printwdPath == "" {
		return nil
	}

	if err := os.WriteFile(printwdPath, []byte(cwd), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("writing last working directory: %w", err)
	}

	return nil
}
