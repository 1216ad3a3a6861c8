package controller_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/archivemount"
	"github.com/bugnano/rnr/internal/controller"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/rnrlog"
)

func newTestStore(t *testing.T) *jobstore.Store {
	t.Helper()

	store := jobstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.True(t, store.IsActive())
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestController(t *testing.T) *controller.Controller {
	t.Helper()

	store := newTestStore(t)
	aml := archivemount.New(
		archivemount.WithLookPath(func(string) (string, error) { return "/usr/bin/archivemount", nil }),
		archivemount.WithMkdirTemp(func(string) (string, error) { return t.TempDir(), nil }),
		archivemount.WithRunCommand(func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
			return nil, nil, nil
		}),
	)
	log := rnrlog.New(os.Stderr, rnrlog.Options{JSON: true})

	return controller.New(store, aml, log, afero.NewOsFs())
}

func Test_Unit_PendingJobs_OnlyReturnsInProgress(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)
	ctx := context.Background()

	job := &model.Job{
		Operation: model.OperationCopy,
		SourceCwd: "/src",
		WorkList:  []model.WorkItem{{File: "/src/a.txt", IsFile: true}},
	}
	ctrl.Store.NewJob(ctx, job)
	ctrl.Store.SetJobStatus(ctx, job.ID, model.JobDone)

	other := &model.Job{
		Operation: model.OperationCopy,
		SourceCwd: "/src2",
		WorkList:  []model.WorkItem{{File: "/src2/a.txt", IsFile: true}},
	}
	ctrl.Store.NewJob(ctx, other)

	pending := ctrl.PendingJobs(ctx)
	require.Len(t, pending, 1)
	require.Equal(t, other.ID, pending[0].ID)
}

func Test_Unit_Hydrate_MarksInProgressItemsResumed(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)
	ctx := context.Background()

	job := &model.Job{
		Operation: model.OperationCopy,
		SourceCwd: "/src",
		WorkList:  []model.WorkItem{{File: "/src/a.txt", IsFile: true}},
	}
	ctrl.Store.NewJob(ctx, job)

	item := &job.WorkList[0]
	item.CurTarget = "/dst/a.txt"
	ctrl.Store.UpdateFile(ctx, item, model.StatusInProgress, "")

	resumed := &model.Job{ID: job.ID}
	ctrl.Hydrate(ctx, resumed)

	require.Len(t, resumed.WorkList, 1)
	require.True(t, resumed.WorkList[0].Resumed)
	require.Equal(t, "/dst/a.txt", resumed.WorkList[0].CurTarget)
}

func Test_Unit_RunJob_DispatchesDeleteOperation(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)
	ctx := context.Background()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	job := &model.Job{
		Operation: model.OperationDelete,
		SourceCwd: dir,
		WorkList:  []model.WorkItem{{File: file, IsFile: true}},
	}

	events := ctrl.NewJobEvents()
	report := ctrl.RunJob(ctx, job, events, nil)

	require.Len(t, report.Result, 1)
	require.NoFileExists(t, file)
}

func Test_Unit_Quit_WritesFocusedCwdToPrintwdFile(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)
	ctx := context.Background()

	out := filepath.Join(t.TempDir(), "lastwd")

	require.NoError(t, ctrl.Quit(ctx, "/home/user/project", out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "/home/user/project", string(got))
}

func Test_Unit_HandleSignal_LatchesInterrupt(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)
	require.False(t, ctrl.Interrupt.IsSet())

	ctrl.HandleSignal()
	require.True(t, ctrl.Interrupt.IsSet())

	events := ctrl.NewJobEvents()
	require.True(t, events.Interrupt.IsSet())
}
