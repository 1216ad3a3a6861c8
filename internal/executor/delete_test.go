package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/executor"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
)

func Test_Unit_Delete_RemovesPlainFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	job := newJob(model.OperationDelete, dir, "", model.ConflictSkip, model.WorkItem{
		File: file, IsFile: true, Lstat: lstatSnapshot(t, file),
	})

	del := executor.NewDelete(jobstore.NoDB(), nil, nil)
	report := del.Run(context.Background(), job)

	require.Len(t, report.Result, 1)
	require.Empty(t, report.Error)
	require.NoFileExists(t, file)
}

func Test_Unit_Delete_RemovesDirectoryAfterItsChildren(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	file := filepath.Join(sub, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	job := newJob(model.OperationDelete, dir, "", model.ConflictSkip,
		model.WorkItem{File: sub, IsDir: true, Lstat: lstatSnapshot(t, sub)},
		model.WorkItem{File: file, IsFile: true, Lstat: lstatSnapshot(t, file)},
	)

	del := executor.NewDelete(jobstore.NoDB(), nil, nil)
	report := del.Run(context.Background(), job)

	require.Len(t, report.Result, 2)
	require.Empty(t, report.Error)
	require.NoDirExists(t, sub)

	// the child file must have been removed before the parent directory,
	// since a non-empty directory would fail os.Remove.
	require.Equal(t, file, report.Result[0].File)
	require.Equal(t, sub, report.Result[1].File)
}

func Test_Unit_Delete_AlreadyGoneFileCountsAsDone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "gone.txt")

	job := newJob(model.OperationDelete, dir, "", model.ConflictSkip, model.WorkItem{
		File: file, IsFile: true,
	})

	del := executor.NewDelete(jobstore.NoDB(), nil, nil)
	report := del.Run(context.Background(), job)

	require.Len(t, report.Result, 1)
	require.Empty(t, report.Error)
}

func Test_Unit_Delete_PreResolvedStatusesPassThroughUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	job := newJob(model.OperationDelete, dir, "", model.ConflictSkip,
		model.WorkItem{File: filepath.Join(dir, "done.txt"), IsFile: true, Status: model.StatusDone},
		model.WorkItem{File: filepath.Join(dir, "err.txt"), IsFile: true, Status: model.StatusError, Message: "boom"},
		model.WorkItem{File: filepath.Join(dir, "skip.txt"), IsFile: true, Status: model.StatusSkipped, Message: "user skip"},
	)

	del := executor.NewDelete(jobstore.NoDB(), nil, nil)
	report := del.Run(context.Background(), job)

	require.Len(t, report.Result, 1)
	require.Len(t, report.Error, 1)
	require.Equal(t, "boom", report.Error[0].Message)
	require.Len(t, report.Skipped, 1)
	require.Equal(t, "user skip", report.Skipped[0].Message)
}
