package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/archivemount"
	"github.com/bugnano/rnr/internal/config"
	"github.com/bugnano/rnr/internal/controller"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/rnrlog"
)

func newTestProgram(t *testing.T, args ...string) (*program, *bytes.Buffer) {
	t.Helper()

	var stdout bytes.Buffer

	store := jobstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	t.Cleanup(func() { _ = store.Close() })

	aml := archivemount.New(
		archivemount.WithLookPath(func(string) (string, error) { return "/usr/bin/archivemount", nil }),
		archivemount.WithMkdirTemp(func(string) (string, error) { return t.TempDir(), nil }),
		archivemount.WithRunCommand(func(ctx context.Context, dir, name string, a ...string) ([]byte, []byte, error) {
			return nil, nil, nil
		}),
	)

	log := rnrlog.New(&stdout, rnrlog.Options{JSON: true})
	ctrl := controller.New(store, aml, log, afero.NewOsFs())

	cfg, err := config.Parse(append([]string{"rnr"}, args...), &stdout)
	require.NoError(t, err)

	verb := ""
	rest := cfg.Opts.Paths

	if len(rest) > 0 {
		verb = rest[0]
		rest = rest[1:]
	}

	return &program{cfg: cfg, ctrl: ctrl, log: log, stdout: &stdout, stderr: &stdout, verb: verb, args: rest}, &stdout
}

func Test_Unit_Dispatch_Cp_CopiesFile(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	prog, out := newTestProgram(t, "cp", dst, file)

	require.NoError(t, dispatch(context.Background(), prog))

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Contains(t, out.String(), "1 done")
}

func Test_Unit_Dispatch_Cp_Checksum_VerifiesCopy(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello checksum"), 0o644))

	prog, _ := newTestProgram(t, "--checksum", "cp", dst, file)

	require.NoError(t, dispatch(context.Background(), prog))

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello checksum", string(got))
}

func Test_Unit_Dispatch_Mv_MovesFileAndRemovesSource(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	prog, _ := newTestProgram(t, "mv", dst, file)

	require.NoError(t, dispatch(context.Background(), prog))

	require.NoFileExists(t, file)
	require.FileExists(t, filepath.Join(dst, "a.txt"))
}

func Test_Unit_Dispatch_Rm_DeletesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	prog, _ := newTestProgram(t, "rm", file)

	require.NoError(t, dispatch(context.Background(), prog))
	require.NoFileExists(t, file)
}

func Test_Unit_Dispatch_UnknownVerb_Errors(t *testing.T) {
	t.Parallel()

	prog, _ := newTestProgram(t, "frobnicate")
	require.Error(t, dispatch(context.Background(), prog))
}

func Test_Unit_Dispatch_Pending_ListsInProgressJobs(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dst := t.TempDir()

	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	prog, out := newTestProgram(t, "pending")

	job := &model.Job{
		Operation:   model.OperationCopy,
		SourceCwd:   src,
		Destination: dst,
		WorkList:    []model.WorkItem{{File: file, IsFile: true}},
	}
	prog.ctrl.Store.NewJob(context.Background(), job)

	require.NoError(t, dispatch(context.Background(), prog))
	require.Contains(t, out.String(), "Copy")
}
