package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func Test_Unit_NewProgram_Version_SkipsControllerSetup(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	prog, err := newProgram([]string{"rnr", "--version"}, afero.NewMemMapFs(), &stdout, &stderr)
	require.NoError(t, err)
	require.Nil(t, prog.ctrl)
	require.Contains(t, stdout.String(), "rnr")

	require.Equal(t, 0, prog.run(context.Background()))
}

func Test_Unit_NewProgram_NoDB_BuildsInMemoryStore(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	prog, err := newProgram([]string{"rnr", "--nodb", "pending"}, afero.NewMemMapFs(), &stdout, &stderr)
	require.NoError(t, err)
	require.NotNil(t, prog.ctrl)
	require.False(t, prog.ctrl.Store.IsActive())
	require.Equal(t, "pending", prog.verb)
}

func Test_Unit_NewProgram_Database_CreatesParentDirAndOpensStore(t *testing.T) {
	t.Parallel()

	fsys := afero.NewOsFs()
	var stdout, stderr bytes.Buffer

	dbPath := filepath.Join(t.TempDir(), "nested", "rnr.db")

	prog, err := newProgram([]string{"rnr", "--database=" + dbPath, "pending"}, fsys, &stdout, &stderr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.ctrl.Store.Close() })

	exists, err := afero.DirExists(fsys, filepath.Dir(dbPath))
	require.NoError(t, err)
	require.True(t, exists)
	require.True(t, prog.ctrl.Store.IsActive())
}

func Test_Unit_NewProgram_UnknownFlag_Errors(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	_, err := newProgram([]string{"rnr", "--not-a-real-flag"}, afero.NewMemMapFs(), &stdout, &stderr)
	require.Error(t, err)
}
