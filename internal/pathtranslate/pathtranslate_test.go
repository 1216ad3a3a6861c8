package pathtranslate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/pathtranslate"
)

func Test_Unit_Unarchive_TranslatesInsideMount(t *testing.T) {
	t.Parallel()

	tr := pathtranslate.New([]pathtranslate.Mount{
		{ArchiveFile: "/home/user/archive.zip", TempDir: "/tmp/rnr-mnt-1"},
	})

	real, archiveFile, tempDir := tr.Unarchive("/home/user/archive.zip/inside/readme.txt", true)

	require.Equal(t, "/tmp/rnr-mnt-1/inside/readme.txt", real)
	require.Equal(t, "/home/user/archive.zip", archiveFile)
	require.Equal(t, "/tmp/rnr-mnt-1", tempDir)
}

func Test_Unit_Unarchive_NoMountIsIdentity(t *testing.T) {
	t.Parallel()

	tr := pathtranslate.New(nil)

	real, archiveFile, tempDir := tr.Unarchive("/home/user/plain.txt", true)

	require.Equal(t, "/home/user/plain.txt", real)
	require.Empty(t, archiveFile)
	require.Empty(t, tempDir)
}

func Test_Unit_Unarchive_NestedMountsInnermostWins(t *testing.T) {
	t.Parallel()

	tr := pathtranslate.New([]pathtranslate.Mount{
		{ArchiveFile: "/home/user/outer.zip", TempDir: "/tmp/rnr-mnt-outer"},
		{ArchiveFile: "/tmp/rnr-mnt-outer/inner.zip", TempDir: "/tmp/rnr-mnt-inner"},
	})

	real, archiveFile, _ := tr.Unarchive("/tmp/rnr-mnt-outer/inner.zip/deep.txt", true)

	require.Equal(t, "/tmp/rnr-mnt-inner/deep.txt", real)
	require.Equal(t, "/tmp/rnr-mnt-outer/inner.zip", archiveFile)
}

func Test_Unit_Unarchive_ExcludeSelfSkipsExactMatch(t *testing.T) {
	t.Parallel()

	tr := pathtranslate.New([]pathtranslate.Mount{
		{ArchiveFile: "/home/user/archive.zip", TempDir: "/tmp/rnr-mnt-1"},
	})

	real, archiveFile, _ := tr.Unarchive("/home/user/archive.zip", false)

	require.Equal(t, "/home/user/archive.zip", real)
	require.Empty(t, archiveFile)
}

func Test_Unit_Archive_IsInverseOfUnarchive(t *testing.T) {
	t.Parallel()

	tr := pathtranslate.New([]pathtranslate.Mount{
		{ArchiveFile: "/home/user/archive.zip", TempDir: "/tmp/rnr-mnt-1"},
	})

	logical, archiveFile, tempDir := tr.Archive("/tmp/rnr-mnt-1/inside/readme.txt", true)

	require.Equal(t, "/home/user/archive.zip/inside/readme.txt", logical)
	require.Equal(t, "/home/user/archive.zip", archiveFile)
	require.Equal(t, "/tmp/rnr-mnt-1", tempDir)
}
