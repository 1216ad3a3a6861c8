package archivemount_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/archivemount"
)

// newFakeAML builds an AML whose mkdirTemp/runCommand never touch the real
// filesystem or spawn a process, recording every command it was asked to
// run for assertions.
func newFakeAML(t *testing.T, runErr error) (*archivemount.AML, *[][]string) {
	t.Helper()

	calls := &[][]string{}

	a := archivemount.New(
		archivemount.WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil }),
		archivemount.WithMkdirTemp(func(pattern string) (string, error) {
			return "/tmp/fake-mnt", nil
		}),
		archivemount.WithRunCommand(func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
			*calls = append(*calls, append([]string{name}, args...))
			if name == "archivemount" {
				return nil, nil, runErr
			}

			return nil, nil, nil
		}),
	)

	return a, calls
}

func Test_Unit_AML_MountAddsReferencingPanel(t *testing.T) {
	t.Parallel()

	a, calls := newFakeAML(t, nil)

	tempDir, err := a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "left")
	require.NoError(t, err)
	require.Equal(t, "/tmp/fake-mnt", tempDir)
	require.Len(t, a.Mounts(), 1)
	require.Contains(t, (*calls)[0], "archivemount")

	_, err = a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "right")
	require.NoError(t, err)
	require.Len(t, a.Mounts(), 1, "a second panel referencing the same mount should not create a duplicate entry")
}

func Test_Unit_AML_UnmountRemovesEntryWhenLastReferenceDrops(t *testing.T) {
	t.Parallel()

	a, _ := newFakeAML(t, nil)

	_, err := a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "left")
	require.NoError(t, err)

	a.Unmount(context.Background(), "/home/user/archive.zip", "left", func(string) string { return "/home/user" })
	require.Empty(t, a.Mounts())
}

func Test_Unit_AML_UnmountKeepsEntryWithRemainingReferences(t *testing.T) {
	t.Parallel()

	a, _ := newFakeAML(t, nil)

	_, err := a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "left")
	require.NoError(t, err)

	_, err = a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "right")
	require.NoError(t, err)

	a.Unmount(context.Background(), "/home/user/archive.zip", "left", func(string) string { return "/home/user" })
	require.Len(t, a.Mounts(), 1)
}

func Test_Unit_AML_QuitUnmountsEverything(t *testing.T) {
	t.Parallel()

	a, calls := newFakeAML(t, nil)

	_, err := a.Mount(context.Background(), "/home/user/archive.zip", "/home/user", "left")
	require.NoError(t, err)

	a.Quit(context.Background(), func(string) string { return "/home/user" })
	require.Empty(t, a.Mounts())

	found := false

	for _, c := range *calls {
		if c[0] == "umount" {
			found = true
		}
	}

	require.True(t, found)
}
