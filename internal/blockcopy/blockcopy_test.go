package blockcopy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/blockcopy"
	"github.com/bugnano/rnr/internal/ctrlflow"
)

func Test_Unit_Copy_CopiesFileContentExactly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 300_000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(src, content, 0o644))

	written, err := blockcopy.Copy(context.Background(), src, dst, int64(len(content)), blockcopy.Options{BlockSize: 65536})
	require.NoError(t, err)
	require.EqualValues(t, len(content), written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func Test_Unit_Copy_FailsWhenDestinationAlreadyExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("preexisting"), 0o644))

	_, err := blockcopy.Copy(context.Background(), src, dst, 5, blockcopy.Options{})
	require.Error(t, err)
	require.True(t, os.IsExist(err))
}

func Test_Unit_Copy_ResumeSeeksPastLastFullBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(src, content, 0o644))
	// Partial previous run: the first 300 bytes already landed (three full
	// 100-byte blocks), so resume must rewind to the start of
	// the last full block (200) rather than trusting byte 300 verbatim.
	require.NoError(t, os.WriteFile(dst, content[:300], 0o644))

	written, err := blockcopy.Copy(context.Background(), src, dst, int64(len(content)), blockcopy.Options{
		BlockSize: 100,
		Resume:    true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 800, written)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func Test_Unit_Copy_AbortMidCopyReturnsAbortedSignal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	require.NoError(t, os.WriteFile(src, make([]byte, 1000), 0o644))

	events := ctrlflow.NewEvents()
	events.Abort.Set()

	_, err := blockcopy.Copy(context.Background(), src, dst, 1000, blockcopy.Options{BlockSize: 100, Events: events})
	require.ErrorIs(t, err, ctrlflow.ErrAborted)
}

func Test_Unit_BlockSizeFor_FallsBackToDefaultOnMissingPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(blockcopy.DefaultBlockSize), blockcopy.BlockSizeFor("/nonexistent/path/xyz"))
}
