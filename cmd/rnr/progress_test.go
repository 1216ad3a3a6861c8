package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/progressbus"
)

func Test_Unit_IsTTY_NonFileWriter_False(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.False(t, isTTY(&buf))
}

func Test_Unit_FormatSample_ScanningSample(t *testing.T) {
	t.Parallel()

	s := progressbus.Sample{CurrentDir: "/src", FilesScanned: 3, BytesScanned: 1024}
	require.Contains(t, formatSample(s), "/src")
	require.Contains(t, formatSample(s), "3 files")
}

func Test_Unit_FormatSample_CopySample(t *testing.T) {
	t.Parallel()

	s := progressbus.Sample{CurFile: "/src/a.txt", TotalSize: 2048}
	require.Contains(t, formatSample(s), "/src/a.txt")
}

func Test_Unit_WatchProgress_StopsOnDone(t *testing.T) {
	t.Parallel()

	bus, err := progressbus.New(4)
	require.NoError(t, err)
	defer bus.Close()

	var buf bytes.Buffer

	finished := watchProgress(&buf, bus)

	bus.PushSample(progressbus.Sample{CurFile: "/x", TotalSize: 10})
	bus.PushDone(progressbus.Done{})

	<-finished

	require.Contains(t, buf.String(), "/x")
}
