package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/model"
)

func Test_Unit_HumanReadableSize_BytesUnderKilo(t *testing.T) {
	t.Parallel()

	require.Equal(t, "512B", model.HumanReadableSize(512))
}

func Test_Unit_HumanReadableSize_ScalesToKilobytes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1.000K", model.HumanReadableSize(1024))
}

func Test_Unit_HumanReadableSize_ScalesToGigabytes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1.000G", model.HumanReadableSize(1024*1024*1024))
}
