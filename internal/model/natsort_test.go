package model_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/model"
)

func Test_Unit_NatSortKey_OrdersDigitRunsNumerically(t *testing.T) {
	t.Parallel()

	names := []string{"file10", "file2", "file1", "file20"}
	sort.Slice(names, func(i, j int) bool {
		return model.CompareNatSortKeys(model.NatSortKey(names[i]), model.NatSortKey(names[j])) < 0
	})

	require.Equal(t, []string{"file1", "file2", "file10", "file20"}, names)
}

func Test_Unit_NatSortKey_IsCasefolded(t *testing.T) {
	t.Parallel()

	a := model.NatSortKey("README")
	b := model.NatSortKey("readme")

	require.Equal(t, 0, model.CompareNatSortKeys(a, b))
}

func Test_Unit_PathSortKey_ParentSortsBeforeChild(t *testing.T) {
	t.Parallel()

	got := []string{"a/b", "a", "a/bc", "a0"}
	sort.Slice(got, func(i, j int) bool {
		return model.PathSortKey(got[i]) < model.PathSortKey(got[j])
	})

	require.Equal(t, []string{"a", "a/b", "a/bc", "a0"}, got)
}
