package template_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugnano/rnr/internal/template"
)

func Test_Unit_Apply_SubstitutesKnownPlaceholders(t *testing.T) {
	t.Parallel()

	vars := template.Vars{
		CurrentFile: "docs/readme.txt",
		Cwd:         "/home/user",
		CwdBase:     "user",
	}

	got := template.Apply("cp %f %d/%b", vars, true)

	require.Equal(t, "cp docs/readme.txt /home/user/user", got)
}

func Test_Unit_Apply_LeavesUnknownPlaceholderVerbatim(t *testing.T) {
	t.Parallel()

	got := template.Apply("echo %z", template.Vars{}, true)

	require.Equal(t, "echo %z", got)
}

func Test_Unit_Apply_DoublePercentIsLiteralPercent(t *testing.T) {
	t.Parallel()

	got := template.Apply("100%%", template.Vars{}, true)

	require.Equal(t, "100%", got)
}

func Test_Unit_Apply_QuotesValuesWithSpaces(t *testing.T) {
	t.Parallel()

	vars := template.Vars{CurrentFile: "my file.txt"}

	got := template.Apply("cat %f", vars, true)

	require.Equal(t, "cat 'my file.txt'", got)
}

func Test_Unit_Apply_NoQuoteLeavesValueRaw(t *testing.T) {
	t.Parallel()

	vars := template.Vars{CurrentFile: "my file.txt"}

	got := template.Apply("cat %f", vars, false)

	require.Equal(t, "cat my file.txt", got)
}

func Test_Unit_ShellQuote_EmptyStringBecomesEmptyQuotes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "''", template.ShellQuote(""))
}

func Test_Unit_ShellQuote_SafeStringIsUnchanged(t *testing.T) {
	t.Parallel()

	require.Equal(t, "docs/readme.txt", template.ShellQuote("docs/readme.txt"))
}

func Test_Unit_ShellQuote_EscapesEmbeddedSingleQuote(t *testing.T) {
	t.Parallel()

	require.Equal(t, `'it'"'"'s'`, template.ShellQuote("it's"))
}

func Test_Unit_VarsFromFocus_BuildsTarAwareNameAndExtension(t *testing.T) {
	t.Parallel()

	v := template.VarsFromFocus("archive.tar.gz", "/home/user", []string{"a.txt", "b.txt"}, "other.txt", "/home/user2", nil)

	require.Equal(t, "archive", v.CurrentName)
	require.Equal(t, ".tar.gz", v.CurrentExtension)
	require.Equal(t, "a.txt b.txt", v.CurrentTagged)
	require.Equal(t, "user2", v.OtherCwdBase)
}
