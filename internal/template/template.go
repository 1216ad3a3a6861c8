// Package template implements the %-delimited command-template
// substitution used when running an external command with the cwd/focused
// file/tagged files of both panels (spec §6), grounded on
// original_source/rnr/utils.py's Template(string.Template) + apply_template.
package template

import (
	"regexp"
	"strings"

	"github.com/bugnano/rnr/internal/model"
)

// Vars is every substitutable value, gathered from both panels by the
// caller (the Controller) before calling Apply. Empty string fields
// substitute as '' once quoted, matching the original's fallback on
// TypeError/AttributeError when nothing is focused.
type Vars struct {
	CurrentFile      string // %f - focused file, relative to cwd
	CurrentName      string // %n - tar-aware stem of the focused file
	CurrentExtension string // %e - tar-aware suffix of the focused file
	Cwd              string // %d - this panel's cwd (unarchived)
	CwdBase          string // %b - basename of cwd
	CurrentTagged    string // %s, %t - space-joined tagged files, relative to cwd

	OtherFile      string // %F
	OtherName      string // %N
	OtherExtension string // %E
	OtherCwd       string // %D
	OtherCwdBase   string // %B
	OtherTagged    string // %S, %T
}

// VarsFromFocus builds Vars from the raw (unquoted) strings the Controller
// already resolved: the focused file path relative to each panel's cwd, and
// the already-joined tagged-file lists. focusedFile may be empty when
// nothing is focused (e.g. an empty directory).
func VarsFromFocus(focusedFile, cwd string, taggedRelative []string, otherFocusedFile, otherCwd string, otherTaggedRelative []string) Vars {
	v := Vars{
		Cwd:          cwd,
		CwdBase:      lastPathElement(cwd),
		OtherCwd:     otherCwd,
		OtherCwdBase: lastPathElement(otherCwd),
	}

	if focusedFile != "" {
		v.CurrentFile = focusedFile
		v.CurrentName = model.TarStem(focusedFile)
		v.CurrentExtension = model.TarSuffix(focusedFile)
	}

	if otherFocusedFile != "" {
		v.OtherFile = otherFocusedFile
		v.OtherName = model.TarStem(otherFocusedFile)
		v.OtherExtension = model.TarSuffix(otherFocusedFile)
	}

	v.CurrentTagged = strings.Join(taggedRelative, " ")
	v.OtherTagged = strings.Join(otherTaggedRelative, " ")

	return v
}

func lastPathElement(p string) string {
	p = strings.TrimRight(p, "/")

	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}

	return p[idx+1:]
}

func (v Vars) asMap() map[string]string {
	return map[string]string{
		"f": v.CurrentFile,
		"n": v.CurrentName,
		"e": v.CurrentExtension,
		"d": v.Cwd,
		"b": v.CwdBase,
		"s": v.CurrentTagged,
		"t": v.CurrentTagged,

		"F": v.OtherFile,
		"N": v.OtherName,
		"E": v.OtherExtension,
		"D": v.OtherCwd,
		"B": v.OtherCwdBase,
		"S": v.OtherTagged,
		"T": v.OtherTagged,
	}
}

// placeholderRE mirrors string.Template's default pattern anchored on '%':
// %% (escaped percent), %name, or %{name}. Anything else starting with '%'
// is left untouched, matching safe_substitute's handling of an invalid
// placeholder.
var placeholderRE = regexp.MustCompile(`%(%|[A-Za-z_][A-Za-z0-9_]*|\{[A-Za-z_][A-Za-z0-9_]*\})`)

// Apply substitutes every recognized %-placeholder in text with the
// corresponding, shell-quoted (unless quote is false) value from vars.
// Unrecognized placeholders (including a lone trailing '%' or a name not in
// the table) are left verbatim, matching Template.safe_substitute.
func Apply(text string, vars Vars, quote bool) string {
	values := vars.asMap()

	quoteFn := ShellQuote
	if !quote {
		quoteFn = func(s string) string { return s }
	}

	return placeholderRE.ReplaceAllStringFunc(text, func(match string) string {
		body := match[1:]

		if body == "%" {
			return "%"
		}

		name := strings.TrimSuffix(strings.TrimPrefix(body, "{"), "}")

		val, ok := values[name]
		if !ok {
			return match
		}

		return quoteFn(val)
	})
}

var shellSafeRE = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ShellQuote quotes s for safe use as a single POSIX shell word, the
// equivalent of Python's shlex.quote: the empty string becomes '', a string
// made entirely of shell-safe characters is returned unchanged, and
// anything else is single-quoted with embedded quotes escaped as '"'"'.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if shellSafeRE.MatchString(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
