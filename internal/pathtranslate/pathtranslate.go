// Package pathtranslate implements the Path Translator (spec §4.A): pure
// prefix substitution between logical paths (which may reference a position
// inside a mounted archive) and real paths (always directly addressable by
// the OS), grounded on original_source/rnr/panel.py:unarchive_path and its
// implicit inverse used by apply_template.
package pathtranslate

import (
	"path/filepath"
	"strings"

	"github.com/bugnano/rnr/internal/model"
)

// Mount is the subset of model.ArchiveMount the translator needs: it never
// inspects or mutates the referencing-panel set, only the two path prefixes.
type Mount struct {
	ArchiveFile string
	TempDir     string
}

// Translator resolves logical <-> real paths against an ordered list of
// archive mounts. Mounts form an append-ordered list (invariant, §3); the
// Translator is handed a snapshot slice by its owner (the AML) rather than
// holding a mutable list itself, so it can be passed to Executors as a
// small, cloneable, testable value (Design Note §9: "Concentrate [global
// state]... avoid true globals").
type Translator struct {
	mounts []Mount
}

// New builds a Translator over a snapshot of the current archive mounts, in
// the same append order the AML maintains them.
func New(mounts []Mount) *Translator {
	snapshot := make([]Mount, len(mounts))
	copy(snapshot, mounts)

	return &Translator{mounts: snapshot}
}

// FromModelMounts adapts a []*model.ArchiveMount (the AML's own storage)
// into the small Mount values the Translator needs.
func FromModelMounts(mounts []*model.ArchiveMount) []Mount {
	out := make([]Mount, len(mounts))
	for i, m := range mounts {
		out[i] = Mount{ArchiveFile: m.ArchiveFile, TempDir: m.TempDir}
	}

	return out
}

// isUnderOrEqual reports whether path equals prefix or is a descendant of
// it, using filepath.Rel the way the rest of the engine already relies on
// for "is excluded" / "is under" checks (cf. the teacher's isExcluded).
func isUnderOrEqual(path, prefix string) bool {
	if path == prefix {
		return true
	}

	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func replacePrefix(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}

	rel, err := filepath.Rel(oldPrefix, path)
	if err != nil {
		return path
	}

	return filepath.Join(newPrefix, rel)
}

// Unarchive maps a logical path to (real, archiveFile, tempDir). Innermost
// mount wins: mounts are walked in reverse append order (§3 invariant:
// "translation walks it in reverse so nested archives translate innermost
// first"). When includeSelf is false, a logical path exactly equal to a
// mount's archive_file is not matched (the caller wants to treat the
// archive itself as a file, not its mounted content).
func (t *Translator) Unarchive(logical string, includeSelf bool) (real string, archiveFile string, tempDir string) {
	for i := len(t.mounts) - 1; i >= 0; i-- {
		m := t.mounts[i]

		if !includeSelf && logical == m.ArchiveFile {
			continue
		}

		if isUnderOrEqual(logical, m.ArchiveFile) {
			return replacePrefix(logical, m.ArchiveFile, m.TempDir), m.ArchiveFile, m.TempDir
		}
	}

	return logical, "", ""
}

// Archive maps a real path back to (logical, archiveFile, tempDir), scanning
// mounts outermost first (the inverse walk of Unarchive).
func (t *Translator) Archive(real string, includeSelf bool) (logical string, archiveFile string, tempDir string) {
	for _, m := range t.mounts {
		if !includeSelf && real == m.TempDir {
			continue
		}

		if isUnderOrEqual(real, m.TempDir) {
			return replacePrefix(real, m.TempDir, m.ArchiveFile), m.ArchiveFile, m.TempDir
		}
	}

	return real, "", ""
}

// Mounts returns the snapshot this Translator was built from.
func (t *Translator) Mounts() []Mount {
	out := make([]Mount, len(t.mounts))
	copy(out, t.mounts)

	return out
}
