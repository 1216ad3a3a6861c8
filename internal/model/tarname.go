package model

import (
	"path/filepath"
	"strings"
)

// splitSuffixes returns every dotted suffix of name, in the same order
// pathlib.PurePath.suffixes does, e.g. "a.tar.gz" -> [".tar", ".gz"]. A
// leading dot (hidden file with no extension, e.g. ".bashrc") is not itself
// a suffix.
func splitSuffixes(name string) []string {
	// Strip a single leading dot so ".bashrc" isn't treated as an
	// all-suffix name, matching pathlib's treatment of dotfiles.
	rest := name
	if strings.HasPrefix(rest, ".") {
		rest = rest[1:]
	}

	var suffixes []string

	for {
		idx := strings.LastIndex(rest, ".")
		if idx <= 0 {
			break
		}

		suffixes = append([]string{rest[idx:]}, suffixes...)
		rest = rest[:idx]
	}

	return suffixes
}

// TarStem returns the filename with its extension(s) removed, treating a
// ".tar.<compression>" pair as a single extension the way
// original_source/rnr/utils.py:tar_stem does, e.g. "a.tar.gz" -> "a".
func TarStem(path string) string {
	name := filepath.Base(path)
	suffixes := splitSuffixes(name)

	if len(suffixes) >= 2 && strings.EqualFold(suffixes[len(suffixes)-2], ".tar") {
		return strings.TrimSuffix(name, suffixes[len(suffixes)-2]+suffixes[len(suffixes)-1])
	}

	if len(suffixes) == 0 {
		return name
	}

	return strings.TrimSuffix(name, suffixes[len(suffixes)-1])
}

// TarSuffix returns the filename's extension, treating a ".tar.<compression>"
// pair as one extension, e.g. "a.tar.gz" -> ".tar.gz", "a.txt" -> ".txt".
func TarSuffix(path string) string {
	name := filepath.Base(path)
	suffixes := splitSuffixes(name)

	if len(suffixes) >= 2 && strings.EqualFold(suffixes[len(suffixes)-2], ".tar") {
		return suffixes[len(suffixes)-2] + suffixes[len(suffixes)-1]
	}

	if len(suffixes) == 0 {
		return ""
	}

	return suffixes[len(suffixes)-1]
}
