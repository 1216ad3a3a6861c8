// Package lister implements the Directory Lister (spec §4.B): it reads one
// directory's immediate children into []model.FileEntry, classifying each
// entry's kind/label/palette/details exactly as
// original_source/rnr/panel.py:get_file_list does, and exposes the four
// sort orders panel.py offers (by name, extension, date, size), each with a
// "directories first" tie-break.
package lister

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/pathtranslate"
)

// archiveExtensions lists the extensions panel.py colors as "archive" in the
// plain-file branch of classification; a name's extension is matched
// against them case-insensitively.
var archiveExtensions = []string{
	".tar",
	".tar.gz", ".tgz", ".taz",
	".tar.Z", ".taZ",
	".tar.bz2", ".tz2", ".tbz2", ".tbz",
	".tar.lz",
	".tar.lzma", ".tlz",
	".tar.lzo",
	".tar.xz",
	".tar.zst", ".tzst",
	".rpm", ".deb",
	".iso",
	".zip", ".zipx",
	".shar",
	".lha", ".lzh",
	".rar",
	".cab",
	".7z",
}

func isArchiveExtension(ext string) bool {
	for _, a := range archiveExtensions {
		if strings.EqualFold(ext, a) {
			return true
		}
	}

	return false
}

// idCache memoizes uid/gid -> name lookups, mirroring panel.py's
// collections.defaultdict-based Cache, falling back to the numeric string
// when no passwd/group entry exists.
type idCache struct {
	mu    sync.Mutex
	users map[uint32]string
	groups map[uint32]string
}

func newIDCache() *idCache {
	return &idCache{users: map[uint32]string{}, groups: map[uint32]string{}}
}

func (c *idCache) userName(uid uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.users[uid]; ok {
		return name
	}

	name := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}

	c.users[uid] = name

	return name
}

func (c *idCache) groupName(gid uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.groups[gid]; ok {
		return name
	}

	name := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(name); err == nil {
		name = g.Name
	}

	c.groups[gid] = name

	return name
}

var sharedIDCache = newIDCache()

func snapshot(fi os.FileInfo) model.StatSnapshot {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return model.StatSnapshot{Mode: uint32(fi.Mode()), Size: fi.Size(), ModTime: fi.ModTime()}
	}

	return model.StatSnapshot{
		Mode:    st.Mode,
		Size:    fi.Size(),
		Uid:     st.Uid,
		Gid:     st.Gid,
		Nlink:   uint64(st.Nlink),
		Rdev:    uint64(st.Rdev),
		ModTime: fi.ModTime(),
	}
}

// List reads the immediate children of cwd (a logical path, translated
// through tr the way panel.py:get_file_list calls unarchive_path first) and
// classifies each into a model.FileEntry. Entries that vanish between
// readdir and lstat (ENOENT) are silently skipped, matching the original's
// `except FileNotFoundError: continue`.
func List(fsys afero.Fs, tr *pathtranslate.Translator, cwd string) ([]model.FileEntry, error) {
	realCwd, archiveFile, tempDir := tr.Unarchive(cwd, true)

	entries, err := afero.ReadDir(fsys, realCwd)
	if err != nil {
		return nil, err
	}

	lstater, _ := fsys.(afero.Lstater)

	out := make([]model.FileEntry, 0, len(entries))

	for _, de := range entries {
		name := de.Name()
		realPath := filepath.Join(realCwd, name)

		shownPath := realPath
		if archiveFile != "" {
			shownPath = strings.Replace(realPath, tempDir, archiveFile, 1)
		}

		lfi, lerr := lstatEntry(fsys, lstater, realPath, de)
		if lerr != nil {
			if os.IsNotExist(lerr) {
				continue
			}

			return nil, lerr
		}

		entry := model.FileEntry{
			File:         shownPath,
			Key:          model.NatSortKey(name),
			ExtensionKey: model.NatSortKey(model.TarSuffix(name)),
			Lstat:        snapshot(lfi),
		}

		classify(fsys, realPath, shownPath, name, lfi, &entry)

		out = append(out, entry)
	}

	return out, nil
}

func lstatEntry(fsys afero.Fs, lstater afero.Lstater, realPath string, de os.FileInfo) (os.FileInfo, error) {
	if lstater != nil {
		if fi, _, err := lstater.LstatIfPossible(realPath); err == nil {
			return fi, nil
		} else if os.IsNotExist(err) {
			return nil, err
		}
	}

	return de, nil
}

func classify(fsys afero.Fs, realPath, shownPath, name string, lfi os.FileInfo, entry *model.FileEntry) {
	lmode := lfi.Mode()

	var (
		statInfo = lfi
		statErr  error
	)

	if lmode&os.ModeSymlink != 0 {
		statInfo, statErr = fsys.Stat(realPath)

		switch {
		case statErr == nil && statInfo.IsDir():
			entry.Kind = model.KindSymlinkToDir
			entry.Label = "~" + name
			entry.Palette = "dir_symlink"
		case statErr == nil:
			entry.Kind = model.KindSymlinkToFile
			entry.Label = "@" + name
			entry.Palette = "symlink"
		default:
			statInfo = lfi
			entry.Kind = model.KindStaleSymlink
			entry.Label = "!" + name
			entry.Palette = "stalelink"
		}
	} else {
		statInfo = lfi

		switch {
		case lmode.IsDir():
			entry.Kind = model.KindDirectory
			entry.Label = "/" + name
			entry.Palette = "directory"
		case lmode&os.ModeCharDevice != 0:
			entry.Kind = model.KindCharDevice
			entry.Label = "-" + name
			entry.Palette = "device"
		case lmode&os.ModeDevice != 0:
			entry.Kind = model.KindBlockDevice
			entry.Label = "+" + name
			entry.Palette = "device"
		case lmode&os.ModeNamedPipe != 0:
			entry.Kind = model.KindFIFO
			entry.Label = "|" + name
			entry.Palette = "special"
		case lmode&os.ModeSocket != 0:
			entry.Kind = model.KindSocket
			entry.Label = "=" + name
			entry.Palette = "special"
		case lmode&0o111 != 0:
			entry.Kind = model.KindExecutable
			entry.Label = "*" + name
			entry.Palette = "executable"
		default:
			entry.Kind = model.KindRegular
			entry.Label = " " + name

			if isArchiveExtension(model.TarSuffix(name)) {
				entry.Palette = "archive"
			} else {
				entry.Palette = "panel"
			}
		}
	}

	entry.Stat = snapshot(statInfo)

	sizeAndLength(entry, statInfo, fsys, realPath)
	details(entry, lfi, realPath, shownPath)
}

func sizeAndLength(entry *model.FileEntry, statInfo os.FileInfo, fsys afero.Fs, realPath string) {
	switch {
	case statInfo.IsDir():
		children, err := afero.ReadDir(fsys, realPath)
		if err != nil {
			entry.DirCount = -1
			entry.SizeString = "?"
		} else {
			entry.DirCount = int64(len(children))
			entry.SizeString = strconv.Itoa(len(children))
		}
	case entry.Kind == model.KindCharDevice || entry.Kind == model.KindBlockDevice:
		if st, ok := statInfo.Sys().(*syscall.Stat_t); ok {
			entry.Major = uint32(unix.Major(uint64(st.Rdev)))
			entry.Minor = uint32(unix.Minor(uint64(st.Rdev)))
			entry.SizeString = fmt.Sprintf("%d,%d", entry.Major, entry.Minor)
		}
	default:
		entry.Size = entry.Lstat.Size
		entry.SizeString = model.HumanReadableSize(entry.Size)
	}
}

func details(entry *model.FileEntry, lfi os.FileInfo, realPath, shownPath string) {
	uid := sharedIDCache.userName(entry.Lstat.Uid)
	gid := sharedIDCache.groupName(entry.Lstat.Gid)

	entry.Details = fmt.Sprintf("%s %d %s %s", lfi.Mode().String(), entry.Lstat.Nlink, uid, gid)

	if lfi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(realPath)
		if err != nil {
			entry.Details += " -> ?"
			entry.LinkTarget = shownPath

			return
		}

		entry.Details = fmt.Sprintf("%s -> %s", entry.Details, target)

		if filepath.IsAbs(target) {
			entry.LinkTarget = filepath.Clean(target)
		} else {
			entry.LinkTarget = filepath.Clean(filepath.Join(filepath.Dir(shownPath), target))
		}

		return
	}

	entry.Details += " " + filepath.Base(shownPath)
}

// dirsFirst implements the "directories sort before everything else"
// tie-break shared by every sort_by_* function in panel.py.
func dirsFirst(a, b model.FileEntry, reverse bool) (int, bool) {
	aDir, bDir := a.IsDirLike(), b.IsDirLike()

	switch {
	case aDir && !bDir:
		return lessGreater(true, reverse), true
	case !aDir && bDir:
		return lessGreater(false, reverse), true
	}

	return 0, false
}

func lessGreater(less, reverse bool) int {
	if less != reverse {
		return -1
	}

	return 1
}

// SortByName orders entries by natural-sort key, directories first.
func SortByName(entries []model.FileEntry, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		return compareByName(entries[i], entries[j], reverse) < 0
	})
}

func compareByName(a, b model.FileEntry, reverse bool) int {
	if c, ok := dirsFirst(a, b, reverse); ok {
		return c
	}

	c := model.CompareNatSortKeys(a.Key, b.Key)
	if reverse {
		return -c
	}

	return c
}

// SortByExtension orders by tar-aware extension key, falling back to name,
// directories first.
func SortByExtension(entries []model.FileEntry, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		if c, ok := dirsFirst(a, b, reverse); ok {
			return c < 0
		}

		if c := model.CompareNatSortKeys(a.ExtensionKey, b.ExtensionKey); c != 0 {
			if reverse {
				return c > 0
			}

			return c < 0
		}

		return compareByName(a, b, reverse) < 0
	})
}

// SortByDate orders by modification time, falling back to name, directories
// first.
func SortByDate(entries []model.FileEntry, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		if c, ok := dirsFirst(a, b, reverse); ok {
			return c < 0
		}

		switch {
		case a.Lstat.ModTime.Before(b.Lstat.ModTime):
			return !reverse
		case a.Lstat.ModTime.After(b.Lstat.ModTime):
			return reverse
		default:
			return compareByName(a, b, reverse) < 0
		}
	})
}

// SortBySize orders by the size/length tuple (dir count, major/minor, or
// byte size), falling back to name, directories first.
func SortBySize(entries []model.FileEntry, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		if c, ok := dirsFirst(a, b, reverse); ok {
			return c < 0
		}

		la, lb := sizeLength(a), sizeLength(b)

		switch {
		case la < lb:
			return !reverse
		case la > lb:
			return reverse
		default:
			return compareByName(a, b, reverse) < 0
		}
	})
}

func sizeLength(e model.FileEntry) int64 {
	switch {
	case e.IsDirLike():
		return e.DirCount
	case e.Kind == model.KindCharDevice || e.Kind == model.KindBlockDevice:
		return int64(e.Major)<<32 | int64(e.Minor)
	default:
		return e.Size
	}
}
