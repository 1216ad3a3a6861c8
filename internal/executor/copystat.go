package executor

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lchown applies ownership to path without following symlinks, falling
// back to group-only on EPERM exactly like rnr_cpmv's nested try/except
// around os.lchown (an unprivileged process can usually change the group
// to one it belongs to even when it can't change the owner).
func lchown(path string, uid, gid uint32) error {
	err := unix.Lchown(path, int(uid), int(gid))
	if err == nil {
		return nil
	}

	if !errors.Is(err, unix.EPERM) {
		return err
	}

	if err := unix.Lchown(path, -1, int(gid)); err != nil {
		if errors.Is(err, unix.EPERM) {
			return nil
		}

		return err
	}

	return nil
}

// copystat applies mode and timestamps from src's lstat snapshot onto dst,
// without following symlinks, matching
// `shutil.copystat(cur_file, cur_target, follow_symlinks=False)`. Linux has
// no lchmod, so a symlink's own permission bits (which the kernel ignores
// anyway) are left alone; only its timestamps are set.
func copystat(dst string, mode uint32, modTime, accTime int64, isSymlink bool) error {
	ts := []unix.Timespec{
		{Sec: accTime, Nsec: 0},
		{Sec: modTime, Nsec: 0},
	}

	if err := unix.UtimesNanoAt(unix.AT_FDCWD, dst, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return err
	}

	if isSymlink {
		return nil
	}

	return os.Chmod(dst, os.FileMode(mode&0o7777))
}

// fsyncDir opens dir and fsyncs it, matching the original's
// `parent_fd = os.open(parent_dir, 0); os.fsync(parent_fd)` used after
// every filesystem mutation to make directory entries durable.
func fsyncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	return unix.Fsync(fd)
}

// sameFile reports whether two paths resolve (symlinks followed) to the
// same file, matching `cur_file.resolve() == cur_target.resolve()`. A path
// that doesn't exist can't resolve, so it never compares equal to anything,
// matching Path.resolve()'s behavior of raising on a missing target (the
// original only reaches this comparison once cur_target.exists() is true).
func sameFile(a, b string) bool {
	ra, erra := filepath.EvalSymlinks(a)
	rb, errb := filepath.EvalSymlinks(b)

	if erra != nil || errb != nil {
		return false
	}

	return ra == rb
}
