// Package archivemount implements the Archive Mount Layer (spec §4.H):
// mounting compressed archive files through the external archivemount(1)
// FUSE helper so their contents appear as an ordinary directory tree,
// grounded on original_source/rnr/__main__.py's add_archive_dir /
// umount_archive / archivemount_alarm_cb machinery.
package archivemount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/pathtranslate"
)

// ErrArchivemountMissing is returned when the archivemount executable isn't
// on PATH, matching the original's FileNotFoundError branch around
// subprocess.Popen.
var ErrArchivemountMissing = errors.New("archivemount executable not found")

// pollInterval matches the original's 0.05s alarm. Mount does not use it:
// Mount waits for the archivemount process to exit before returning.
const pollInterval = 50 * time.Millisecond

// AML owns the append-ordered list of live archive mounts (§3 invariant) and
// the reference counts of panels that believe each mount is live.
type AML struct {
	mounts     []*model.ArchiveMount
	mkdirTemp  func(pattern string) (string, error)
	runCommand func(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error)
	lookPath   func(name string) (string, error)
}

// Option configures an AML built by New, used by tests to swap out the
// real temp-dir/subprocess backends for fakes.
type Option func(*AML)

// WithMkdirTemp overrides the function used to create a fresh mount point
// directory.
func WithMkdirTemp(f func(pattern string) (string, error)) Option {
	return func(a *AML) { a.mkdirTemp = f }
}

// WithRunCommand overrides the function used to run archivemount/umount.
func WithRunCommand(f func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error)) Option {
	return func(a *AML) { a.runCommand = f }
}

// WithLookPath overrides the function used to check the archivemount
// executable is on PATH.
func WithLookPath(f func(name string) (string, error)) Option {
	return func(a *AML) { a.lookPath = f }
}

// New builds an empty AML with the real OS temp-dir and exec.Command
// backends, overridable via Option.
func New(opts ...Option) *AML {
	a := &AML{
		mkdirTemp: func(pattern string) (string, error) {
			return os.MkdirTemp("", pattern)
		},
		runCommand: runExternal,
		lookPath:   exec.LookPath,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func runExternal(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr []byte

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	stdout, _ = readAll(outPipe)
	stderr, _ = readAll(errPipe)

	err = cmd.Wait()

	return stdout, stderr, err
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}

		if err != nil {
			return buf, nil
		}
	}
}

// Translator returns a pathtranslate.Translator over the current mount
// snapshot, for handing to the lister/scanner/executor packages.
func (a *AML) Translator() *pathtranslate.Translator {
	return pathtranslate.New(pathtranslate.FromModelMounts(a.mounts))
}

// findMount returns the mount whose ArchiveFile/TempDir pair matches, or
// nil, mirroring add_archive_dir's linear scan for an existing entry.
func (a *AML) findMount(archiveFile, tempDir string) *model.ArchiveMount {
	for _, m := range a.mounts {
		if m.ArchiveFile == archiveFile && m.TempDir == tempDir {
			return m
		}
	}

	return nil
}

// Mount mounts archiveFile read-only for panel, reusing an existing mount
// (and simply adding panel to its referencing set) when one already covers
// it. parentDir is the real (translated) directory archiveFile's parent
// resolves to, matching `cwd=self.unarchive_path(self.archive_file.parent)[0]`.
func (a *AML) Mount(ctx context.Context, archiveFile, parentDir, panel string) (tempDir string, err error) {
	for _, m := range a.mounts {
		if m.ArchiveFile == archiveFile {
			m.ReferencingPanel[panel] = struct{}{}

			return m.TempDir, nil
		}
	}

	if _, err := a.lookPath("archivemount"); err != nil {
		return "", ErrArchivemountMissing
	}

	tempDir, err = a.mkdirTemp("rnr-mnt-")
	if err != nil {
		return "", fmt.Errorf("creating mount point: %w", err)
	}

	_, stderr, runErr := a.runCommand(ctx, parentDir, "archivemount", "-o", "ro", filepath.Base(archiveFile), tempDir)
	if runErr != nil {
		_, _ = a.runCommand(ctx, parentDir, "umount", tempDir)
		_ = os.Remove(tempDir)

		if len(stderr) > 0 {
			return "", fmt.Errorf("archivemount: %s", stderr)
		}

		return "", fmt.Errorf("archivemount: %w", runErr)
	}

	a.addMount(archiveFile, tempDir, panel)

	return tempDir, nil
}

// addMount inserts (or extends the referencing set of) one mount, keeping
// the append order the translator's innermost-wins walk depends on.
func (a *AML) addMount(archiveFile, tempDir, panel string) {
	if m := a.findMount(archiveFile, tempDir); m != nil {
		m.ReferencingPanel[panel] = struct{}{}

		return
	}

	a.mounts = append(a.mounts, model.NewArchiveMount(archiveFile, tempDir, panel))
}

// Unmount drops panel's reference to every mount whose archive file is file
// or an ancestor of file, unmounting (and removing the temp dir) for any
// mount whose referencing set becomes empty. translatedParent maps a
// mount's archive file to the real directory `umount` must run from.
func (a *AML) Unmount(ctx context.Context, file, panel string, translatedParent func(archiveFile string) string) {
	kept := a.mounts[:0:0]

	for i := len(a.mounts) - 1; i >= 0; i-- {
		m := a.mounts[i]

		if m.ArchiveFile == file || isAncestor(m.ArchiveFile, file) {
			delete(m.ReferencingPanel, panel)

			if len(m.ReferencingPanel) == 0 {
				dir := ""
				if translatedParent != nil {
					dir = translatedParent(m.ArchiveFile)
				}

				_, _, _ = a.runCommand(ctx, dir, "umount", m.TempDir)
				_ = os.Remove(m.TempDir)

				continue
			}
		}

		kept = append(kept, m)
	}

	reverseMounts(kept)

	a.mounts = kept
}

func reverseMounts(m []*model.ArchiveMount) {
	for i, j := 0, len(m)-1; i < j; i, j = i+1, j-1 {
		m[i], m[j] = m[j], m[i]
	}
}

// isAncestor reports whether ancestor is a strict ancestor directory of
// file (file itself does not count).
func isAncestor(ancestor, file string) bool {
	rel, err := filepath.Rel(ancestor, file)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Quit unmounts every live mount unconditionally, matching quit()'s
// "simulate navigating all panels out of every archive".
func (a *AML) Quit(ctx context.Context, translatedParent func(archiveFile string) string) {
	for i := len(a.mounts) - 1; i >= 0; i-- {
		m := a.mounts[i]

		dir := ""
		if translatedParent != nil {
			dir = translatedParent(m.ArchiveFile)
		}

		_, _, _ = a.runCommand(ctx, dir, "umount", m.TempDir)
		_ = os.Remove(m.TempDir)
	}

	a.mounts = nil
}

// Mounts returns a snapshot of the currently live mounts, for the
// Controller/UI to inspect.
func (a *AML) Mounts() []*model.ArchiveMount {
	out := make([]*model.ArchiveMount, len(a.mounts))
	copy(out, a.mounts)

	return out
}
