// Package model holds the shared data types of the bulk filesystem
// operation engine: directory-listing entries, scanner work items, jobs and
// archive mounts. Types here are plain data; the packages that produce and
// consume them (lister, scanner, jobstore, executor, archivemount) own the
// behavior.
package model

import (
	"os"
	"strings"
	"time"
)

// EntryKind classifies a directory entry the way the Directory Lister
// prefixes and colors it.
type EntryKind int

const (
	KindRegular EntryKind = iota
	KindDirectory
	KindSymlinkToDir
	KindSymlinkToFile
	KindStaleSymlink
	KindCharDevice
	KindBlockDevice
	KindFIFO
	KindSocket
	KindExecutable
)

// StatSnapshot is a serializable capture of the stat/lstat fields the engine
// needs to carry across a resume (a JPL round-trip through JSON), standing
// in for Python's pickled os.stat_result.
type StatSnapshot struct {
	Mode    uint32    `json:"mode"`
	Size    int64     `json:"size"`
	Uid     uint32    `json:"uid"`
	Gid     uint32    `json:"gid"`
	Nlink   uint64    `json:"nlink"`
	Rdev    uint64    `json:"rdev"`
	ModTime time.Time `json:"mtime"`
	AccTime time.Time `json:"atime"`
}

// FileEntry is one child of a listed directory, produced by the Directory
// Lister and immutable after emission (§3, §4.B).
type FileEntry struct {
	File         string
	Key          []NatSortToken
	ExtensionKey []NatSortToken

	Lstat StatSnapshot
	Stat  StatSnapshot // following symlinks; equals Lstat for non-symlinks

	Kind EntryKind

	// Length is a sort/display tuple: for directories, DirCount (or -1 if
	// unknown); for char/block devices, Major/Minor; otherwise Size.
	DirCount   int64
	Major      uint32
	Minor      uint32
	Size       int64
	SizeString string

	Label      string
	Palette    string
	Details    string
	LinkTarget string
}

// IsDirLike reports whether this entry sorts and behaves as a directory for
// "directories first" ordering purposes. The original sort functions test
// stat.S_ISDIR against the *followed* stat, which for a symlink is the
// target's stat, so a symlink to a directory counts as a directory here too.
func (f FileEntry) IsDirLike() bool {
	return f.Kind == KindDirectory || f.Kind == KindSymlinkToDir
}

// WorkItemStatus is the lifecycle of one planned filesystem action (§3).
type WorkItemStatus string

const (
	StatusToDo       WorkItemStatus = "TO_DO"
	StatusInProgress WorkItemStatus = "IN_PROGRESS"
	StatusDone       WorkItemStatus = "DONE"
	StatusError      WorkItemStatus = "ERROR"
	StatusSkipped    WorkItemStatus = "SKIPPED"
)

// WorkItem is one planned filesystem action produced by the Scanner and
// mutated by an Executor (§3).
type WorkItem struct {
	ID int64 `json:"id"`

	File      string       `json:"file"`
	IsDir     bool         `json:"is_dir"`
	IsSymlink bool         `json:"is_symlink"`
	IsFile    bool         `json:"is_file"`
	Lstat     StatSnapshot `json:"lstat"`

	Status  WorkItemStatus `json:"status"`
	Message string         `json:"message"`

	CurTarget       string `json:"cur_target,omitempty"`
	Warning         string `json:"warning,omitempty"`
	TargetIsDir     bool   `json:"target_is_dir,omitempty"`
	TargetIsSymlink bool   `json:"target_is_symlink,omitempty"`
	Resumed         bool   `json:"-"`
}

// PathSortKey is the single place the "parent before child" ordering
// invariant (§9, second Open Question) is encoded: the OS separator is
// replaced by NUL so that, lexicographically, a directory always sorts
// before any of its children regardless of what printable byte follows the
// separator in the child's name.
func PathSortKey(path string) string {
	return strings.ReplaceAll(path, string(os.PathSeparator), "\x00")
}

// Operation identifies the kind of job (§3).
type Operation string

const (
	OperationCopy   Operation = "Copy"
	OperationMove   Operation = "Move"
	OperationDelete Operation = "Delete"
)

// ConflictPolicy decides what an Executor does when a copy/move target
// already exists (§3, §4.F).
type ConflictPolicy string

const (
	ConflictOverwrite      ConflictPolicy = "overwrite"
	ConflictSkip           ConflictPolicy = "skip"
	ConflictRenameExisting ConflictPolicy = "rename_existing"
	ConflictRenameCopy     ConflictPolicy = "rename_copy"
)

// JobStatus is the lifecycle of a Job (§3).
type JobStatus string

const (
	JobInProgress JobStatus = "IN_PROGRESS"
	JobDone       JobStatus = "DONE"
	JobAborted    JobStatus = "ABORTED"
)

// ScanIssue is one entry of a job's scan_error or scan_skipped list.
type ScanIssue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// RenameDirEntry is one element of the rename_dir_stack: later children of
// OldTarget must be remapped under NewTarget (§3 GLOSSARY rename_dir_stack).
type RenameDirEntry struct {
	OldTarget string `json:"old_target"`
	NewTarget string `json:"new_target"`
}

// DirListEntry is one directory awaiting post-order finalization (§3
// GLOSSARY "Finalize stack").
type DirListEntry struct {
	WorkItem  WorkItem `json:"work_item"`
	CurFile   string   `json:"cur_file"`
	CurTarget string   `json:"cur_target"`
	NewDir    bool     `json:"new_dir"`
}

// Job is the durable record of one bulk operation (§3).
type Job struct {
	ID        int64
	Operation Operation

	SourceCwd   string
	Destination string

	ConflictPolicy ConflictPolicy

	OriginalFiles []string

	ScanErrors  []ScanIssue
	ScanSkipped []ScanIssue

	WorkList []WorkItem

	DirList        []DirListEntry
	RenameDirStack []RenameDirEntry
	SkipDirStack   []string

	ReplaceFirstPath bool

	// Checksum, when set, makes the Copy/Move Executor verify every copied
	// regular file's BLAKE3 digest against its source after the copy
	// completes, recording a checksum mismatch as a file-level error instead
	// of silently accepting a divergent copy.
	Checksum bool

	Status JobStatus
}

// ResultEntry is one {file, message} pair in a final report list (§6, §7).
type ResultEntry struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Report is the final message of a job: every source WorkItem ends up in
// exactly one of these four lists (§8 universal invariant).
type Report struct {
	Result  []ResultEntry `json:"result"`
	Error   []ResultEntry `json:"error"`
	Skipped []ResultEntry `json:"skipped"`
	Aborted []ResultEntry `json:"aborted"`
}

// ArchiveMount is one active archivemount(1) mount (§3).
type ArchiveMount struct {
	ArchiveFile      string
	TempDir          string
	ReferencingPanel map[string]struct{}
}

// NewArchiveMount creates a mount referenced by a single panel.
func NewArchiveMount(archiveFile, tempDir, panel string) *ArchiveMount {
	return &ArchiveMount{
		ArchiveFile:      archiveFile,
		TempDir:          tempDir,
		ReferencingPanel: map[string]struct{}{panel: {}},
	}
}
