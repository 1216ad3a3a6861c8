// Package jobstore implements the Job Persistence Layer (spec §4.E): a
// SQLite-backed store of in-flight and crash-recovered jobs, grounded on
// original_source/rnr/database.py's schema and its "degrade to a silent
// no-op" error handling (ev_nodb, spec §5, §9 "No-DB mode").
//
// Every method here mirrors one method of the original DataBase class. A
// Store whose underlying connection failed to open, or that later hits a
// SQLite error, does not surface that error to ordinary callers: it simply
// stops persisting, the same way the original swallows sqlite3.OperationalError
// everywhere. Store.Err returns the last such error for diagnostics/logging
// only.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/bugnano/rnr/internal/model"
)

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER NOT NULL PRIMARY KEY,
	operation TEXT NOT NULL,
	files TEXT NOT NULL,
	cwd TEXT NOT NULL,
	dest TEXT,
	on_conflict TEXT,
	scan_error TEXT,
	scan_skipped TEXT,
	dir_list TEXT,
	rename_dir_stack TEXT,
	skip_dir_stack TEXT,
	replace_first_path INTEGER,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER NOT NULL PRIMARY KEY,
	job_id INTEGER NOT NULL,
	file TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT,
	FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
);
`

// Store is the Job Persistence Layer. A nil *sql.DB inside (db == nil, set
// when Open fails or --nodb was requested) makes every method a no-op,
// exactly like DataBase.conn is None in the original.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	lastErr error
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. A failure to open or migrate does not return
// an error: it returns a Store running in no-DB mode, matching the
// original's try/except around the whole constructor. Callers that want to
// know whether persistence is actually active should check IsActive.
func Open(path string) *Store {
	s := &Store{}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		s.lastErr = err

		return s
	}

	if _, err := db.Exec(schema); err != nil {
		s.lastErr = err
		_ = db.Close()

		return s
	}

	s.db = db

	return s
}

// NoDB returns a Store permanently in no-DB mode, for --nodb / ev_nodb.
func NoDB() *Store {
	return &Store{}
}

// IsActive reports whether this Store is actually persisting.
func (s *Store) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db != nil
}

// Err returns the last error this Store swallowed, for logging.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

func (s *Store) fail(err error) {
	s.lastErr = err
	// Match the original: a single OperationalError degrades every future
	// call to a no-op rather than retrying against a possibly-corrupt file.
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

// NewJob inserts a job row plus its file rows, assigning monotonic IDs the
// same way `SELECT MAX(id) FROM jobs` / `FROM files` does. It returns 0 (the
// zero job_id) when running in no-DB mode.
func (s *Store) NewJob(ctx context.Context, job *model.Job) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.fail(err)

		return 0
	}
	defer func() { _ = tx.Rollback() }()

	var maxJobID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM jobs`).Scan(&maxJobID); err != nil {
		s.fail(err)

		return 0
	}

	jobID := maxJobID.Int64 + 1

	filesJSON, err := json.Marshal(job.OriginalFiles)
	if err != nil {
		s.fail(err)

		return 0
	}

	scanErrJSON, _ := json.Marshal(job.ScanErrors)
	scanSkippedJSON, _ := json.Marshal(job.ScanSkipped)

	_, err = tx.ExecContext(ctx, `INSERT INTO jobs
		(id, operation, files, cwd, dest, on_conflict, scan_error, scan_skipped, dir_list, rename_dir_stack, skip_dir_stack, replace_first_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?, ?)`,
		jobID, string(job.Operation), string(filesJSON), job.SourceCwd, nullableString(job.Destination),
		nullableString(string(job.ConflictPolicy)), string(scanErrJSON), string(scanSkippedJSON), boolToInt(job.ReplaceFirstPath), string(model.JobInProgress))
	if err != nil {
		s.fail(err)

		return 0
	}

	var maxFileID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM files`).Scan(&maxFileID); err != nil {
		s.fail(err)

		return 0
	}

	fileID := maxFileID.Int64 + 1

	for i := range job.WorkList {
		item := &job.WorkList[i]

		itemJSON, err := json.Marshal(item)
		if err != nil {
			s.fail(err)

			return 0
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO files (id, job_id, file, status, message) VALUES (?, ?, ?, ?, NULL)`,
			fileID, jobID, string(itemJSON), string(model.StatusToDo)); err != nil {
			s.fail(err)

			return 0
		}

		item.ID = fileID
		item.Status = model.StatusToDo

		fileID++
	}

	if err := tx.Commit(); err != nil {
		s.fail(err)

		return 0
	}

	job.ID = jobID
	job.Status = model.JobInProgress

	return jobID
}

// SetFileStatus updates one WorkItem's status (and optional message) both
// in the DB and on the passed-in WorkItem, matching set_file_status
// mutating the dict it was given in place.
func (s *Store) SetFileStatus(ctx context.Context, item *model.WorkItem, status model.WorkItemStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		var err error
		if message != "" {
			_, err = s.db.ExecContext(ctx, `UPDATE files SET status = ?, message = ? WHERE id = ?`, string(status), message, item.ID)
		} else {
			_, err = s.db.ExecContext(ctx, `UPDATE files SET status = ? WHERE id = ?`, string(status), item.ID)
		}

		if err != nil {
			s.fail(err)
		}
	}

	item.Status = status
	if message != "" {
		item.Message = message
	}
}

// UpdateFile rewrites a WorkItem's JSON blob (cur_target, target_is_dir,
// target_is_symlink, warning, ...) plus its status in one statement,
// matching update_file(file, status?): unlike SetFileStatus, which only
// touches the status/message columns, this is the call that makes a
// resumed item's cur_target and related fields survive a crash.
func (s *Store) UpdateFile(ctx context.Context, item *model.WorkItem, status model.WorkItemStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Status = status
	if message != "" {
		item.Message = message
	}

	if s.db == nil {
		return
	}

	blob, err := json.Marshal(item)
	if err != nil {
		s.fail(err)

		return
	}

	var execErr error
	if message != "" {
		_, execErr = s.db.ExecContext(ctx, `UPDATE files SET file = ?, status = ?, message = ? WHERE id = ?`,
			string(blob), string(status), message, item.ID)
	} else {
		_, execErr = s.db.ExecContext(ctx, `UPDATE files SET file = ?, status = ? WHERE id = ?`,
			string(blob), string(status), item.ID)
	}

	if execErr != nil {
		s.fail(execErr)
	}
}

// SetReplaceFirstPath persists a job's replace_first_path flag, computed
// once at scan time (true iff the destination did not exist as a directory
// at job start) and otherwise immutable for the job's lifetime.
func (s *Store) SetReplaceFirstPath(ctx context.Context, jobID int64, replaceFirstPath bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET replace_first_path = ? WHERE id = ?`,
		boolToInt(replaceFirstPath), jobID); err != nil {
		s.fail(err)
	}
}

// GetReplaceFirstPath retrieves a job's replace_first_path flag, for
// Hydrate to restore on resume (the value can't be safely recomputed from
// the destination's current on-disk state, since an interrupted job may
// already have created that directory).
func (s *Store) GetReplaceFirstPath(ctx context.Context, jobID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return false
	}

	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT replace_first_path FROM jobs WHERE id = ?`, jobID).Scan(&v); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(err)
		}

		return false
	}

	return v.Valid && v.Int64 != 0
}

// SetJobStatus updates a job's status column.
func (s *Store) SetJobStatus(ctx context.Context, jobID int64, status model.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, string(status), jobID); err != nil {
		s.fail(err)
	}
}

// DeleteJob removes a job row (and, via ON DELETE CASCADE, its files),
// used once a job's report has been fully delivered.
func (s *Store) DeleteJob(ctx context.Context, jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		s.fail(err)
	}
}

// SetDirList persists the finalize stack.
func (s *Store) SetDirList(ctx context.Context, jobID int64, dirList []model.DirListEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}

	blob, err := json.Marshal(dirList)
	if err != nil {
		s.fail(err)

		return
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET dir_list = ? WHERE id = ?`, string(blob), jobID); err != nil {
		s.fail(err)
	}
}

// GetDirList retrieves the finalize stack, returning an empty slice (never
// nil, never an error) if the row is absent or persistence is inactive.
func (s *Store) GetDirList(ctx context.Context, jobID int64) []model.DirListEntry {
	return queryJSONColumn[model.DirListEntry](ctx, s, jobID, "dir_list")
}

// SetRenameDirStack persists rename_dir_stack.
func (s *Store) SetRenameDirStack(ctx context.Context, jobID int64, stack []model.RenameDirEntry) {
	s.setJSONColumn(ctx, jobID, "rename_dir_stack", stack)
}

// GetRenameDirStack retrieves rename_dir_stack.
func (s *Store) GetRenameDirStack(ctx context.Context, jobID int64) []model.RenameDirEntry {
	return queryJSONColumn[model.RenameDirEntry](ctx, s, jobID, "rename_dir_stack")
}

// SetSkipDirStack persists skip_dir_stack.
func (s *Store) SetSkipDirStack(ctx context.Context, jobID int64, stack []string) {
	s.setJSONColumn(ctx, jobID, "skip_dir_stack", stack)
}

// GetSkipDirStack retrieves skip_dir_stack.
func (s *Store) GetSkipDirStack(ctx context.Context, jobID int64) []string {
	return queryJSONColumn[string](ctx, s, jobID, "skip_dir_stack")
}

func (s *Store) setJSONColumn(ctx context.Context, jobID int64, column string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}

	blob, err := json.Marshal(v)
	if err != nil {
		s.fail(err)

		return
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET `+column+` = ? WHERE id = ?`, string(blob), jobID); err != nil {
		s.fail(err)
	}
}

func queryJSONColumn[T any](ctx context.Context, s *Store, jobID int64, column string) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []T{}

	if s.db == nil {
		return out
	}

	var record sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT `+column+` FROM jobs WHERE id = ?`, jobID).Scan(&record); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(err)
		}

		return out
	}

	if record.Valid && record.String != "" {
		if err := json.Unmarshal([]byte(record.String), &out); err != nil {
			s.fail(err)

			return []T{}
		}
	}

	if out == nil {
		out = []T{}
	}

	return out
}

// GetJobs lists every job row, for the resume-on-startup dialog (§4.I).
func (s *Store) GetJobs(ctx context.Context) []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := []*model.Job{}

	if s.db == nil {
		return jobs
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, files, cwd, dest, on_conflict, scan_error, scan_skipped, replace_first_path, status FROM jobs`)
	if err != nil {
		s.fail(err)

		return jobs
	}
	defer rows.Close()

	for rows.Next() {
		var (
			job                          model.Job
			operation, status            string
			filesJSON                    string
			dest, onConflict             sql.NullString
			scanErrJSON, scanSkippedJSON string
			replaceFirstPath             sql.NullInt64
		)

		if err := rows.Scan(&job.ID, &operation, &filesJSON, &job.SourceCwd, &dest, &onConflict,
			&scanErrJSON, &scanSkippedJSON, &replaceFirstPath, &status); err != nil {
			s.fail(err)

			return jobs
		}

		job.Operation = model.Operation(operation)
		job.Status = model.JobStatus(status)
		job.ReplaceFirstPath = replaceFirstPath.Valid && replaceFirstPath.Int64 != 0

		if dest.Valid {
			job.Destination = dest.String
		}

		if onConflict.Valid {
			job.ConflictPolicy = model.ConflictPolicy(onConflict.String)
		}

		_ = json.Unmarshal([]byte(filesJSON), &job.OriginalFiles)
		_ = json.Unmarshal([]byte(scanErrJSON), &job.ScanErrors)
		_ = json.Unmarshal([]byte(scanSkippedJSON), &job.ScanSkipped)

		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		s.fail(err)
	}

	return jobs
}

// GetFileList retrieves every WorkItem belonging to a job, for resume.
func (s *Store) GetFileList(ctx context.Context, jobID int64) []model.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []model.WorkItem{}

	if s.db == nil {
		return items
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, file, status FROM files WHERE job_id = ?`, jobID)
	if err != nil {
		s.fail(err)

		return items
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			fileJSON string
			status   string
		)

		if err := rows.Scan(&id, &fileJSON, &status); err != nil {
			s.fail(err)

			return items
		}

		var item model.WorkItem
		if err := json.Unmarshal([]byte(fileJSON), &item); err != nil {
			s.fail(err)

			return items
		}

		item.ID = id
		item.Status = model.WorkItemStatus(status)

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		s.fail(err)
	}

	return items
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
