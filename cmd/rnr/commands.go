package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bugnano/rnr/internal/model"
	"github.com/bugnano/rnr/internal/progressbus"
)

var errUsage = errors.New("wrong number of arguments")

// dispatch routes a parsed verb to its handler, matching the verb surface
// documented in main.go's package comment.
func dispatch(ctx context.Context, prog *program) error {
	switch prog.verb {
	case "cp":
		return runCopyMove(ctx, prog, model.OperationCopy)
	case "mv":
		return runCopyMove(ctx, prog, model.OperationMove)
	case "rm":
		return runDelete(ctx, prog)
	case "pending":
		return runPending(ctx, prog)
	case "resume":
		return runResume(ctx, prog)
	case "mount":
		return runMount(ctx, prog)
	case "umount":
		return runUnmount(ctx, prog)
	case "quit":
		return runQuit(ctx, prog)
	case "":
		return fmt.Errorf("%w: no command given", errUsage)
	default:
		return fmt.Errorf("unknown command %q", prog.verb)
	}
}

// popConflictPolicy extracts a "--conflict=policy" argument from any
// position (the last one wins if repeated), defaulting to skip (the original's safest default when a caller
// does not ask to be prompted).
func popConflictPolicy(args []string) ([]string, model.ConflictPolicy) {
	policy := model.ConflictSkip

	var rest []string

	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "--conflict="); ok {
			policy = model.ConflictPolicy(v)

			continue
		}

		rest = append(rest, a)
	}

	return rest, policy
}

func runCopyMove(ctx context.Context, prog *program, op model.Operation) error {
	args, policy := popConflictPolicy(prog.args)
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: rnr %s [--conflict=policy] DEST SRC...", errUsage, prog.verb)
	}

	dest := args[0]
	srcs := args[1:]

	job, err := scanJob(ctx, prog, op, dest, srcs)
	if err != nil {
		return err
	}

	job.ConflictPolicy = policy
	job.Checksum = prog.cfg.Opts.Checksum

	return runNewJob(ctx, prog, job)
}

func runDelete(ctx context.Context, prog *program) error {
	if len(prog.args) < 1 {
		return fmt.Errorf("%w: usage: rnr rm PATH...", errUsage)
	}

	job, err := scanJob(ctx, prog, model.OperationDelete, "", prog.args)
	if err != nil {
		return err
	}

	return runNewJob(ctx, prog, job)
}

// scanJob translates srcs to absolute paths, scans them into a WorkList and
// builds the (not yet persisted) Job. All srcs must share a common parent
// directory, which becomes SourceCwd (the directory relative paths, and
// therefore destination targets, are computed against).
func scanJob(ctx context.Context, prog *program, op model.Operation, dest string, srcs []string) (*model.Job, error) {
	abs := make([]string, len(srcs))

	for i, s := range srcs {
		a, err := filepath.Abs(s)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", s, err)
		}

		abs[i] = a
	}

	cwd := filepath.Dir(abs[0])

	for _, a := range abs[1:] {
		if filepath.Dir(a) != cwd {
			return nil, fmt.Errorf("all paths must share a common parent directory (got %q and %q)", abs[0], a)
		}
	}

	// replace_first_path is true iff the destination did not exist as a
	// directory at job start; it must be decided here and persisted rather
	// than recomputed on resume, since a crashed job's first run may have
	// already created the destination directory.
	replaceFirstPath := false

	if dest != "" {
		d, err := filepath.Abs(dest)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", dest, err)
		}

		dest = d

		info, statErr := os.Stat(dest)
		replaceFirstPath = statErr != nil || !info.IsDir()
	}

	events := prog.ctrl.NewJobEvents()

	bus, err := progressbus.New(16)
	if err != nil {
		return nil, fmt.Errorf("creating progress bus: %w", err)
	}
	defer bus.Close()

	finished := watchProgress(prog.stdout, bus)
	result := prog.ctrl.Scan(abs, cwd, events, bus)
	<-finished

	return &model.Job{
		Operation:        op,
		SourceCwd:        cwd,
		Destination:      dest,
		OriginalFiles:    abs,
		ScanErrors:       result.Errors,
		ScanSkipped:      result.Skipped,
		WorkList:         result.WorkList,
		ReplaceFirstPath: replaceFirstPath,
	}, nil
}

// runNewJob persists job as a brand-new row (assigning its ID) before
// running it, for a freshly scanned cp/mv/rm.
func runNewJob(ctx context.Context, prog *program, job *model.Job) error {
	prog.ctrl.Store.NewJob(ctx, job)

	return runJob(ctx, prog, job)
}

// runJob executes an already-persisted job (resume's path) or a job
// runNewJob has just persisted.
func runJob(ctx context.Context, prog *program, job *model.Job) error {
	events := prog.ctrl.NewJobEvents()

	bus, err := progressbus.New(16)
	if err != nil {
		return fmt.Errorf("creating progress bus: %w", err)
	}
	defer bus.Close()

	finished := watchProgress(prog.stdout, bus)
	report := prog.ctrl.RunJob(ctx, job, events, bus)
	<-finished

	printReport(prog.stdout, report)

	if len(job.ScanErrors) > 0 {
		for _, e := range job.ScanErrors {
			fmt.Fprintf(prog.stdout, "scan error: %s: %s\n", e.File, e.Message)
		}
	}

	if len(report.Error) > 0 {
		return fmt.Errorf("job %d completed with %d error(s)", job.ID, len(report.Error))
	}

	return nil
}

func runPending(ctx context.Context, prog *program) error {
	for _, job := range prog.ctrl.PendingJobs(ctx) {
		fmt.Fprintf(prog.stdout, "%d\t%s\t%s -> %s\n", job.ID, job.Operation, job.SourceCwd, job.Destination)
	}

	return nil
}

func runResume(ctx context.Context, prog *program) error {
	if len(prog.args) != 1 {
		return fmt.Errorf("%w: usage: rnr resume JOB-ID", errUsage)
	}

	id, err := strconv.ParseInt(prog.args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing job id: %w", err)
	}

	var job *model.Job

	for _, j := range prog.ctrl.PendingJobs(ctx) {
		if j.ID == id {
			job = j

			break
		}
	}

	if job == nil {
		return fmt.Errorf("no pending job with id %d", id)
	}

	prog.ctrl.Hydrate(ctx, job)

	return runJob(ctx, prog, job)
}

func runMount(ctx context.Context, prog *program) error {
	if len(prog.args) != 2 {
		return fmt.Errorf("%w: usage: rnr mount ARCHIVE PANEL", errUsage)
	}

	tempDir, err := prog.ctrl.MountArchive(ctx, prog.args[0], prog.args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(prog.stdout, tempDir)

	return nil
}

func runUnmount(ctx context.Context, prog *program) error {
	if len(prog.args) != 2 {
		return fmt.Errorf("%w: usage: rnr umount FILE PANEL", errUsage)
	}

	prog.ctrl.UnmountArchive(ctx, prog.args[0], prog.args[1])

	return nil
}

func runQuit(ctx context.Context, prog *program) error {
	focusedCwd := "."

	if len(prog.args) == 1 {
		focusedCwd = prog.args[0]
	}

	return prog.ctrl.Quit(ctx, focusedCwd, prog.cfg.Opts.PrintWD)
}
