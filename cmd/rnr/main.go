/*
rnr is a bulk filesystem operation engine: it scans file/directory
selections, resolves per-file copy/move conflicts, and drives resumable,
crash-recoverable copy, move and delete jobs, including jobs whose files
live inside mounted archives.

Unlike the original curses-based two-panel file manager this engine was
distilled from, rnr here exposes its engine through a scriptable,
non-interactive verb surface suited to shell pipelines and cron jobs rather
than a terminal UI (a curses front-end is an external collaborator this
module does not implement):

	rnr cp [--conflict=policy] DEST SRC...
	rnr mv [--conflict=policy] DEST SRC...
	rnr rm PATH...
	rnr pending
	rnr resume JOB-ID
	rnr mount ARCHIVE PANEL
	rnr umount FILE PANEL
	rnr quit

# FLAGS

	-V, --version      print the version and exit
	-P, --printwd FILE  write the focused panel's working directory to FILE on quit
	-D, --database FILE job persistence database file (default: under $XDG_DATA_HOME)
	-n, --nodb          do not use the job persistence database
	-b, --nocolor       run in black and white
	-t, --tabsize N     set tab size for the internal viewer (default 4)
	-d, --debug         activate debug logging to ~/rnr.log
	    --checksum      verify a BLAKE3 digest of every copied file against its source

# RETURN CODES

  - 0: the command completed without per-file errors, or a clean quit
  - 1: a fatal error (bad arguments, a job-setup failure, or a shutdown
    that outlasted the interrupt grace period), or a job that finished
    with one or more per-file errors

# RESUME

If pending in-progress jobs exist in the database (from a rnr process that
exited uncleanly), `rnr pending` lists their job IDs and `rnr resume
JOB-ID` continues one from wherever it stopped, skipping conflict
resolution for the file that was in flight when the process ended.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/bugnano/rnr/internal/archivemount"
	"github.com/bugnano/rnr/internal/config"
	"github.com/bugnano/rnr/internal/controller"
	"github.com/bugnano/rnr/internal/jobstore"
	"github.com/bugnano/rnr/internal/rnrlog"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1

	exitTimeout = 10 * time.Second
)

// Version is the application's version (filled in during compilation).
var Version = "dev"

type program struct {
	cfg  *config.Config
	ctrl *controller.Controller
	log  *slog.Logger

	stdout io.Writer
	stderr io.Writer

	verb string
	args []string
}

func main() {
	var prog *program
	var exitCode int

	defer func() {
		if prog != nil {
			prog.log.Info("program exited", "code", exitCode)
		}

		os.Exit(exitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	doneChan := make(chan int, 1)

	prog, err := newProgram(os.Args, afero.NewOsFs(), os.Stdout, os.Stderr)
	if prog == nil || err != nil {
		exitCode = exitCodeFailure

		return
	}

	if prog.ctrl != nil {
		defer prog.ctrl.Store.Close()
	}

	go func() {
		exitCode := prog.run(ctx)
		doneChan <- exitCode
	}()

	select {
	case code := <-doneChan:
		exitCode = code

		return

	case <-sigChan:
		prog.log.Warn("received interrupt signal; shutting down (waiting up to 10s)...", "verb", prog.verb)

		if prog.ctrl != nil {
			prog.ctrl.HandleSignal()
		}

		cancel()

		select {
		case code := <-doneChan:
			exitCode = code

			return

		case <-time.After(exitTimeout):
			rnrlog.FatalError(prog.log, "timed out while waiting for program exit; killing", nil, "verb", prog.verb)
			exitCode = exitCodeFailure

			return
		}
	}
}

func newProgram(cliArgs []string, fsys afero.Fs, stdout, stderr io.Writer) (*program, error) {
	cfg, err := config.Parse(cliArgs, stderr)
	if err != nil {
		return nil, err
	}

	if cfg.Opts.Version {
		fmt.Fprintf(stdout, "rnr %s\n", Version)

		return &program{cfg: cfg, stdout: stdout, stderr: stderr, log: rnrlog.New(stderr, rnrlog.Options{})}, nil
	}

	logWriter := stderr

	if cfg.Opts.Debug {
		logPath, perr := config.DebugLogPath()
		if perr != nil {
			return nil, perr
		}

		f, oerr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
		if oerr != nil {
			return nil, fmt.Errorf("opening debug log: %w", oerr)
		}

		logWriter = f
	}

	log := rnrlog.New(logWriter, rnrlog.Options{
		Debug:   cfg.Opts.Debug,
		NoColor: cfg.Opts.NoColor,
	})

	dbPath := cfg.Opts.Database
	if cfg.Opts.NoDB {
		dbPath = ""
	} else if dbPath == "" {
		dbPath, err = config.DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
	}

	var store *jobstore.Store
	if dbPath == "" {
		store = jobstore.NoDB()
	} else {
		if mkErr := fsys.MkdirAll(filepath.Dir(dbPath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating database directory: %w", mkErr)
		}

		store = jobstore.Open(dbPath)
	}

	aml := archivemount.New()
	ctrl := controller.New(store, aml, log, fsys)

	verb := ""
	args := cfg.Opts.Paths

	if len(args) > 0 {
		verb = args[0]
		args = args[1:]
	}

	return &program{cfg: cfg, ctrl: ctrl, log: log, stdout: stdout, stderr: stderr, verb: verb, args: args}, nil
}

func (prog *program) run(ctx context.Context) int {
	if prog.cfg.Opts.Version {
		return exitCodeSuccess
	}

	if err := dispatch(ctx, prog); err != nil {
		rnrlog.RuntimeError(prog.log, "command failed", err, "verb", prog.verb)

		return exitCodeFailure
	}

	return exitCodeSuccess
}
