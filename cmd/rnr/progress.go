package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/bugnano/rnr/internal/progressbus"
)

// isTTY reports whether w is a terminal, deciding the progress reporter's
// redraw style the same way isatty gates color/redraw decisions throughout
// the corpus: true only for an *os.File whose fd the kernel confirms is a
// tty (or, on Windows, a Cygwin/MSYS pty).
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// watchProgress drains bus until its terminal Done message, printing each
// Sample either as a carriage-return redraw (interactive terminal) or one
// line per sample (redirected output, e.g. into a log file), and returns a
// channel closed once the Done message has been observed.
func watchProgress(out io.Writer, bus *progressbus.Bus) <-chan struct{} {
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		tty := isTTY(out)

		for msg := range bus.Messages() {
			if msg.Kind == progressbus.KindDone {
				if tty {
					fmt.Fprintln(out)
				}

				return
			}

			line := formatSample(msg.Sample)

			if tty {
				fmt.Fprintf(out, "\r\x1b[K%s", line)
			} else {
				fmt.Fprintln(out, line)
			}
		}
	}()

	return finished
}

func formatSample(s progressbus.Sample) string {
	switch {
	case s.CurrentDir != "":
		return fmt.Sprintf("scanning %s (%d files, %s)",
			s.CurrentDir, s.FilesScanned, humanize.Bytes(uint64(s.BytesScanned)))
	case s.CurFile != "":
		return fmt.Sprintf("%s (%s)", s.CurFile, humanize.Bytes(uint64(s.TotalSize)))
	default:
		return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(s.CurSize)), humanize.Bytes(uint64(s.TotalSize)))
	}
}
