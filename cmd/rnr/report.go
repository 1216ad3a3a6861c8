package main

import (
	"fmt"
	"io"

	"github.com/bugnano/rnr/internal/model"
)

// printReport writes a job's final Report the way a scripted caller needs
// to see it: one line per entry, grouped by outcome, every WorkItem
// accounted for in exactly one section (§8's universal invariant).
func printReport(w io.Writer, report model.Report) {
	for _, e := range report.Result {
		if e.Message != "" {
			fmt.Fprintf(w, "%s (%s)\n", e.File, e.Message)
		} else {
			fmt.Fprintln(w, e.File)
		}
	}

	for _, e := range report.Skipped {
		fmt.Fprintf(w, "skipped: %s (%s)\n", e.File, e.Message)
	}

	for _, e := range report.Error {
		fmt.Fprintf(w, "error: %s: %s\n", e.File, e.Message)
	}

	for _, e := range report.Aborted {
		fmt.Fprintf(w, "aborted: %s\n", e.File)
	}

	fmt.Fprintf(w, "\n%d done, %d skipped, %d error, %d aborted\n",
		len(report.Result), len(report.Skipped), len(report.Error), len(report.Aborted))
}
