package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"coho/internal/queue"
	"coho/internal/workflow"
)

const (
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

func renderOutcome(out io.Writer, outcome *workflow.Outcome) {
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "%s\n", outcome.Candidate.DisplayName())
	if outcome.Integrity != nil {
		for _, issue := range outcome.Integrity.Issues {
			fmt.Fprintf(out, "  note: %s\n", issue)
		}
		if outcome.Integrity.RecommendSanitize {
			fmt.Fprintln(out, "  note: re-encode the tracks and reset padding before upload")
		}
	}
	if outcome.Upconvert != nil {
		fmt.Fprintf(out, "  upconvert check: %s\n", outcome.Upconvert.Verdict)
	}
	if len(outcome.Dupes) > 0 {
		fmt.Fprintf(out, "  possible duplicates: %d (best %.0f%% on %s)\n",
			len(outcome.Dupes), outcome.Dupes[0].Score*100, outcome.Dupes[0].Entry.Destination)
	}
	for _, fill := range outcome.RequestFills {
		fmt.Fprintf(out, "  fills request %s (%.0f%%)\n", fill.Request.ID, fill.Score*100)
	}

	rows := make([][]string, 0, len(outcome.Jobs))
	for _, job := range outcome.Jobs {
		rows = append(rows, []string{
			fmt.Sprint(job.ID),
			job.Destination,
			job.Format,
			statusCell(job.Status, colorize),
			job.ErrorMessage,
		})
	}
	table := renderTable(
		[]string{"ID", "Destination", "Format", "Status", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "Result: %s\n", aggregateCell(outcome.Aggregate, colorize))
}

func statusCell(status queue.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	switch status {
	case queue.StatusDone:
		return ansiGreen + label + ansiReset
	case queue.StatusHeld:
		return ansiYellow + label + ansiReset
	case queue.StatusFailed:
		return ansiRed + label + ansiReset
	}
	return label
}

func aggregateCell(aggregate workflow.Aggregate, colorize bool) string {
	label := strings.ReplaceAll(string(aggregate), "_", " ")
	if !colorize {
		return label
	}
	switch aggregate {
	case workflow.AggregateAllDone:
		return ansiGreen + label + ansiReset
	case workflow.AggregateHeld:
		return ansiYellow + label + ansiReset
	default:
		return ansiRed + label + ansiReset
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
