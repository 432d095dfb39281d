package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tonimelisma/onedrive-index/internal/config"
)

// nowFunc is the clock formatTime compares against.
var nowFunc = time.Now

// Statusf prints a progress line to stderr unless --quiet is set. Status
// lines never go to cc.Out, so piped listings stay clean.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// formatSize renders a drive item size in the same binary units
// inline_max_size accepts.
func formatSize(n int64) string {
	return config.ByteSize(n).String()
}

// formatTime renders a modification time ls-style: clock time within the
// current year, the year otherwise. Items the drive reports without a
// timestamp show "-".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	t = t.Local()
	if t.Year() == nowFunc().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes headers and rows as space-padded columns. Widths are
// counted in runes so names with accented or CJK characters line up.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	measure(headers)

	for _, r := range rows {
		measure(r)
	}

	writeRow(w, headers, widths)

	for _, r := range rows {
		writeRow(w, r, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	var b strings.Builder

	for i, c := range cells {
		if i > 0 {
			b.WriteString("  ")
		}

		b.WriteString(c)

		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)))
		}
	}

	fmt.Fprintln(w, b.String())
}
