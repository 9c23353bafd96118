// Package report renders availability data for people: terminal text, PNG charts and workbooks.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"uptimedock/app/internal/availability"
)

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// ColorEnabled reports whether w is a terminal that should get ANSI colour.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WriteSummary prints s as an aligned key/value block.
func WriteSummary(w io.Writer, name, url string, s availability.Summary, color bool) error {
	return writeSummary(w, name, url, s, color, time.Now())
}

func writeSummary(w io.Writer, name, url string, s availability.Summary, color bool, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s\t%s\n", k, v) }

	title := url
	if name != "" && name != url {
		title = fmt.Sprintf("%s (%s)", name, url)
	}
	row("Target", title)

	if !s.HasData() {
		row("Status", "no data")
		return tw.Flush()
	}

	uptime := fmt.Sprintf("%.1f%%", s.UptimePercent)
	if color {
		c := ansiGreen
		if s.DownChecks > 0 {
			c = ansiRed
		}
		uptime = c + uptime + ansiReset
	}

	row("Uptime", uptime)
	row("Checks", fmt.Sprintf("%s (%s down)", humanize.Comma(int64(s.TotalChecks)), humanize.Comma(int64(s.DownChecks))))
	row("Mean status", fmt.Sprintf("%d", s.MeanStatusCode))
	row("Outages", humanize.Comma(int64(s.Outages)))
	row("Total downtime", Duration(s.TotalDowntime))
	row("Longest downtime", Duration(s.LongestDowntime))
	if s.FirstCheck != nil {
		row("First check", stamp(*s.FirstCheck, now))
	}
	if s.LastDown != nil {
		row("Last down", stamp(*s.LastDown, now))
	} else {
		row("Last down", "never")
	}
	return tw.Flush()
}

// Duration renders d exactly with a humanized hint, e.g. "1h30m0s (1 hour)".
func Duration(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	base := time.Unix(0, 0)
	rel := strings.TrimSpace(humanize.RelTime(base, base.Add(d), "", ""))
	return fmt.Sprintf("%s (%s)", d.Round(time.Second), rel)
}

func stamp(t, now time.Time) string {
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.RFC3339), humanize.RelTime(t, now, "ago", "from now"))
}
