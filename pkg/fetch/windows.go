// Package fetch provides chunked parallel fetching of date-ranged portal
// data: window partitioning, a bounded worker pool with per-window failure
// isolation, and identifier-keyed deduplication of the merged results.
package fetch

import (
	"time"
)

// Window is a bounded date sub-range. The portal silently truncates or slows
// on very wide ranges, so bulk queries are issued per window.
type Window struct {
	Start time.Time
	End   time.Time
}

// String renders the window for logs.
func (w Window) String() string {
	return w.Start.Format("2006-01-02") + ".." + w.End.Format("2006-01-02")
}

// Days returns the window length in whole days.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// Partition splits [start, end) into consecutive windows of chunkDays days,
// truncating the last window to end. The windows tile the range exactly:
// no gaps, no overlaps, last window's end equals end. An empty or inverted
// range yields no windows.
func Partition(start, end time.Time, chunkDays int) []Window {
	if chunkDays <= 0 {
		chunkDays = 7
	}

	var windows []Window
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, chunkDays)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cur, End: next})
		cur = next
	}
	return windows
}
