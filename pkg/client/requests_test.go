package client

import (
	"strconv"
	"testing"
	"time"
)

func TestFormatDateRange(t *testing.T) {
	start := time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC)
	end := time.Date(2025, 2, 14, 17, 0, 0, 0, time.UTC)

	withTime := FormatDateRange(start, end, true)
	if withTime != "01/05/2025 08:30:00,02/14/2025 17:00:00" {
		t.Errorf("FormatDateRange(withTime) = %q", withTime)
	}

	dateOnly := FormatDateRange(start, end, false)
	if dateOnly != "01/05/2025,02/14/2025" {
		t.Errorf("FormatDateRange(dateOnly) = %q", dateOnly)
	}
}

func TestSearchQuery(t *testing.T) {
	filter := map[string]any{"status": "open"}

	query, err := SearchQuery(filter, 2, 25, 50, "startDate")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}

	if query.Get("page") != "2" || query.Get("start") != "25" || query.Get("limit") != "50" {
		t.Errorf("Pagination fields wrong: %v", query)
	}
	if query.Get("sort") != "startDate" {
		t.Errorf("sort = %q", query.Get("sort"))
	}
	if query.Get("filter") != `{"status":"open"}` {
		t.Errorf("filter = %q", query.Get("filter"))
	}

	// Cache buster must be a plausible millisecond timestamp.
	dc, err := strconv.ParseInt(query.Get("_dc"), 10, 64)
	if err != nil {
		t.Fatalf("_dc is not numeric: %q", query.Get("_dc"))
	}
	now := time.Now().UnixMilli()
	if dc < now-60_000 || dc > now+60_000 {
		t.Errorf("_dc = %d, not near now (%d)", dc, now)
	}
}

func TestSearchQueryNoFilterNoSort(t *testing.T) {
	query, err := SearchQuery(nil, 1, 0, 100, "")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}
	if query.Has("filter") {
		t.Error("filter should be absent when nil")
	}
	if query.Has("sort") {
		t.Error("sort should be absent when empty")
	}
}

func TestISOOffsetLayoutKeepsColon(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	if got := ts.Format(isoOffsetLayout); got != "2025-03-10T09:00:00-05:00" {
		t.Errorf("isoOffsetLayout rendered %q", got)
	}
}
