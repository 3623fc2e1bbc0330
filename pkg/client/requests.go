package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Portal date-range wire formats. Some read endpoints want timestamps,
// others dates only; both sides are comma-joined into a single field.
const (
	dateTimeLayout = "01/02/2006 15:04:05"
	dateLayout     = "01/02/2006"

	// isoOffsetLayout is used by mutation endpoints: ISO-8601 with a
	// colon-delimited UTC offset.
	isoOffsetLayout = "2006-01-02T15:04:05-07:00"
)

// FormatDateRange renders a portal date-range field value,
// "MM/DD/YYYY HH:MM:SS,MM/DD/YYYY HH:MM:SS" when withTime is set and
// "MM/DD/YYYY,MM/DD/YYYY" otherwise.
func FormatDateRange(start, end time.Time, withTime bool) string {
	layout := dateLayout
	if withTime {
		layout = dateTimeLayout
	}
	return start.Format(layout) + "," + end.Format(layout)
}

// cacheBuster returns the millisecond timestamp the portal's frontend sends
// to defeat intermediary caches.
func cacheBuster() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// SearchQuery builds the query-parameter convention several read endpoints
// expect: a cache-busting timestamp, a JSON-encoded filter, and pagination
// fields.
func SearchQuery(filter any, page, start, limit int, sort string) (url.Values, error) {
	query := url.Values{}
	query.Set("_dc", cacheBuster())

	if filter != nil {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal search filter: %w", err)
		}
		query.Set("filter", string(encoded))
	}

	query.Set("page", strconv.Itoa(page))
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))
	if sort != "" {
		query.Set("sort", sort)
	}

	return query, nil
}
