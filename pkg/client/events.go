package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/frontline-tools/portal-client/pkg/fetch"
)

// Read endpoints for scheduled-event data.
const (
	scheduledEventsPath = "/events/scheduled"
	absencesPath        = "/absences/list"
	vacanciesPath       = "/vacancies/list"
)

// FetchWindow retrieves the scheduled events in [start, end). The endpoint
// expects a multipart date-range field with timestamps. Implements
// fetch.Source.
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]fetch.Record, error) {
	resp, err := c.Execute(ctx, http.MethodPost, scheduledEventsPath, RequestOptions{
		Multipart: map[string]string{
			"dateRange": FormatDateRange(start, end, true),
		},
	})
	if err != nil {
		return nil, err
	}

	records, err := fetch.ParseRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scheduled events: %w", err)
	}
	return records, nil
}

// FetchAbsences retrieves the full absence list. Not windowed; the endpoint
// uses the query-parameter search convention.
func (c *Client) FetchAbsences(ctx context.Context) ([]fetch.Record, error) {
	query, err := SearchQuery(nil, 1, 0, 1000, "startDate")
	if err != nil {
		return nil, err
	}

	resp, err := c.Execute(ctx, http.MethodGet, absencesPath, RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}

	records, err := fetch.ParseRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("absences: %w", err)
	}
	return records, nil
}

// FetchVacancies retrieves the full vacancy list, the second supplementary
// endpoint.
func (c *Client) FetchVacancies(ctx context.Context) ([]fetch.Record, error) {
	query, err := SearchQuery(nil, 1, 0, 1000, "startDate")
	if err != nil {
		return nil, err
	}

	resp, err := c.Execute(ctx, http.MethodGet, vacanciesPath, RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}

	records, err := fetch.ParseRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vacancies: %w", err)
	}
	return records, nil
}

// BulkFetch retrieves all scheduled events in [start, end) via the chunked
// parallel fetcher, merged with the absence and vacancy lists and
// deduplicated. progress may be nil.
func (c *Client) BulkFetch(ctx context.Context, start, end time.Time, cfg fetch.Config, progress fetch.ProgressFunc) (*fetch.Result, error) {
	fetcher := fetch.New(c, []fetch.SupplementaryFunc{
		c.FetchAbsences,
		c.FetchVacancies,
	}, cfg)

	return fetcher.FetchRange(ctx, start, end, progress)
}
