package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for bulk fetch operations.
var (
	fetchWindowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_fetch_windows_total",
		Help: "Total fetch windows by outcome",
	}, []string{"outcome"})

	fetchRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_fetch_records_total",
		Help: "Total records retrieved by bulk fetches, before dedup",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "portal_fetch_duration_seconds",
		Help:    "Bulk fetch duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)

// Source fetches one window's worth of records; pkg/client's authenticated
// executor is the production implementation.
type Source interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]Record, error)
}

// SupplementaryFunc fetches one supplementary endpoint in full. These
// endpoints are not windowed; their results are concatenated into the
// aggregate.
type SupplementaryFunc func(ctx context.Context) ([]Record, error)

// ProgressFunc receives coarse-grained progress as windows complete. The
// reported percentage is completed/total and is monotonically non-decreasing;
// failed windows count as completed.
type ProgressFunc func(percent float64)

// Config holds bulk fetch configuration.
type Config struct {
	// ChunkDays is the window width in days (default 7).
	ChunkDays int

	// MaxWorkers bounds concurrent window fetches (default 10).
	// Kept below the portal's observed rate-limit threshold.
	MaxWorkers int

	// SupplementaryWorkers bounds concurrent supplementary fetches
	// (default 2).
	SupplementaryWorkers int

	// Timeout per window fetch.
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for the portal.
func DefaultConfig() Config {
	return Config{
		ChunkDays:            7,
		MaxWorkers:           10,
		SupplementaryWorkers: 2,
		Timeout:              30 * time.Second,
	}
}

// PartialFetchError records one window's failure during a bulk fetch. It is
// carried in the Result, never escalated: bulk fetch is best-effort over
// windows.
type PartialFetchError struct {
	Window Window
	Err    error
}

// Error implements the error interface.
func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("fetch window %s: %v", e.Window, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PartialFetchError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one bulk fetch. CompletedWindows/TotalWindows let
// callers detect a degraded (partial) result without parsing logs.
type Result struct {
	// Records is the deduplicated union of all windows and supplementary
	// endpoints.
	Records []Record

	TotalWindows      int
	CompletedWindows  int
	FailedWindows     int
	DuplicatesRemoved int

	// Errors holds the isolated per-window failures, if any.
	Errors []*PartialFetchError
}

// Degraded reports whether any window failed.
func (r *Result) Degraded() bool {
	return r.FailedWindows > 0
}

// Fetcher runs chunked parallel fetches against a Source.
type Fetcher struct {
	source        Source
	supplementary []SupplementaryFunc
	config        Config
	logger        zerolog.Logger
}

// New creates a fetcher. supplementary may be nil.
func New(source Source, supplementary []SupplementaryFunc, cfg Config) *Fetcher {
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = 7
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.SupplementaryWorkers <= 0 {
		cfg.SupplementaryWorkers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Fetcher{
		source:        source,
		supplementary: supplementary,
		config:        cfg,
		logger:        log.With().Str("component", "portal-fetch").Logger(),
	}
}

// windowResult is one worker's output.
type windowResult struct {
	window  Window
	records []Record
	err     error
}

// FetchRange fetches [start, end) in parallel windows plus the supplementary
// endpoints, and returns the deduplicated union. A window's failure is
// isolated: it contributes zero records and is recorded in Result.Errors,
// but never aborts sibling windows. progress may be nil.
func (f *Fetcher) FetchRange(ctx context.Context, start, end time.Time, progress ProgressFunc) (*Result, error) {
	began := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(began).Seconds())
	}()

	windows := Partition(start, end, f.config.ChunkDays)
	total := len(windows)

	f.logger.Info().
		Str("range", Window{Start: start, End: end}.String()).
		Int("windows", total).
		Int("workers", f.config.MaxWorkers).
		Msg("Starting bulk fetch")

	result := &Result{TotalWindows: total}
	var all []Record

	jobs := make(chan Window, total)
	results := make(chan windowResult, total)

	for _, w := range windows {
		jobs <- w
	}
	close(jobs)

	var wg sync.WaitGroup
	workers := f.config.MaxWorkers
	if workers > total {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.worker(ctx, jobs, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	finished := 0
	for res := range results {
		finished++
		if res.err != nil {
			fetchWindowsTotal.WithLabelValues("failed").Inc()
			result.FailedWindows++
			result.Errors = append(result.Errors, &PartialFetchError{Window: res.window, Err: res.err})
			f.logger.Warn().
				Err(res.err).
				Str("window", res.window.String()).
				Msg("Window fetch failed")
		} else {
			fetchWindowsTotal.WithLabelValues("ok").Inc()
			result.CompletedWindows++
			all = append(all, res.records...)
		}

		if progress != nil && total > 0 {
			progress(float64(finished) / float64(total) * 100)
		}
	}

	all = append(all, f.fetchSupplementary(ctx)...)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("bulk fetch interrupted: %w", err)
	}

	fetchRecordsTotal.Add(float64(len(all)))

	agg := Dedupe(all)
	result.Records = agg.Records
	result.DuplicatesRemoved = agg.DuplicatesRemoved

	f.logger.Info().
		Int("completed", result.CompletedWindows).
		Int("failed", result.FailedWindows).
		Int("total", result.TotalWindows).
		Int("records", len(result.Records)).
		Int("duplicates_removed", result.DuplicatesRemoved).
		Dur("duration", time.Since(began)).
		Msg("Bulk fetch complete")

	return result, nil
}

// worker drains the window queue. Failures are reported, never fatal.
func (f *Fetcher) worker(ctx context.Context, jobs <-chan Window, results chan<- windowResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for w := range jobs {
		select {
		case <-ctx.Done():
			results <- windowResult{window: w, err: ctx.Err()}
			continue
		default:
		}

		windowCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		records, err := f.source.FetchWindow(windowCtx, w.Start, w.End)
		cancel()

		results <- windowResult{window: w, records: records, err: err}
	}
}

// fetchSupplementary fans out to the supplementary endpoints with its own
// narrow pool. Failures are logged and isolated, like windows.
func (f *Fetcher) fetchSupplementary(ctx context.Context) []Record {
	if len(f.supplementary) == 0 {
		return nil
	}

	type suppResult struct {
		index   int
		records []Record
		err     error
	}

	jobs := make(chan int, len(f.supplementary))
	results := make(chan suppResult, len(f.supplementary))

	for i := range f.supplementary {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	workers := f.config.SupplementaryWorkers
	if workers > len(f.supplementary) {
		workers = len(f.supplementary)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fetchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
				records, err := f.supplementary[idx](fetchCtx)
				cancel()
				results <- suppResult{index: idx, records: records, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Record
	for res := range results {
		if res.err != nil {
			f.logger.Warn().
				Err(res.err).
				Int("endpoint", res.index).
				Msg("Supplementary fetch failed")
			continue
		}
		all = append(all, res.records...)
	}
	return all
}
