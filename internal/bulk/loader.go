// Package bulk loads record streams into an index in fixed-size batches.
//
// Batches are one bulk request each, submitted in stream order. A batch whose
// request fails as a whole aborts the load; batches already written stay
// written. Per-record failures inside a successful request are collected
// and compared against a tolerance once the stream is exhausted.
package bulk

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/record"
)

// Defaults match the request shape the cluster was sized for.
const (
	DefaultBatchSize = 5
	DefaultTimeout   = 20 * time.Second
	DefaultWorkers   = 1
)

// Options configures a Loader.
type Options struct {
	// BatchSize is the number of records per request.
	BatchSize int
	// Timeout bounds each bulk request.
	Timeout time.Duration
	// Workers is the number of requests in flight. 1 keeps strict order.
	Workers int
	// RequestsPerSecond throttles submissions; 0 disables throttling.
	RequestsPerSecond float64
	// MaxFailedRecords is how many per-record failures a load tolerates.
	MaxFailedRecords int
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Workers:   DefaultWorkers,
	}
}

// ItemOutcome is the engine's answer for one record. ErrorType is empty for
// written records.
type ItemOutcome struct {
	URL       string
	ID        string
	Batch     int
	Status    int
	ErrorType string
	Reason    string
}

// OK reports whether the record was written.
func (o ItemOutcome) OK() bool { return o.ErrorType == "" && o.Status >= 200 && o.Status < 300 }

// BatchReport is emitted after every successful request.
type BatchReport struct {
	Number  int
	Size    int
	Failed  int
	Took    time.Duration
	Records int // records acknowledged so far, across batches
}

// LoadResult summarises a load. On abort it holds what was written before
// the failing batch.
type LoadResult struct {
	Index   string
	Records int
	Written int
	Batches int
	// Outcomes has one entry per acknowledged record, in stream order.
	Outcomes []ItemOutcome
	// Failed is the subset of Outcomes the engine rejected.
	Failed []ItemOutcome
	Took   time.Duration
}

// Loader writes records to an engine.
type Loader struct {
	engine   engine.Engine
	opts     Options
	limiter  *rate.Limiter
	observer func(BatchReport)
}

// Option configures a Loader.
type Option func(*Loader)

// WithObserver registers fn to receive a report after each batch.
// fn may be called from several goroutines when Workers > 1.
func WithObserver(fn func(BatchReport)) Option {
	return func(l *Loader) { l.observer = fn }
}

// NewLoader returns a Loader. Zero option fields take their defaults.
func NewLoader(e engine.Engine, opts Options, options ...Option) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxFailedRecords < 0 {
		opts.MaxFailedRecords = 0
	}

	l := &Loader{engine: e, opts: opts}
	if opts.RequestsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// Options returns the effective options.
func (l *Loader) Options() Options { return l.opts }

// Load consumes records and writes them to index. It returns the result even
// when it returns an error, so callers can report partial progress.
func (l *Loader) Load(ctx context.Context, records iter.Seq2[*record.Record, error], index string) (*LoadResult, error) {
	start := time.Now()
	res := &LoadResult{Index: index}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)

	batches := 0
	submit := func(recs []*record.Record) error {
		if l.limiter != nil {
			if err := l.limiter.Wait(gctx); err != nil {
				return err
			}
		}
		batches++
		number := batches
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return l.send(gctx, index, number, recs, res, &mu)
		})
		return nil
	}

	var sourceErr error
	pending := make([]*record.Record, 0, l.opts.BatchSize)
	for rec, err := range records {
		if err != nil {
			sourceErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		pending = append(pending, rec)
		mu.Lock()
		res.Records++
		mu.Unlock()
		if len(pending) == l.opts.BatchSize {
			if err := submit(pending); err != nil {
				break
			}
			pending = make([]*record.Record, 0, l.opts.BatchSize)
		}
	}
	if sourceErr == nil && gctx.Err() == nil && len(pending) > 0 {
		_ = submit(pending)
	}

	sendErr := g.Wait()
	res.Took = time.Since(start)
	sortOutcomes(res.Outcomes)
	sortOutcomes(res.Failed)

	switch {
	case sendErr != nil:
		return res, sendErr
	case ctx.Err() != nil:
		return res, engine.Classify("bulk load", ctx.Err(), docerrors.ErrCodeBulkFailed)
	case sourceErr != nil:
		slog.Error("record_stream_failed",
			slog.String("index", index),
			slog.Int("records", res.Records),
			slog.String("error", sourceErr.Error()))
		if _, ok := docerrors.As(sourceErr); ok {
			return res, sourceErr
		}
		return res, docerrors.New(docerrors.ErrCodeBulkFailed, "record stream failed", sourceErr)
	}

	if len(res.Failed) > l.opts.MaxFailedRecords {
		first := res.Failed[0]
		return res, docerrors.New(docerrors.ErrCodePartialLoad,
			fmt.Sprintf("%d of %d records were rejected", len(res.Failed), res.Records), nil).
			WithDetail("index", index).
			WithDetail("failed", strconv.Itoa(len(res.Failed))).
			WithDetail("first_url", first.URL).
			WithDetail("first_reason", first.ErrorType+": "+first.Reason).
			WithSuggestion("inspect the listed records; the alias was not moved")
	}
	return res, nil
}

func (l *Loader) send(ctx context.Context, index string, number int, recs []*record.Record, res *LoadResult, mu *sync.Mutex) error {
	docs := make([]any, len(recs))
	for i, rec := range recs {
		docs[i] = rec
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := l.engine.Bulk(reqCtx, index, docs)
	took := time.Since(start)
	if err == nil && len(resp.Items) != len(recs) {
		err = fmt.Errorf("engine acknowledged %d of %d documents", len(resp.Items), len(recs))
	}
	if err != nil {
		slog.Error("bulk_batch_failed",
			slog.String("index", index),
			slog.Int("batch", number),
			slog.Int("size", len(recs)),
			slog.String("first_url", recs[0].URL),
			slog.Duration("took", took),
			slog.String("error", err.Error()))

		wrapped := docerrors.New(docerrors.ErrCodeBulkFailed,
			fmt.Sprintf("bulk batch %d failed", number), err).
			WithDetail("index", index).
			WithDetail("batch", strconv.Itoa(number)).
			WithDetail("first_url", recs[0].URL)
		if code := docerrors.GetCode(err); code != "" {
			wrapped.WithDetail("cause_code", code)
		}
		return wrapped
	}

	failed := 0
	mu.Lock()
	for i, item := range resp.Items {
		outcome := ItemOutcome{
			URL:       recs[i].URL,
			ID:        item.ID,
			Batch:     number,
			Status:    item.Status,
			ErrorType: item.ErrorType,
			Reason:    item.Reason,
		}
		res.Outcomes = append(res.Outcomes, outcome)
		if item.OK() {
			res.Written++
			continue
		}
		failed++
		res.Failed = append(res.Failed, outcome)
	}
	res.Batches++
	report := BatchReport{Number: number, Size: len(recs), Failed: failed, Took: took, Records: len(res.Outcomes)}
	mu.Unlock()

	if failed > 0 {
		slog.Warn("bulk_records_rejected",
			slog.String("index", index),
			slog.Int("batch", number),
			slog.Int("failed", failed))
	}
	slog.Debug("bulk_batch_complete",
		slog.String("index", index),
		slog.Int("batch", number),
		slog.Int("size", len(recs)),
		slog.Duration("took", took))

	if l.observer != nil {
		l.observer(report)
	}
	return nil
}

// sortOutcomes restores stream order after concurrent batches. Items within
// a batch are already in request order.
func sortOutcomes(outcomes []ItemOutcome) {
	slices.SortStableFunc(outcomes, func(a, b ItemOutcome) int { return a.Batch - b.Batch })
}

