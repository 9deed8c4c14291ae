// Package pipeline runs one ingestion: it provisions a fresh index
// generation, streams the corpus into it and moves the alias onto it.
//
// A run is linear. Any failure before cutover leaves the alias where it was
// and the new generation behind as an orphan for `docindex gc`.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docindex/internal/bulk"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/cutover"
	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/ledger"
	"github.com/Aman-CERP/docindex/internal/lock"
	"github.com/Aman-CERP/docindex/internal/provision"
	"github.com/Aman-CERP/docindex/internal/record"
	"github.com/Aman-CERP/docindex/internal/repo"
	"github.com/Aman-CERP/docindex/internal/ui"
	"github.com/Aman-CERP/docindex/internal/walker"
)

// State is the position of a run.
type State string

const (
	StateStart       State = "START"
	StateProvisioned State = "PROVISIONED"
	StateLoaded      State = "LOADED"
	StateCutOver     State = "CUT_OVER"
	StateFailed      State = "FAILED"
)

// Options configures a Pipeline.
type Options struct {
	Alias        string
	Prefix       string
	SuffixLength int

	// Directories are walked beneath the corpus root, in order.
	Directories []string
	// Root overrides corpus root discovery.
	Root string
	// Start is where root discovery begins. Defaults to ".".
	Start string

	Walker walker.Options
	Bulk   bulk.Options
	Mode   cutover.Mode

	// LockDir holds the run lock. Empty disables locking.
	LockDir string
}

// OptionsFromConfig maps the configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := cutover.ParseMode(cfg.Cutover.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Alias:        cfg.Index.Alias,
		Prefix:       cfg.Index.Prefix,
		SuffixLength: cfg.Index.SuffixLength,
		Directories:  cfg.IndexingDirectories,
		Walker: walker.Options{
			Extensions: cfg.Walker.Extensions,
			Exclude:    cfg.Walker.Exclude,
		},
		Bulk: bulk.Options{
			BatchSize:         cfg.Bulk.BatchSize,
			Timeout:           cfg.Bulk.Timeout,
			Workers:           cfg.Bulk.Workers,
			RequestsPerSecond: cfg.Bulk.RequestsPerSecond,
			MaxFailedRecords:  cfg.Bulk.MaxFailedRecords,
		},
		Mode:    mode,
		LockDir: cfg.Engine.DataDir,
	}, nil
}

// Result describes a finished or failed run.
type Result struct {
	RunID    string
	State    State
	Index    string
	Root     string
	Files    int
	Load     *bulk.LoadResult
	Cutover  *cutover.Report
	Duration time.Duration
	Stages   ui.StageTimings
}

// Orphaned reports whether the run left a generation the alias does not reference.
func (r *Result) Orphaned() bool {
	return r.State == StateFailed && r.Index != "" &&
		(r.Cutover == nil || r.Cutover.Phase != cutover.PhaseBound)
}

// Pipeline wires the ingestion stages to one engine.
type Pipeline struct {
	engine   engine.Engine
	opts     Options
	renderer ui.Renderer
	ledger   *ledger.Ledger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRenderer sends progress to r.
func WithRenderer(r ui.Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithLedger records every state transition in l.
func WithLedger(l *ledger.Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// New returns a Pipeline.
func New(e engine.Engine, opts Options, options ...Option) *Pipeline {
	if opts.Start == "" {
		opts.Start = "."
	}
	if opts.Prefix == "" {
		opts.Prefix = provision.DefaultPrefix
	}
	if opts.SuffixLength == 0 {
		opts.SuffixLength = provision.DefaultSuffixLength
	}
	p := &Pipeline{engine: e, opts: opts, renderer: nopRenderer{}}
	for _, o := range options {
		o(p)
	}
	return p
}

// run carries the per-invocation state.
type run struct {
	res    *Result
	ledger *ledger.Run
	start  time.Time
}

// Run executes the pipeline. The result is returned on failure too.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	r := &run{res: &Result{State: StateStart}, start: time.Now()}

	if p.opts.LockDir != "" {
		l := lock.New(p.opts.LockDir)
		if err := l.Acquire(); err != nil {
			r.res.State = StateFailed
			return r.res, err
		}
		defer func() {
			if err := l.Release(); err != nil {
				slog.Warn("lock_release_failed", slog.String("error", err.Error()))
			}
		}()
	}

	p.begin(ctx, r)
	slog.Info("run_started",
		slog.String("run_id", r.res.RunID),
		slog.String("alias", p.opts.Alias),
		slog.String("engine", p.engine.Name()),
		slog.String("mode", string(p.opts.Mode)))

	if err := p.provision(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}
	if err := p.load(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}
	if err := p.cutover(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}

	r.res.Duration = time.Since(r.start)
	p.transition(ctx, r, StateCutOver, "")
	slog.Info("run_complete",
		slog.String("run_id", r.res.RunID),
		slog.String("index", r.res.Index),
		slog.Int("files", r.res.Files),
		slog.Int("records", r.res.Load.Written),
		slog.Duration("duration", r.res.Duration))

	p.renderer.Complete(ui.CompletionStats{
		Index:    r.res.Index,
		Alias:    p.opts.Alias,
		Files:    r.res.Files,
		Records:  r.res.Load.Written,
		Failed:   len(r.res.Load.Failed),
		Batches:  r.res.Load.Batches,
		Duration: r.res.Duration,
		Before:   r.res.Cutover.Before,
		After:    r.res.Cutover.After,
		Stages:   r.res.Stages,
	})
	return r.res, nil
}

func (p *Pipeline) provision(ctx context.Context, r *run) error {
	started := time.Now()
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageProvision,
		Message: fmt.Sprintf("creating index %s_*", p.opts.Prefix),
	})

	prov := provision.New(p.engine,
		provision.WithPrefix(p.opts.Prefix),
		provision.WithSuffixLength(p.opts.SuffixLength))
	gen, err := prov.Provision(ctx)
	if err != nil {
		return err
	}

	r.res.Index = gen.Name
	r.res.Stages.Provision = time.Since(started)
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageProvision,
		Message: "created " + gen.Name,
	})
	p.transition(ctx, r, StateProvisioned, "")
	return nil
}

// load walks the corpus and streams it into the new generation. Walking and
// loading overlap: each file is read when the loader pulls it.
func (p *Pipeline) load(ctx context.Context, r *run) error {
	started := time.Now()

	root, err := repo.Resolve(p.opts.Root, p.opts.Start)
	if err != nil {
		return err
	}

	w, err := walker.New(p.opts.Walker)
	if err != nil {
		return err
	}

	walkCtx, cancelWalk := context.WithCancel(ctx)
	defer cancelWalk()

	absRoot, files, err := w.Walk(walkCtx, root, p.opts.Directories)
	if err != nil {
		return err
	}
	r.res.Root = absRoot
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScan,
		Message: fmt.Sprintf("walking %v under %s", p.opts.Directories, absRoot),
	})

	loader := bulk.NewLoader(p.engine, p.opts.Bulk, bulk.WithObserver(func(b bulk.BatchReport) {
		p.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageLoad,
			Current: b.Records,
			Message: fmt.Sprintf("batch %d: %d records in %s", b.Number, b.Size, b.Took.Round(time.Millisecond)),
		})
	}))

	records := record.NewTransformer().Stream(walkCtx, files, absRoot)
	res, loadErr := loader.Load(walkCtx, records, r.res.Index)
	cancelWalk()

	stats := w.Stats()
	r.res.Load = res
	r.res.Files = res.Records
	r.res.Stages.Load = time.Since(started)

	for _, item := range res.Failed {
		p.renderer.AddError(ui.ErrorEvent{
			File: item.URL,
			Err:  fmt.Errorf("%s: %s", item.ErrorType, item.Reason),
		})
	}

	slog.Info("walk_complete",
		slog.String("root", absRoot),
		slog.Int("eligible", stats.Eligible),
		slog.Int("ineligible", stats.Ineligible),
		slog.Int("excluded", stats.Excluded))
	slog.Info("bulk_load_result",
		slog.String("index", res.Index),
		slog.Int("records", res.Records),
		slog.Int("written", res.Written),
		slog.Int("failed", len(res.Failed)),
		slog.Int("batches", res.Batches),
		slog.Duration("took", res.Took))

	if loadErr != nil {
		return loadErr
	}
	p.transition(ctx, r, StateLoaded, "")
	return nil
}

func (p *Pipeline) cutover(ctx context.Context, r *run) error {
	started := time.Now()
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageCutover,
		Message: fmt.Sprintf("moving alias %s to %s (%s)", p.opts.Alias, r.res.Index, p.opts.Mode),
	})

	c := cutover.New(p.engine, cutover.Options{
		Alias:  p.opts.Alias,
		Prefix: p.opts.Prefix,
		Mode:   p.opts.Mode,
	})
	report, err := c.Run(ctx, r.res.Index)
	r.res.Cutover = report
	r.res.Stages.Cutover = time.Since(started)
	if err != nil {
		return err
	}

	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageCutover,
		Message: fmt.Sprintf("alias %s: %v -> %v", p.opts.Alias, report.Before, report.After),
	})
	return nil
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) (*Result, error) {
	reached := r.res.State
	r.res.Duration = time.Since(r.start)
	p.transition(ctx, r, StateFailed, err.Error())

	attrs := []any{
		slog.String("run_id", r.res.RunID),
		slog.String("state_reached", string(reached)),
		slog.String("index", r.res.Index),
	}
	slog.Error("run_failed", append(attrs, docerrors.LogAttrs(err)...)...)
	if r.res.Orphaned() {
		slog.Warn("generation_orphaned",
			slog.String("index", r.res.Index),
			slog.String("alias", p.opts.Alias))
	}

	p.renderer.AddError(ui.ErrorEvent{Err: err})
	return r.res, err
}

// Ledger writes are best effort and survive cancellation of the run.

func (p *Pipeline) begin(ctx context.Context, r *run) {
	if p.ledger == nil {
		return
	}
	entry, err := p.ledger.Begin(context.WithoutCancel(ctx), p.opts.Alias, string(StateStart))
	if err != nil {
		slog.Warn("ledger_write_failed", slog.String("error", err.Error()))
		return
	}
	r.ledger = entry
	r.res.RunID = entry.ID
}

func (p *Pipeline) transition(ctx context.Context, r *run, state State, errText string) {
	r.res.State = state
	if r.ledger == nil {
		return
	}

	entry := r.ledger
	entry.State = string(state)
	entry.Index = r.res.Index
	entry.Error = errText
	if res := r.res.Load; res != nil {
		entry.Files = r.res.Files
		entry.Records = res.Written
		entry.Failed = len(res.Failed)
	}
	if rep := r.res.Cutover; rep != nil {
		entry.BindingsBefore = rep.Before
		entry.BindingsAfter = rep.After
	}
	if state == StateCutOver || state == StateFailed {
		entry.FinishedAt = time.Now()
	}

	if err := p.ledger.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("ledger_write_failed",
			slog.String("run_id", entry.ID),
			slog.String("state", entry.State),
			slog.String("error", err.Error()))
	}
}

type nopRenderer struct{}

func (nopRenderer) Start(context.Context) error     { return nil }
func (nopRenderer) UpdateProgress(ui.ProgressEvent) {}
func (nopRenderer) AddError(ui.ErrorEvent)          {}
func (nopRenderer) Complete(ui.CompletionStats)     {}
func (nopRenderer) Stop() error                     { return nil }
