package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress for CI logs and pipes.
// A separator line marks every stage change.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	stage   Stage
	started bool
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enter(event.Stage)

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// enter prints the separator when the stage changes. Must hold mu.
func (r *PlainRenderer) enter(stage Stage) {
	if r.started && stage == r.stage {
		return
	}
	_, _ = fmt.Fprintln(r.out, Separator)
	r.stage = stage
	r.started = true
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enter(StageComplete)

	_, _ = fmt.Fprintf(r.out, "Complete: %d records from %d files written to %s in %s",
		stats.Records, stats.Files, stats.Index, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d rejected, %d warnings)", stats.Failed, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Alias != "" {
		_, _ = fmt.Fprintf(r.out, "Alias %s: [%s] -> [%s]\n",
			stats.Alias, strings.Join(stats.Before, ", "), strings.Join(stats.After, ", "))
	}

	if stats.Stages.Load > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Provision: %s\n", stats.Stages.Provision.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Load:      %s (%d batches)\n", stats.Stages.Load.Round(time.Millisecond), stats.Batches)
		_, _ = fmt.Fprintf(r.out, "  Cutover:   %s\n", stats.Stages.Cutover.Round(time.Millisecond))
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
