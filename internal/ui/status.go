package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// IndexStatus describes one generation of the index.
type IndexStatus struct {
	Name      string `json:"name"`
	DocCount  int64  `json:"doc_count"`
	SizeBytes int64  `json:"size_bytes"`
	Health    string `json:"health,omitempty"`
	Bound     bool   `json:"bound"`
}

// RunSummary is the last ledger entry shown by status.
type RunSummary struct {
	ID        string    `json:"id"`
	Index     string    `json:"index"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Records   int       `json:"records"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
}

// StatusInfo is the state of an alias and its generations.
type StatusInfo struct {
	Alias       string        `json:"alias"`
	Backend     string        `json:"backend"`
	Prefix      string        `json:"prefix"`
	Bound       []string      `json:"bound"`
	Generations []IndexStatus `json:"generations"`
	LastRun     *RunSummary   `json:"last_run,omitempty"`
}

// Orphans counts generations the alias does not resolve to.
func (s StatusInfo) Orphans() int {
	n := 0
	for _, g := range s.Generations {
		if !g.Bound {
			n++
		}
	}
	return n
}

// StatusRenderer displays alias status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Alias Status: "+info.Alias))

	_, _ = fmt.Fprintf(r.out, "  Backend:  %s\n", info.Backend)
	bound := "(none)"
	if len(info.Bound) > 0 {
		bound = strings.Join(info.Bound, ", ")
	}
	_, _ = fmt.Fprintf(r.out, "  Bound to: %s\n", r.renderBound(bound, len(info.Bound)))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Generations (%s*):\n", info.Prefix)
	if len(info.Generations) == 0 {
		_, _ = fmt.Fprintln(r.out, "    none")
	}
	for _, g := range info.Generations {
		marker := " "
		if g.Bound {
			marker = r.styles.Success.Render("*")
		}
		_, _ = fmt.Fprintf(r.out, "  %s %-32s %8d docs  %10s\n", marker, g.Name, g.DocCount, FormatBytes(g.SizeBytes))
	}
	if n := info.Orphans(); n > 0 {
		_, _ = fmt.Fprintf(r.out, "\n  %s\n", r.styles.Warning.Render(fmt.Sprintf("%d orphaned generation(s); run `docindex gc` to list them", n)))
	}

	if run := info.LastRun; run != nil {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Last run:")
		_, _ = fmt.Fprintf(r.out, "    ID:      %s\n", run.ID)
		_, _ = fmt.Fprintf(r.out, "    State:   %s\n", r.renderState(run.State))
		_, _ = fmt.Fprintf(r.out, "    Started: %s\n", formatTime(run.StartedAt))
		_, _ = fmt.Fprintf(r.out, "    Records: %d (%d rejected)\n", run.Records, run.Failed)
		if run.Error != "" {
			_, _ = fmt.Fprintf(r.out, "    Error:   %s\n", r.styles.Error.Render(run.Error))
		}
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderBound(text string, n int) string {
	switch n {
	case 0:
		return r.styles.Warning.Render(text)
	case 1:
		return r.styles.Success.Render(text)
	default:
		return r.styles.Error.Render(text)
	}
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "CUT_OVER":
		return r.styles.Success.Render(state)
	case "FAILED":
		return r.styles.Error.Render(state)
	default:
		return r.styles.Warning.Render(state)
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
