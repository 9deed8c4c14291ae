package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/lock"
	"github.com/Aman-CERP/docindex/internal/repo"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	cfg     *config.Config
	engine  engine.Engine
	root    string
	start   string
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithEngine sets the engine probed by the engine and alias checks.
func WithEngine(e engine.Engine) Option {
	return func(c *Checker) {
		c.engine = e
	}
}

// WithRoot overrides corpus root discovery, like `run --root`.
func WithRoot(root string) Option {
	return func(c *Checker) {
		c.root = root
	}
}

// WithStart sets the directory root discovery starts from (default: cwd).
func WithStart(dir string) Option {
	return func(c *Checker) {
		c.start = dir
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker for cfg.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		start:  ".",
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
// The data directory is checked before the checks that write into it.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	local := c.cfg.Engine.Backend == config.BackendBleve

	return []CheckResult{
		c.CheckCorpus(),
		c.CheckDataDir(),
		c.CheckDiskSpace(c.cfg.Engine.DataDir, local),
		c.CheckFileDescriptors(local),
		c.CheckLock(),
		c.CheckEngine(ctx),
		c.CheckAlias(ctx),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "degraded" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	status := "ready"
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			status = "degraded"
		}
	}
	return status
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "docindex preflight")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var problems []string
	for _, r := range results {
		if r.IsCritical() {
			problems = append(problems, r.Name+": "+r.Message)
		}
	}
	if len(problems) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(problems))
		for _, p := range problems {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", p)
		}
	}
}

// CheckCorpus resolves the corpus root and verifies every indexing directory.
func (c *Checker) CheckCorpus() CheckResult {
	result := CheckResult{Name: "corpus", Required: true}

	root, err := repo.Resolve(c.root, c.start)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "pass --root or run inside the documentation repository"
		return result
	}

	var missing []string
	for _, dir := range c.cfg.IndexingDirectories {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
	}
	if len(missing) > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("missing indexing directories under %s: %s", root, strings.Join(missing, ", "))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d directories)", root, len(c.cfg.IndexingDirectories))
	return result
}

// CheckDataDir checks that the data directory exists or can be created, and is writable.
func (c *Checker) CheckDataDir() CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}
	dir := c.cfg.Engine.DataDir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".docindex-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckLock verifies no other run holds the run lock.
func (c *Checker) CheckLock() CheckResult {
	result := CheckResult{Name: "run_lock", Required: true}

	l := lock.New(c.cfg.Engine.DataDir)
	if err := l.Acquire(); err != nil {
		result.Status = StatusFail
		if docerrors.GetCode(err) == docerrors.ErrCodeLockHeld {
			result.Message = "another ingestion run is in progress"
			result.Details = l.Path()
		} else {
			result.Message = err.Error()
		}
		return result
	}
	_ = l.Release()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// CheckEngine lists the generations matching the prefix.
func (c *Checker) CheckEngine(ctx context.Context) CheckResult {
	result := CheckResult{Name: "engine", Required: true}

	if c.engine == nil {
		result.Status = StatusFail
		result.Message = "no engine configured"
		return result
	}

	indices, err := c.engine.ListIndices(ctx, c.cfg.Index.Prefix+"*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s unreachable", c.engine.Name())
		result.Details = err.Error()
		if e, ok := docerrors.As(err); ok && e.Suggestion != "" {
			result.Details += "; " + e.Suggestion
		}
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s reachable, %d generation(s)", c.engine.Name(), len(indices))
	return result
}

// CheckAlias reports the current alias binding. An unbound alias is normal
// before the first run; more than one binding is left over from an
// interrupted cutover.
func (c *Checker) CheckAlias(ctx context.Context) CheckResult {
	result := CheckResult{Name: "alias"}
	alias := c.cfg.Index.Alias

	if c.engine == nil {
		result.Status = StatusWarn
		result.Message = "skipped, no engine"
		return result
	}

	bound, err := c.engine.GetAlias(ctx, alias)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read alias %s", alias)
		result.Details = err.Error()
		return result
	}

	switch len(bound) {
	case 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s is not bound", alias)
		result.Details = "the next run binds it"
	case 1:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s -> %s", alias, bound[0])
	default:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s is bound to %d indices: %s", alias, len(bound), strings.Join(bound, ", "))
		result.Details = "the next run rebinds it to a single generation"
	}
	return result
}
