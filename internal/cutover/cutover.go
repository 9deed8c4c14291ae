// Package cutover moves a stable alias from the previous index generation(s)
// to a freshly loaded one.
//
// A Cutover is a one-shot protocol object. It records the alias bindings it
// observed before and after the switch and the phase it reached, so a failed
// switch can be diagnosed from its Report alone.
package cutover

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Mode selects how the alias is moved.
type Mode string

const (
	// ModeTwoStep unbinds the old generations, then binds the new one in a
	// separate request. The alias resolves to nothing between the two.
	ModeTwoStep Mode = "two-step"
	// ModeAtomic sends removal and binding as one alias update.
	ModeAtomic Mode = "atomic"
)

// ParseMode validates a mode name. Empty means ModeTwoStep.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeTwoStep:
		return ModeTwoStep, nil
	case ModeAtomic:
		return ModeAtomic, nil
	}
	return "", docerrors.ValidationError(fmt.Sprintf("unknown cutover mode %q (want two-step or atomic)", s), nil)
}

// Phase is the protocol position.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseInspected Phase = "inspected"
	PhaseUnbound   Phase = "unbound"
	PhaseBound     Phase = "bound"
	PhaseFailed    Phase = "failed"
)

// Options configures a Cutover.
type Options struct {
	Alias string
	// Prefix is the generation name prefix; old generations are matched by
	// Prefix + "*".
	Prefix string
	Mode   Mode
}

// Report is what the cutover observed.
type Report struct {
	Alias    string
	NewIndex string
	Mode     Mode
	Before   []string
	After    []string
	// Phase is the last phase reached. On failure it is the phase the
	// alias was left in, not PhaseFailed.
	Phase Phase
	// Unbound reports whether an unbind was issued.
	Unbound bool
}

// Cutover performs one alias switch.
type Cutover struct {
	engine engine.Engine
	opts   Options

	phase    Phase
	stable   Phase
	before   []string
	after    []string
	newIndex string
	unbound  bool
}

// New returns a Cutover in PhasePending.
func New(e engine.Engine, opts Options) *Cutover {
	if opts.Mode == "" {
		opts.Mode = ModeTwoStep
	}
	return &Cutover{engine: e, opts: opts, phase: PhasePending, stable: PhasePending}
}

// Phase returns the current phase.
func (c *Cutover) Phase() Phase { return c.phase }

// Before returns the bindings seen by Inspect.
func (c *Cutover) Before() []string { return slices.Clone(c.before) }

// After returns the bindings seen by Verify.
func (c *Cutover) After() []string { return slices.Clone(c.after) }

func (c *Cutover) pattern() string { return c.opts.Prefix + "*" }

// priorGenerations returns the inspected bindings that the unbind pattern
// will match.
func (c *Cutover) priorGenerations() []string {
	var out []string
	for _, name := range c.before {
		if strings.HasPrefix(name, c.opts.Prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Inspect records the current bindings of the alias.
func (c *Cutover) Inspect(ctx context.Context) error {
	if err := c.expect("inspect", PhasePending); err != nil {
		return err
	}
	bound, err := c.engine.GetAlias(ctx, c.opts.Alias)
	if err != nil {
		return c.fail(docerrors.New(docerrors.ErrCodeCutoverFailed,
			fmt.Sprintf("failed to query alias %s", c.opts.Alias), err))
	}
	c.before = bound
	c.advance(PhaseInspected)
	slog.Info("alias_inspected",
		slog.String("alias", c.opts.Alias),
		slog.Any("bound", bound))
	return nil
}

// Unbind removes the alias from every prior generation. It makes no request
// when no prior generation holds the alias.
func (c *Cutover) Unbind(ctx context.Context) error {
	if err := c.expect("unbind", PhaseInspected); err != nil {
		return err
	}
	prior := c.priorGenerations()
	if len(prior) == 0 {
		slog.Info("alias_unbind_skipped", slog.String("alias", c.opts.Alias))
		c.advance(PhaseUnbound)
		return nil
	}

	if err := c.engine.UpdateAliases(ctx, []engine.AliasAction{
		engine.RemoveAlias(c.pattern(), c.opts.Alias),
	}); err != nil {
		return c.fail(docerrors.New(docerrors.ErrCodeCutoverFailed,
			fmt.Sprintf("failed to unbind alias %s from %s", c.opts.Alias, c.pattern()), err).
			WithDetail("phase", string(c.stable)))
	}
	c.unbound = true
	c.advance(PhaseUnbound)
	slog.Info("alias_unbound",
		slog.String("alias", c.opts.Alias),
		slog.Any("indices", prior))
	return nil
}

// Bind attaches the alias to newIndex.
func (c *Cutover) Bind(ctx context.Context, newIndex string) error {
	if err := c.expect("bind", PhaseUnbound); err != nil {
		return err
	}
	c.newIndex = newIndex
	if err := c.engine.UpdateAliases(ctx, []engine.AliasAction{
		engine.AddAlias(newIndex, c.opts.Alias),
	}); err != nil {
		e := docerrors.New(docerrors.ErrCodeCutoverFailed,
			fmt.Sprintf("failed to bind alias %s to %s", c.opts.Alias, newIndex), err).
			WithDetail("phase", string(c.stable))
		if c.unbound {
			e.WithSuggestion(fmt.Sprintf("alias %s is unbound; bind it manually to %s or a prior generation", c.opts.Alias, newIndex))
		}
		return c.fail(e)
	}
	c.advance(PhaseBound)
	return nil
}

// Swap removes the prior bindings and binds newIndex in one alias update.
func (c *Cutover) Swap(ctx context.Context, newIndex string) error {
	if err := c.expect("swap", PhaseInspected); err != nil {
		return err
	}
	c.newIndex = newIndex

	var actions []engine.AliasAction
	if len(c.priorGenerations()) > 0 {
		actions = append(actions, engine.RemoveAlias(c.pattern(), c.opts.Alias))
	}
	actions = append(actions, engine.AddAlias(newIndex, c.opts.Alias))

	if err := c.engine.UpdateAliases(ctx, actions); err != nil {
		return c.fail(docerrors.New(docerrors.ErrCodeCutoverFailed,
			fmt.Sprintf("failed to swap alias %s to %s", c.opts.Alias, newIndex), err).
			WithDetail("phase", string(c.stable)))
	}
	c.unbound = len(actions) > 1
	c.advance(PhaseBound)
	return nil
}

// Verify records the bindings after the switch and checks that the alias
// resolves to the new index. Extra bindings are logged, not fatal.
func (c *Cutover) Verify(ctx context.Context) error {
	if err := c.expect("verify", PhaseBound); err != nil {
		return err
	}
	bound, err := c.engine.GetAlias(ctx, c.opts.Alias)
	if err != nil {
		return c.fail(docerrors.New(docerrors.ErrCodeAliasState,
			fmt.Sprintf("failed to query alias %s after cutover", c.opts.Alias), err).
			WithDetail("phase", string(c.stable)))
	}
	c.after = bound

	if !slices.Contains(bound, c.newIndex) {
		return c.fail(docerrors.New(docerrors.ErrCodeAliasState,
			fmt.Sprintf("alias %s does not resolve to %s after cutover", c.opts.Alias, c.newIndex), nil).
			WithDetail("bound", strings.Join(bound, ",")).
			WithDetail("phase", string(c.stable)))
	}
	if len(bound) > 1 {
		slog.Warn("alias_multiple_bindings",
			slog.String("alias", c.opts.Alias),
			slog.Any("bound", bound))
	}
	slog.Info("alias_cutover_complete",
		slog.String("alias", c.opts.Alias),
		slog.Any("before", c.before),
		slog.Any("after", bound),
		slog.String("mode", string(c.opts.Mode)))
	return nil
}

// Run performs the whole protocol in the configured mode. The report is
// returned on failure too.
func (c *Cutover) Run(ctx context.Context, newIndex string) (*Report, error) {
	err := c.run(ctx, newIndex)
	return c.Report(), err
}

func (c *Cutover) run(ctx context.Context, newIndex string) error {
	if err := c.Inspect(ctx); err != nil {
		return err
	}
	if c.opts.Mode == ModeAtomic {
		if err := c.Swap(ctx, newIndex); err != nil {
			return err
		}
	} else {
		if err := c.Unbind(ctx); err != nil {
			return err
		}
		if err := c.Bind(ctx, newIndex); err != nil {
			return err
		}
	}
	return c.Verify(ctx)
}

// Report snapshots the protocol state.
func (c *Cutover) Report() *Report {
	return &Report{
		Alias:    c.opts.Alias,
		NewIndex: c.newIndex,
		Mode:     c.opts.Mode,
		Before:   c.Before(),
		After:    c.After(),
		Phase:    c.stable,
		Unbound:  c.unbound,
	}
}

func (c *Cutover) advance(p Phase) {
	c.phase = p
	c.stable = p
}

func (c *Cutover) fail(err *docerrors.Error) error {
	c.phase = PhaseFailed
	slog.Error("alias_cutover_failed",
		slog.String("alias", c.opts.Alias),
		slog.String("phase", string(c.stable)),
		slog.String("error", err.Error()))
	return err
}

func (c *Cutover) expect(step string, want Phase) error {
	if c.phase != want {
		return docerrors.InternalError(
			fmt.Sprintf("cutover %s called in phase %s, want %s", step, c.phase, want), nil)
	}
	return nil
}
