// Package provision creates fresh, uniquely named index generations.
package provision

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
)

const (
	// DefaultPrefix is the generation name prefix.
	DefaultPrefix = "documentation_index"
	// DefaultSuffixLength is the length of the random name suffix.
	DefaultSuffixLength = 8

	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Generation is a created, still unpublished index.
type Generation struct {
	Name      string
	Schema    *schema.Definition
	CreatedAt time.Time
}

// Provisioner creates generations on an engine.
type Provisioner struct {
	engine       engine.Engine
	prefix       string
	suffixLength int
	schema       func() *schema.Definition
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(p *Provisioner) { p.prefix = prefix }
}

// WithSuffixLength overrides DefaultSuffixLength.
func WithSuffixLength(n int) Option {
	return func(p *Provisioner) { p.suffixLength = n }
}

// WithSchema replaces the documentation schema.
func WithSchema(fn func() *schema.Definition) Option {
	return func(p *Provisioner) { p.schema = fn }
}

// New returns a Provisioner for e.
func New(e engine.Engine, opts ...Option) *Provisioner {
	p := &Provisioner{
		engine:       e,
		prefix:       DefaultPrefix,
		suffixLength: DefaultSuffixLength,
		schema:       schema.Documentation,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prefix returns the generation name prefix.
func (p *Provisioner) Prefix() string { return p.prefix }

// Pattern returns the wildcard matching every generation name.
func (p *Provisioner) Pattern() string { return p.prefix + "*" }

// Provision creates a new generation. Nothing is retried; a failure leaves
// no alias changed.
func (p *Provisioner) Provision(ctx context.Context) (*Generation, error) {
	name, err := NewName(p.prefix, p.suffixLength)
	if err != nil {
		return nil, err
	}
	def := p.schema()

	if err := p.engine.CreateIndex(ctx, name, def); err != nil {
		wrapped := docerrors.New(docerrors.ErrCodeProvisionFailed,
			fmt.Sprintf("failed to create index %s", name), err).
			WithDetail("index", name)
		if e, ok := docerrors.As(err); ok {
			for k, v := range e.Details {
				wrapped.WithDetail(k, v)
			}
		}
		return nil, wrapped
	}

	gen := &Generation{Name: name, Schema: def, CreatedAt: time.Now()}
	slog.Info("index_provisioned",
		slog.String("index", name),
		slog.String("engine", p.engine.Name()))
	return gen, nil
}

// NewName returns prefix + "_" + n characters drawn uniformly from [a-z0-9].
func NewName(prefix string, n int) (string, error) {
	if n <= 0 {
		return "", docerrors.ValidationError(fmt.Sprintf("suffix length must be positive, got %d", n), nil)
	}
	limit := big.NewInt(int64(len(suffixAlphabet)))
	suffix := make([]byte, n)
	for i := range suffix {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", docerrors.InternalError("failed to generate index name", err)
		}
		suffix[i] = suffixAlphabet[v.Int64()]
	}
	return prefix + "_" + string(suffix), nil
}
