// Package opensearch talks to an OpenSearch cluster through the official
// opensearch-go client.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/Aman-CERP/docindex/internal/engine"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/schema"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// DefaultRequestTimeout bounds requests whose context has no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Config configures the client.
type Config struct {
	// Endpoint is the cluster URL, e.g. https://search.example.com:9200.
	Endpoint string
	Username string
	Password string
	// InsecureSkipVerify disables TLS certificate checks (self-signed dev clusters).
	InsecureSkipVerify bool
	// RequestTimeout applies when the caller's context has no deadline.
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

// Client is an engine.Engine backed by the cluster's REST API.
type Client struct {
	api       *opensearchapi.Client
	timeout   time.Duration
	transport *http.Transport
}

var _ engine.Engine = (*Client)(nil)

// New validates cfg and returns a client. No request is made.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, docerrors.New(docerrors.ErrCodeCredentialsMissing, "search engine endpoint is not set", nil).
			WithSuggestion("export SEARCH_ENDPOINT or set engine.endpoint in config.yml")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	base, err := url.Parse(endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, docerrors.New(docerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid search engine endpoint %q", cfg.Endpoint), err)
	}

	c := &Client{timeout: cfg.RequestTimeout}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}

	rt := cfg.Transport
	if rt == nil {
		c.transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in for dev clusters
		}
		rt = c.transport
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: []string{endpoint},
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: userAgent{next: rt},
			// Failed requests surface to the pipeline, which never retries.
			DisableRetry: true,
		},
	})
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeConfigInvalid, "failed to create search engine client", err)
	}
	c.api = api
	return c, nil
}

// Name implements engine.Engine.
func (c *Client) Name() string { return "opensearch" }

// CreateIndex implements engine.Engine.
func (c *Client) CreateIndex(ctx context.Context, name string, def *schema.Definition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeSchemaUnsupported, "failed to encode index schema", err)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: name,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return failure("create index", inspect(resp), err, docerrors.ErrCodeProvisionFailed)
	}
	return nil
}

// Bulk implements engine.Engine. Every document is an index action with an
// engine-assigned ID. The request carries the remaining context deadline as
// its server-side timeout.
func (c *Client) Bulk(ctx context.Context, index string, docs []any) (*engine.BulkResponse, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		buf.WriteString(`{"index":{}}` + "\n")
		if err := enc.Encode(doc); err != nil {
			return nil, docerrors.New(docerrors.ErrCodeInvalidInput, "failed to encode document", err)
		}
	}

	var params opensearchapi.BulkParams
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			params.Timeout = remaining.Truncate(time.Millisecond)
		}
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Bulk(ctx, opensearchapi.BulkReq{
		Index:  index,
		Body:   &buf,
		Params: params,
	})
	if err != nil {
		return nil, failure("bulk", inspect(resp), err, docerrors.ErrCodeBulkFailed)
	}

	out := &engine.BulkResponse{
		Took:   int64(resp.Took),
		Errors: resp.Errors,
		Items:  make([]engine.BulkItem, 0, len(resp.Items)),
	}
	for _, entry := range resp.Items {
		// One key per entry: the action name.
		for _, outcome := range entry {
			item := engine.BulkItem{
				Index:  outcome.Index,
				ID:     outcome.ID,
				Status: outcome.Status,
			}
			if outcome.Error != nil {
				item.ErrorType = outcome.Error.Type
				item.Reason = outcome.Error.Reason
			}
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

// GetAlias implements engine.Engine.
func (c *Client) GetAlias(ctx context.Context, alias string) ([]string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Indices.Alias.Get(ctx, opensearchapi.AliasGetReq{Alias: []string{alias}})
	if err != nil {
		raw := inspect(resp)
		if raw != nil && raw.StatusCode == http.StatusNotFound {
			return []string{}, nil
		}
		return nil, failure("get alias", raw, err, docerrors.ErrCodeEngineRejected)
	}

	names := make([]string, 0, len(resp.Indices))
	for name := range resp.Indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateAliases implements engine.Engine. All actions go in one request, so
// the cluster applies them atomically.
func (c *Client) UpdateAliases(ctx context.Context, actions []engine.AliasAction) error {
	req := aliasRequest{Actions: make([]map[string]aliasTarget, 0, len(actions))}
	for _, a := range actions {
		req.Actions = append(req.Actions, map[string]aliasTarget{
			string(a.Type): {Index: a.Index, Alias: a.Alias},
		})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return docerrors.InternalError("failed to encode alias actions", err)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Aliases(ctx, opensearchapi.AliasesReq{Body: bytes.NewReader(body)})
	if err != nil {
		return failure("update aliases", inspect(resp), err, docerrors.ErrCodeCutoverFailed)
	}
	return nil
}

// ListIndices implements engine.Engine. Sizes are requested in bytes.
func (c *Client) ListIndices(ctx context.Context, pattern string) ([]engine.IndexInfo, error) {
	if pattern == "" {
		pattern = "*"
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Cat.Indices(ctx, &opensearchapi.CatIndicesReq{
		Indices: []string{pattern},
		Params:  opensearchapi.CatIndicesParams{Bytes: "b"},
	})
	if err != nil {
		raw := inspect(resp)
		if raw != nil && raw.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, failure("list indices", raw, err, docerrors.ErrCodeEngineRejected)
	}

	infos := make([]engine.IndexInfo, 0, len(resp.Indices))
	for _, row := range resp.Indices {
		info := engine.IndexInfo{Name: row.Index, Health: row.Health}
		if row.DocsCount != nil {
			info.DocCount = int64(*row.DocsCount)
		}
		if row.StoreSize != nil {
			info.SizeBytes, _ = strconv.ParseInt(*row.StoreSize, 10, 64)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteIndex implements engine.Engine.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := c.api.Indices.Delete(ctx, opensearchapi.IndicesDeleteReq{Indices: []string{name}})
	if err != nil {
		return failure("delete index", inspect(resp), err, docerrors.ErrCodeEngineRejected)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// bound applies the default timeout to contexts without a deadline.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type inspector interface {
	Inspect() opensearchapi.Inspect
}

// inspect returns the raw HTTP response behind a typed response, or nil when
// the request never got one.
func inspect[R any, P interface {
	*R
	inspector
}](resp P) *opensearch.Response {
	if resp == nil {
		return nil
	}
	return resp.Inspect().Response
}

// failure maps a client error: an HTTP answer is a rejection with its
// status, anything else is a transport error.
func failure(op string, raw *opensearch.Response, err error, fallback string) error {
	if raw != nil && raw.StatusCode >= http.StatusBadRequest {
		return engine.Rejected(op, raw.StatusCode, err.Error())
	}
	return engine.Classify(op, err, fallback)
}

// userAgent stamps every request with the docindex User-Agent.
type userAgent struct {
	next http.RoundTripper
}

func (t userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return t.next.RoundTrip(req)
}

type aliasTarget struct {
	Index string `json:"index"`
	Alias string `json:"alias"`
}

type aliasRequest struct {
	Actions []map[string]aliasTarget `json:"actions"`
}
