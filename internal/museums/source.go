package museums

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

const defaultPageSize = 20

// ErrUnknownSource is returned when a requested source type has no adapter.
var ErrUnknownSource = errors.New("museums: unknown source")

// SearchResult is one page of candidates plus the total match count. Total is
// exact where the protocol supports it, otherwise the size of the matched set.
type SearchResult struct {
	Total int
	Items []domain.Candidate
}

// Source is the adapter contract every museum implements. Search never fails
// on zero results; ResolveDetail reports permanently ineligible objects (no
// image, not open content) as ok=false without an error, reserving the error
// return for transport and protocol failures.
type Source interface {
	Name() domain.SourceType
	Search(ctx context.Context, query string, page int) (SearchResult, error)
	ResolveDetail(ctx context.Context, id string) (domain.Detail, bool, error)
}

// Client bundles the HTTP dependencies shared by all adapters.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// ClientOption customises the shared adapter client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger attaches a logger used for non-fatal fetch diagnostics.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs the shared adapter client.
func NewClient(userAgent string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  strings.TrimSpace(userAgent),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Registry resolves adapters by source type.
type Registry struct {
	sources map[domain.SourceType]Source
}

// NewRegistry indexes the provided adapters by their source type.
func NewRegistry(sources ...Source) (*Registry, error) {
	indexed := make(map[domain.SourceType]Source, len(sources))
	for _, source := range sources {
		if source == nil {
			continue
		}
		name := source.Name()
		if _, exists := indexed[name]; exists {
			return nil, fmt.Errorf("museums: duplicate adapter for source %q", name)
		}
		indexed[name] = source
	}
	if len(indexed) == 0 {
		return nil, errors.New("museums: at least one adapter is required")
	}
	return &Registry{sources: indexed}, nil
}

// Lookup returns the adapter for the source type.
func (r *Registry) Lookup(source domain.SourceType) (Source, error) {
	if r == nil {
		return nil, ErrUnknownSource
	}
	adapter, ok := r.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return adapter, nil
}
