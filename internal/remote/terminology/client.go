// Package terminology is the HTTP client for the remote terminology server.
package terminology

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"refsync/internal/remote"
)

const (
	providerID = "terminology"

	memberPageSize = 1000
)

// Client calls the terminology server's JSON API. It has no side effects on
// local state; retries happen here and nowhere above it.
type Client struct {
	baseURL *url.URL
	caller  *remote.JSONCaller
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.caller.HTTPClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.caller.HTTPClient.Timeout = d
	}
}

func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.caller.MaxRetries = n
	}
}

// WithBackOff replaces the exponential backoff used between retries.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.caller.NewBackOff = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.caller.Logger = logger
	}
}

func WithObserver(o remote.RequestObserver) Option {
	return func(c *Client) {
		c.caller.Observer = o
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("terminology base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse terminology base URL: %w", err)
	}
	c := &Client{
		baseURL: u,
		caller:  remote.NewJSONCaller(providerID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CodeSystems lists every code system the server publishes.
func (c *Client) CodeSystems(ctx context.Context) ([]CodeSystem, error) {
	var page codeSystemPage
	if err := c.getJSON(ctx, nil, &page, "codesystems"); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// BranchChildren lists the immediate children of branch.
func (c *Client) BranchChildren(ctx context.Context, branch string) ([]BranchChild, error) {
	var children []BranchChild
	if err := c.getJSON(ctx, nil, &children, "branches", branch, "children"); err != nil {
		return nil, err
	}
	return children, nil
}

// RefsetMembership returns active reference-set membership on branch for the
// reference sets selected by ecl.
func (c *Client) RefsetMembership(ctx context.Context, branch, ecl string) (*RefsetMembership, error) {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("referenceSet", ecl)
	q.Set("limit", "1")
	var out RefsetMembership
	if err := c.getJSON(ctx, q, &out, "browser", branch, "members"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Concept returns the summary view of conceptID on branch.
func (c *Client) Concept(ctx context.Context, branch, conceptID string) (*ConceptSummary, error) {
	var out ConceptSummary
	if err := c.getJSON(ctx, nil, &out, branch, "concepts", conceptID); err != nil {
		return nil, err
	}
	return &out, nil
}

// BrowserConcept returns the browser view of conceptID, including descriptions.
func (c *Client) BrowserConcept(ctx context.Context, branch, conceptID string) (*ConceptDetail, error) {
	var out ConceptDetail
	if err := c.getJSON(ctx, nil, &out, "browser", branch, "concepts", conceptID); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestMemberChange walks the members of refsetID on branch and returns the
// latest effective time. It returns nil when no member has been published.
func (c *Client) LatestMemberChange(ctx context.Context, branch, refsetID string) (*time.Time, error) {
	var latest *time.Time
	for offset := 0; ; offset += memberPageSize {
		q := url.Values{}
		q.Set("referenceSet", refsetID)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(memberPageSize))

		var page MemberPage
		if err := c.getJSON(ctx, q, &page, branch, "members"); err != nil {
			return nil, err
		}
		for _, m := range page.Items {
			if d, ok := m.EffectiveDate(); ok && (latest == nil || d.After(*latest)) {
				latest = &d
			}
		}
		if len(page.Items) < memberPageSize || offset+len(page.Items) >= page.Total {
			return latest, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, query url.Values, out any, segments ...string) error {
	u := c.baseURL.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return c.caller.Get(ctx, u, out)
}
