// Package identity is the HTTP client for the identity provider that
// publishes group-membership rules and user profiles.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"refsync/internal/remote"
	"refsync/pkg/email"
)

const providerID = "identity"

// Client authenticates as an application (basic auth) and reads groups and
// users. It never writes to the identity provider.
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

func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.caller.MaxRetries = n
	}
}

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

// New builds a client for baseURL using the application credentials.
func New(baseURL, application, password string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("identity provider base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse identity provider base URL: %w", err)
	}
	c := &Client{
		baseURL: u,
		caller:  remote.NewJSONCaller(providerID),
	}
	c.caller.Decorate = func(r *http.Request) {
		if application != "" {
			r.SetBasicAuth(application, password)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GroupMembers returns group name → member usernames for every group whose
// name starts with prefix.
func (c *Client) GroupMembers(ctx context.Context, prefix string) (map[string][]string, error) {
	out := make(map[string][]string)
	offset := 0
	for {
		u := c.baseURL.JoinPath("groups")
		q := url.Values{}
		q.Set("prefix", prefix)
		q.Set("expand", "members")
		if offset > 0 {
			q.Set("offset", strconv.Itoa(offset))
		}
		u.RawQuery = q.Encode()

		var page groupPage
		if err := c.caller.Get(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, g := range page.Groups {
			if !strings.HasPrefix(g.Name, prefix) {
				continue
			}
			out[g.Name] = append(out[g.Name], g.Members...)
		}
		if page.Next <= offset {
			return out, nil
		}
		offset = page.Next
	}
}

// User fetches the profile of username. A missing display name is derived
// from the first and last name, then from the email address.
func (c *Client) User(ctx context.Context, username string) (*Profile, error) {
	u := c.baseURL.JoinPath("users", username)
	var p Profile
	if err := c.caller.Get(ctx, u, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		p.Username = username
	}
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	if p.DisplayName == "" && p.Email != "" {
		p.DisplayName = email.DisplayNameFromEmail(p.Email)
	}
	return &p, nil
}
