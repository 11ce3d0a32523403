package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxErrorBodySize = 512

// JSONCaller issues GET requests against a JSON API, retrying transient
// failures with backoff and normalizing every failure into a ProviderError.
type JSONCaller struct {
	ProviderID string
	HTTPClient *http.Client
	MaxRetries uint64
	NewBackOff func() backoff.BackOff
	Logger     *slog.Logger
	Observer   RequestObserver
	// Decorate, when set, is applied to every outgoing request (auth headers).
	Decorate func(*http.Request)
}

// NewJSONCaller returns a caller with a 30s timeout, three retries and
// exponential backoff.
func NewJSONCaller(providerID string) *JSONCaller {
	return &JSONCaller{
		ProviderID: providerID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
		NewBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		Logger:     slog.Default(),
	}
}

// Get fetches u and decodes the JSON body into out.
func (c *JSONCaller) Get(ctx context.Context, u *url.URL, out any) error {
	target := u.String()
	op := func() error {
		return c.do(ctx, target, out)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.NewBackOff(), c.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.Logger.WarnContext(ctx, "remote request failed, retrying",
			"provider", c.ProviderID,
			"url", target,
			"error", err,
			"wait", wait,
		)
	}
	err := backoff.RetryNotify(op, policy, notify)
	if c.Observer != nil {
		c.Observer.ObserveRemoteRequest(c.ProviderID, Outcome(err))
	}
	return err
}

func (c *JSONCaller) do(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(NewProviderError(ErrorInternal, c.ProviderID, "build request", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.Decorate != nil {
		c.Decorate(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return retryable(FromTransport(c.ProviderID, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		msg := fmt.Sprintf("GET %s: %s", req.URL.Path, string(body))
		return retryable(FromStatus(c.ProviderID, resp.StatusCode, msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(NewProviderError(ErrorBadData, c.ProviderID, "decode "+req.URL.Path, err))
	}
	return nil
}

func retryable(pe *ProviderError) error {
	if IsRetryable(pe) {
		return pe
	}
	return backoff.Permanent(pe)
}
