// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package apiclient posts and deletes records on a target's REST API,
// handling token acquisition and re-authentication.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cardinalhq/dataimport/internal/logctx"
)

const (
	DefaultMaxAuthAttempts = 3
	// tokens without an expiry are reused for this long
	defaultTokenTTL = 30 * time.Minute
	// refresh this long before a token's stated expiry
	expirySkew = 30 * time.Second
	// a failed token request is answered from cache for this long
	defaultAuthFailureTTL = time.Minute
)

// Response is the outcome of a request that the target answered.
type Response struct {
	StatusCode int
	Body       string
	// Location is the Location header, set by the target on creates.
	Location string
}

// Client is scoped to one target and one run: its token cache starts empty.
type Client struct {
	cfg         Config
	http        *http.Client
	maxAttempts int

	mu       sync.Mutex
	tokens   *ttlcache.Cache[string, *oauth2.Token]
	failures *ttlcache.Cache[string, *AuthError]
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithMaxAuthAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithAuthFailureTTL sets how long a failed token request is remembered
// before the token endpoint is tried again.
func WithAuthFailureTTL(d time.Duration) Option {
	return func(c *Client) {
		c.failures = ttlcache.New(ttlcache.WithTTL[string, *AuthError](d))
	}
}

// WithTimeout sets the timeout of the default instrumented HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxAttempts: DefaultMaxAuthAttempts,
		tokens: ttlcache.New(
			ttlcache.WithTTL[string, *oauth2.Token](defaultTokenTTL),
			ttlcache.WithDisableTouchOnHit[string, *oauth2.Token](),
		),
		failures: ttlcache.New(ttlcache.WithTTL[string, *AuthError](defaultAuthFailureTTL)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Config() Config {
	return c.cfg
}

// token returns the cached access token or fetches a new one. A failed
// fetch is remembered so the rows that follow fail without another request.
func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item := c.tokens.Get(c.cfg.Name); item != nil {
		return item.Value(), nil
	}
	if item := c.failures.Get(c.cfg.Name); item != nil {
		return nil, item.Value()
	}

	tok, err := c.fetchToken(ctx)
	tokenFetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", c.cfg.Name),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		aerr := &AuthError{Target: c.cfg.Name, Err: err}
		if ctx.Err() == nil {
			c.failures.Set(c.cfg.Name, aerr, ttlcache.DefaultTTL)
		}
		return nil, aerr
	}

	ttl := ttlcache.DefaultTTL
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry) - expirySkew
		if ttl <= 0 {
			ttl = time.Second
		}
	}
	c.tokens.Set(c.cfg.Name, tok, ttl)
	return tok, nil
}

// invalidate drops the cached token if it is still the one that was rejected.
func (c *Client) invalidate(rejected *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.tokens.Get(c.cfg.Name); item != nil && item.Value().AccessToken == rejected.AccessToken {
		c.tokens.Delete(c.cfg.Name)
	}
}

func (c *Client) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	if c.cfg.usesAuthorizationCode() {
		code, err := c.authorizationCode(ctx)
		if err != nil {
			return nil, err
		}
		oc := oauth2.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.cfg.AuthorizeURL,
				TokenURL:  c.cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		return oc.Exchange(ctx, code)
	}

	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cc.Token(ctx)
}

// authorizationCode asks the authorize endpoint for a code to exchange.
func (c *Client) authorizationCode(ctx context.Context) (string, error) {
	form := url.Values{
		"Client_id":     {c.cfg.ClientID},
		"Response_type": {"code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthorizeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logctx.FromContext(ctx).Info("Retrieving authorization code", slog.String("url", c.cfg.AuthorizeURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authorization code request returned %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode authorization code: %w", err)
	}
	if body.Code == "" {
		return "", errors.New("authorization code response has no code")
	}
	return body.Code, nil
}

// Post sends body to endpoint. Any answered request returns its Response;
// a 401 re-authenticates and retries up to the attempt limit, after which
// the Response is returned along with a recoverable *StatusError.
func (c *Client) Post(ctx context.Context, endpoint string, body []byte) (Response, error) {
	return c.send(ctx, http.MethodPost, endpoint, body)
}

// Delete removes the resource at endpoint with the same re-authentication
// rules as Post.
func (c *Client) Delete(ctx context.Context, endpoint string) (Response, error) {
	return c.send(ctx, http.MethodDelete, endpoint, nil)
}

// PostAndDelete posts body so the target resolves it to an existing
// resource, then deletes the location the target answers with. A POST that
// does not return 200 or 201 is returned as is.
func (c *Client) PostAndDelete(ctx context.Context, endpoint string, body []byte) (Response, error) {
	resp, err := c.send(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return resp, nil
	}
	if resp.Location == "" {
		return resp, fmt.Errorf("POST %s: response has no Location to delete", endpoint)
	}
	location, err := resolveLocation(endpoint, resp.Location)
	if err != nil {
		return resp, err
	}
	return c.send(ctx, http.MethodDelete, location, nil)
}

func resolveLocation(endpoint, location string) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %s: %w", endpoint, err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse Location %s: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body []byte) (Response, error) {
	ll := logctx.FromContext(ctx)
	var resp Response

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return Response{}, err
		}

		resp, err = c.do(ctx, method, endpoint, body, tok)
		if err != nil {
			return Response{}, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}

		c.invalidate(tok)
		ll.Warn(method+" unauthorized, refreshing token",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", c.maxAttempts))
	}

	return resp, &StatusError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: resp.Body}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, tok *oauth2.Token) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Response{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok.SetAuthHeader(req)

	start := time.Now()
	hr, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = hr.Body.Close() }()

	data, err := io.ReadAll(hr.Body)
	postDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("target", c.cfg.Name),
		attribute.String("method", method),
		attribute.Int("status", hr.StatusCode),
	))
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: read response: %w", method, endpoint, err)
	}
	return Response{
		StatusCode: hr.StatusCode,
		Body:       string(data),
		Location:   hr.Header.Get("Location"),
	}, nil
}
