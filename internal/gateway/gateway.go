package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshPath = "/auth/refresh"
	authPathPrefix     = "/auth/"
	refreshTimeout     = 15 * time.Second
	refreshFlightKey   = "refresh"
)

// Session is the gateway's view of the signed-in user: where the access
// token lives and what to do when it can no longer be renewed.
type Session interface {
	// AccessToken returns the current in-memory access token, or "".
	AccessToken() string

	// SetAccessToken stores a freshly issued access token.
	SetAccessToken(token string)

	// EndSession clears the local session (profile cache, token) and
	// sends the user back to sign-in.
	EndSession(reason error)

	// AtSignIn reports whether the sign-in screen is currently showing.
	AtSignIn() bool
}

// Gateway is the authenticated request pipeline for the marketplace
// backend. It attaches the bearer token to every request, and on a 401
// renews the token once through a single shared refresh call before
// replaying the request. HTTP 429 is retried with backoff.
type Gateway struct {
	baseURL     string
	httpClient  *http.Client
	session     Session
	refreshPath string
	maxRetries  int

	flight     singleflight.Group
	refreshing atomic.Bool
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client. Its cookie jar carries the
// http-only refresh cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithMaxRetries sets how many times a rate limited request is retried.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// WithRefreshPath overrides the token refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(g *Gateway) { g.refreshPath = path }
}

// New creates a Gateway rooted at baseURL
// (e.g. https://api.bikerent.example.com/api).
func New(baseURL string, session Session, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		refreshPath: defaultRefreshPath,
		maxRetries:  3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the backend root URL.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Refreshing reports whether a token refresh is in flight.
func (g *Gateway) Refreshing() bool {
	return g.refreshing.Load()
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (g *Gateway) Get(ctx context.Context, path string, result any) error {
	return g.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (g *Gateway) Post(ctx context.Context, path string, body any, result any) error {
	return g.do(ctx, http.MethodPost, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string, result any) error {
	return g.do(ctx, http.MethodDelete, path, nil, result)
}

// Refresh forces a token refresh, joining one already in flight. It is
// used to resume a session from the refresh cookie alone.
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	return g.awaitToken(ctx, g.session.AccessToken(), true)
}

// do is the core request loop: attach the token, send, and react to 429
// and 401 responses.
func (g *Gateway) do(ctx context.Context, method, path string, body, result any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	token := g.session.AccessToken()
	retried := false
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; {
		resp, respBody, err := g.send(ctx, method, path, data, token)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			wait := retryAfterDuration(resp, attempt)
			attempt++
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}

		case resp.StatusCode == http.StatusUnauthorized:
			// An abandoned caller belongs to a session that is already gone.
			if err := ctx.Err(); err != nil {
				return err
			}
			if retried || !g.refreshEligible(path) {
				g.session.EndSession(ErrSessionExpired)
				return &AuthError{Method: method, Path: path, Status: resp.StatusCode, Err: ErrSessionExpired}
			}
			// Marked before waiting so a second 401 on replay is final.
			retried = true
			token, err = g.awaitToken(ctx, token, false)
			if err != nil {
				return &AuthError{Method: method, Path: path, Status: resp.StatusCode, Err: err}
			}
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return &StatusError{
				Method:  method,
				Path:    path,
				Status:  resp.StatusCode,
				Message: errorMessage(respBody),
				Body:    string(respBody),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", g.maxRetries, lastErr)
}

// send issues a single request and reads the whole response body.
func (g *Gateway) send(
	ctx context.Context,
	method, path string,
	data []byte,
	token string,
) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", readErr)
	}

	return resp, respBody, nil
}

// refreshEligible reports whether a 401 on path may be recovered by a
// token refresh.
func (g *Gateway) refreshEligible(path string) bool {
	if strings.HasPrefix(path, authPathPrefix) {
		return false
	}
	return !g.session.AtSignIn()
}

// awaitToken returns a token newer than stale. If the session already
// holds one (another caller refreshed since stale was attached) it is
// returned directly; otherwise the caller joins the single in-flight
// refresh, starting it if needed.
func (g *Gateway) awaitToken(ctx context.Context, stale string, force bool) (string, error) {
	if !force {
		if cur := g.session.AccessToken(); cur != "" && cur != stale {
			return cur, nil
		}
	}

	ch := g.flight.DoChan(refreshFlightKey, func() (any, error) {
		g.refreshing.Store(true)
		defer g.refreshing.Store(false)
		return g.refresh()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refreshResponse accepts the token under either of the names the
// backend has used.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// refresh performs the one refresh call. It is detached from any single
// caller's context because every waiter shares its outcome.
func (g *Gateway) refresh() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	resp, body, err := g.send(ctx, http.MethodPost, g.refreshPath, nil, "")
	if err != nil {
		g.session.EndSession(err)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
		g.session.EndSession(err)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		g.session.EndSession(err)
		return "", fmt.Errorf("%w: decoding refresh response: %v", ErrSessionExpired, err)
	}

	token := out.AccessToken
	if token == "" {
		token = out.Token
	}
	if token == "" {
		err := fmt.Errorf("refresh response carried no token")
		g.session.EndSession(err)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	g.session.SetAccessToken(token)
	return token, nil
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error
// body, if present.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
