// Package client is the API access layer for the quiz service. Each API
// function checks the session's access token, refreshing it when needed,
// sends one JSON request, normalizes the response into an Outcome and on
// success applies the matching change to the session and quiz stores.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/mathquiz/state"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the timeout of the default HTTP client.
const DefaultTimeout = 30 * time.Second

// Client calls the quiz service on behalf of one session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	sessions   *state.SessionStore
	quizzes    *state.QuizStore

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the clock used for token expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSessionStore sets the session store. By default a new logged-out
// store is created.
func WithSessionStore(s *state.SessionStore) Option {
	return func(c *Client) { c.sessions = s }
}

// WithQuizStore sets the quiz collection store.
func WithQuizStore(s *state.QuizStore) Option {
	return func(c *Client) { c.quizzes = s }
}

// New returns a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessions == nil {
		c.sessions = state.NewSessionStore(c.now())
	}
	if c.quizzes == nil {
		c.quizzes = state.NewQuizStore()
	}
	return c
}

// Sessions returns the session store.
func (c *Client) Sessions() *state.SessionStore { return c.sessions }

// Quizzes returns the quiz collection store.
func (c *Client) Quizzes() *state.QuizStore { return c.quizzes }

// authorized runs the token policy and then sends the request with the
// resulting bearer token.
func (c *Client) authorized(ctx context.Context, method, path string, in, out any) error {
	token, _, err := c.prepareToken(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, token, in, out)
}

// send performs one request. in, when non-nil, is sent as the JSON body;
// out, when non-nil, receives the decoded success body. The returned error
// is always nil or an *Error.
func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	status, body, err := c.roundTrip(ctx, method, path, token, in)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		c.logger.Debug("request failed", "method", method, "path", path, "status", status)
		return structuredError(status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Debug("decoding response failed", "method", method, "path", path, "error", err)
		return &Error{Outcome: StructuredError, Status: status, Message: StatusSummary(0), Err: err}
	}
	return nil
}

// roundTrip returns the status and body of the response, or an *Error when
// no response was received.
func (c *Client) roundTrip(ctx context.Context, method, path, token string, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, &Error{Outcome: StructuredError, Message: UnknownErrorMessage, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, &Error{Outcome: StructuredError, Message: UnknownErrorMessage, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request error", "method", method, "path", path, "error", err)
		return 0, nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, networkError(err)
	}
	return resp.StatusCode, body, nil
}
