package client

import (
	"context"
	"net/http"
	"time"

	"github.com/jmcleod/mathquiz/state"
)

// RefreshWindow is how close to expiry an access token is refreshed
// opportunistically.
const RefreshWindow = 5 * time.Minute

// TokenState classifies a session's access token at a point in time.
type TokenState int

const (
	TokenMissing TokenState = iota
	TokenValid
	TokenExpiring
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenMissing:
		return "missing"
	case TokenValid:
		return "valid"
	case TokenExpiring:
		return "expiring"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ClassifyToken reports the state of sess's access token at now.
func ClassifyToken(sess state.Session, now time.Time) TokenState {
	if sess.AccessToken == "" {
		return TokenMissing
	}
	remaining := sess.TokenExpiry.Sub(now)
	switch {
	case remaining > RefreshWindow:
		return TokenValid
	case remaining > 0:
		return TokenExpiring
	default:
		return TokenExpired
	}
}

// Disposition is how an authenticated request proceeds once the token
// policy has run.
type Disposition int

const (
	// TokenUsable means the current token was used without a refresh.
	TokenUsable Disposition = iota
	// TokenRefreshed means a refresh succeeded and the new token is used.
	TokenRefreshed
	// TokenRefreshFailed means an opportunistic refresh failed and the
	// original, still unexpired token is used.
	TokenRefreshFailed
)

// tokenResponse is the body of a successful login or refresh.
type tokenResponse struct {
	TokenType    string `json:"tokenType"`
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
}

func (r tokenResponse) grant() state.TokenGrant {
	return state.TokenGrant{
		AccessToken:  r.AccessToken,
		ExpiresIn:    time.Duration(r.ExpiresIn) * time.Second,
		RefreshToken: r.RefreshToken,
	}
}

// prepareToken returns the access token to send with an authenticated
// request. An error means the request must not be sent.
func (c *Client) prepareToken(ctx context.Context) (string, Disposition, error) {
	sess := c.sessions.Get()
	switch ClassifyToken(sess, c.now()) {
	case TokenMissing:
		return "", TokenUsable, unauthenticatedError()
	case TokenValid:
		return sess.AccessToken, TokenUsable, nil
	case TokenExpiring:
		refreshed, err := c.refreshShared(ctx, sess.RefreshToken)
		if err != nil {
			c.logger.Warn("opportunistic token refresh failed, using current token",
				"outcome", OutcomeOf(err).String(), "error", err)
			return sess.AccessToken, TokenRefreshFailed, nil
		}
		return refreshed.AccessToken, TokenRefreshed, nil
	default:
		refreshed, err := c.refreshShared(ctx, sess.RefreshToken)
		if err != nil {
			return "", TokenUsable, err
		}
		return refreshed.AccessToken, TokenRefreshed, nil
	}
}

// refreshShared refreshes with refreshToken, coalescing concurrent callers
// holding the same refresh token into one request. The shared request is
// detached from any single caller's cancellation so a rotation the server
// commits is always stored; each caller still stops waiting when its own
// ctx ends.
func (c *Client) refreshShared(ctx context.Context, refreshToken string) (state.Session, error) {
	ch := c.refreshGroup.DoChan(refreshToken, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case <-ctx.Done():
		return state.Session{}, networkError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			// A caller that read the session before another refresh
			// rotated it sends a revoked token; the stored pair wins.
			if cur := c.sessions.Get(); cur.RefreshToken != "" && cur.RefreshToken != refreshToken {
				return cur, nil
			}
			return state.Session{}, res.Err
		}
		return res.Val.(state.Session), nil
	}
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (state.Session, error) {
	var tr tokenResponse
	err := c.send(ctx, http.MethodPost, "/account/refresh", "",
		map[string]string{"refreshToken": refreshToken}, &tr)
	if err != nil {
		return state.Session{}, err
	}
	return c.sessions.TokenRefresh(tr.grant(), c.now()), nil
}

// Refresh exchanges the refresh token for a new token pair regardless of
// the access token's expiry.
func (c *Client) Refresh(ctx context.Context) error {
	sess := c.sessions.Get()
	if sess.RefreshToken == "" {
		return unauthenticatedError()
	}
	_, err := c.refreshShared(ctx, sess.RefreshToken)
	return err
}
