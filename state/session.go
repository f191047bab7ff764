package state

import "time"

// Session is the client's authentication state. Both tokens are empty when
// logged out; TokenExpiry is meaningless in that case.
type Session struct {
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	TokenExpiry  time.Time `json:"token_expiry"`
	RefreshToken string    `json:"refresh_token"`
}

// LoggedIn reports whether the session holds an access token.
func (s Session) LoggedIn() bool {
	return s.AccessToken != ""
}

// TokenGrant is a token pair issued by login or refresh.
type TokenGrant struct {
	AccessToken  string
	ExpiresIn    time.Duration
	RefreshToken string
}

// SessionStore is the session state container. All writes replace the
// relevant fields together.
type SessionStore struct {
	*Store[Session]
}

// NewSessionStore returns a logged-out store whose expiry is now.
func NewSessionStore(now time.Time) *SessionStore {
	return &SessionStore{Store: NewStore(Session{TokenExpiry: now})}
}

// Login records a fresh session for email.
func (s *SessionStore) Login(email string, g TokenGrant, now time.Time) Session {
	return s.replace(Session{
		Email:        email,
		AccessToken:  g.AccessToken,
		TokenExpiry:  now.Add(g.ExpiresIn),
		RefreshToken: g.RefreshToken,
	})
}

// TokenRefresh replaces the token pair and expiry, keeping the email.
func (s *SessionStore) TokenRefresh(g TokenGrant, now time.Time) Session {
	return s.Update(func(cur Session) Session {
		return Session{
			Email:        cur.Email,
			AccessToken:  g.AccessToken,
			TokenExpiry:  now.Add(g.ExpiresIn),
			RefreshToken: g.RefreshToken,
		}
	})
}

// Logout clears the session; the expiry is reset to now.
func (s *SessionStore) Logout(now time.Time) Session {
	return s.replace(Session{TokenExpiry: now})
}

func (s *SessionStore) replace(v Session) Session {
	return s.Update(func(Session) Session { return v })
}
