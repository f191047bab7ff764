package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jmcleod/mathquiz/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		ttl   time.Duration
		want  TokenState
	}{
		{"missing token", "", time.Hour, TokenMissing},
		{"missing token already expired", "", -time.Hour, TokenMissing},
		{"an hour left", "tok", time.Hour, TokenValid},
		{"just over the window", "tok", RefreshWindow + time.Nanosecond, TokenValid},
		{"exactly the window", "tok", RefreshWindow, TokenExpiring},
		{"one second left", "tok", time.Second, TokenExpiring},
		{"exactly now", "tok", 0, TokenExpired},
		{"long expired", "tok", -24 * time.Hour, TokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := state.Session{AccessToken: tt.token, TokenExpiry: testNow.Add(tt.ttl)}
			assert.Equal(t, tt.want, ClassifyToken(sess, testNow))
		})
	}
}

func TestPolicyValidTokenDoesNotRefresh(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})

	for _, ttl := range []time.Duration{RefreshWindow + time.Second, time.Hour, 14 * 24 * time.Hour} {
		c := newTestClient(srv.URL, ttl)
		token, disp, err := c.prepareToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-old", token)
		assert.Equal(t, TokenUsable, disp)

		_, err = c.ListQuizzes(context.Background())
		require.NoError(t, err)
	}
	assert.Zero(t, f.refreshN.Load())
	for _, r := range f.requestsTo("/quiz") {
		assert.Equal(t, "Bearer access-old", r.Auth)
	}
}

func TestPolicyMissingTokenIsUnauthenticated(t *testing.T) {
	f, srv := newFakeService(t)

	for _, expiry := range []time.Duration{-time.Hour, 0, time.Minute, time.Hour} {
		c := newTestClient(srv.URL, 0)
		c.Sessions().Set(state.Session{RefreshToken: "refresh-old", TokenExpiry: testNow.Add(expiry)})

		_, err := c.ListQuizzes(context.Background())
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Equal(t, Unauthenticated, OutcomeOf(err))
	}
	assert.Zero(t, f.total(), "no request may reach the server")
}

func TestPolicyOpportunisticRefreshSuccess(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, "access-new", "refresh-new")
	})
	f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})

	c := newTestClient(srv.URL, 2*time.Minute)
	_, err := c.ListQuizzes(context.Background())
	require.NoError(t, err)

	refreshes := f.requestsTo("/account/refresh")
	require.Len(t, refreshes, 1)
	assert.Equal(t, "refresh-old", refreshes[0].Body["refreshToken"])
	assert.Empty(t, refreshes[0].Auth, "refresh is sent without a bearer token")

	lists := f.requestsTo("/quiz")
	require.Len(t, lists, 1)
	assert.Equal(t, "Bearer access-new", lists[0].Auth)

	sess := c.Sessions().Get()
	assert.Equal(t, "user@example.com", sess.Email)
	assert.Equal(t, "access-new", sess.AccessToken)
	assert.Equal(t, "refresh-new", sess.RefreshToken)
	assert.Equal(t, testNow.Add(time.Hour), sess.TokenExpiry)
}

func TestPolicyOpportunisticRefreshFailureFallsBack(t *testing.T) {
	failures := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(w, http.StatusInternalServerError, map[string]any{"title": "boom"})
		},
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"network": dropConnection,
	}
	for name, refresh := range failures {
		t.Run(name, func(t *testing.T) {
			f, srv := newFakeService(t)
			f.handle("POST /account/refresh", refresh)
			f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
				writeTestJSON(w, http.StatusOK, []any{map[string]any{"id": 1}})
			})

			c := newTestClient(srv.URL, time.Minute)
			before := c.Sessions().Get()

			token, disp, err := c.prepareToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, TokenRefreshFailed, disp)
			assert.Equal(t, "access-old", token)
			assert.Equal(t, before, c.Sessions().Get(), "a failed refresh writes nothing")

			quizzes, err := c.ListQuizzes(context.Background())
			require.NoError(t, err)
			assert.Len(t, quizzes, 1)

			lists := f.requestsTo("/quiz")
			require.Len(t, lists, 1)
			assert.Equal(t, "Bearer access-old", lists[0].Auth)
			assert.Equal(t, before, c.Sessions().Get())
		})
	}
}

func TestPolicyExpiredRefreshFailureAborts(t *testing.T) {
	tests := map[string]struct {
		handler http.HandlerFunc
		outcome Outcome
		message string
	}{
		"unauthorized": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeTestBody(w, http.StatusUnauthorized, `{"title":"Unauthorized","status":401}`)
			},
			outcome: StructuredError,
			message: "Unauthorized\ntitle: Unauthorized\nstatus: 401",
		},
		"network": {
			handler: dropConnection,
			outcome: NetworkError,
			message: NetworkErrorMessage,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f, srv := newFakeService(t)
			f.handle("POST /account/refresh", tt.handler)
			f.handle("POST /quiz", func(w http.ResponseWriter, r *http.Request) {
				t.Error("request must not be sent after a failed mandatory refresh")
			})

			c := newTestClient(srv.URL, -time.Second)
			before := c.Sessions().Get()

			_, err := c.CreateQuiz(context.Background(), []string{"1+1"}, []*int{nil})
			require.Error(t, err)
			assert.Equal(t, tt.outcome, OutcomeOf(err))
			assert.Equal(t, tt.message, err.Error())
			assert.Empty(t, f.requestsTo("/quiz"))
			assert.Equal(t, before, c.Sessions().Get())
			assert.Zero(t, c.Quizzes().Len())
		})
	}
}

func TestPolicyExpiredRefreshSuccess(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, "access-new", "refresh-new")
	})
	f.handle("DELETE /quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(srv.URL, 0)
	c.Sessions().Set(state.Session{
		Email: "user@example.com", AccessToken: "access-old",
		TokenExpiry: testNow.Add(-time.Hour), RefreshToken: "refresh-old",
	})

	require.NoError(t, c.DeleteQuiz(context.Background(), 3))
	deletes := f.requestsTo("/quiz/3")
	require.Len(t, deletes, 1)
	assert.Equal(t, "Bearer access-new", deletes[0].Auth)
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	release := make(chan struct{})
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeTokens(w, "access-new", "refresh-new")
	})
	f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})

	c := newTestClient(srv.URL, -time.Minute)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListQuizzes(context.Background())
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.refreshN.Load())
	for _, r := range f.requestsTo("/quiz") {
		assert.Equal(t, "Bearer access-new", r.Auth)
	}
}

func TestRefreshSurvivesJoinedCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		writeTokens(w, "access-new", "refresh-new")
	})
	f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})

	c := newTestClient(srv.URL, -time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.ListQuizzes(ctxA)
		errA <- err
	}()
	<-started

	errB := make(chan error, 1)
	go func() {
		_, err := c.ListQuizzes(context.Background())
		errB <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	err := <-errA
	require.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-errB)

	assert.Equal(t, int32(1), f.refreshN.Load())
	assert.Equal(t, "refresh-new", c.Sessions().Get().RefreshToken)
	lists := f.requestsTo("/quiz")
	require.Len(t, lists, 1)
	assert.Equal(t, "Bearer access-new", lists[0].Auth)
}

func TestStaleRefreshTokenUsesStoredPair(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeTestBody(w, http.StatusUnauthorized, `{"title":"Unauthorized","status":401}`)
	})
	f.handle("GET /quiz", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []any{})
	})

	c := newTestClient(srv.URL, -time.Minute)
	stale := c.Sessions().Get()
	// Another caller rotated the pair after stale was read.
	c.Sessions().TokenRefresh(state.TokenGrant{
		AccessToken: "access-new", ExpiresIn: time.Hour, RefreshToken: "refresh-new",
	}, testNow)

	sess, err := c.refreshShared(context.Background(), stale.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "access-new", sess.AccessToken)
	assert.Equal(t, int32(1), f.refreshN.Load())

	// Without a newer pair the failure stands.
	c.Sessions().Set(stale)
	_, err = c.refreshShared(context.Background(), stale.RefreshToken)
	require.ErrorIs(t, err, ErrStructured)
}

func TestRefresh(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, "access-new", "refresh-new")
	})

	c := newTestClient(srv.URL, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, "access-new", c.Sessions().Get().AccessToken)
	assert.Equal(t, int32(1), f.refreshN.Load())

	loggedOut := newTestClient(srv.URL, 0)
	assert.ErrorIs(t, loggedOut.Refresh(context.Background()), ErrUnauthenticated)
	assert.Equal(t, int32(1), f.refreshN.Load())
}
