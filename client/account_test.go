package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jmcleod/mathquiz/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSetsSessionAndClearsQuizzes(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/login", func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, "access-1", "refresh-1")
	})

	c := newTestClient(srv.URL, 0)
	c.Quizzes().Replace(sampleQuizzes())

	var seen []state.Session
	unsub := c.Sessions().Subscribe(func(s state.Session) { seen = append(seen, s) })
	defer unsub()

	require.NoError(t, c.Login(context.Background(), "user@example.com", "Passw0rd!"))

	want := state.Session{
		Email:        "user@example.com",
		AccessToken:  "access-1",
		TokenExpiry:  testNow.Add(time.Hour),
		RefreshToken: "refresh-1",
	}
	assert.Equal(t, want, c.Sessions().Get())
	assert.Equal(t, []state.Session{want}, seen, "the session is replaced in one write")
	assert.Zero(t, c.Quizzes().Len())

	reqs := f.requestsTo("/account/login")
	require.Len(t, reqs, 1)
	assert.Equal(t, "user@example.com", reqs[0].Body["email"])
	assert.Equal(t, "Passw0rd!", reqs[0].Body["password"])
	assert.Empty(t, reqs[0].Auth)
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusUnauthorized, ``, "Username and password not recognised"},
		{http.StatusNotFound, ``, "Unable to reach/locate server"},
		{http.StatusBadRequest, `{"title":"ignored"}`, "Unknown error encountered during server request."},
		{http.StatusTooManyRequests, `{"title":"ignored"}`, "Unknown error encountered during server request."},
	}
	for _, tt := range tests {
		f, srv := newFakeService(t)
		f.handle("POST /account/login", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		})
		c := newTestClient(srv.URL, 0)
		c.Quizzes().Replace(sampleQuizzes())

		err := c.Login(context.Background(), "user@example.com", "wrong")
		require.Error(t, err)
		assert.Equal(t, tt.want, err.Error())
		assert.Equal(t, StructuredError, OutcomeOf(err))
		assert.False(t, c.Sessions().Get().LoggedIn())
		assert.Equal(t, 3, c.Quizzes().Len(), "a failed login leaves the collection")
	}
}

func TestLoginNetworkError(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/login", dropConnection)
	c := newTestClient(srv.URL, 0)

	err := c.Login(context.Background(), "user@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, NetworkErrorMessage, err.Error())
}

func TestLogout(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient(srv.URL, time.Hour)
	c.Quizzes().Replace(sampleQuizzes())

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, state.Session{TokenExpiry: testNow}, c.Sessions().Get())
	assert.Zero(t, c.Quizzes().Len())

	reqs := f.requestsTo("/account/logout")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer access-old", reqs[0].Auth)
	assert.Equal(t, map[string]any{}, reqs[0].Body)
}

func TestLogoutFailureKeepsSession(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(srv.URL, time.Hour)
	c.Quizzes().Replace(sampleQuizzes())

	err := c.Logout(context.Background())
	assert.Equal(t, "The server encountered an error while processing the request", err.Error())
	assert.True(t, c.Sessions().Get().LoggedIn())
	assert.Equal(t, 3, c.Quizzes().Len())

	c.ForgetSession()
	assert.False(t, c.Sessions().Get().LoggedIn())
	assert.Zero(t, c.Quizzes().Len())
}

func TestRegisterValidationError(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"One or more validation errors occurred.","status":400,"errors":{"DuplicateEmail":["Email 'user@example.com' is already taken."]}}`))
	})
	c := newTestClient(srv.URL, 0)

	err := c.Register(context.Background(), "user@example.com", "Passw0rd!")
	assert.Equal(t, "The server refused to process request\n"+
		"type: about:blank\n"+
		"title: One or more validation errors occurred.\n"+
		"status: 400\n"+
		"errors:\n"+
		"- DuplicateEmail: Email 'user@example.com' is already taken.", err.Error())
	assert.False(t, c.Sessions().Get().LoggedIn(), "register does not log in")
}

func TestPasswordReset(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/forgotPassword", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.handle("POST /account/resetPassword", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient(srv.URL, 0)

	require.NoError(t, c.ForgotPassword(context.Background(), "user@example.com"))
	require.NoError(t, c.ResetPassword(context.Background(), "user@example.com", "ABCD2345", "N3w-Passw0rd"))

	reset := f.requestsTo("/account/resetPassword")
	require.Len(t, reset, 1)
	assert.Equal(t, map[string]any{
		"email": "user@example.com", "resetCode": "ABCD2345", "newPassword": "N3w-Passw0rd",
	}, reset[0].Body)
	assert.Empty(t, reset[0].Auth)
}

func TestManageInfo(t *testing.T) {
	f, srv := newFakeService(t)
	f.handle("POST /account/manage/info", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"email": "user@example.com", "isEmailConfirmed": false})
	})
	f.handle("GET /account/manage/info", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"email": "user@example.com", "isEmailConfirmed": true})
	})
	c := newTestClient(srv.URL, time.Hour)
	before := c.Sessions().Get()

	require.NoError(t, c.ChangeEmail(context.Background(), "new@example.com"))
	require.NoError(t, c.ChangePassword(context.Background(), "N3w-Passw0rd", "Passw0rd!"))
	assert.Equal(t, before, c.Sessions().Get(), "manage requests do not touch the session")

	posts := f.requestsTo("/account/manage/info")
	require.Len(t, posts, 2)
	assert.Equal(t, map[string]any{"newEmail": "new@example.com"}, posts[0].Body)
	assert.Equal(t, map[string]any{"newPassword": "N3w-Passw0rd", "oldPassword": "Passw0rd!"}, posts[1].Body)

	info, err := c.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AccountInfo{Email: "user@example.com", IsEmailConfirmed: true}, info)
}

func TestManageInfoRequiresLogin(t *testing.T) {
	f, srv := newFakeService(t)
	c := newTestClient(srv.URL, 0)

	assert.ErrorIs(t, c.ChangeEmail(context.Background(), "x@example.com"), ErrUnauthenticated)
	_, err := c.AccountInfo(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, c.Logout(context.Background()), ErrUnauthenticated)
	assert.Zero(t, f.total())
}
