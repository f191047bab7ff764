package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmcleod/mathquiz/state"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeService records the requests it receives. Handlers are registered
// per "METHOD /path" pattern.
type fakeService struct {
	t   *testing.T
	mux *http.ServeMux

	mu       sync.Mutex
	requests []recordedRequest
	refreshN atomic.Int32
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{t: t, mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	if r.URL.Path == "/account/refresh" {
		f.refreshN.Add(1)
	}
	f.mux.ServeHTTP(w, r)
}

func (f *fakeService) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeService) requestsTo(path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeService) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeTestBody sends body verbatim so member order is under the test's
// control.
func writeTestBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeTokens(w http.ResponseWriter, access, refresh string) {
	writeTestJSON(w, http.StatusOK, map[string]any{
		"tokenType":    "Bearer",
		"accessToken":  access,
		"expiresIn":    3600,
		"refreshToken": refresh,
	})
}

// dropConnection closes the connection without a response.
func dropConnection(w http.ResponseWriter, _ *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	conn.Close()
}

// newTestClient returns a client whose session expires after ttl. A zero
// ttl leaves the session logged out.
func newTestClient(baseURL string, ttl time.Duration) *Client {
	c := New(baseURL, WithClock(func() time.Time { return testNow }))
	if ttl != 0 {
		c.Sessions().Login("user@example.com", state.TokenGrant{
			AccessToken:  "access-old",
			ExpiresIn:    ttl,
			RefreshToken: "refresh-old",
		}, testNow)
	}
	return c
}
