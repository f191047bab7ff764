package api

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(l limits) (*backoffLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return newBackoffLimiter(l, clock.now), clock
}

func TestBackoffLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl, _ := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits-1; i++ {
		rl.record("user@example.com")
		blocked, _ := rl.check("user@example.com")
		assert.False(t, blocked, "hit %d should not block", i+1)
	}
}

func TestBackoffLimiter_BlocksAtThreshold(t *testing.T) {
	rl, _ := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits; i++ {
		rl.record("user@example.com")
	}
	blocked, retryAfter := rl.check("user@example.com")
	require.True(t, blocked)
	assert.Equal(t, loginLimits.base, retryAfter)
}

func TestBackoffLimiter_ExponentialBackoff(t *testing.T) {
	rl, _ := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits; i++ {
		rl.record("k")
	}
	_, first := rl.check("k")
	rl.record("k")
	_, second := rl.check("k")
	assert.Equal(t, 2*first, second)
}

func TestBackoffLimiter_LockoutCapped(t *testing.T) {
	rl, _ := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits+20; i++ {
		rl.record("k")
	}
	_, retryAfter := rl.check("k")
	assert.Equal(t, loginLimits.max, retryAfter)
}

func TestBackoffLimiter_LockoutElapses(t *testing.T) {
	rl, clock := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits; i++ {
		rl.record("k")
	}
	clock.advance(loginLimits.base)
	blocked, _ := rl.check("k")
	assert.False(t, blocked)
}

func TestBackoffLimiter_ResetClears(t *testing.T) {
	rl, _ := newTestLimiter(loginLimits)
	for i := 0; i < loginLimits.maxHits; i++ {
		rl.record("k")
	}
	rl.reset("k")
	blocked, _ := rl.check("k")
	assert.False(t, blocked)
}

func TestBackoffLimiter_IsolatesKeys(t *testing.T) {
	rl, _ := newTestLimiter(ipLimits)
	for i := 0; i < ipLimits.maxHits; i++ {
		rl.record("198.51.100.1")
	}
	blocked, _ := rl.check("198.51.100.1")
	assert.True(t, blocked)
	blocked, _ = rl.check("198.51.100.2")
	assert.False(t, blocked)
}

func TestBackoffLimiter_SweepRemovesExpired(t *testing.T) {
	rl, clock := newTestLimiter(loginLimits)
	rl.record("old")
	clock.advance(loginLimits.expiry + time.Second)
	rl.record("fresh")
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.attempts, "old")
	assert.Contains(t, rl.attempts, "fresh")
}

func TestWriteRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/account/login", nil)
	writeRateLimited(w, r, 1500*time.Millisecond)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote ipv4", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote ipv6", remoteAddr: "[::1]:8080", want: "::1"},
		{
			name:       "headers ignored without trusted proxies",
			remoteAddr: "192.168.1.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.25"},
			want:       "192.168.1.1",
		},
		{name: "empty when nothing parseable", remoteAddr: "not-a-hostport", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(r))
		})
	}
}

func TestExtractClientIPWithTrustedProxies(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	}
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "xff first valid wins",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.25, 203.0.113.9"},
			want:       "198.51.100.25",
		},
		{
			name:       "xff skips invalid entries",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "unknown, not-an-ip, 203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"Forwarded": `for=198.51.100.1;proto=https;by=203.0.113.43`},
			want:       "198.51.100.1",
		},
		{
			name:       "forwarded quoted ipv6",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"Forwarded": `for="[2001:db8::1]:4711"`},
			want:       "2001:db8::1",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.11"},
			want:       "203.0.113.11",
		},
		{
			name:       "ipv6 proxy trusted",
			remoteAddr: "[fd00::1]:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.5"},
			want:       "198.51.100.5",
		},
		{
			name:       "untrusted peer cannot spoof",
			remoteAddr: "192.168.1.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.25",
				"Forwarded":       "for=198.51.100.26",
				"X-Real-IP":       "198.51.100.27",
			},
			want: "192.168.1.1",
		},
		{
			name:       "trusted proxy without headers",
			remoteAddr: "10.0.0.1:80",
			want:       "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIPWithProxies(r, trusted))
		})
	}
}

func TestAPIExtractClientIPUsesConfiguredProxies(t *testing.T) {
	a := &API{trustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	r := &http.Request{
		RemoteAddr: "10.0.0.1:80",
		Header:     http.Header{"X-Forwarded-For": []string{"198.51.100.25"}},
	}
	assert.Equal(t, "198.51.100.25", a.extractClientIP(r))
}

func TestParseTrustedProxies(t *testing.T) {
	t.Run("cidrs and bare addresses", func(t *testing.T) {
		got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 10.1.2.3 ", "::1", ""})
		require.NoError(t, err)
		assert.Equal(t, []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("10.1.2.3/32"),
			netip.MustParsePrefix("::1/128"),
		}, got)
	})

	t.Run("host bits are masked", func(t *testing.T) {
		got, err := ParseTrustedProxies([]string{"172.16.5.4/12"})
		require.NoError(t, err)
		assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("172.16.0.0/12")}, got)
	})

	t.Run("invalid entry", func(t *testing.T) {
		_, err := ParseTrustedProxies([]string{"10.0.0.0/8", "garbage"})
		require.Error(t, err)
	})
}
