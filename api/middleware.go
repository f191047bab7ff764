package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const tokenRecordKey contextKey = iota

// AuthMiddleware resolves the bearer access token and stores its token
// record on the request context. Missing, unknown or expired tokens get a
// 401 problem document.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeProblem(w, r, http.StatusUnauthorized, "")
			return
		}
		rec, ok := a.tokens.ByAccess(tokenDigest(token))
		if !ok || !a.now().Before(rec.AccessExpiresAt) {
			writeProblem(w, r, http.StatusUnauthorized, "")
			return
		}
		ctx := context.WithValue(r.Context(), tokenRecordKey, rec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenRecordFromContext(ctx context.Context) TokenRecord {
	rec, _ := ctx.Value(tokenRecordKey).(TokenRecord)
	return rec
}

func accountIDFromContext(ctx context.Context) string {
	return tokenRecordFromContext(ctx).AccountID
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
