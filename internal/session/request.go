package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
)

var bearerPattern = regexp.MustCompile(`(?i)^\s*bearer\s+(\S+)\s*$`)

// ExtractToken picks the session token from an Authorization header value,
// falling back to the token and access_token fields of query and then form.
func ExtractToken(authorization string, query, form url.Values) string {
	if m := bearerPattern.FindStringSubmatch(authorization); m != nil {
		return m[1]
	}
	for _, values := range []url.Values{query, form} {
		for _, key := range []string{"token", "access_token"} {
			if v := values.Get(key); v != "" {
				return v
			}
		}
	}
	return ""
}

// VerifyRequest extracts and verifies the token carried by r.
func (i *Issuer) VerifyRequest(r *http.Request) (*Claims, error) {
	var form url.Values
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if err := r.ParseForm(); err == nil {
			form = r.PostForm
		}
	}
	return i.Verify(ExtractToken(r.Header.Get("Authorization"), r.URL.Query(), form))
}

type claimsKey struct{}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// ErrorWriter renders a token verification failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests without a valid session token and passes
// verified claims to next through the request context. A nil onError
// answers 401 with a small JSON body.
func (i *Issuer) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = writeUnauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := i.VerifyRequest(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
