// ABOUTME: HTTP middleware binding dispatch to bearer-token requests.
// ABOUTME: Rejections surface as a generic 401 JSON body.

package dispatch

import (
	"net/http"
	"strings"
)

// unauthorizedBody is the fixed 401 payload. No rejection reason leaks to
// the client.
const unauthorizedBody = `{"error":"authentication failed"}`

// Middleware authenticates bearer requests before invoking next. On success
// the request context carries the identity and, if the route declared a
// resource type, the resolved downstream token.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := ExtractBearerToken(r)
		identity, downstream, ok := d.establish(r.Context(), credential, r.URL.Path)
		if !ok {
			writeUnauthorized(w)
			return
		}
		ctx := WithIdentityAndToken(r.Context(), identity, downstream)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractBearerToken pulls the token from the Authorization header. Returns
// "" when the header is missing or not a bearer scheme.
func ExtractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(unauthorizedBody))
}
