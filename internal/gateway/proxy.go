// ABOUTME: Reverse proxy forwarding authenticated requests to the upstream MCP server
// ABOUTME: Identity travels as headers; inbound copies of those headers are stripped

package gateway

import (
	"net/http"
	"net/http/httputil"

	"github.com/2389/authgate/internal/auth"
	"github.com/2389/authgate/internal/dispatch"
)

// Headers the gateway owns. Inbound values are always discarded so clients
// cannot spoof an identity past the proxy.
const (
	headerUserID          = "X-User-ID"
	headerAuthMethod      = "X-Auth-Method"
	headerDownstreamToken = "X-Downstream-Token"
)

// newProxy builds the reverse proxy to the upstream MCP server. It runs
// behind the dispatcher middleware, so the request context always carries a
// verified identity by the time Rewrite sees it.
func (g *Gateway) newProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(g.upstream)
			pr.SetXForwarded()

			out := pr.Out.Header
			out.Del(headerUserID)
			out.Del(headerAuthMethod)
			out.Del(headerDownstreamToken)

			// The gateway credential stays on this side of the proxy.
			out.Del("Authorization")

			if identity := auth.FromContext(pr.In.Context()); identity != nil {
				out.Set(headerUserID, identity.UserID)
				out.Set(headerAuthMethod, string(identity.Method))
			}
			if token, ok := dispatch.DownstreamTokenFromContext(pr.In.Context()); ok {
				out.Set(headerDownstreamToken, token)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.logger.Error("upstream proxy error", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
		},
	}
}
