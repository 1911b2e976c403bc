// Package middleware carries the huma middlewares shared by the HTTP
// surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/clickstream-go/internal/handlers"
)

// forwardedHeaders are the proxy headers the ingestion pipeline inspects,
// in its own trust order. The middleware only collects them.
var forwardedHeaders = []string{
	"Cf-Connecting-Ip",
	"X-Real-Ip",
	"X-Forwarded-For",
	"X-Client-Ip",
}

// RequestMeta is a middleware that captures the remote address, the
// forwarded IP headers, user-agent, and referrer for the ingestion
// pipeline.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		headers := make(http.Header, len(forwardedHeaders))

		for _, name := range forwardedHeaders {
			if value := ctx.Header(name); value != "" {
				headers.Set(name, value)
			}
		}

		meta := handlers.RequestMeta{
			RemoteIP:  remoteIP(ctx),
			Headers:   headers,
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// remoteIP falls back to the host part of the connection address. The
// forwarded headers take precedence inside the pipeline, so this is only
// the last candidate.
func remoteIP(ctx huma.Context) string {
	host := ctx.Host()
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}

	return host
}
