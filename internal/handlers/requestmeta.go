package handlers

import (
	"context"
	"net/http"
)

type requestMetaKey struct{}

// RequestMeta holds the client-facing request facts the ingestion
// pipeline enriches from. Headers carries the proxy-forwarded IP headers
// verbatim so the pipeline's own trust ordering applies.
type RequestMeta struct {
	RemoteIP  string
	Headers   http.Header
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
