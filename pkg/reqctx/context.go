package reqctx

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey int

const (
	keyRequestMeta ctxKey = iota
	keyPrincipal
)

// RequestMeta is attached by the request id middleware before routing.
type RequestMeta struct {
	RequestID string
	ClientIP  string
	UserAgent string
	StartedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, keyRequestMeta, meta)
}

// RequestMetaFromContext returns nil outside an HTTP request.
func RequestMetaFromContext(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(keyRequestMeta).(*RequestMeta)
	return meta
}

func RequestIDFromContext(ctx context.Context) string {
	if meta := RequestMetaFromContext(ctx); meta != nil {
		return meta.RequestID
	}
	return ""
}

// LogAttrs returns the request id and caller identity carried by ctx, for
// handlers that stamp them onto every record.
func LogAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if p := PrincipalFromContext(ctx); p != nil {
		attrs = append(attrs,
			slog.String("identity_id", p.IdentityID.String()),
			slog.String("role", p.Role),
		)
	}
	return attrs
}
