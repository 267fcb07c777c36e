package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

var nop = zap.NewNop()

// ContextWithLogger returns ctx carrying l. The HTTP middleware stores the
// request logger this way; use cases read it back with FromContext.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With returns ctx whose logger has fields added to the ones it already carries.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}

// FromContext returns the request logger, or a no-op logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return nop
}
