// Package requestid carries the request correlation id through context.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

const Header = "X-Correlation-ID"

type ctxKey struct{}

// With returns ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id stored in ctx, or "" if there is none.
func From(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Ensure returns ctx with an id, generating one when missing.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return With(ctx, id), id
}
