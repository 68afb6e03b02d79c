// Package requestcontext provides HTTP-independent accessors for request-scoped values.
//
// Middleware sets the values and services read them, so services never import
// net/http to learn who is calling.
//
// Usage in services:
//
//	caller := requestcontext.PartyID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPartyID(ctx, investor)
package requestcontext

import (
	"context"
	"time"

	"tessera/pkg/domain"
)

type (
	partyIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	adminKey       struct{}
)

// PartyID returns the authenticated caller, or the nil ID.
func PartyID(ctx context.Context) domain.PartyID {
	if p, ok := ctx.Value(partyIDKey{}).(domain.PartyID); ok {
		return p
	}
	return domain.PartyID{}
}

// WithPartyID injects the authenticated caller.
func WithPartyID(ctx context.Context, party domain.PartyID) context.Context {
	return context.WithValue(ctx, partyIDKey{}, party)
}

// IsAdmin reports whether the request passed the admin token check.
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey{}).(bool)
	return v
}

// WithAdmin marks the request as admin-authenticated.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

// RequestID returns the correlation ID for the request.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers and tests that never set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request-scoped time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
