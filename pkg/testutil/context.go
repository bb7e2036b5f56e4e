package testutil

import (
	"context"
	"net/http"
	"time"

	id "claimdesk/pkg/domain"
	"claimdesk/pkg/requestcontext"
)

// WithActor adds an acting user to the request context. This simulates what
// the actor middleware would do for an attributed request. An invalid UUID is
// silently ignored.
func WithActor(req *http.Request, userID string) *http.Request {
	if actorID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
	}
	return req
}

// WithRequestID adds a correlation ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithFrozenTime pins the request clock so timestamps in the response are
// predictable.
func WithFrozenTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
