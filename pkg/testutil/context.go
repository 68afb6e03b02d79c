package testutil

import (
	"net/http"

	"tessera/pkg/domain"
	"tessera/pkg/requestcontext"
)

// WithParty adds the caller to the request context, as the auth middleware
// would for a bearer token.
func WithParty(req *http.Request, party domain.PartyID) *http.Request {
	return req.WithContext(requestcontext.WithPartyID(req.Context(), party))
}

// AsParty is a router middleware that authenticates every request as party.
func AsParty(party domain.PartyID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithParty(r, party))
		})
	}
}
