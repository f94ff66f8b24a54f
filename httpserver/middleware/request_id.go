/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/rs/xid"
)

const headerRequestID = "X-Request-ID"

// RequestID is a middleware that takes the request id from the X-Request-ID header or generates a new one (xid).
// The id is put into the request's context and returned in the X-Request-ID response header.
func RequestID() func(next http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string { return xid.New().String() })
}

// RequestIDWithGenerator is like RequestID but uses the given id generator.
func RequestIDWithGenerator(generateID func() string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(headerRequestID)
			if requestID == "" {
				requestID = generateID()
			}
			rw.Header().Set(headerRequestID, requestID)
			next.ServeHTTP(rw, r.WithContext(NewContextWithRequestID(r.Context(), requestID)))
		})
	}
}
