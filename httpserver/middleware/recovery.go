/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/restapi"
)

// RecoveryDefaultStackSize defines the default size of stack part which will be logged.
const RecoveryDefaultStackSize = 8192

// Recovery is a middleware that recovers from panics of the next handlers, logs the panic value with a stacktrace
// and responds with a 500 error page.
func Recovery() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				logger := GetLoggerFromContext(r.Context())
				if p == http.ErrAbortHandler { //nolint:errorlint
					// Sentinel panic for aborting a handler; keep propagating it.
					if logger != nil {
						logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
					}
					panic(p)
				}
				if logger != nil {
					stack := make([]byte, RecoveryDefaultStackSize)
					stack = stack[:runtime.Stack(stack, false)]
					logger.Error(fmt.Sprintf("Panic: %+v", p), log.Bytes("stack", stack))
				}
				restapi.RespondHTMLError(rw, http.StatusInternalServerError,
					"Internal Server Error", "The server failed to process the request.", logger)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
