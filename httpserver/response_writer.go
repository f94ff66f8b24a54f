/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"bytes"
	"io"
	"net/http"

	"github.com/acronis/go-rawhttp/http1"
)

// bufferedResponseWriter collects the whole response in memory.
// Since every connection carries a single exchange, the response is written to the wire only after
// the handler returns, which lets http1.WriteResponse announce the exact Content-Length.
type bufferedResponseWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

var _ http.ResponseWriter = (*bufferedResponseWriter)(nil)

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header), status: http.StatusOK}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.header
}

func (w *bufferedResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode
}

func (w *bufferedResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// Status returns the status code of the response (200 if the handler has not set it).
func (w *bufferedResponseWriter) Status() int {
	return w.status
}

func (w *bufferedResponseWriter) writeTo(out io.Writer) error {
	return http1.WriteResponse(out, w.status, w.header, w.body.Bytes())
}
