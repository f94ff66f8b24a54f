/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-rawhttp/http1"
	"github.com/acronis/go-rawhttp/internal/ratelimit"
	"github.com/acronis/go-rawhttp/log"
)

// UnknownClientIP is used as a rate limiting key when the peer address cannot be determined.
const UnknownClientIP = "0.0.0.0"

// Limits of draining a connection before it's closed.
const (
	lingerTimeout         = 500 * time.Millisecond
	lingerMaxDiscardBytes = 256 << 10
)

// DefaultSessionCookieName is the name of the cookie issued to clients that send no cookies.
const DefaultSessionCookieName = "session_id"

type ctxKey int

const ctxKeyRawRequest ctxKey = iota

// NewContextWithRawRequest creates a new context with the request parsed off the wire.
func NewContextWithRawRequest(ctx context.Context, req *http1.Request) context.Context {
	return context.WithValue(ctx, ctxKeyRawRequest, req)
}

// GetRawRequestFromContext extracts the request parsed off the wire from the context.
func GetRawRequestFromContext(ctx context.Context) *http1.Request {
	req, _ := ctx.Value(ctxKeyRawRequest).(*http1.Request)
	return req
}

// DispatcherOpts represents options for creating Dispatcher.
type DispatcherOpts struct {
	// Limiter is consulted before a request is read. Nil disables rate limiting.
	Limiter ratelimit.Limiter
	// MaxBodySize is the maximum size of the request body in bytes.
	MaxBodySize int
	// SessionCookieName is DefaultSessionCookieName if empty.
	SessionCookieName string
	// GenerateSessionID is xid-based if nil.
	GenerateSessionID func() string
	Metrics           *ConnectionMetrics
}

// Dispatcher serves a single request/response exchange on an accepted connection.
type Dispatcher struct {
	handler           http.Handler
	logger            log.FieldLogger
	limiter           ratelimit.Limiter
	maxBodySize       int
	sessionCookieName string
	generateSessionID func() string
	metrics           *ConnectionMetrics
}

// NewDispatcher creates a new Dispatcher that passes parsed requests to the handler.
func NewDispatcher(handler http.Handler, logger log.FieldLogger, opts DispatcherOpts) *Dispatcher {
	d := &Dispatcher{
		handler:           handler,
		logger:            logger,
		limiter:           opts.Limiter,
		maxBodySize:       opts.MaxBodySize,
		sessionCookieName: opts.SessionCookieName,
		generateSessionID: opts.GenerateSessionID,
		metrics:           opts.Metrics,
	}
	if d.sessionCookieName == "" {
		d.sessionCookieName = DefaultSessionCookieName
	}
	if d.generateSessionID == nil {
		d.generateSessionID = func() string { return xid.New().String() }
	}
	return d
}

// ServeConn handles one request on the connection and closes it.
// Admission is checked before anything is read, so a rejected client gets 429 even for a malformed request.
func (d *Dispatcher) ServeConn(conn net.Conn) {
	defer d.closeConn(conn)

	clientIP := ClientIP(conn.RemoteAddr())
	logger := d.logger.With(log.String("client_ip", clientIP))

	if d.limiter != nil {
		allow, retryAfter, err := d.limiter.Allow(context.Background(), clientIP)
		switch {
		case err != nil:
			logger.Error("rate limiter failed, request is admitted", log.Error(err))
		case !allow:
			d.metrics.observe(OutcomeRateLimited)
			logger.Warn("too many requests", log.Duration("retry_after", retryAfter))
			d.writeError(conn, logger, http.StatusTooManyRequests,
				"Too Many Requests", "Too many requests. Please wait a moment.")
			return
		}
	}

	req, err := http1.ParseRequest(conn, d.maxBodySize)
	if err != nil {
		d.handleParseError(conn, logger, err)
		return
	}

	httpReq := newHTTPRequest(req, conn.RemoteAddr())
	rw := newBufferedResponseWriter()
	if _, hasCookie := req.Header("cookie"); !hasCookie {
		rw.Header().Add("Set-Cookie",
			fmt.Sprintf("%s=%s; HttpOnly; Path=/", d.sessionCookieName, d.generateSessionID()))
	}

	if aborted := d.serveHTTP(rw, httpReq); aborted {
		d.metrics.observe(OutcomeAborted)
		logger.Warn("request handling has been aborted", log.String("method", httpReq.Method), log.String("path", req.Path))
		return
	}

	if err = rw.writeTo(conn); err != nil {
		logger.Warn("writing response failed", log.Error(err))
	}
	d.metrics.observe(OutcomeServed)
	logger.Debug("request served",
		log.String("method", httpReq.Method), log.String("path", req.Path), log.Int("status", rw.Status()))
}

// closeConn half-closes the connection and discards what the client is still sending before closing it.
// Closing a socket with unread input makes the kernel reset the connection, and the client may lose
// a response (e.g. 429 or 413) written before the request was read.
func (d *Dispatcher) closeConn(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
			_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerMaxDiscardBytes))
		}
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		d.logger.Debug("closing connection failed", log.Error(err))
	}
}

// serveHTTP calls the handler. A handler panicking with http.ErrAbortHandler gets no response written.
// Other panics are propagated.
func (d *Dispatcher) serveHTTP(rw http.ResponseWriter, r *http.Request) (aborted bool) {
	defer func() {
		if p := recover(); p != nil {
			if p != http.ErrAbortHandler { //nolint:errorlint
				panic(p)
			}
			aborted = true
		}
	}()
	d.handler.ServeHTTP(rw, r)
	return false
}

func (d *Dispatcher) handleParseError(conn net.Conn, logger log.FieldLogger, err error) {
	switch {
	case errors.Is(err, http1.ErrConnectionClosed):
		d.metrics.observe(OutcomeClosed)
		logger.Debug("connection closed by client before request was complete")
	case errors.Is(err, http1.ErrTooLarge):
		d.metrics.observe(OutcomeTooLarge)
		logger.Warn("request is too large", log.Int("max_body_size", d.maxBodySize))
	case errors.Is(err, http1.ErrIncompleteBody):
		d.metrics.observe(OutcomeIncompleteBody)
		logger.Warn("request body is incomplete")
	default:
		d.metrics.observe(OutcomeMalformed)
		logger.Warn("malformed request", log.Error(err))
		d.writeError(conn, logger, http.StatusBadRequest, "Bad Request", "Error parsing the request.")
	}
}

func (d *Dispatcher) writeError(w io.Writer, logger log.FieldLogger, status int, title, message string) {
	if err := http1.WriteHTMLError(w, status, title, message); err != nil {
		logger.Debug("writing error response failed", log.Int("status", status), log.Error(err))
	}
}

// ClientIP returns the IP of the peer or UnknownClientIP.
func ClientIP(addr net.Addr) string {
	if addr == nil {
		return UnknownClientIP
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		if tcpAddr.IP == nil {
			return UnknownClientIP
		}
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil || net.ParseIP(host) == nil {
		return UnknownClientIP
	}
	return host
}

func newHTTPRequest(req *http1.Request, remoteAddr net.Addr) *http.Request {
	u, err := url.ParseRequestURI(req.Path)
	if err != nil {
		u = &url.URL{Path: req.Path}
	}

	header := make(http.Header, len(req.Headers))
	for name, value := range req.Headers {
		header.Set(name, value)
	}

	r := &http.Request{
		Method:        strings.ToUpper(req.Method),
		URL:           u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(req.Body)),
		ContentLength: int64(len(req.Body)),
		Host:          header.Get("Host"),
		RequestURI:    req.Path,
		Close:         true,
	}
	if remoteAddr != nil {
		r.RemoteAddr = remoteAddr.String()
	}
	return r.WithContext(NewContextWithRawRequest(context.Background(), req))
}
