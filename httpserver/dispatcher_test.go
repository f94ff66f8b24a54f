/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/http1"
	"github.com/acronis/go-rawhttp/log/logtest"
	"github.com/acronis/go-rawhttp/testutil"
)

// exchange runs ServeConn for a real TCP connection and returns what the client received.
func exchange(t *testing.T, d *Dispatcher, rawRequest string, closeWrite bool) *http.Response {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close() // nolint: errcheck

	served := make(chan struct{})
	go func() {
		defer close(served)
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		d.ServeConn(conn)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close() // nolint: errcheck
	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(client, rawRequest)
	require.NoError(t, err)
	if closeWrite {
		require.NoError(t, client.(*net.TCPConn).CloseWrite())
	}

	data, err := io.ReadAll(client)
	require.NoError(t, err)
	<-served

	if len(data) == 0 {
		return nil
	}
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(string(data))), nil)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

type limiterMock struct {
	allow bool
	err   error
	keys  []string
}

func (m *limiterMock) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.keys = append(m.keys, key)
	return m.allow, time.Second, m.err
}

func echoHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw := GetRawRequestFromContext(r.Context())
		rw.Header().Set("X-Method", r.Method)
		rw.Header().Set("X-Path", r.URL.Path)
		rw.Header().Set("X-Query", r.URL.RawQuery)
		rw.Header().Set("X-Host", r.Host)
		if raw != nil {
			rw.Header().Set("X-Raw-Path", raw.Path)
		}
		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write(body)
	})
}

func TestDispatcher_ServeConn(t *testing.T) {
	t.Run("request is passed to the handler", func(t *testing.T) {
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{
			MaxBodySize:       1024,
			Metrics:           metrics,
			GenerateSessionID: func() string { return "sid" },
		})
		resp := exchange(t, d, "post /items?id=1 HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello", false)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "POST", resp.Header.Get("X-Method"))
		require.Equal(t, "/items", resp.Header.Get("X-Path"))
		require.Equal(t, "id=1", resp.Header.Get("X-Query"))
		require.Equal(t, "example.com", resp.Header.Get("X-Host"))
		require.Equal(t, "/items?id=1", resp.Header.Get("X-Raw-Path"))
		require.Equal(t, "session_id=sid; HttpOnly; Path=/", resp.Header.Get("Set-Cookie"))
		require.Equal(t, "close", resp.Header.Get("Connection"))
		require.Equal(t, "hello", readBody(t, resp))
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeServed), 1)
	})

	t.Run("no session cookie when request has cookies", func(t *testing.T) {
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024})
		resp := exchange(t, d, "GET / HTTP/1.1\r\nCookie: a=b\r\n\r\n", false)
		require.NotNil(t, resp)
		require.Empty(t, resp.Header.Get("Set-Cookie"))
	})

	t.Run("rate limited client gets 429 and handler is not called", func(t *testing.T) {
		called := false
		handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { called = true })
		limiter := &limiterMock{allow: false}
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(handler, logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024, Limiter: limiter, Metrics: metrics})

		resp := exchange(t, d, "GET / HTTP/1.1\r\n\r\n", false)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.Equal(t, http1.ContentTypeHTML, resp.Header.Get("Content-Type"))
		require.Equal(t,
			"<html><body><h1>Too Many Requests</h1><p>Too many requests. Please wait a moment.</p></body></html>",
			readBody(t, resp))
		require.False(t, called)
		require.Equal(t, []string{"127.0.0.1"}, limiter.keys)
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeRateLimited), 1)
	})

	t.Run("limiter error admits request", func(t *testing.T) {
		limiter := &limiterMock{allow: false, err: errors.New("storage is down")}
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024, Limiter: limiter})
		resp := exchange(t, d, "GET / HTTP/1.1\r\n\r\n", false)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("declared body too large", func(t *testing.T) {
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{MaxBodySize: 4, Metrics: metrics})
		resp := exchange(t, d, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello", false)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeTooLarge), 1)
	})

	t.Run("incomplete body", func(t *testing.T) {
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024, Metrics: metrics})
		resp := exchange(t, d, "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nhello", true)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeIncompleteBody), 1)
	})

	t.Run("connection closed before headers end", func(t *testing.T) {
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(echoHandler(), logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024, Metrics: metrics})
		resp := exchange(t, d, "GET / HTTP/1.1\r\nHost: x", true)
		require.Nil(t, resp)
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeClosed), 1)
	})

	t.Run("aborted handler gets no response", func(t *testing.T) {
		handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { panic(http.ErrAbortHandler) })
		metrics := NewConnectionMetrics("")
		d := NewDispatcher(handler, logtest.NewLogger(), DispatcherOpts{MaxBodySize: 1024, Metrics: metrics})
		resp := exchange(t, d, "GET / HTTP/1.1\r\n\r\n", false)
		require.Nil(t, resp)
		testutil.RequireCounterValue(t, metrics.Connections.WithLabelValues(OutcomeAborted), 1)
	})
}

func TestClientIP(t *testing.T) {
	require.Equal(t, "10.0.0.1", ClientIP(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5555}))
	require.Equal(t, "::1", ClientIP(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 5555}))
	require.Equal(t, UnknownClientIP, ClientIP(&net.TCPAddr{}))
	require.Equal(t, UnknownClientIP, ClientIP(nil))
	require.Equal(t, UnknownClientIP, ClientIP(&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}))
	require.Equal(t, "192.168.1.2", ClientIP(&net.UDPAddr{IP: net.ParseIP("192.168.1.2"), Port: 53}))
}

func TestBufferedResponseWriter(t *testing.T) {
	rw := newBufferedResponseWriter()
	rw.Header().Set("X-Custom", "1")
	_, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	rw.WriteHeader(http.StatusNotFound) // ignored after the first write
	require.Equal(t, http.StatusOK, rw.Status())

	var sb strings.Builder
	require.NoError(t, rw.writeTo(&sb))
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(sb.String())), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("X-Custom"))
	require.EqualValues(t, 3, resp.ContentLength)
	require.Equal(t, "abc", readBody(t, resp))
}
