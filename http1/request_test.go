/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package http1

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStream serves the configured reads one by one and records everything written to it.
type fakeStream struct {
	reads   [][]byte
	readErr error
	written bytes.Buffer
	nReads  int
}

func newFakeStream(data string) *fakeStream {
	return &fakeStream{reads: [][]byte{[]byte(data)}}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	for len(s.reads) > 0 && len(s.reads[0]) == 0 {
		s.reads = s.reads[1:]
	}
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return 0, s.readErr
		}
		return 0, io.EOF
	}
	s.nReads++
	n := copy(p, s.reads[0])
	s.reads[0] = s.reads[0][n:]
	return n, nil
}

func (s *fakeStream) Write(p []byte) (int, error) {
	return s.written.Write(p)
}

func TestParseRequest(t *testing.T) {
	t.Run("request with body", func(t *testing.T) {
		stream := newFakeStream("POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")
		req, err := ParseRequest(stream, 1024)
		require.NoError(t, err)
		require.Equal(t, "POST", req.Method)
		require.Equal(t, "/submit", req.Path)
		require.Equal(t, map[string]string{"host": "x", "content-length": "5"}, req.Headers)
		require.Equal(t, "hello", req.Body)
		require.Zero(t, stream.written.Len())
	})

	t.Run("body arrives in later reads", func(t *testing.T) {
		stream := &fakeStream{reads: [][]byte{
			[]byte("PUT /f HTTP/1.1\r\nContent-Length: 1000\r\n\r\n"),
			bytes.Repeat([]byte("a"), 600),
			bytes.Repeat([]byte("b"), 400),
		}}
		req, err := ParseRequest(stream, 4096)
		require.NoError(t, err)
		require.Len(t, req.Body, 1000)
		require.True(t, strings.HasSuffix(req.Body, "b"))
	})

	t.Run("terminator split between reads", func(t *testing.T) {
		stream := &fakeStream{reads: [][]byte{[]byte("GET / HTTP/1.1\r\nA: b\r\n\r"), []byte("\n")}}
		req, err := ParseRequest(stream, 100)
		require.NoError(t, err)
		require.Equal(t, "b", req.Headers["a"])
		require.Equal(t, "", req.Body)
	})

	t.Run("header names are lower-cased and values trimmed", func(t *testing.T) {
		stream := newFakeStream("GET /x HTTP/1.1\r\nX-Custom-Header:   some value  \r\nHOST: a:8080\r\n\r\n")
		req, err := ParseRequest(stream, 100)
		require.NoError(t, err)
		require.Equal(t, "some value", req.Headers["x-custom-header"])
		require.Equal(t, "a:8080", req.Headers["host"])
		v, ok := req.Header("X-CUSTOM-HEADER")
		require.True(t, ok)
		require.Equal(t, "some value", v)
	})

	t.Run("repeated header keeps last value", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("GET / HTTP/1.1\r\nAccept: a\r\naccept: b\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, "b", req.Headers["accept"])
	})

	t.Run("lines without colon are skipped", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("GET / HTTP/1.1\r\ngarbage line\r\nHost: h\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"host": "h"}, req.Headers)
	})

	t.Run("defaults for empty request line", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, "", req.Method)
		require.Equal(t, "/", req.Path)

		req, err = ParseRequest(newFakeStream("DELETE\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, "DELETE", req.Method)
		require.Equal(t, "/", req.Path)
	})

	t.Run("invalid UTF-8 in header is replaced", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("GET /\xff HTTP/1.1\r\nX: \xfe\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, "/�", req.Path)
		require.Equal(t, "�", req.Headers["x"])
	})

	t.Run("invalid UTF-8 body becomes empty", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\n\xff\xfe"), 100)
		require.NoError(t, err)
		require.Equal(t, "", req.Body)
	})

	t.Run("no content-length takes trailing bytes only", func(t *testing.T) {
		stream := &fakeStream{reads: [][]byte{[]byte("POST / HTTP/1.1\r\n\r\nabc"), []byte("never read")}}
		req, err := ParseRequest(stream, 100)
		require.NoError(t, err)
		require.Equal(t, "abc", req.Body)
		require.Equal(t, 1, stream.nReads)
	})

	t.Run("invalid content-length is ignored", func(t *testing.T) {
		for _, cl := range []string{"abc", "-1", "1.5"} {
			req, err := ParseRequest(newFakeStream("POST / HTTP/1.1\r\nContent-Length: "+cl+"\r\n\r\nxy"), 100)
			require.NoError(t, err, cl)
			require.Equal(t, "xy", req.Body, cl)
		}
	})

	t.Run("bytes past content-length are dropped", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcdef"), 100)
		require.NoError(t, err)
		require.Equal(t, "abc", req.Body)
	})

	t.Run("zero content-length", func(t *testing.T) {
		req, err := ParseRequest(newFakeStream("POST / HTTP/1.1\r\nContent-Length: 0\r\n\r\n"), 100)
		require.NoError(t, err)
		require.Equal(t, "", req.Body)
	})
}

func TestParseRequest_Errors(t *testing.T) {
	t.Run("connection closed before terminator", func(t *testing.T) {
		stream := newFakeStream("GET / HTTP/1.1\r\nHost: x\r\n")
		_, err := ParseRequest(stream, 100)
		require.ErrorIs(t, err, ErrConnectionClosed)
		require.Zero(t, stream.written.Len())
	})

	t.Run("nothing received", func(t *testing.T) {
		_, err := ParseRequest(newFakeStream(""), 100)
		require.ErrorIs(t, err, ErrConnectionClosed)
	})

	t.Run("read error", func(t *testing.T) {
		stream := newFakeStream("GET / HT")
		stream.readErr = errors.New("connection reset by peer")
		_, err := ParseRequest(stream, 100)
		require.ErrorIs(t, err, ErrMalformed)
		require.Zero(t, stream.written.Len())
	})

	t.Run("header section without terminator exceeds limit", func(t *testing.T) {
		stream := newFakeStream("GET / HTTP/1.1\r\nX: " + strings.Repeat("a", MaxHeaderBytes+100))
		_, err := ParseRequest(stream, 10)
		require.ErrorIs(t, err, ErrTooLarge)
		require.True(t, strings.HasPrefix(stream.written.String(), "HTTP/1.1 413 Request Entity Too Large\r\n"))
		require.Contains(t, stream.written.String(), "<h1>Payload Too Large</h1>")
	})

	t.Run("declared content-length above limit", func(t *testing.T) {
		stream := newFakeStream("POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\n")
		_, err := ParseRequest(stream, 10)
		require.ErrorIs(t, err, ErrTooLarge)
		require.Contains(t, stream.written.String(), " 413 ")
	})

	t.Run("declared content-length above limit is answered before a short body", func(t *testing.T) {
		stream := newFakeStream("POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n" + strings.Repeat("b", 40))
		_, err := ParseRequest(stream, 50)
		require.ErrorIs(t, err, ErrTooLarge)
		require.NotErrorIs(t, err, ErrIncompleteBody)
		resp := stream.written.String()
		require.True(t, strings.HasPrefix(resp, "HTTP/1.1 413 Request Entity Too Large\r\n"))
		require.NotContains(t, resp, "Incomplete body")
		require.Equal(t, 1, stream.nReads, "body must not be read")
	})

	t.Run("trailing bytes without content-length above limit", func(t *testing.T) {
		stream := newFakeStream("POST / HTTP/1.1\r\n\r\n" + strings.Repeat("z", 11))
		_, err := ParseRequest(stream, 10)
		require.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("incomplete body", func(t *testing.T) {
		stream := newFakeStream("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
		_, err := ParseRequest(stream, 100)
		require.ErrorIs(t, err, ErrIncompleteBody)
		resp := stream.written.String()
		require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request\r\n"))
		require.True(t, strings.HasSuffix(resp, "<html><body><h1>Bad Request</h1><p>Incomplete body</p></body></html>"))
	})

	t.Run("read error while reading body", func(t *testing.T) {
		stream := newFakeStream("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
		stream.readErr = errors.New("i/o timeout")
		_, err := ParseRequest(stream, 100)
		require.ErrorIs(t, err, ErrMalformed)
	})
}
