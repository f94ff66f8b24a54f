/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package http1

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	readChunkSize = 512

	// MaxHeaderBytes is the allowance for the request line and headers on top of the body limit.
	MaxHeaderBytes = 8192
)

var headerTerminator = []byte("\r\n\r\n")

// Errors returned by ParseRequest. The responses for ErrTooLarge and ErrIncompleteBody
// are already written to the stream when they are returned.
var (
	ErrMalformed        = errors.New("malformed request")
	ErrTooLarge         = errors.New("request too large")
	ErrIncompleteBody   = errors.New("incomplete request body")
	ErrConnectionClosed = errors.New("connection closed before request was complete")
)

// Request is a parsed HTTP request.
type Request struct {
	Method string
	Path   string
	// Headers are keyed by lower-cased names. A repeated header keeps the last value.
	Headers map[string]string
	// Body is empty when the received body is not valid UTF-8.
	Body string
}

// Header returns the value of the header with the given case-insensitive name.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// ParseRequest reads one request from the stream.
// The whole request may not exceed maxBodySize+MaxHeaderBytes bytes and the body may not exceed maxBodySize.
func ParseRequest(stream io.ReadWriter, maxBodySize int) (*Request, error) {
	buf, headerEnd, err := readHeader(stream, maxBodySize+MaxHeaderBytes)
	if err != nil {
		return nil, err
	}

	req := parseHeader(buf[:headerEnd])
	body := buf[headerEnd+len(headerTerminator):]

	contentLength, hasContentLength := parseContentLength(req.Headers)
	if hasContentLength {
		if contentLength > maxBodySize {
			writeTooLarge(stream)
			return nil, ErrTooLarge
		}
		if body, err = readBody(stream, body, contentLength, maxBodySize); err != nil {
			return nil, err
		}
	} else if len(body) > maxBodySize {
		writeTooLarge(stream)
		return nil, ErrTooLarge
	}

	if utf8.Valid(body) {
		req.Body = string(body)
	}
	return req, nil
}

// readHeader reads the stream until the header terminator and returns everything read so far
// together with the terminator position.
func readHeader(stream io.ReadWriter, limit int) (buf []byte, headerEnd int, err error) {
	chunk := make([]byte, readChunkSize)
	for {
		n, readErr := stream.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if len(buf) > limit {
			writeTooLarge(stream)
			return nil, 0, ErrTooLarge
		}
		// The terminator may straddle two reads, so look a few bytes back.
		from := len(buf) - n - len(headerTerminator) + 1
		if from < 0 {
			from = 0
		}
		if idx := bytes.Index(buf[from:], headerTerminator); idx >= 0 {
			return buf, from + idx, nil
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil, 0, ErrConnectionClosed
			}
			return nil, 0, ErrMalformed
		}
	}
}

func parseHeader(header []byte) *Request {
	text := strings.ToValidUTF8(string(header), string(utf8.RuneError))
	lines := strings.Split(text, "\n")

	req := &Request{Path: "/", Headers: make(map[string]string)}
	fields := strings.Fields(strings.TrimSuffix(lines[0], "\r"))
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.Path = fields[1]
	}
	for _, line := range lines[1:] {
		name, value, found := strings.Cut(strings.TrimSuffix(line, "\r"), ":")
		if !found {
			continue
		}
		req.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return req
}

func parseContentLength(headers map[string]string) (int, bool) {
	v, ok := headers["content-length"]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// readBody reads until the body has contentLength bytes. Extra bytes are dropped.
func readBody(stream io.ReadWriter, body []byte, contentLength, maxBodySize int) ([]byte, error) {
	chunk := make([]byte, readChunkSize)
	for len(body) < contentLength {
		n, err := stream.Read(chunk)
		body = append(body, chunk[:n]...)
		if len(body) > maxBodySize {
			writeTooLarge(stream)
			return nil, ErrTooLarge
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, ErrMalformed
		}
	}
	if len(body) < contentLength {
		_ = WriteHTMLError(stream, http.StatusBadRequest, "Bad Request", "Incomplete body")
		return nil, ErrIncompleteBody
	}
	return body[:contentLength], nil
}

func writeTooLarge(w io.Writer) {
	_ = WriteHTMLError(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "The request is too large.")
}
