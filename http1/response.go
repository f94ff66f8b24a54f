/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package http1

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ContentTypeHTML is the content type of error pages.
const ContentTypeHTML = "text/html; charset=UTF-8"

// headers that WriteResponse sets itself
var managedHeaders = map[string]bool{
	"Content-Length": true,
	"Content-Type":   true,
	"Date":           true,
	"Connection":     true,
}

// now is replaced in tests.
var now = time.Now

// WriteResponse writes a complete response and announces that the connection will be closed.
// Content-Type is taken from header ("text/plain; charset=utf-8" if absent), the other header
// entries are written in lexical order of their names.
func WriteResponse(w io.Writer, status int, header http.Header, body []byte) error {
	bw := bufio.NewWriter(w)

	reason := http.StatusText(status)
	if reason == "" {
		reason = "Unknown"
	}
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, reason)

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	writeHeaderLine(bw, "Content-Length", strconv.Itoa(len(body)))
	writeHeaderLine(bw, "Content-Type", contentType)
	writeHeaderLine(bw, "Date", now().UTC().Format(http.TimeFormat))

	names := make([]string, 0, len(header))
	for name := range header {
		if !managedHeaders[http.CanonicalHeaderKey(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range header[name] {
			writeHeaderLine(bw, name, v)
		}
	}
	writeHeaderLine(bw, "Connection", "close")
	bw.WriteString("\r\n") // nolint: errcheck
	bw.Write(body)         // nolint: errcheck
	return bw.Flush()
}

// WriteHTMLError writes a minimal HTML page with the given title and message.
// Both are HTML-escaped.
func WriteHTMLError(w io.Writer, status int, title, message string) error {
	body := "<html><body><h1>" + html.EscapeString(title) + "</h1><p>" + html.EscapeString(message) + "</p></body></html>"
	return WriteResponse(w, status, http.Header{"Content-Type": {ContentTypeHTML}}, []byte(body))
}

func writeHeaderLine(bw *bufio.Writer, name, value string) {
	bw.WriteString(name)                       // nolint: errcheck
	bw.WriteString(": ")                       // nolint: errcheck
	bw.WriteString(sanitizeHeaderValue(value)) // nolint: errcheck
	bw.WriteString("\r\n")                     // nolint: errcheck
}

// sanitizeHeaderValue drops control characters (except HTAB) so a value can't split the header section.
func sanitizeHeaderValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || (r >= 0x20 && r != 0x7f) {
			return r
		}
		return -1
	}, v)
}
