/*
Copyright © 2019-2024 Acronis International GmbH.
*/

// Package restapi contains helpers for writing JSON and HTML responses from HTTP handlers.
package restapi

import (
	"bytes"
	"encoding/json"
	"html"
	"net/http"

	"github.com/acronis/go-rawhttp/log"
)

// Content types used in responses.
const (
	ContentTypeAppJSON = "application/json"
	ContentTypeHTML    = "text/html; charset=UTF-8"
)

// Does JSON marshaling with disabled HTML escaping
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}

// RespondJSON sends response with 200 HTTP status code and JSON-encoded data in body.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON sends a response with the passed status code and JSON-encoded data in body.
// "Content-Type" is set to "application/json" if it's not already set.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	respJSON, err := jsonMarshal(respData)
	if err != nil {
		if logger != nil {
			logger.Error("error while marshaling json for response body", log.Error(err))
		}
		RespondHTMLError(rw, http.StatusInternalServerError, "Internal Server Error", "Failed to encode response.", logger)
		return
	}

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}
	rw.WriteHeader(statusCode)
	if _, err = rw.Write(respJSON); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// RespondHTML sends an HTML page. The page is written as is, escaping is up to the caller.
func RespondHTML(rw http.ResponseWriter, statusCode int, page string, logger log.FieldLogger) {
	rw.Header().Set("Content-Type", ContentTypeHTML)
	rw.WriteHeader(statusCode)
	if _, err := rw.Write([]byte(page)); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// RespondHTMLError sends a minimal error page with escaped title and message.
func RespondHTMLError(rw http.ResponseWriter, statusCode int, title, message string, logger log.FieldLogger) {
	page := "<html><body><h1>" + html.EscapeString(title) + "</h1><p>" + html.EscapeString(message) + "</p></body></html>"
	RespondHTML(rw, statusCode, page, logger)
}
