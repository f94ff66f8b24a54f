/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package webapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-rawhttp/httpserver/middleware"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/restapi"
)

// AllowedMethods is the list of methods served by the application.
const AllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"

const contentTypeOctetStream = "application/octet-stream"

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Handler serves the application endpoints.
type Handler struct {
	publicDir string
	mimeTypes map[string]string
	logger    log.FieldLogger
	now       func() time.Time
}

// NewHandler creates a new Handler. The public directory is resolved to an absolute path.
func NewHandler(cfg *Config, logger log.FieldLogger) (*Handler, error) {
	publicDir, err := filepath.Abs(cfg.PublicDir)
	if err != nil {
		return nil, fmt.Errorf("resolve public directory %q: %w", cfg.PublicDir, err)
	}
	return &Handler{publicDir: publicDir, mimeTypes: cfg.MimeTypes, logger: logger, now: time.Now}, nil
}

// Register registers the application routes in the router.
func (h *Handler) Register(router chi.Router) {
	router.Get("/api/status", h.getStatus)
	router.Post("/upload", h.postUpload)
	router.Get("/*", h.getFile)
	router.Post("/*", h.postEcho)
	router.Put("/*", h.putFile)
	router.Delete("/*", h.deleteFile)
	router.Options("/*", h.options)
	router.MethodNotAllowed(h.methodNotAllowed)
}

func (h *Handler) getLogger(r *http.Request) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return h.logger
}

func (h *Handler) getStatus(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(rw, StatusResponse{Status: "ok", Time: h.now().UTC().Format(time.RFC3339)}, h.getLogger(r))
}

func (h *Handler) postUpload(rw http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.postEcho(rw, r)
		return
	}
	restapi.RespondJSON(rw, map[string]string{"upload": "received"}, h.getLogger(r))
}

func (h *Handler) getFile(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)

	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index.html"
	}
	filePath, ok := resolveSafePath(h.publicDir, urlPath)
	if !ok || !isRegularFile(filePath) {
		restapi.RespondHTMLError(rw, http.StatusNotFound, "Not Found", "404 - File not found", logger)
		return
	}

	contents, err := os.ReadFile(filePath)
	if err != nil {
		logger.Error("error while reading file", log.String("path", filePath), log.Error(err))
		restapi.RespondHTMLError(rw, http.StatusInternalServerError, "Internal Server Error", "Error reading the file", logger)
		return
	}

	rw.Header().Set("Content-Type", h.contentTypeByPath(filePath))
	rw.WriteHeader(http.StatusOK)
	if _, err = rw.Write(contents); err != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

func (h *Handler) postEcho(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("error while reading request body", log.Error(err))
		restapi.RespondHTMLError(rw, http.StatusBadRequest, "Bad Request", "Error reading the request body.", logger)
		return
	}
	restapi.RespondHTML(rw, http.StatusOK, echoPage(string(body)), logger)
}

func echoPage(body string) string {
	if strings.HasPrefix(strings.TrimLeft(body, " \t\r\n"), "{") {
		if pretty, ok := prettyJSON(body); ok {
			return "<html><body><h1>Received JSON Data:</h1><pre>" + html.EscapeString(pretty) + "</pre></body></html>"
		}
		return "<html><body><h1>Received Data:</h1><pre>" + html.EscapeString(body) + "</pre></body></html>"
	}

	var formData strings.Builder
	for _, pair := range strings.Split(body, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		formData.WriteString(html.EscapeString(key) + ": " + html.EscapeString(value) + "\n")
	}
	return "<html><body><h1>Received Form Data:</h1><pre>" + formData.String() + "</pre></body></html>"
}

// prettyJSON re-encodes a JSON document with sorted object keys and two-space indentation.
func prettyJSON(data string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	if _, err := dec.Token(); err != io.EOF { // trailing data after the document
		return "", false
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", false
	}
	return strings.TrimSuffix(buf.String(), "\n"), true
}

func (h *Handler) putFile(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)
	filePath, ok := resolveSafePath(h.publicDir, r.URL.Path)
	if !ok {
		restapi.RespondHTMLError(rw, http.StatusBadRequest, "Bad Request", "Invalid path.", logger)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = os.WriteFile(filePath, body, 0o644) //nolint:gosec // served files are world-readable
	}
	if err != nil {
		logger.Error("error while writing file", log.String("path", filePath), log.Error(err))
		restapi.RespondHTMLError(rw, http.StatusInternalServerError, "Internal Server Error", "Could not write to file.", logger)
		return
	}

	restapi.RespondJSON(rw, map[string]string{
		"status":  "ok",
		"message": fmt.Sprintf("File %s was successfully updated.", h.relativePath(filePath)),
	}, logger)
}

func (h *Handler) deleteFile(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)
	filePath, ok := resolveSafePath(h.publicDir, r.URL.Path)
	if !ok {
		restapi.RespondHTMLError(rw, http.StatusBadRequest, "Bad Request", "Invalid path.", logger)
		return
	}
	if !isRegularFile(filePath) {
		restapi.RespondHTMLError(rw, http.StatusNotFound, "Not Found", "File does not exist.", logger)
		return
	}
	if err := os.Remove(filePath); err != nil {
		logger.Error("error while deleting file", log.String("path", filePath), log.Error(err))
		restapi.RespondHTMLError(rw, http.StatusInternalServerError, "Error", "File could not be deleted.", logger)
		return
	}
	restapi.RespondJSON(rw, map[string]string{"deleted": h.relativePath(filePath)}, logger)
}

func (h *Handler) options(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Allow", AllowedMethods)
	rw.Header().Set("Access-Control-Allow-Origin", "*")
	rw.Header().Set("Access-Control-Allow-Methods", AllowedMethods)
	rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) methodNotAllowed(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Allow", AllowedMethods)
	restapi.RespondHTMLError(rw, http.StatusMethodNotAllowed,
		"Method Not Allowed", "Only GET, POST, PUT, DELETE, OPTIONS are allowed.", h.getLogger(r))
}

// relativePath returns the path of a served file as seen by clients.
func (h *Handler) relativePath(filePath string) string {
	rel, err := filepath.Rel(h.publicDir, filePath)
	if err != nil {
		return filepath.Base(filePath)
	}
	return "/" + filepath.ToSlash(rel)
}

func (h *Handler) contentTypeByPath(filePath string) string {
	ext := filepath.Ext(filePath)
	if ext == "" {
		return contentTypeOctetStream
	}
	if contentType, ok := h.mimeTypes[strings.ToLower(ext[1:])]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return contentTypeOctetStream
}
