/*
Copyright © 2019-2024 Acronis International GmbH.
*/

package restapi

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/log/logtest"
)

func TestRespondCodeAndJSON(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondCodeAndJSON(rec, http.StatusCreated, map[string]string{"path": "<a>&b"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, ContentTypeAppJSON, rec.Header().Get("Content-Type"))
		require.Equal(t, `{"path":"<a>&b"}`, rec.Body.String())
	})

	t.Run("no data", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondCodeAndJSON(rec, http.StatusNoContent, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, rec.Body.String())
	})

	t.Run("marshaling error", func(t *testing.T) {
		logger := logtest.NewRecorder()
		rec := httptest.NewRecorder()
		RespondJSON(rec, math.Inf(1), logger)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, ContentTypeHTML, rec.Header().Get("Content-Type"))
		_, found := logger.FindEntry("error while marshaling json for response body")
		require.True(t, found)
	})
}

func TestRespondHTMLError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondHTMLError(rec, http.StatusNotFound, "Not Found", "No such file: <x>", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, ContentTypeHTML, rec.Header().Get("Content-Type"))
	require.Equal(t, "<html><body><h1>Not Found</h1><p>No such file: &lt;x&gt;</p></body></html>", rec.Body.String())
}
