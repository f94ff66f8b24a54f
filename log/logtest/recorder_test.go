/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/log"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.With(log.String("client", "10.0.0.1")).Warn("rate limited", log.Int("status", 429))
	rec.Info("served")

	entry, found := rec.FindEntry("rate limited")
	require.True(t, found)
	require.Equal(t, log.LevelWarn, entry.Level)
	field, found := entry.FindField("client")
	require.True(t, found)
	require.Equal(t, "10.0.0.1", string(field.Bytes))
	status, found := entry.FindField("status")
	require.True(t, found)
	require.EqualValues(t, 429, status.Int)

	require.Len(t, rec.FindAllEntries(log.LevelInfo), 1)

	rec.WithLevel(log.LevelError).Info("dropped")
	_, found = rec.FindEntry("dropped")
	require.False(t, found)

	rec.Reset()
	require.Empty(t, rec.Entries())
}

func TestNewLoggerWithOutput(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithOutput(&buf).Debug("hello", log.String("k", "v"))
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"k":"v"`)
}
