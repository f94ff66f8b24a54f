/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package webapp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/config"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadDefaults(cfg))
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("yaml", func(t *testing.T) {
		cfgData := `
webapp:
  publicDir: /srv/www
  sessionCookie: sid
  mimeTypes:
    md: text/markdown; charset=utf-8
    wasm: application/wasm
`
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg))
		require.Equal(t, &Config{
			PublicDir:     "/srv/www",
			SessionCookie: "sid",
			MimeTypes: map[string]string{
				"md":   "text/markdown; charset=utf-8",
				"wasm": "application/wasm",
			},
		}, cfg)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name    string
			cfgData string
			wantKey string
		}{
			{"empty public dir", "webapp:\n  publicDir: \"\"\n", "webapp.publicDir"},
			{"invalid cookie name", "webapp:\n  sessionCookie: \"a=b\"\n", "webapp.sessionCookie"},
			{"empty content type", "webapp:\n  mimeTypes:\n    md: \"\"\n", "webapp.mimeTypes"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, NewConfig())
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantKey)
			})
		}
	})
}
