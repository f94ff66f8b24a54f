/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
profServer:
  enabled: true
  address: "0.0.0.0:6060"
`,
			expectedCfg: func() *Config {
				return &Config{Enabled: true, Address: "0.0.0.0:6060"}
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     `{"profServer": {"enabled": true}}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Enabled = true
				return cfg
			},
		},
		{
			name:        "empty config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     ``,
			expectedCfg: NewDefaultConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), tt.cfgDataType, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), cfg)
		})
	}
}

func TestConfigEmptyAddress(t *testing.T) {
	cfgData := "profServer:\n  enabled: true\n  address: \"\"\n"
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, NewConfig())
	require.ErrorContains(t, err, "profServer.address")
}
