/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testListenerConfig struct {
	Address string
	Workers int
	Timeout time.Duration
}

func (c *testListenerConfig) KeyPrefix() string {
	return "listener"
}

func (c *testListenerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("address", ":8080")
	dp.SetDefault("workers", 4)
	dp.SetDefault("timeout", "5s")
}

func (c *testListenerConfig) Set(dp DataProvider) error {
	var err error
	if c.Address, err = dp.GetString("address"); err != nil {
		return err
	}
	if c.Workers, err = dp.GetInt("workers"); err != nil {
		return err
	}
	c.Timeout, err = dp.GetDuration("timeout")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults are used when keys are missing", func(t *testing.T) {
		cfg := &testListenerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.Address)
		require.Equal(t, 4, cfg.Workers)
		require.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("values are read under key prefix", func(t *testing.T) {
		cfg := &testListenerConfig{}
		yamlData := "listener:\n  address: 127.0.0.1:9090\n  workers: 16\n  timeout: 1m\n"
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(yamlData), DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:9090", cfg.Address)
		require.Equal(t, 16, cfg.Workers)
		require.Equal(t, time.Minute, cfg.Timeout)
	})

	t.Run("invalid value is reported with its key", func(t *testing.T) {
		cfg := &testListenerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"listener":{"workers":"many"}}`), DataTypeJSON, cfg)
		require.ErrorContains(t, err, "listener.workers")
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("listener:\n  workers: 2\n"), 0o600))

	cfg := &testListenerConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeYAML, cfg))
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, ":8080", cfg.Address)
}

func TestLoader_LoadDefaultsWithEnvVars(t *testing.T) {
	t.Setenv("RAWHTTPTEST_LISTENER_WORKERS", "32")

	cfg := &testListenerConfig{}
	require.NoError(t, NewDefaultLoader("rawhttptest").LoadDefaults(cfg))
	require.Equal(t, 32, cfg.Workers)
	require.Equal(t, ":8080", cfg.Address)
}
