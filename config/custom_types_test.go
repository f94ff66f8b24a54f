/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{name: "integer", input: "1024", want: 1024},
		{name: "megabytes", input: `"10M"`, want: 10 * 1024 * 1024},
		{name: "k8s suffix", input: `"512Ki"`, want: 512 * 1024},
		{name: "negative", input: "-1", wantErr: true},
		{name: "garbage", input: `"ten megs"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ByteSize
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCustomTypesInYAML(t *testing.T) {
	var data struct {
		MaxBodySize ByteSize     `yaml:"maxBodySize"`
		Window      TimeDuration `yaml:"window"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("maxBodySize: 1M\nwindow: 90s\n"), &data))
	require.Equal(t, ByteSize(1024*1024), data.MaxBodySize)
	require.Equal(t, TimeDuration(90*time.Second), data.Window)

	out, err := yaml.Marshal(data)
	require.NoError(t, err)
	require.Contains(t, string(out), "window: 1m30s")
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString("a: 10M\nb: 2048\nc: -5\nd: [1]\n"), DataTypeYAML))

	got, err := va.GetByteSize("a")
	require.NoError(t, err)
	require.Equal(t, ByteSize(10*1024*1024), got)

	got, err = va.GetByteSize("b")
	require.NoError(t, err)
	require.Equal(t, ByteSize(2048), got)

	_, err = va.GetByteSize("c")
	require.ErrorContains(t, err, "c: negative value")

	_, err = va.GetByteSize("d")
	require.Error(t, err)

	got, err = va.GetByteSize("missing")
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestViperAdapter_UnmarshalKeyWithTextHooks(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(
		`{"limits":{"size":"2K","period":"3s"}}`), DataTypeJSON))

	var limits struct {
		Size   ByteSize     `mapstructure:"size"`
		Period TimeDuration `mapstructure:"period"`
	}
	require.NoError(t, NewKeyPrefixedDataProvider(va, "").UnmarshalKey("limits", &limits, WithTextUnmarshalHooks()))
	require.Equal(t, ByteSize(2048), limits.Size)
	require.Equal(t, TimeDuration(3*time.Second), limits.Period)
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	va.Set("algo", "Sliding_Log")

	got, err := va.GetStringFromSet("algo", []string{"sliding_log", "token_bucket"}, true)
	require.NoError(t, err)
	require.Equal(t, "sliding_log", got)

	_, err = va.GetStringFromSet("algo", []string{"sliding_log"}, false)
	require.ErrorContains(t, err, `unknown value "Sliding_Log"`)
}
