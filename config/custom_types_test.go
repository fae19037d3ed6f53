/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var errTest = errors.New("test error")

func TestByteSize_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		json    string
		want    ByteSize
		wantErr bool
	}{
		{name: "integer", yaml: "size: 2048", json: `{"size":2048}`, want: 2048},
		{name: "human-readable", yaml: "size: 20MB", json: `{"size":"20MB"}`, want: 20 * 1024 * 1024},
		{name: "k8s suffix", yaml: "size: 1Ki", json: `{"size":"1Ki"}`, want: 1024},
		{name: "invalid", yaml: "size: lots", json: `{"size":"lots"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yamlCfg struct {
				Size ByteSize `yaml:"size"`
			}
			var jsonCfg struct {
				Size ByteSize `json:"size"`
			}
			yamlErr := yaml.Unmarshal([]byte(tt.yaml), &yamlCfg)
			jsonErr := json.Unmarshal([]byte(tt.json), &jsonCfg)
			if tt.wantErr {
				require.Error(t, yamlErr)
				require.Error(t, jsonErr)
				return
			}
			require.NoError(t, yamlErr)
			require.NoError(t, jsonErr)
			require.Equal(t, tt.want, yamlCfg.Size)
			require.Equal(t, tt.want, jsonCfg.Size)
		})
	}
}

func TestByteSize_Marshal(t *testing.T) {
	data, err := json.Marshal(ByteSize(20 * 1024))
	require.NoError(t, err)
	require.Equal(t, `"20K"`, string(data))

	out, err := yaml.Marshal(struct {
		Size ByteSize `yaml:"size"`
	}{Size: 1024 * 1024})
	require.NoError(t, err)
	require.Equal(t, "size: 1M\n", string(out))
}

func TestByteSize_Int64(t *testing.T) {
	require.Equal(t, int64(20*1024), ByteSize(20*1024).Int64())
	require.Equal(t, int64(math.MaxInt64), ByteSize(math.MaxUint64).Int64())

	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("4096")))
	require.Equal(t, ByteSize(4096), b)
	require.Error(t, b.UnmarshalText([]byte("-1")))
}
