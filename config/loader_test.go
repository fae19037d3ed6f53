/*
Copyright © 2026 Acronis International GmbH.

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

type testStoreConfig struct {
	Path       string
	CountLimit int
	CostLimit  ByteSize
	AgeLimit   time.Duration
	Compress   bool
}

func (c *testStoreConfig) KeyPrefix() string {
	return "store"
}

func (c *testStoreConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("countLimit", 100)
	dp.SetDefault("costLimit", "1MB")
}

func (c *testStoreConfig) Set(dp DataProvider) error {
	var err error
	if c.Path, err = dp.GetString("path"); err != nil {
		return err
	}
	if c.CountLimit, err = dp.GetInt("countLimit"); err != nil {
		return err
	}
	if c.CostLimit, err = dp.GetByteSize("costLimit"); err != nil {
		return err
	}
	if c.AgeLimit, err = dp.GetDuration("ageLimit"); err != nil {
		return err
	}
	c.Compress, err = dp.GetBool("compress")
	return err
}

type testLevelConfig struct {
	Level string
}

func (c *testLevelConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("level", "info")
}

func (c *testLevelConfig) Set(dp DataProvider) (err error) {
	c.Level, err = dp.GetStringFromSet("level", []string{"debug", "info", "error"}, true)
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		storeCfg := &testStoreConfig{}
		levelCfg := &testLevelConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, storeCfg, levelCfg)
		require.NoError(t, err)
		require.Equal(t, 100, storeCfg.CountLimit)
		require.Equal(t, ByteSize(1024*1024), storeCfg.CostLimit)
		require.Equal(t, time.Duration(0), storeCfg.AgeLimit)
		require.Equal(t, "info", levelCfg.Level)
	})

	t.Run("yaml values", func(t *testing.T) {
		cfgData := `
level: DEBUG
store:
  path: /var/cache/app
  countLimit: 5
  costLimit: 2Gi
  ageLimit: 1h30m
  compress: true
`
		storeCfg := &testStoreConfig{}
		levelCfg := &testLevelConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), DataTypeYAML, storeCfg, levelCfg)
		require.NoError(t, err)
		require.Equal(t, &testStoreConfig{
			Path:       "/var/cache/app",
			CountLimit: 5,
			CostLimit:  ByteSize(2 * 1024 * 1024 * 1024),
			AgeLimit:   90 * time.Minute,
			Compress:   true,
		}, storeCfg)
		require.Equal(t, "DEBUG", levelCfg.Level)
	})

	t.Run("errors are wrapped with the full key", func(t *testing.T) {
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"store":{"costLimit":"lots"}}`), DataTypeJSON, &testStoreConfig{})
		require.ErrorContains(t, err, "store.costLimit")

		err = NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"level":"trace"}`), DataTypeJSON, &testLevelConfig{})
		require.ErrorContains(t, err, `unknown value "trace"`)
	})
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("CACHEKIT_TEST_STORE_COUNTLIMIT", "42")
	t.Setenv("CACHEKIT_TEST_STORE_AGELIMIT", "10s")

	storeCfg := &testStoreConfig{}
	require.NoError(t, NewDefaultLoader("CACHEKIT_TEST").Load(storeCfg))
	require.Equal(t, 42, storeCfg.CountLimit)
	require.Equal(t, 10*time.Second, storeCfg.AgeLimit)
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	va := NewViperAdapter()
	va.Set("int", 1024)
	va.Set("negative", -1)
	va.Set("str", "10KB")
	va.Set("empty", "")
	va.Set("typed", ByteSize(7))
	va.Set("bad", []string{"x"})

	tests := []struct {
		key     string
		want    ByteSize
		wantErr bool
	}{
		{key: "int", want: 1024},
		{key: "negative", wantErr: true},
		{key: "str", want: 10 * 1024},
		{key: "empty", want: 0},
		{key: "typed", want: 7},
		{key: "missing", want: 0},
		{key: "bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := va.GetByteSize(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	va := NewViperAdapter()
	va.Set("cache.disk.countLimit", 10)
	dp := NewKeyPrefixedDataProvider(va, "cache")

	require.True(t, va.IsSet("cache.disk.countLimit"))
	n, err := dp.GetInt64("disk.countLimit")
	require.NoError(t, err)
	require.EqualValues(t, 10, n)

	dp.SetDefault("disk.ageLimit", "1m")
	d, err := va.GetDuration("cache.disk.ageLimit")
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)

	require.EqualError(t, dp.WrapKeyErr("path", errTest), "cache.path: test error")
}

func TestLoader_LoadFromFile(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		storeCfg := &testStoreConfig{}
		require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile("", DataTypeYAML, storeCfg))
		require.Equal(t, 100, storeCfg.CountLimit)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  countLimit: 7\n"), 0o600))
		storeCfg := &testStoreConfig{}
		require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeYAML, storeCfg))
		require.Equal(t, 7, storeCfg.CountLimit)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.yml")
		err := NewLoader(NewViperAdapter()).LoadFromFile(path, DataTypeYAML, &testStoreConfig{})
		require.ErrorContains(t, err, "missing.yml")
	})
}

func TestBounds(t *testing.T) {
	va := NewViperAdapter()
	va.Set("cache.path", "")
	va.Set("cache.count", -1)
	va.Set("cache.threshold", "0")
	va.Set("cache.age", "1m")
	dp := NewKeyPrefixedDataProvider(va, "cache")

	_, err := GetNonEmptyString(dp, "path")
	require.EqualError(t, err, "cache.path: cannot be empty")

	_, err = GetAtLeast(dp, "count", dp.GetInt, 0)
	require.EqualError(t, err, "cache.count: should be >= 0, got -1")

	_, err = GetPositive(dp, "threshold", dp.GetByteSize)
	require.ErrorContains(t, err, "cache.threshold: should be > 0")

	age, err := GetPositive(dp, "age", dp.GetDuration)
	require.NoError(t, err)
	require.Equal(t, time.Minute, age)

	_, err = GetAtLeast(dp, "age", dp.GetDuration, time.Hour)
	require.EqualError(t, err, "cache.age: should be >= 1h0m0s, got 1m0s")
}
