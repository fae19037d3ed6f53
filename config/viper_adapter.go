/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter is the DataProvider backed by viper. Values are converted with spf13/cast,
// so numbers and booleans may come as strings from environment variables.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars makes every key readable from an environment variable.
// E.g., with the "CACHEKIT" prefix the "cache.disk.costLimit" key is looked up
// in CACHEKIT_CACHE_DISK_COSTLIMIT.
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.AutomaticEnv()
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.SetEnvPrefix(prefix)
}

// Set overrides the value of the key regardless of other sources.
func (va *ViperAdapter) Set(key string, value interface{}) {
	va.viper.Set(key, value)
}

// IsSet reports whether the key has a value in any source, defaults included.
func (va *ViperAdapter) IsSet(key string) bool {
	return va.viper.IsSet(key)
}

// SetDefault sets the value used when no other source provides the key.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

// SetFromFile reads the configuration file.
func (va *ViperAdapter) SetFromFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	if err := va.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	return nil
}

// SetFromReader reads the configuration from reader.
func (va *ViperAdapter) SetFromReader(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

func (va *ViperAdapter) GetBool(key string) (bool, error) {
	return getCast(va, key, cast.ToBoolE)
}

func (va *ViperAdapter) GetInt(key string) (int, error) {
	return getCast(va, key, cast.ToIntE)
}

func (va *ViperAdapter) GetInt64(key string) (int64, error) {
	return getCast(va, key, cast.ToInt64E)
}

func (va *ViperAdapter) GetString(key string) (string, error) {
	return getCast(va, key, cast.ToStringE)
}

// GetStringFromSet fails if the value is not one of set.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, s := range set {
		if str == s || (ignoreCase && strings.EqualFold(str, s)) {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetDuration accepts both integers (nanoseconds) and strings like "1h30m". A missing key is zero.
func (va *ViperAdapter) GetDuration(key string) (time.Duration, error) {
	if va.viper.Get(key) == nil {
		return 0, nil
	}
	return getCast(va, key, cast.ToDurationE)
}

// GetByteSize accepts both integers and strings like "512MB" or "1Gi". A missing or empty key is zero.
func (va *ViperAdapter) GetByteSize(key string) (ByteSize, error) {
	val := va.viper.Get(key)
	switch v := val.(type) {
	case nil:
		return 0, nil
	case ByteSize:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		bs, err := parseByteSize(v)
		return bs, wrapKeyErrIfNeeded(key, err)
	case float32, float64:
		num := cast.ToFloat64(v)
		if num < 0 {
			return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %v", num))
		}
		return ByteSize(num), nil
	}
	num, err := cast.ToInt64E(val)
	if err != nil {
		return 0, WrapKeyErr(key, fmt.Errorf("unsupported type for byte size: %T", val))
	}
	if num < 0 {
		return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %d", num))
	}
	return ByteSize(num), nil
}

func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}

func getCast[T any](va *ViperAdapter, key string, conv func(interface{}) (T, error)) (T, error) {
	v, err := conv(va.viper.Get(key))
	return v, wrapKeyErrIfNeeded(key, err)
}
