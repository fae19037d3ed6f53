/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache

import (
	"time"

	"github.com/acronis/go-cachekit/config"
	"github.com/acronis/go-cachekit/diskstore"
	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/memstore"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyPath                            = "path"
	cfgKeyInlineThreshold                 = "inlineThreshold"
	cfgKeyCodec                           = "codec"
	cfgKeyMemoryCountLimit                = "memory.countLimit"
	cfgKeyMemoryAgeLimit                  = "memory.ageLimit"
	cfgKeyMemoryAutoTrimInterval          = "memory.autoTrimInterval"
	cfgKeyMemoryRemoveAllOnMemoryPressure = "memory.removeAllOnMemoryPressure"
	cfgKeyDiskCostLimit                   = "disk.costLimit"
	cfgKeyDiskCountLimit                  = "disk.countLimit"
	cfgKeyDiskAgeLimit                    = "disk.ageLimit"
	cfgKeyDiskFreeDiskSpaceLimit          = "disk.freeDiskSpaceLimit"
	cfgKeyDiskAutoTrimInterval            = "disk.autoTrimInterval"
	cfgKeyDiskCompressBlobs               = "disk.compressBlobs"
	cfgKeyAsyncMaxConcurrency             = "async.maxConcurrency"
)

// DefaultAsyncMaxConcurrency is the default limit of asynchronous disk operations running at once.
const DefaultAsyncMaxConcurrency = 8

// MemoryConfig is a configuration of the memory tier.
type MemoryConfig struct {
	CountLimit                int           `mapstructure:"countLimit" yaml:"countLimit" json:"countLimit"`
	AgeLimit                  time.Duration `mapstructure:"ageLimit" yaml:"ageLimit" json:"ageLimit"`
	AutoTrimInterval          time.Duration `mapstructure:"autoTrimInterval" yaml:"autoTrimInterval" json:"autoTrimInterval"`
	RemoveAllOnMemoryPressure bool          `mapstructure:"removeAllOnMemoryPressure" yaml:"removeAllOnMemoryPressure" json:"removeAllOnMemoryPressure"`
}

// DiskConfig is a configuration of the disk tier. Zero limits are disabled.
type DiskConfig struct {
	CostLimit          config.ByteSize `mapstructure:"costLimit" yaml:"costLimit" json:"costLimit"`
	CountLimit         int64           `mapstructure:"countLimit" yaml:"countLimit" json:"countLimit"`
	AgeLimit           time.Duration   `mapstructure:"ageLimit" yaml:"ageLimit" json:"ageLimit"`
	FreeDiskSpaceLimit config.ByteSize `mapstructure:"freeDiskSpaceLimit" yaml:"freeDiskSpaceLimit" json:"freeDiskSpaceLimit"`
	AutoTrimInterval   time.Duration   `mapstructure:"autoTrimInterval" yaml:"autoTrimInterval" json:"autoTrimInterval"`
	CompressBlobs      bool            `mapstructure:"compressBlobs" yaml:"compressBlobs" json:"compressBlobs"`
}

// Config represents a set of configuration parameters of the tiered cache.
type Config struct {
	Path            string          `mapstructure:"path" yaml:"path" json:"path"`
	InlineThreshold config.ByteSize `mapstructure:"inlineThreshold" yaml:"inlineThreshold" json:"inlineThreshold"`
	Codec           string          `mapstructure:"codec" yaml:"codec" json:"codec"`
	Memory          MemoryConfig    `mapstructure:"memory" yaml:"memory" json:"memory"`
	Disk            DiskConfig      `mapstructure:"disk" yaml:"disk" json:"disk"`
	// AsyncMaxConcurrency bounds asynchronous disk operations running at once.
	AsyncMaxConcurrency int `mapstructure:"asyncMaxConcurrency" yaml:"asyncMaxConcurrency" json:"asyncMaxConcurrency"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new Config. Parameters are looked up under the "cache" key unless another key prefix is passed.
func NewConfig(keyPrefix ...string) *Config {
	c := &Config{keyPrefix: cfgDefaultKeyPrefix}
	if len(keyPrefix) > 0 {
		c.keyPrefix = keyPrefix[0]
	}
	return c
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyInlineThreshold, config.ByteSize(diskstore.DefaultInlineThreshold).String())
	dp.SetDefault(cfgKeyCodec, MsgpackCodec{}.Name())
	dp.SetDefault(cfgKeyMemoryAutoTrimInterval, memstore.DefaultAutoTrimInterval.String())
	dp.SetDefault(cfgKeyMemoryRemoveAllOnMemoryPressure, true)
	dp.SetDefault(cfgKeyDiskAutoTrimInterval, diskstore.DefaultAutoTrimInterval.String())
	dp.SetDefault(cfgKeyAsyncMaxConcurrency, DefaultAsyncMaxConcurrency)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Path, err = config.GetNonEmptyString(dp, cfgKeyPath); err != nil {
		return err
	}
	if c.InlineThreshold, err = config.GetPositive(dp, cfgKeyInlineThreshold, dp.GetByteSize); err != nil {
		return err
	}
	if c.Codec, err = dp.GetStringFromSet(cfgKeyCodec, []string{"msgpack", "json"}, false); err != nil {
		return err
	}
	if err = c.setMemoryConfig(dp); err != nil {
		return err
	}
	if err = c.setDiskConfig(dp); err != nil {
		return err
	}
	c.AsyncMaxConcurrency, err = config.GetAtLeast(dp, cfgKeyAsyncMaxConcurrency, dp.GetInt, 1)
	return err
}

func (c *Config) setMemoryConfig(dp config.DataProvider) error {
	var err error
	if c.Memory.CountLimit, err = config.GetAtLeast(dp, cfgKeyMemoryCountLimit, dp.GetInt, 0); err != nil {
		return err
	}
	if c.Memory.AgeLimit, err = config.GetAtLeast(dp, cfgKeyMemoryAgeLimit, dp.GetDuration, 0); err != nil {
		return err
	}
	if c.Memory.AutoTrimInterval, err = dp.GetDuration(cfgKeyMemoryAutoTrimInterval); err != nil {
		return err
	}
	c.Memory.RemoveAllOnMemoryPressure, err = dp.GetBool(cfgKeyMemoryRemoveAllOnMemoryPressure)
	return err
}

func (c *Config) setDiskConfig(dp config.DataProvider) error {
	var err error
	if c.Disk.CostLimit, err = dp.GetByteSize(cfgKeyDiskCostLimit); err != nil {
		return err
	}
	if c.Disk.CountLimit, err = config.GetAtLeast(dp, cfgKeyDiskCountLimit, dp.GetInt64, 0); err != nil {
		return err
	}
	if c.Disk.AgeLimit, err = config.GetAtLeast(dp, cfgKeyDiskAgeLimit, dp.GetDuration, 0); err != nil {
		return err
	}
	if c.Disk.FreeDiskSpaceLimit, err = dp.GetByteSize(cfgKeyDiskFreeDiskSpaceLimit); err != nil {
		return err
	}
	if c.Disk.AutoTrimInterval, err = dp.GetDuration(cfgKeyDiskAutoTrimInterval); err != nil {
		return err
	}
	c.Disk.CompressBlobs, err = dp.GetBool(cfgKeyDiskCompressBlobs)
	return err
}

// MemoryOpts converts the configuration to memory tier options.
func (c *Config) MemoryOpts(logger log.FieldLogger, metrics memstore.MetricsCollector) memstore.Opts {
	return memstore.Opts{
		CountLimit:                c.Memory.CountLimit,
		AgeLimit:                  c.Memory.AgeLimit,
		AutoTrimInterval:          c.Memory.AutoTrimInterval,
		RemoveAllOnMemoryPressure: c.Memory.RemoveAllOnMemoryPressure,
		MetricsCollector:          metrics,
		Logger:                    logger,
	}
}

// DiskOpts converts the configuration to disk tier options.
func (c *Config) DiskOpts(logger log.FieldLogger, metrics diskstore.MetricsCollector) diskstore.Opts {
	return diskstore.Opts{
		InlineThreshold: int(c.InlineThreshold), //nolint:gosec // validated to be a sane size
		Limits: diskstore.Limits{
			Cost:          c.Disk.CostLimit.Int64(),
			Count:         c.Disk.CountLimit,
			Age:           c.Disk.AgeLimit,
			FreeDiskSpace: c.Disk.FreeDiskSpaceLimit.Int64(),
		},
		AutoTrimInterval: c.Disk.AutoTrimInterval,
		CompressBlobs:    c.Disk.CompressBlobs,
		MaxConcurrency:   c.AsyncMaxConcurrency,
		MetricsCollector: metrics,
		Logger:           logger,
	}
}

// Opts converts the configuration to options of New.
func (c *Config) Opts(logger log.FieldLogger) Opts {
	codec, ok := CodecByName(c.Codec)
	if !ok {
		codec = MsgpackCodec{}
	}
	return Opts{
		Memory: c.MemoryOpts(logger, nil),
		Disk:   c.DiskOpts(logger, nil),
		Codec:  codec,
		Logger: logger,
	}
}
