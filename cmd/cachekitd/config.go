/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"time"

	"github.com/acronis/go-cachekit/config"
	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/tieredcache"
)

const (
	cfgKeyServerAddress          = "address"
	cfgKeyServerShutdownTimeout  = "shutdownTimeout"
	cfgKeyServerMaxBodySize      = "maxBodySize"
	cfgKeyServerStatsLogInterval = "statsLogInterval"
)

// serverConfig is a configuration of the HTTP API of the daemon.
type serverConfig struct {
	Address         string
	ShutdownTimeout time.Duration
	MaxBodySize     config.ByteSize
	// StatsLogInterval is an interval of logging cache stats. Zero disables it.
	StatsLogInterval time.Duration
}

func (c *serverConfig) KeyPrefix() string {
	return "server"
}

func (c *serverConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, "127.0.0.1:8080")
	dp.SetDefault(cfgKeyServerShutdownTimeout, "5s")
	dp.SetDefault(cfgKeyServerMaxBodySize, "64M")
	dp.SetDefault(cfgKeyServerStatsLogInterval, "1m")
}

func (c *serverConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Address, err = config.GetNonEmptyString(dp, cfgKeyServerAddress); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = config.GetAtLeast(dp, cfgKeyServerShutdownTimeout, dp.GetDuration, 0); err != nil {
		return err
	}
	if c.MaxBodySize, err = config.GetPositive(dp, cfgKeyServerMaxBodySize, dp.GetByteSize); err != nil {
		return err
	}
	c.StatsLogInterval, err = config.GetAtLeast(dp, cfgKeyServerStatsLogInterval, dp.GetDuration, 0)
	return err
}

type appConfig struct {
	Server serverConfig
	Log    *log.Config
	Cache  *tieredcache.Config
}

// loadConfig reads the YAML file at path (if any) and CACHEKIT_* environment variables.
func loadConfig(path string) (*appConfig, error) {
	cfg := &appConfig{Log: log.NewConfig(), Cache: tieredcache.NewConfig()}
	if err := config.NewDefaultLoader("CACHEKIT").LoadFromFile(path, config.DataTypeYAML, &cfg.Server, cfg.Log, cfg.Cache); err != nil {
		return nil, err
	}
	return cfg, nil
}
