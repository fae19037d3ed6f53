/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Command cachekitd serves a tiered cache over HTTP.
//
// Usage:
//
//	cachekitd [--config cachekitd.yaml]
//
// Every configuration parameter may also be set by a CACHEKIT_* environment variable,
// e.g. CACHEKIT_CACHE_PATH=/var/cache/cachekitd.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/acronis/go-cachekit/diskstore"
	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/memstore"
	"github.com/acronis/go-cachekit/service"
	"github.com/acronis/go-cachekit/tieredcache"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("cachekitd", pflag.ContinueOnError)
	cfgPath := flags.StringP("config", "c", "", "path to the YAML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		logger.Error("failed to open cache", log.Error(err))
		return err
	}
	defer d.close()

	return service.New(logger, d.unit).Run(context.Background())
}

type daemon struct {
	registry *diskstore.Registry
	cache    *tieredcache.Cache
	unit     *service.CompositeUnit
	http     *service.HTTPUnit
}

func newDaemon(cfg *appConfig, logger log.FieldLogger) (*daemon, error) {
	metrics := &cacheMetrics{memory: memstore.NewPrometheusMetrics(), disk: diskstore.NewPrometheusMetrics()}

	registry := diskstore.NewRegistry(cfg.Cache.DiskOpts(logger, metrics.disk))
	disk, err := registry.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open disk cache at %q: %w", cfg.Cache.Path, err)
	}
	memory := memstore.NewWithOpts[[]byte](cfg.Cache.MemoryOpts(logger, metrics.memory))
	cache := tieredcache.NewWithStores(memory, disk, cfg.Cache.Opts(logger))

	router := newRouter(cache, cfg.Server.MaxBodySize.Int64(), promhttp.Handler(), logger)
	httpUnit := service.NewHTTPUnit(cfg.Server.Address, router, logger, service.HTTPUnitOpts{
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		MetricsRegisterer: metrics,
	})
	units := []service.Unit{httpUnit}
	if cfg.Server.StatsLogInterval > 0 {
		units = append(units, service.NewWorkerUnit(newStatsWorker(cache, cfg.Server.StatsLogInterval, logger)))
	}

	return &daemon{registry: registry, cache: cache, unit: service.NewCompositeUnit(units...), http: httpUnit}, nil
}

func (d *daemon) close() {
	_ = d.cache.Close()
	_ = d.registry.Close()
}

// cacheMetrics registers collectors of both tiers as a single unit.
type cacheMetrics struct {
	memory *memstore.PrometheusMetrics
	disk   *diskstore.PrometheusMetrics
}

func (m *cacheMetrics) MustRegisterMetrics() {
	m.memory.MustRegister()
	m.disk.MustRegister()
}

func (m *cacheMetrics) UnregisterMetrics() {
	m.memory.Unregister()
	m.disk.Unregister()
}
