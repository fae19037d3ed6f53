/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"time"

	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/service"
	"github.com/acronis/go-cachekit/tieredcache"
)

func newStatsWorker(cache *tieredcache.Cache, interval time.Duration, logger log.FieldLogger) *service.PeriodicWorker {
	return service.NewPeriodicWorkerWithOpts(service.WorkerFunc(func(ctx context.Context) error {
		stats := cache.Stats(ctx)
		logger.Info("cache stats",
			log.Int("memory_count", stats.MemoryCount),
			log.Int64("disk_count", stats.DiskCount),
			log.Int64("disk_total_size", stats.DiskTotalSize),
		)
		return nil
	}), interval, logger, service.PeriodicWorkerOpts{Name: "stats", InitialDelay: interval})
}
