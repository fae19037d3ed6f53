/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/acronis/go-cachekit/log"
)

// DefaultHTTPShutdownTimeout is used when HTTPUnitOpts.ShutdownTimeout is zero.
const DefaultHTTPShutdownTimeout = 5 * time.Second

// HTTPUnitOpts contains optional parameters for HTTPUnit.
type HTTPUnitOpts struct {
	ShutdownTimeout   time.Duration
	MetricsRegisterer MetricsRegisterer
}

// HTTPUnit serves an http.Handler as a Unit.
type HTTPUnit struct {
	server          *http.Server
	shutdownTimeout time.Duration
	metrics         MetricsRegisterer
	logger          log.FieldLogger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	done     chan struct{}
}

// NewHTTPUnit creates a unit listening on addr (e.g. "127.0.0.1:8080" or ":0").
func NewHTTPUnit(addr string, handler http.Handler, logger log.FieldLogger, opts HTTPUnitOpts) *HTTPUnit {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = DefaultHTTPShutdownTimeout
	}
	return &HTTPUnit{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		metrics:         opts.MetricsRegisterer,
		logger:          logger.With(log.String("address", addr)),
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start listens on the configured address and serves until Stop is called.
func (u *HTTPUnit) Start(fatalErr chan<- error) {
	defer close(u.done)

	ln, err := net.Listen("tcp", u.server.Addr)
	if err != nil {
		close(u.ready)
		u.logger.Error("HTTP server listen error", log.Error(err))
		fatalErr <- fmt.Errorf("listen %s: %w", u.server.Addr, err)
		return
	}
	u.mu.Lock()
	u.listener = ln
	u.mu.Unlock()
	close(u.ready)

	u.logger.Info("starting HTTP server...", log.String("listen_addr", ln.Addr().String()))
	if err = u.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		u.logger.Error("HTTP server error", log.Error(err))
		fatalErr <- err
		return
	}
	u.logger.Info("HTTP server closed")
}

// Stop shuts the server down. A graceful stop waits for in-flight requests up to the shutdown timeout.
func (u *HTTPUnit) Stop(gracefully bool) error {
	if !gracefully {
		if err := u.server.Close(); err != nil {
			u.logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.shutdownTimeout)
	defer cancel()
	u.logger.Info("shutting down HTTP server...", log.Duration("timeout", u.shutdownTimeout))
	if err := u.server.Shutdown(ctx); err != nil {
		u.logger.Error("HTTP server shutting down error", log.Error(err))
		return err
	}
	return nil
}

// Addr waits until the unit has tried to listen and returns the bound address, or nil if listening failed.
func (u *HTTPUnit) Addr() net.Addr {
	<-u.ready
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.listener == nil {
		return nil
	}
	return u.listener.Addr()
}

// Done is closed when Start returns.
func (u *HTTPUnit) Done() <-chan struct{} {
	return u.done
}

// MustRegisterMetrics registers metrics passed in HTTPUnitOpts.
func (u *HTTPUnit) MustRegisterMetrics() {
	if u.metrics != nil {
		u.metrics.MustRegisterMetrics()
	}
}

// UnregisterMetrics unregisters metrics passed in HTTPUnitOpts.
func (u *HTTPUnit) UnregisterMetrics() {
	if u.metrics != nil {
		u.metrics.UnregisterMetrics()
	}
}
