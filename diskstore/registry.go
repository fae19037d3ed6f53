/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Registry keeps at most one Store per directory, so two parts of an application
// never open independent stores over the same files.
// It is owned by the composition root of the application.
type Registry struct {
	mu     sync.Mutex
	opts   Opts
	stores map[string]*Store
}

// NewRegistry creates a new Registry. Stores are opened with opts.
func NewRegistry(opts Opts) *Registry {
	return &Registry{opts: opts, stores: make(map[string]*Store)}
}

// Open returns the Store for the directory at path, opening it on the first request.
// Different spellings of the same directory (relative paths, symlinks) resolve to the same Store.
func (r *Registry) Open(path string) (*Store, error) {
	canonical, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[canonical]; ok {
		return s, nil
	}
	s, err := NewWithOpts(canonical, r.opts)
	if err != nil {
		return nil, err
	}
	r.stores[canonical] = s
	return s, nil
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close closes all open stores and forgets them.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for path, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close disk cache %q: %w", path, err))
		}
		delete(r.stores, path)
	}
	return errors.Join(errs...)
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path %q: %w", path, err)
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create directory %q: %w", abs, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks of %q: %w", abs, err)
	}
	return resolved, nil
}
