/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-cachekit/config"
	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/tieredcache"
)

const contentTypeAppJSON = "application/json"

// Error codes of the API.
const (
	errCodeNotFound         = "notFound"
	errCodeMethodNotAllowed = "methodNotAllowed"
	errCodeBadRequest       = "badRequest"
	errCodeTooLarge         = "requestEntityTooLarge"
	errCodeWriteFailed      = "writeFailed"
	errCodeOperationFailed  = "operationFailed"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Err apiError `json:"error"`
}

type trimResponse struct {
	OK    bool              `json:"ok"`
	Stats tieredcache.Stats `json:"stats"`
}

type apiHandler struct {
	cache       *tieredcache.Cache
	maxBodySize int64
	logger      log.FieldLogger
}

func newRouter(cache *tieredcache.Cache, maxBodySize int64, metricsHandler http.Handler, logger log.FieldLogger) chi.Router {
	h := &apiHandler{cache: cache, maxBodySize: maxBodySize, logger: logger}

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Route("/v1", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Post("/trim", h.trim)
		r.Delete("/entries", h.removeAll)
		r.Get("/entries/{key}", h.getEntry)
		r.Head("/entries/{key}", h.headEntry)
		r.Put("/entries/{key}", h.putEntry)
		r.Delete("/entries/{key}", h.deleteEntry)
	})
	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		h.respondError(rw, http.StatusNotFound, errCodeNotFound, "Not found.")
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		h.respondError(rw, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, "Method not allowed.")
	})
	return router
}

func (h *apiHandler) getEntry(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.entryKey(rw, r)
	if !ok {
		return
	}
	value, found := h.cache.Get(r.Context(), key)
	if !found {
		h.respondError(rw, http.StatusNotFound, errCodeNotFound, "Entry not found.")
		return
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Header().Set("Content-Length", strconv.Itoa(len(value)))
	rw.WriteHeader(http.StatusOK)
	if _, err := rw.Write(value); err != nil {
		h.logger.Warn("error while writing response body", log.Error(err))
	}
}

func (h *apiHandler) headEntry(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.entryKey(rw, r)
	if !ok {
		return
	}
	if !h.cache.ContainsKey(r.Context(), key) {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	rw.WriteHeader(http.StatusOK)
}

func (h *apiHandler) putEntry(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.entryKey(rw, r)
	if !ok {
		return
	}
	value, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, h.maxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(rw, http.StatusRequestEntityTooLarge, errCodeTooLarge,
				fmt.Sprintf("Entry is larger than %s.", config.ByteSize(maxBytesErr.Limit)))
			return
		}
		h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, "Request body cannot be read.")
		return
	}
	if len(value) == 0 {
		h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, "Entry value cannot be empty.")
		return
	}
	if !h.cache.Set(r.Context(), key, value) {
		h.respondError(rw, http.StatusInternalServerError, errCodeWriteFailed, "Entry was not persisted.")
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) deleteEntry(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.entryKey(rw, r)
	if !ok {
		return
	}
	if !h.cache.Remove(r.Context(), key) {
		h.respondError(rw, http.StatusNotFound, errCodeNotFound, "Entry not found.")
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) removeAll(rw http.ResponseWriter, r *http.Request) {
	if !h.cache.RemoveAll(r.Context()) {
		h.respondError(rw, http.StatusInternalServerError, errCodeOperationFailed, "Cache was not cleared.")
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

// trim applies the limits passed in the query: cost and freeSpace are sizes ("10M"),
// count is a number and age is a duration ("24h").
func (h *apiHandler) trim(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	var ops []func() bool

	if v := query.Get("cost"); v != "" {
		var cost config.ByteSize
		if err := cost.UnmarshalText([]byte(v)); err != nil {
			h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, fmt.Sprintf("Invalid cost %q.", v))
			return
		}
		ops = append(ops, func() bool { return h.cache.TrimToCost(ctx, cost.Int64()) })
	}
	if v := query.Get("count"); v != "" {
		count, err := strconv.ParseInt(v, 10, 64)
		if err != nil || count < 0 {
			h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, fmt.Sprintf("Invalid count %q.", v))
			return
		}
		ops = append(ops, func() bool { return h.cache.TrimToCount(ctx, count) })
	}
	if v := query.Get("age"); v != "" {
		age, err := time.ParseDuration(v)
		if err != nil || age < 0 {
			h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, fmt.Sprintf("Invalid age %q.", v))
			return
		}
		ops = append(ops, func() bool { return h.cache.TrimToAge(ctx, age) })
	}
	if v := query.Get("freeSpace"); v != "" {
		var floor config.ByteSize
		if err := floor.UnmarshalText([]byte(v)); err != nil {
			h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, fmt.Sprintf("Invalid freeSpace %q.", v))
			return
		}
		ops = append(ops, func() bool { return h.cache.TrimToFreeDiskSpace(ctx, floor.Int64()) })
	}
	if len(ops) == 0 {
		h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, "At least one of cost, count, age or freeSpace is required.")
		return
	}

	ok := true
	for _, op := range ops {
		ok = op() && ok
	}
	h.respondJSON(rw, http.StatusOK, trimResponse{OK: ok, Stats: h.cache.Stats(ctx)})
}

func (h *apiHandler) stats(rw http.ResponseWriter, r *http.Request) {
	h.respondJSON(rw, http.StatusOK, h.cache.Stats(r.Context()))
}

func (h *apiHandler) entryKey(rw http.ResponseWriter, r *http.Request) (string, bool) {
	// chi matches against RawPath when it is set, so the parameter is still escaped only then.
	key := chi.URLParam(r, "key")
	var err error
	if r.URL.RawPath != "" {
		key, err = url.PathUnescape(key)
	}
	if err != nil || key == "" {
		h.respondError(rw, http.StatusBadRequest, errCodeBadRequest, "Invalid entry key.")
		return "", false
	}
	return key, true
}

func (h *apiHandler) respondError(rw http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("error in response", log.String("error_code", code), log.String("error_message", message))
	}
	h.respondJSON(rw, status, errorResponse{Err: apiError{Code: code, Message: message}})
}

func (h *apiHandler) respondJSON(rw http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		h.logger.Error("error while marshaling json for response body", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", contentTypeAppJSON)
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil {
		h.logger.Warn("error while writing response body", log.Error(err))
	}
}
