/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/acronis/go-cachekit/log"
)

// Codec encodes structured values to bytes and back.
// Implementations must be safe for concurrent use.
//
// Changing the codec of an existing cache makes previously stored values undecodable;
// GetValue reports them as misses and removes them.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// MsgpackCodec is the default codec.
type MsgpackCodec struct{}

// Marshal encodes the value to msgpack.
func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal decodes msgpack data into v.
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name returns "msgpack".
func (MsgpackCodec) Name() string { return "msgpack" }

// JSONCodec stores values as JSON, which is handy when the cache contents are inspected by other tools.
type JSONCodec struct{}

// Marshal encodes the value to JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes JSON data into v.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// CodecByName returns a built-in codec.
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "msgpack":
		return MsgpackCodec{}, true
	case "json":
		return JSONCodec{}, true
	default:
		return nil, false
	}
}

// Codec returns the codec used by GetValue and SetValue.
func (c *Cache) Codec() Codec {
	return c.codec
}

// GetValue returns the value stored by key decoded with the cache codec.
// A value that cannot be decoded is removed from the cache and reported as a miss.
func GetValue[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	data, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	val, err := decodeValue[T](c.codec, data)
	if err != nil {
		c.logger.Warn("cached value cannot be decoded, removing it",
			log.Key(key), log.String("codec", c.codec.Name()), log.Error(err))
		c.Remove(ctx, key)
		return zero, false
	}
	return val, true
}

// SetValue encodes the value with the cache codec and stores it in both tiers.
// It returns false if the value cannot be encoded or the disk write fails.
func SetValue[T any](ctx context.Context, c *Cache, key string, value T) bool {
	data, err := c.codec.Marshal(value)
	if err != nil {
		c.logger.Warn("value cannot be encoded", log.Key(key), log.String("codec", c.codec.Name()), log.Error(err))
		return false
	}
	return c.Set(ctx, key, data)
}

// GetValueAsync is an asynchronous version of GetValue.
func GetValueAsync[T any](ctx context.Context, c *Cache, key string, done func(value T, ok bool)) {
	c.GetAsync(ctx, key, func(data []byte, ok bool) {
		var val T
		if ok {
			var err error
			if val, err = decodeValue[T](c.codec, data); err != nil {
				c.logger.Warn("cached value cannot be decoded, removing it",
					log.Key(key), log.String("codec", c.codec.Name()), log.Error(err))
				c.RemoveAsync(ctx, key, nil)
				ok = false
			}
		}
		if done != nil {
			done(val, ok)
		}
	})
}

// SetValueAsync is an asynchronous version of SetValue.
func SetValueAsync[T any](ctx context.Context, c *Cache, key string, value T, done func(ok bool)) {
	data, err := c.codec.Marshal(value)
	if err != nil {
		c.logger.Warn("value cannot be encoded", log.Key(key), log.String("codec", c.codec.Name()), log.Error(err))
		if done != nil {
			done(false)
		}
		return
	}
	c.SetAsync(ctx, key, data, done)
}

func decodeValue[T any](codec Codec, data []byte) (T, error) {
	var val T
	if err := codec.Unmarshal(data, &val); err != nil {
		return val, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return val, nil
}
