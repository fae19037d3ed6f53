/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache_test

import (
	"context"
	"fmt"
	"os"

	"github.com/acronis/go-cachekit/diskstore"
	"github.com/acronis/go-cachekit/memstore"
	"github.com/acronis/go-cachekit/tieredcache"
)

type user struct {
	ID   int    `msgpack:"id"`
	Name string `msgpack:"name"`
}

func Example() {
	dir, err := os.MkdirTemp("", "cachekit-example-")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	cache, err := tieredcache.New(dir, tieredcache.Opts{
		Memory: memstore.Opts{CountLimit: 100},
		Disk:   diskstore.Opts{Limits: diskstore.Limits{Cost: 10 * 1024 * 1024}},
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	cache.Set(ctx, "greeting", []byte("hello"))
	tieredcache.SetValue(ctx, cache, "user:1", user{ID: 1, Name: "Alice"})

	cache.Memory().RemoveAll() // next reads are served by the disk tier

	greeting, _ := cache.Get(ctx, "greeting")
	u, _ := tieredcache.GetValue[user](ctx, cache, "user:1")
	fmt.Println(string(greeting))
	fmt.Println(u.Name)
	fmt.Println(cache.Count(ctx))

	// Output:
	// hello
	// Alice
	// 2
}
