/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package memstore

import "fmt"

func Example() {
	// Make a store keeping at most 2 entries without background trimming.
	store := NewWithOpts[string](Opts{CountLimit: 2, AutoTrimInterval: -1})
	defer store.Close()

	store.Set("user:1", "Bob")
	store.Set("user:2", "John")
	_, _ = store.Get("user:1") // "user:1" becomes the most recently used entry.
	store.Set("user:3", "Ivan") // "user:2" is evicted.

	for _, key := range []string{"user:1", "user:2", "user:3"} {
		if val, found := store.Get(key); found {
			fmt.Printf("%s: %s\n", key, val)
		} else {
			fmt.Printf("%s: evicted\n", key)
		}
	}

	// Output:
	// user:1: Bob
	// user:2: evicted
	// user:3: Ivan
}
