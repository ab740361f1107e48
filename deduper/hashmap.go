package deduper

import (
	"context"
	"sync"
)

var _ Deduper = (*hashmap)(nil)

type hashmap struct {
	mux  *sync.RWMutex
	seen map[string]struct{}
}

// AddIfNotExists stores key and reports whether it was not stored before.
// Keys are compared by exact string equality.
func (d *hashmap) AddIfNotExists(_ context.Context, key string) bool {
	d.mux.RLock()
	if _, ok := d.seen[key]; ok {
		d.mux.RUnlock()
		return false
	}

	d.mux.RUnlock()

	d.mux.Lock()
	defer d.mux.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}

	d.seen[key] = struct{}{}

	return true
}
