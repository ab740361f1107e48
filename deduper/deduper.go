package deduper

import (
	"context"
	"sync"
)

// Deduper remembers keys it has seen.
type Deduper interface {
	AddIfNotExists(context.Context, string) bool
}

func New() Deduper {
	return &hashmap{
		seen: make(map[string]struct{}),
		mux:  &sync.RWMutex{},
	}
}
