package deduper_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hoanhv-vvt/thamdinh-extensions/deduper"
)

func TestAddIfNotExists(t *testing.T) {
	d := deduper.New()
	ctx := context.Background()

	assert.True(t, d.AddIfNotExists(ctx, "https://lh5.googleusercontent.com/p/a=w2048-h2048"))
	assert.False(t, d.AddIfNotExists(ctx, "https://lh5.googleusercontent.com/p/a=w2048-h2048"))
	assert.True(t, d.AddIfNotExists(ctx, "https://lh5.googleusercontent.com/p/b=w2048-h2048"))
}

func TestAddIfNotExistsConcurrent(t *testing.T) {
	d := deduper.New()
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if d.AddIfNotExists(ctx, "same-key") {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, added)
}
