package harvest_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

func Test_WaitUntilImmediate(t *testing.T) {
	ok := harvest.WaitUntil(context.Background(), newFakePage(), time.Hour, time.Hour, func() bool { return true })
	assert.True(t, ok)
}

func Test_WaitUntilTimeout(t *testing.T) {
	start := time.Now()
	ok := harvest.WaitUntil(context.Background(), newFakePage(), 30*time.Millisecond, 5*time.Millisecond, func() bool { return false })

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func Test_WaitUntilContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok := harvest.WaitUntil(ctx, newFakePage(), time.Hour, time.Hour, func() bool { return false })
	assert.False(t, ok)
}

func Test_WaitUntilChangeNotification(t *testing.T) {
	page := &notifyPage{fakePage: newFakePage(), changes: make(chan struct{}, 1)}

	var ready atomic.Bool

	go func() {
		time.Sleep(10 * time.Millisecond)
		ready.Store(true)
		page.changes <- struct{}{}
	}()

	// the poll interval is far longer than the test, only the notification can wake it
	start := time.Now()
	ok := harvest.WaitUntil(context.Background(), page, time.Hour, time.Hour, ready.Load)

	assert.True(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, page.released)
}

func Test_WaitUntilReleasesOnTimeout(t *testing.T) {
	page := &notifyPage{fakePage: newFakePage(), changes: make(chan struct{})}

	ok := harvest.WaitUntil(context.Background(), page, 20*time.Millisecond, time.Hour, func() bool { return false })

	assert.False(t, ok)
	assert.Equal(t, 1, page.released)
}

func Test_WaitUntilClosedChannelFallsBackToPolling(t *testing.T) {
	page := &notifyPage{fakePage: newFakePage(), changes: make(chan struct{})}
	close(page.changes)

	var calls atomic.Int32

	ok := harvest.WaitUntil(context.Background(), page, time.Second, 5*time.Millisecond, func() bool {
		return calls.Add(1) > 3
	})

	assert.True(t, ok)
}

func Test_WaitUntilSubscribeError(t *testing.T) {
	page := &notifyPage{fakePage: newFakePage(), subErr: errors.New("page closed")}

	var calls atomic.Int32

	ok := harvest.WaitUntil(context.Background(), page, time.Second, 5*time.Millisecond, func() bool {
		return calls.Add(1) > 2
	})

	assert.True(t, ok)
	assert.Equal(t, 0, page.released)
}
