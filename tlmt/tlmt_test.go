package tlmt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt"
	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt/gonoop"
)

func Test_NewEvent(t *testing.T) {
	first := tlmt.NewEvent("harvest", map[string]any{"images": 3})
	second := tlmt.NewEvent("harvest", map[string]any{"error": "busy"})

	assert.Len(t, first.AnonymousID, 64)
	assert.Equal(t, first.AnonymousID, second.AnonymousID)
	assert.Equal(t, 3, first.Properties["images"])

	// properties of one event never leak into another
	_, ok := second.Properties["images"]
	assert.False(t, ok)
}

func Test_Noop(t *testing.T) {
	svc := gonoop.New()

	require.NoError(t, svc.Send(context.Background(), tlmt.NewEvent("x", nil)))
	require.NoError(t, svc.Close())
}
