package browser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
)

func Test_NewUnknownDriver(t *testing.T) {
	_, err := browser.New("netscape", browser.Options{})
	require.ErrorIs(t, err, browser.ErrUnknownDriver)
}

func Test_DefaultOptions(t *testing.T) {
	opts := browser.DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Contains(t, opts.UserAgent, "Chrome/")
	assert.NotNil(t, opts.Logger)
}
