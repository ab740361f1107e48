package harvest

import (
	"time"

	"go.uber.org/zap"
)

const (
	minResults = 2
	maxResults = 3
)

// Options tunes the waits of a Harvester. The zero value is not usable,
// start from DefaultOptions.
type Options struct {
	// MaxResults is how many entries of a multi-result listing are visited.
	MaxResults int
	// PanelTimeout bounds the wait for the detail panel after a click.
	PanelTimeout time.Duration
	// ImageTimeout bounds the wait for images of one location.
	ImageTimeout time.Duration
	// StableWindow is how long the image count must stay unchanged to be
	// considered settled.
	StableWindow time.Duration
	// MultiTimeout bounds the whole multi-result pass.
	MultiTimeout time.Duration
	// PollInterval is the backstop re-check period of every wait.
	PollInterval time.Duration
	Profile      Profile
	Logger       *zap.Logger
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		MaxResults:   maxResults,
		PanelTimeout: 800 * time.Millisecond,
		ImageTimeout: time.Second,
		StableWindow: 300 * time.Millisecond,
		MultiTimeout: 12 * time.Second,
		PollInterval: defaultPollInterval,
		Profile:      DefaultProfile(),
		Logger:       zap.NewNop(),
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithProfile(p Profile) Option {
	return func(o *Options) {
		o.Profile = p
	}
}

// WithMaxResults sets how many listing entries are visited, within [2, 3].
func WithMaxResults(n int) Option {
	return func(o *Options) {
		o.MaxResults = max(minResults, min(n, maxResults))
	}
}

func WithPanelTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.PanelTimeout = d
	}
}

func WithImageTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ImageTimeout = d
	}
}

func WithStableWindow(d time.Duration) Option {
	return func(o *Options) {
		o.StableWindow = d
	}
}

func WithMultiTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.MultiTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.PollInterval = d
	}
}
