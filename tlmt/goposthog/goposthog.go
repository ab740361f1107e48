package goposthog

import (
	"context"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt"
)

const (
	appName       = "thamdinh-harvester"
	flushInterval = 10 * time.Second
)

type service struct {
	client posthog.Client
}

func New(publicAPIKEY, endpointURL string) (tlmt.Telemetry, error) {
	client, err := posthog.NewWithConfig(publicAPIKEY, posthog.Config{
		Endpoint: endpointURL,
		Interval: flushInterval,
	})
	if err != nil {
		return nil, err
	}

	return &service{client: client}, nil
}

func (s *service) Send(_ context.Context, event tlmt.Event) error {
	props := posthog.NewProperties()
	for k, v := range event.Properties {
		props.Set(k, v)
	}

	props.Set("app", appName)

	capture := posthog.Capture{
		DistinctId: event.AnonymousID,
		Event:      event.Name,
		Properties: props,
	}

	if err := capture.Validate(); err != nil {
		return err
	}

	return s.client.Enqueue(capture)
}

func (s *service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}

	return nil
}
