package harvest

import "context"

// Element is a node of the page. Implementations may go stale when the page
// re-renders; callers treat every error as "skip this element".
type Element interface {
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
}

// Document is the read view of a page used by the harvester.
type Document interface {
	// QueryAll returns the elements matching a css selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// AttributeReader is implemented by documents that read one attribute of
// every match in a single round trip. A missing attribute reads as "".
type AttributeReader interface {
	QueryAttribute(ctx context.Context, selector, name string) ([]string, error)
}

// Notifier is implemented by documents that can signal DOM changes.
// The returned function releases the subscription and must be called.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
}

// Navigator is implemented by documents that can load an address search.
type Navigator interface {
	Navigate(ctx context.Context, address string) error
}
