package harvest

import (
	"context"

	"github.com/hoanhv-vvt/thamdinh-extensions/deduper"
)

const (
	// MaxImagesLimit is the upper bound of images a single request may ask for.
	MaxImagesLimit = 50
	// DefaultMaxImages applies when a caller does not say how many it wants.
	DefaultMaxImages = 10
)

// ClampMaxImages bounds a requested image count to [0, MaxImagesLimit].
func ClampMaxImages(n int) int {
	return max(0, min(n, MaxImagesLimit))
}

// ResultSet is an insertion ordered set of image urls with a fixed capacity.
// It is not safe for concurrent use; a harvest owns exactly one.
type ResultSet struct {
	limit int
	seen  deduper.Deduper
	urls  []string
}

func NewResultSet(limit int) *ResultSet {
	return &ResultSet{
		limit: max(limit, 0),
		seen:  deduper.New(),
		urls:  make([]string, 0, max(limit, 0)),
	}
}

// Add inserts url and reports whether it was new and fitted in the set.
func (s *ResultSet) Add(url string) bool {
	if s.Full() {
		return false
	}

	if !s.seen.AddIfNotExists(context.Background(), url) {
		return false
	}

	s.urls = append(s.urls, url)

	return true
}

// Merge adds urls in order until the set is full and returns how many were added.
func (s *ResultSet) Merge(urls []string) int {
	added := 0

	for _, u := range urls {
		if s.Full() {
			break
		}

		if s.Add(u) {
			added++
		}
	}

	return added
}

func (s *ResultSet) Full() bool {
	return len(s.urls) >= s.limit
}

func (s *ResultSet) Len() int {
	return len(s.urls)
}

func (s *ResultSet) Limit() int {
	return s.limit
}

// URLs returns a copy of the urls in insertion order.
func (s *ResultSet) URLs() []string {
	ans := make([]string, len(s.urls))
	copy(ans, s.urls)

	return ans
}
