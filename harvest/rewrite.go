package harvest

import (
	"regexp"
	"strings"
)

const (
	wideSize  = "w1200-h600"
	largeSize = "=w2048-h2048"
)

var sizeToken = regexp.MustCompile(`w\d+-h\d+`)

// Accept reports whether src looks like a content image for the profile.
func (p *CompiledProfile) Accept(src string) bool {
	if src == "" {
		return false
	}

	if p.Reject != nil && p.Reject.MatchString(src) {
		return false
	}

	return true
}

// Rewrite asks the image host for a bigger variant of src.
// Panorama and thumbnail urls keep their parameters and get a wide size,
// other urls lose everything after the first '=' and get a large square.
// Urls without size parameters are returned unchanged.
func (p *CompiledProfile) Rewrite(src string) string {
	base, _, found := strings.Cut(src, "=")
	if !found {
		return src
	}

	if p.Wide != nil && p.Wide.MatchString(src) {
		return sizeToken.ReplaceAllString(src, wideSize)
	}

	return base + largeSize
}
