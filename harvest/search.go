package harvest

import (
	"net/url"
	"strings"
	"time"
)

const searchBaseURL = "https://www.google.com/maps/search/"

const (
	// SettleDelay is waited after a search page finished loading.
	SettleDelay = 1500 * time.Millisecond
	// NavigationTimeout caps loading a search page.
	NavigationTimeout = 10 * time.Second
)

// ConsentSelectors match the buttons that dismiss the cookie wall shown
// before the first search in some regions.
var ConsentSelectors = []string{
	`button[aria-label='Reject all']`,
	`form[action*="consent"] button[aria-label*="Reject"]`,
}

// SearchURL returns the map search url of an address.
func SearchURL(address string) string {
	return searchBaseURL + url.PathEscape(strings.TrimSpace(address))
}
